package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/jwebster45206/parley/internal/storage"
	"github.com/jwebster45206/parley/pkg/world"
)

// Roster hands out one shared Agent per noun so the conversation guard holds
// across every caller.
type Roster struct {
	store *storage.Store

	mu     sync.Mutex
	agents map[int64]*Agent
}

// NewRoster creates an empty roster over store
func NewRoster(store *storage.Store) *Roster {
	return &Roster{store: store, agents: make(map[int64]*Agent)}
}

// Get returns the agent for noun id, loading it on first use
func (r *Roster) Get(ctx context.Context, id int64) (*Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.agents[id]; ok {
		return a, nil
	}
	n, err := r.store.GetNoun(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Type != world.NounPerson {
		return nil, fmt.Errorf("noun %s is a %s, not a person", n, n.Type)
	}
	a := New(r.store, n, false)
	r.agents[id] = a
	return a, nil
}

// ByName resolves an agent by noun name
func (r *Roster) ByName(ctx context.Context, name string) (*Agent, error) {
	n, err := r.store.FindNounByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, n.ID)
}

// All loads every person in the world
func (r *Roster) All(ctx context.Context) ([]*Agent, error) {
	people, err := r.store.ListNouns(ctx, world.NounPerson)
	if err != nil {
		return nil, err
	}
	out := make([]*Agent, 0, len(people))
	for _, p := range people {
		a, err := r.Get(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
