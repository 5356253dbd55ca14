// Package seed loads a starting world from YAML into a fresh store.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/parley/internal/storage"
	"github.com/jwebster45206/parley/pkg/personality"
	"github.com/jwebster45206/parley/pkg/world"
)

// World is the seed file layout
type World struct {
	Name   string       `yaml:"name"`
	Clock  Clock        `yaml:"clock"`
	Nouns  []Noun       `yaml:"nouns"`
	People []Person     `yaml:"people"`
	Lore   []BeliefSpec `yaml:"beliefs"`
}

// Clock sets the starting tick
type Clock struct {
	Tick        int64  `yaml:"tick"`
	Description string `yaml:"description"`
}

// Noun is any non-person entity
type Noun struct {
	Name string         `yaml:"name"`
	Type world.NounType `yaml:"type"`
}

// Person is an agent with its starting mind
type Person struct {
	Name          string             `yaml:"name"`
	Personality   map[string]float64 `yaml:"personality"`
	Goal          string             `yaml:"goal"`
	Desires       map[string]string  `yaml:"desires"`
	Knows         []string           `yaml:"knows"`
	Acquaintances []string           `yaml:"acquaintances"`
}

// BeliefSpec is a belief keyed for reference from Person.Knows
type BeliefSpec struct {
	Key         string            `yaml:"key"`
	Subject     string            `yaml:"subject"`
	RelatedTo   string            `yaml:"related_to"`
	Concept     world.ConceptName `yaml:"concept"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Trust       float64           `yaml:"trust"`
}

// ValidationError lists every problem found in a seed file
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid world: %s", strings.Join(e.Problems, "; "))
}

// Result counts what Apply created
type Result struct {
	Nouns     int
	People    int
	Beliefs   int
	Knowledge int
	Desires   int
}

// LoadFile reads and validates a seed file
func LoadFile(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read world file %s: %w", path, err)
	}
	w, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load world file %s: %w", path, err)
	}
	return w, nil
}

// Parse decodes and validates a seed document. Unknown fields are errors.
func Parse(data []byte) (*World, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var w World
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("failed to parse world: %w", err)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

// Validate checks every cross reference in the document
func (w *World) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if w.Clock.Tick < 0 {
		addf("clock tick %d is negative", w.Clock.Tick)
	}

	types := make(map[string]world.NounType, len(w.Nouns)+len(w.People))
	for _, n := range w.Nouns {
		switch {
		case strings.TrimSpace(n.Name) == "":
			addf("noun with empty name")
		case !n.Type.Valid():
			addf("noun %q has unknown type %q", n.Name, n.Type)
		case n.Type == world.NounPerson:
			addf("noun %q: people belong under people", n.Name)
		case types[n.Name] != "":
			addf("duplicate name %q", n.Name)
		default:
			types[n.Name] = n.Type
		}
	}
	for _, p := range w.People {
		if strings.TrimSpace(p.Name) == "" {
			addf("person with empty name")
			continue
		}
		if types[p.Name] != "" {
			addf("duplicate name %q", p.Name)
			continue
		}
		types[p.Name] = world.NounPerson
	}

	keys := make(map[string]bool, len(w.Lore))
	for _, b := range w.Lore {
		if b.Key == "" {
			addf("belief %q has no key", b.Name)
		} else if keys[b.Key] {
			addf("duplicate belief key %q", b.Key)
		}
		keys[b.Key] = true

		if b.Name == "" {
			addf("belief %q has no name", b.Key)
		}
		if types[b.Subject] == "" {
			addf("belief %q: unknown subject %q", b.Key, b.Subject)
		}
		if b.RelatedTo != "" && types[b.RelatedTo] == "" {
			addf("belief %q: unknown related noun %q", b.Key, b.RelatedTo)
		}
		if !b.Concept.Valid() {
			addf("belief %q: unknown concept %q", b.Key, b.Concept)
		}
		if b.Trust < 0 {
			addf("belief %q: negative trust", b.Key)
		}
	}

	for _, p := range w.People {
		for trait, weight := range p.Personality {
			if _, err := personality.ParseTrait(trait); err != nil {
				addf("%s: %v", p.Name, err)
			}
			if weight < 0 {
				addf("%s: negative weight for %s", p.Name, trait)
			}
		}
		if p.Goal != "" && types[p.Goal] == "" {
			addf("%s: unknown goal %q", p.Name, p.Goal)
		}
		for item, benefit := range p.Desires {
			if types[item] != world.NounItem {
				addf("%s: desire for %q, which is not an item", p.Name, item)
			}
			if _, err := world.ParseBenefit(benefit); err != nil {
				addf("%s: %v", p.Name, err)
			}
		}
		for _, k := range p.Knows {
			if !keys[k] {
				addf("%s knows unknown belief %q", p.Name, k)
			}
		}
		for _, a := range p.Acquaintances {
			if types[a] != world.NounPerson {
				addf("%s: acquaintance %q is not a person", p.Name, a)
			} else if a == p.Name {
				addf("%s cannot be their own acquaintance", p.Name)
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Apply writes the world into store. The store's concept tree is checked
// first; the store is expected to hold no nouns yet.
func Apply(ctx context.Context, store *storage.Store, w *World, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var res Result
	if err := w.Validate(); err != nil {
		return res, err
	}

	concepts, err := store.ListConcepts(ctx)
	if err != nil {
		return res, err
	}
	if err := world.ValidateConceptTree(concepts); err != nil {
		return res, fmt.Errorf("concept tree: %w", err)
	}

	ids := make(map[string]int64, len(w.Nouns)+len(w.People))
	for _, n := range w.Nouns {
		created, err := store.CreateNoun(ctx, n.Name, n.Type)
		if err != nil {
			return res, err
		}
		ids[n.Name] = created.ID
		res.Nouns++
	}
	for _, p := range w.People {
		created, err := store.CreateNoun(ctx, p.Name, world.NounPerson)
		if err != nil {
			return res, err
		}
		ids[p.Name] = created.ID
		res.People++

		weights := make(map[personality.Trait]float64, len(p.Personality))
		for name, weight := range p.Personality {
			t, _ := personality.ParseTrait(name)
			weights[t] = weight
		}
		if err := store.SavePersonality(ctx, created.ID, personality.FromWeights(weights)); err != nil {
			return res, err
		}
	}

	beliefs := make(map[string]int64, len(w.Lore))
	for _, b := range w.Lore {
		nb := storage.NewBelief{
			SubjectID:   ids[b.Subject],
			Concept:     b.Concept,
			Name:        b.Name,
			Description: b.Description,
			Trust:       b.Trust,
		}
		if b.RelatedTo != "" {
			related := ids[b.RelatedTo]
			nb.RelatedToID = &related
		}
		created, err := store.CreateBelief(ctx, nb)
		if err != nil {
			return res, fmt.Errorf("belief %q: %w", b.Key, err)
		}
		beliefs[b.Key] = created.ID
		res.Beliefs++
	}

	for _, p := range w.People {
		id := ids[p.Name]
		for _, k := range p.Knows {
			if err := store.AddKnowledge(ctx, id, beliefs[k]); err != nil {
				return res, err
			}
			res.Knowledge++
		}
		for item, name := range p.Desires {
			benefit, _ := world.ParseBenefit(name)
			if err := store.SetDesire(ctx, id, ids[item], benefit); err != nil {
				return res, err
			}
			res.Desires++
		}
		if p.Goal != "" {
			if err := store.SetGoal(ctx, id, ids[p.Goal]); err != nil {
				return res, err
			}
		}
		for _, a := range p.Acquaintances {
			if err := store.Introduce(ctx, id, ids[a]); err != nil {
				return res, err
			}
			if err := store.ObserveDescriptions(ctx, id, ids[a]); err != nil {
				return res, err
			}
		}
	}

	if w.Clock.Tick > 0 || w.Clock.Description != "" {
		if _, err := store.AdvanceClock(ctx, w.Clock.Tick, w.Clock.Description); err != nil {
			return res, err
		}
	}

	logger.Info("World seeded",
		"world", w.Name,
		"nouns", res.Nouns,
		"people", res.People,
		"beliefs", res.Beliefs)
	return res, nil
}
