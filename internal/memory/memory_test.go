package memory

import (
	"context"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/parley/internal/storage"
	"github.com/jwebster45206/parley/pkg/negotiation"
	"github.com/jwebster45206/parley/pkg/world"
)

var _ negotiation.Desires = (*Service)(nil)

type fixture struct {
	svc   *Service
	store *storage.Store
	alice world.Noun
	bob   world.Noun
	carol world.Noun
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store, err := storage.Open(ctx, filepath.Join(t.TempDir(), "world.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := fixture{store: store, svc: NewService(store, rand.New(rand.NewPCG(1, 2)))}
	for _, n := range []struct {
		dst  *world.Noun
		name string
	}{{&f.alice, "Alice"}, {&f.bob, "Bob"}, {&f.carol, "Carol"}} {
		*n.dst, err = store.CreateNoun(ctx, n.name, world.NounPerson)
		require.NoError(t, err)
	}
	return f
}

func (f fixture) belief(t *testing.T, nb storage.NewBelief) world.Belief {
	t.Helper()
	b, err := f.store.CreateBelief(context.Background(), nb)
	require.NoError(t, err)
	return b
}

func TestQuestionAboutListener(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	desc := f.belief(t, storage.NewBelief{SubjectID: f.alice.ID, Concept: world.ConceptDescription, Name: "tall"})
	require.NoError(t, f.svc.AddKnowledge(ctx, f.alice.ID, desc.ID))

	// Bob has not met Alice, so she is outside his web of knowledge
	_, ok, err := f.svc.QuestionAbout(ctx, f.bob.ID, f.alice.ID, f.alice.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.store.Introduce(ctx, f.bob.ID, f.alice.ID))

	q, ok, err := f.svc.QuestionAbout(ctx, f.bob.ID, f.alice.ID, f.alice.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, desc.ID, q.Belief.ID)
	assert.Equal(t, "What are you like?", q.Text)

	q, ok, err = f.svc.QuestionAbout(ctx, f.bob.ID, f.carol.ID, f.alice.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "What is Alice like?", q.Text)
}

func TestRandomUnknownFactPrefersAskedOf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var known world.Belief
	for i, name := range []string{"a", "b", "c", "d"} {
		b := f.belief(t, storage.NewBelief{SubjectID: f.carol.ID, Concept: world.ConceptLore, Name: name})
		if i == 2 {
			known = b
			require.NoError(t, f.svc.AddKnowledge(ctx, f.bob.ID, b.ID))
		}
	}
	require.NoError(t, f.store.Introduce(ctx, f.alice.ID, f.carol.ID))

	for i := 0; i < 10; i++ {
		got, ok, err := f.svc.RandomUnknownFactRelatedTo(ctx, f.alice.ID, f.bob.ID, f.carol.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, known.ID, got.ID)
	}

	// without a preferred tier any unknown belief may be chosen
	got, ok, err := f.svc.RandomUnknownFactRelatedTo(ctx, f.alice.ID, f.alice.ID, f.carol.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, f.carol.ID, got.Subject.ID)
}

func TestFindFactAndAnswer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := f.belief(t, storage.NewBelief{SubjectID: f.carol.ID, Concept: world.ConceptProfession, Name: "miller"})
	fresh := f.belief(t, storage.NewBelief{SubjectID: f.carol.ID, Concept: world.ConceptLore, Name: "saw a ghost"})
	require.NoError(t, f.svc.AddKnowledge(ctx, f.alice.ID, old.ID))
	require.NoError(t, f.svc.AddKnowledge(ctx, f.alice.ID, fresh.ID))
	require.NoError(t, f.svc.AddKnowledge(ctx, f.bob.ID, fresh.ID))

	got, ok, err := f.svc.FindFactAbout(ctx, f.alice.ID, f.carol.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fresh.ID, got.ID)

	got, ok, err = f.svc.FindAnswer(ctx, f.alice.ID, f.bob.ID, f.carol.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, old.ID, got.ID, "answers skip what the asker already knows")

	got, ok, err = f.svc.LastLearned(ctx, f.alice.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fresh.ID, got.ID)

	_, ok, err = f.svc.FindFactAbout(ctx, f.carol.ID, f.alice.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRandomMemoryGap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rumor := f.belief(t, storage.NewBelief{SubjectID: f.carol.ID, Concept: world.ConceptLore, Name: "hides gold", Trust: 0.3})
	require.NoError(t, f.svc.AddKnowledge(ctx, f.alice.ID, rumor.ID))

	got, ok, err := f.svc.RandomMemoryGap(ctx, f.alice.ID, f.bob.ID, world.ConceptLore)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rumor.ID, got.ID)

	_, ok, err = f.svc.RandomMemoryGap(ctx, f.alice.ID, f.bob.ID, world.ConceptEvent)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.svc.AddKnowledge(ctx, f.bob.ID, rumor.ID))
	_, ok, err = f.svc.RandomMemoryGap(ctx, f.alice.ID, f.bob.ID, world.ConceptLore)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestObserve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	desc := f.belief(t, storage.NewBelief{SubjectID: f.alice.ID, Concept: world.ConceptDescription, Name: "scarred"})
	require.NoError(t, f.svc.Observe(ctx, f.bob.ID, f.alice.ID))

	ok, err := f.svc.Knows(ctx, f.bob.ID, desc.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDesires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	gold, err := f.store.CreateNoun(ctx, "Gold", world.NounItem)
	require.NoError(t, err)
	require.NoError(t, f.store.SetDesire(ctx, f.alice.ID, gold.ID, world.Love))

	d, ok, err := f.svc.FindRandomDesire(ctx, f.alice.ID, f.bob.ID, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, gold.ID, d.Desired.ID)

	_, ok, err = f.svc.FindRandomDesire(ctx, f.alice.ID, f.bob.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok, "minValue is exclusive")

	v, err := f.svc.BenefitOf(ctx, f.alice.ID, gold.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	v, err = f.svc.BenefitOf(ctx, f.bob.ID, gold.ID, 3)
	require.NoError(t, err)
	assert.Zero(t, v)
}
