package storage

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/parley/pkg/personality"
	"github.com/jwebster45206/parley/pkg/world"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "world.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustNoun(t *testing.T, s *Store, name string, typ world.NounType) world.Noun {
	t.Helper()
	n, err := s.CreateNoun(context.Background(), name, typ)
	require.NoError(t, err)
	return n
}

func TestOpenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "world.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = s.CreateNoun(ctx, "Alice", world.NounPerson)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	nouns, err := s.ListNouns(ctx, "")
	require.NoError(t, err)
	assert.Len(t, nouns, 1)

	concepts, err := s.ListConcepts(ctx)
	require.NoError(t, err)
	assert.Len(t, concepts, len(world.Concepts))
	assert.NoError(t, world.ValidateConceptTree(concepts))
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestExtractUp(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "no markers", content: "SELECT 1;", want: "SELECT 1;"},
		{name: "up only", content: "-- +migrate Up\nSELECT 1;", want: "\nSELECT 1;"},
		{name: "up and down", content: "-- +migrate Up\nSELECT 1;\n-- +migrate Down\nSELECT 2;", want: "\nSELECT 1;\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractUp(tt.content))
		})
	}
}

func TestNouns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustNoun(t, s, "Alice", world.NounPerson)
	mustNoun(t, s, "Gold", world.NounItem)

	got, err := s.GetNoun(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	byName, err := s.FindNounByName(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byName.ID)

	items, err := s.ListNouns(ctx, world.NounItem)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Gold", items[0].Name)

	_, err = s.GetNoun(ctx, 999)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.CreateNoun(ctx, "Blob", world.NounType("blob"))
	assert.Error(t, err)
}

func TestCreateConceptRequiresParent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	missing := int64(12345)
	_, err := s.CreateConcept(ctx, world.Concept{Name: world.ConceptLore, ParentID: &missing})
	assert.True(t, errors.Is(err, ErrNotFound))

	feeling, err := s.ConceptByName(ctx, world.ConceptFeeling)
	require.NoError(t, err)
	require.NotNil(t, feeling.ParentID)

	parent, err := s.GetConcept(ctx, *feeling.ParentID)
	require.NoError(t, err)
	assert.Equal(t, world.ConceptPersonality, parent.Name)
}

func TestKnowledge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustNoun(t, s, "Alice", world.NounPerson)
	bob := mustNoun(t, s, "Bob", world.NounPerson)

	desc, err := s.CreateBelief(ctx, NewBelief{SubjectID: alice.ID, Concept: world.ConceptDescription, Name: "tall", Description: "Alice is tall."})
	require.NoError(t, err)
	job, err := s.CreateBelief(ctx, NewBelief{SubjectID: alice.ID, Concept: world.ConceptProfession, Name: "smith"})
	require.NoError(t, err)

	require.NoError(t, s.AddKnowledge(ctx, alice.ID, desc.ID, job.ID))
	// repeated insert is a no-op
	require.NoError(t, s.AddKnowledge(ctx, alice.ID, desc.ID))

	known, err := s.KnownBeliefs(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, known, 2)

	ok, err := s.Knows(ctx, bob.ID, desc.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.ObserveDescriptions(ctx, bob.ID, alice.ID))
	require.NoError(t, s.ObserveDescriptions(ctx, bob.ID, alice.ID))

	ok, err = s.Knows(ctx, bob.ID, desc.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Knows(ctx, bob.ID, job.ID)
	require.NoError(t, err)
	assert.False(t, ok, "observing copies description beliefs only")
}

func TestNewestKnownBelief(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustNoun(t, s, "Alice", world.NounPerson)
	bob := mustNoun(t, s, "Bob", world.NounPerson)
	carol := mustNoun(t, s, "Carol", world.NounPerson)

	first, err := s.CreateBelief(ctx, NewBelief{SubjectID: bob.ID, Concept: world.ConceptProfession, Name: "baker"})
	require.NoError(t, err)
	second, err := s.CreateBelief(ctx, NewBelief{SubjectID: carol.ID, Concept: world.ConceptLore, Name: "witch"})
	require.NoError(t, err)

	require.NoError(t, s.AddKnowledge(ctx, alice.ID, first.ID))
	require.NoError(t, s.AddKnowledge(ctx, alice.ID, second.ID))

	latest, ok, err := s.NewestKnownBelief(ctx, KnowledgeQuery{KnownBy: alice.ID})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second.ID, latest.ID)

	aboutBob, ok, err := s.NewestKnownBelief(ctx, KnowledgeQuery{KnownBy: alice.ID, SubjectID: &bob.ID})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.ID, aboutBob.ID)

	lore := world.ConceptLore
	require.NoError(t, s.AddKnowledge(ctx, bob.ID, second.ID))
	_, ok, err = s.NewestKnownBelief(ctx, KnowledgeQuery{KnownBy: alice.ID, Concept: &lore, NotKnownBy: &bob.ID})
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.NewestKnownBelief(ctx, KnowledgeQuery{KnownBy: carol.ID})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnknownBeliefsAbout(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustNoun(t, s, "Alice", world.NounPerson)
	bob := mustNoun(t, s, "Bob", world.NounPerson)
	dragon := mustNoun(t, s, "Dragon", world.NounPerson)

	lair, err := s.CreateBelief(ctx, NewBelief{SubjectID: dragon.ID, Concept: world.ConceptRegion, Name: "the peak"})
	require.NoError(t, err)
	hoard, err := s.CreateBelief(ctx, NewBelief{SubjectID: dragon.ID, Concept: world.ConceptLore, Name: "a hoard"})
	require.NoError(t, err)

	// Alice has never heard of the dragon
	got, err := s.UnknownBeliefsAbout(ctx, alice.ID, dragon.ID, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.AddKnowledge(ctx, alice.ID, lair.ID))
	require.NoError(t, s.AddKnowledge(ctx, bob.ID, hoard.ID))

	got, err = s.UnknownBeliefsAbout(ctx, alice.ID, dragon.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, hoard.ID, got[0].Belief.ID)
	assert.True(t, got[0].KnownByAskedOf)
}

func TestBeliefAboutAndRelatedTo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustNoun(t, s, "Alice", world.NounPerson)
	bob := mustNoun(t, s, "Bob", world.NounPerson)

	self, err := s.CreateBelief(ctx, NewBelief{SubjectID: alice.ID, Concept: world.ConceptFeeling, Name: "cheerful"})
	require.NoError(t, err)
	toward, err := s.CreateBelief(ctx, NewBelief{SubjectID: alice.ID, RelatedToID: &bob.ID, Concept: world.ConceptFeeling, Name: "fond", Trust: 0.2})
	require.NoError(t, err)

	got, ok, err := s.BeliefAbout(ctx, alice.ID, world.ConceptFeeling)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, self.ID, got.ID)
	assert.Nil(t, got.RelatedTo)

	got, ok, err = s.BeliefRelatedTo(ctx, alice.ID, bob.ID, world.ConceptFeeling)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, toward.ID, got.ID)
	require.NotNil(t, got.RelatedTo)
	assert.Equal(t, "Bob", got.RelatedTo.Name)
	assert.Equal(t, 0.2, got.Trust)

	_, ok, err = s.BeliefRelatedTo(ctx, bob.ID, alice.ID, world.ConceptFeeling)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPersonalityRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustNoun(t, s, "Alice", world.NounPerson)

	p, err := s.Personality(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, personality.New(), p)

	custom := personality.FromWeights(map[personality.Trait]float64{personality.Greed: 10, personality.Immaturity: 40})
	require.NoError(t, s.SavePersonality(ctx, alice.ID, custom))

	p, err = s.Personality(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, custom, p)

	reinforced, err := s.ReinforcePersonality(ctx, alice.ID, personality.Humor)
	require.NoError(t, err)
	assert.InDelta(t, 40*personality.ImmaturityDecay, reinforced.Immaturity(), 1e-9)
	assert.InDelta(t, 1, reinforced.Sum(), 1e-9)

	p, err = s.Personality(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, reinforced, p)

	unchanged, err := s.ReinforcePersonality(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, reinforced, unchanged)
}

func TestRelationships(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustNoun(t, s, "Alice", world.NounPerson)
	bob := mustNoun(t, s, "Bob", world.NounPerson)

	require.NoError(t, s.Introduce(ctx, alice.ID, bob.ID))
	require.NoError(t, s.ModifyRelationship(ctx, alice.ID, bob.ID, 5))
	require.NoError(t, s.Introduce(ctx, alice.ID, bob.ID))
	require.NoError(t, s.ModifyRelationship(ctx, alice.ID, bob.ID, -2))

	r, err := s.Relationship(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.0, r.RawAffinity)

	require.NoError(t, s.SetSummary(ctx, alice.ID, bob.ID, "We argued about bread."))
	r, err = s.Relationship(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "We argued about bread.", r.Summary)
	assert.Equal(t, 3.0, r.RawAffinity)

	// the reverse edge is independent
	r, err = s.Relationship(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, r.RawAffinity)
	assert.Empty(t, r.Summary)
}

func TestDesireCandidatesSkipsObligatedItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustNoun(t, s, "Alice", world.NounPerson)
	bob := mustNoun(t, s, "Bob", world.NounPerson)
	gold := mustNoun(t, s, "Gold", world.NounItem)
	bread := mustNoun(t, s, "Bread", world.NounItem)
	mud := mustNoun(t, s, "Mud", world.NounItem)

	require.NoError(t, s.SetDesire(ctx, alice.ID, gold.ID, world.Love))
	require.NoError(t, s.SetDesire(ctx, alice.ID, bread.ID, world.Like))
	require.NoError(t, s.SetDesire(ctx, alice.ID, mud.ID, world.Dislike))

	got, err := s.DesireCandidates(ctx, alice.ID, bob.ID, 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.NoError(t, s.Obligate(ctx, world.Obligation{OwedID: alice.ID, OwingID: bob.ID, ItemID: gold.ID, Amount: 1, ByTick: 10}))
	got, err = s.DesireCandidates(ctx, alice.ID, bob.ID, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, bread.ID, got[0].Desired.ID)

	d, ok, err := s.Desire(ctx, alice.ID, mud.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, world.Dislike, d.Benefit)
}

func TestRepay(t *testing.T) {
	tests := []struct {
		name         string
		give         int
		wantCredited int
		wantCleared  bool
		wantLeft     int
		wantAffinity float64
	}{
		{name: "full repayment", give: 3, wantCredited: 3, wantCleared: true, wantLeft: 0, wantAffinity: 10},
		{name: "overpayment credits outstanding only", give: 5, wantCredited: 3, wantCleared: true, wantLeft: 0, wantAffinity: 10},
		{name: "partial repayment", give: 2, wantCredited: 2, wantCleared: false, wantLeft: 1, wantAffinity: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			ctx := context.Background()
			alice := mustNoun(t, s, "Alice", world.NounPerson)
			bob := mustNoun(t, s, "Bob", world.NounPerson)
			gold := mustNoun(t, s, "Gold", world.NounItem)

			require.NoError(t, s.Obligate(ctx, world.Obligation{OwedID: bob.ID, OwingID: alice.ID, ItemID: gold.ID, Amount: 3, ByTick: 100}))

			credited, cleared, err := s.Repay(ctx, bob.ID, alice.ID, gold.ID, tt.give, 10)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCredited, credited)
			assert.Equal(t, tt.wantCleared, cleared)

			o, ok, err := s.Obligation(ctx, bob.ID, alice.ID, gold.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLeft > 0, ok)
			assert.Equal(t, tt.wantLeft, o.Amount)

			r, err := s.Relationship(ctx, bob.ID, alice.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAffinity, r.RawAffinity)
		})
	}
}

func TestRepayWithoutObligation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustNoun(t, s, "Alice", world.NounPerson)
	bob := mustNoun(t, s, "Bob", world.NounPerson)
	gold := mustNoun(t, s, "Gold", world.NounItem)

	credited, cleared, err := s.Repay(ctx, bob.ID, alice.ID, gold.ID, 2, 10)
	require.NoError(t, err)
	assert.Zero(t, credited)
	assert.False(t, cleared)
}

func TestObligateMerges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustNoun(t, s, "Alice", world.NounPerson)
	bob := mustNoun(t, s, "Bob", world.NounPerson)
	gold := mustNoun(t, s, "Gold", world.NounItem)

	require.NoError(t, s.Obligate(ctx, world.Obligation{OwedID: bob.ID, OwingID: alice.ID, ItemID: gold.ID, Amount: 2, ByTick: 50}))
	require.NoError(t, s.Obligate(ctx, world.Obligation{OwedID: bob.ID, OwingID: alice.ID, ItemID: gold.ID, Amount: 1, ByTick: 30}))

	o, ok, err := s.Obligation(ctx, bob.ID, alice.ID, gold.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, o.Amount)
	assert.Equal(t, int64(50), o.ByTick)

	assert.Error(t, s.Obligate(ctx, world.Obligation{OwedID: bob.ID, OwingID: alice.ID, ItemID: gold.ID, Amount: 0, ByTick: 1}))
}

func TestObligateAllIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustNoun(t, s, "Alice", world.NounPerson)
	bob := mustNoun(t, s, "Bob", world.NounPerson)
	gold := mustNoun(t, s, "Gold", world.NounItem)
	potion := mustNoun(t, s, "Potion", world.NounItem)

	err := s.ObligateAll(ctx, []world.Obligation{
		{OwedID: bob.ID, OwingID: alice.ID, ItemID: gold.ID, Amount: 2, ByTick: 10},
		{OwedID: alice.ID, OwingID: bob.ID, ItemID: potion.ID + 100, Amount: 1, ByTick: 10},
	})
	require.Error(t, err, "unknown item must violate the foreign key")

	_, ok, err := s.Obligation(ctx, bob.ID, alice.ID, gold.ID)
	require.NoError(t, err)
	assert.False(t, ok, "the first term was rolled back")

	require.NoError(t, s.ObligateAll(ctx, []world.Obligation{
		{OwedID: bob.ID, OwingID: alice.ID, ItemID: gold.ID, Amount: 2, ByTick: 10},
		{OwedID: alice.ID, OwingID: bob.ID, ItemID: potion.ID, Amount: 1, ByTick: 10},
	}))
	fromAlice, err := s.ObligationsOwedBy(ctx, alice.ID)
	require.NoError(t, err)
	fromBob, err := s.ObligationsOwedBy(ctx, bob.ID)
	require.NoError(t, err)
	assert.Len(t, fromAlice, 1)
	assert.Len(t, fromBob, 1)
}

func TestExpireObligations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustNoun(t, s, "Alice", world.NounPerson)
	bob := mustNoun(t, s, "Bob", world.NounPerson)
	carol := mustNoun(t, s, "Carol", world.NounPerson)
	gold := mustNoun(t, s, "Gold", world.NounItem)

	require.NoError(t, s.Obligate(ctx, world.Obligation{OwedID: bob.ID, OwingID: alice.ID, ItemID: gold.ID, Amount: 2, ByTick: 10}))
	require.NoError(t, s.Obligate(ctx, world.Obligation{OwedID: carol.ID, OwingID: alice.ID, ItemID: gold.ID, Amount: 1, ByTick: 20}))

	expired, err := s.ExpireObligations(ctx, alice.ID, 9, -20)
	require.NoError(t, err)
	assert.Empty(t, expired)

	expired, err = s.ExpireObligations(ctx, alice.ID, 10, -20)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, bob.ID, expired[0].OwedID)

	r, err := s.Relationship(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, -20.0, r.RawAffinity)

	r, err = s.Relationship(ctx, carol.ID, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, r.RawAffinity)

	left, err := s.ObligationsOwedBy(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, carol.ID, left[0].OwedID)

	owedToCarol, err := s.ObligationsOwedTo(ctx, carol.ID)
	require.NoError(t, err)
	assert.Equal(t, left, owedToCarol)
}

func TestClock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d, err := s.Clock(ctx)
	require.NoError(t, err)
	assert.Zero(t, d.Tick)
	assert.NotEmpty(t, d.Description)

	d, err = s.AdvanceClock(ctx, 5, "")
	require.NoError(t, err)
	assert.Equal(t, int64(5), d.Tick)

	d, err = s.AdvanceClock(ctx, 1, "Midsummer")
	require.NoError(t, err)
	assert.Equal(t, "Midsummer", d.Description)

	tick, err := s.CurrentTick(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), tick)

	_, err = s.AdvanceClock(ctx, -1, "")
	assert.Error(t, err)
}

func TestAffinityFromStoredEdge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustNoun(t, s, "Alice", world.NounPerson)
	bob := mustNoun(t, s, "Bob", world.NounPerson)

	require.NoError(t, s.ModifyRelationship(ctx, alice.ID, bob.ID, 100))
	r, err := s.Relationship(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	if a := r.Affinity(); a <= 0.98 || a >= 1 || math.IsNaN(a) {
		t.Errorf("affinity = %v, want in (0.98, 1)", a)
	}
}
