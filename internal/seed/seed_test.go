package seed

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/parley/internal/storage"
	"github.com/jwebster45206/parley/pkg/personality"
	"github.com/jwebster45206/parley/pkg/world"
)

const hamlet = `
name: Hamlet
clock:
  tick: 12
  description: Late autumn
nouns:
  - name: Bread
    type: item
people:
  - name: Tom
    personality:
      greed: 20
    goal: Bread
    desires:
      Bread: love
    knows: [tom-tall, ann-smith]
    acquaintances: [Ann]
  - name: Ann
beliefs:
  - key: tom-tall
    subject: Tom
    concept: description
    name: tall
    description: Tom is very tall.
  - key: ann-looks
    subject: Ann
    concept: description
    name: freckled
    description: Ann is freckled.
  - key: ann-smith
    subject: Ann
    concept: profession
    name: smith
    description: Ann works the forge.
    trust: 0.4
`

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "world.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestParse(t *testing.T) {
	w, err := Parse([]byte(hamlet))
	require.NoError(t, err)
	assert.Equal(t, "Hamlet", w.Name)
	assert.Equal(t, int64(12), w.Clock.Tick)
	require.Len(t, w.People, 2)
	assert.Equal(t, "love", w.People[0].Desires["Bread"])
	require.Len(t, w.Lore, 3)
	assert.Equal(t, 0.4, w.Lore[2].Trust)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		problem string
	}{
		{
			name: "unknown noun type",
			doc: `
nouns:
  - name: Cloud
    type: weather`,
			problem: `unknown type "weather"`,
		},
		{
			name: "person listed as noun",
			doc: `
nouns:
  - name: Tom
    type: person`,
			problem: "people belong under people",
		},
		{
			name: "duplicate names",
			doc: `
nouns:
  - name: Tom
    type: item
people:
  - name: Tom`,
			problem: `duplicate name "Tom"`,
		},
		{
			name: "unknown belief subject",
			doc: `
beliefs:
  - key: ghost
    subject: Nobody
    concept: lore
    name: ghost`,
			problem: `unknown subject "Nobody"`,
		},
		{
			name: "unknown concept",
			doc: `
people:
  - name: Tom
beliefs:
  - key: tom-x
    subject: Tom
    concept: astrology
    name: stars`,
			problem: `unknown concept "astrology"`,
		},
		{
			name: "unknown trait",
			doc: `
people:
  - name: Tom
    personality:
      bravery: 3`,
			problem: `unknown trait "bravery"`,
		},
		{
			name: "desire for a person",
			doc: `
people:
  - name: Tom
    desires:
      Ann: love
  - name: Ann`,
			problem: `desire for "Ann", which is not an item`,
		},
		{
			name: "unknown benefit",
			doc: `
nouns:
  - name: Bread
    type: item
people:
  - name: Tom
    desires:
      Bread: adore`,
			problem: `unknown benefit "adore"`,
		},
		{
			name: "unknown knowledge",
			doc: `
people:
  - name: Tom
    knows: [secret]`,
			problem: `knows unknown belief "secret"`,
		},
		{
			name: "self acquaintance",
			doc: `
people:
  - name: Tom
    acquaintances: [Tom]`,
			problem: "cannot be their own acquaintance",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "want ValidationError, got %v", err)
			found := false
			for _, p := range verr.Problems {
				if strings.Contains(p, tt.problem) {
					found = true
				}
			}
			assert.True(t, found, "problems %q do not mention %q", verr.Problems, tt.problem)
		})
	}
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("people:\n  - name: Tom\n    age: 40\n"))
	require.Error(t, err)
	var verr *ValidationError
	assert.False(t, errors.As(err, &verr), "decoding fails before validation")
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	w, err := Parse([]byte(hamlet))
	require.NoError(t, err)

	res, err := Apply(ctx, store, w, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{Nouns: 1, People: 2, Beliefs: 3, Knowledge: 2, Desires: 1}, res)

	tom, err := store.FindNounByName(ctx, "Tom")
	require.NoError(t, err)
	ann, err := store.FindNounByName(ctx, "Ann")
	require.NoError(t, err)
	bread, err := store.FindNounByName(ctx, "Bread")
	require.NoError(t, err)
	assert.Equal(t, world.NounItem, bread.Type)

	p, err := store.Personality(ctx, tom.ID)
	require.NoError(t, err)
	assert.Greater(t, p.Trait(personality.Greed), p.Trait(personality.Kindness))

	desire, ok, err := store.Desire(ctx, tom.ID, bread.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, world.Love, desire.Benefit)

	goal, ok, err := store.Goal(ctx, tom.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, bread.ID, goal.InterestID)

	// Tom knows his own beliefs plus Ann's looks from meeting her
	known, err := store.KnownBeliefs(ctx, tom.ID)
	require.NoError(t, err)
	var names []string
	for _, b := range known {
		names = append(names, b.Name)
	}
	assert.ElementsMatch(t, []string{"tall", "smith", "freckled"}, names)

	annKnows, err := store.KnownBeliefs(ctx, ann.ID)
	require.NoError(t, err)
	assert.Empty(t, annKnows)

	clock, err := store.Clock(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), clock.Tick)
	assert.Equal(t, "Late autumn", clock.Description)
}

func TestApply_BundledVillage(t *testing.T) {
	ctx := context.Background()
	w, err := LoadFile(filepath.Join("..", "..", "data", "worlds", "village.yaml"))
	require.NoError(t, err)

	store := openStore(t)
	res, err := Apply(ctx, store, w, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, res.People)
	assert.Equal(t, len(w.Lore), res.Beliefs)

	people, err := store.ListNouns(ctx, world.NounPerson)
	require.NoError(t, err)
	assert.Len(t, people, 4)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nowhere.yaml"))
	require.Error(t, err)
}
