package speech

import (
	"math/rand/v2"
	"sort"

	"github.com/jwebster45206/parley/pkg/personality"
)

// Tone is the manner in which something is said
type Tone int

const (
	Friendly Tone = iota
	Sincere
	Joking
	Boastful
	Timid
	Sarcastic
	Hostile
)

// Tones lists every tone in declaration order
var Tones = []Tone{Friendly, Sincere, Joking, Boastful, Timid, Sarcastic, Hostile}

func (t Tone) String() string {
	switch t {
	case Friendly:
		return "friendly"
	case Sincere:
		return "sincere"
	case Joking:
		return "joking"
	case Boastful:
		return "boastful"
	case Timid:
		return "timid"
	case Sarcastic:
		return "sarcastic"
	case Hostile:
		return "hostile"
	}
	return "unknown"
}

// Trait is the personality trait that draws a speaker to this tone
func (t Tone) Trait() personality.Trait {
	switch t {
	case Friendly:
		return personality.Kindness
	case Sincere:
		return personality.Honesty
	case Joking:
		return personality.Humor
	case Boastful:
		return personality.Pride
	case Timid:
		return personality.Shyness
	case Sarcastic:
		return personality.Cunning
	case Hostile:
		return personality.Aggression
	}
	return personality.None
}

// Valence is how pleasant the tone is to hear, in [-1, 1]. Positive tones
// suit liked listeners, negative ones disliked listeners.
func (t Tone) Valence() float64 {
	switch t {
	case Friendly:
		return 1
	case Sincere, Joking:
		return 0.5
	case Sarcastic:
		return -0.5
	case Hostile:
		return -1
	}
	return 0
}

// Reaction is the structural line spoken when reacting in this tone
func (t Tone) Reaction() string {
	switch t {
	case Friendly:
		return "How wonderful to hear that!"
	case Sincere:
		return "Thank you for telling me."
	case Joking:
		return "Ha! You're pulling my leg."
	case Boastful:
		return "I knew that already, of course."
	case Timid:
		return "Oh... I see."
	case Sarcastic:
		return "Oh, how fascinating."
	case Hostile:
		return "Why would I care about that?"
	}
	return "I see."
}

// RankTones scores every tone for a speaker with personality p and the given
// affinity toward the listener, best first. The immaturity term is the only
// random component.
func RankTones(p personality.Personality, affinity float64, rng *rand.Rand) []Tone {
	type scored struct {
		tone  Tone
		score float64
	}
	all := make([]scored, len(Tones))
	for i, t := range Tones {
		all[i] = scored{
			tone:  t,
			score: p.Trait(t.Trait()) + p.Immaturity()*rng.Float64() + t.Valence()*affinity,
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })

	out := make([]Tone, len(all))
	for i, s := range all {
		out[i] = s.tone
	}
	return out
}
