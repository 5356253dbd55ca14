// Package personality models an agent's trait vector and how it ossifies
// as traits are reinforced.
package personality

import "fmt"

// Trait indexes the personality vector
type Trait int

const (
	Immaturity Trait = iota
	Kindness
	Greed
	Curiosity
	Honesty
	Humor
	Pride
	Aggression
	Shyness
	Loyalty
	Cunning
	Sentimentality
	Talkativeness

	// Count is the number of traits in the vector
	Count = int(Talkativeness) + 1
)

// None marks a neutral speech part that carries no trait weight
const None Trait = -1

var traitNames = [Count]string{
	"immaturity",
	"kindness",
	"greed",
	"curiosity",
	"honesty",
	"humor",
	"pride",
	"aggression",
	"shyness",
	"loyalty",
	"cunning",
	"sentimentality",
	"talkativeness",
}

const (
	seedTrait      = 5.0
	seedImmaturity = 100.0

	// ImmaturityDecay is applied to immaturity after every reinforcement
	ImmaturityDecay = 0.9
)

func (t Trait) String() string {
	if t < 0 || int(t) >= Count {
		return "none"
	}
	return traitNames[t]
}

// Valid reports whether t names a trait of the vector
func (t Trait) Valid() bool {
	return t >= 0 && int(t) < Count
}

// ParseTrait resolves a trait by its column name
func ParseTrait(name string) (Trait, error) {
	for i, n := range traitNames {
		if n == name {
			return Trait(i), nil
		}
	}
	return None, fmt.Errorf("unknown trait %q", name)
}

// Names returns the trait column names in vector order
func Names() []string {
	out := make([]string, Count)
	copy(out, traitNames[:])
	return out
}

// Personality is the fixed trait vector. All traits except Immaturity sum to 1.
type Personality [Count]float64

// New returns the default personality: every trait seeded to 5, immaturity
// to 100, then normalized once.
func New() Personality {
	var p Personality
	for i := range p {
		p[i] = seedTrait
	}
	p[Immaturity] = seedImmaturity
	p.normalize()
	return p
}

// FromWeights builds a personality from explicit seed weights. Missing traits
// take the default seed and the result is normalized.
func FromWeights(weights map[Trait]float64) Personality {
	p := Personality{}
	for i := range p {
		p[i] = seedTrait
	}
	p[Immaturity] = seedImmaturity
	for t, w := range weights {
		if t.Valid() && w >= 0 {
			p[t] = w
		}
	}
	p.normalize()
	return p
}

// Trait reads the current value of t
func (p Personality) Trait(t Trait) float64 {
	if !t.Valid() {
		return 0
	}
	return p[t]
}

// Immaturity is shorthand for p.Trait(Immaturity)
func (p Personality) Immaturity() float64 {
	return p[Immaturity]
}

// Reinforce strengthens each distinct trait by the current immaturity, decays
// immaturity and renormalizes. An empty list leaves p unchanged.
func (p Personality) Reinforce(traits ...Trait) Personality {
	seen := make(map[Trait]bool, len(traits))
	for _, t := range traits {
		if !t.Valid() || t == Immaturity || seen[t] {
			continue
		}
		seen[t] = true
	}
	if len(seen) == 0 {
		return p
	}

	out := p
	for t := range seen {
		out[t] += p[Immaturity]
	}
	out[Immaturity] = p[Immaturity] * ImmaturityDecay
	out.normalize()
	return out
}

// Sum returns the total of the non-immaturity traits
func (p Personality) Sum() float64 {
	var total float64
	for i := 1; i < Count; i++ {
		total += p[i]
	}
	return total
}

func (p *Personality) normalize() {
	total := p.Sum()
	if total <= 0 {
		for i := 1; i < Count; i++ {
			p[i] = 1 / float64(Count-1)
		}
		return
	}
	for i := 1; i < Count; i++ {
		p[i] /= total
	}
}
