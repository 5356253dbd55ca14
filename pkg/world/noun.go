package world

import "fmt"

// NounType classifies an addressable entity in the game world
type NounType string

const (
	NounPerson    NounType = "person"
	NounItem      NounType = "item"
	NounRegion    NounType = "region"
	NounCommunity NounType = "community"
	NounEvent     NounType = "event"
	NounConcept   NounType = "concept"
)

// Valid reports whether t is one of the known noun types
func (t NounType) Valid() bool {
	switch t {
	case NounPerson, NounItem, NounRegion, NounCommunity, NounEvent, NounConcept:
		return true
	}
	return false
}

// Noun is the identity of anything that can be talked about: a person,
// an item, a region, a community, an event or an abstract concept.
type Noun struct {
	ID   int64    `json:"id" yaml:"id"`
	Name string   `json:"name" yaml:"name"`
	Type NounType `json:"type" yaml:"type"`
}

func (n Noun) String() string {
	return fmt.Sprintf("%s(%d)", n.Name, n.ID)
}
