package world

import (
	"fmt"
	"strings"
)

// ConceptName is a node of the closed topic taxonomy beliefs are filed under
type ConceptName string

const (
	ConceptProfession   ConceptName = "profession"
	ConceptFeeling      ConceptName = "feeling"
	ConceptRegion       ConceptName = "region"
	ConceptRelationship ConceptName = "relationship"
	ConceptCommunity    ConceptName = "community"
	ConceptLore         ConceptName = "lore"
	ConceptDesire       ConceptName = "desire"
	ConceptEvent        ConceptName = "event"
	ConceptTime         ConceptName = "time"
	ConceptPersonality  ConceptName = "personality"
	ConceptDescription  ConceptName = "description"
)

// Concepts lists the whole taxonomy in a stable order
var Concepts = []ConceptName{
	ConceptProfession,
	ConceptFeeling,
	ConceptRegion,
	ConceptRelationship,
	ConceptCommunity,
	ConceptLore,
	ConceptDesire,
	ConceptEvent,
	ConceptTime,
	ConceptPersonality,
	ConceptDescription,
}

// Valid reports whether c belongs to the taxonomy
func (c ConceptName) Valid() bool {
	for _, known := range Concepts {
		if c == known {
			return true
		}
	}
	return false
}

// SubjectPlaceholder is replaced by the subject's name in question templates
const SubjectPlaceholder = "<subject>"

// Concept is one node of the topic tree. ParentID is a non-owning reference.
type Concept struct {
	ID         int64       `json:"id" yaml:"id"`
	Name       ConceptName `json:"name" yaml:"name"`
	AsQuestion string      `json:"as_question" yaml:"as_question"`
	ParentID   *int64      `json:"parent_concept_id,omitempty" yaml:"parent_concept_id,omitempty"`
}

// Question renders the concept's question template for subject
func (c Concept) Question(subject string) string {
	if c.AsQuestion == "" {
		return fmt.Sprintf("What can you tell me about %s?", subject)
	}
	return strings.ReplaceAll(c.AsQuestion, SubjectPlaceholder, subject)
}

var secondPerson = strings.NewReplacer(
	"is "+SubjectPlaceholder+"'s", "is your",
	"is "+SubjectPlaceholder, "are you",
	"does "+SubjectPlaceholder, "do you",
	SubjectPlaceholder+"'s", "your",
	SubjectPlaceholder, "you",
)

// QuestionToListener renders the template about the one being asked, with
// the verb agreeing with "you"
func (c Concept) QuestionToListener() string {
	if c.AsQuestion == "" {
		return "What can you tell me about yourself?"
	}
	return secondPerson.Replace(c.AsQuestion)
}

// ValidateConceptTree checks that every parent reference resolves and that no
// parent chain loops back on itself.
func ValidateConceptTree(concepts []Concept) error {
	byID := make(map[int64]Concept, len(concepts))
	for _, c := range concepts {
		if _, dup := byID[c.ID]; dup {
			return fmt.Errorf("duplicate concept id %d", c.ID)
		}
		byID[c.ID] = c
	}

	for _, c := range concepts {
		seen := map[int64]bool{c.ID: true}
		cur := c
		for cur.ParentID != nil {
			parent, ok := byID[*cur.ParentID]
			if !ok {
				return fmt.Errorf("concept %q references unknown parent %d", c.Name, *cur.ParentID)
			}
			if seen[parent.ID] {
				return fmt.Errorf("concept %q has a cyclic parent chain", c.Name)
			}
			seen[parent.ID] = true
			cur = parent
		}
	}
	return nil
}
