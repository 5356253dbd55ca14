package world

import "fmt"

// Belief is a fact about Subject, optionally relating it to another noun.
// Trust gates who may learn or share it.
type Belief struct {
	ID          int64   `json:"id"`
	Subject     Noun    `json:"subject"`
	RelatedTo   *Noun   `json:"related_to,omitempty"`
	Concept     Concept `json:"concept"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Trust       float64 `json:"trust"`
}

// Mentions reports whether the belief is about or related to noun
func (b Belief) Mentions(nounID int64) bool {
	if b.Subject.ID == nounID {
		return true
	}
	return b.RelatedTo != nil && b.RelatedTo.ID == nounID
}

// Statement renders the belief as a plain declarative sentence
func (b Belief) Statement() string {
	if b.Description != "" {
		return b.Description
	}
	if b.RelatedTo != nil {
		return fmt.Sprintf("%s's %s regarding %s is %s.", b.Subject.Name, b.Concept.Name, b.RelatedTo.Name, b.Name)
	}
	return fmt.Sprintf("%s's %s is %s.", b.Subject.Name, b.Concept.Name, b.Name)
}
