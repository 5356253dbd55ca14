package world

import "math"

// affinitySteepness controls how quickly raw affinity saturates
const affinitySteepness = 0.05

// Affinity maps an unbounded raw affinity onto (-1, 1). It is 0 at 0 and
// strictly increasing.
func Affinity(raw float64) float64 {
	return 2/(1+math.Exp(-affinitySteepness*raw)) - 1
}

// Relationship is the directed edge NounID -> WithNounID
type Relationship struct {
	NounID      int64   `json:"noun_id"`
	WithNounID  int64   `json:"with_noun_id"`
	RawAffinity float64 `json:"raw_affinity"`
	Summary     string  `json:"conversation_summary,omitempty"`
}

// Affinity is the bounded affinity of the edge
func (r Relationship) Affinity() float64 {
	return Affinity(r.RawAffinity)
}

// Obligation is a promise by Owing to give Amount of Item to Owed before
// the clock reaches ByTick.
type Obligation struct {
	OwedID  int64 `json:"owed_id"`
	OwingID int64 `json:"owing_id"`
	ItemID  int64 `json:"item_id"`
	Amount  int   `json:"amount"`
	ByTick  int64 `json:"by_tick"`
}

// Overdue reports whether the deadline has passed at tick
func (o Obligation) Overdue(tick int64) bool {
	return o.ByTick <= tick
}

// Goal is the single agent an owner is interested in
type Goal struct {
	OwnerID    int64 `json:"noun_id"`
	InterestID int64 `json:"interest_id"`
}

// FantasyDate is the external game clock
type FantasyDate struct {
	Description string `json:"date_description"`
	Tick        int64  `json:"tick"`
}
