package world

import "fmt"

// Benefit is the value an agent places on an item
type Benefit float64

const (
	Dislike Benefit = -1
	Like    Benefit = 0.3
	Love    Benefit = 1
)

// ParseBenefit maps the seed-file vocabulary onto benefit weights
func ParseBenefit(s string) (Benefit, error) {
	switch s {
	case "dislike":
		return Dislike, nil
	case "like":
		return Like, nil
	case "love":
		return Love, nil
	}
	return 0, fmt.Errorf("unknown benefit %q", s)
}

func (b Benefit) String() string {
	switch b {
	case Dislike:
		return "dislike"
	case Like:
		return "like"
	case Love:
		return "love"
	}
	return fmt.Sprintf("benefit(%.2f)", float64(b))
}

// Desire records how much Desirer values the item Desired
type Desire struct {
	DesirerID int64   `json:"desirer_id"`
	Desired   Noun    `json:"desired"`
	Benefit   Benefit `json:"benefit"`
}

// BenefitOf is the value of qty units of the desired item
func (d Desire) BenefitOf(qty int) float64 {
	return float64(d.Benefit) * float64(qty)
}
