package negotiation

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/jwebster45206/parley/pkg/world"
)

const (
	// SampleSize is how many candidate mutations are drawn per selection
	SampleSize = 5

	maxOfferQuantity = 3
)

// Desires looks up the value agents place on items
type Desires interface {
	// FindRandomDesire returns a random desire of knownBy valued above
	// minValue whose item givenBy is not already obligated to hand over.
	// The bool is false when there is no such desire.
	FindRandomDesire(ctx context.Context, knownBy, givenBy int64, minValue float64) (world.Desire, bool, error)

	// BenefitOf is agent's benefit for qty units of item, 0 without a desire
	BenefitOf(ctx context.Context, agent, item int64, qty int) (float64, error)
}

// AddRandomBenefit extends p with a term benefactor hands to beneficiary,
// picked from beneficiary's desires. If the item is already offered on that
// side its quantity grows instead. The bool is false when no desire applies.
func AddRandomBenefit(ctx context.Context, d Desires, rng *rand.Rand, p Proposal, beneficiary, benefactor int64) (Proposal, bool, error) {
	if !p.Involves(beneficiary) || !p.Involves(benefactor) || beneficiary == benefactor {
		return Proposal{}, false, fmt.Errorf("agents %d and %d are not the two parties of the proposal", beneficiary, benefactor)
	}

	desire, ok, err := d.FindRandomDesire(ctx, beneficiary, benefactor, 0)
	if err != nil {
		return Proposal{}, false, fmt.Errorf("failed to find desire: %w", err)
	}
	if !ok {
		return Proposal{}, false, nil
	}

	out := p.Clone()
	side := out.side(benefactor)

	for i, o := range *side {
		if o.Item.ID != desire.Desired.ID {
			continue
		}
		qty := o.Quantity + 1
		giverValue, err := d.BenefitOf(ctx, benefactor, o.Item.ID, qty)
		if err != nil {
			return Proposal{}, false, fmt.Errorf("failed to value offer for giver: %w", err)
		}
		(*side)[i] = Offer{
			Item:          o.Item,
			Quantity:      qty,
			ReceiverValue: desire.BenefitOf(qty),
			GiverValue:    giverValue,
		}
		return out, true, nil
	}

	qty := rng.IntN(maxOfferQuantity) + 1
	giverValue, err := d.BenefitOf(ctx, benefactor, desire.Desired.ID, qty)
	if err != nil {
		return Proposal{}, false, fmt.Errorf("failed to value offer for giver: %w", err)
	}
	*side = append(*side, Offer{
		Item:          desire.Desired,
		Quantity:      qty,
		ReceiverValue: desire.BenefitOf(qty),
		GiverValue:    giverValue,
	})
	return out, true, nil
}

// AddInitialAsk seeds p with something asker wants from askedOf
func AddInitialAsk(ctx context.Context, d Desires, rng *rand.Rand, p Proposal, asker, askedOf int64) (Proposal, bool, error) {
	return AddRandomBenefit(ctx, d, rng, p, asker, askedOf)
}

// MutateBetterForMe makes a single stochastic edit that favors me: drop one of
// my terms or add a benefit for me. The bool is false if the edit produced
// nothing new or a proposal without substance.
func MutateBetterForMe(ctx context.Context, d Desires, rng *rand.Rand, p Proposal, me int64) (Proposal, bool, error) {
	return mutate(ctx, d, rng, p, me, p.Counterparty(me))
}

// MutateBetterForOther makes a single stochastic edit that favors the other
// party: drop one of their terms or add a benefit for them.
func MutateBetterForOther(ctx context.Context, d Desires, rng *rand.Rand, p Proposal, me int64) (Proposal, bool, error) {
	return mutate(ctx, d, rng, p, p.Counterparty(me), me)
}

func mutate(ctx context.Context, d Desires, rng *rand.Rand, p Proposal, favored, other int64) (Proposal, bool, error) {
	var (
		candidate Proposal
		ok        bool
		err       error
	)

	givenByFavored := p.Gives(favored)
	if len(givenByFavored) > 0 && rng.IntN(2) == 0 {
		candidate = p.Clone()
		side := candidate.side(favored)
		i := rng.IntN(len(*side))
		*side = append((*side)[:i], (*side)[i+1:]...)
		ok = true
	} else {
		candidate, ok, err = AddRandomBenefit(ctx, d, rng, p, favored, other)
		if err != nil {
			return Proposal{}, false, err
		}
	}

	if !ok || candidate.Equal(p) || !candidate.HasSubstance() {
		return Proposal{}, false, nil
	}
	return candidate, true, nil
}

// BestMutation samples SampleSize mutations of p and keeps the one with the
// highest Evaluate(self) whose hash has not been traversed yet. forMe selects
// MutateBetterForMe over MutateBetterForOther.
func BestMutation(ctx context.Context, d Desires, rng *rand.Rand, p Proposal, self int64, forMe bool, traversed func(hash uint64) bool) (Proposal, bool, error) {
	var (
		best  Proposal
		found bool
	)

	for i := 0; i < SampleSize; i++ {
		var (
			candidate Proposal
			ok        bool
			err       error
		)
		if forMe {
			candidate, ok, err = MutateBetterForMe(ctx, d, rng, p, self)
		} else {
			candidate, ok, err = MutateBetterForOther(ctx, d, rng, p, self)
		}
		if err != nil {
			return Proposal{}, false, err
		}
		if !ok {
			continue
		}
		if traversed != nil && traversed(candidate.Hash()) {
			continue
		}
		if !found || candidate.Evaluate(self) > best.Evaluate(self) {
			best = candidate
			found = true
		}
	}
	return best, found, nil
}
