package pricing

import (
	"context"
	"sort"
	"time"
)

// CandidateSource lists discount candidates bound to a product. The
// source may pre-filter on activity and dates; the resolver re-checks
// every condition so results stay deterministic regardless of backend.
type CandidateSource interface {
	ListCandidates(ctx context.Context, productID int64) ([]Candidate, error)
}

// ResolveInput carries the full resolution context.
type ResolveInput struct {
	ProductID       int64
	Quantity        float64
	StoreID         string
	CustomerGroupID int64 // zero when the customer has no group
	AsOf            time.Time
	CouponCode      string
}

// Resolver reduces candidate discount rules to one effective adjustment.
type Resolver struct {
	source       CandidateSource
	defaultScope ScopePolicy
}

// NewResolver builds a Resolver. defaultScope decides how rules without
// scoping rows behave.
func NewResolver(source CandidateSource, defaultScope ScopePolicy) *Resolver {
	if defaultScope == "" {
		defaultScope = ScopeAllStores
	}
	return &Resolver{source: source, defaultScope: defaultScope}
}

// Resolve returns the effective discount for the inputs, or nil when no
// rule matches. A nil result is not an error: callers treat it as the
// identity operation in the price cascade.
func (r *Resolver) Resolve(ctx context.Context, in ResolveInput) (*EffectiveDiscount, error) {
	if in.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	asOf := in.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}

	candidates, err := r.source.ListCandidates(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}

	var survivors []Candidate
	for _, c := range candidates {
		if !r.applies(c, in, asOf) {
			continue
		}
		survivors = append(survivors, c)
	}
	if len(survivors) == 0 {
		return nil, nil
	}

	var cumulative []Candidate
	var winner *Candidate
	for i := range survivors {
		c := survivors[i]
		if c.Rule.Cumulative {
			cumulative = append(cumulative, c)
			continue
		}
		if winner == nil || beats(c, *winner) {
			winner = &survivors[i]
		}
	}

	effective := &EffectiveDiscount{}
	if winner != nil {
		effective.Adjustments = append(effective.Adjustments, adjustment(*winner))
		if winner.Discount.Kind == KindSpecialPrice {
			// Terminal: nothing stacks on a special price.
			return effective, nil
		}
	}

	// Cumulative rules stack in a fixed order so resolution stays
	// deterministic even when kinds mix.
	sort.Slice(cumulative, func(i, j int) bool {
		return beats(cumulative[i], cumulative[j])
	})
	for _, c := range cumulative {
		effective.Adjustments = append(effective.Adjustments, adjustment(c))
		if c.Discount.Kind == KindSpecialPrice {
			break
		}
	}
	if len(effective.Adjustments) == 0 {
		return nil, nil
	}
	return effective, nil
}

// applies checks activity, validity window, quantity band, coupon gate
// and store/customer-group scoping for one candidate.
func (r *Resolver) applies(c Candidate, in ResolveInput, asOf time.Time) bool {
	d := c.Discount
	if !d.Active {
		return false
	}
	if asOf.Before(d.StartsAt) {
		return false
	}
	if d.EndsAt != nil && asOf.After(*d.EndsAt) {
		return false
	}
	if in.Quantity < c.Rule.MinQty {
		return false
	}
	if c.Rule.MaxQty != nil && in.Quantity > *c.Rule.MaxQty {
		return false
	}
	if d.CouponCode != "" && d.CouponCode != in.CouponCode {
		return false
	}
	if !r.inScope(c.StoreIDs, in.StoreID) {
		return false
	}
	if len(c.CustomerGroupIDs) > 0 {
		if in.CustomerGroupID == 0 {
			return false
		}
		found := false
		for _, id := range c.CustomerGroupIDs {
			if id == in.CustomerGroupID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (r *Resolver) inScope(storeIDs []string, storeID string) bool {
	if len(storeIDs) == 0 {
		return r.defaultScope == ScopeAllStores
	}
	for _, id := range storeIDs {
		if id == storeID {
			return true
		}
	}
	return false
}

// beats orders candidates: higher priority wins, ties broken by the most
// recently created rule (highest discount ID).
func beats(a, b Candidate) bool {
	if a.Rule.Priority != b.Rule.Priority {
		return a.Rule.Priority > b.Rule.Priority
	}
	return a.Discount.ID > b.Discount.ID
}

func adjustment(c Candidate) Adjustment {
	return Adjustment{DiscountID: c.Discount.ID, Kind: c.Discount.Kind, Value: c.Discount.Value}
}
