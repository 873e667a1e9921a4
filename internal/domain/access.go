package domain

import "fmt"

const (
	// DefaultFreeLimit is how many leading items a non-entitled caller sees.
	DefaultFreeLimit = 3

	defaultUpsellFormat = "Subscribe for %s to see all %d signals"
	defaultPriceLabel   = "₹499"
)

// AccessPolicy trims an ordered result to what a caller's entitlement allows.
// Truncation is always a prefix of the producer's ordering.
type AccessPolicy struct {
	FreeLimit  int
	PriceLabel string
}

// NewAccessPolicy returns a policy with the given price label and the
// default free cutoff.
func NewAccessPolicy(priceLabel string) AccessPolicy {
	if priceLabel == "" {
		priceLabel = defaultPriceLabel
	}
	return AccessPolicy{FreeLimit: DefaultFreeLimit, PriceLabel: priceLabel}
}

// Project applies the policy. Entitled callers get the full sequence and no
// note. Everyone else gets the first FreeLimit items and an upsell note that
// names the full item count.
func Project[T any](p AccessPolicy, items []T, entitled bool) ([]T, *string) {
	if entitled {
		return items, nil
	}

	limit := p.FreeLimit
	if limit <= 0 {
		limit = DefaultFreeLimit
	}
	if limit > len(items) {
		limit = len(items)
	}
	visible := make([]T, limit)
	copy(visible, items[:limit])

	label := p.PriceLabel
	if label == "" {
		label = defaultPriceLabel
	}
	note := fmt.Sprintf(defaultUpsellFormat, label, len(items))
	return visible, &note
}
