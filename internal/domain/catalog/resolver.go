package catalog

import "strings"

// sizeOptionTokens identifies option names that carry sizing information.
// Matching is by case-insensitive substring, so "Waist Size" and "shoe_size"
// both qualify.
var sizeOptionTokens = []string{"size", "waist", "inseam", "length", "shoe", "foot"}

// ResolveVariant picks the purchasable variant for a requested size token.
//
// The tie-break order is fixed: size-like option value match, exact title
// match, composite-title segment match ("Red / M"), then the first variant
// as a lenient fallback. For a product with at least one variant the
// function never fails; callers that need strict availability must check
// Variant.AvailableForSale separately.
func ResolveVariant(p *Product, requestedSize string) (*Variant, error) {
	if len(p.Variants) == 0 {
		return nil, ErrNoPurchasableVariant
	}

	want := strings.ToLower(strings.TrimSpace(requestedSize))
	if want == "" {
		return &p.Variants[0], nil
	}

	for i := range p.Variants {
		v := &p.Variants[i]
		for name, value := range v.OptionValues {
			if isSizeOption(name) && strings.EqualFold(strings.TrimSpace(value), want) {
				return v, nil
			}
		}
	}

	for i := range p.Variants {
		v := &p.Variants[i]
		if strings.EqualFold(strings.TrimSpace(v.Title), want) {
			return v, nil
		}
	}

	for i := range p.Variants {
		v := &p.Variants[i]
		for _, seg := range strings.Split(v.Title, "/") {
			if strings.EqualFold(strings.TrimSpace(seg), want) {
				return v, nil
			}
		}
	}

	return &p.Variants[0], nil
}

func isSizeOption(name string) bool {
	lower := strings.ToLower(name)
	for _, tok := range sizeOptionTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}
