package products

// FilterByPrice keeps the products priced within [lo, hi]. A nil bound is
// open. The input order is preserved.
func FilterByPrice(list []*Product, lo, hi *float64) []*Product {
	out := make([]*Product, 0, len(list))
	for _, p := range list {
		if lo != nil && p.Price < *lo {
			continue
		}
		if hi != nil && p.Price > *hi {
			continue
		}
		out = append(out, p)
	}
	return out
}
