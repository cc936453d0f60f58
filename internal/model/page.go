package model

// Page selects a 1-based page of a listing.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps Number to at least 1 and falls back to def for Size.
func (p Page) Normalize(def int) Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = def
	}
	return p
}

// Offset is the number of rows skipped before this page.
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// Window returns the [lo, hi) bounds of this page within n items.
func (p Page) Window(n int) (int, int) {
	lo := p.Offset()
	if lo > n {
		lo = n
	}
	hi := lo + p.Size
	if hi > n {
		hi = n
	}
	return lo, hi
}
