// Package rating derives a title's average score from its reviews.
//
// The average is rounded half up: 7.5 becomes 8 and 6.5 becomes 7.  The
// computation is done in integer arithmetic so that no float rounding can
// flip a tie.  Nothing here caches; callers recompute on every read.
package rating

// Totals is the sum and count of a title's review scores.
type Totals struct {
	Sum   int
	Count int
}

// Add folds one score into t.
func (t Totals) Add(score int) Totals {
	return Totals{Sum: t.Sum + score, Count: t.Count + 1}
}

// Average returns the rounded mean of t, or nil when there are no scores.
func (t Totals) Average() *int {
	if t.Count <= 0 {
		return nil
	}
	// floor((2*sum + n) / 2n) == floor(sum/n + 1/2) for sum >= 0.
	avg := (2*t.Sum + t.Count) / (2 * t.Count)
	return &avg
}

// Average returns the rounded mean of scores, or nil when scores is empty.
func Average(scores []int) *int {
	var t Totals
	for _, s := range scores {
		t = t.Add(s)
	}
	return t.Average()
}
