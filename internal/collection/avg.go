// Package collection holds small generic accumulators reused across
// the analytical core: a running weighted mean (Avg) and a
// filter-then-maximize helper (MaxIf).
package collection

// Avg is a running weighted mean. The zero value is usable and
// represents an empty average (Get returns 0).
type Avg struct {
	sum    float64
	amount float64
}

// Add records x with weight 1.
func (a *Avg) Add(x float64) {
	a.Add2(x, 1)
}

// Add2 adds x to the running sum and the positive weight y to the
// total weight. x is taken as already weighted (it is not multiplied
// by y), so Get returns the sum of all x over the sum of all y.
func (a *Avg) Add2(x, y float64) {
	if y <= 0 {
		panic("collection.Avg.Add2: weight must be positive")
	}
	a.sum += x
	a.amount += y
}

// Remove undoes a prior Add(x).
func (a *Avg) Remove(x float64) {
	a.Remove2(x, 1)
}

// Remove2 undoes a prior Add2(x, y).
func (a *Avg) Remove2(x, y float64) {
	if y <= 0 {
		panic("collection.Avg.Remove2: weight must be positive")
	}
	if a.amount < y {
		panic("collection.Avg.Remove2: removing more weight than recorded")
	}
	a.sum -= x
	a.amount -= y
}

// Get returns the current weighted mean, or 0 if nothing was recorded.
func (a Avg) Get() float64 {
	if a.amount == 0 {
		return 0
	}
	return a.sum / a.amount
}

// MaxIf filters items with pred, then returns the one maximizing key:
// items for which pred(item, key) is false are never candidates for
// the maximum, independent of what their key value would have been.
func MaxIf[T any, K interface{ ~float64 | ~int | ~int64 }](items []T, key func(T) K, pred func(T, K) bool) (T, bool) {
	var best T
	var bestKey K
	found := false
	for _, item := range items {
		k := key(item)
		if !pred(item, k) {
			continue
		}
		if !found || k > bestKey {
			best = item
			bestKey = k
			found = true
		}
	}
	return best, found
}
