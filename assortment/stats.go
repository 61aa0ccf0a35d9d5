/*
stats.go - Robust statistics over Money values

PURPOSE:
  The demand estimators in scanner.go and profitability.go are built on
  two robust central estimates:

  TrimmedMean:
    Drops values ranked below the low percentile or above the high
    percentile before averaging. One exceptionally strong or weak peer
    should not skew what we recommend to a missing store.

  Median:
    The plain median, used by the profitability screen. Deliberately NOT
    the trimmed mean - the screen wants a conservative, independent
    estimate (see profitability.go).

PERCENTILES:
  Computed with linear interpolation between closest ranks, the same
  convention the historical analysis used. For small samples the trim
  bounds may retain every value; that is correct behavior, not a bug.
*/
package assortment

import (
	"sort"

	"github.com/shopspring/decimal"
)

// sortedCopy returns the values sorted ascending without mutating input.
func sortedCopy(values []Money) []Money {
	out := make([]Money, len(values))
	copy(out, values)
	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	return out
}

// Percentile returns the p-th percentile (0-100) of values using linear
// interpolation between closest ranks. Panics on empty input; callers
// guard for that.
func Percentile(values []Money, p float64) Money {
	sorted := sortedCopy(values)
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}

	rank := p / 100 * float64(n-1)
	lo := int(rank)
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := decimal.NewFromFloat(rank - float64(lo))
	span := sorted[lo+1].Sub(sorted[lo])
	return sorted[lo].Add(span.Mul(frac))
}

// Median returns the plain median: the middle value, or the mean of the
// two middle values for even-sized samples.
func Median(values []Money) Money {
	sorted := sortedCopy(values)
	n := len(sorted)
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return Money{Value: sorted[mid-1].Add(sorted[mid]).Value.Div(decimal.NewFromInt(2))}
}

// Mean returns the arithmetic mean.
func Mean(values []Money) Money {
	total := ZeroMoney()
	for _, v := range values {
		total = total.Add(v)
	}
	return Money{Value: total.Value.Div(decimal.NewFromInt(int64(len(values))))}
}

// TrimmedMean averages the values that fall inside the [trim, 100-trim]
// percentile band, inclusive at both bounds. If trimming would discard
// everything (degenerate tiny samples), the plain mean is returned.
func TrimmedMean(values []Money, trim float64) Money {
	if len(values) == 0 {
		return ZeroMoney()
	}
	if len(values) <= 2 {
		// Nothing meaningful to trim.
		return Mean(values)
	}

	lo := Percentile(values, trim)
	hi := Percentile(values, 100-trim)

	var kept []Money
	for _, v := range values {
		if v.GreaterOrEqual(lo) && hi.GreaterOrEqual(v) {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return Mean(values)
	}
	return Mean(kept)
}
