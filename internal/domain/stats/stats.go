// Package stats computes descriptive statistics over fixed-point score values.
//
// All arithmetic stays in decimal; results are rounded half away from zero to
// Places decimals.
package stats

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Places is the number of decimals kept in derived values.
const Places = 2

const (
	sqrtPrecision  = 16
	sqrtIterations = 100
)

var (
	one = decimal.NewFromInt(1)
	two = decimal.NewFromInt(2)
)

// Summary aggregates a set of observations. The zero value describes an
// empty set.
type Summary struct {
	Count  int             `json:"count"`
	Mean   decimal.Decimal `json:"mean"`
	Median decimal.Decimal `json:"median"`
	Mode   decimal.Decimal `json:"mode"`
	StdDev decimal.Decimal `json:"std_dev"`
	Min    decimal.Decimal `json:"min"`
	Max    decimal.Decimal `json:"max"`
}

// Summarize computes every statistic over values.
func Summarize(values []decimal.Decimal) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	return Summary{
		Count:  len(values),
		Mean:   Mean(values),
		Median: Median(values),
		Mode:   Mode(values),
		StdDev: StdDev(values),
		Min:    decimal.Min(values[0], values[1:]...),
		Max:    decimal.Max(values[0], values[1:]...),
	}
}

// Mean returns the arithmetic mean, or 0 for no values.
func Mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return sum(values).DivRound(decimal.NewFromInt(int64(len(values))), Places)
}

// Median returns the middle value, averaging the two middle values for even
// counts.
func Median(values []decimal.Decimal) decimal.Decimal {
	n := len(values)
	if n == 0 {
		return decimal.Zero
	}
	sorted := sortedCopy(values)
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid].Round(Places)
	}
	return sorted[mid-1].Add(sorted[mid]).DivRound(two, Places)
}

// Mode returns the most frequent value. When several values share the
// highest frequency the smallest of them wins.
func Mode(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sorted := sortedCopy(values)
	best, bestCount := sorted[0], 0
	run := 0
	for i, v := range sorted {
		if i > 0 && v.Equal(sorted[i-1]) {
			run++
		} else {
			run = 1
		}
		// strict comparison keeps the earliest (smallest) value on ties
		if run > bestCount {
			best, bestCount = v, run
		}
	}
	return best.Round(Places)
}

// StdDev returns the sample standard deviation, or 0 for fewer than two
// values.
func StdDev(values []decimal.Decimal) decimal.Decimal {
	n := len(values)
	if n < 2 {
		return decimal.Zero
	}
	count := decimal.NewFromInt(int64(n))
	mean := sum(values).Div(count)
	squares := decimal.Zero
	for _, v := range values {
		d := v.Sub(mean)
		squares = squares.Add(d.Mul(d))
	}
	variance := squares.Div(count.Sub(one))
	return sqrt(variance).Round(Places)
}

func sum(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

func sortedCopy(values []decimal.Decimal) []decimal.Decimal {
	sorted := slices.Clone(values)
	slices.SortFunc(sorted, func(a, b decimal.Decimal) int { return a.Cmp(b) })
	return sorted
}

// sqrt uses Newton's method in decimal arithmetic.
func sqrt(v decimal.Decimal) decimal.Decimal {
	if v.Sign() <= 0 {
		return decimal.Zero
	}
	x := v
	if v.LessThan(one) {
		x = one
	}
	for range sqrtIterations {
		next := x.Add(v.DivRound(x, sqrtPrecision)).DivRound(two, sqrtPrecision)
		if next.Equal(x) {
			break
		}
		x = next
	}
	return x
}
