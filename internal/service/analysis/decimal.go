package analysis

import (
	"math"
	"math/big"
	"strconv"

	"github.com/ignite/cohort-match/internal/domain"
)

var (
	hundred = big.NewRat(100, 1)
	half    = big.NewRat(1, 2)
)

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// decimal returns the exact value of the shortest decimal representation
// of v, so 0.1 is one tenth rather than the nearest binary fraction.
func decimal(v float64) *big.Rat {
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(v, 'f', -1, 64))
	if !ok {
		return new(big.Rat).SetFloat64(v)
	}
	return r
}

// roundHalfUp rounds r to two decimal places, halves away from zero.
func roundHalfUp(r *big.Rat) float64 {
	neg := r.Sign() < 0
	scaled := new(big.Rat).Abs(r)
	scaled.Mul(scaled, hundred)
	scaled.Add(scaled, half)

	q := new(big.Int).Quo(scaled.Num(), scaled.Denom())
	if neg {
		q.Neg(q)
	}
	out, _ := new(big.Rat).SetFrac(q, big.NewInt(100)).Float64()
	return out
}

// difference returns after - before rounded to two places.
func difference(before, after float64) float64 {
	return roundHalfUp(new(big.Rat).Sub(decimal(after), decimal(before)))
}

// accumulator averages the finite values it is given.
type accumulator struct {
	sum   *big.Rat
	count int64
}

func (a *accumulator) add(v *float64) {
	if v == nil || !isFinite(*v) {
		return
	}
	if a.sum == nil {
		a.sum = new(big.Rat)
	}
	a.sum.Add(a.sum, decimal(*v))
	a.count++
}

func (a *accumulator) average() domain.Average {
	if a.count == 0 {
		return domain.NoData
	}
	mean := new(big.Rat).Quo(a.sum, big.NewRat(a.count, 1))
	return domain.Average{Value: roundHalfUp(mean), HasData: true}
}

// summary accumulates the three averages of a MetricSummary.
type summary struct {
	before, after, delta accumulator
}

func (s *summary) add(before, after, delta *float64) {
	s.before.add(before)
	s.after.add(after)
	s.delta.add(delta)
}

func (s *summary) result() domain.MetricSummary {
	return domain.MetricSummary{
		Before: s.before.average(),
		After:  s.after.average(),
		Delta:  s.delta.average(),
	}
}
