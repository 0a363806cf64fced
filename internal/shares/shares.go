// Package shares splits a contract payout among its participants.
package shares

import (
	"fmt"
	"math"
)

// FullShare is the percentage a contract's participants divide between them.
const FullShare = 100.0

// Tolerance used when comparing percentage sums.
const Epsilon = 1e-9

type Participant struct {
	ID              string
	SharePercentage float64
	// ManualOverride pins SharePercentage; Allocate never changes it.
	ManualOverride bool
}

// InvalidShareError reports manual shares that add up to more than 100%.
// Allocate still returns the computed shares alongside it.
type InvalidShareError struct {
	ManualTotal float64
	// AutoShare is the (negative) share each free participant received.
	AutoShare float64
}

func (e *InvalidShareError) Error() string {
	return fmt.Sprintf("manual shares total %.2f%% exceeds %.0f%%", e.ManualTotal, FullShare)
}

// Allocate gives every participant without a manual override an equal part of
// whatever the overridden participants leave of 100%. Order and membership are
// preserved and the input slice is not modified.
func Allocate(ps []Participant) ([]Participant, error) {
	out := make([]Participant, len(ps))
	copy(out, ps)

	var manualTotal float64
	free := 0
	for _, p := range ps {
		if p.ManualOverride {
			manualTotal += p.SharePercentage
		} else {
			free++
		}
	}

	var err error
	if manualTotal > FullShare+Epsilon {
		err = &InvalidShareError{ManualTotal: manualTotal}
	}
	if free == 0 {
		return out, err
	}

	equal := (FullShare - manualTotal) / float64(free)
	for i := range out {
		if !out[i].ManualOverride {
			out[i].SharePercentage = equal
		}
	}
	if ise, ok := err.(*InvalidShareError); ok {
		ise.AutoShare = equal
	}
	return out, err
}

// Total sums the shares of ps.
func Total(ps []Participant) float64 {
	var sum float64
	for _, p := range ps {
		sum += p.SharePercentage
	}
	return sum
}

// Changed returns the participants of after whose share differs from the
// participant at the same index in before.
func Changed(before, after []Participant) []Participant {
	var out []Participant
	for i := range after {
		if i >= len(before) || before[i].SharePercentage != after[i].SharePercentage {
			out = append(out, after[i])
		}
	}
	return out
}

// Payout is the UEC amount a share of target is worth, rounded half away
// from zero to two decimals.
func Payout(target, sharePercentage float64) float64 {
	return math.Round(target*sharePercentage/FullShare*100) / 100
}
