package performance

import (
	"math"

	"github.com/dealerops/incentive-engine/internal/models"
)

// Status is the verdict of comparing an actual value to a target.
type Status string

const (
	StatusMet     Status = "met"
	StatusClose   Status = "close"
	StatusMissed  Status = "missed"
	StatusPending Status = "pending"
)

// CloseBand is the variance, in percent of the target, still counted as close.
const CloseBand = 10.0

// Variance is the signed distance of actual from target in percent of |target|.
// It is undefined for a zero target, reported as ok=false.
func Variance(actual, target float64) (variance float64, ok bool) {
	if target == 0 {
		return 0, false
	}
	return (actual - target) / math.Abs(target) * 100, true
}

// Classify compares actual to target. A nil actual is pending. With a zero
// target anything that does not meet it is missed, since no percentage
// distance exists.
func Classify(actual *float64, target float64, direction models.TargetDirection) Status {
	if actual == nil {
		return StatusPending
	}
	a := *actual

	if direction == models.DirectionBelow {
		if a <= target {
			return StatusMet
		}
		v, ok := Variance(a, target)
		if ok && v <= CloseBand {
			return StatusClose
		}
		return StatusMissed
	}

	if a >= target {
		return StatusMet
	}
	v, ok := Variance(a, target)
	if ok && v >= -CloseBand {
		return StatusClose
	}
	return StatusMissed
}

// Progress is the percent-to-target of actual, clamped to 0..100.
func Progress(actual, target float64, direction models.TargetDirection) float64 {
	var progress float64
	switch {
	case direction == models.DirectionBelow && actual <= target:
		progress = 1
	case direction == models.DirectionBelow:
		if actual == 0 {
			return 0
		}
		progress = target / actual
	case target == 0:
		if actual >= 0 {
			progress = 1
		}
	default:
		progress = actual / target
	}

	if math.IsNaN(progress) || math.IsInf(progress, 0) {
		return 0
	}
	return math.Max(0, math.Min(1, progress)) * 100
}
