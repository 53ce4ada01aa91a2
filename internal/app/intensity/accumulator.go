// Package intensity provides the saturating combat-pressure accumulator.
package intensity

import (
	"math"

	"github.com/cockroachdb/errors"
)

// ErrInvalidThreshold is returned for a non-positive threshold.
var ErrInvalidThreshold = errors.New("threshold must be positive")

// Accumulator sums weighted threat contributions into a bucket clamped to
// [0, math.MaxInt]. Overlapping low-weight threats combine before a single
// departure can drop the bucket below the threshold.
type Accumulator struct {
	bucket    int
	threshold int
}

// New creates an accumulator with an empty bucket.
func New(threshold int) (*Accumulator, error) {
	if threshold <= 0 {
		return nil, errors.Wrapf(ErrInvalidThreshold, "got %d", threshold)
	}
	return &Accumulator{threshold: threshold}, nil
}

// Add adds weight to the bucket. A negative weight subtracts.
func (a *Accumulator) Add(weight int) {
	if weight >= 0 {
		a.increase(weight)
		return
	}
	if weight == math.MinInt {
		a.bucket = 0
		return
	}
	a.decrease(-weight)
}

// Subtract removes weight from the bucket. A negative weight adds.
func (a *Accumulator) Subtract(weight int) {
	if weight >= 0 {
		a.decrease(weight)
		return
	}
	if weight == math.MinInt {
		a.bucket = math.MaxInt
		return
	}
	a.increase(-weight)
}

// IsAboveThreshold returns true when the bucket has reached the threshold.
func (a *Accumulator) IsAboveThreshold() bool {
	return a.bucket >= a.threshold
}

// Bucket returns the current bucket value.
func (a *Accumulator) Bucket() int {
	return a.bucket
}

// Threshold returns the configured threshold.
func (a *Accumulator) Threshold() int {
	return a.threshold
}

// Reset empties the bucket.
func (a *Accumulator) Reset() {
	a.bucket = 0
}

// increase adds w >= 0, saturating at math.MaxInt.
func (a *Accumulator) increase(w int) {
	if a.bucket > math.MaxInt-w {
		a.bucket = math.MaxInt
		return
	}
	a.bucket += w
}

// decrease subtracts w >= 0, saturating at 0.
func (a *Accumulator) decrease(w int) {
	if w >= a.bucket {
		a.bucket = 0
		return
	}
	a.bucket -= w
}
