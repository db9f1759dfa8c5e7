package jobs

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// LinearBackOff yields Step, 2*Step, 3*Step, ... capped at Max when Max > 0.
type LinearBackOff struct {
	Step time.Duration
	Max  time.Duration

	n int
}

var _ backoff.BackOff = (*LinearBackOff)(nil)

// NewLinearBackOff returns a fresh LinearBackOff.
func NewLinearBackOff(step time.Duration) *LinearBackOff {
	return &LinearBackOff{Step: step}
}

func (b *LinearBackOff) NextBackOff() time.Duration {
	b.n++
	d := b.Step * time.Duration(b.n)
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}

func (b *LinearBackOff) Reset() { b.n = 0 }
