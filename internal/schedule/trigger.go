// Package schedule provides the go-quartz trigger behind C7's
// health-sampling loop, its one periodic loop. The loop wants this
// shape: fire once immediately, then on a fixed interval, with a little
// jitter so a
// fleet of identically-configured workloads doesn't all sample in
// lockstep.
package schedule

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/reugn/go-quartz/quartz"
)

// ImmediateTrigger fires once as soon as it's scheduled, then falls
// back to a quartz.SimpleTrigger on the given interval, with up to
// jitterPercent% of extra delay added to each subsequent fire to avoid
// thundering-herd collisions across many workloads sharing an interval.
type ImmediateTrigger struct {
	firedOnce     bool
	jitterPercent int
	interval      *quartz.SimpleTrigger
}

// NewImmediateTrigger builds a trigger for the given interval and
// jitter percentage (0 disables jitter).
func NewImmediateTrigger(interval time.Duration, jitterPercent int) *ImmediateTrigger {
	return &ImmediateTrigger{
		jitterPercent: jitterPercent,
		interval:      quartz.NewSimpleTrigger(interval),
	}
}

func (t *ImmediateTrigger) NextFireTime(prev int64) (int64, error) {
	if !t.firedOnce {
		t.firedOnce = true
		return prev, nil
	}

	next, err := t.interval.NextFireTime(prev)
	if err != nil {
		return 0, err
	}
	return next + jitter(t.interval.Interval, t.jitterPercent).Nanoseconds(), nil
}

func (t *ImmediateTrigger) Description() string {
	return fmt.Sprintf("ImmediateTrigger-%s", t.interval.Interval)
}

func jitter(d time.Duration, jitterPercent int) time.Duration {
	if jitterPercent <= 0 {
		return 0
	}
	fraction := float64(jitterPercent) / 100.0
	maxJitter := float64(d) * fraction
	return time.Duration(rand.Float64() * maxJitter) //nolint:gosec // non-crypto usage
}
