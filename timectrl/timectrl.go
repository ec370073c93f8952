// Package timectrl steps simulation time across an observation window.
package timectrl

import "time"

// StepClock advances simulation time from Start towards End by a fixed
// Step. It is not safe for concurrent use; every scan owns its own clock.
type StepClock struct {
	Start time.Time
	End   time.Time
	Step  time.Duration

	current time.Time
	steps   int
}

// NewStepClock constructs a clock positioned at start.
func NewStepClock(start, end time.Time, step time.Duration) *StepClock {
	return &StepClock{
		Start:   start,
		End:     end,
		Step:    step,
		current: start,
	}
}

// Now returns the current simulation time. After a failed Run it is the
// instant that failed.
func (c *StepClock) Now() time.Time {
	return c.current
}

// Steps returns how many times the clock has advanced.
func (c *StepClock) Steps() int {
	return c.steps
}

// Done reports whether the clock has reached End. A clock with a
// non-positive step is always done.
func (c *StepClock) Done() bool {
	return c.Step <= 0 || !c.current.Before(c.End)
}

// Advance moves the clock forward one step.
func (c *StepClock) Advance() time.Time {
	c.current = c.current.Add(c.Step)
	c.steps++
	return c.current
}

// Run calls fn at every instant in [Start, End) and advances after each
// call. It stops at the first error and leaves the clock on that instant.
func (c *StepClock) Run(fn func(time.Time) error) error {
	for !c.Done() {
		if err := fn(c.current); err != nil {
			return err
		}
		c.Advance()
	}
	return nil
}
