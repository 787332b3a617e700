package wlm

import "time"

// Clock supplies the instants used to measure queue wait. Readings must
// be monotonic: a later call never returns an earlier instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the process clock. time.Now values carry Go's
// monotonic reading, so durations computed from them are immune to
// wall-clock adjustments.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
