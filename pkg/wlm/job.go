package wlm

import "time"

// Job is the envelope carrying one inference request from admission to a
// worker. It binds the target model, the input payload, and the instant
// the request was accepted. A job is immutable after construction and
// holds no result: the output travels back out-of-band through whatever
// channel the dispatcher set up for the submission.
type Job[I, O any] struct {
	model *ModelInfo[I, O]
	input I
	clock Clock
	begin time.Time
}

// New constructs a job for the given model and input, capturing the
// monotonic clock at the moment of admission. It allocates nothing
// beyond the envelope itself and is safe to call from any number of
// concurrent admission goroutines.
func New[I, O any](model *ModelInfo[I, O], input I) *Job[I, O] {
	return NewWithClock(model, input, SystemClock{})
}

// NewWithClock is New with an injected clock. Tests use it to drive
// wait time deterministically; production code wants New.
func NewWithClock[I, O any](model *ModelInfo[I, O], input I, clock Clock) *Job[I, O] {
	return &Job[I, O]{
		model: model,
		input: input,
		clock: clock,
		begin: clock.Now(),
	}
}

// Model returns the model this job targets.
func (j *Job[I, O]) Model() *ModelInfo[I, O] {
	return j.model
}

// Input returns the request payload. The consuming worker takes logical
// ownership of the payload when it extracts it; concurrent consumers
// must not mutate a shared payload expecting isolation.
func (j *Job[I, O]) Input() I {
	return j.input
}

// WaitingMicroseconds reports how long the job has been waiting since
// construction, in whole microseconds (sub-microsecond remainder
// truncated). time.Time subtraction uses the monotonic reading when
// both instants carry one, so the result is never negative and never
// decreases across calls on the same job.
func (j *Job[I, O]) WaitingMicroseconds() int64 {
	return j.clock.Now().Sub(j.begin).Microseconds()
}
