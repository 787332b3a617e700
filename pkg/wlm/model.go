package wlm

import "context"

// Predictor runs one inference for input type I producing output type O.
// The serving runtime treats it as opaque: whatever engine backs it
// (llama.cpp, an HTTP upstream, a stub in tests) is the caller's choice.
type Predictor[I, O any] func(ctx context.Context, input I) (O, error)

// ModelInfo describes a servable model. Jobs hold a borrowed reference
// to it, so a ModelInfo must outlive every job that targets it. The
// type parameters bind a job's input to the model's declared input type
// at compile time.
type ModelInfo[I, O any] struct {
	Name      string
	Version   string
	QueueSize int
	Predictor Predictor[I, O]
}

// ID returns the registry key for the model: "name:version", or just
// the name when no version is set.
func (m *ModelInfo[I, O]) ID() string {
	if m.Version == "" {
		return m.Name
	}
	return m.Name + ":" + m.Version
}
