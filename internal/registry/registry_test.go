package registry

import (
	"context"
	"testing"

	"github.com/bryanktliu/djl-serving/pkg/wlm"
)

func model(name, version string) *wlm.ModelInfo[string, string] {
	return &wlm.ModelInfo[string, string]{
		Name:      name,
		Version:   version,
		QueueSize: 4,
		Predictor: func(ctx context.Context, input string) (string, error) {
			return input, nil
		},
	}
}

func TestRegisterAndLookup(t *testing.T) {
	r := New[string, string](nil)

	m := model("echo", "1")
	if err := r.Register(context.Background(), m); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, ok := r.Lookup("echo:1")
	if !ok || got != m {
		t.Error("Lookup by full ID did not return the registered model")
	}

	got, ok = r.Lookup("echo")
	if !ok || got != m {
		t.Error("Lookup by bare name did not return the registered model")
	}

	if _, ok := r.Lookup("missing"); ok {
		t.Error("Lookup of unregistered model should fail")
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := New[string, string](nil)

	if err := r.Register(context.Background(), model("echo", "1")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(context.Background(), model("echo", "1")); err == nil {
		t.Error("Expected error registering the same ID twice")
	}
}

func TestRegisterRequiresName(t *testing.T) {
	r := New[string, string](nil)

	if err := r.Register(context.Background(), model("", "")); err == nil {
		t.Error("Expected error registering a model without a name")
	}
}

func TestBareNameTracksLatestRegistration(t *testing.T) {
	r := New[string, string](nil)

	v1 := model("echo", "1")
	v2 := model("echo", "2")
	if err := r.Register(context.Background(), v1); err != nil {
		t.Fatalf("Register v1 failed: %v", err)
	}
	if err := r.Register(context.Background(), v2); err != nil {
		t.Fatalf("Register v2 failed: %v", err)
	}

	got, ok := r.Lookup("echo")
	if !ok || got != v2 {
		t.Error("Bare name should resolve to the most recent registration")
	}

	if len(r.List()) != 2 {
		t.Errorf("List() returned %d models, want 2", len(r.List()))
	}
	if r.Size() != 2 {
		t.Errorf("Size() = %d, want 2", r.Size())
	}
}
