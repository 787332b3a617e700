package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bryanktliu/djl-serving/pkg/wlm"
)

func upperModel() *wlm.ModelInfo[string, string] {
	return &wlm.ModelInfo[string, string]{
		Name:      "upper",
		Version:   "1",
		QueueSize: 16,
		Predictor: func(ctx context.Context, input string) (string, error) {
			return strings.ToUpper(input), nil
		},
	}
}

func startDispatcher(t *testing.T, queueSize, concurrency int) (*Dispatcher[string, string], context.CancelFunc) {
	t.Helper()
	d := New[string, string](queueSize, concurrency)
	ctx, cancel := context.WithCancel(context.Background())
	go d.Start(ctx)
	return d, cancel
}

func TestSubmitReturnsResult(t *testing.T) {
	d, cancel := startDispatcher(t, 16, 2)
	defer cancel()

	model := upperModel()
	out, err := d.Submit(context.Background(), wlm.New(model, "hello"))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	select {
	case res := <-out:
		if res.Err != nil {
			t.Fatalf("unexpected error: %v", res.Err)
		}
		if res.Output != "HELLO" {
			t.Errorf("Output = %q, want %q", res.Output, "HELLO")
		}
		if res.WaitingUs < 0 {
			t.Errorf("WaitingUs = %d, want >= 0", res.WaitingUs)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for result")
	}
}

func TestPredictorErrorPropagates(t *testing.T) {
	d, cancel := startDispatcher(t, 4, 1)
	defer cancel()

	wantErr := errors.New("engine unavailable")
	model := &wlm.ModelInfo[string, string]{
		Name: "broken",
		Predictor: func(ctx context.Context, input string) (string, error) {
			return "", wantErr
		},
	}

	out, err := d.Submit(context.Background(), wlm.New(model, "hello"))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	res := <-out
	if !errors.Is(res.Err, wantErr) {
		t.Errorf("Err = %v, want %v", res.Err, wantErr)
	}
}

func TestPredictorPanicBecomesError(t *testing.T) {
	d, cancel := startDispatcher(t, 4, 1)
	defer cancel()

	model := &wlm.ModelInfo[string, string]{
		Name: "panicky",
		Predictor: func(ctx context.Context, input string) (string, error) {
			panic("engine crashed")
		},
	}

	out, err := d.Submit(context.Background(), wlm.New(model, "hello"))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	res := <-out
	if res.Err == nil || !strings.Contains(res.Err.Error(), "predictor panic") {
		t.Errorf("Err = %v, want predictor panic error", res.Err)
	}

	// Worker survives the panic and keeps serving.
	out, err = d.Submit(context.Background(), wlm.New(upperModel(), "still alive"))
	if err != nil {
		t.Fatalf("Submit after panic failed: %v", err)
	}
	res = <-out
	if res.Err != nil || res.Output != "STILL ALIVE" {
		t.Errorf("worker did not recover: output=%q err=%v", res.Output, res.Err)
	}
}

func TestSubmitHonorsContextWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	model := &wlm.ModelInfo[string, string]{
		Name: "slow",
		Predictor: func(ctx context.Context, input string) (string, error) {
			<-block
			return input, nil
		},
	}

	d, cancel := startDispatcher(t, 1, 1)
	defer cancel()
	defer close(block)

	// One job executing, one in the queue; the third submit must block.
	if _, err := d.Submit(context.Background(), wlm.New(model, "a")); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	// Wait for the worker to pick up the first job so the queue slot frees.
	deadline := time.Now().Add(2 * time.Second)
	for d.Stats().Active == 0 {
		if time.Now().After(deadline) {
			t.Fatal("worker never picked up first job")
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := d.Submit(context.Background(), wlm.New(model, "b")); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	ctx, ctxCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer ctxCancel()
	if _, err := d.Submit(ctx, wlm.New(model, "c")); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Submit on full queue returned %v, want deadline exceeded", err)
	}
}

func TestConcurrentSubmissionsKeepResultsIsolated(t *testing.T) {
	const jobs = 100

	d, cancel := startDispatcher(t, 32, 4)
	defer cancel()

	model := upperModel()
	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			input := fmt.Sprintf("job-%d", i)
			out, err := d.Submit(context.Background(), wlm.New(model, input))
			if err != nil {
				t.Errorf("Submit %d failed: %v", i, err)
				return
			}
			res := <-out
			if res.Output != strings.ToUpper(input) {
				t.Errorf("job %d got output %q", i, res.Output)
			}
		}(i)
	}
	wg.Wait()

	stats := d.Stats()
	if stats.Pending != 0 || stats.Active != 0 {
		t.Errorf("Stats after drain = %+v, want zeros", stats)
	}
}
