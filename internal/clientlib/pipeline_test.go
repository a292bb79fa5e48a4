package clientlib

import (
	"context"
	"testing"
	"time"

	"github.com/wasabipesto/niceengine/pkg/models"
)

func TestStateStringer(t *testing.T) {
	cases := map[State]string{
		StateIdle:       "idle",
		StateClaiming:   "claiming",
		StateProcessing: "processing",
		StateSubmitting: "submitting",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("state %d: got %q, want %q", state, got, want)
		}
	}
}

func TestWithRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	result, err := withRetry(context.Background(), defaultBackoffMaxTrys, func() (int, error) {
		calls++
		return 42, nil
	})
	if err != nil || result != 42 || calls != 1 {
		t.Fatalf("expected single successful call, got result=%d err=%v calls=%d", result, err, calls)
	}
}

func TestWithRetryStopsImmediatelyOnNoFieldAvailable(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), defaultBackoffMaxTrys, func() (int, error) {
		calls++
		return 0, ErrNoFieldAvailable
	})
	if err != ErrNoFieldAvailable || calls != 1 {
		t.Fatalf("expected one call and ErrNoFieldAvailable, got calls=%d err=%v", calls, err)
	}
}

func TestWithRetryStopsImmediatelyOnPermanentStatusError(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), defaultBackoffMaxTrys, func() (int, error) {
		calls++
		return 0, &StatusError{Op: "submit", Code: 400, Body: "bad request"}
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected one call and a surfaced error for a 4xx status, got calls=%d err=%v", calls, err)
	}
}

func TestWithRetryRetriesOnServerError(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), defaultBackoffMaxTrys, func() (int, error) {
		calls++
		if calls < 2 {
			return 0, &StatusError{Op: "submit", Code: 503, Body: "unavailable"}
		}
		return 7, nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected a retry after a 5xx status then success, got calls=%d err=%v", calls, err)
	}
}

func TestWithRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := withRetry(ctx, defaultBackoffMaxTrys, func() (int, error) {
		calls++
		return 0, context.DeadlineExceeded
	})
	if err == nil {
		t.Fatalf("expected error after context cancellation")
	}
	if calls != 1 {
		t.Fatalf("expected exactly one attempt before the cancelled sleep returns, got %d", calls)
	}
}

func TestPipelineFieldCountersStartAtZero(t *testing.T) {
	p := NewPipeline(NewAPIClient(Config{BaseURL: "http://localhost:0", Timeout: time.Millisecond}), PipelineOptions{
		Mode: models.ModeNiceOnly,
	})
	if p.FieldsClaimed() != 0 || p.FieldsSolved() != 0 {
		t.Fatalf("expected zero counters on a fresh pipeline")
	}
	if p.State() != StateIdle {
		t.Fatalf("expected fresh pipeline to start idle")
	}
}
