package clientlib

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wasabipesto/niceengine/pkg/models"
)

// fakeCoordinator serves a bounded number of claims against a fixed tiny
// base-10 field range, then 204s forever, mimicking the coordination
// service's "nothing left to claim" response.
func fakeCoordinator(t *testing.T, totalFields int) (*httptest.Server, *int64) {
	t.Helper()
	var claimed int64
	var submitted int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/claim/", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&claimed, 1)
		if n > int64(totalFields) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		resp := models.ClaimResponse{
			ClaimID:    n,
			FieldID:    n,
			Base:       10,
			RangeStart: decimal.NewFromInt(60),
			RangeEnd:   decimal.NewFromInt(80),
			RangeSize:  decimal.NewFromInt(20),
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/v1/submit", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&submitted, 1)
		json.NewEncoder(w).Encode(map[string]any{"submission_id": 1, "disqualified": false})
	})
	return httptest.NewServer(mux), &submitted
}

func TestPipelineSequentialClaimsAndSubmitsEachField(t *testing.T) {
	srv, submitted := fakeCoordinator(t, 3)
	defer srv.Close()

	client := NewAPIClient(Config{BaseURL: srv.URL, Timeout: 2 * time.Second})
	p := NewPipeline(client, PipelineOptions{Mode: models.ModeNiceOnly, Threads: 1})

	if err := p.Run(t.Context(), 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.FieldsClaimed() != 3 {
		t.Fatalf("expected 3 fields claimed, got %d", p.FieldsClaimed())
	}
	if got := atomic.LoadInt64(submitted); got != 3 {
		t.Fatalf("expected 3 submissions, got %d", got)
	}
}

func TestPipelineConcurrentClaimsAndSubmitsEachField(t *testing.T) {
	srv, submitted := fakeCoordinator(t, 4)
	defer srv.Close()

	client := NewAPIClient(Config{BaseURL: srv.URL, Timeout: 2 * time.Second})
	p := NewPipeline(client, PipelineOptions{Mode: models.ModeNiceOnly, Threads: 1, Concurrent: true})

	if err := p.Run(t.Context(), 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.FieldsClaimed() != 4 {
		t.Fatalf("expected 4 fields claimed, got %d", p.FieldsClaimed())
	}
	if got := atomic.LoadInt64(submitted); got != 4 {
		t.Fatalf("expected 4 submissions under the pipelined path, got %d", got)
	}
}
