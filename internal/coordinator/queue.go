package coordinator

import (
	"context"
	"log"

	"github.com/wasabipesto/niceengine/pkg/models"
)

// submitJob is one deferred niceonly submission: everything processSubmission
// needs, captured at enqueue time so the drain goroutine never touches the
// gin request/response.
type submitJob struct {
	claim models.Claim
	field models.Field
	sub   models.Submission
}

// SubmissionQueue is a bounded MPSC channel: request handlers enqueue
// niceonly submissions non-blockingly and return immediately (3-5ms target
// latency); a single consumer goroutine drains the channel into the store
// at its own pace. A full queue falls back to synchronous processing
// rather than blocking the producer.
//
// Crash safety: queued-but-undrained jobs are lost on process restart.
// This is acceptable since niceonly fields can be re-claimed and
// re-verified; only the always-synchronous detailed path drives canonical
// aggregation.
type SubmissionQueue struct {
	jobs chan submitJob
	h    *Handler
}

// NewSubmissionQueue builds a queue of the given capacity bound to h. Call
// Run in its own goroutine to start draining.
func NewSubmissionQueue(h *Handler, capacity int) *SubmissionQueue {
	return &SubmissionQueue{jobs: make(chan submitJob, capacity), h: h}
}

// TryEnqueue attempts a non-blocking enqueue and reports whether it
// succeeded. Callers must fall back to synchronous processing on false.
func (q *SubmissionQueue) TryEnqueue(job submitJob) bool {
	select {
	case q.jobs <- job:
		return true
	default:
		return false
	}
}

// Run drains the queue until ctx is cancelled, processing one job at a
// time. Errors are logged, not surfaced — there is no request left to
// respond to.
func (q *SubmissionQueue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			if _, _, err := q.h.processSubmission(ctx, job.claim, job.field, job.sub); err != nil {
				log.Printf("[coordinator] deferred niceonly submission failed: %v", err)
			}
		}
	}
}
