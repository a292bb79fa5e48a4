package coordinator

import (
	"testing"

	"github.com/wasabipesto/niceengine/pkg/models"
)

func TestSubmissionQueueTryEnqueueFillsUpToCapacity(t *testing.T) {
	q := NewSubmissionQueue(nil, 2)
	job := submitJob{sub: models.Submission{}}
	if !q.TryEnqueue(job) {
		t.Fatalf("expected first enqueue to succeed")
	}
	if !q.TryEnqueue(job) {
		t.Fatalf("expected second enqueue to succeed (capacity 2)")
	}
	if q.TryEnqueue(job) {
		t.Fatalf("expected third enqueue to fail once the queue is full, caller must fall back to synchronous processing")
	}
}

func TestSubmissionQueueDrainFreesCapacity(t *testing.T) {
	q := NewSubmissionQueue(nil, 1)
	job := submitJob{sub: models.Submission{}}
	if !q.TryEnqueue(job) {
		t.Fatalf("expected enqueue to succeed")
	}
	<-q.jobs
	if !q.TryEnqueue(job) {
		t.Fatalf("expected enqueue to succeed again after drain")
	}
}
