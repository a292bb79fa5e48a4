package clientlib

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/wasabipesto/niceengine/internal/engine"
	"github.com/wasabipesto/niceengine/pkg/models"
)

// State is the pipeline's lifecycle stage, tracked atomically so a status
// endpoint or CLI progress line can read it without locking.
type State int32

const (
	StateIdle State = iota
	StateClaiming
	StateProcessing
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateClaiming:
		return "claiming"
	case StateProcessing:
		return "processing"
	case StateSubmitting:
		return "submitting"
	default:
		return "idle"
	}
}

// PipelineOptions configures a worker's run loop.
type PipelineOptions struct {
	Mode          models.Mode
	Policy        string
	Username      string
	ClientVersion string
	Threads       int
	GPU           engine.DigitScanner
	// Concurrent lets the next field be claimed while the current one is
	// still being processed/submitted, overlapping network latency with
	// compute the way a pipelined fetch-decode-execute loop would.
	Concurrent bool
	// Validate enables cross-client validation: before submitting, fetch
	// the field's canon submission (if any) and abort the submit on
	// mismatch rather than sending a result known to disagree.
	Validate bool
	// MaxRetries overrides the default claim/submit attempt cap. Zero means
	// use the default of 10.
	MaxRetries int
	// ShowProgress logs a scanned/total line at a coarse interval while a
	// field is being processed.
	ShowProgress bool
}

// backoff schedule: 1s, 2s, 4s, ... capped at 512s, 10 attempts by default
// before giving up on a single claim/submit round (overridable via
// PipelineOptions.MaxRetries / api_max_retries).
const (
	backoffBase           = 1 * time.Second
	backoffCap            = 512 * time.Second
	defaultBackoffMaxTrys = 10
)

// Pipeline drives the Idle -> Claiming -> Processing -> Submitting -> Idle
// cycle against a coordination service, generalized from the mempool
// poller's ticker-plus-context.Done run loop.
type Pipeline struct {
	client *APIClient
	exec   *engine.Executor
	opts   PipelineOptions

	state              atomic.Int32
	fieldsClaimed      atomic.Int64
	fieldsSolved       atomic.Int64
	validationFailures atomic.Int64
}

func NewPipeline(client *APIClient, opts PipelineOptions) *Pipeline {
	return &Pipeline{
		client: client,
		exec:   engine.NewExecutor(),
		opts:   opts,
	}
}

func (p *Pipeline) State() State { return State(p.state.Load()) }

func (p *Pipeline) FieldsClaimed() int64      { return p.fieldsClaimed.Load() }
func (p *Pipeline) FieldsSolved() int64       { return p.fieldsSolved.Load() }
func (p *Pipeline) ValidationFailures() int64 { return p.validationFailures.Load() }

func (p *Pipeline) setState(s State) { p.state.Store(int32(s)) }

// Run drives the pipeline until ctx is cancelled or maxFields fields have
// been processed (0 means unbounded). When opts.Concurrent is set, the next
// field's claim and the previous field's submit both run on background
// goroutines while the current field is processed.
func (p *Pipeline) Run(ctx context.Context, maxFields int) error {
	if p.opts.Concurrent {
		return p.runPipelined(ctx, maxFields)
	}
	for i := 0; maxFields == 0 || i < maxFields; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := p.runOnce(ctx); err != nil {
			if err == ErrNoFieldAvailable {
				log.Println("[clientlib] no field available, backing off")
				time.Sleep(backoffBase)
				i--
				continue
			}
			return err
		}
	}
	p.setState(StateIdle)
	return nil
}

func (p *Pipeline) maxTries() int {
	if p.opts.MaxRetries > 0 {
		return p.opts.MaxRetries
	}
	return defaultBackoffMaxTrys
}

// runOnce claims one field, processes it, and submits the result
// sequentially, retrying transient failures with exponential backoff. Used
// when opts.Concurrent is false.
func (p *Pipeline) runOnce(ctx context.Context) error {
	p.setState(StateClaiming)
	claim, err := withRetry(ctx, p.maxTries(), func() (models.ClaimResponse, error) {
		return p.client.Claim(ctx, p.opts.Mode, p.opts.Policy)
	})
	if err != nil {
		return err
	}
	p.fieldsClaimed.Add(1)

	p.setState(StateProcessing)
	req, err := p.process(ctx, claim)
	if err != nil {
		return err
	}

	if p.opts.Validate {
		if err := p.validate(ctx, claim, req); err != nil {
			return nil
		}
	}

	p.setState(StateSubmitting)
	return p.submit(ctx, req)
}

// runPipelined drives the same Idle/Claiming/Processing/Submitting cycle as
// runOnce, but overlaps network waits with compute: the next field is
// claimed on a background goroutine while the current one is processed, and
// the current field's submit runs on a background goroutine while the next
// one is processed, so steady-state throughput is compute-bound rather than
// network-bound.
func (p *Pipeline) runPipelined(ctx context.Context, maxFields int) error {
	claimAsync := func() <-chan claimOutcome {
		out := make(chan claimOutcome, 1)
		go func() {
			claim, err := withRetry(ctx, p.maxTries(), func() (models.ClaimResponse, error) {
				return p.client.Claim(ctx, p.opts.Mode, p.opts.Policy)
			})
			out <- claimOutcome{claim, err}
		}()
		return out
	}

	var pendingSubmit <-chan error
	pending := claimAsync()

	for i := 0; maxFields == 0 || i < maxFields; i++ {
		select {
		case <-ctx.Done():
			if pendingSubmit != nil {
				<-pendingSubmit
			}
			return ctx.Err()
		default:
		}

		p.setState(StateClaiming)
		outcome := <-pending
		if outcome.err != nil {
			if outcome.err == ErrNoFieldAvailable {
				if pendingSubmit != nil {
					<-pendingSubmit
					pendingSubmit = nil
				}
				log.Println("[clientlib] no field available, backing off")
				time.Sleep(backoffBase)
				pending = claimAsync()
				i--
				continue
			}
			if pendingSubmit != nil {
				<-pendingSubmit
			}
			return outcome.err
		}
		p.fieldsClaimed.Add(1)

		// Prefetch the next claim concurrently with processing this field.
		pending = claimAsync()

		p.setState(StateProcessing)
		req, err := p.process(ctx, outcome.claim)
		if err != nil {
			if pendingSubmit != nil {
				<-pendingSubmit
			}
			return err
		}

		if p.opts.Validate {
			if err := p.validate(ctx, outcome.claim, req); err != nil {
				continue
			}
		}

		// Wait for the previous field's submit before starting a new one:
		// the overlap we want is "submit N-1 while processing N", which has
		// already happened by this point in the loop.
		if pendingSubmit != nil {
			if err := <-pendingSubmit; err != nil {
				return err
			}
		}
		pendingSubmit = p.submitAsync(ctx, req)
	}

	if pendingSubmit != nil {
		if err := <-pendingSubmit; err != nil {
			return err
		}
	}
	p.setState(StateIdle)
	return nil
}

type claimOutcome struct {
	claim models.ClaimResponse
	err   error
}

// process runs one field through the search engine and builds the
// resulting submit request. It does not submit.
func (p *Pipeline) process(ctx context.Context, claim models.ClaimResponse) (models.SubmitRequest, error) {
	start := time.Now()
	field := engine.Range{
		Lo: decimalToUint256(claim.RangeStart),
		Hi: decimalToUint256(claim.RangeEnd),
	}
	engineMode := engine.ModeDetailed
	if p.opts.Mode == models.ModeNiceOnly {
		engineMode = engine.ModeNiceOnly
	}

	var progress *engine.Progress
	if p.opts.ShowProgress {
		progress = &engine.Progress{Total: int64(field.Size())}
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(5 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					log.Printf("[clientlib] field %d: scanned %d/%d candidates", claim.FieldID, progress.Scanned.Load(), progress.Total)
				}
			}
		}()
	}

	result, err := p.exec.Execute(ctx, field, claim.Base, engineMode, engine.ExecutorOptions{
		Threads: p.opts.Threads,
		GPU:     p.opts.GPU,
		UseLSD:  p.opts.Mode == models.ModeNiceOnly,
	}, progress)
	if err != nil {
		return models.SubmitRequest{}, err
	}
	elapsed := time.Since(start).Seconds()

	req := models.SubmitRequest{
		ClaimID:       claim.ClaimID,
		Username:      p.opts.Username,
		ClientVersion: p.opts.ClientVersion,
		ElapsedSecs:   elapsed,
		NiceNumbers:   toNiceNumbers(result, claim.Base, p.opts.Mode),
	}
	if p.opts.Mode == models.ModeDetailed {
		req.UniqueDistribution = toDistEntries(result.Distribution, claim.Base)
	}
	return req, nil
}

// validate runs the optional cross-client validation check. A non-nil
// return means the candidate was discarded and the caller should move on
// without submitting.
func (p *Pipeline) validate(ctx context.Context, claim models.ClaimResponse, req models.SubmitRequest) error {
	if err := ValidateAgainstCanon(ctx, p.client, claim.FieldID, p.opts.Mode, req); err != nil {
		p.validationFailures.Add(1)
		log.Printf("[clientlib] %v, discarding local result and continuing", err)
		return err
	}
	return nil
}

// submit posts req synchronously, retrying transient failures. A 4xx
// rejection (structural validation or consistency mismatch) discards the
// local result and lets the outer loop continue: retrying would only repeat
// the same rejection, and the field will be re-verified by another worker.
func (p *Pipeline) submit(ctx context.Context, req models.SubmitRequest) error {
	accepted, err := withRetry(ctx, p.maxTries(), func() (bool, error) {
		return p.client.Submit(ctx, req)
	})
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Permanent() {
			log.Printf("[clientlib] submission rejected, discarding local result: %v", statusErr)
			return nil
		}
		return err
	}
	if accepted {
		p.fieldsSolved.Add(1)
	}
	return nil
}

// submitAsync runs submit on a background goroutine, returning a channel
// that receives its error (nil on success) once done.
func (p *Pipeline) submitAsync(ctx context.Context, req models.SubmitRequest) <-chan error {
	done := make(chan error, 1)
	go func() {
		p.setState(StateSubmitting)
		done <- p.submit(ctx, req)
	}()
	return done
}

// withRetry runs fn up to maxTries times with exponential backoff between
// attempts, bailing out immediately if the field simply isn't available (no
// point retrying that against backoff) or the error is a permanent (4xx)
// status error.
func withRetry[T any](ctx context.Context, maxTries int, fn func() (T, error)) (T, error) {
	delay := backoffBase
	var zero T
	var lastErr error
	for attempt := 0; attempt < maxTries; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		if err == ErrNoFieldAvailable {
			return zero, err
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Permanent() {
			// 4xx: malformed request, not a transient condition. Retrying
			// would just repeat the same rejection.
			return zero, err
		}
		lastErr = err
		log.Printf("[clientlib] attempt %d failed: %v, retrying in %s", attempt+1, err, delay)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > backoffCap {
			delay = backoffCap
		}
	}
	return zero, lastErr
}

// toDistEntries serializes a num_uniques histogram as the complete,
// bucket-ordered histogram over [1, base] the server's validation expects,
// zero counts included.
func toDistEntries(dist map[uint64]int64, base uint64) []models.DistEntry {
	entries := make([]models.DistEntry, 0, base)
	for u := uint64(1); u <= base; u++ {
		entries = append(entries, models.DistEntry{NumUniques: int(u), Count: dist[u]})
	}
	return entries
}

func toNiceNumbers(result engine.Result, base uint64, mode models.Mode) []models.NiceNumber {
	if mode == models.ModeNiceOnly {
		nums := make([]models.NiceNumber, 0, len(result.NiceNumbers))
		for _, n := range result.NiceNumbers {
			nums = append(nums, models.NiceNumber{
				Number:     uint256ToDecimal(n),
				NumUniques: int(base),
			})
		}
		return nums
	}
	nums := make([]models.NiceNumber, 0, len(result.Notable))
	for _, n := range result.Notable {
		nums = append(nums, models.NiceNumber{
			Number:     uint256ToDecimal(n.Number),
			NumUniques: int(n.NumUniques),
		})
	}
	return nums
}

