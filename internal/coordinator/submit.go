package coordinator

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wasabipesto/niceengine/internal/engine"
	"github.com/wasabipesto/niceengine/internal/store"
	"github.com/wasabipesto/niceengine/pkg/models"
)

// handleSubmit serves POST /api/v1/submit. It runs the validation and
// consensus pipeline described for field submissions:
//
//  1. load the claim and field the submission references
//  2. reject structurally invalid submissions with 400 (validateSubmission)
//  3. compare against existing non-disqualified submissions for the same
//     field and mode, and against the field's canon even when it was
//     promoted under the other mode; disagreement disqualifies the newer
//     submission rather than the existing canon
//  4. advance check_level where warranted: a detailed submission or two
//     independently-claimed agreeing niceonly submissions reach level 2,
//     a single niceonly submission reaches level 1
//  5. fold the promotion into the field's chunk and base rollups
func (h *Handler) handleSubmit(c *gin.Context) {
	var req models.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	claim, err := h.store.GetClaim(ctx, req.ClaimID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown claim_id"})
		return
	}

	field, err := h.store.GetField(ctx, claim.FieldID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	base, err := h.store.GetBase(ctx, field.BaseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	sub := models.Submission{
		ClaimID:       claim.ID,
		FieldID:       field.ID,
		SearchMode:    claim.SearchMode,
		ElapsedSecs:   req.ElapsedSecs,
		Username:      req.Username,
		ClientVersion: req.ClientVersion,
		Distribution:  req.UniqueDistribution,
		Numbers:       req.NiceNumbers,
	}

	if err := validateSubmission(sub, field, base); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// niceonly submissions may be deferred to the drain queue to keep this
	// endpoint's latency low; the caller gets back an acknowledgement
	// rather than the real disqualified verdict, which a later re-claim
	// will surface if anything was wrong. detailed submissions always run
	// synchronously since they drive canonical aggregation directly.
	if claim.SearchMode == models.ModeNiceOnly && h.queue != nil {
		if h.queue.TryEnqueue(submitJob{claim: claim, field: field, sub: sub}) {
			h.metrics.submissionsTotal.WithLabelValues(string(claim.SearchMode), "queued").Inc()
			c.JSON(http.StatusOK, gin.H{"submission_id": 0, "disqualified": false, "queued": true})
			return
		}
		// Queue full: fall back to synchronous processing.
	}

	subID, disqualified, err := h.processSubmission(ctx, claim, field, sub)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if disqualified {
		// Consistency mismatch against the field's existing submissions: the
		// result was stored (flagged) but does not become canon.
		c.JSON(http.StatusConflict, gin.H{
			"submission_id": subID,
			"disqualified":  true,
			"error":         "submission disagrees with existing results for this field",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"submission_id": subID,
		"disqualified":  false,
	})
}

// processSubmission runs the consensus and promotion steps of the
// submission pipeline: persist the submission (marked disqualified if it
// disagrees with an existing non-disqualified submission for the same
// field and mode, or with the field's current canon across modes), then
// promote the field's check_level where warranted and fold the promotion
// into chunk/base rollups. Shared by the synchronous request path and the
// deferred niceonly queue drain.
func (h *Handler) processSubmission(ctx context.Context, claim models.Claim, field models.Field, sub models.Submission) (int64, bool, error) {
	base, err := h.store.GetBase(ctx, field.BaseID)
	if err != nil {
		return 0, false, err
	}

	existing, err := h.store.ListSubmissionsForField(ctx, field.ID, claim.SearchMode)
	if err != nil {
		return 0, false, err
	}

	agrees := true
	for _, prior := range existing {
		if !submissionsAgree(prior, sub, base.B) {
			agrees = false
			break
		}
	}

	// The canon may have been promoted under the other mode (a detailed
	// submission landing on a field with a niceonly canon, or vice versa).
	// The same-mode list above never sees it, but the actual nice-number
	// sets are still directly comparable and must match; only the
	// distribution is mode-specific (a niceonly submission carries none).
	if agrees && field.CanonSubmissionID != nil {
		canon, err := h.store.GetCanonSubmission(ctx, field.ID)
		if err != nil && err != store.ErrNoCanonSubmission {
			return 0, false, err
		}
		if err == nil && canon.SearchMode != claim.SearchMode && !agreeOnNiceNumbers(canon, sub, base.B) {
			agrees = false
		}
	}
	sub.Disqualified = !agrees

	subID, err := h.store.InsertSubmission(ctx, sub)
	if err != nil {
		return 0, false, err
	}

	outcome := "accepted"
	if sub.Disqualified {
		outcome = "disqualified"
	}
	h.metrics.submissionsTotal.WithLabelValues(string(claim.SearchMode), outcome).Inc()

	if sub.Disqualified {
		return subID, true, nil
	}
	h.metrics.claimDuration.Observe(time.Since(claim.ClaimTime).Seconds())

	newLevel := claim.SearchMode.RequiredLevel()
	if claim.SearchMode == models.ModeNiceOnly && independentNiceOnlyClaims(existing, claim.ID) >= 2 {
		// Two independent agreeing niceonly results verify the field as
		// thoroughly as one detailed scan, so the field reaches level 2
		// without a detailed submission.
		newLevel = 2
	}

	// A detailed submission supersedes a niceonly canon: it carries the
	// distribution aggregation needs. A niceonly submission never displaces
	// an existing canon.
	canonID := subID
	if field.CanonSubmissionID != nil && claim.SearchMode == models.ModeNiceOnly {
		canonID = *field.CanonSubmissionID
	}

	if field.CheckLevel < newLevel {
		if err := h.store.PromoteCanon(ctx, field.ID, canonID, newLevel); err != nil {
			return 0, false, err
		}
		if err := h.store.RecomputeChunkStats(ctx, field.ChunkID); err != nil {
			return 0, false, err
		}
		if err := h.store.RecomputeBaseStats(ctx, field.BaseID); err != nil {
			return 0, false, err
		}
		if canonID == subID {
			for _, n := range sub.Numbers {
				if uint64(n.NumUniques) == base.B {
					h.metrics.niceFound.Inc()
				}
			}
		}
		h.hub.Broadcast(mustJSON(gin.H{
			"event":    "field_promoted",
			"field_id": field.ID,
			"level":    newLevel,
		}))
	}

	return subID, false, nil
}

// independentNiceOnlyClaims counts the distinct claims behind a field's
// agreeing niceonly submissions, including the claim being processed.
// Re-submissions under the same claim are a replay, not independent
// verification.
func independentNiceOnlyClaims(existing []models.Submission, newClaimID int64) int {
	claims := map[int64]bool{newClaimID: true}
	for _, s := range existing {
		claims[s.ClaimID] = true
	}
	return len(claims)
}

// validateSubmission enforces the structural constraints ahead of the
// consensus check: for detailed mode, the distribution must be a complete
// histogram over 1..=b summing to the field's range size; every returned
// number must lie within the field and exceed the notable threshold;
// niceonly numbers must all report num_uniques == b exactly.
func validateSubmission(sub models.Submission, field models.Field, base models.Base) error {
	b := base.B
	threshold := engine.NotableThreshold(b)

	if sub.SearchMode == models.ModeDetailed {
		rangeSize := field.RangeSize()
		var sum int64
		seen := make(map[int]bool, len(sub.Distribution))
		for _, e := range sub.Distribution {
			if e.NumUniques < 1 || uint64(e.NumUniques) > b {
				return fmt.Errorf("distribution entry num_uniques=%d out of range [1,%d]", e.NumUniques, b)
			}
			if seen[e.NumUniques] {
				return fmt.Errorf("distribution entry num_uniques=%d duplicated", e.NumUniques)
			}
			seen[e.NumUniques] = true
			sum += e.Count
		}
		if uint64(len(seen)) != b {
			return fmt.Errorf("distribution has %d buckets, want a complete histogram over [1,%d]", len(seen), b)
		}
		if !rangeSize.Equal(decimal.NewFromInt(sum)) {
			return fmt.Errorf("distribution total %d does not match field range size %s", sum, rangeSize.String())
		}
	}

	for _, n := range sub.Numbers {
		if n.Number.LessThan(field.RangeStart) || !n.Number.LessThan(field.RangeEnd) {
			return fmt.Errorf("number %s lies outside field range [%s, %s)", n.Number.String(), field.RangeStart.String(), field.RangeEnd.String())
		}
		if uint64(n.NumUniques) <= threshold {
			return fmt.Errorf("number %s num_uniques=%d does not exceed notable threshold %d", n.Number.String(), n.NumUniques, threshold)
		}
		if sub.SearchMode == models.ModeNiceOnly && uint64(n.NumUniques) != b {
			return fmt.Errorf("niceonly number %s num_uniques=%d must equal base %d", n.Number.String(), n.NumUniques, b)
		}
	}

	return nil
}

// submissionsAgree compares the scientific content of two submissions for
// the same field: the unique-count histogram and the set of actual nice
// numbers found (num_uniques == b). Near-miss "notable" entries
// (num_uniques < b) are not part of the agreement check: two submissions
// that find the same nice numbers but differ on which near-misses crossed
// the notable threshold still agree. Metadata fields (username, elapsed
// time, client version) never factor into agreement.
func submissionsAgree(a, b models.Submission, base uint64) bool {
	return reflect.DeepEqual(normalizeDist(a.Distribution), normalizeDist(b.Distribution)) &&
		agreeOnNiceNumbers(a, b, base)
}

// agreeOnNiceNumbers compares only the actual nice-number sets of two
// submissions, the one piece of scientific content a niceonly and a
// detailed submission can be checked against each other on.
func agreeOnNiceNumbers(a, b models.Submission, base uint64) bool {
	return reflect.DeepEqual(normalizeNiceNumbers(a.Numbers, base), normalizeNiceNumbers(b.Numbers, base))
}

// normalizeDist keys a histogram by bucket, dropping zero counts so an
// explicit-zero encoding and an omitted bucket compare equal.
func normalizeDist(d []models.DistEntry) map[int]int64 {
	m := make(map[int]int64, len(d))
	for _, e := range d {
		if e.Count != 0 {
			m[e.NumUniques] = e.Count
		}
	}
	return m
}

// normalizeNiceNumbers reduces a submission's numbers to the set of actual
// nice numbers (num_uniques == base), dropping notable-but-not-nice entries
// before comparison.
func normalizeNiceNumbers(nums []models.NiceNumber, base uint64) map[string]bool {
	m := make(map[string]bool, len(nums))
	for _, n := range nums {
		if uint64(n.NumUniques) == base {
			m[n.Number.String()] = true
		}
	}
	return m
}
