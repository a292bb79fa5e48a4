package coordinator

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wasabipesto/niceengine/internal/store"
	"github.com/wasabipesto/niceengine/pkg/models"
)

// defaultLeaseTimeout is how long a claim holds exclusive priority on a
// field before it becomes eligible for re-claim by another worker, used
// when Config.LeaseTimeout is left at its zero value.
const defaultLeaseTimeout = 1 * time.Hour

// defaultThinThreshold is the checked-fraction ceiling used by the thin
// policy when Config.ThinThreshold is left at its zero value.
const defaultThinThreshold = 0.5

// selection policies for POST /claim/:mode. Normal picks the lowest-id
// eligible field; Thin picks a random field in the next incomplete chunk
// whose checked fraction is below Config.ThinThreshold (spreading coverage
// instead of finishing one chunk at a time); Prioritized considers only
// fields flagged prioritize=true. A prioritized field always wins: every
// claim tries the prioritized selection first and falls back to the
// requested policy only when no prioritized field is eligible.
const (
	policyNormal      = "normal"
	policyThin        = "thin"
	policyPrioritized = "prioritized"
)

// selectFieldSQL returns the FOR UPDATE SKIP LOCKED query for a selection
// policy. requiredLevel excludes fields already verified to the level this
// mode needs; leaseTimeout excludes fields leased too recently. The thin
// policy additionally joins chunks and requires the parent chunk's checked
// fraction to be below thinThreshold, spreading coverage across chunks
// instead of exhausting one chunk before starting the next.
func selectFieldSQL(policy string) string {
	const columns = `f.id, f.base_id, f.chunk_id, f.range_start, f.range_end, f.check_level, f.prioritize`
	base := fmt.Sprintf(`
		SELECT %s FROM fields f
		WHERE f.check_level < $1
		  AND (f.last_claim_time IS NULL OR f.last_claim_time < NOW() - $2::interval)
	`, columns)

	switch policy {
	case policyPrioritized:
		return base + ` AND f.prioritize = TRUE ORDER BY f.id ASC LIMIT 1 FOR UPDATE SKIP LOCKED;`
	case policyThin:
		// Ordering by chunk then RANDOM() lands on a random field inside the
		// lowest eligible (incomplete) chunk.
		return fmt.Sprintf(`
			SELECT %s FROM fields f
			JOIN chunks ch ON ch.id = f.chunk_id
			WHERE f.check_level < $1
			  AND (f.last_claim_time IS NULL OR f.last_claim_time < NOW() - $2::interval)
			  AND (ch.range_end - ch.range_start) > 0
			  AND (ch.checked_niceonly / (ch.range_end - ch.range_start)) < $3
			ORDER BY ch.range_start ASC, RANDOM() LIMIT 1 FOR UPDATE SKIP LOCKED;
		`, columns)
	default:
		return base + ` ORDER BY f.id ASC LIMIT 1 FOR UPDATE SKIP LOCKED;`
	}
}

// handleClaim serves POST /api/v1/claim/:mode.
func (h *Handler) handleClaim(c *gin.Context) {
	modeParam := c.Param("mode")
	mode := models.Mode(modeParam)
	if mode != models.ModeDetailed && mode != models.ModeNiceOnly {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be 'detailed' or 'niceonly'"})
		return
	}

	policy := c.DefaultQuery("policy", policyNormal)
	switch policy {
	case policyNormal, policyThin, policyPrioritized:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "policy must be 'normal', 'thin' or 'prioritized'"})
		return
	}

	leaseTimeout := h.config.LeaseTimeout
	if leaseTimeout == 0 {
		leaseTimeout = defaultLeaseTimeout
	}
	leaseInterval := fmt.Sprintf("%d seconds", int(leaseTimeout.Seconds()))

	// Prioritized fields win over whatever policy the client asked for, so
	// the prioritized selection always runs first.
	attempts := []string{policyPrioritized}
	if policy != policyPrioritized {
		attempts = append(attempts, policy)
	}

	var field models.Field
	var claimID int64
	err := store.ErrNoFieldAvailable
	for _, attempt := range attempts {
		sql := selectFieldSQL(attempt)
		args := []any{mode.RequiredLevel(), leaseInterval}
		if attempt == policyThin {
			thinThreshold := h.config.ThinThreshold
			if thinThreshold == 0 {
				thinThreshold = defaultThinThreshold
			}
			args = append(args, thinThreshold)
		}
		field, claimID, err = h.store.ClaimField(c.Request.Context(), mode, c.ClientIP(), sql, args...)
		if err != store.ErrNoFieldAvailable {
			break
		}
	}
	if err != nil {
		if err == store.ErrNoFieldAvailable {
			// 204: the client backs off rather than treating this as a
			// protocol error.
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	base, err := h.store.GetBase(c.Request.Context(), field.BaseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.metrics.claimsTotal.WithLabelValues(string(mode)).Inc()
	h.hub.Broadcast(mustJSON(gin.H{
		"event":    "field_claimed",
		"field_id": field.ID,
		"mode":     mode,
	}))

	c.JSON(http.StatusOK, models.ClaimResponse{
		ClaimID:    claimID,
		FieldID:    field.ID,
		Base:       base.B,
		RangeStart: field.RangeStart,
		RangeEnd:   field.RangeEnd,
		RangeSize:  field.RangeSize(),
	})
}
