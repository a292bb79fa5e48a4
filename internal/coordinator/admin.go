package coordinator

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wasabipesto/niceengine/internal/engine"
	"github.com/wasabipesto/niceengine/pkg/models"
)

// seedBaseRequest is the operator payload for POST /admin/bases: one base
// search space, cut into chunks of chunk_size and fields of field_size.
// Bounds and sizes are decimal strings since they can exceed 2^53.
type seedBaseRequest struct {
	B          uint64          `json:"b"`
	RangeStart decimal.Decimal `json:"range_start"`
	RangeEnd   decimal.Decimal `json:"range_end"`
	ChunkSize  decimal.Decimal `json:"chunk_size"`
	FieldSize  decimal.Decimal `json:"field_size"`
}

// handleSeedBase serves POST /api/v1/admin/bases: creates a base plus the
// chunks and fields covering [range_start, range_end). Fields of one base
// are pairwise disjoint and together cover the base's whole range; that
// invariant falls directly out of partitionDecimal.
func (h *Handler) handleSeedBase(c *gin.Context) {
	var req seedBaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.B < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "b must be >= 2"})
		return
	}
	if !req.RangeStart.LessThan(req.RangeEnd) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "range_start must be less than range_end"})
		return
	}
	if !req.ChunkSize.IsPositive() || !req.FieldSize.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chunk_size and field_size must be positive"})
		return
	}

	ctx := c.Request.Context()

	// If R_b is empty, no nice number exists anywhere in this base: every
	// field is born niceonly-verified without a single candidate being
	// evaluated. The detailed distribution still has to be computed by a
	// real scan, so level stays below 2.
	initialLevel := 0
	if engine.BuildFilter(req.B).Empty() {
		initialLevel = 1
	}

	baseID, err := h.store.CreateBase(ctx, models.Base{
		B:          req.B,
		RangeStart: req.RangeStart,
		RangeEnd:   req.RangeEnd,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	chunkCount, fieldCount := 0, 0
	for _, chunkRange := range partitionDecimal(req.RangeStart, req.RangeEnd, req.ChunkSize) {
		chunkID, err := h.store.CreateChunk(ctx, models.Chunk{
			BaseID:     baseID,
			RangeStart: chunkRange[0],
			RangeEnd:   chunkRange[1],
			MinimumCL:  initialLevel,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		chunkCount++

		fieldRanges := partitionDecimal(chunkRange[0], chunkRange[1], req.FieldSize)
		fields := make([]models.Field, 0, len(fieldRanges))
		for _, fr := range fieldRanges {
			fields = append(fields, models.Field{
				BaseID:     baseID,
				ChunkID:    chunkID,
				RangeStart: fr[0],
				RangeEnd:   fr[1],
				CheckLevel: initialLevel,
			})
		}
		if err := h.store.SeedFields(ctx, fields); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		fieldCount += len(fields)
	}

	c.JSON(http.StatusCreated, gin.H{
		"base_id":     baseID,
		"chunks":      chunkCount,
		"fields":      fieldCount,
		"check_level": initialLevel,
	})
}

// handleAggregate serves POST /api/v1/admin/aggregate: runs one rollup pass
// immediately instead of waiting for the background aggregator's next tick.
func (h *Handler) handleAggregate(c *gin.Context) {
	if err := aggregateOnce(c.Request.Context(), h.store); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "aggregated"})
}

// partitionDecimal cuts [start, end) into consecutive half-open ranges of
// width step; the last range is truncated to end. Ranges are pairwise
// disjoint and cover [start, end) exactly.
func partitionDecimal(start, end, step decimal.Decimal) [][2]decimal.Decimal {
	var out [][2]decimal.Decimal
	for cur := start; cur.LessThan(end); {
		next := cur.Add(step)
		if next.GreaterThan(end) {
			next = end
		}
		out = append(out, [2]decimal.Decimal{cur, next})
		cur = next
	}
	return out
}
