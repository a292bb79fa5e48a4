package coordinator

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wasabipesto/niceengine/internal/store"
)

// handleListBases serves GET /api/v1/bases: every base and its rolled-up
// checked ranges and niceness statistics.
func (h *Handler) handleListBases(c *gin.Context) {
	bases, err := h.store.ListBases(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bases": bases})
}

// handleListAllChunks serves GET /api/v1/chunks: every chunk across every
// base, for the analytics dashboard's flat roll-up view.
func (h *Handler) handleListAllChunks(c *gin.Context) {
	chunks, err := h.store.ListAllChunks(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chunks": chunks})
}

// handleListChunks serves GET /api/v1/bases/:base/chunks.
func (h *Handler) handleListChunks(c *gin.Context) {
	baseParam := c.Param("base")
	baseID, err := strconv.ParseInt(baseParam, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid base id"})
		return
	}

	chunks, err := h.store.ListChunks(c.Request.Context(), baseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chunks": chunks})
}

// handleGetSubmission serves GET /api/v1/submission?field_id={id}&canon=true,
// returning the field's canonical submission. It exists for the client
// pipeline's validation mode: before submitting, a worker can fetch the
// field's current canon result and compare it against its own before
// sending anything to the server.
func (h *Handler) handleGetSubmission(c *gin.Context) {
	fieldParam := c.Query("field_id")
	fieldID, err := strconv.ParseInt(fieldParam, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "field_id is required and must be an integer"})
		return
	}

	sub, err := h.store.GetCanonSubmission(c.Request.Context(), fieldID)
	if err != nil {
		if err == store.ErrNoCanonSubmission {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sub)
}
