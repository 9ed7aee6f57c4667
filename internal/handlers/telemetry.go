package handlers

import (
	"net/http"
	"strconv"

	"greencure/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	maxTelemetryLimit = 5000
	errLimitInvalid   = "invalid 'limit'; use an integer between 1 and 5000"
)

// @Summary      List sensor readings
// @Description  Newest first. Range parameters accept the same formats as /api/v1/logs.
// @Tags         telemetry
// @Produce      json
// @Param        from   query   string  false  "Start of range"
// @Param        to     query   string  false  "End of range"
// @Param        limit  query   int     false  "Maximum readings returned"  default(500)
// @Success      200    {object}  map[string]interface{}  "count, readings"
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Failure      500    {object}  map[string]string
// @Router       /api/v1/telemetry [get]
// @Security     BearerAuth
func (h *Handler) getTelemetry(c *gin.Context) {
	from, to, ok := parseRange(c)
	if !ok {
		return
	}
	var limit int
	if qs := c.Query("limit"); qs != "" {
		v, err := strconv.Atoi(qs)
		if err != nil || v <= 0 || v > maxTelemetryLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": errLimitInvalid})
			return
		}
		limit = v
	}

	readings, err := h.services.Telemetry.List(c.Request.Context(), service.TelemetryFilter{
		From:  from,
		To:    to,
		Limit: limit,
	})
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "failed to load telemetry", "telemetry_list_failed", err,
			"from", from, "to", to, "limit", limit)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(readings),
		"readings": readings,
	})
}
