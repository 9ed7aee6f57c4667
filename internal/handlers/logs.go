package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"greencure/internal/service"
)

// queryLayouts are tried in order; the last one is date-only.
var queryLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parseQueryTime(s string) (time.Time, error) {
	for _, layout := range queryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("time %q: want RFC3339, 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD'", s)
}

// queryBound parses one optional range parameter. A date-only upper bound
// is moved to the last instant of that day.
func queryBound(c *gin.Context, name string, upper bool) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := parseQueryTime(raw)
	if err != nil {
		return t, fmt.Errorf("invalid '%s' time; use RFC3339 or YYYY-MM-DD", name)
	}
	if upper && !strings.ContainsAny(raw, "T ") {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

// parseRange reads ?from and ?to. On failure it has already answered 400.
func parseRange(c *gin.Context) (from, to time.Time, ok bool) {
	var err error
	if from, err = queryBound(c, "from", false); err == nil {
		to, err = queryBound(c, "to", true)
	}
	if err == nil && !from.IsZero() && !to.IsZero() && from.After(to) {
		err = fmt.Errorf("'from' must be <= 'to'")
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return from, to, false
	}
	return from, to, true
}

// @Summary      List machine events
// @Description  Filter events by date (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD'). If 'to' is date-only, it is treated as end-of-day inclusive.
// @Tags         logs
// @Produce      json
// @Param        from  query   string  false  "Start of range"  example(2025-08-01)
// @Param        to    query   string  false  "End of range. Date-only treated as end of day."  example(2025-08-31)
// @Param        type  query   string  false  "Event type"  Enums(POWER,HARVEST,LATCH,CALIBRATION,ERROR)
// @Success      200   {object}  map[string]interface{}  "count, events"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/logs [get]
// @Security     BearerAuth
func (h *Handler) getLogs(c *gin.Context) {
	from, to, ok := parseRange(c)
	if !ok {
		return
	}
	filter := service.LogFilter{
		From: from,
		To:   to,
		Type: strings.ToUpper(strings.TrimSpace(c.Query("type"))),
	}
	events, err := h.services.EventLog.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "failed to load logs", "logs_list_failed", err,
			"from", from, "to", to, "type", filter.Type)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(events), "events": events})
}
