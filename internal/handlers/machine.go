package handlers

import (
	"errors"
	"net/http"

	"greencure/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	statusOK = "ok"

	errGetState      = "failed to load state"
	errToggleHarvest = "failed to toggle harvest mode"
	errNotPowered    = "machine is not powered"
)

// fail logs err under event and answers with a generic message.
func (h *Handler) fail(c *gin.Context, code int, msg, event string, err error, kv ...any) {
	h.log.Errorw(event, append([]any{"err", err}, kv...)...)
	c.JSON(code, gin.H{"error": msg})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Get machine state
// @Description  Power, harvest mode, latches, last power-on time and actuator states.
// @Tags         machine
// @Produce      json
// @Success      200  {object}  models.MachineState
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/machine/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	st, err := h.services.Monitoring.GetState(c.Request.Context())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, errGetState, "machine_get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Toggle harvest mode
// @Description  Opens the hatch and starts the DC motor, or resumes normal operation. Rejected while the machine is unpowered.
// @Tags         machine
// @Produce      json
// @Success      200  {object}  models.MachineState
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/machine/harvest [post]
// @Security     BearerAuth
func (h *Handler) toggleHarvest(c *gin.Context) {
	st, err := h.services.Override.ToggleHarvest(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrInvalidTransition) {
			h.log.Infow("machine_toggle_harvest_rejected", "err", err)
			c.JSON(http.StatusConflict, gin.H{"error": errNotPowered})
			return
		}
		h.fail(c, http.StatusInternalServerError, errToggleHarvest, "machine_toggle_harvest_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}
