package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// authCredentials is the body of both sign-up and sign-in.
type authCredentials struct {
	Username string `json:"username" binding:"required" example:"operator"`
	Password string `json:"password" binding:"required" example:"secret"`
}

// readCredentials binds the request body, answering 400 itself when the
// body is unusable.
func (h *Handler) readCredentials(c *gin.Context) (authCredentials, bool) {
	var in authCredentials
	if err := c.ShouldBindJSON(&in); err != nil {
		h.log.Infow("auth_bad_request_body", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return in, false
	}
	return in, true
}

// @Summary      Register an operator
// @Description  Registered operators also receive harvest and nutrient notifications.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      authCredentials  true  "Credentials"
// @Success      200   {object}  map[string]int
// @Failure      400   {object}  map[string]string
// @Router       /auth/sign-up [post]
func (h *Handler) signUp(c *gin.Context) {
	in, ok := h.readCredentials(c)
	if !ok {
		return
	}
	id, err := h.services.SignUp(in.Username, in.Password)
	if err != nil {
		h.log.Infow("operator_register_failed", "username", in.Username, "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.log.Infow("operator_registered", "username", in.Username, "id", id)
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// @Summary      Obtain an API token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      authCredentials  true  "Credentials"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/sign-in [post]
func (h *Handler) signIn(c *gin.Context) {
	in, ok := h.readCredentials(c)
	if !ok {
		return
	}
	token, err := h.services.GenerateToken(in.Username, in.Password)
	if err != nil {
		h.log.Infow("operator_sign_in_failed", "username", in.Username, "err", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
