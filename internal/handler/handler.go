// Package handler exposes the HTTP surface. Handlers translate between
// gin requests and the admission/team engines; all domain rules live in
// the engines.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hackreg/backend/internal/admission"
	"hackreg/backend/internal/settings"
	"hackreg/backend/internal/stats"
	"hackreg/backend/internal/team"
)

var (
	admissions  *admission.Engine
	teams       *team.Engine
	settingsSvc *settings.Service
	aggregator  *stats.Aggregator
)

// Init wires the engines used by the package-level handlers.
func Init(a *admission.Engine, t *team.Engine, s *settings.Service, st *stats.Aggregator) {
	admissions = a
	teams = t
	settingsSvc = s
	aggregator = st
}

// ErrorResponse represents a generic error response.
type ErrorResponse struct {
	Error string `json:"error" example:"An error message"`
}

// fail maps engine errors onto HTTP statuses. Precondition failures are
// client errors, unknown errors are server errors.
func fail(c *gin.Context, err error) {
	switch {
	case admission.IsPrecondition(err) || team.IsPrecondition(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, admission.ErrUserNotFound) || errors.Is(err, team.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, team.ErrTeamNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Team not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func currentUserID(c *gin.Context) uint {
	return c.MustGet("userID").(uint)
}
