package handlers

import (
	"net/http"

	"github.com/sbilibin2017/romako-counter/internal/models"
)

// NewHealthHandler returns a static liveness handler.
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /health [get]
func NewHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.HealthResponse{Status: "OK", Message: msgHealth})
	}
}
