package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sbilibin2017/romako-counter/internal/logger"
)

// Client-facing messages.
const (
	msgInternalError  = "Internal server error"
	msgInvalidBody    = "Validation error: Invalid request body"
	msgTextRequired   = "Validation error: Text is required"
	msgKeywordMissing = `Text must contain "だいたいロマ子" or "大体ロマ子"`
	msgEntrySaved     = "Entry saved successfully"
	msgNameRequired   = "Validation error: Name is required"
	msgUserCreated    = "User created successfully"
	msgUserFound      = "User found"
	msgUserNotFound   = "User not found"
	msgHealth         = "ロマ子あるある挨拶カウンター API is running"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Errorw("failed to encode response", "error", err)
	}
}
