package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sbilibin2017/romako-counter/internal/logger"
	"github.com/sbilibin2017/romako-counter/internal/models"
	"github.com/sbilibin2017/romako-counter/internal/services"
)

//go:generate mockgen -source=entries.go -destination=mock_entries.go -package=handlers

// EntryCreator defines the interface that the service must implement.
type EntryCreator interface {
	CreateOrUpdate(ctx context.Context, text string, userID, userName *string) (*models.Entry, error)
}

// EntryLister returns entries, most recently updated first.
type EntryLister interface {
	List(ctx context.Context) ([]models.Entry, error)
}

// RankingLister returns entries, highest count first.
type RankingLister interface {
	Ranking(ctx context.Context) ([]models.Entry, error)
}

// NewCreateEntryHandler returns an HTTP handler for posting an entry.
// @Summary Post an entry
// @Description Stores the text or increments its counter, then broadcasts the entry to every websocket client.
// @Tags entries
// @Accept json
// @Produce json
// @Param request body models.CreateEntryRequest true "Entry to post"
// @Success 200 {object} models.EntryResponse "Entry saved"
// @Failure 400 {object} models.EntryResponse "Empty text, missing keyword or malformed body"
// @Failure 500 {object} models.EntryResponse "Internal server error"
// @Router /entries [post]
func NewCreateEntryHandler(svc EntryCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateEntryRequest

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, models.EntryResponse{Message: msgInvalidBody})
			return
		}

		entry, err := svc.CreateOrUpdate(r.Context(), req.Text, req.UserID, req.UserName)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrEmptyText):
				writeJSON(w, http.StatusBadRequest, models.EntryResponse{Message: msgTextRequired})
			case errors.Is(err, services.ErrMissingKeyword):
				writeJSON(w, http.StatusBadRequest, models.EntryResponse{Message: msgKeywordMissing})
			default:
				logger.Log.Errorw("internal server error", "err", err)
				writeJSON(w, http.StatusInternalServerError, models.EntryResponse{Message: msgInternalError})
			}
			return
		}

		writeJSON(w, http.StatusOK, models.EntryResponse{
			Success: true,
			Message: msgEntrySaved,
			Entry:   entry,
		})
	}
}

// NewListEntriesHandler returns an HTTP handler listing all entries.
// @Summary List entries
// @Description Returns every entry ordered by last update, newest first.
// @Tags entries
// @Produce json
// @Success 200 {array} models.Entry
// @Failure 500 {object} models.EntryResponse "Internal server error"
// @Router /entries [get]
func NewListEntriesHandler(svc EntryLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.List(r.Context())
		if err != nil {
			logger.Log.Errorw("internal server error", "err", err)
			writeJSON(w, http.StatusInternalServerError, models.EntryResponse{Message: msgInternalError})
			return
		}
		writeJSON(w, http.StatusOK, nonNil(entries))
	}
}

// NewRankingHandler returns an HTTP handler for the ranking.
// @Summary Ranking
// @Description Returns every entry ordered by count, ties broken by last update.
// @Tags entries
// @Produce json
// @Success 200 {array} models.Entry
// @Failure 500 {object} models.EntryResponse "Internal server error"
// @Router /ranking [get]
func NewRankingHandler(svc RankingLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.Ranking(r.Context())
		if err != nil {
			logger.Log.Errorw("internal server error", "err", err)
			writeJSON(w, http.StatusInternalServerError, models.EntryResponse{Message: msgInternalError})
			return
		}
		writeJSON(w, http.StatusOK, nonNil(entries))
	}
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil(entries []models.Entry) []models.Entry {
	if entries == nil {
		return []models.Entry{}
	}
	return entries
}
