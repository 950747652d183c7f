package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sbilibin2017/romako-counter/internal/logger"
	"github.com/sbilibin2017/romako-counter/internal/models"
	"github.com/sbilibin2017/romako-counter/internal/services"
)

//go:generate mockgen -source=users.go -destination=mock_users.go -package=handlers

// UserCreator defines the interface that the service must implement.
type UserCreator interface {
	Create(ctx context.Context, name string) (*models.User, error)
}

// UserGetter looks a user up by id.
type UserGetter interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

// NewCreateUserHandler returns an HTTP handler for user registration.
// @Summary Register a user
// @Description Creates a user with a freshly generated id.
// @Tags users
// @Accept json
// @Produce json
// @Param request body models.CreateUserRequest true "User registration request"
// @Success 200 {object} models.UserResponse "User created"
// @Failure 400 {object} models.UserResponse "Empty name or malformed body"
// @Failure 500 {object} models.UserResponse "Internal server error"
// @Router /users [post]
func NewCreateUserHandler(svc UserCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateUserRequest

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, models.UserResponse{Message: msgInvalidBody})
			return
		}

		user, err := svc.Create(r.Context(), req.Name)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrEmptyName):
				writeJSON(w, http.StatusBadRequest, models.UserResponse{Message: msgNameRequired})
			default:
				logger.Log.Errorw("internal server error", "err", err)
				writeJSON(w, http.StatusInternalServerError, models.UserResponse{Message: msgInternalError})
			}
			return
		}

		writeJSON(w, http.StatusOK, models.UserResponse{
			Success: true,
			Message: msgUserCreated,
			User:    user,
		})
	}
}

// NewGetUserHandler returns an HTTP handler fetching a user by id.
// @Summary Get a user
// @Tags users
// @Produce json
// @Param id path string true "User id"
// @Success 200 {object} models.UserResponse "User found"
// @Failure 404 {object} models.UserResponse "User not found"
// @Failure 500 {object} models.UserResponse "Internal server error"
// @Router /users/{id} [get]
func NewGetUserHandler(svc UserGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		user, err := svc.Get(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrUserNotFound):
				writeJSON(w, http.StatusNotFound, models.UserResponse{Message: msgUserNotFound})
			default:
				logger.Log.Errorw("internal server error", "err", err)
				writeJSON(w, http.StatusInternalServerError, models.UserResponse{Message: msgInternalError})
			}
			return
		}

		writeJSON(w, http.StatusOK, models.UserResponse{
			Success: true,
			Message: msgUserFound,
			User:    user,
		})
	}
}
