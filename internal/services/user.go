package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sbilibin2017/romako-counter/internal/logger"
	"github.com/sbilibin2017/romako-counter/internal/models"
)

//go:generate mockgen -source=user.go -destination=mock_user.go -package=services

// Error variables
var (
	ErrEmptyName    = errors.New("name is required")
	ErrUserNotFound = errors.New("user not found")
)

// UserReader defines read-only operations for users.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// UserWriter defines write operations for users.
type UserWriter interface {
	Save(ctx context.Context, id, name string) (*models.User, error)
}

// UserService handles registration and lookup.
type UserService struct {
	reader UserReader
	writer UserWriter
	newID  func() string
}

// NewUserService creates a new UserService instance.
func NewUserService(reader UserReader, writer UserWriter) *UserService {
	return &UserService{
		reader: reader,
		writer: writer,
		newID:  uuid.NewString,
	}
}

// Create registers a user under a freshly generated id.
func (svc *UserService) Create(ctx context.Context, name string) (*models.User, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}

	user, err := svc.writer.Save(ctx, svc.newID(), name)
	if err != nil {
		logger.Log.Errorw("failed to save user", "name", name, "err", err)
		return nil, err
	}
	return user, nil
}

// Get returns the user or ErrUserNotFound.
func (svc *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := svc.reader.GetByID(ctx, id)
	if err != nil {
		logger.Log.Errorw("failed to get user", "id", id, "err", err)
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
