package client

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sbilibin2017/romako-counter/internal/logger"
	"github.com/sbilibin2017/romako-counter/internal/models"
)

// FileSessionStore keeps the current user in a JSON file.
type FileSessionStore struct {
	path string
}

// NewFileSessionStore creates a store at path. The file is created on first Save.
func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

// DefaultSessionPath is the session file under the user config directory.
func DefaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "romako-counter", "session.json")
}

// Load returns the saved user, or nil when there is none.
// A file that cannot be decoded is removed and treated as absent.
func (s *FileSessionStore) Load() (*models.User, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := json.Unmarshal(data, &user); err != nil || user.ID == "" {
		logger.Log.Warnw("discarding corrupt session file", "path", s.path, "error", err)
		if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			return nil, rmErr
		}
		return nil, nil
	}
	return &user, nil
}

// Save writes user, replacing any previous session.
func (s *FileSessionStore) Save(user models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Clear removes the session file.
func (s *FileSessionStore) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
