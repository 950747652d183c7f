package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sbilibin2017/romako-counter/internal/logger"
	"github.com/sbilibin2017/romako-counter/internal/models"
	"github.com/sbilibin2017/romako-counter/internal/repositories"
)

//go:generate mockgen -source=entry.go -destination=mock_entry.go -package=services

// Keyword forms accepted in a post. Either one must appear verbatim.
var Keywords = []string{"だいたいロマ子", "大体ロマ子"}

// Error variables
var (
	ErrEmptyText      = errors.New("text is required")
	ErrMissingKeyword = errors.New("text must contain a keyword phrase")
)

// EntryWriter upserts entries keyed by text.
type EntryWriter interface {
	Save(ctx context.Context, text string, userID, userName *string) (*models.Entry, error)
}

// EntryReader lists entries in the two supported orders.
type EntryReader interface {
	ListByUpdated(ctx context.Context) ([]models.Entry, error)
	ListByCount(ctx context.Context) ([]models.Entry, error)
}

// Transactor runs fn inside a single transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EntryCache caches the full entry lists. Invalidate advances the generation
// returned by Generation.
type EntryCache interface {
	Generation(ctx context.Context) (int64, error)
	GetEntries(ctx context.Context, key string) ([]models.Entry, error)
	SetEntries(ctx context.Context, key string, entries []models.Entry) error
	Invalidate(ctx context.Context) error
}

// Broadcaster fans an event out to every connected client.
type Broadcaster interface {
	Publish(event string, payload any)
}

// EntryEventPublisher exports saved entries to an external stream.
type EntryEventPublisher interface {
	PublishEntry(ctx context.Context, entry models.Entry) error
}

// EntryRecorder observes saved entries.
type EntryRecorder interface {
	EntrySaved(created bool)
}

// EntryService validates posts, persists them and announces the result.
type EntryService struct {
	tx          Transactor
	users       UserWriter
	writer      EntryWriter
	reader      EntryReader
	broadcaster Broadcaster
	cache       EntryCache
	events      EntryEventPublisher
	recorder    EntryRecorder
}

// EntryServiceOption configures optional collaborators of EntryService.
type EntryServiceOption func(*EntryService)

// WithEntryCache enables read-through caching of the entry lists.
func WithEntryCache(cache EntryCache) EntryServiceOption {
	return func(s *EntryService) { s.cache = cache }
}

// WithEntryEvents exports every saved entry.
func WithEntryEvents(events EntryEventPublisher) EntryServiceOption {
	return func(s *EntryService) { s.events = events }
}

// WithEntryRecorder attaches an observer of saved entries.
func WithEntryRecorder(recorder EntryRecorder) EntryServiceOption {
	return func(s *EntryService) { s.recorder = recorder }
}

// NewEntryService creates a new EntryService.
func NewEntryService(
	tx Transactor,
	users UserWriter,
	writer EntryWriter,
	reader EntryReader,
	broadcaster Broadcaster,
	opts ...EntryServiceOption,
) *EntryService {
	s := &EntryService{
		tx:          tx,
		users:       users,
		writer:      writer,
		reader:      reader,
		broadcaster: broadcaster,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ContainsKeyword reports whether text contains one of the accepted keyword forms.
func ContainsKeyword(text string) bool {
	for _, kw := range Keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// CreateOrUpdate stores a post. When both userID and userName are given the user is
// upserted first, in the same transaction as the entry write. The saved entry is
// broadcast under models.EventEntryCreated before it is returned.
func (s *EntryService) CreateOrUpdate(ctx context.Context, text string, userID, userName *string) (*models.Entry, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if !ContainsKeyword(text) {
		return nil, ErrMissingKeyword
	}

	userID, userName = nonEmpty(userID), nonEmpty(userName)

	var entry *models.Entry
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if userID != nil && userName != nil {
			if _, err := s.users.Save(ctx, *userID, *userName); err != nil {
				return err
			}
		}

		saved, err := s.writer.Save(ctx, text, userID, userName)
		if err != nil {
			return err
		}
		entry = saved
		return nil
	})
	if err != nil {
		logger.Log.Errorw("failed to save entry", "text", text, "userID", userID, "error", err)
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			logger.Log.Errorw("failed to invalidate entry cache", "error", err)
		}
	}

	s.broadcaster.Publish(models.EventEntryCreated, entry)

	if s.events != nil {
		if err := s.events.PublishEntry(ctx, *entry); err != nil {
			logger.Log.Errorw("failed to export entry event", "entryID", entry.ID, "error", err)
		}
	}

	if s.recorder != nil {
		s.recorder.EntrySaved(entry.Count == 1)
	}

	return entry, nil
}

// List returns all entries, most recently updated first.
func (s *EntryService) List(ctx context.Context) ([]models.Entry, error) {
	return s.cached(ctx, repositories.EntriesByUpdatedKey, s.reader.ListByUpdated)
}

// Ranking returns all entries, highest count first.
func (s *EntryService) Ranking(ctx context.Context) ([]models.Entry, error) {
	return s.cached(ctx, repositories.EntriesByCountKey, s.reader.ListByCount)
}

func (s *EntryService) cached(
	ctx context.Context,
	base string,
	load func(ctx context.Context) ([]models.Entry, error),
) ([]models.Entry, error) {
	if s.cache == nil {
		return s.load(ctx, base, load)
	}

	// The generation is read before loading, so a snapshot taken while a write
	// commits is stored under a key readers have already moved past.
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		logger.Log.Errorw("failed to read entry cache generation", "error", err)
		return s.load(ctx, base, load)
	}
	key := repositories.EntryListKey(base, gen)

	entries, err := s.cache.GetEntries(ctx, key)
	if err == nil {
		return entries, nil
	}
	if !errors.Is(err, repositories.ErrCacheMiss) {
		logger.Log.Errorw("failed to read entry cache", "key", key, "error", err)
	}

	entries, err = s.load(ctx, base, load)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetEntries(ctx, key, entries); err != nil {
		logger.Log.Errorw("failed to cache entries", "key", key, "error", err)
	}
	return entries, nil
}

func (s *EntryService) load(
	ctx context.Context,
	base string,
	load func(ctx context.Context) ([]models.Entry, error),
) ([]models.Entry, error) {
	entries, err := load(ctx)
	if err != nil {
		logger.Log.Errorw("failed to list entries", "key", base, "error", err)
		return nil, err
	}
	return entries, nil
}

// nonEmpty maps blank strings to nil so they are stored as NULL.
func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
