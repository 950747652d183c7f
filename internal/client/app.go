package client

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sbilibin2017/romako-counter/internal/logger"
	"github.com/sbilibin2017/romako-counter/internal/models"
)

//go:generate mockgen -source=app.go -destination=mock_app.go -package=client

// Tab is one of the three screens.
type Tab string

const (
	TabPost    Tab = "post"
	TabList    Tab = "list"
	TabRanking Tab = "ranking"
)

// Messages shown to the user.
const (
	MsgLoginRequired = "ログインが必要です"
	MsgTextRequired  = "テキストを入力してください"
	MsgSaved         = "保存されました！"
	MsgPostFailed    = "エラーが発生しました"
	MsgNameRequired  = "名前を入力してください"
	MsgUserFailed    = "ユーザー作成に失敗しました"
	MsgUserError     = "ユーザー作成中にエラーが発生しました"
)

// ErrUnknownTab is returned by SwitchTab for names other than post, list and ranking.
var ErrUnknownTab = errors.New("unknown tab")

// API is the subset of APIClient the app uses.
type API interface {
	CreateEntry(ctx context.Context, req models.CreateEntryRequest) (*models.EntryResponse, error)
	ListEntries(ctx context.Context) ([]models.Entry, error)
	Ranking(ctx context.Context) ([]models.Entry, error)
	CreateUser(ctx context.Context, name string) (*models.User, error)
}

// Broadcast is the subset of Socket the app uses.
type Broadcast interface {
	Connect(ctx context.Context) error
	Join(userID, userName string) error
	OnEntryCreated(fn func(models.Entry))
	OffEntryCreated()
	Close() error
}

// SessionStore persists the logged-in user between runs.
type SessionStore interface {
	Load() (*models.User, error)
	Save(user models.User) error
	Clear() error
}

// App is the tabbed client: a post form, a live list and a live ranking.
type App struct {
	api      API
	socket   Broadcast
	sessions SessionStore

	List    *EntryView
	Ranking *EntryView

	mu         sync.Mutex
	user       *models.User
	tab        Tab
	refreshKey int
}

// NewApp creates an app on the post tab with no user.
func NewApp(api API, socket Broadcast, sessions SessionStore) *App {
	return &App{
		api:      api,
		socket:   socket,
		sessions: sessions,
		List:     NewEntryView(ListView, api.ListEntries),
		Ranking:  NewEntryView(RankingView, api.Ranking),
		tab:      TabPost,
	}
}

// Start restores a saved session and, if one exists, connects and announces it.
func (a *App) Start(ctx context.Context) error {
	a.socket.OnEntryCreated(a.HandleEntry)

	user, err := a.sessions.Load()
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	a.mu.Lock()
	a.user = user
	a.mu.Unlock()

	return a.connect(ctx, *user)
}

// Login registers name and starts a session. The returned message is empty on success.
func (a *App) Login(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return MsgNameRequired, nil
	}

	user, err := a.api.CreateUser(ctx, name)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if apiErr.Message != "" {
				return apiErr.Message, nil
			}
			return MsgUserFailed, nil
		}
		logger.Log.Errorw("failed to create user", "error", err)
		return MsgUserError, err
	}

	if err := a.sessions.Save(*user); err != nil {
		logger.Log.Warnw("failed to save session", "error", err)
	}

	a.mu.Lock()
	a.user = user
	a.mu.Unlock()

	if err := a.connect(ctx, *user); err != nil {
		logger.Log.Warnw("failed to connect socket", "error", err)
	}
	return "", nil
}

// Logout forgets the user and disconnects.
func (a *App) Logout() error {
	a.mu.Lock()
	a.user = nil
	a.mu.Unlock()

	if err := a.sessions.Clear(); err != nil {
		return err
	}
	return a.socket.Close()
}

// User returns the logged-in user, or nil.
func (a *App) User() *models.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user
}

// Post submits text as the current user and returns the message to show.
func (a *App) Post(ctx context.Context, text string) (msg string, ok bool) {
	user := a.User()
	if user == nil {
		return MsgLoginRequired, false
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return MsgTextRequired, false
	}

	resp, err := a.api.CreateEntry(ctx, models.CreateEntryRequest{
		Text:     text,
		UserID:   &user.ID,
		UserName: &user.Name,
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsClientError() && apiErr.Message != "" {
			return apiErr.Message, false
		}
		logger.Log.Errorw("failed to post entry", "error", err)
		return MsgPostFailed, false
	}
	if !resp.Success {
		return resp.Message, false
	}

	a.mu.Lock()
	a.refreshKey++
	a.mu.Unlock()
	return MsgSaved, true
}

// Tab returns the active tab.
func (a *App) Tab() Tab {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tab
}

// RefreshKey counts successful local posts.
func (a *App) RefreshKey() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshKey
}

// SwitchTab activates tab. A list or ranking view is fetched when it has never
// loaded or a local post happened since its last load; otherwise its cached
// entries are kept. A fetch failure is reported on the view, not returned.
func (a *App) SwitchTab(ctx context.Context, tab Tab) error {
	var view *EntryView
	switch tab {
	case TabPost:
	case TabList:
		view = a.List
	case TabRanking:
		view = a.Ranking
	default:
		return ErrUnknownTab
	}

	a.mu.Lock()
	a.tab = tab
	key := a.refreshKey
	a.mu.Unlock()

	if view != nil && view.Stale(key) {
		if err := view.Load(ctx, key); err != nil {
			logger.Log.Warnw("failed to load view", "tab", tab, "error", err)
		}
	}
	return nil
}

// Retry reloads the active view.
func (a *App) Retry(ctx context.Context) error {
	key := a.RefreshKey()
	switch a.Tab() {
	case TabList:
		return a.List.Retry(ctx, key)
	case TabRanking:
		return a.Ranking.Retry(ctx, key)
	}
	return nil
}

// HandleEntry merges a broadcast entry into both views.
func (a *App) HandleEntry(entry models.Entry) {
	a.List.Merge(entry)
	a.Ranking.Merge(entry)
}

// Close detaches from the broadcast channel.
func (a *App) Close() error {
	a.socket.OffEntryCreated()
	return a.socket.Close()
}

func (a *App) connect(ctx context.Context, user models.User) error {
	if err := a.socket.Connect(ctx); err != nil {
		return err
	}
	return a.socket.Join(user.ID, user.Name)
}
