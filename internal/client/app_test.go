package client

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/sbilibin2017/romako-counter/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type appMocks struct {
	api      *MockAPI
	socket   *MockBroadcast
	sessions *MockSessionStore
}

func newTestApp(t *testing.T) (*App, *appMocks) {
	ctrl := gomock.NewController(t)
	m := &appMocks{
		api:      NewMockAPI(ctrl),
		socket:   NewMockBroadcast(ctrl),
		sessions: NewMockSessionStore(ctrl),
	}
	return NewApp(m.api, m.socket, m.sessions), m
}

var alice = models.User{ID: "u1", Name: "Alice"}

func loggedIn(t *testing.T) (*App, *appMocks) {
	app, m := newTestApp(t)
	m.socket.EXPECT().OnEntryCreated(gomock.Any())
	m.sessions.EXPECT().Load().Return(&alice, nil)
	m.socket.EXPECT().Connect(gomock.Any()).Return(nil)
	m.socket.EXPECT().Join("u1", "Alice").Return(nil)
	require.NoError(t, app.Start(context.Background()))
	return app, m
}

func TestApp_StartRestoresSession(t *testing.T) {
	app, _ := loggedIn(t)
	require.NotNil(t, app.User())
	assert.Equal(t, "Alice", app.User().Name)
	assert.Equal(t, TabPost, app.Tab())
}

func TestApp_StartWithoutSession(t *testing.T) {
	app, m := newTestApp(t)
	m.socket.EXPECT().OnEntryCreated(gomock.Any())
	m.sessions.EXPECT().Load().Return(nil, nil)

	require.NoError(t, app.Start(context.Background()))
	assert.Nil(t, app.User())
}

func TestApp_Login(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		setup     func(m *appMocks)
		wantMsg   string
		wantErr   bool
		wantLogin bool
	}{
		{
			name:  "success trims the name",
			input: "  Alice ",
			setup: func(m *appMocks) {
				gomock.InOrder(
					m.api.EXPECT().CreateUser(gomock.Any(), "Alice").Return(&alice, nil),
					m.sessions.EXPECT().Save(alice).Return(nil),
					m.socket.EXPECT().Connect(gomock.Any()).Return(nil),
					m.socket.EXPECT().Join("u1", "Alice").Return(nil),
				)
			},
			wantLogin: true,
		},
		{
			name:    "blank name",
			input:   "   ",
			setup:   func(m *appMocks) {},
			wantMsg: MsgNameRequired,
		},
		{
			name:  "server rejects",
			input: "Alice",
			setup: func(m *appMocks) {
				m.api.EXPECT().CreateUser(gomock.Any(), "Alice").
					Return(nil, &APIError{StatusCode: http.StatusBadRequest, Message: "Validation error: Name is required"})
			},
			wantMsg: "Validation error: Name is required",
		},
		{
			name:  "server rejects without message",
			input: "Alice",
			setup: func(m *appMocks) {
				m.api.EXPECT().CreateUser(gomock.Any(), "Alice").Return(nil, &APIError{StatusCode: http.StatusInternalServerError})
			},
			wantMsg: MsgUserFailed,
		},
		{
			name:  "network failure",
			input: "Alice",
			setup: func(m *appMocks) {
				m.api.EXPECT().CreateUser(gomock.Any(), "Alice").Return(nil, errors.New("connection refused"))
			},
			wantMsg: MsgUserError,
			wantErr: true,
		},
		{
			name:  "socket failure still logs in",
			input: "Alice",
			setup: func(m *appMocks) {
				m.api.EXPECT().CreateUser(gomock.Any(), "Alice").Return(&alice, nil)
				m.sessions.EXPECT().Save(alice).Return(errors.New("read-only fs"))
				m.socket.EXPECT().Connect(gomock.Any()).Return(errors.New("dial failed"))
			},
			wantLogin: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, m := newTestApp(t)
			tt.setup(m)

			msg, err := app.Login(context.Background(), tt.input)
			assert.Equal(t, tt.wantMsg, msg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantLogin, app.User() != nil)
		})
	}
}

func TestApp_Logout(t *testing.T) {
	app, m := loggedIn(t)

	m.sessions.EXPECT().Clear().Return(nil)
	m.socket.EXPECT().Close().Return(nil)

	require.NoError(t, app.Logout())
	assert.Nil(t, app.User())
}

func TestApp_Post(t *testing.T) {
	t.Run("requires login", func(t *testing.T) {
		app, _ := newTestApp(t)
		msg, ok := app.Post(context.Background(), "だいたいロマ子")
		assert.False(t, ok)
		assert.Equal(t, MsgLoginRequired, msg)
	})

	tests := []struct {
		name    string
		input   string
		setup   func(m *appMocks)
		wantMsg string
		wantOK  bool
	}{
		{
			name:  "success trims and increments refresh key",
			input: "  だいたいロマ子  ",
			setup: func(m *appMocks) {
				m.api.EXPECT().
					CreateEntry(gomock.Any(), models.CreateEntryRequest{Text: "だいたいロマ子", UserID: &alice.ID, UserName: &alice.Name}).
					Return(&models.EntryResponse{Success: true, Entry: &models.Entry{ID: 1}}, nil)
			},
			wantMsg: MsgSaved,
			wantOK:  true,
		},
		{
			name:    "blank text",
			input:   " \n ",
			setup:   func(m *appMocks) {},
			wantMsg: MsgTextRequired,
		},
		{
			name:  "server message on 400",
			input: "hello",
			setup: func(m *appMocks) {
				m.api.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).
					Return(&models.EntryResponse{Message: "no keyword"}, &APIError{StatusCode: http.StatusBadRequest, Message: "no keyword"})
			},
			wantMsg: "no keyword",
		},
		{
			name:  "generic message on 500",
			input: "だいたいロマ子",
			setup: func(m *appMocks) {
				m.api.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).
					Return(&models.EntryResponse{Message: "Internal server error"}, &APIError{StatusCode: http.StatusInternalServerError, Message: "Internal server error"})
			},
			wantMsg: MsgPostFailed,
		},
		{
			name:  "generic message on network failure",
			input: "だいたいロマ子",
			setup: func(m *appMocks) {
				m.api.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))
			},
			wantMsg: MsgPostFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, m := loggedIn(t)
			tt.setup(m)

			msg, ok := app.Post(context.Background(), tt.input)
			assert.Equal(t, tt.wantMsg, msg)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, 1, app.RefreshKey())
			} else {
				assert.Equal(t, 0, app.RefreshKey())
			}
		})
	}
}

func TestApp_SwitchTab(t *testing.T) {
	app, m := loggedIn(t)
	ctx := context.Background()

	list := []models.Entry{entry(1, "だいたいロマ子", 1, 0)}

	// First activation fetches.
	m.api.EXPECT().ListEntries(gomock.Any()).Return(list, nil)
	require.NoError(t, app.SwitchTab(ctx, TabList))
	assert.Equal(t, TabList, app.Tab())
	assert.Len(t, app.List.Entries(), 1)

	// Switching away and back keeps the cache.
	require.NoError(t, app.SwitchTab(ctx, TabPost))
	require.NoError(t, app.SwitchTab(ctx, TabList))

	// A local post makes list and ranking stale.
	m.api.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).Return(&models.EntryResponse{Success: true}, nil)
	_, ok := app.Post(ctx, "大体ロマ子")
	require.True(t, ok)

	m.api.EXPECT().ListEntries(gomock.Any()).Return(append(list, entry(2, "大体ロマ子", 1, 0)), nil)
	require.NoError(t, app.SwitchTab(ctx, TabList))
	assert.Len(t, app.List.Entries(), 2)

	m.api.EXPECT().Ranking(gomock.Any()).Return(nil, errors.New("down"))
	require.NoError(t, app.SwitchTab(ctx, TabRanking))
	assert.Equal(t, MsgFetchFailed, app.Ranking.Err())

	// A failed view is fetched again on the next activation.
	require.NoError(t, app.SwitchTab(ctx, TabPost))
	m.api.EXPECT().Ranking(gomock.Any()).Return(list, nil)
	require.NoError(t, app.SwitchTab(ctx, TabRanking))
	assert.Empty(t, app.Ranking.Err())

	m.api.EXPECT().Ranking(gomock.Any()).Return(list, nil)
	require.NoError(t, app.Retry(ctx))

	assert.ErrorIs(t, app.SwitchTab(ctx, Tab("settings")), ErrUnknownTab)
}

func TestApp_HandleEntry(t *testing.T) {
	app, _ := loggedIn(t)

	app.HandleEntry(entry(1, "a", 1, 0))
	app.HandleEntry(entry(2, "b", 5, 0))
	app.HandleEntry(entry(1, "a", 2, 0))

	assert.Len(t, app.List.Entries(), 2)
	assert.Equal(t, []string{"b", "a"}, texts(app.Ranking.Entries()))
	assert.Equal(t, 2, app.Ranking.Entries()[1].Count)
}

func TestApp_Close(t *testing.T) {
	app, m := newTestApp(t)
	m.socket.EXPECT().OffEntryCreated()
	m.socket.EXPECT().Close().Return(nil)
	assert.NoError(t, app.Close())
}
