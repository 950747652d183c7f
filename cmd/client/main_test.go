package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/sbilibin2017/romako-counter/internal/client"
	"github.com/sbilibin2017/romako-counter/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepl(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := client.NewMockAPI(ctrl)
	socket := client.NewMockBroadcast(ctrl)
	sessions := client.NewMockSessionStore(ctrl)

	user := &models.User{ID: "u1", Name: "Alice"}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	entries := []models.Entry{
		{ID: 1, Text: "だいたいロマ子", Count: 1, CreatedAt: now, UpdatedAt: now},
		{ID: 2, Text: "大体ロマ子", Count: 4, CreatedAt: now, UpdatedAt: now},
	}

	api.EXPECT().CreateUser(gomock.Any(), "Alice").Return(user, nil)
	sessions.EXPECT().Save(*user).Return(nil)
	socket.EXPECT().Connect(gomock.Any()).Return(nil)
	socket.EXPECT().Join("u1", "Alice").Return(nil)
	api.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).Return(&models.EntryResponse{Success: true}, nil)
	api.EXPECT().Ranking(gomock.Any()).Return(entries, nil)
	api.EXPECT().ListEntries(gomock.Any()).Return(nil, errors.New("down"))

	app := client.NewApp(api, socket, sessions)

	in := strings.NewReader(strings.Join([]string{
		"post だいたいロマ子",
		"login Alice",
		"whoami",
		"post だいたいロマ子",
		"tab ranking",
		"tab list",
		"tab settings",
		"bogus",
		"quit",
	}, "\n"))
	var out bytes.Buffer

	require.NoError(t, repl(context.Background(), app, in, &out))

	got := out.String()
	assert.Contains(t, got, client.MsgLoginRequired)
	assert.Contains(t, got, "ようこそ、Aliceさん")
	assert.Contains(t, got, "Alice (u1)")
	assert.Contains(t, got, client.MsgSaved)
	assert.Contains(t, got, "🥇 大体ロマ子  [4回]")
	assert.Contains(t, got, "🥈 だいたいロマ子  [1回]")
	assert.Contains(t, got, client.MsgFetchFailed)
	assert.Contains(t, got, client.ErrUnknownTab.Error())
	assert.Contains(t, got, `unknown command "bogus"`)
	assert.Equal(t, client.TabList, app.Tab())
}

func TestRepl_GreetsRestoredUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	socket := client.NewMockBroadcast(ctrl)
	sessions := client.NewMockSessionStore(ctrl)

	socket.EXPECT().OnEntryCreated(gomock.Any())
	sessions.EXPECT().Load().Return(&models.User{ID: "u1", Name: "Alice"}, nil)
	socket.EXPECT().Connect(gomock.Any()).Return(nil)
	socket.EXPECT().Join("u1", "Alice").Return(nil)

	app := client.NewApp(client.NewMockAPI(ctrl), socket, sessions)
	require.NoError(t, app.Start(context.Background()))

	var out bytes.Buffer
	require.NoError(t, repl(context.Background(), app, strings.NewReader(""), &out))
	assert.Contains(t, out.String(), "おかえりなさい、Aliceさん")
}

func TestNotifyingSocket(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := client.NewMockBroadcast(ctrl)

	var registered func(models.Entry)
	inner.EXPECT().OnEntryCreated(gomock.Any()).Do(func(fn func(models.Entry)) { registered = fn })

	var out bytes.Buffer
	s := &notifyingSocket{Broadcast: inner, out: &out}

	var got models.Entry
	s.OnEntryCreated(func(e models.Entry) { got = e })
	require.NotNil(t, registered)

	registered(models.Entry{ID: 7, Text: "大体ロマ子", Count: 2})
	assert.Equal(t, int64(7), got.ID)
	assert.Contains(t, out.String(), "大体ロマ子  [カウント: 2]")
}

func TestScanLines(t *testing.T) {
	t.Run("reads until EOF", func(t *testing.T) {
		done := make(chan struct{})
		defer close(done)

		lines, errc := scanLines(strings.NewReader("login Alice\npost だいたいロマ子\n"), done)

		var got []string
		for l := range lines {
			got = append(got, l)
		}
		assert.Equal(t, []string{"login Alice", "post だいたいロマ子"}, got)
		assert.NoError(t, <-errc)
	})

	t.Run("stops when nobody reads", func(t *testing.T) {
		done := make(chan struct{})
		_, errc := scanLines(strings.NewReader("a\nb\nc\n"), done)
		close(done)

		select {
		case err := <-errc:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("reader goroutine still blocked after done was closed")
		}
	})
}

func TestRepl_StopsOnContextDone(t *testing.T) {
	ctrl := gomock.NewController(t)
	app := client.NewApp(client.NewMockAPI(ctrl), client.NewMockBroadcast(ctrl), client.NewMockSessionStore(ctrl))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	assert.NoError(t, repl(ctx, app, strings.NewReader("whoami\nwhoami\n"), &out))
}
