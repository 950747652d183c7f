package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sbilibin2017/romako-counter/internal/database"
	"github.com/sbilibin2017/romako-counter/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"cmd", "-c", "custom.env"}
	assert.Equal(t, "custom.env", parseFlags())
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := parseConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.AppHost)
	assert.Equal(t, "3001", cfg.AppPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "http://localhost:3000", cfg.CORSOrigin)
	assert.Equal(t, database.DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "database.sqlite", cfg.SQLitePath)
	assert.Equal(t, 5432, cfg.PGPort)
	assert.Empty(t, cfg.RedisHost)
	assert.Equal(t, 30, cfg.CacheExpSecond)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "romako.entries", cfg.KafkaTopic)
}

func TestParseConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.env")
	content := strings.Join([]string{
		"APP_PORT=9000",
		"APP_ENV=test",
		"DB_DRIVER=pgx",
		"POSTGRES_PORT=6543",
		"REDIS_HOST=cache",
		"KAFKA_BROKERS=k1:9092, k2:9092,",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// godotenv does not override variables that are already set.
	for _, key := range []string{"APP_PORT", "APP_ENV", "DB_DRIVER", "POSTGRES_PORT", "REDIS_HOST", "KAFKA_BROKERS"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := parseConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.AppPort)
	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, database.DriverPostgres, cfg.DBDriver)
	assert.Equal(t, 6543, cfg.PGPort)
	assert.Equal(t, "cache", cfg.RedisHost)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"POSTGRES_PORT", "abc"},
		{"REDIS_DB", "x"},
		{"CACHE_EXP_SECOND", "soon"},
		{"DB_DRIVER", "mysql"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := parseConfig("nonexistent.env")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestDatabaseConfig(t *testing.T) {
	base := config{DBDriver: database.DriverSQLite, SQLitePath: "/tmp/x.sqlite", PGHost: "db", PGPort: 5432, PGUser: "u", PGPassword: "p", PGDB: "d"}

	cfg := base
	cfg.Env = "test"
	cfg.DBDriver = database.DriverPostgres
	assert.Equal(t, database.SQLiteMemoryDSN(), databaseConfig(cfg).DSN, "test env wins over driver")

	cfg = base
	got := databaseConfig(cfg)
	assert.Equal(t, database.DriverSQLite, got.Driver)
	assert.Contains(t, got.DSN, "/tmp/x.sqlite")
	assert.Contains(t, got.DSN, "_foreign_keys=on")

	cfg.DBDriver = database.DriverPostgres
	got = databaseConfig(cfg)
	assert.Equal(t, database.DriverPostgres, got.Driver)
	assert.Equal(t, "postgres://u:p@db:5432/d?sslmode=disable", got.DSN)
}

func TestNewServer_FileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "romako.sqlite")
	cfg := testConfig()
	cfg.Env = "production"
	cfg.SQLitePath = path

	s, err := newServer(context.Background(), cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(s.router)
	postEntry(t, ts.URL, `{"text":"だいたいロマ子"}`)
	ts.Close()
	s.Close()

	s, err = newServer(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()
	ts = httptest.NewServer(s.router)
	defer ts.Close()

	resp := postEntry(t, ts.URL, `{"text":"だいたいロマ子"}`)
	require.NotNil(t, resp.Entry)
	assert.Equal(t, 2, resp.Entry.Count)
}

func TestNewServer_RedisUnavailable(t *testing.T) {
	cfg := testConfig()
	cfg.RedisHost = "127.0.0.1"
	cfg.RedisPort = 1

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := newServer(ctx, cfg)
	require.Error(t, err)
	assert.Nil(t, s)
	assert.Contains(t, err.Error(), "redis ping")
}

func TestRun_Shutdown(t *testing.T) {
	cfg := testConfig()
	cfg.AppHost = "127.0.0.1"
	cfg.AppPort = "0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRun_InvalidLogLevel(t *testing.T) {
	cfg := testConfig()
	cfg.LogLevel = "loud"
	assert.Error(t, run(context.Background(), cfg))
}

// --- end-to-end over the real router ---

func testConfig() config {
	return config{
		AppHost:    "localhost",
		AppPort:    "3001",
		LogLevel:   "error",
		Env:        "test",
		CORSOrigin: "http://localhost:3000",
		DBDriver:   database.DriverSQLite,
		KafkaTopic: "romako.entries",
	}
}

func startServer(t *testing.T) (*server, *httptest.Server) {
	t.Helper()
	s, err := newServer(context.Background(), testConfig())
	require.NoError(t, err)
	ts := httptest.NewServer(s.router)
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return s, ts
}

func doJSON(t *testing.T, method, url, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func postEntry(t *testing.T, base, body string) models.EntryResponse {
	t.Helper()
	var resp models.EntryResponse
	code := doJSON(t, http.MethodPost, base+"/api/entries", body, &resp)
	require.Equal(t, http.StatusOK, code, resp.Message)
	return resp
}

func TestServer_Health(t *testing.T) {
	_, ts := startServer(t)

	var resp models.HealthResponse
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/health", "", &resp))
	assert.Equal(t, "OK", resp.Status)
	assert.Equal(t, "ロマ子あるある挨拶カウンター API is running", resp.Message)
}

func TestServer_KeywordRejection(t *testing.T) {
	_, ts := startServer(t)

	tests := []struct {
		body    string
		message string
	}{
		{`{"text":"hello"}`, `Text must contain "だいたいロマ子" or "大体ロマ子"`},
		{`{"text":""}`, "Validation error: Text is required"},
		{`{"text":"   "}`, "Validation error: Text is required"},
		{`{}`, "Validation error: Text is required"},
	}

	for _, tt := range tests {
		var resp models.EntryResponse
		assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, ts.URL+"/api/entries", tt.body, &resp))
		assert.False(t, resp.Success)
		assert.Equal(t, tt.message, resp.Message)
	}

	var list []models.Entry
	doJSON(t, http.MethodGet, ts.URL+"/api/entries", "", &list)
	assert.Empty(t, list, "rejected posts leave no rows")
}

func TestServer_UserRoundTrip(t *testing.T) {
	_, ts := startServer(t)

	var created models.UserResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/api/users", `{"name":"Alice"}`, &created))
	assert.True(t, created.Success)
	assert.Equal(t, "User created successfully", created.Message)
	require.NotNil(t, created.User)
	assert.Len(t, created.User.ID, 36)

	var found models.UserResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/users/"+created.User.ID, "", &found))
	assert.Equal(t, "User found", found.Message)
	assert.Equal(t, created.User.ID, found.User.ID)
	assert.Equal(t, "Alice", found.User.Name)
	assert.True(t, created.User.CreatedAt.Equal(found.User.CreatedAt))

	var missing models.UserResponse
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, ts.URL+"/api/users/nope", "", &missing))
	assert.False(t, missing.Success)
	assert.Equal(t, "User not found", missing.Message)

	var empty models.UserResponse
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, ts.URL+"/api/users", `{"name":""}`, &empty))
	assert.Equal(t, "Validation error: Name is required", empty.Message)
}

// A registered user posts twice, someone else posts once, and the views order accordingly.
func TestServer_CountingAndOrdering(t *testing.T) {
	_, ts := startServer(t)

	var alice models.UserResponse
	doJSON(t, http.MethodPost, ts.URL+"/api/users", `{"name":"Alice"}`, &alice)
	body := `{"text":"おはよう、だいたいロマ子","userId":"` + alice.User.ID + `","userName":"Alice"}`

	first := postEntry(t, ts.URL, body)
	assert.Equal(t, "Entry saved successfully", first.Message)
	assert.Equal(t, 1, first.Entry.Count)
	require.NotNil(t, first.Entry.UserName)
	assert.Equal(t, "Alice", *first.Entry.UserName)

	second := postEntry(t, ts.URL, body)
	assert.Equal(t, first.Entry.ID, second.Entry.ID)
	assert.Equal(t, 2, second.Entry.Count)
	assert.True(t, second.Entry.CreatedAt.Equal(first.Entry.CreatedAt))
	assert.False(t, second.Entry.UpdatedAt.Before(first.Entry.UpdatedAt))

	anon := postEntry(t, ts.URL, `{"text":"大体ロマ子"}`)
	assert.Equal(t, 1, anon.Entry.Count)
	assert.Nil(t, anon.Entry.UserID)
	assert.Nil(t, anon.Entry.UserName)

	var list []models.Entry
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/entries", "", &list))
	require.Len(t, list, 2)
	assert.Equal(t, "大体ロマ子", list[0].Text, "most recently updated first")

	var ranking []models.Entry
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/ranking", "", &ranking))
	require.Len(t, ranking, 2)
	assert.Equal(t, "おはよう、だいたいロマ子", ranking[0].Text)
	assert.Equal(t, 2, ranking[0].Count)

	// An anonymous repeat clears the poster identity.
	third := postEntry(t, ts.URL, `{"text":"おはよう、だいたいロマ子"}`)
	assert.Equal(t, 3, third.Entry.Count)
	assert.Nil(t, third.Entry.UserID)
}

func TestServer_UnknownUserIsInternalError(t *testing.T) {
	_, ts := startServer(t)

	var resp models.EntryResponse
	code := doJSON(t, http.MethodPost, ts.URL+"/api/entries", `{"text":"だいたいロマ子","userId":"ghost"}`, &resp)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Internal server error", resp.Message)
}

func TestServer_PostWithUserUpsertsUser(t *testing.T) {
	_, ts := startServer(t)

	postEntry(t, ts.URL, `{"text":"だいたいロマ子","userId":"u-42","userName":"Bob"}`)

	var found models.UserResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/users/u-42", "", &found))
	assert.Equal(t, "Bob", found.User.Name)
}

func TestServer_ConcurrentFirstPosts(t *testing.T) {
	_, ts := startServer(t)

	const n = 8
	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/entries", strings.NewReader(`{"text":"同時のだいたいロマ子"}`))
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			resp.Body.Close()
			codes[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}

	var list []models.Entry
	doJSON(t, http.MethodGet, ts.URL+"/api/entries", "", &list)
	require.Len(t, list, 1)
	assert.Equal(t, n, list[0].Count)
}

func TestServer_BroadcastToEveryClient(t *testing.T) {
	s, ts := startServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	var conns []*websocket.Conn
	for i := 0; i < 2; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()
		conns = append(conns, conn)
	}
	require.Eventually(t, func() bool { return s.hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	posted := postEntry(t, ts.URL, `{"text":"だいたいロマ子","userId":"u1","userName":"Alice"}`)

	for _, conn := range conns {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)

		var ev models.Event
		require.NoError(t, json.Unmarshal(msg, &ev))
		assert.Equal(t, models.EventEntryCreated, ev.Event)

		var entry models.Entry
		require.NoError(t, json.Unmarshal(ev.Data, &entry))
		assert.Equal(t, posted.Entry.ID, entry.ID)
		assert.Equal(t, 1, entry.Count)
		require.NotNil(t, entry.UserName)
		assert.Equal(t, "Alice", *entry.UserName)
	}
}

func TestServer_WebsocketForeignOrigin(t *testing.T) {
	_, ts := startServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServer_CORSPreflight(t *testing.T) {
	_, ts := startServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/entries", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_MetricsAndDocs(t *testing.T) {
	_, ts := startServer(t)

	postEntry(t, ts.URL, `{"text":"だいたいロマ子"}`)
	postEntry(t, ts.URL, `{"text":"だいたいロマ子"}`)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	body := buf.String()
	assert.Contains(t, body, `romako_entries_saved_total{result="created"} 1`)
	assert.Contains(t, body, `romako_entries_saved_total{result="incremented"} 1`)
	assert.Contains(t, body, `route="/api/entries"`)

	docResp, err := http.Get(ts.URL + "/swagger/doc.json")
	require.NoError(t, err)
	defer docResp.Body.Close()
	assert.Equal(t, http.StatusOK, docResp.StatusCode)

	var doc map[string]any
	require.NoError(t, json.NewDecoder(docResp.Body).Decode(&doc))
	assert.Equal(t, "/api", doc["basePath"])
}
