package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sbilibin2017/romako-counter/internal/models"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string // message field of the response envelope, if any
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// IsClientError reports whether the server rejected the request itself.
func (e *APIError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// APIClient talks to the REST endpoints under /api.
type APIClient struct {
	baseURL string
	http    *http.Client
}

// NewAPIClient creates a client for the server at baseURL, e.g. http://localhost:3001.
func NewAPIClient(baseURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/") + "/api",
		http:    httpClient,
	}
}

// CreateEntry posts an entry. A rejected post returns the envelope together with an *APIError.
func (c *APIClient) CreateEntry(ctx context.Context, req models.CreateEntryRequest) (*models.EntryResponse, error) {
	var resp models.EntryResponse
	if err := c.do(ctx, http.MethodPost, "/entries", req, &resp); err != nil {
		return &resp, err
	}
	return &resp, nil
}

// ListEntries returns all entries, newest update first.
func (c *APIClient) ListEntries(ctx context.Context) ([]models.Entry, error) {
	var entries []models.Entry
	if err := c.do(ctx, http.MethodGet, "/entries", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Ranking returns all entries, highest count first.
func (c *APIClient) Ranking(ctx context.Context) ([]models.Entry, error) {
	var entries []models.Entry
	if err := c.do(ctx, http.MethodGet, "/ranking", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CreateUser registers name and returns the new user.
func (c *APIClient) CreateUser(ctx context.Context, name string) (*models.User, error) {
	var resp models.UserResponse
	if err := c.do(ctx, http.MethodPost, "/users", models.CreateUserRequest{Name: name}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.User == nil {
		return nil, &APIError{StatusCode: http.StatusOK, Message: resp.Message}
	}
	return resp.User, nil
}

// GetUser fetches a user by id.
func (c *APIClient) GetUser(ctx context.Context, id string) (*models.User, error) {
	var resp models.UserResponse
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &envelope) == nil {
			apiErr.Message = envelope.Message
		}
		if out != nil {
			_ = json.Unmarshal(raw, out)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
