// Package apiclient is a typed HTTP client for the registry API, used by
// the command line tools.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"coopregistry/portal-backend/pkg/repository"
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Token is the login response.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Role        string    `json:"role"`
}

// File is a downloaded document.
type File struct {
	Filename    string
	ContentType string
	DocumentID  string
	Data        []byte
}

// API holds the connection shared by every resource client.
type API struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// Option configures an API.
type Option func(*API)

func WithHTTPClient(c *http.Client) Option {
	return func(a *API) { a.http = c }
}

func WithToken(token string) Option {
	return func(a *API) { a.token = token }
}

// New creates an API for baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *API {
	a := &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetToken replaces the bearer token sent with every request.
func (a *API) SetToken(token string) {
	a.mu.Lock()
	a.token = token
	a.mu.Unlock()
}

// Login exchanges credentials for a token and uses it for later requests.
func (a *API) Login(ctx context.Context, username, password string) (*Token, error) {
	var token Token
	body := map[string]string{"username": username, "password": password}
	if err := a.Do(ctx, http.MethodPost, "/api/v1/auth/login", nil, body, &token); err != nil {
		return nil, err
	}
	a.SetToken(token.AccessToken)
	return &token, nil
}

// Do sends a JSON request and decodes a JSON response into out (when not nil).
func (a *API) Do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	resp, err := a.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Download sends a request answered with a file attachment. It returns nil
// and no error on 204 No Content.
func (a *API) Download(ctx context.Context, method, path string, query url.Values, body interface{}) (*File, error) {
	resp, err := a.send(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	f := &File{
		ContentType: resp.Header.Get("Content-Type"),
		DocumentID:  resp.Header.Get("X-Document-ID"),
		Data:        data,
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		f.Filename = params["filename"]
	}
	return f, nil
}

func (a *API) send(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Response, error) {
	target := a.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	a.mu.RLock()
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	a.mu.RUnlock()

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		apiErr.Message = payload.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return nil, apiErr
}

// Client is a typed client for one resource collection, such as
// "/api/v1/cooperatives".
type Client[T any] struct {
	api  *API
	path string
}

// NewClient creates a client for the collection at path.
func NewClient[T any](api *API, path string) *Client[T] {
	return &Client[T]{api: api, path: "/" + strings.Trim(path, "/")}
}

// QueryValues encodes q the way list endpoints read it.
func QueryValues(q repository.Query) url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	for k, val := range q.Filters {
		v.Set(k, val)
	}
	return v
}

func (c *Client[T]) List(ctx context.Context, q repository.Query) (*repository.Page[T], error) {
	var page repository.Page[T]
	if err := c.api.Do(ctx, http.MethodGet, c.path, QueryValues(q), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Get fetches one item. Responses wrapped as {"data": item} are unwrapped.
func (c *Client[T]) Get(ctx context.Context, id uuid.UUID) (*T, error) {
	var raw json.RawMessage
	if err := c.api.Do(ctx, http.MethodGet, c.item(id), nil, nil, &raw); err != nil {
		return nil, err
	}
	return decodeItem[T](raw)
}

func (c *Client[T]) Create(ctx context.Context, item *T) (*T, error) {
	var out T
	if err := c.api.Do(ctx, http.MethodPost, c.path, nil, item, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client[T]) Update(ctx context.Context, id uuid.UUID, item *T) (*T, error) {
	var out T
	if err := c.api.Do(ctx, http.MethodPut, c.item(id), nil, item, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client[T]) Delete(ctx context.Context, id uuid.UUID) error {
	return c.api.Do(ctx, http.MethodDelete, c.item(id), nil, nil, nil)
}

func (c *Client[T]) item(id uuid.UUID) string {
	return c.path + "/" + id.String()
}

func decodeItem[T any](raw json.RawMessage) (*T, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Data) > 0 && envelope.Data[0] == '{' {
		raw = envelope.Data
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}
