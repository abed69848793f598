// Package restapi is the client for the Stream Cart REST backend, the
// authoritative source every snapshot is reconciled against. All responses
// use the conventional envelope {success, message, data, errors}; all
// requests carry the bearer token from the credential store.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TokenSource supplies the bearer token. auth.Store satisfies it.
type TokenSource interface {
	Token() (string, error)
}

// ErrUnauthorized is returned when the backend rejects the credential.
var ErrUnauthorized = errors.New("backend rejected credential")

// BackendError is a request the backend answered with success=false.
type BackendError struct {
	Message string
	Errors  []string
}

func (e *BackendError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("backend error: %s (%s)", e.Message, strings.Join(e.Errors, "; "))
	}
	return fmt.Sprintf("backend error: %s", e.Message)
}

// envelope is the backend's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []string        `json:"errors"`
}

// Client talks to the Stream Cart backend.
type Client struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
}

// NewClient creates a backend client. httpClient may be nil, selecting a
// client with a 15s timeout.
func NewClient(baseURL string, tokens TokenSource, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    httpClient,
	}
}

// do performs one request and unwraps the envelope into out (pass nil to
// discard data). A missing credential fails before any network I/O.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	token, err := c.tokens.Token()
	if err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%s %s: decoding envelope (status %d): %w", method, path, resp.StatusCode, err)
	}
	if !env.Success {
		return &BackendError{Message: env.Message, Errors: env.Errors}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s %s: decoding data: %w", method, path, err)
		}
	}
	return nil
}
