package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// apiBase is a var, not a const, so tests can redirect it at a local
// httptest server.
var apiBase = "https://api.telegram.org/bot"

// SetAPIBase overrides the chat platform API base URL, for use by other
// packages' tests that need a Client pointed at a local httptest server.
// It returns a restore function. Production code never calls this.
func SetAPIBase(base string) (restore func()) {
	prev := apiBase
	apiBase = base
	return func() { apiBase = prev }
}

// Client is the single-method chat-platform wrapper (§4.2). Every other
// type in this package is a thin convenience layered over Call.
type Client struct {
	token      string
	httpClient *http.Client
}

// New constructs a Client authenticated as token.
func New(token string) *Client {
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type apiEnvelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

// Call invokes method with the given JSON-able body and decodes the
// result into out (which may be nil when the caller doesn't need the
// result). Every platform-side rejection is returned as *APIError.
func (c *Client) Call(ctx context.Context, method string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s%s/%s", apiBase, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("telegram: %s: decode response: %w", method, err)
	}
	if !env.OK {
		return &APIError{Method: method, Description: env.Description}
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("telegram: %s: decode result: %w", method, err)
		}
	}
	return nil
}
