package civitai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/promptvault/promptvault/internal/config"
)

// RawItem is a single provider item exactly as decoded from the API.
// Field presence and types are untrusted; only the normalizer reaches
// into this shape.
type RawItem map[string]any

// Page is one page of provider items plus the opaque continuation cursor.
// An empty NextCursor means the window is exhausted.
type Page struct {
	Items      []RawItem
	NextCursor string
}

// FetchError describes a failed page fetch. Fetch failures abort the run;
// the cursor never advances past a failed page.
type FetchError struct {
	Cursor string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch failed (status %d, cursor %q): %v", e.Status, e.Cursor, e.Err)
	}
	return fmt.Sprintf("fetch failed (cursor %q): %v", e.Cursor, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client fetches pages from the Civitai images API. Each FetchPage call
// performs exactly one logical request; retry behavior lives in the injected
// HTTP client's transport, not here.
type Client struct {
	cfg    config.CivitaiConfig
	client *http.Client
	logger *slog.Logger
}

// NewClient creates a Civitai API client. A nil httpClient gets a plain
// client with the configured timeout and no retries.
func NewClient(cfg config.CivitaiConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:    cfg,
		client: httpClient,
		logger: logger,
	}
}

// apiEnvelope mirrors the provider response. nextCursor is kept raw because
// the API has served both string and numeric cursors.
type apiEnvelope struct {
	Items    []RawItem   `json:"items"`
	Metadata apiMetadata `json:"metadata"`
}

type apiMetadata struct {
	NextCursor json.RawMessage `json:"nextCursor"`
}

// FetchPage retrieves one page of the reaction-sorted monthly window. An
// empty cursor requests the first page.
func (c *Client) FetchPage(ctx context.Context, cursor string) (*Page, error) {
	reqURL, err := c.buildURL(cursor)
	if err != nil {
		return nil, &FetchError{Cursor: cursor, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &FetchError{Cursor: cursor, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	c.logger.Debug("fetching page", "cursor", cursor, "page_size", c.cfg.PageSize)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{Cursor: cursor, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &FetchError{
			Cursor: cursor,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("civitai API error: %s", strings.TrimSpace(string(body))),
		}
	}

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &FetchError{Cursor: cursor, Err: fmt.Errorf("decoding response: %w", err)}
	}

	page := &Page{
		Items:      envelope.Items,
		NextCursor: cursorString(envelope.Metadata.NextCursor),
	}

	c.logger.Debug("fetched page", "items", len(page.Items), "has_next", page.NextCursor != "")

	return page, nil
}

func (c *Client) buildURL(cursor string) (string, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("limit", strconv.Itoa(c.cfg.PageSize))
	q.Set("sort", c.cfg.Sort)
	q.Set("period", c.cfg.Period)
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// cursorString renders a raw nextCursor value as an opaque token. Numbers
// keep their literal text; null and absent values mean no further pages.
func cursorString(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	return trimmed
}
