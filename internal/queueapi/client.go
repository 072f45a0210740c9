// Package queueapi reads session queues from the session server's REST API.
package queueapi

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

	"github.com/vovakirdan/queuesync/internal/core"
	"github.com/vovakirdan/queuesync/internal/proto"
)

// DefaultPath is the queue endpoint; {handle} is replaced by the session code.
const DefaultPath = "/api/session/{handle}/queue"

// ErrSessionNotFound is returned when the server does not know the session.
var ErrSessionNotFound = errors.New("session not found")

// Client fetches queue snapshots.
type Client struct {
	BaseURL string
	Path    string
	HTTP    *http.Client
}

// NewClient builds a client for the server at baseURL.
func NewClient(baseURL, path string, timeout time.Duration) *Client {
	if path == "" {
		path = DefaultPath
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Path:    path,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// FetchQueue returns the authoritative queue of a session in server order.
// The body may be {"queue": [...]} or a bare array.
func (c *Client) FetchQueue(ctx context.Context, handle string) ([]core.QueueEntry, error) {
	u, err := c.queueURL(handle)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, handle)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("GET %s: status %s", u, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read queue: %w", err)
	}
	entries, err := decodeQueue(body)
	if err != nil {
		return nil, fmt.Errorf("decode queue of %s: %w", handle, err)
	}
	return proto.EntriesToCore(entries), nil
}

func (c *Client) queueURL(handle string) (string, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return "", errors.New("empty session handle")
	}
	if c.BaseURL == "" {
		return "", errors.New("no base url")
	}
	path := strings.ReplaceAll(c.Path, "{handle}", url.PathEscape(handle))
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.BaseURL + path, nil
}

func decodeQueue(body []byte) ([]proto.Entry, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var entries []proto.Entry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, err
		}
		return entries, nil
	}

	var wrapped struct {
		Queue []proto.Entry `json:"queue"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Queue, nil
}
