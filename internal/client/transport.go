package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
)

// ErrInvalidHandle is returned for empty session handles.
var ErrInvalidHandle = errors.New("invalid session handle")

// Conn is one open transport to a session stream.
type Conn interface {
	// Read blocks for the next text frame.
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WSDialer dials session streams over WebSocket.
type WSDialer struct {
	HTTPClient *http.Client
	// ReadLimit caps inbound frame size in bytes. Zero keeps the library default.
	ReadLimit int64
}

// Dial implements Dialer.
func (d WSDialer) Dial(ctx context.Context, u string) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, u, &websocket.DialOptions{HTTPClient: d.HTTPClient})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	if d.ReadLimit > 0 {
		conn.SetReadLimit(d.ReadLimit)
	}
	return wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

func (c wsConn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c wsConn) Close(code websocket.StatusCode, reason string) error {
	return c.conn.Close(code, reason)
}

// StreamURL builds the event stream endpoint for a session from the server
// base URL. The WebSocket scheme follows the base URL's security level.
func StreamURL(base, handle string) (string, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return "", ErrInvalidHandle
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws", "":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server url %q has no host", base)
	}

	basePath := strings.TrimRight(u.Path, "/")
	baseRaw := strings.TrimRight(u.EscapedPath(), "/")
	u.Path = basePath + "/ws/" + handle
	u.RawPath = baseRaw + "/ws/" + url.PathEscape(handle)
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// isNormalClosure reports whether err is an intentional 1000 close.
func isNormalClosure(err error) bool {
	return websocket.CloseStatus(err) == websocket.StatusNormalClosure
}
