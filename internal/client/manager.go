package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/queuesync/internal/core"
	"github.com/vovakirdan/queuesync/internal/proto"
)

var (
	// ErrNotConnected is returned by Send while the stream is not open.
	ErrNotConnected = errors.New("session stream not connected")
	// ErrRateLimited is returned by Send when the outbound limiter rejects a frame.
	ErrRateLimited = errors.New("outbound rate limit exceeded")
)

const defaultWriteTimeout = 5 * time.Second

// Handlers are the Manager's callbacks. OnMessage runs on the read goroutine
// one frame at a time and must not call Disconnect or Connect.
type Handlers struct {
	// OnOpen runs after every successful (re)connect. epoch identifies the
	// membership generation for use with Deliver.
	OnOpen func(epoch uint64)
	// OnMessage receives raw inbound frames.
	OnMessage func(frame []byte)
	// OnAbandoned runs once when automatic retries are exhausted.
	OnAbandoned func()
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	URL          string
	Dialer       Dialer
	Backoff      Backoff
	Clock        clock.Clock
	SendRate     float64
	SendBurst    int
	WriteTimeout time.Duration
	Handlers     Handlers
	Logger       *zerolog.Logger
}

// Manager owns the single live transport of one session and applies the
// reconnect policy to it.
type Manager struct {
	url          string
	dialer       Dialer
	backoff      Backoff
	clock        clock.Clock
	limiter      *rateLimiter
	writeTimeout time.Duration
	handlers     Handlers
	log          *zerolog.Logger
	status       *core.Value[core.Status]

	mu       sync.Mutex
	epoch    uint64 // bumped by Connect and Disconnect
	ctx      context.Context
	cancel   context.CancelFunc
	conn     Conn
	timer    *clock.Timer
	attempts int

	deliverMu sync.Mutex // held while a frame or snapshot is applied
	writeMu   sync.Mutex
}

// NewManager builds a disconnected Manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Dialer == nil {
		cfg.Dialer = WSDialer{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Backoff.MaxAttempts == 0 && cfg.Backoff.Base == 0 {
		cfg.Backoff = DefaultBackoff()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Manager{
		url:          cfg.URL,
		dialer:       cfg.Dialer,
		backoff:      cfg.Backoff,
		clock:        cfg.Clock,
		limiter:      newRateLimiter(cfg.SendRate, cfg.SendBurst),
		writeTimeout: cfg.WriteTimeout,
		handlers:     cfg.Handlers,
		log:          logger,
		status:       core.NewStatusValue(),
	}
}

// Status exposes the observable connection status.
func (m *Manager) Status() *core.Value[core.Status] {
	return m.status
}

// Attempts returns the number of reconnects scheduled since the last success.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Connect opens a fresh transport, closing any previous one first. It also
// serves as the manual retry after the manager gave up.
func (m *Manager) Connect() {
	m.mu.Lock()
	prev, prevCancel := m.teardownLocked()
	m.epoch++
	epoch := m.epoch
	m.attempts = 0
	ctx, cancel := context.WithCancel(context.Background())
	m.ctx, m.cancel = ctx, cancel
	m.status.Set(core.StatusConnecting)
	m.mu.Unlock()

	go func() {
		closeTransport(prev, prevCancel, "reconnecting")
		m.dial(ctx, epoch)
	}()
}

// Disconnect closes the transport with a normal closure and cancels any
// pending reconnect. When it returns, no frame is being delivered and no
// reconnect can start until the next Connect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	conn, cancel := m.teardownLocked()
	m.epoch++
	m.attempts = 0
	m.status.Set(core.StatusDisconnected)
	m.mu.Unlock()

	if conn != nil {
		m.log.Info().Str("url", m.url).Msg("session stream disconnected")
	}
	closeTransport(conn, cancel, "Normal closure")

	// Wait out a delivery that started before the epoch moved.
	m.deliverMu.Lock()
	m.deliverMu.Unlock() //nolint:staticcheck // barrier
}

// Send transmits msg as a JSON text frame. It never writes unless the
// stream is connected; failures are logged and returned, never panicked.
func (m *Manager) Send(msg proto.Outbound) error {
	m.mu.Lock()
	conn := m.conn
	connected := conn != nil && m.status.Get() == core.StatusConnected
	m.mu.Unlock()

	if !connected {
		m.log.Warn().Str("type", msg.Type).Msg("send skipped: session stream not connected")
		return ErrNotConnected
	}
	if !m.limiter.allow() {
		m.log.Warn().Str("type", msg.Type).Msg("send dropped: rate limited")
		return ErrRateLimited
	}

	data, err := json.Marshal(msg)
	if err != nil {
		m.log.Warn().Err(err).Str("type", msg.Type).Msg("marshal outbound frame")
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, data); err != nil {
		m.log.Warn().Err(err).Str("type", msg.Type).Msg("write outbound frame")
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}
	return nil
}

// Deliver runs fn under the delivery lock if epoch is still current. It
// reports whether fn ran.
func (m *Manager) Deliver(epoch uint64, fn func()) bool {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	if !m.isCurrent(epoch, nil) {
		return false
	}
	fn()
	return true
}

// Epoch returns the current membership generation.
func (m *Manager) Epoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

func (m *Manager) dial(ctx context.Context, epoch uint64) {
	m.log.Debug().Str("url", m.url).Msg("dialing session stream")

	conn, err := m.dialer.Dial(ctx, m.url)
	if err != nil {
		m.log.Warn().Err(err).Str("url", m.url).Msg("dial session stream")
		m.drop(epoch, nil, err)
		return
	}

	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "superseded")
		return
	}
	m.conn = conn
	m.attempts = 0
	m.status.Set(core.StatusConnected)
	m.mu.Unlock()

	m.log.Info().Str("url", m.url).Msg("session stream connected")
	if m.handlers.OnOpen != nil {
		m.handlers.OnOpen(epoch)
	}

	m.readLoop(ctx, epoch, conn)
}

func (m *Manager) readLoop(ctx context.Context, epoch uint64, conn Conn) {
	for {
		frame, err := conn.Read(ctx)
		if err != nil {
			m.drop(epoch, conn, err)
			return
		}

		m.deliverMu.Lock()
		current := m.isCurrent(epoch, conn)
		if current && m.handlers.OnMessage != nil {
			m.handlers.OnMessage(frame)
		}
		m.deliverMu.Unlock()

		if !current {
			return
		}
	}
}

// drop handles the loss of conn (nil for a failed dial) and decides between
// stopping, retrying and giving up.
func (m *Manager) drop(epoch uint64, conn Conn, cause error) {
	m.mu.Lock()
	if !m.isCurrentLocked(epoch, conn) {
		m.mu.Unlock()
		return
	}
	m.conn = nil

	if isNormalClosure(cause) {
		m.stopLocked()
		m.status.Set(core.StatusDisconnected)
		m.mu.Unlock()
		m.log.Info().Str("url", m.url).Msg("session stream closed normally")
		return
	}

	if m.attempts >= m.backoff.MaxAttempts {
		m.stopLocked()
		m.status.Set(core.StatusAbandoned)
		attempts := m.attempts
		m.mu.Unlock()

		m.log.Error().Err(cause).Int("attempts", attempts).Str("url", m.url).Msg("giving up on session stream")
		if m.handlers.OnAbandoned != nil {
			m.handlers.OnAbandoned()
		}
		return
	}

	m.attempts++
	attempt := m.attempts
	delay := m.backoff.Delay(attempt)
	m.status.Set(core.StatusReconnecting)
	m.timer = m.clock.AfterFunc(delay, func() { m.redial(epoch) })
	m.mu.Unlock()

	m.log.Warn().Err(cause).Int("attempt", attempt).Dur("delay", delay).Msg("session stream lost, reconnecting")
}

func (m *Manager) redial(epoch uint64) {
	m.mu.Lock()
	if epoch != m.epoch || m.timer == nil {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	ctx := m.ctx
	m.status.Set(core.StatusConnecting)
	m.mu.Unlock()

	m.dial(ctx, epoch)
}

func (m *Manager) isCurrent(epoch uint64, conn Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isCurrentLocked(epoch, conn)
}

// isCurrentLocked checks the epoch and, when conn is non-nil, that conn is
// still the live transport.
func (m *Manager) isCurrentLocked(epoch uint64, conn Conn) bool {
	if epoch != m.epoch {
		return false
	}
	return conn == nil || m.conn == conn
}

// teardownLocked detaches the transport and stops the timer. The caller
// closes what it returns outside the lock.
func (m *Manager) teardownLocked() (Conn, context.CancelFunc) {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	conn, cancel := m.conn, m.cancel
	m.conn, m.cancel, m.ctx = nil, nil, nil
	return conn, cancel
}

// stopLocked ends the current epoch's background work without bumping it.
func (m *Manager) stopLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel, m.ctx = nil, nil
	}
}

func closeTransport(conn Conn, cancel context.CancelFunc, reason string) {
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, reason)
	}
	if cancel != nil {
		cancel()
	}
}
