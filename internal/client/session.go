package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/queuesync/internal/core"
	"github.com/vovakirdan/queuesync/internal/notify"
	"github.com/vovakirdan/queuesync/internal/proto"
)

// ErrSessionClosed is returned by operations on a session that was left.
var ErrSessionClosed = errors.New("session closed")

const defaultSnapshotTimeout = 10 * time.Second

// SnapshotFetcher loads the authoritative queue of a session.
type SnapshotFetcher interface {
	FetchQueue(ctx context.Context, handle string) ([]core.QueueEntry, error)
}

// Options configures a Session.
type Options struct {
	Handle        string
	ParticipantID string
	// ServerURL is the session server base URL; the stream endpoint is
	// derived from it unless StreamURL is set.
	ServerURL string
	StreamURL string

	Dialer    Dialer
	Snapshots SnapshotFetcher
	// Playback additionally receives playback frames. They are always
	// published on the session's playback feed.
	Playback PlaybackSink

	Backoff         Backoff
	Clock           clock.Clock
	SendRate        float64
	SendBurst       int
	WriteTimeout    time.Duration
	SnapshotTimeout time.Duration
	NoticeDuration  time.Duration

	Logger *zerolog.Logger
}

// Session is the live mirror of one joined session: connection, queue,
// notices and playback stream.
type Session struct {
	handle      string
	participant string

	manager    *Manager
	store      *core.Store
	dispatcher *Dispatcher
	board      *notify.Board
	bridge     notify.Bridge
	changes    *core.Feed[core.QueueChange]
	playback   *core.Feed[core.PlaybackEvent]
	sink       PlaybackSink

	snapshots       SnapshotFetcher
	snapshotTimeout time.Duration
	log             *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	left          bool
	resyncRunning bool
	resyncPending bool
}

// NewSession builds a disconnected session. Call Connect to go live.
func NewSession(opts Options) (*Session, error) {
	if opts.Handle == "" {
		return nil, ErrInvalidHandle
	}
	streamURL := opts.StreamURL
	if streamURL == "" {
		u, err := StreamURL(opts.ServerURL, opts.Handle)
		if err != nil {
			return nil, err
		}
		streamURL = u
	}

	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	sessionLog := logger.With().Str("session", opts.Handle).Logger()

	timeout := opts.SnapshotTimeout
	if timeout <= 0 {
		timeout = defaultSnapshotTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		handle:          opts.Handle,
		participant:     opts.ParticipantID,
		store:           core.NewStore(),
		board:           notify.NewBoard(opts.Clock),
		bridge:          notify.Bridge{Duration: opts.NoticeDuration},
		changes:         core.NewFeed[core.QueueChange](32),
		playback:        core.NewFeed[core.PlaybackEvent](32),
		sink:            opts.Playback,
		snapshots:       opts.Snapshots,
		snapshotTimeout: timeout,
		log:             &sessionLog,
		ctx:             ctx,
		cancel:          cancel,
	}

	s.dispatcher = NewDispatcher(DispatcherConfig{
		Store:         s.store,
		Changes:       s.changes,
		Playback:      s,
		Notices:       s.board,
		Bridge:        s.bridge,
		ParticipantID: opts.ParticipantID,
		Resync:        s.Resync,
		Logger:        s.log,
	})

	s.manager = NewManager(ManagerConfig{
		URL:          streamURL,
		Dialer:       opts.Dialer,
		Backoff:      opts.Backoff,
		Clock:        opts.Clock,
		SendRate:     opts.SendRate,
		SendBurst:    opts.SendBurst,
		WriteTimeout: opts.WriteTimeout,
		Handlers: Handlers{
			OnOpen:      s.onOpen,
			OnMessage:   s.dispatcher.HandleFrame,
			OnAbandoned: s.onAbandoned,
		},
		Logger: s.log,
	})

	return s, nil
}

// Handle returns the session code.
func (s *Session) Handle() string { return s.handle }

// ParticipantID returns the local participant identity.
func (s *Session) ParticipantID() string { return s.participant }

// Connect opens the live stream, or retries it after the session gave up.
func (s *Session) Connect() error {
	s.mu.Lock()
	left := s.left
	s.mu.Unlock()
	if left {
		return ErrSessionClosed
	}
	s.manager.Connect()
	return nil
}

// Disconnect stops live updates but keeps the mirrored state.
func (s *Session) Disconnect() {
	s.manager.Disconnect()
}

// Leave disconnects, waits for background fetches and drops all state.
// The session cannot be reused.
func (s *Session) Leave() {
	s.mu.Lock()
	if s.left {
		s.mu.Unlock()
		return
	}
	s.left = true
	s.mu.Unlock()

	s.manager.Disconnect()
	s.cancel()
	s.wg.Wait()

	s.store.Reset()
	s.board.Clear()
	s.changes.Close()
	s.playback.Close()
	s.log.Info().Msg("left session")
}

// Status exposes the connection status.
func (s *Session) Status() *core.Value[core.Status] { return s.manager.Status() }

// Queue exposes the mirrored queue.
func (s *Session) Queue() *core.Value[[]core.QueueEntry] { return s.store.Queue() }

// Entries returns the current queue view.
func (s *Session) Entries() []core.QueueEntry { return s.store.Entries() }

// Changes streams a notice for every authoritative queue change.
func (s *Session) Changes() (<-chan core.QueueChange, func()) { return s.changes.Subscribe() }

// Playback streams playback frames.
func (s *Session) Playback() (<-chan core.PlaybackEvent, func()) { return s.playback.Subscribe() }

// Notices returns the session's notice board.
func (s *Session) Notices() *notify.Board { return s.board }

// HandlePlayback implements PlaybackSink.
func (s *Session) HandlePlayback(ev core.PlaybackEvent) {
	s.playback.Publish(ev)
	if s.sink != nil {
		s.sink.HandlePlayback(ev)
	}
}

// Vote records this participant's vote optimistically and sends it. A
// failed send rolls the optimistic state back.
func (s *Session) Vote(entryID int64, v core.Vote) (core.QueueEntry, error) {
	guess, err := s.store.OptimisticVote(entryID, v)
	if err != nil {
		return core.QueueEntry{}, err
	}

	err = s.manager.Send(proto.Outbound{
		Type: proto.OutboundTypeVote,
		Payload: proto.VotePayload{
			QueueItemID: entryID,
			Vote:        v.String(),
			UserID:      s.participant,
		},
	})
	if err != nil {
		s.store.Discard(entryID)
		return core.QueueEntry{}, fmt.Errorf("vote on entry %d: %w", entryID, err)
	}
	return guess, nil
}

// AddSong shows the track as a provisional entry and proposes it to the
// server. A failed send removes the provisional entry.
func (s *Session) AddSong(t core.Track) (core.QueueEntry, error) {
	if t.ID == "" {
		return core.QueueEntry{}, fmt.Errorf("%w: track without id", core.ErrIncompleteEntry)
	}

	provisional := s.store.OptimisticAdd(core.EntryFromTrack(t, s.participant))
	err := s.manager.Send(proto.Outbound{
		Type: proto.OutboundTypeAddSong,
		Payload: proto.AddSongPayload{
			ID:         t.ID,
			Name:       t.Title,
			ArtistName: t.ArtistName,
			Audio:      t.AudioURL,
			Image:      t.ImageURL,
			AddedBy:    s.participant,
		},
	})
	if err != nil {
		s.store.Discard(provisional.ID)
		return core.QueueEntry{}, fmt.Errorf("add track %s: %w", t.ID, err)
	}
	return provisional, nil
}

// Resync requests a full snapshot. Requests made while a fetch is running
// are coalesced into one follow-up fetch.
func (s *Session) Resync() {
	s.mu.Lock()
	if s.left {
		s.mu.Unlock()
		return
	}
	if s.resyncRunning {
		s.resyncPending = true
		s.mu.Unlock()
		return
	}
	s.resyncRunning = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.resyncLoop()
}

func (s *Session) resyncLoop() {
	defer s.wg.Done()

	for {
		s.fetchSnapshot()

		s.mu.Lock()
		if s.resyncPending && !s.left {
			s.resyncPending = false
			s.mu.Unlock()
			continue
		}
		s.resyncRunning = false
		s.resyncPending = false
		s.mu.Unlock()
		return
	}
}

// fetchSnapshot loads the queue and applies it if the membership generation
// did not move while the request was in flight. Live updates applied during
// the request may be missing from the response, so they schedule one more
// fetch.
func (s *Session) fetchSnapshot() {
	if s.snapshots == nil {
		return
	}
	epoch := s.manager.Epoch()
	version := s.store.Version()

	ctx, cancel := context.WithTimeout(s.ctx, s.snapshotTimeout)
	defer cancel()

	entries, err := s.snapshots.FetchQueue(ctx, s.handle)
	if err != nil {
		if s.ctx.Err() == nil {
			s.log.Warn().Err(err).Msg("fetch queue snapshot")
		}
		return
	}

	raced := false
	applied := s.manager.Deliver(epoch, func() {
		raced = s.store.Version() != version
		s.store.ApplySnapshot(entries)
		s.changes.Publish(core.QueueChange{Kind: core.ChangeSnapshot})
	})
	if !applied {
		s.log.Debug().Msg("discarding stale queue snapshot")
		return
	}
	s.log.Debug().Int("entries", len(entries)).Msg("queue snapshot applied")
	if raced {
		s.log.Debug().Msg("queue changed during snapshot fetch, refetching")
		s.Resync()
	}
}

func (s *Session) onOpen(uint64) {
	s.Resync()
}

func (s *Session) onAbandoned() {
	s.board.Post(s.bridge.ConnectionLost())
}
