package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/queuesync/internal/core"
	"github.com/vovakirdan/queuesync/internal/proto"
)

type fakeSnapshots struct {
	mu      sync.Mutex
	calls   int
	entries []core.QueueEntry
	gate    chan struct{}
}

func (f *fakeSnapshots) FetchQueue(ctx context.Context, _ string) ([]core.QueueEntry, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	entries := append([]core.QueueEntry(nil), f.entries...)
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return entries, nil
}

func (f *fakeSnapshots) set(entries []core.QueueEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = entries
}

func (f *fakeSnapshots) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// streamServer is a session server that hands accepted sockets to the test
// and collects what the client sends.
type streamServer struct {
	conns   chan *websocket.Conn
	inbound chan []byte
}

func startStreamServer(t *testing.T) (*httptest.Server, *streamServer) {
	t.Helper()

	s := &streamServer{
		conns:   make(chan *websocket.Conn, 4),
		inbound: make(chan []byte, 16),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		s.conns <- conn
		for {
			_, data, err := conn.Read(context.Background())
			if err != nil {
				return
			}
			s.inbound <- data
		}
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, s
}

func (s *streamServer) accepted(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-s.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("client never connected")
		return nil
	}
}

func newTestSession(t *testing.T, opts Options) *Session {
	t.Helper()

	logger := zerolog.New(nil)
	if opts.Handle == "" {
		opts.Handle = "TEST1234"
	}
	if opts.ParticipantID == "" {
		opts.ParticipantID = "participant-1"
	}
	opts.Logger = &logger

	s, err := NewSession(opts)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(s.Leave)
	return s
}

func TestSessionReceivesLiveQueueUpdates(t *testing.T) {
	ts, server := startStreamServer(t)
	snapshots := &fakeSnapshots{}
	s := newTestSession(t, Options{ServerURL: ts.URL, Snapshots: snapshots})
	changes, cancel := s.Changes()
	defer cancel()

	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	conn := server.accepted(t)
	waitFor(t, "connected", func() bool { return s.Status().Get() == core.StatusConnected })

	nextChange := func() core.QueueChange {
		t.Helper()
		select {
		case c := <-changes:
			return c
		case <-time.After(2 * time.Second):
			t.Fatalf("no change published")
			return core.QueueChange{}
		}
	}
	if c := nextChange(); c.Kind != core.ChangeSnapshot {
		t.Fatalf("expected initial snapshot, got %+v", c)
	}

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	frame := map[string]any{
		"type": "queue_updated",
		"queue_item": map[string]any{
			"id": 1, "track_title": "Song A", "track_artist": "Artist", "added_by": "ana", "votes": 0,
		},
	}
	if err := wsjson.Write(ctx, conn, frame); err != nil {
		t.Fatalf("server write: %v", err)
	}

	waitFor(t, "queue entry", func() bool { return len(s.Entries()) == 1 })
	if e := s.Entries()[0]; e.ID != 1 || e.Title != "Song A" || e.VoteCount != 0 {
		t.Fatalf("unexpected entry %+v", e)
	}
	if c := nextChange(); c.Kind != core.ChangeQueue || c.EntryID != 1 {
		t.Fatalf("unexpected change %+v", c)
	}
	if n := snapshots.count(); n != 1 {
		t.Fatalf("expected one snapshot fetch, got %d", n)
	}
}

func TestSessionVoteSendsFrameAndAuthoritativeTotalWins(t *testing.T) {
	ts, server := startStreamServer(t)
	snapshots := &fakeSnapshots{entries: []core.QueueEntry{{ID: 7, Title: "x", VoteCount: 3}}}
	s := newTestSession(t, Options{ServerURL: ts.URL, Snapshots: snapshots})

	_ = s.Connect()
	conn := server.accepted(t)
	waitFor(t, "snapshot applied", func() bool { return len(s.Entries()) == 1 })

	guess, err := s.Vote(7, core.VoteUp)
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	if guess.VoteCount != 4 || guess.CurrentUserVote != core.VoteUp {
		t.Fatalf("unexpected optimistic entry %+v", guess)
	}

	select {
	case raw := <-server.inbound:
		var got struct {
			Type    string            `json:"type"`
			Payload proto.VotePayload `json:"payload"`
		}
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("decode vote frame: %v", err)
		}
		want := proto.VotePayload{QueueItemID: 7, Vote: "up", UserID: "participant-1"}
		if got.Type != "vote" || got.Payload != want {
			t.Fatalf("unexpected vote frame %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("vote frame never arrived")
	}

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	update := map[string]any{"type": "vote_updated", "data": map[string]any{"queue_item_id": 7, "new_votes": 10}}
	if err := wsjson.Write(ctx, conn, update); err != nil {
		t.Fatalf("server write: %v", err)
	}

	waitFor(t, "authoritative total", func() bool {
		e, ok := s.store.Entry(7)
		return ok && e.VoteCount == 10
	})
}

func TestSessionFailedSendRollsBackOptimisticState(t *testing.T) {
	s := newTestSession(t, Options{ServerURL: "http://queue.test", Dialer: newFakeDialer()})
	s.store.ApplySnapshot([]core.QueueEntry{{ID: 1, Title: "a", VoteCount: 2}})

	if _, err := s.Vote(1, core.VoteDown); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if e, _ := s.store.Entry(1); e.VoteCount != 2 || e.CurrentUserVote != core.VoteNone {
		t.Fatalf("optimistic vote not rolled back: %+v", e)
	}

	if _, err := s.AddSong(core.Track{ID: "t1", Title: "Blue"}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if n := len(s.Entries()); n != 1 {
		t.Fatalf("provisional entry not rolled back: %d entries", n)
	}

	if _, err := s.Vote(99, core.VoteUp); !errors.Is(err, core.ErrUnknownEntry) {
		t.Fatalf("expected ErrUnknownEntry, got %v", err)
	}
}

func TestSessionProvisionalEntrySupersededByServer(t *testing.T) {
	dialer := newFakeDialer()
	conn := newFakeConn()
	dialer.succeed(conn)
	s := newTestSession(t, Options{ServerURL: "http://queue.test", Dialer: dialer, Clock: newRecordingClock()})

	_ = s.Connect()
	waitFor(t, "connected", func() bool { return s.Status().Get() == core.StatusConnected })

	p, err := s.AddSong(core.Track{ID: "t1", Title: "Blue", ArtistName: "Band"})
	if err != nil {
		t.Fatalf("add song: %v", err)
	}
	if !p.Provisional || p.ID >= 0 {
		t.Fatalf("expected provisional entry, got %+v", p)
	}
	if n := len(conn.written()); n != 1 {
		t.Fatalf("expected add_song frame, got %d writes", n)
	}

	conn.frames <- []byte(`{"type":"queue_updated","queue_item":{"id":12,"track_id":"t1","title":"Blue","added_by":"participant-1","votes":0}}`)
	waitFor(t, "server entry", func() bool {
		entries := s.Entries()
		return len(entries) == 1 && entries[0].ID == 12 && !entries[0].Provisional
	})
}

func TestSessionProvisionalEntrySupersededByBroadcastWithoutTrackID(t *testing.T) {
	dialer := newFakeDialer()
	conn := newFakeConn()
	dialer.succeed(conn)
	s := newTestSession(t, Options{ServerURL: "http://queue.test", Dialer: dialer, Clock: newRecordingClock()})

	_ = s.Connect()
	waitFor(t, "connected", func() bool { return s.Status().Get() == core.StatusConnected })

	if _, err := s.AddSong(core.Track{ID: "t1", Title: "Blue", ArtistName: "Band"}); err != nil {
		t.Fatalf("add song: %v", err)
	}

	frame := []byte(`{"type":"queue_updated","message":"New track added to queue","queue_item":{"id":12,"track_title":"Blue","track_artist":"Band","added_by":"participant-1","votes":0}}`)
	conn.frames <- frame
	conn.frames <- frame

	waitFor(t, "server entry", func() bool {
		e, ok := s.store.Entry(12)
		return ok && !e.Provisional
	})
	conn.frames <- []byte(`{"type":"user_joined","username":"bo"}`)
	waitFor(t, "frames drained", func() bool { return len(s.Notices().Active()) == 1 })

	entries := s.Entries()
	if len(entries) != 1 || entries[0].ID != 12 || entries[0].Provisional {
		t.Fatalf("expected only the server entry, got %+v", entries)
	}
}

func TestSessionRefetchesWhenLiveUpdateRacesSnapshot(t *testing.T) {
	dialer := newFakeDialer()
	conn := newFakeConn()
	dialer.succeed(conn)
	snapshots := &fakeSnapshots{gate: make(chan struct{})}
	s := newTestSession(t, Options{ServerURL: "http://queue.test", Dialer: dialer, Clock: newRecordingClock(), Snapshots: snapshots})

	_ = s.Connect()
	waitFor(t, "fetch started", func() bool { return snapshots.count() == 1 })

	conn.frames <- []byte(`{"type":"queue_updated","queue_item":{"id":1,"track_title":"Song A","added_by":"ana","votes":0}}`)
	waitFor(t, "live entry", func() bool { return len(s.Entries()) == 1 })

	snapshots.set([]core.QueueEntry{{ID: 1, Title: "Song A", AddedBy: "ana"}})
	close(snapshots.gate)

	waitFor(t, "follow-up fetch", func() bool { return snapshots.count() == 2 })
	waitFor(t, "converged queue", func() bool {
		entries := s.Entries()
		return len(entries) == 1 && entries[0].ID == 1
	})

	time.Sleep(20 * time.Millisecond)
	if n := snapshots.count(); n != 2 {
		t.Fatalf("expected exactly one follow-up fetch, got %d fetches", n)
	}
}

func TestSessionAbandonedPostsPersistentNotice(t *testing.T) {
	dialer := newFakeDialer()
	clk := newRecordingClock()
	for i := 0; i < 6; i++ {
		dialer.fail()
	}
	s := newTestSession(t, Options{ServerURL: "http://queue.test", Dialer: dialer, Clock: clk})

	_ = s.Connect()
	for attempt := 1; attempt <= 5; attempt++ {
		waitFor(t, "reconnect scheduled", func() bool { return len(clk.scheduled()) == attempt })
		clk.Add(clk.scheduled()[attempt-1])
	}
	waitFor(t, "abandoned", func() bool { return s.Status().Get() == core.StatusAbandoned })

	notices := s.Notices().Active()
	if len(notices) != 1 {
		t.Fatalf("expected one notice, got %+v", notices)
	}
	if n := notices[0]; n.Title != "Connection Lost" || n.Duration != 0 || n.Category != core.CategoryWarning {
		t.Fatalf("unexpected notice %+v", n)
	}
}

func TestSessionResyncIsCoalesced(t *testing.T) {
	snapshots := &fakeSnapshots{gate: make(chan struct{})}
	s := newTestSession(t, Options{ServerURL: "http://queue.test", Dialer: newFakeDialer(), Snapshots: snapshots})

	s.Resync()
	waitFor(t, "first fetch", func() bool { return snapshots.count() == 1 })
	s.Resync()
	s.Resync()
	s.Resync()

	close(snapshots.gate)
	waitFor(t, "follow-up fetch", func() bool { return snapshots.count() == 2 })
	time.Sleep(20 * time.Millisecond)
	if n := snapshots.count(); n != 2 {
		t.Fatalf("expected requests to coalesce into 2 fetches, got %d", n)
	}
}

func TestSessionDiscardsSnapshotAfterDisconnect(t *testing.T) {
	snapshots := &fakeSnapshots{
		entries: []core.QueueEntry{{ID: 1, Title: "late"}},
		gate:    make(chan struct{}),
	}
	s := newTestSession(t, Options{ServerURL: "http://queue.test", Dialer: newFakeDialer(), Snapshots: snapshots})

	s.Resync()
	waitFor(t, "fetch started", func() bool { return snapshots.count() == 1 })
	s.Disconnect()
	close(snapshots.gate)

	time.Sleep(50 * time.Millisecond)
	if n := len(s.Entries()); n != 0 {
		t.Fatalf("stale snapshot applied: %d entries", n)
	}
}

func TestSessionLeaveIsFinal(t *testing.T) {
	s := newTestSession(t, Options{ServerURL: "http://queue.test", Dialer: newFakeDialer()})
	s.store.ApplySnapshot([]core.QueueEntry{{ID: 1, Title: "a"}})

	s.Leave()
	s.Leave()

	if len(s.Entries()) != 0 {
		t.Fatalf("leave kept queue state")
	}
	if err := s.Connect(); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestNewSessionRejectsEmptyHandle(t *testing.T) {
	if _, err := NewSession(Options{ServerURL: "http://queue.test", Handle: " "}); err == nil {
		t.Fatalf("expected error for blank handle")
	}
}
