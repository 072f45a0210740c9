package client

import (
	"github.com/rs/zerolog"

	"github.com/vovakirdan/queuesync/internal/core"
	"github.com/vovakirdan/queuesync/internal/notify"
	"github.com/vovakirdan/queuesync/internal/proto"
)

// PlaybackSink receives playback frames for the player.
type PlaybackSink interface {
	HandlePlayback(ev core.PlaybackEvent)
}

// NoticePoster shows user-facing notices.
type NoticePoster interface {
	Post(n core.Notice) string
}

// Dispatcher routes classified inbound frames to the store, the playback
// sink and the notice board. It is not safe for concurrent use; the Manager
// delivers one frame at a time.
type Dispatcher struct {
	store       *core.Store
	changes     *core.Feed[core.QueueChange]
	playback    PlaybackSink
	notices     NoticePoster
	bridge      notify.Bridge
	participant string
	resync      func()
	log         *zerolog.Logger
}

// DispatcherConfig wires a Dispatcher. Playback, Notices and Resync may be nil.
type DispatcherConfig struct {
	Store         *core.Store
	Changes       *core.Feed[core.QueueChange]
	Playback      PlaybackSink
	Notices       NoticePoster
	Bridge        notify.Bridge
	ParticipantID string
	Resync        func()
	Logger        *zerolog.Logger
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dispatcher{
		store:       cfg.Store,
		changes:     cfg.Changes,
		playback:    cfg.Playback,
		notices:     cfg.Notices,
		bridge:      cfg.Bridge,
		participant: cfg.ParticipantID,
		resync:      cfg.Resync,
		log:         logger,
	}
}

// HandleFrame decodes and dispatches one raw frame. Malformed frames are
// logged and dropped; a panic in a handler never escapes.
func (d *Dispatcher) HandleFrame(frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Msg("dispatch panicked")
		}
	}()

	msg, err := proto.Decode(frame)
	if err != nil {
		d.log.Warn().Err(err).Int("bytes", len(frame)).Msg("dropping inbound frame")
		return
	}
	d.Dispatch(msg)
}

// Dispatch routes a classified message.
func (d *Dispatcher) Dispatch(msg proto.Message) {
	switch m := msg.(type) {
	case proto.QueueUpdated:
		d.handleQueueUpdated(m)
	case proto.VoteUpdated:
		d.handleVoteUpdated(m)
	case proto.QueueReordered:
		d.apply(core.ChangeReordered, 0, core.Reorder{Order: m.Order})
	case proto.Playback:
		if d.playback != nil {
			d.playback.HandlePlayback(core.PlaybackEvent{Kind: m.Type, Payload: m.Payload})
		}
	case proto.UserJoined, proto.SongAdded:
		if n, ok := d.bridge.FromMessage(m); ok && d.notices != nil {
			d.notices.Post(n)
		}
	default:
		d.log.Debug().Str("type", msg.Kind()).Msg("ignoring unhandled message kind")
	}
}

func (d *Dispatcher) handleQueueUpdated(m proto.QueueUpdated) {
	switch {
	case m.Queue != nil:
		d.store.ApplySnapshot(proto.EntriesToCore(m.Queue))
		d.publish(core.QueueChange{Kind: core.ChangeQueue})
	case m.Action == proto.ActionRemoved:
		id := m.EntryID
		if id == 0 && m.Item != nil {
			id = m.Item.ID
		}
		if id == 0 {
			d.requestResync("removal without entry id")
			return
		}
		d.apply(core.ChangeQueue, id, core.EntryRemoval{EntryID: id})
	case m.Item != nil:
		e := m.Item.ToCore()
		d.apply(core.ChangeQueue, e.ID, core.EntryUpsert{Entry: e})
	default:
		d.requestResync("queue update without payload")
	}
}

func (d *Dispatcher) handleVoteUpdated(m proto.VoteUpdated) {
	if m.Votes == nil {
		d.requestResync("vote update without total")
		return
	}

	u := core.VoteChange{EntryID: m.EntryID, Votes: *m.Votes}
	if m.UserID != "" && m.UserID == d.participant {
		if v, ok := core.ParseVote(m.Vote); ok {
			u.UserVote, u.HasUserVote = v, true
		}
	}
	d.apply(core.ChangeVote, m.EntryID, u)
}

func (d *Dispatcher) apply(kind core.ChangeKind, id int64, u core.Update) {
	if err := d.store.ApplyIncrementalUpdate(u); err != nil {
		if core.NeedsResync(err) {
			d.requestResync(err.Error())
			return
		}
		d.log.Warn().Err(err).Str("kind", string(kind)).Msg("rejecting queue update")
		return
	}
	d.publish(core.QueueChange{Kind: kind, EntryID: id})
}

func (d *Dispatcher) publish(c core.QueueChange) {
	if d.changes != nil {
		d.changes.Publish(c)
	}
}

func (d *Dispatcher) requestResync(reason string) {
	d.log.Info().Str("reason", reason).Msg("queue out of sync, requesting snapshot")
	if d.resync != nil {
		d.resync()
	}
}
