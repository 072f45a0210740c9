package proto

import "encoding/json"

// Inbound is the envelope of frames broadcast by the session server.
// Kind-specific fields live either in Data or next to Type.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	TypeQueueUpdated    = "queue_updated"
	TypeVoteUpdated     = "vote_updated"
	TypeQueueReordered  = "queue_reordered"
	TypePlaybackControl = "playback_control"
	TypePlaybackSync    = "playback_sync"
	TypeUserJoined      = "user_joined"
	TypeSongAdded       = "song_added"

	OutboundTypeVote    = "vote"
	OutboundTypeAddSong = "add_song"

	ActionAdded   = "added"
	ActionUpdated = "updated"
	ActionRemoved = "removed"
)

// Outbound is the envelope for frames sent to the session server.
type Outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// VotePayload casts a participant's vote on a queue entry.
type VotePayload struct {
	QueueItemID int64  `json:"queue_item_id"`
	Vote        string `json:"vote"`
	UserID      string `json:"user_id"`
}

// AddSongPayload proposes a catalog track for the queue.
type AddSongPayload struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ArtistName string `json:"artist_name"`
	Audio      string `json:"audio"`
	Image      string `json:"image"`
	AddedBy    string `json:"added_by"`
}

// Message is a classified inbound frame. The set of implementations is closed;
// kinds this client does not know decode to Unknown.
type Message interface {
	Kind() string
	isMessage()
}

// QueueUpdated reports an addition, replacement, removal or full listing.
type QueueUpdated struct {
	Action  string  `json:"action,omitempty"`
	Item    *Entry  `json:"queue_item,omitempty"`
	Queue   []Entry `json:"queue,omitempty"`
	EntryID int64   `json:"queue_item_id,omitempty"`
	Message string  `json:"message,omitempty"`
}

// VoteUpdated carries the authoritative vote total of one entry.
type VoteUpdated struct {
	EntryID int64  `json:"queue_item_id"`
	Votes   *int   `json:"new_votes"`
	UserID  string `json:"user_id,omitempty"`
	Vote    string `json:"vote,omitempty"`
}

// QueueReordered carries the full queue order as entry IDs.
type QueueReordered struct {
	Order []int64 `json:"order"`
}

// Playback is a playback_control or playback_sync frame. The client does not
// interpret it; Payload is the kind-specific body as received.
type Playback struct {
	Type    string
	Payload json.RawMessage
}

// UserJoined announces a new participant.
type UserJoined struct {
	Username string `json:"username"`
}

// SongAdded announces a track added by someone in the session.
type SongAdded struct {
	SongTitle string `json:"song_title"`
	AddedBy   string `json:"added_by,omitempty"`
}

// Unknown is any kind this client does not handle.
type Unknown struct {
	Type string
}

func (QueueUpdated) Kind() string   { return TypeQueueUpdated }
func (VoteUpdated) Kind() string    { return TypeVoteUpdated }
func (QueueReordered) Kind() string { return TypeQueueReordered }
func (p Playback) Kind() string     { return p.Type }
func (UserJoined) Kind() string     { return TypeUserJoined }
func (SongAdded) Kind() string      { return TypeSongAdded }
func (u Unknown) Kind() string      { return u.Type }

func (QueueUpdated) isMessage()   {}
func (VoteUpdated) isMessage()    {}
func (QueueReordered) isMessage() {}
func (Playback) isMessage()       {}
func (UserJoined) isMessage()     {}
func (SongAdded) isMessage()      {}
func (Unknown) isMessage()        {}
