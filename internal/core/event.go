package core

import (
	"encoding/json"
	"time"
)

// Update is an authoritative incremental change to a session queue.
type Update interface {
	isUpdate()
}

// VoteChange sets an entry's vote tally to the server's total.
type VoteChange struct {
	EntryID int64
	Votes   int
	// UserVote is applied only when HasUserVote is set, i.e. the server
	// reported this participant's own vote.
	UserVote    Vote
	HasUserVote bool
}

// EntryUpsert adds an entry or replaces a known one.
type EntryUpsert struct {
	Entry QueueEntry
}

// EntryRemoval drops an entry from the queue.
type EntryRemoval struct {
	EntryID int64
}

// Reorder sets the queue order to the given entry IDs.
type Reorder struct {
	Order []int64
}

func (VoteChange) isUpdate()   {}
func (EntryUpsert) isUpdate()  {}
func (EntryRemoval) isUpdate() {}
func (Reorder) isUpdate()      {}

// ChangeKind names what changed in a queue.
type ChangeKind string

const (
	ChangeSnapshot  ChangeKind = "snapshot"
	ChangeQueue     ChangeKind = "queue_updated"
	ChangeVote      ChangeKind = "vote_updated"
	ChangeReordered ChangeKind = "queue_reordered"
)

// QueueChange is the generic "queue changed" notice published to observers.
type QueueChange struct {
	Kind    ChangeKind `json:"kind"`
	EntryID int64      `json:"entry_id,omitempty"`
}

// PlaybackEvent is a playback frame forwarded untouched to the player.
type PlaybackEvent struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Category is the severity of a user-facing notice.
type Category string

const (
	CategorySuccess Category = "success"
	CategoryInfo    Category = "info"
	CategoryWarning Category = "warning"
	CategoryError   Category = "error"
)

// Notice is a user-facing message. A zero Duration keeps it until dismissed.
type Notice struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Message  string        `json:"message"`
	Category Category      `json:"category"`
	Duration time.Duration `json:"duration,omitempty"`
	PostedAt time.Time     `json:"posted_at"`
}
