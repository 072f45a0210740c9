package core

import "strings"

// Vote is a participant's vote on a queue entry.
type Vote int

const (
	VoteNone Vote = iota
	VoteUp
	VoteDown
)

func (v Vote) String() string {
	switch v {
	case VoteUp:
		return "up"
	case VoteDown:
		return "down"
	default:
		return "none"
	}
}

// MarshalText renders the vote name for JSON payloads.
func (v Vote) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (v *Vote) UnmarshalText(text []byte) error {
	parsed, ok := ParseVote(string(text))
	if !ok {
		return ErrBadVote
	}
	*v = parsed
	return nil
}

// weight is the contribution of a vote to an entry's tally.
func (v Vote) weight() int {
	switch v {
	case VoteUp:
		return 1
	case VoteDown:
		return -1
	default:
		return 0
	}
}

// ParseVote maps wire spellings to a Vote.
func ParseVote(s string) (Vote, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "upvote", "true", "1":
		return VoteUp, true
	case "down", "downvote", "false", "-1":
		return VoteDown, true
	case "", "none", "0":
		return VoteNone, true
	default:
		return VoteNone, false
	}
}

// Track is a catalog item that can be added to a queue.
type Track struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ArtistName string `json:"artist_name"`
	AudioURL   string `json:"audio_url"`
	ImageURL   string `json:"image_url"`
}

// QueueEntry is one track in a session's queue as mirrored from the server.
type QueueEntry struct {
	ID              int64  `json:"id"`
	TrackID         string `json:"track_id"`
	Title           string `json:"title"`
	ArtistName      string `json:"artist_name"`
	AudioURL        string `json:"audio_url"`
	ImageURL        string `json:"image_url"`
	AddedBy         string `json:"added_by"`
	VoteCount       int    `json:"votes"`
	CurrentUserVote Vote   `json:"user_vote"`
	Position        int    `json:"position"`
	Played          bool   `json:"played"`
	// Provisional marks a local optimistic addition the server has not
	// confirmed yet. Provisional entries carry negative IDs.
	Provisional bool `json:"provisional,omitempty"`
}

// Complete reports whether the entry carries enough data to be inserted
// without a snapshot.
func (e QueueEntry) Complete() bool {
	return e.ID > 0 && (e.Title != "" || e.TrackID != "")
}

// supersedes reports whether an authoritative entry confirms a provisional
// one. Broadcasts without a track id are matched on title instead.
func (e QueueEntry) supersedes(provisional QueueEntry) bool {
	if e.AddedBy != provisional.AddedBy {
		return false
	}
	if e.TrackID != "" && provisional.TrackID != "" {
		return e.TrackID == provisional.TrackID
	}
	return e.Title != "" && e.Title == provisional.Title
}

// EntryFromTrack builds the entry a participant proposes when adding a track.
func EntryFromTrack(t Track, addedBy string) QueueEntry {
	return QueueEntry{
		TrackID:    t.ID,
		Title:      t.Title,
		ArtistName: t.ArtistName,
		AudioURL:   t.AudioURL,
		ImageURL:   t.ImageURL,
		AddedBy:    addedBy,
	}
}
