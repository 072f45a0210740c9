package proto

import (
	"encoding/json"

	"github.com/vovakirdan/queuesync/internal/core"
)

// Entry is a queue entry as serialized by the session server.
type Entry struct {
	ID         int64  `json:"id"`
	TrackID    string `json:"track_id,omitempty"`
	Title      string `json:"title,omitempty"`
	ArtistName string `json:"artist_name,omitempty"`
	AudioURL   string `json:"audio_url,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
	AddedBy    string `json:"added_by,omitempty"`
	Votes      int    `json:"votes"`
	UserVote   string `json:"user_vote,omitempty"`
	Position   int    `json:"position"`
	Played     bool   `json:"played"`
}

// UnmarshalJSON also accepts the field names used by the queue REST endpoints
// (track_title, track_artist, audio, image, name) and by the song-based queue
// API (song_id, song_title, song_url, user_vote_type).
func (e *Entry) UnmarshalJSON(b []byte) error {
	type plain Entry
	aux := struct {
		*plain
		TrackTitle   string          `json:"track_title"`
		TrackArtist  string          `json:"track_artist"`
		Name         string          `json:"name"`
		Audio        string          `json:"audio"`
		Image        string          `json:"image"`
		SongID       json.RawMessage `json:"song_id"`
		SongTitle    string          `json:"song_title"`
		SongURL      string          `json:"song_url"`
		UserVoteType *string         `json:"user_vote_type"`
	}{plain: (*plain)(e)}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if e.TrackID == "" {
		e.TrackID = rawID(aux.SongID)
	}
	if e.Title == "" {
		e.Title = firstNonEmpty(aux.TrackTitle, aux.SongTitle, aux.Name)
	}
	if e.ArtistName == "" {
		e.ArtistName = aux.TrackArtist
	}
	if e.AudioURL == "" {
		e.AudioURL = firstNonEmpty(aux.Audio, aux.SongURL)
	}
	if e.ImageURL == "" {
		e.ImageURL = aux.Image
	}
	if e.UserVote == "" && aux.UserVoteType != nil {
		e.UserVote = *aux.UserVoteType
	}
	return nil
}

// rawID renders a string or numeric JSON id as text.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// ToCore converts a wire entry into the store's representation.
func (e Entry) ToCore() core.QueueEntry {
	vote, _ := core.ParseVote(e.UserVote)
	return core.QueueEntry{
		ID:              e.ID,
		TrackID:         e.TrackID,
		Title:           e.Title,
		ArtistName:      e.ArtistName,
		AudioURL:        e.AudioURL,
		ImageURL:        e.ImageURL,
		AddedBy:         e.AddedBy,
		VoteCount:       e.Votes,
		CurrentUserVote: vote,
		Position:        e.Position,
		Played:          e.Played,
	}
}

// EntriesToCore converts a server listing, keeping its order.
func EntriesToCore(in []Entry) []core.QueueEntry {
	out := make([]core.QueueEntry, 0, len(in))
	for _, e := range in {
		out = append(out, e.ToCore())
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
