package http

import (
	"time"

	"github.com/vovakirdan/queuesync/internal/core"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionResponse describes a joined session.
type SessionResponse struct {
	Code          string      `json:"code"`
	ParticipantID string      `json:"participant_id"`
	Status        core.Status `json:"status"`
}

// QueueResponse wraps the mirrored queue like the session server does.
type QueueResponse struct {
	Queue []core.QueueEntry `json:"queue"`
}

// NoticeResponse is a notice with its duration in milliseconds.
type NoticeResponse struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Message    string        `json:"message"`
	Category   core.Category `json:"category"`
	DurationMS int64         `json:"duration_ms"`
	PostedAt   string        `json:"posted_at"`
}

func toNoticeResponse(n core.Notice) NoticeResponse {
	return NoticeResponse{
		ID:         n.ID,
		Title:      n.Title,
		Message:    n.Message,
		Category:   n.Category,
		DurationMS: n.Duration.Milliseconds(),
		PostedAt:   n.PostedAt.UTC().Format(time.RFC3339),
	}
}

func toNoticeResponses(in []core.Notice) []NoticeResponse {
	out := make([]NoticeResponse, 0, len(in))
	for _, n := range in {
		out = append(out, toNoticeResponse(n))
	}
	return out
}

func nonNilQueue(entries []core.QueueEntry) []core.QueueEntry {
	if entries == nil {
		return []core.QueueEntry{}
	}
	return entries
}
