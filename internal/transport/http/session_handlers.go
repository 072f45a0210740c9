package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/queuesync/internal/client"
	"github.com/vovakirdan/queuesync/internal/core"
)

// SessionHandlers provides HTTP handlers for joined sessions.
type SessionHandlers struct {
	registry *client.Registry
	log      *zerolog.Logger
}

// NewSessionHandlers creates a new session handlers instance.
func NewSessionHandlers(registry *client.Registry, logger *zerolog.Logger) *SessionHandlers {
	return &SessionHandlers{
		registry: registry,
		log:      logger,
	}
}

// VoteRequest represents the vote request body.
type VoteRequest struct {
	QueueItemID int64  `json:"queue_item_id" binding:"required"`
	Vote        string `json:"vote"`
}

// AddSongRequest represents the add song request body.
type AddSongRequest struct {
	ID         string `json:"id" binding:"required"`
	Title      string `json:"title" binding:"required"`
	ArtistName string `json:"artist_name"`
	AudioURL   string `json:"audio_url"`
	ImageURL   string `json:"image_url"`
}

// List returns the joined session codes.
// GET /api/sessions
func (h *SessionHandlers) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.registry.Handles()})
}

// Join joins a session and starts live updates.
// POST /api/sessions/:code
func (h *SessionHandlers) Join(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))

	s, created, err := h.registry.Join(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, client.ErrInvalidHandle) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid session code"})
			return
		}
		h.log.Error().Err(err).Str("session", code).Msg("failed to join session")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, sessionResponse(s))
}

// Leave leaves a session and drops its state.
// DELETE /api/sessions/:code
func (h *SessionHandlers) Leave(c *gin.Context) {
	if err := h.registry.Leave(c.Param("code")); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not joined"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Status returns the connection status of a session.
// GET /api/sessions/:code/status
func (h *SessionHandlers) Status(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionResponse(s))
}

// Connect opens the live stream or retries it after it was abandoned.
// POST /api/sessions/:code/connect
func (h *SessionHandlers) Connect(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Connect(); err != nil {
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, sessionResponse(s))
}

// Disconnect stops live updates.
// POST /api/sessions/:code/disconnect
func (h *SessionHandlers) Disconnect(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.Disconnect()
	c.JSON(http.StatusAccepted, sessionResponse(s))
}

// Queue returns the mirrored queue.
// GET /api/sessions/:code/queue
func (h *SessionHandlers) Queue(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, QueueResponse{Queue: nonNilQueue(s.Entries())})
}

// Vote casts this participant's vote on an entry.
// POST /api/sessions/:code/votes
func (h *SessionHandlers) Vote(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid vote request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	vote, ok := core.ParseVote(req.Vote)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid vote"})
		return
	}

	entry, err := s.Vote(req.QueueItemID, vote)
	if err != nil {
		h.writeSendError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// AddSong proposes a track for the queue.
// POST /api/sessions/:code/queue
func (h *SessionHandlers) AddSong(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req AddSongRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid add song request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	entry, err := s.AddSong(core.Track{
		ID:         req.ID,
		Title:      req.Title,
		ArtistName: req.ArtistName,
		AudioURL:   req.AudioURL,
		ImageURL:   req.ImageURL,
	})
	if err != nil {
		h.writeSendError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, entry)
}

// Notices returns the active notices.
// GET /api/sessions/:code/notices
func (h *SessionHandlers) Notices(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"notices": toNoticeResponses(s.Notices().Active())})
}

// DismissNotice removes a notice.
// DELETE /api/sessions/:code/notices/:id
func (h *SessionHandlers) DismissNotice(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if !s.Notices().Dismiss(c.Param("id")) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "notice not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandlers) session(c *gin.Context) (*client.Session, bool) {
	return lookupSession(c, h.registry)
}

func (h *SessionHandlers) writeSendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrUnknownEntry):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "queue entry not found"})
	case errors.Is(err, core.ErrIncompleteEntry):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, client.ErrNotConnected):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "session not connected"})
	case errors.Is(err, client.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limited"})
	default:
		h.log.Error().Err(err).Msg("failed to send to session")
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "send failed"})
	}
}

func lookupSession(c *gin.Context, registry *client.Registry) (*client.Session, bool) {
	s, err := registry.Get(c.Param("code"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not joined"})
		return nil, false
	}
	return s, true
}

func sessionResponse(s *client.Session) SessionResponse {
	return SessionResponse{
		Code:          s.Handle(),
		ParticipantID: s.ParticipantID(),
		Status:        s.Status().Get(),
	}
}
