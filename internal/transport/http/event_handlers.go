package http

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/queuesync/internal/client"
)

// EventHandlers streams session events as server-sent events.
type EventHandlers struct {
	registry *client.Registry
	log      *zerolog.Logger
}

// NewEventHandlers creates a new event handlers instance.
func NewEventHandlers(registry *client.Registry, logger *zerolog.Logger) *EventHandlers {
	return &EventHandlers{
		registry: registry,
		log:      logger,
	}
}

// Stream sends status, queue_changed, notice and playback events until the
// client goes away or the session is left.
// GET /api/sessions/:code/events
func (h *EventHandlers) Stream(c *gin.Context) {
	s, ok := lookupSession(c, h.registry)
	if !ok {
		return
	}

	status, cancelStatus := s.Status().Subscribe()
	defer cancelStatus()
	changes, cancelChanges := s.Changes()
	defer cancelChanges()
	notices, cancelNotices := s.Notices().Subscribe()
	defer cancelNotices()
	playback, cancelPlayback := s.Playback()
	defer cancelPlayback()

	h.log.Debug().Str("session", s.Handle()).Msg("event stream opened")
	ctx := c.Request.Context()

	c.Header("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case st, ok := <-status:
			if !ok {
				return false
			}
			c.SSEvent("status", gin.H{"status": st})
		case ch, ok := <-changes:
			if !ok {
				return false
			}
			c.SSEvent("queue_changed", ch)
		case n, ok := <-notices:
			if !ok {
				return false
			}
			c.SSEvent("notice", toNoticeResponse(n))
		case ev, ok := <-playback:
			if !ok {
				return false
			}
			c.SSEvent("playback", ev)
		}
		return true
	})
	h.log.Debug().Str("session", s.Handle()).Msg("event stream closed")
}
