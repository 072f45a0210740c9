package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/vovakirdan/queuesync/internal/core"
	"github.com/vovakirdan/queuesync/internal/proto"
)

// DefaultDuration is how long transient notices stay visible.
const DefaultDuration = 5 * time.Second

// Bridge translates session events into user-facing notices. It holds no
// session state and never fails: missing fields produce generic text.
type Bridge struct {
	Duration time.Duration
}

// FromMessage returns the notice for a message kind that has one.
func (b Bridge) FromMessage(msg proto.Message) (core.Notice, bool) {
	switch m := msg.(type) {
	case proto.UserJoined:
		return b.UserJoined(m.Username), true
	case proto.SongAdded:
		return b.SongAdded(m.SongTitle), true
	default:
		return core.Notice{}, false
	}
}

// UserJoined announces a participant.
func (b Bridge) UserJoined(username string) core.Notice {
	name := strings.TrimSpace(username)
	if name == "" {
		name = "A user"
	}
	return core.Notice{
		Title:    "User Joined",
		Message:  fmt.Sprintf("%s joined the session", name),
		Category: core.CategoryInfo,
		Duration: b.duration(),
	}
}

// SongAdded announces a queued track.
func (b Bridge) SongAdded(title string) core.Notice {
	msg := "A song was added to the queue"
	if t := strings.TrimSpace(title); t != "" {
		msg = fmt.Sprintf("%q was added to the queue", t)
	}
	return core.Notice{
		Title:    "Song Added",
		Message:  msg,
		Category: core.CategorySuccess,
		Duration: b.duration(),
	}
}

// ConnectionLost tells the user live updates stopped. It stays until dismissed.
func (b Bridge) ConnectionLost() core.Notice {
	return core.Notice{
		Title:    "Connection Lost",
		Message:  "Live updates disabled. Reconnect to resume.",
		Category: core.CategoryWarning,
	}
}

func (b Bridge) duration() time.Duration {
	if b.Duration > 0 {
		return b.Duration
	}
	return DefaultDuration
}
