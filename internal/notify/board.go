package notify

import (
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/vovakirdan/queuesync/internal/core"
)

// Board keeps the notices currently shown to the user. Notices with a
// duration expire on their own; the rest stay until dismissed.
type Board struct {
	clock clock.Clock

	mu      sync.Mutex
	notices []core.Notice
	timers  map[string]*clock.Timer

	feed *core.Feed[core.Notice]
}

// NewBoard creates an empty board. A nil clock uses wall time.
func NewBoard(clk clock.Clock) *Board {
	if clk == nil {
		clk = clock.New()
	}
	return &Board{
		clock:  clk,
		timers: make(map[string]*clock.Timer),
		feed:   core.NewFeed[core.Notice](16),
	}
}

// Post shows a notice and returns its ID.
func (b *Board) Post(n core.Notice) string {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.PostedAt = b.clock.Now()

	b.mu.Lock()
	b.notices = append(b.notices, n)
	if n.Duration > 0 {
		id := n.ID
		b.timers[id] = b.clock.AfterFunc(n.Duration, func() { b.Dismiss(id) })
	}
	b.mu.Unlock()

	b.feed.Publish(n)
	return n.ID
}

// Dismiss removes a notice. It reports whether the notice was shown.
func (b *Board) Dismiss(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := b.timers[id]; ok {
		t.Stop()
		delete(b.timers, id)
	}
	for i, n := range b.notices {
		if n.ID == id {
			b.notices = append(b.notices[:i], b.notices[i+1:]...)
			return true
		}
	}
	return false
}

// Active returns the notices currently shown, oldest first.
func (b *Board) Active() []core.Notice {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]core.Notice, len(b.notices))
	copy(out, b.notices)
	return out
}

// Clear removes every notice.
func (b *Board) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
	b.notices = nil
}

// Subscribe streams newly posted notices.
func (b *Board) Subscribe() (<-chan core.Notice, func()) {
	return b.feed.Subscribe()
}
