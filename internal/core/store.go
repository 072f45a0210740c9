package core

import (
	"fmt"
	"sync"
)

// Store is the in-memory mirror of one session's queue. Authoritative state
// comes from snapshots and incremental updates; optimistic local changes sit
// in an overlay until the next authoritative update for the same entry.
type Store struct {
	mu          sync.Mutex
	entries     []QueueEntry         // authoritative, in server order
	overlay     map[int64]QueueEntry // optimistic votes keyed by entry ID
	provisional []QueueEntry         // optimistic additions, negative IDs
	nextTemp    int64
	version     uint64 // bumped by every applied incremental update

	view *Value[[]QueueEntry]
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		overlay: make(map[int64]QueueEntry),
		view:    NewValue[[]QueueEntry](nil, nil),
	}
}

// Queue exposes the observable queue view. Every reader shares the published
// slice, so it must be treated as read-only; use Entries for a private copy.
func (s *Store) Queue() *Value[[]QueueEntry] {
	return s.view
}

// Entries returns a copy of the current queue view.
func (s *Store) Entries() []QueueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildView()
}

// Entry returns the current view of one entry.
func (s *Store) Entry(id int64) (QueueEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.overlay[id]; ok {
		return e, true
	}
	if i := s.indexOf(id); i >= 0 {
		return s.entries[i], true
	}
	for _, p := range s.provisional {
		if p.ID == id {
			return p, true
		}
	}
	return QueueEntry{}, false
}

// ApplySnapshot replaces the queue wholesale and drops all optimistic state.
func (s *Store) ApplySnapshot(entries []QueueEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[int64]struct{}, len(entries))
	next := make([]QueueEntry, 0, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		e.Provisional = false
		next = append(next, e)
	}

	s.entries = next
	s.overlay = make(map[int64]QueueEntry)
	s.provisional = nil
	s.publish()
}

// ApplyIncrementalUpdate merges one authoritative change. Updates that cannot
// be applied without guessing leave the store untouched and return an error
// for which NeedsResync is true.
func (s *Store) ApplyIncrementalUpdate(u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch u := u.(type) {
	case VoteChange:
		err = s.applyVote(u)
	case EntryUpsert:
		err = s.applyUpsert(u.Entry)
	case EntryRemoval:
		err = s.applyRemoval(u.EntryID)
	case Reorder:
		err = s.applyReorder(u.Order)
	default:
		err = fmt.Errorf("unsupported update %T", u)
	}
	if err != nil {
		return err
	}
	s.version++
	s.publish()
	return nil
}

// Version counts the incremental updates applied so far. A snapshot fetched
// before the version moved may predate those updates.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func (s *Store) applyVote(u VoteChange) error {
	i := s.indexOf(u.EntryID)
	if i < 0 {
		return fmt.Errorf("%w: vote for entry %d", ErrUnknownEntry, u.EntryID)
	}
	s.entries[i].VoteCount = u.Votes
	if u.HasUserVote {
		s.entries[i].CurrentUserVote = u.UserVote
	}
	delete(s.overlay, u.EntryID)
	return nil
}

func (s *Store) applyUpsert(e QueueEntry) error {
	if !e.Complete() {
		return fmt.Errorf("%w: entry %d", ErrIncompleteEntry, e.ID)
	}
	e.Provisional = false

	if i := s.indexOf(e.ID); i >= 0 {
		// Server broadcasts do not know each participant's own vote.
		if e.CurrentUserVote == VoteNone {
			e.CurrentUserVote = s.entries[i].CurrentUserVote
		}
		s.entries[i] = e
		delete(s.overlay, e.ID)
		return nil
	}
	s.entries = append(s.entries, e)
	delete(s.overlay, e.ID)

	// A new server entry confirms at most one provisional addition.
	for i, p := range s.provisional {
		if e.supersedes(p) {
			s.provisional = append(s.provisional[:i], s.provisional[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) applyRemoval(id int64) error {
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: removal of entry %d", ErrUnknownEntry, id)
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	delete(s.overlay, id)
	return nil
}

func (s *Store) applyReorder(order []int64) error {
	if len(order) != len(s.entries) {
		return fmt.Errorf("%w: reorder names %d entries, store holds %d", ErrUnknownEntry, len(order), len(s.entries))
	}

	byID := make(map[int64]QueueEntry, len(s.entries))
	for _, e := range s.entries {
		byID[e.ID] = e
	}

	next := make([]QueueEntry, 0, len(order))
	for pos, id := range order {
		e, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: reorder references entry %d", ErrUnknownEntry, id)
		}
		delete(byID, id)
		e.Position = pos
		next = append(next, e)
	}
	for _, id := range order {
		delete(s.overlay, id)
	}
	s.entries = next
	return nil
}

// OptimisticAdd shows an entry before the server confirms it. The returned
// entry carries the provisional ID assigned to it.
func (s *Store) OptimisticAdd(e QueueEntry) QueueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTemp--
	e.ID = s.nextTemp
	e.Provisional = true
	e.VoteCount = 0
	e.CurrentUserVote = VoteNone
	e.Position = len(s.entries) + len(s.provisional)
	s.provisional = append(s.provisional, e)
	s.publish()
	return e
}

// OptimisticVote shows this participant's vote before the server confirms it.
// The guessed tally is derived from the last authoritative state only.
func (s *Store) OptimisticVote(id int64, v Vote) (QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return QueueEntry{}, fmt.Errorf("%w: vote for entry %d", ErrUnknownEntry, id)
	}

	base := s.entries[i]
	guess := base
	guess.VoteCount = base.VoteCount - base.CurrentUserVote.weight() + v.weight()
	guess.CurrentUserVote = v
	s.overlay[id] = guess
	s.publish()
	return guess, nil
}

// Discard drops optimistic state for an entry, e.g. after a failed send.
func (s *Store) Discard(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	if _, ok := s.overlay[id]; ok {
		delete(s.overlay, id)
		changed = true
	}
	for i, p := range s.provisional {
		if p.ID == id {
			s.provisional = append(s.provisional[:i], s.provisional[i+1:]...)
			changed = true
			break
		}
	}
	if changed {
		s.publish()
	}
}

// Reset empties the store.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	s.overlay = make(map[int64]QueueEntry)
	s.provisional = nil
	s.publish()
}

func (s *Store) indexOf(id int64) int {
	for i := range s.entries {
		if s.entries[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) buildView() []QueueEntry {
	out := make([]QueueEntry, 0, len(s.entries)+len(s.provisional))
	for _, e := range s.entries {
		if o, ok := s.overlay[e.ID]; ok {
			e = o
		}
		out = append(out, e)
	}
	return append(out, s.provisional...)
}

func (s *Store) publish() {
	s.view.Set(s.buildView())
}
