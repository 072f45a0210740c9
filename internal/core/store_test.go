package core

import (
	"errors"
	"reflect"
	"testing"
)

func seededStore(t *testing.T, entries ...QueueEntry) *Store {
	t.Helper()

	s := NewStore()
	s.ApplySnapshot(entries)
	return s
}

func entry(id int64, title string, votes int) QueueEntry {
	return QueueEntry{ID: id, TrackID: "t" + title, Title: title, VoteCount: votes}
}

func TestSnapshotReplacesQueue(t *testing.T) {
	s := seededStore(t, entry(1, "a", 0), entry(2, "b", 0))
	s.OptimisticAdd(QueueEntry{TrackID: "x", Title: "x"})

	s.ApplySnapshot([]QueueEntry{entry(3, "c", 2), entry(3, "c-dup", 9)})

	got := s.Entries()
	if len(got) != 1 || got[0].ID != 3 || got[0].Title != "c" {
		t.Fatalf("unexpected queue after snapshot: %+v", got)
	}
}

func TestUpsertIntoEmptyQueue(t *testing.T) {
	s := seededStore(t)

	if err := s.ApplyIncrementalUpdate(EntryUpsert{Entry: QueueEntry{ID: 1, Title: "Test Song"}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got := s.Entries()
	if len(got) != 1 || got[0].Title != "Test Song" {
		t.Fatalf("expected one entry titled Test Song, got %+v", got)
	}
}

func TestDuplicateAuthoritativeUpdatesAreIdempotent(t *testing.T) {
	updates := []Update{
		EntryUpsert{Entry: entry(3, "c", 0)},
		VoteChange{EntryID: 1, Votes: 4},
		Reorder{Order: []int64{3, 1, 2}},
		VoteChange{EntryID: 3, Votes: 2, UserVote: VoteUp, HasUserVote: true},
		EntryRemoval{EntryID: 2},
	}

	for i, u := range updates {
		once := seededStore(t, entry(1, "a", 0), entry(2, "b", 0))
		twice := seededStore(t, entry(1, "a", 0), entry(2, "b", 0))

		for _, prior := range updates[:i] {
			_ = once.ApplyIncrementalUpdate(prior)
			_ = twice.ApplyIncrementalUpdate(prior)
		}

		if err := once.ApplyIncrementalUpdate(u); err != nil {
			t.Fatalf("update %d (%T): %v", i, u, err)
		}
		_ = twice.ApplyIncrementalUpdate(u)
		_ = twice.ApplyIncrementalUpdate(u)

		if !reflect.DeepEqual(once.Entries(), twice.Entries()) {
			t.Fatalf("update %d (%T) not idempotent:\nonce:  %+v\ntwice: %+v", i, u, once.Entries(), twice.Entries())
		}
	}
}

func TestUnknownEntryLeavesStoreUntouched(t *testing.T) {
	tests := []struct {
		name   string
		update Update
	}{
		{"vote", VoteChange{EntryID: 42, Votes: 1}},
		{"removal", EntryRemoval{EntryID: 42}},
		{"reorder unknown id", Reorder{Order: []int64{1, 42}}},
		{"reorder short", Reorder{Order: []int64{1}}},
		{"reorder duplicate", Reorder{Order: []int64{1, 1}}},
		{"incomplete upsert", EntryUpsert{Entry: QueueEntry{ID: 42}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seededStore(t, entry(1, "a", 0), entry(2, "b", 0))
			s.OptimisticVote(2, VoteUp)
			before := s.Entries()

			err := s.ApplyIncrementalUpdate(tt.update)
			if !NeedsResync(err) {
				t.Fatalf("expected resync error, got %v", err)
			}
			if !reflect.DeepEqual(before, s.Entries()) {
				t.Fatalf("store mutated: before %+v after %+v", before, s.Entries())
			}
		})
	}
}

func TestAuthoritativeVoteBeatsOptimisticGuess(t *testing.T) {
	s := seededStore(t, entry(1, "a", 2))

	guess, err := s.OptimisticVote(1, VoteUp)
	if err != nil {
		t.Fatalf("optimistic vote: %v", err)
	}
	if guess.VoteCount != 3 || guess.CurrentUserVote != VoteUp {
		t.Fatalf("unexpected guess: %+v", guess)
	}

	_ = s.ApplyIncrementalUpdate(VoteChange{EntryID: 1, Votes: 5})
	_ = s.ApplyIncrementalUpdate(VoteChange{EntryID: 1, Votes: 7})

	got, _ := s.Entry(1)
	if got.VoteCount != 7 {
		t.Fatalf("expected authoritative total 7, got %d", got.VoteCount)
	}
	if got.CurrentUserVote != VoteNone {
		t.Fatalf("optimistic user vote should be superseded, got %v", got.CurrentUserVote)
	}
}

func TestOptimisticVoteSwitchesDirection(t *testing.T) {
	s := seededStore(t)
	_ = s.ApplyIncrementalUpdate(EntryUpsert{Entry: entry(1, "a", 0)})
	_ = s.ApplyIncrementalUpdate(VoteChange{EntryID: 1, Votes: 1, UserVote: VoteUp, HasUserVote: true})

	guess, err := s.OptimisticVote(1, VoteDown)
	if err != nil {
		t.Fatalf("optimistic vote: %v", err)
	}
	if guess.VoteCount != -1 {
		t.Fatalf("expected guess -1 after switching up->down, got %d", guess.VoteCount)
	}

	if _, err := s.OptimisticVote(99, VoteUp); !errors.Is(err, ErrUnknownEntry) {
		t.Fatalf("expected unknown entry error, got %v", err)
	}
}

func TestProvisionalAddSupersededByServerEntry(t *testing.T) {
	s := seededStore(t, entry(1, "a", 0))

	prov := s.OptimisticAdd(QueueEntry{TrackID: "jam-7", Title: "Seven", AddedBy: "me"})
	if prov.ID >= 0 || !prov.Provisional {
		t.Fatalf("expected provisional entry with negative id, got %+v", prov)
	}
	if n := len(s.Entries()); n != 2 {
		t.Fatalf("expected provisional entry in view, got %d entries", n)
	}

	confirmed := QueueEntry{ID: 2, TrackID: "jam-7", Title: "Seven", AddedBy: "me", VoteCount: 0}
	if err := s.ApplyIncrementalUpdate(EntryUpsert{Entry: confirmed}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got := s.Entries()
	if len(got) != 2 || got[1].ID != 2 || got[1].Provisional {
		t.Fatalf("provisional entry not superseded: %+v", got)
	}
}

func TestDiscardDropsOptimisticState(t *testing.T) {
	s := seededStore(t, entry(1, "a", 0))

	s.OptimisticVote(1, VoteUp)
	prov := s.OptimisticAdd(QueueEntry{TrackID: "z", Title: "z"})

	s.Discard(1)
	s.Discard(prov.ID)

	got := s.Entries()
	if len(got) != 1 || got[0].VoteCount != 0 || got[0].CurrentUserVote != VoteNone {
		t.Fatalf("optimistic state not discarded: %+v", got)
	}
}

func TestReorderSetsPositions(t *testing.T) {
	s := seededStore(t, entry(1, "a", 0), entry(2, "b", 0), entry(3, "c", 0))

	if err := s.ApplyIncrementalUpdate(Reorder{Order: []int64{3, 1, 2}}); err != nil {
		t.Fatalf("reorder: %v", err)
	}

	var ids []int64
	for i, e := range s.Entries() {
		if e.Position != i {
			t.Fatalf("entry %d has position %d, want %d", e.ID, e.Position, i)
		}
		ids = append(ids, e.ID)
	}
	if !reflect.DeepEqual(ids, []int64{3, 1, 2}) {
		t.Fatalf("unexpected order %v", ids)
	}
}

func TestQueueValuePublishesChanges(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Queue().Subscribe()
	defer cancel()

	if initial := <-ch; len(initial) != 0 {
		t.Fatalf("expected empty initial view, got %+v", initial)
	}

	s.ApplySnapshot([]QueueEntry{entry(1, "a", 0)})

	if got := <-ch; len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("unexpected published view: %+v", got)
	}
}

func TestProvisionalAddSupersededByBroadcastWithoutTrackID(t *testing.T) {
	s := NewStore()
	first := s.OptimisticAdd(QueueEntry{TrackID: "t1", Title: "Blue", AddedBy: "me"})
	s.OptimisticAdd(QueueEntry{TrackID: "t1", Title: "Blue", AddedBy: "me"})

	broadcast := QueueEntry{ID: 12, Title: "Blue", ArtistName: "Band", AddedBy: "me"}
	if err := s.ApplyIncrementalUpdate(EntryUpsert{Entry: broadcast}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.ApplyIncrementalUpdate(EntryUpsert{Entry: broadcast}); err != nil {
		t.Fatalf("redelivered upsert: %v", err)
	}

	got := s.Entries()
	if len(got) != 2 {
		t.Fatalf("expected server entry plus one pending addition, got %+v", got)
	}
	if got[0].ID != 12 || got[0].Provisional {
		t.Fatalf("expected server entry first, got %+v", got[0])
	}
	if !got[1].Provisional || got[1].ID == first.ID {
		t.Fatalf("expected the second addition to remain pending, got %+v", got[1])
	}

	second := QueueEntry{ID: 13, Title: "Blue", AddedBy: "me"}
	if err := s.ApplyIncrementalUpdate(EntryUpsert{Entry: second}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	for _, e := range s.Entries() {
		if e.Provisional {
			t.Fatalf("provisional entry left behind: %+v", s.Entries())
		}
	}
}

func TestProvisionalAddNotSupersededByOtherParticipant(t *testing.T) {
	s := NewStore()
	s.OptimisticAdd(QueueEntry{TrackID: "t1", Title: "Blue", AddedBy: "me"})

	other := QueueEntry{ID: 3, Title: "Blue", AddedBy: "someone"}
	if err := s.ApplyIncrementalUpdate(EntryUpsert{Entry: other}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got := s.Entries(); len(got) != 2 || !got[1].Provisional {
		t.Fatalf("another participant's entry confirmed ours: %+v", got)
	}
}

func TestVersionCountsAppliedUpdates(t *testing.T) {
	s := seededStore(t, entry(1, "a", 0))
	if s.Version() != 0 {
		t.Fatalf("expected version 0, got %d", s.Version())
	}

	_ = s.ApplyIncrementalUpdate(VoteChange{EntryID: 1, Votes: 2})
	_ = s.ApplyIncrementalUpdate(VoteChange{EntryID: 42, Votes: 2})
	s.ApplySnapshot([]QueueEntry{entry(1, "a", 0)})

	if s.Version() != 1 {
		t.Fatalf("expected only the applied update to count, got %d", s.Version())
	}
}

func TestEntriesReturnsPrivateCopy(t *testing.T) {
	s := seededStore(t, entry(1, "a", 0))

	got := s.Entries()
	got[0].Title = "mutated"

	if s.Queue().Get()[0].Title != "a" || s.Entries()[0].Title != "a" {
		t.Fatalf("mutating Entries leaked into the store")
	}
}
