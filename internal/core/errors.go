package core

import "errors"

var (
	// ErrUnknownEntry means an update referenced an entry the store does not
	// hold. The caller must request a snapshot instead of guessing.
	ErrUnknownEntry = errors.New("unknown queue entry")
	// ErrIncompleteEntry means an addition lacked the fields needed to insert it.
	ErrIncompleteEntry = errors.New("incomplete queue entry")
	// ErrBadVote means a vote spelling could not be parsed.
	ErrBadVote = errors.New("bad vote")
)

// NeedsResync reports whether err from ApplyIncrementalUpdate should be
// answered with a full snapshot.
func NeedsResync(err error) bool {
	return errors.Is(err, ErrUnknownEntry) || errors.Is(err, ErrIncompleteEntry)
}
