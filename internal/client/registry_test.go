package client

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func newTestRegistry(t *testing.T) (*Registry, *int) {
	t.Helper()

	logger := zerolog.New(nil)
	created := 0
	factory := func(_ context.Context, handle string) (*Session, error) {
		created++
		return NewSession(Options{
			Handle:        handle,
			ParticipantID: "p-" + handle,
			ServerURL:     "http://queue.test",
			Dialer:        newFakeDialer(),
			Logger:        &logger,
		})
	}
	r := NewRegistry(factory, &logger)
	t.Cleanup(r.Close)
	return r, &created
}

func TestRegistryJoinIsPerHandle(t *testing.T) {
	r, created := newTestRegistry(t)
	ctx := context.Background()

	a, isNew, err := r.Join(ctx, "AAAA")
	if err != nil || !isNew {
		t.Fatalf("join AAAA: new=%v err=%v", isNew, err)
	}
	again, isNew, err := r.Join(ctx, "AAAA")
	if err != nil || isNew || again != a {
		t.Fatalf("second join must return the existing session")
	}
	if _, _, err := r.Join(ctx, "BBBB"); err != nil {
		t.Fatalf("join BBBB: %v", err)
	}

	if *created != 2 {
		t.Fatalf("expected 2 sessions created, got %d", *created)
	}
	if got := r.Handles(); len(got) != 2 || got[0] != "AAAA" || got[1] != "BBBB" {
		t.Fatalf("unexpected handles %v", got)
	}
	if a.ParticipantID() != "p-AAAA" {
		t.Fatalf("unexpected participant %q", a.ParticipantID())
	}
}

func TestRegistryLeave(t *testing.T) {
	r, _ := newTestRegistry(t)

	if _, _, err := r.Join(context.Background(), "AAAA"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := r.Leave("AAAA"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := r.Leave("AAAA"); !errors.Is(err, ErrNotJoined) {
		t.Fatalf("expected ErrNotJoined, got %v", err)
	}
	if _, err := r.Get("AAAA"); !errors.Is(err, ErrNotJoined) {
		t.Fatalf("expected ErrNotJoined, got %v", err)
	}
	if _, _, err := r.Join(context.Background(), ""); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("expected ErrInvalidHandle, got %v", err)
	}
}
