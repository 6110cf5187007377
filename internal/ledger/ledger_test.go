package ledger

import (
	"errors"
	"testing"
	"time"

	"modguard/internal/persist"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func newTestLedger(t *testing.T) (*Ledger, *persist.MemoryBackend, *persist.MemoryBackend, *fixedClock) {
	t.Helper()
	mutes := persist.NewMemory()
	bans := persist.NewMemory()
	l, err := New(mutes, bans)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	clock := &fixedClock{now: time.Unix(1000, 0)}
	l.WithClock(clock)
	return l, mutes, bans, clock
}

func TestIssueAndFindActive(t *testing.T) {
	l, _, _, clock := newTestLedger(t)

	rec, err := l.Issue("g1", "u1", KindMute, 15*time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !rec.ExpiresAt.Equal(clock.now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", rec.ExpiresAt)
	}

	got, ok := l.FindActive("g1", "u1", KindMute)
	if !ok {
		t.Fatalf("expected active record")
	}
	if !got.ExpiresAt.Equal(rec.ExpiresAt) {
		t.Fatalf("expected matching expiry")
	}

	if _, ok := l.FindActive("g1", "u1", KindBan); ok {
		t.Fatalf("ban should not be active")
	}
}

func TestIssueRejectsDuplicate(t *testing.T) {
	l, _, _, _ := newTestLedger(t)

	if _, err := l.Issue("g1", "u1", KindMute, time.Minute); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := l.Issue("g1", "u1", KindMute, time.Minute); !errors.Is(err, ErrAlreadySanctioned) {
		t.Fatalf("expected ErrAlreadySanctioned, got %v", err)
	}
	// a different kind for the same subject is fine
	if _, err := l.Issue("g1", "u1", KindBan, time.Minute); err != nil {
		t.Fatalf("issue ban: %v", err)
	}
}

func TestRevoke(t *testing.T) {
	l, _, _, _ := newTestLedger(t)

	if err := l.Revoke("g1", "u1", KindMute); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := l.Issue("g1", "u1", KindMute, time.Minute); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := l.Revoke("g1", "u1", KindMute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, ok := l.FindActive("g1", "u1", KindMute); ok {
		t.Fatalf("expected record removed")
	}
}

func TestExtend(t *testing.T) {
	l, _, _, _ := newTestLedger(t)

	if _, err := l.Extend("g1", "u1", KindBan, time.Hour); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	rec, _ := l.Issue("g1", "u1", KindBan, 24*time.Hour)
	extended, err := l.Extend("g1", "u1", KindBan, 24*time.Hour)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if !extended.ExpiresAt.Equal(rec.ExpiresAt.Add(24 * time.Hour)) {
		t.Fatalf("expected expiry moved forward from previous expiry")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	l, mutes, bans, clock := newTestLedger(t)

	if _, err := l.Issue("g1", "u1", KindMute, 15*time.Minute); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := l.Issue("g2", "u2", KindBan, 24*time.Hour); err != nil {
		t.Fatalf("issue ban: %v", err)
	}

	reloaded, err := New(mutes, bans)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	rec, ok := reloaded.FindActive("g1", "u1", KindMute)
	if !ok {
		t.Fatalf("expected mute after reload")
	}
	if !rec.ExpiresAt.Equal(clock.now.Add(15 * time.Minute)) {
		t.Fatalf("expected expiry preserved, got %v", rec.ExpiresAt)
	}
	if _, ok := reloaded.FindActive("g2", "u2", KindBan); !ok {
		t.Fatalf("expected ban after reload")
	}
}

func TestOverdueAndPending(t *testing.T) {
	l, _, _, clock := newTestLedger(t)

	l.Issue("g1", "past", KindMute, time.Minute)
	l.Issue("g1", "future", KindBan, time.Hour)

	now := clock.now.Add(10 * time.Minute)
	overdue := l.Overdue(now)
	if len(overdue) != 1 || overdue[0].SubjectID != "past" {
		t.Fatalf("unexpected overdue set %v", overdue)
	}
	pending := l.Pending(now)
	if len(pending) != 1 || pending[0].SubjectID != "future" {
		t.Fatalf("unexpected pending set %v", pending)
	}
}

func TestFlushFailureRollsBack(t *testing.T) {
	l, mutes, _, _ := newTestLedger(t)

	mutes.FlushErr = errors.New("disk full")
	if _, err := l.Issue("g1", "u1", KindMute, time.Minute); err == nil {
		t.Fatalf("expected flush error")
	}
	if _, ok := l.FindActive("g1", "u1", KindMute); ok {
		t.Fatalf("expected issue rolled back")
	}

	mutes.FlushErr = nil
	if _, err := l.Issue("g1", "u1", KindMute, time.Minute); err != nil {
		t.Fatalf("issue after recovery: %v", err)
	}
	mutes.FlushErr = errors.New("disk full")
	if err := l.Revoke("g1", "u1", KindMute); err == nil {
		t.Fatalf("expected flush error on revoke")
	}
	if _, ok := l.FindActive("g1", "u1", KindMute); !ok {
		t.Fatalf("expected revoke rolled back")
	}
}
