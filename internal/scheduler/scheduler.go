package scheduler

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

type key struct {
	guildID   string
	subjectID string
	kind      string
}

type pending struct {
	gen   uint64
	timer Timer
}

// Scheduler owns the one-shot reversal timers, keyed by
// (guild, subject, kind). Timers are best-effort and in-memory only; the
// ledger is the durable source of truth and callers re-validate against it
// when a timer fires.
type Scheduler struct {
	mu      sync.Mutex
	clock   Clock
	nextGen uint64
	timers  map[key]*pending
}

func New() *Scheduler {
	return &Scheduler{
		clock:  realClock{},
		timers: make(map[key]*pending),
	}
}

func (s *Scheduler) WithClock(clock Clock) {
	s.clock = clock
}

// Arm schedules onExpire to run at expiresAt. A past expiry runs as soon as
// the timer goroutine gets scheduled rather than hanging. Re-arming a key
// replaces any previous timer for it. The callback runs at most once and
// only if the timer is still the current one for its key when it fires, so
// Cancel is atomic with respect to a concurrently-firing timer.
func (s *Scheduler) Arm(guildID, subjectID, kind string, expiresAt time.Time, onExpire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{guildID: guildID, subjectID: subjectID, kind: kind}
	if prev := s.timers[k]; prev != nil && prev.timer != nil {
		prev.timer.Stop()
	}

	s.nextGen++
	p := &pending{gen: s.nextGen}
	s.timers[k] = p

	gen := p.gen
	delay := expiresAt.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	p.timer = s.clock.AfterFunc(delay, func() {
		if !s.claim(k, gen) {
			return
		}
		onExpire()
	})
}

// claim removes the key's timer if it is still the one that fired. A false
// return means the timer was cancelled or replaced after firing was already
// committed by the clock.
func (s *Scheduler) claim(k key, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.timers[k]
	if p == nil || p.gen != gen {
		return false
	}
	delete(s.timers, k)
	return true
}

// Cancel stops and removes a pending timer. It reports whether a timer was
// pending; cancelling an absent key is a no-op.
func (s *Scheduler) Cancel(guildID, subjectID, kind string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{guildID: guildID, subjectID: subjectID, kind: kind}
	p := s.timers[k]
	if p == nil {
		return false
	}
	delete(s.timers, k)
	if p.timer != nil {
		p.timer.Stop()
	}
	return true
}

// Pending reports how many timers are armed.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
