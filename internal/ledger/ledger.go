package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"modguard/internal/persist"
)

var (
	// ErrAlreadySanctioned is returned by Issue when an active record of the
	// same kind exists for the subject in that guild. Use Extend to move an
	// existing expiry instead.
	ErrAlreadySanctioned = errors.New("subject already has an active sanction of this kind")
	// ErrNotFound is returned by Revoke and Extend when the subject has no
	// active sanction of that kind.
	ErrNotFound = errors.New("no active sanction of this kind")
)

type Kind string

const (
	KindMute Kind = "mute"
	KindBan  Kind = "ban"
)

// Record is one active temporary sanction. At most one record exists per
// (guild, subject, kind).
type Record struct {
	GuildID   string
	SubjectID string
	Kind      Kind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type entry struct {
	IssuedAt time.Time `json:"issued_at"`
	Until    time.Time `json:"until"`
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Ledger is the durable record of active temporary sanctions. Mutes and
// bans persist as separate whole-file JSON documents, flushed synchronously
// on every mutation with rollback on flush failure.
type Ledger struct {
	mu       sync.Mutex
	clock    Clock
	backends map[Kind]persist.Backend
	records  map[Kind]map[string]map[string]entry // kind -> guild -> subject
}

func New(mutes, bans persist.Backend) (*Ledger, error) {
	l := &Ledger{
		clock: realClock{},
		backends: map[Kind]persist.Backend{
			KindMute: mutes,
			KindBan:  bans,
		},
		records: map[Kind]map[string]map[string]entry{
			KindMute: make(map[string]map[string]entry),
			KindBan:  make(map[string]map[string]entry),
		},
	}
	for kind, backend := range l.backends {
		data, err := backend.Load()
		if err != nil {
			return nil, fmt.Errorf("load %s ledger: %w", kind, err)
		}
		if len(data) == 0 {
			continue
		}
		var doc map[string]map[string]entry
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse %s ledger: %w", kind, err)
		}
		l.records[kind] = doc
	}
	return l, nil
}

func (l *Ledger) WithClock(clock Clock) {
	l.clock = clock
}

// Issue records a new sanction expiring after duration. It fails with
// ErrAlreadySanctioned if the subject already carries an active sanction of
// the same kind in that guild.
func (l *Ledger) Issue(guildID, subjectID string, kind Kind, duration time.Duration) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	guilds := l.records[kind]
	if _, ok := guilds[guildID][subjectID]; ok {
		return Record{}, ErrAlreadySanctioned
	}

	now := l.clock.Now()
	e := entry{IssuedAt: now, Until: now.Add(duration)}
	if guilds[guildID] == nil {
		guilds[guildID] = make(map[string]entry)
	}
	guilds[guildID][subjectID] = e
	if err := l.flushLocked(kind); err != nil {
		delete(guilds[guildID], subjectID)
		return Record{}, err
	}
	return record(guildID, subjectID, kind, e), nil
}

// Extend moves an active sanction's expiry forward from its current expiry.
func (l *Ledger) Extend(guildID, subjectID string, kind Kind, duration time.Duration) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	guilds := l.records[kind]
	prev, ok := guilds[guildID][subjectID]
	if !ok {
		return Record{}, ErrNotFound
	}

	next := prev
	next.Until = prev.Until.Add(duration)
	guilds[guildID][subjectID] = next
	if err := l.flushLocked(kind); err != nil {
		guilds[guildID][subjectID] = prev
		return Record{}, err
	}
	return record(guildID, subjectID, kind, next), nil
}

// Revoke removes the record if present.
func (l *Ledger) Revoke(guildID, subjectID string, kind Kind) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	guilds := l.records[kind]
	prev, ok := guilds[guildID][subjectID]
	if !ok {
		return ErrNotFound
	}

	delete(guilds[guildID], subjectID)
	if len(guilds[guildID]) == 0 {
		delete(guilds, guildID)
	}
	if err := l.flushLocked(kind); err != nil {
		if guilds[guildID] == nil {
			guilds[guildID] = make(map[string]entry)
		}
		guilds[guildID][subjectID] = prev
		return err
	}
	return nil
}

// FindActive is a read-only lookup used for precondition checks and for the
// scheduler's re-validation before a reversal fires.
func (l *Ledger) FindActive(guildID, subjectID string, kind Kind) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.records[kind][guildID][subjectID]
	if !ok {
		return Record{}, false
	}
	return record(guildID, subjectID, kind, e), true
}

// Overdue returns records whose expiry is at or before now. Used at startup
// to reverse sanctions that lapsed while the process was down.
func (l *Ledger) Overdue(now time.Time) []Record {
	return l.scan(func(e entry) bool { return !e.Until.After(now) })
}

// Pending returns records expiring after now, for re-arming timers at
// startup.
func (l *Ledger) Pending(now time.Time) []Record {
	return l.scan(func(e entry) bool { return e.Until.After(now) })
}

func (l *Ledger) scan(match func(entry) bool) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Record
	for kind, guilds := range l.records {
		for guildID, subjects := range guilds {
			for subjectID, e := range subjects {
				if match(e) {
					out = append(out, record(guildID, subjectID, kind, e))
				}
			}
		}
	}
	return out
}

func (l *Ledger) flushLocked(kind Kind) error {
	data, err := json.MarshalIndent(l.records[kind], "", "    ")
	if err != nil {
		return fmt.Errorf("encode %s ledger: %w", kind, err)
	}
	if err := l.backends[kind].Flush(data); err != nil {
		return fmt.Errorf("flush %s ledger: %w", kind, err)
	}
	return nil
}

func record(guildID, subjectID string, kind Kind, e entry) Record {
	return Record{
		GuildID:   guildID,
		SubjectID: subjectID,
		Kind:      kind,
		IssuedAt:  e.IssuedAt,
		ExpiresAt: e.Until,
	}
}
