package moderation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"modguard/internal/ledger"
	"modguard/internal/modules/audit"
	"modguard/internal/scheduler"

	"go.uber.org/zap"
)

var (
	// ErrActionFailed wraps a rejected gateway call (missing permission,
	// unknown member). Prior partial effects are not rolled back.
	ErrActionFailed = errors.New("gateway action failed")
	// ErrDurationOutOfRange rejects non-positive or implausibly long
	// sanction durations before any external action is attempted.
	ErrDurationOutOfRange = errors.New("sanction duration out of range")
)

// Actions is the outbound gateway surface the moderation core calls. The
// discordgo adapter lives in the bot package; tests use a spy.
type Actions interface {
	TimeoutMember(guildID, userID string, until time.Time) error
	RemoveTimeout(guildID, userID string) error
	BanMember(guildID, userID, reason string) error
	UnbanMember(guildID, userID string) error
	DeleteMessage(channelID, messageID string) error
	SendMessage(channelID, content string) error
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Config struct {
	// KeepFailedSanctions leaves the ledger record in place when the
	// reversal's external action fails, so an operator can retry with a
	// manual unmute/unban. The default clears it so a subject is never
	// reported as sanctioned forever after an unknown external outcome.
	KeepFailedSanctions bool
	MaxMute             time.Duration
	MaxBan              time.Duration
}

// Service drives the temporary-sanction lifecycle: apply the external
// action, record it in the ledger, arm the reversal timer, and handle
// manual revocation and startup reconciliation. Ledger mutations for one
// (guild, subject, kind) are serialized through a per-key lock so a manual
// revoke and an auto-reversal never interleave.
type Service struct {
	actions Actions
	ledger  *ledger.Ledger
	sched   *scheduler.Scheduler
	audit   *audit.Logger
	logger  *zap.Logger
	clock   Clock
	cfg     Config

	mu   sync.Mutex
	keys map[string]*sync.Mutex
}

func New(actions Actions, led *ledger.Ledger, sched *scheduler.Scheduler, auditLogger *audit.Logger, logger *zap.Logger, cfg Config) *Service {
	if cfg.MaxMute <= 0 {
		cfg.MaxMute = 28 * 24 * time.Hour
	}
	if cfg.MaxBan <= 0 {
		cfg.MaxBan = 365 * 24 * time.Hour
	}
	return &Service{
		actions: actions,
		ledger:  led,
		sched:   sched,
		audit:   auditLogger,
		logger:  logger,
		clock:   realClock{},
		cfg:     cfg,
		keys:    make(map[string]*sync.Mutex),
	}
}

func (s *Service) WithClock(clock Clock) {
	s.clock = clock
}

// Mute times the subject out for the duration and arms the auto-unmute.
// channelID, when set, receives the public notice once the mute lapses.
func (s *Service) Mute(ctx context.Context, guildID, channelID, subjectID string, duration time.Duration, reason string) (ledger.Record, error) {
	if duration <= 0 || duration > s.cfg.MaxMute {
		return ledger.Record{}, ErrDurationOutOfRange
	}

	unlock := s.lockKey(guildID, subjectID, ledger.KindMute)
	defer unlock()

	if _, active := s.ledger.FindActive(guildID, subjectID, ledger.KindMute); active {
		return ledger.Record{}, ledger.ErrAlreadySanctioned
	}

	until := s.clock.Now().Add(duration)
	if err := s.actions.TimeoutMember(guildID, subjectID, until); err != nil {
		s.audit.Log(ctx, audit.LevelWarn, guildID, subjectID, audit.EventActionFailed, "timeout failed: "+err.Error())
		return ledger.Record{}, fmt.Errorf("%w: %v", ErrActionFailed, err)
	}

	rec, err := s.ledger.Issue(guildID, subjectID, ledger.KindMute, duration)
	if err != nil {
		return ledger.Record{}, err
	}
	s.arm(rec, channelID)
	s.audit.Log(ctx, audit.LevelInfo, guildID, subjectID, audit.EventUserMuted, sanctionDetail(duration, reason))
	return rec, nil
}

// TempBan bans the subject and arms the auto-unban.
func (s *Service) TempBan(ctx context.Context, guildID, channelID, subjectID string, duration time.Duration, reason string) (ledger.Record, error) {
	if duration <= 0 || duration > s.cfg.MaxBan {
		return ledger.Record{}, ErrDurationOutOfRange
	}

	unlock := s.lockKey(guildID, subjectID, ledger.KindBan)
	defer unlock()

	if _, active := s.ledger.FindActive(guildID, subjectID, ledger.KindBan); active {
		return ledger.Record{}, ledger.ErrAlreadySanctioned
	}

	if err := s.actions.BanMember(guildID, subjectID, reason); err != nil {
		s.audit.Log(ctx, audit.LevelWarn, guildID, subjectID, audit.EventActionFailed, "ban failed: "+err.Error())
		return ledger.Record{}, fmt.Errorf("%w: %v", ErrActionFailed, err)
	}

	rec, err := s.ledger.Issue(guildID, subjectID, ledger.KindBan, duration)
	if err != nil {
		return ledger.Record{}, err
	}
	s.arm(rec, channelID)
	s.audit.Log(ctx, audit.LevelCrit, guildID, subjectID, audit.EventUserBanned, sanctionDetail(duration, reason))
	return rec, nil
}

// Extend moves an active sanction's expiry forward and re-arms its timer.
func (s *Service) Extend(ctx context.Context, guildID, channelID, subjectID string, kind ledger.Kind, duration time.Duration) (ledger.Record, error) {
	max := s.cfg.MaxMute
	if kind == ledger.KindBan {
		max = s.cfg.MaxBan
	}
	if duration <= 0 || duration > max {
		return ledger.Record{}, ErrDurationOutOfRange
	}

	unlock := s.lockKey(guildID, subjectID, kind)
	defer unlock()

	rec, err := s.ledger.Extend(guildID, subjectID, kind, duration)
	if err != nil {
		return ledger.Record{}, err
	}
	if kind == ledger.KindMute {
		// the platform timeout carries its own expiry; push it to match
		if err := s.actions.TimeoutMember(guildID, subjectID, rec.ExpiresAt); err != nil {
			s.audit.Log(ctx, audit.LevelWarn, guildID, subjectID, audit.EventActionFailed, "timeout extension failed: "+err.Error())
		}
	}
	s.arm(rec, channelID)
	s.audit.Log(ctx, audit.LevelInfo, guildID, subjectID, audit.EventSanctionExtended, sanctionDetail(duration, string(kind)))
	return rec, nil
}

// Unmute revokes an active mute early: cancels the pending reversal first
// so a stale timer cannot double-act, then clears the ledger and removes
// the platform timeout.
func (s *Service) Unmute(ctx context.Context, guildID, subjectID string) error {
	unlock := s.lockKey(guildID, subjectID, ledger.KindMute)
	defer unlock()

	if _, active := s.ledger.FindActive(guildID, subjectID, ledger.KindMute); !active {
		return ledger.ErrNotFound
	}
	s.sched.Cancel(guildID, subjectID, string(ledger.KindMute))
	if err := s.ledger.Revoke(guildID, subjectID, ledger.KindMute); err != nil {
		return err
	}
	if err := s.actions.RemoveTimeout(guildID, subjectID); err != nil {
		s.audit.Log(ctx, audit.LevelWarn, guildID, subjectID, audit.EventActionFailed, "remove timeout failed: "+err.Error())
		return fmt.Errorf("%w: %v", ErrActionFailed, err)
	}
	s.audit.Log(ctx, audit.LevelInfo, guildID, subjectID, audit.EventUserUnmuted, "manual")
	return nil
}

// Unban revokes an active temporary ban early.
func (s *Service) Unban(ctx context.Context, guildID, subjectID string) error {
	unlock := s.lockKey(guildID, subjectID, ledger.KindBan)
	defer unlock()

	if _, active := s.ledger.FindActive(guildID, subjectID, ledger.KindBan); !active {
		return ledger.ErrNotFound
	}
	s.sched.Cancel(guildID, subjectID, string(ledger.KindBan))
	if err := s.ledger.Revoke(guildID, subjectID, ledger.KindBan); err != nil {
		return err
	}
	if err := s.actions.UnbanMember(guildID, subjectID); err != nil {
		s.audit.Log(ctx, audit.LevelWarn, guildID, subjectID, audit.EventActionFailed, "unban failed: "+err.Error())
		return fmt.Errorf("%w: %v", ErrActionFailed, err)
	}
	s.audit.Log(ctx, audit.LevelInfo, guildID, subjectID, audit.EventUserUnbanned, "manual")
	return nil
}

// Reconcile re-arms every persisted sanction after a restart. Overdue
// records get a past expiry and reverse immediately.
func (s *Service) Reconcile() {
	now := s.clock.Now()
	overdue := s.ledger.Overdue(now)
	pending := s.ledger.Pending(now)
	for _, rec := range overdue {
		s.arm(rec, "")
	}
	for _, rec := range pending {
		s.arm(rec, "")
	}
	if len(overdue) > 0 || len(pending) > 0 {
		s.logger.Info("sanction ledger reconciled",
			zap.Int("overdue", len(overdue)),
			zap.Int("rearmed", len(pending)))
	}
}

func (s *Service) arm(rec ledger.Record, channelID string) {
	s.sched.Arm(rec.GuildID, rec.SubjectID, string(rec.Kind), rec.ExpiresAt, func() {
		s.reverse(rec, channelID)
	})
}

// reverse is the timer callback. It re-validates against the ledger before
// acting: a record that was revoked or replaced since the timer was armed
// makes this a silent no-op.
func (s *Service) reverse(rec ledger.Record, channelID string) {
	ctx := context.Background()
	unlock := s.lockKey(rec.GuildID, rec.SubjectID, rec.Kind)
	defer unlock()

	current, active := s.ledger.FindActive(rec.GuildID, rec.SubjectID, rec.Kind)
	if !active || !current.ExpiresAt.Equal(rec.ExpiresAt) {
		return
	}

	var actErr error
	switch rec.Kind {
	case ledger.KindMute:
		actErr = s.actions.RemoveTimeout(rec.GuildID, rec.SubjectID)
	case ledger.KindBan:
		actErr = s.actions.UnbanMember(rec.GuildID, rec.SubjectID)
	}
	if actErr != nil {
		s.logger.Warn("sanction reversal failed",
			zap.String("guild_id", rec.GuildID),
			zap.String("subject_id", rec.SubjectID),
			zap.String("kind", string(rec.Kind)),
			zap.Error(actErr))
		s.audit.Log(ctx, audit.LevelWarn, rec.GuildID, rec.SubjectID, audit.EventActionFailed, string(rec.Kind)+" reversal failed: "+actErr.Error())
		if s.cfg.KeepFailedSanctions {
			return
		}
	}

	if err := s.ledger.Revoke(rec.GuildID, rec.SubjectID, rec.Kind); err != nil {
		s.logger.Error("ledger revoke after reversal failed", zap.Error(err))
	}
	if actErr != nil {
		return
	}

	s.audit.Log(ctx, audit.LevelInfo, rec.GuildID, rec.SubjectID, audit.EventSanctionExpired, string(rec.Kind))
	if channelID != "" {
		notice := fmt.Sprintf("🔊 <@%s> has been unmuted.", rec.SubjectID)
		if rec.Kind == ledger.KindBan {
			notice = fmt.Sprintf("🔓 <@%s> has been unbanned.", rec.SubjectID)
		}
		if err := s.actions.SendMessage(channelID, notice); err != nil {
			s.logger.Warn("reversal notice failed", zap.Error(err))
		}
	}
}

func (s *Service) lockKey(guildID, subjectID string, kind ledger.Kind) func() {
	k := guildID + "|" + subjectID + "|" + string(kind)
	s.mu.Lock()
	m := s.keys[k]
	if m == nil {
		m = &sync.Mutex{}
		s.keys[k] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func sanctionDetail(duration time.Duration, reason string) string {
	if reason == "" {
		return fmt.Sprintf("duration=%s", duration)
	}
	return fmt.Sprintf("duration=%s reason=%s", duration, reason)
}
