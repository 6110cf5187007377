package audit

import (
	"context"
	"time"

	"modguard/internal/storage"

	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

// Event identifies one kind of moderation event in the audit trail.
type Event string

const (
	EventMessageDeleted   Event = "message_deleted"
	EventUserMuted        Event = "user_muted"
	EventUserUnmuted      Event = "user_unmuted"
	EventUserBanned       Event = "user_banned"
	EventUserUnbanned     Event = "user_unbanned"
	EventSanctionExpired  Event = "sanction_expired"
	EventSanctionExtended Event = "sanction_extended"
	EventMemberJoined     Event = "member_joined"
	EventMemberLeft       Event = "member_left"
	EventActionFailed     Event = "action_failed"
	EventAntiLink         Event = "anti_link"
)

// Logger records moderation events: every event goes to the process log and
// the sqlite history; the notifier, when set, forwards it to the guild's
// configured log channel. Guilds without a log channel simply never see the
// notification.
type Logger struct {
	store  *storage.Store
	logger *zap.Logger
	notify func(context.Context, storage.AuditLog)
}

func NewLogger(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

func (l *Logger) SetNotifier(notify func(context.Context, storage.AuditLog)) {
	l.notify = notify
}

func (l *Logger) Log(ctx context.Context, level, guildID, userID string, event Event, details string) {
	entry := storage.AuditLog{
		GuildID:   guildID,
		UserID:    userID,
		Level:     level,
		Event:     string(event),
		Details:   details,
		CreatedAt: time.Now(),
	}

	l.logger.Info("audit",
		zap.String("level", level),
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("event", string(event)),
		zap.String("details", details))

	if l.store != nil {
		if err := l.store.AddAuditLog(ctx, entry); err != nil {
			l.logger.Warn("audit history write failed", zap.String("event", string(event)), zap.Error(err))
		}
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
}
