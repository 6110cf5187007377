package linkfilter

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"modguard/internal/ledger"
	"modguard/internal/moderation"
	"modguard/internal/modules/audit"
	"modguard/internal/store"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

var inviteRx = regexp.MustCompile(`(?i)(discord\.gg/|discord\.com/invite/)`)

// Message is the slice of an incoming guild message the filter needs.
// MemberPermissions are the author's resolved guild permissions.
type Message struct {
	GuildID           string
	ChannelID         string
	MessageID         string
	AuthorID          string
	AuthorIsBot       bool
	Content           string
	MemberPermissions int64
}

// Module deletes invite links in guilds that enabled the filter and hands
// the author a short mute. Administrators and bots are exempt.
type Module struct {
	store   *store.Store
	mod     *moderation.Service
	actions moderation.Actions
	audit   *audit.Logger
	logger  *zap.Logger
	muteFor time.Duration
}

func New(cfgStore *store.Store, mod *moderation.Service, actions moderation.Actions, auditLogger *audit.Logger, logger *zap.Logger, muteFor time.Duration) *Module {
	if muteFor <= 0 {
		muteFor = 15 * time.Minute
	}
	return &Module{
		store:   cfgStore,
		mod:     mod,
		actions: actions,
		audit:   auditLogger,
		logger:  logger,
		muteFor: muteFor,
	}
}

// HandleMessage inspects one message and reports whether it acted on it.
func (m *Module) HandleMessage(ctx context.Context, msg Message) bool {
	if msg.GuildID == "" || msg.AuthorIsBot {
		return false
	}
	cfg, err := m.store.Get(msg.GuildID)
	if err != nil {
		m.logger.Warn("guild config lookup failed", zap.String("guild_id", msg.GuildID), zap.Error(err))
		return false
	}
	if !cfg.AntiLinksEnabled {
		return false
	}
	if !inviteRx.MatchString(msg.Content) {
		return false
	}
	if msg.MemberPermissions&discordgo.PermissionAdministrator != 0 {
		return false
	}

	if err := m.actions.DeleteMessage(msg.ChannelID, msg.MessageID); err != nil {
		m.logger.Warn("invite deletion failed",
			zap.String("guild_id", msg.GuildID),
			zap.String("message_id", msg.MessageID),
			zap.Error(err))
		m.warn(msg.ChannelID, "⚠️ An invite link was posted but I could not remove it. Check my permissions.")
		return false
	}

	m.warn(msg.ChannelID, fmt.Sprintf("🔇 <@%s> posted an invite link and was muted for %d minutes.", msg.AuthorID, int(m.muteFor.Minutes())))

	_, err = m.mod.Mute(ctx, msg.GuildID, msg.ChannelID, msg.AuthorID, m.muteFor, "posting invite links")
	switch {
	case errors.Is(err, ledger.ErrAlreadySanctioned):
		// already muted; the deletion is enough
	case errors.Is(err, moderation.ErrActionFailed):
		m.warn(msg.ChannelID, fmt.Sprintf("⚠️ Could not mute <@%s>. Check my permissions.", msg.AuthorID))
	case err != nil:
		m.logger.Warn("link filter mute failed", zap.String("guild_id", msg.GuildID), zap.Error(err))
	}

	m.audit.Log(ctx, audit.LevelWarn, msg.GuildID, msg.AuthorID, audit.EventAntiLink, "invite link removed")
	return true
}

func (m *Module) warn(channelID, content string) {
	if err := m.actions.SendMessage(channelID, content); err != nil {
		m.logger.Warn("link filter notice failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}
