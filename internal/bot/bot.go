package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"modguard/internal/config"
	"modguard/internal/dispatcher"
	"modguard/internal/ledger"
	"modguard/internal/moderation"
	"modguard/internal/modules/audit"
	"modguard/internal/modules/linkfilter"
	"modguard/internal/scan"
	"modguard/internal/scheduler"
	"modguard/internal/storage"
	"modguard/internal/store"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	session   *discordgo.Session
	actions   *sessionActions
	guilds    *store.Store
	mod       *moderation.Service
	disp      *dispatcher.Dispatcher
	filter    *linkfilter.Module
	audit     *audit.Logger
	history   *storage.Store
	vt        *scan.VirusTotal
	imgur     *scan.Imgur
	startedAt time.Time

	// message delivery funcs, swapped out in tests
	editEmbed func(channelID, messageID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error)
	sendEmbed func(channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error)

	auditAggMu sync.Mutex
	auditAgg   map[string]*auditAggregate
}

// auditAggregate tracks the last notification sent for a repeated event so
// duplicates within the window edit the existing message instead of
// flooding the log channel.
type auditAggregate struct {
	channelID string
	messageID string
	count     int
	lastAt    time.Time
}

func New(cfg config.Config, logger *zap.Logger, guilds *store.Store, led *ledger.Ledger, sched *scheduler.Scheduler, auditLogger *audit.Logger, history *storage.Store) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsMessageContent
	// keep recent messages cached so deletions still have their content
	session.State.MaxMessageCount = 2048

	b := &Bot{
		cfg:      cfg,
		logger:   logger,
		session:  session,
		guilds:   guilds,
		audit:    auditLogger,
		history:  history,
		auditAgg: make(map[string]*auditAggregate),
	}

	b.editEmbed = func(channelID, messageID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error) {
		return session.ChannelMessageEditEmbed(channelID, messageID, embed)
	}
	b.sendEmbed = func(channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error) {
		return session.ChannelMessageSendEmbed(channelID, embed)
	}

	b.actions = &sessionActions{session: session}
	b.mod = moderation.New(b.actions, led, sched, auditLogger, logger, moderation.Config{
		KeepFailedSanctions: cfg.Actions.KeepFailedSanctions,
		MaxMute:             time.Duration(cfg.Actions.MaxMuteMinutes) * time.Minute,
		MaxBan:              time.Duration(cfg.Actions.MaxBanDays) * 24 * time.Hour,
	})
	b.filter = linkfilter.New(guilds, b.mod, b.actions, auditLogger, logger, time.Duration(cfg.LinkFilter.MuteMinutes)*time.Minute)
	b.vt = scan.NewVirusTotal(cfg.Scan.VirusTotalKey, logger)
	b.imgur = scan.NewImgur(cfg.Scan.ImgurClientID, logger)

	b.disp = dispatcher.New(logger, cfg.OwnerID)
	b.registerHandlers()

	if b.audit != nil {
		b.audit.SetNotifier(func(ctx context.Context, entry storage.AuditLog) {
			b.notifyAudit(ctx, entry)
		})
	}

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onGuildCreate)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onMessageDelete)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onGuildMemberRemove)
	b.session.AddHandler(b.onGuildBanAdd)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	b.startedAt = time.Now()
	b.mod.Reconcile()
	b.startRetentionCleanup()

	return nil
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready",
		zap.String("user", session.State.User.Username),
		zap.Int("guilds", len(event.Guilds)))
}

// onGuildCreate makes sure every guild the bot can see has a config entry,
// so toggles never start from a missing document.
func (b *Bot) onGuildCreate(session *discordgo.Session, event *discordgo.GuildCreate) {
	if event.Guild == nil || event.Guild.ID == "" {
		return
	}
	if _, err := b.guilds.Get(event.Guild.ID); err != nil {
		b.logger.Warn("guild config init failed", zap.String("guild_id", event.Guild.ID), zap.Error(err))
	}
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.GuildID == "" {
		return
	}

	var perms int64
	if msg.Member != nil {
		if resolved, err := session.State.MessagePermissions(msg.Message); err == nil {
			perms = resolved
		}
	}

	b.filter.HandleMessage(context.Background(), linkfilter.Message{
		GuildID:           msg.GuildID,
		ChannelID:         msg.ChannelID,
		MessageID:         msg.ID,
		AuthorID:          msg.Author.ID,
		AuthorIsBot:       msg.Author.Bot,
		Content:           msg.Content,
		MemberPermissions: perms,
	})
}

// onMessageDelete records the deletion in the audit trail. Content and
// attachments are only available when the message was still in the state
// cache; cached attachments are mirrored before their CDN link dies.
func (b *Bot) onMessageDelete(session *discordgo.Session, event *discordgo.MessageDelete) {
	if event.GuildID == "" {
		return
	}

	ctx := context.Background()
	authorID := ""
	details := "id=" + event.ID
	cached := event.BeforeDelete
	if cached != nil {
		if cached.Author != nil {
			if cached.Author.Bot {
				return
			}
			authorID = cached.Author.ID
		}
		if cached.Content != "" {
			details = details + " content=" + truncate(cached.Content, 500)
		}
		for _, attachment := range cached.Attachments {
			if attachment == nil || attachment.URL == "" {
				continue
			}
			details = details + " attachment=" + b.mirrorAttachment(ctx, attachment.URL)
		}
	}

	b.audit.Log(ctx, audit.LevelInfo, event.GuildID, authorID, audit.EventMessageDeleted, details)
}

// mirrorAttachment re-uploads the file and returns the surviving URL,
// falling back to the original link when the uploader is unavailable.
func (b *Bot) mirrorAttachment(ctx context.Context, sourceURL string) string {
	if !b.imgur.Enabled() {
		return sourceURL
	}
	mirrored, err := b.imgur.Upload(ctx, sourceURL)
	if err != nil {
		b.logger.Warn("attachment mirror failed", zap.Error(err))
		return sourceURL
	}
	return mirrored
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.GuildID == "" || event.User == nil {
		return
	}
	b.audit.Log(context.Background(), audit.LevelInfo, event.GuildID, event.User.ID, audit.EventMemberJoined, event.User.Username)
}

func (b *Bot) onGuildMemberRemove(session *discordgo.Session, event *discordgo.GuildMemberRemove) {
	if event.GuildID == "" || event.User == nil {
		return
	}
	b.audit.Log(context.Background(), audit.LevelInfo, event.GuildID, event.User.ID, audit.EventMemberLeft, event.User.Username)
}

func (b *Bot) onGuildBanAdd(session *discordgo.Session, event *discordgo.GuildBanAdd) {
	if event.GuildID == "" || event.User == nil {
		return
	}
	b.audit.Log(context.Background(), audit.LevelInfo, event.GuildID, event.User.ID, audit.EventUserBanned, "gateway ban event")
}

// notifyAudit forwards one audit entry to the guild's log channel. Repeats
// of the same entry within the window edit the previous message with an
// updated count instead of posting again.
func (b *Bot) notifyAudit(ctx context.Context, entry storage.AuditLog) {
	if entry.GuildID == "" {
		return
	}
	cfg, err := b.guilds.Get(entry.GuildID)
	if err != nil || cfg.LogChannelID == "" {
		return
	}
	channelID := cfg.LogChannelID

	key := entry.GuildID + "|" + entry.Level + "|" + entry.Event + "|" + entry.Details + "|" + entry.UserID
	window := 10 * time.Minute

	b.auditAggMu.Lock()
	agg := b.auditAgg[key]
	aggregate := agg != nil && agg.channelID == channelID && time.Since(agg.lastAt) <= window
	var count int
	var messageID string
	if aggregate {
		agg.count++
		agg.lastAt = time.Now()
		count = agg.count
		messageID = agg.messageID
	}
	b.auditAggMu.Unlock()

	if aggregate {
		embed := b.buildAuditEmbed(entry, count)
		if _, err := b.editEmbed(channelID, messageID, embed); err == nil {
			return
		}
		// the tracked message is gone or unreachable; fall through to a
		// fresh post
		b.auditAggMu.Lock()
		delete(b.auditAgg, key)
		b.auditAggMu.Unlock()
	}

	embed := b.buildAuditEmbed(entry, 1)
	msg, err := b.sendEmbed(channelID, embed)
	if err != nil || msg == nil {
		return
	}
	b.auditAggMu.Lock()
	b.auditAgg[key] = &auditAggregate{channelID: channelID, messageID: msg.ID, count: 1, lastAt: time.Now()}
	b.auditAggMu.Unlock()
}

func (b *Bot) buildAuditEmbed(entry storage.AuditLog, count int) *discordgo.MessageEmbed {
	color := b.cfg.Notifications.EmbedColors.Action
	switch entry.Level {
	case audit.LevelWarn:
		color = b.cfg.Notifications.EmbedColors.Warning
	case audit.LevelCrit:
		color = b.cfg.Notifications.EmbedColors.Error
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Level", Value: entry.Level, Inline: true},
	}
	if entry.UserID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "User", Value: "<@" + entry.UserID + ">", Inline: true})
	}
	if entry.Details != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Details", Value: truncate(entry.Details, 1024), Inline: false})
	}
	if count > 1 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Occurrences", Value: fmt.Sprintf("%d", count), Inline: true})
	}

	return &discordgo.MessageEmbed{
		Title:     eventLabel(entry.Event),
		Color:     color,
		Timestamp: time.Now().Format(time.RFC3339),
		Fields:    fields,
	}
}

var eventLabels = map[audit.Event]string{
	audit.EventMessageDeleted:   "Message deleted",
	audit.EventUserMuted:        "Member muted",
	audit.EventUserUnmuted:      "Member unmuted",
	audit.EventUserBanned:       "Member banned",
	audit.EventUserUnbanned:     "Member unbanned",
	audit.EventSanctionExpired:  "Sanction expired",
	audit.EventSanctionExtended: "Sanction extended",
	audit.EventMemberJoined:     "Member joined",
	audit.EventMemberLeft:       "Member left",
	audit.EventActionFailed:     "Action failed",
	audit.EventAntiLink:         "Invite link removed",
}

func eventLabel(event string) string {
	if label, ok := eventLabels[audit.Event(event)]; ok {
		return label
	}
	return strings.ReplaceAll(event, "_", " ")
}

func (b *Bot) startRetentionCleanup() {
	if b.cfg.RetentionDays <= 0 || b.history == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if err := b.history.CleanupAuditLogs(context.Background(), b.cfg.RetentionDays); err != nil {
				b.logger.Warn("audit retention cleanup failed", zap.Error(err))
			}
		}
	}()
}

func (b *Bot) respond(interaction *discordgo.InteractionCreate, content string, ephemeral bool) error {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	return b.session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
}

func (b *Bot) respondEmbed(interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error {
	if embed == nil {
		return b.respond(interaction, "No response available.", true)
	}
	return b.session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max] + "..."
}
