package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"strings"
	"time"

	"modguard/internal/dispatcher"
	"modguard/internal/ledger"
	"modguard/internal/moderation"
	"modguard/internal/modules/audit"
	"modguard/internal/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}

	ctx := context.Background()
	data := interaction.ApplicationCommandData()
	inv := b.buildInvocation(interaction, data.Options)

	err := b.disp.Dispatch(ctx, data.Name, inv)
	switch {
	case err == nil:
	case errors.Is(err, dispatcher.ErrUnknownCommand):
		_ = b.respond(interaction, "Unknown command.", true)
	case errors.Is(err, dispatcher.ErrNotInGuild):
		_ = b.respond(interaction, "This command only works inside a server.", true)
	case errors.Is(err, dispatcher.ErrPermissionDenied):
		_ = b.respond(interaction, "🚫 You are not allowed to use this command here.", true)
	case errors.Is(err, dispatcher.ErrInvalidArgument):
		_ = b.respond(interaction, "⚠️ The duration must be a positive number.", true)
	default:
		b.logger.Warn("command failed",
			zap.String("command", data.Name),
			zap.String("guild_id", interaction.GuildID),
			zap.Error(err))
		_ = b.respond(interaction, "Something went wrong running that command.", true)
	}
}

func (b *Bot) buildInvocation(interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) *dispatcher.Invocation {
	inv := &dispatcher.Invocation{
		GuildID:        interaction.GuildID,
		ChannelID:      interaction.ChannelID,
		BotPermissions: interaction.AppPermissions,
		Options:        make(map[string]dispatcher.Option, len(options)),
	}
	if interaction.Member != nil && interaction.Member.User != nil {
		inv.UserID = interaction.Member.User.ID
		inv.UserName = interaction.Member.User.Username
		inv.MemberPermissions = interaction.Member.Permissions
	} else if interaction.User != nil {
		inv.UserID = interaction.User.ID
		inv.UserName = interaction.User.Username
	}

	for _, opt := range options {
		if opt == nil {
			continue
		}
		switch opt.Type {
		case discordgo.ApplicationCommandOptionString:
			inv.Options[opt.Name] = dispatcher.Option{Str: opt.StringValue()}
		case discordgo.ApplicationCommandOptionInteger:
			inv.Options[opt.Name] = dispatcher.Option{Int: opt.IntValue()}
		case discordgo.ApplicationCommandOptionUser:
			if id, ok := opt.Value.(string); ok {
				inv.Options[opt.Name] = dispatcher.Option{UserID: id}
			}
		case discordgo.ApplicationCommandOptionChannel:
			if id, ok := opt.Value.(string); ok {
				inv.Options[opt.Name] = dispatcher.Option{ChannelID: id}
			}
		}
	}

	inv.Respond = func(content string, ephemeral bool) error {
		return b.respond(interaction, content, ephemeral)
	}
	inv.RespondEmbed = func(embed *discordgo.MessageEmbed) error {
		return b.respondEmbed(interaction, embed)
	}
	return inv
}

func (b *Bot) registerHandlers() {
	userOption := func(name, description string, required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        name,
			Description: description,
			Required:    required,
		}
	}
	intOption := func(name, description string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        name,
			Description: description,
			Required:    true,
		}
	}

	b.disp.Register(&dispatcher.Command{
		Name:             "mute",
		Description:      "Temporarily mute a member",
		RequireGuild:     true,
		MemberPermission: discordgo.PermissionModerateMembers,
		BotPermission:    discordgo.PermissionModerateMembers,
		DurationOption:   "minutes",
		Options: []*discordgo.ApplicationCommandOption{
			userOption("user", "member to mute", true),
			intOption("minutes", "mute duration in minutes"),
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "reason",
				Description: "reason for the mute",
				Required:    false,
			},
		},
		Run: b.handleMute,
	})

	b.disp.Register(&dispatcher.Command{
		Name:             "unmute",
		Description:      "Lift an active mute",
		RequireGuild:     true,
		MemberPermission: discordgo.PermissionModerateMembers,
		BotPermission:    discordgo.PermissionModerateMembers,
		Options: []*discordgo.ApplicationCommandOption{
			userOption("user", "member to unmute", true),
		},
		Run: b.handleUnmute,
	})

	b.disp.Register(&dispatcher.Command{
		Name:             "ban",
		Description:      "Temporarily ban a member",
		RequireGuild:     true,
		MemberPermission: discordgo.PermissionBanMembers,
		BotPermission:    discordgo.PermissionBanMembers,
		DurationOption:   "days",
		Options: []*discordgo.ApplicationCommandOption{
			userOption("user", "member to ban", true),
			intOption("days", "ban duration in days"),
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "reason",
				Description: "reason for the ban",
				Required:    false,
			},
		},
		Run: b.handleBan,
	})

	b.disp.Register(&dispatcher.Command{
		Name:             "unban",
		Description:      "Lift an active temporary ban",
		RequireGuild:     true,
		MemberPermission: discordgo.PermissionBanMembers,
		BotPermission:    discordgo.PermissionBanMembers,
		Options: []*discordgo.ApplicationCommandOption{
			userOption("user", "user to unban", true),
		},
		Run: b.handleUnban,
	})

	b.disp.Register(&dispatcher.Command{
		Name:             "extend",
		Description:      "Extend an active sanction",
		RequireGuild:     true,
		MemberPermission: discordgo.PermissionBanMembers,
		DurationOption:   "minutes",
		Options: []*discordgo.ApplicationCommandOption{
			userOption("user", "sanctioned member", true),
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "kind",
				Description: "mute or ban",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "mute", Value: "mute"},
					{Name: "ban", Value: "ban"},
				},
			},
			intOption("minutes", "additional minutes"),
		},
		Run: b.handleExtend,
	})

	b.disp.Register(&dispatcher.Command{
		Name:             "anti_links_enable",
		Description:      "Enable the invite link filter",
		RequireGuild:     true,
		MemberPermission: discordgo.PermissionAdministrator,
		Run:              b.handleAntiLinksEnable,
	})

	b.disp.Register(&dispatcher.Command{
		Name:             "anti_links_disable",
		Description:      "Disable the invite link filter",
		RequireGuild:     true,
		MemberPermission: discordgo.PermissionAdministrator,
		Run:              b.handleAntiLinksDisable,
	})

	b.disp.Register(&dispatcher.Command{
		Name:             "setlogs",
		Description:      "Set the moderation log channel",
		RequireGuild:     true,
		MemberPermission: discordgo.PermissionAdministrator,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionChannel,
				Name:        "channel",
				Description: "channel receiving moderation logs",
				Required:    true,
			},
		},
		Run: b.handleSetLogs,
	})

	b.disp.Register(&dispatcher.Command{
		Name:             "modlogs",
		Description:      "Show recent moderation activity",
		RequireGuild:     true,
		MemberPermission: discordgo.PermissionManageServer,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "period",
				Description: "lookback period (default day)",
				Required:    false,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "day", Value: "day"},
					{Name: "week", Value: "week"},
				},
			},
		},
		Run: b.handleModLogs,
	})

	b.disp.Register(&dispatcher.Command{
		Name:        "ping",
		Description: "Check the bot's latency",
		Run:         b.handlePing,
	})

	b.disp.Register(&dispatcher.Command{
		Name:        "hola",
		Description: "Say hello",
		Run:         b.handleHola,
	})

	b.disp.Register(&dispatcher.Command{
		Name:        "coinflip",
		Description: "Flip a coin",
		Run:         b.handleCoinflip,
	})

	b.disp.Register(&dispatcher.Command{
		Name:        "botinfo",
		Description: "Show bot runtime information",
		Run:         b.handleBotInfo,
	})

	b.disp.Register(&dispatcher.Command{
		Name:         "serverinfo",
		Description:  "Show information about this server",
		RequireGuild: true,
		Run:          b.handleServerInfo,
	})

	b.disp.Register(&dispatcher.Command{
		Name:         "userinfo",
		Description:  "Show information about a member",
		RequireGuild: true,
		Options: []*discordgo.ApplicationCommandOption{
			userOption("user", "member to inspect (defaults to you)", false),
		},
		Run: b.handleUserInfo,
	})

	b.disp.Register(&dispatcher.Command{
		Name:        "servers",
		Description: "List the servers the bot is in",
		OwnerOnly:   true,
		Run:         b.handleServers,
	})

	b.disp.Register(&dispatcher.Command{
		Name:        "scanlink",
		Description: "Scan a link for malware",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "url",
				Description: "link to scan",
				Required:    true,
			},
		},
		Run: b.handleScanLink,
	})

	b.disp.Register(&dispatcher.Command{
		Name:        "help",
		Description: "List available commands",
		Run:         b.handleHelp,
	})
}

func (b *Bot) handleMute(ctx context.Context, inv *dispatcher.Invocation) error {
	target, ok := inv.Option("user")
	if !ok || target.UserID == "" {
		return inv.Respond("⚠️ Pick a member to mute.", true)
	}
	duration, err := inv.Duration("minutes")
	if err != nil {
		return err
	}
	reason := inv.Options["reason"].Str

	rec, err := b.mod.Mute(ctx, inv.GuildID, inv.ChannelID, target.UserID, duration, reason)
	switch {
	case errors.Is(err, ledger.ErrAlreadySanctioned):
		return inv.Respond(fmt.Sprintf("<@%s> is already muted. Use /extend to lengthen it.", target.UserID), true)
	case errors.Is(err, moderation.ErrDurationOutOfRange):
		return inv.Respond("⚠️ That mute duration is out of range.", true)
	case errors.Is(err, moderation.ErrActionFailed):
		return inv.Respond(fmt.Sprintf("⚠️ Could not mute <@%s>. Check my permissions and role position.", target.UserID), true)
	case err != nil:
		return err
	}

	return inv.RespondEmbed(b.commandEmbed(
		"Member muted",
		fmt.Sprintf("🔇 <@%s> is muted until <t:%d:f>.", target.UserID, rec.ExpiresAt.Unix()),
		b.cfg.Notifications.EmbedColors.Action,
		reasonFields(reason)))
}

func (b *Bot) handleUnmute(ctx context.Context, inv *dispatcher.Invocation) error {
	target, ok := inv.Option("user")
	if !ok || target.UserID == "" {
		return inv.Respond("⚠️ Pick a member to unmute.", true)
	}

	err := b.mod.Unmute(ctx, inv.GuildID, target.UserID)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return inv.Respond(fmt.Sprintf("<@%s> is not muted.", target.UserID), true)
	case errors.Is(err, moderation.ErrActionFailed):
		return inv.Respond(fmt.Sprintf("⚠️ The mute record was cleared but I could not lift the timeout for <@%s>.", target.UserID), true)
	case err != nil:
		return err
	}
	return inv.Respond(fmt.Sprintf("🔊 <@%s> has been unmuted.", target.UserID), false)
}

func (b *Bot) handleBan(ctx context.Context, inv *dispatcher.Invocation) error {
	target, ok := inv.Option("user")
	if !ok || target.UserID == "" {
		return inv.Respond("⚠️ Pick a member to ban.", true)
	}
	days := inv.Options["days"].Int
	duration := time.Duration(days) * 24 * time.Hour
	reason := inv.Options["reason"].Str

	rec, err := b.mod.TempBan(ctx, inv.GuildID, inv.ChannelID, target.UserID, duration, reason)
	switch {
	case errors.Is(err, ledger.ErrAlreadySanctioned):
		return inv.Respond(fmt.Sprintf("<@%s> is already banned. Use /extend to lengthen it.", target.UserID), true)
	case errors.Is(err, moderation.ErrDurationOutOfRange):
		return inv.Respond("⚠️ That ban duration is out of range.", true)
	case errors.Is(err, moderation.ErrActionFailed):
		return inv.Respond(fmt.Sprintf("⚠️ Could not ban <@%s>. Check my permissions and role position.", target.UserID), true)
	case err != nil:
		return err
	}

	return inv.RespondEmbed(b.commandEmbed(
		"Member banned",
		fmt.Sprintf("🔨 <@%s> is banned until <t:%d:f>.", target.UserID, rec.ExpiresAt.Unix()),
		b.cfg.Notifications.EmbedColors.Warning,
		reasonFields(reason)))
}

func (b *Bot) handleUnban(ctx context.Context, inv *dispatcher.Invocation) error {
	target, ok := inv.Option("user")
	if !ok || target.UserID == "" {
		return inv.Respond("⚠️ Pick a user to unban.", true)
	}

	err := b.mod.Unban(ctx, inv.GuildID, target.UserID)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return inv.Respond(fmt.Sprintf("<@%s> has no temporary ban on record.", target.UserID), true)
	case errors.Is(err, moderation.ErrActionFailed):
		return inv.Respond(fmt.Sprintf("⚠️ The ban record was cleared but I could not lift the ban for <@%s>.", target.UserID), true)
	case err != nil:
		return err
	}
	return inv.Respond(fmt.Sprintf("🔓 <@%s> has been unbanned.", target.UserID), false)
}

func (b *Bot) handleExtend(ctx context.Context, inv *dispatcher.Invocation) error {
	target, ok := inv.Option("user")
	if !ok || target.UserID == "" {
		return inv.Respond("⚠️ Pick a sanctioned member.", true)
	}
	kind := ledger.Kind(inv.Options["kind"].Str)
	if kind != ledger.KindMute && kind != ledger.KindBan {
		return dispatcher.ErrInvalidArgument
	}
	duration, err := inv.Duration("minutes")
	if err != nil {
		return err
	}

	rec, err := b.mod.Extend(ctx, inv.GuildID, inv.ChannelID, target.UserID, kind, duration)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return inv.Respond(fmt.Sprintf("<@%s> has no active %s to extend.", target.UserID, kind), true)
	case errors.Is(err, moderation.ErrDurationOutOfRange):
		return inv.Respond("⚠️ That extension is out of range.", true)
	case err != nil:
		return err
	}
	return inv.Respond(fmt.Sprintf("⏳ The %s for <@%s> now ends <t:%d:R>.", kind, target.UserID, rec.ExpiresAt.Unix()), false)
}

func (b *Bot) handleAntiLinksEnable(ctx context.Context, inv *dispatcher.Invocation) error {
	changed, err := b.guilds.SetAntiLinks(inv.GuildID, true)
	if err != nil {
		return err
	}
	if !changed {
		return inv.Respond("The invite link filter is already enabled.", true)
	}
	return inv.Respond("✅ Invite link filter enabled.", false)
}

func (b *Bot) handleAntiLinksDisable(ctx context.Context, inv *dispatcher.Invocation) error {
	changed, err := b.guilds.SetAntiLinks(inv.GuildID, false)
	if err != nil {
		return err
	}
	if !changed {
		return inv.Respond("The invite link filter is already disabled.", true)
	}
	return inv.Respond("✅ Invite link filter disabled.", false)
}

func (b *Bot) handleSetLogs(ctx context.Context, inv *dispatcher.Invocation) error {
	channel, ok := inv.Option("channel")
	if !ok || channel.ChannelID == "" {
		return inv.Respond("⚠️ Pick a channel for the moderation logs.", true)
	}
	if err := b.guilds.SetLogChannel(inv.GuildID, channel.ChannelID); err != nil {
		return err
	}
	return inv.Respond(fmt.Sprintf("📋 Moderation logs will be sent to <#%s>.", channel.ChannelID), false)
}

func (b *Bot) handleModLogs(ctx context.Context, inv *dispatcher.Invocation) error {
	if b.history == nil {
		return inv.Respond("Moderation history is not available.", true)
	}
	period := inv.Options["period"].Str
	since := time.Now().Add(-24 * time.Hour)
	if period == "week" {
		since = time.Now().Add(-7 * 24 * time.Hour)
	} else {
		period = "day"
	}

	report, err := b.history.ReportAuditLogs(ctx, inv.GuildID, since)
	if err != nil {
		return err
	}
	entries, err := b.history.ListAuditLogs(ctx, inv.GuildID, since)
	if err != nil {
		return err
	}

	lines := make([]string, 0, 10)
	for i, entry := range entries {
		if i >= 10 {
			break
		}
		line := fmt.Sprintf("<t:%d:t> **%s**", entry.CreatedAt.Unix(), eventLabel(entry.Event))
		if entry.UserID != "" {
			line = line + " <@" + entry.UserID + ">"
		}
		lines = append(lines, line)
	}
	recent := "No events in this window."
	if len(lines) > 0 {
		recent = strings.Join(lines, "\n")
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Total", Value: fmt.Sprintf("%d", report.Total), Inline: true},
		{Name: "Warnings", Value: fmt.Sprintf("%d", report.ByLevel[audit.LevelWarn]), Inline: true},
		{Name: "Critical", Value: fmt.Sprintf("%d", report.ByLevel[audit.LevelCrit]), Inline: true},
		{Name: "Recent", Value: recent, Inline: false},
	}
	return inv.RespondEmbed(b.commandEmbed(
		fmt.Sprintf("Moderation activity (last %s)", period),
		"",
		b.cfg.Notifications.EmbedColors.Action,
		fields))
}

func (b *Bot) handlePing(ctx context.Context, inv *dispatcher.Invocation) error {
	return inv.Respond(fmt.Sprintf("🏓 Pong! Gateway latency: %dms", b.session.HeartbeatLatency().Milliseconds()), false)
}

func (b *Bot) handleHola(ctx context.Context, inv *dispatcher.Invocation) error {
	name := inv.UserName
	if name == "" {
		name = "amigo"
	}
	return inv.Respond("👋 ¡Hola, "+name+"!", false)
}

func (b *Bot) handleCoinflip(ctx context.Context, inv *dispatcher.Invocation) error {
	result := "Heads"
	if rand.Intn(2) == 1 {
		result = "Tails"
	}
	return inv.Respond("🪙 "+result+"!", false)
}

func (b *Bot) handleBotInfo(ctx context.Context, inv *dispatcher.Invocation) error {
	fields := []*discordgo.MessageEmbedField{
		{Name: "Servers", Value: fmt.Sprintf("%d", len(b.session.State.Guilds)), Inline: true},
		{Name: "Uptime", Value: time.Since(b.startedAt).Round(time.Second).String(), Inline: true},
		{Name: "Go version", Value: runtime.Version(), Inline: true},
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
			fields = append(fields, &discordgo.MessageEmbedField{
				Name: "Memory", Value: fmt.Sprintf("%.1f MB", float64(mem.RSS)/(1024*1024)), Inline: true,
			})
		}
		if cpu, err := proc.CPUPercent(); err == nil {
			fields = append(fields, &discordgo.MessageEmbedField{
				Name: "CPU", Value: fmt.Sprintf("%.1f%%", cpu), Inline: true,
			})
		}
	}
	if uptime, err := host.Uptime(); err == nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Host uptime", Value: (time.Duration(uptime) * time.Second).String(), Inline: true,
		})
	}

	return inv.RespondEmbed(b.commandEmbed("Bot info", "", b.cfg.Notifications.EmbedColors.Action, fields))
}

func (b *Bot) handleServerInfo(ctx context.Context, inv *dispatcher.Invocation) error {
	guild, err := b.session.State.Guild(inv.GuildID)
	if err != nil {
		guild, err = b.session.Guild(inv.GuildID)
		if err != nil {
			return err
		}
	}

	created, _ := discordgo.SnowflakeTimestamp(guild.ID)
	fields := []*discordgo.MessageEmbedField{
		{Name: "ID", Value: guild.ID, Inline: true},
		{Name: "Owner", Value: "<@" + guild.OwnerID + ">", Inline: true},
		{Name: "Members", Value: fmt.Sprintf("%d", guild.MemberCount), Inline: true},
		{Name: "Created", Value: fmt.Sprintf("<t:%d:D>", created.Unix()), Inline: true},
	}
	return inv.RespondEmbed(b.commandEmbed(guild.Name, "", b.cfg.Notifications.EmbedColors.Action, fields))
}

func (b *Bot) handleUserInfo(ctx context.Context, inv *dispatcher.Invocation) error {
	targetID := inv.Options["user"].UserID
	if targetID == "" {
		targetID = inv.UserID
	}

	member, err := b.session.GuildMember(inv.GuildID, targetID)
	if err != nil || member.User == nil {
		return inv.Respond("⚠️ Could not look up that member.", true)
	}

	created, _ := discordgo.SnowflakeTimestamp(member.User.ID)
	fields := []*discordgo.MessageEmbedField{
		{Name: "ID", Value: member.User.ID, Inline: true},
		{Name: "Account created", Value: fmt.Sprintf("<t:%d:D>", created.Unix()), Inline: true},
		{Name: "Joined", Value: fmt.Sprintf("<t:%d:D>", member.JoinedAt.Unix()), Inline: true},
	}
	if len(member.Roles) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Roles", Value: fmt.Sprintf("%d", len(member.Roles)), Inline: true,
		})
	}
	return inv.RespondEmbed(b.commandEmbed(member.User.Username, "", b.cfg.Notifications.EmbedColors.Action, fields))
}

func (b *Bot) handleServers(ctx context.Context, inv *dispatcher.Invocation) error {
	lines := make([]string, 0, len(b.session.State.Guilds))
	for _, guild := range b.session.State.Guilds {
		if guild == nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s (%d members)", guild.Name, guild.MemberCount))
	}
	if len(lines) == 0 {
		return inv.Respond("Not in any servers.", true)
	}
	return inv.Respond(truncate(strings.Join(lines, "\n"), 1900), true)
}

func (b *Bot) handleScanLink(ctx context.Context, inv *dispatcher.Invocation) error {
	if !b.vt.Enabled() {
		return inv.Respond("Link scanning is not configured.", true)
	}
	raw := inv.Options["url"].Str
	if extracted := utils.FirstURL(raw); extracted != "" {
		raw = extracted
	}
	normalized, host, err := utils.NormalizeURL(raw)
	if err != nil || host == "" {
		return inv.Respond("⚠️ That does not look like a valid link.", true)
	}

	if err := inv.Respond("🔍 Scanning "+normalized+" ...", true); err != nil {
		return err
	}

	channelID := inv.ChannelID
	go func() {
		scanCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		verdict, err := b.vt.ScanURL(scanCtx, normalized)
		if err != nil {
			b.logger.Warn("link scan failed", zap.String("url", normalized), zap.Error(err))
			_ = b.actions.SendMessage(channelID, "⚠️ The link scan failed, try again later.")
			return
		}

		color := b.cfg.Notifications.EmbedColors.Action
		summary := "✅ No engines flagged this link."
		if !verdict.Safe() {
			color = b.cfg.Notifications.EmbedColors.Error
			summary = fmt.Sprintf("🚨 Flagged by %d engines (%d suspicious).", verdict.Malicious, verdict.Suspicious)
		}
		fields := []*discordgo.MessageEmbedField{
			{Name: "Link", Value: normalized, Inline: false},
			{Name: "Malicious", Value: fmt.Sprintf("%d", verdict.Malicious), Inline: true},
			{Name: "Suspicious", Value: fmt.Sprintf("%d", verdict.Suspicious), Inline: true},
			{Name: "Harmless", Value: fmt.Sprintf("%d", verdict.Harmless), Inline: true},
		}
		_, _ = b.session.ChannelMessageSendEmbed(channelID, b.commandEmbed("Link scan result", summary, color, fields))
	}()
	return nil
}

func (b *Bot) handleHelp(ctx context.Context, inv *dispatcher.Invocation) error {
	moderationCmds := "`/mute` `/unmute` `/ban` `/unban` `/extend` `/modlogs`"
	configCmds := "`/anti_links_enable` `/anti_links_disable` `/setlogs`"
	utilityCmds := "`/ping` `/hola` `/coinflip` `/botinfo` `/serverinfo` `/userinfo` `/scanlink`"

	fields := []*discordgo.MessageEmbedField{
		{Name: "Moderation", Value: moderationCmds, Inline: false},
		{Name: "Configuration", Value: configCmds, Inline: false},
		{Name: "Utility", Value: utilityCmds, Inline: false},
	}
	return inv.RespondEmbed(b.commandEmbed("Commands", "", b.cfg.Notifications.EmbedColors.Action, fields))
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}

func reasonFields(reason string) []*discordgo.MessageEmbedField {
	if reason == "" {
		return nil
	}
	return []*discordgo.MessageEmbedField{{Name: "Reason", Value: reason, Inline: false}}
}
