package bot

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// sessionActions adapts the discordgo session to the moderation core's
// outbound surface.
type sessionActions struct {
	session *discordgo.Session
}

func (a *sessionActions) TimeoutMember(guildID, userID string, until time.Time) error {
	return a.session.GuildMemberTimeout(guildID, userID, &until)
}

func (a *sessionActions) RemoveTimeout(guildID, userID string) error {
	return a.session.GuildMemberTimeout(guildID, userID, nil)
}

func (a *sessionActions) BanMember(guildID, userID, reason string) error {
	return a.session.GuildBanCreateWithReason(guildID, userID, reason, 0)
}

func (a *sessionActions) UnbanMember(guildID, userID string) error {
	return a.session.GuildBanDelete(guildID, userID)
}

func (a *sessionActions) DeleteMessage(channelID, messageID string) error {
	return a.session.ChannelMessageDelete(channelID, messageID)
}

func (a *sessionActions) SendMessage(channelID, content string) error {
	_, err := a.session.ChannelMessageSend(channelID, content)
	return err
}
