package bot

import (
	"sort"

	"github.com/bwmarrin/discordgo"
)

// registerCommands syncs the slash commands with the dispatcher's table:
// edits the ones that exist, creates the missing ones, and removes global
// and per-guild leftovers from earlier versions.
func (b *Bot) registerCommands() error {
	defs := b.disp.Commands()
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })

	commands := make([]*discordgo.ApplicationCommand, 0, len(defs))
	for _, def := range defs {
		commands = append(commands, &discordgo.ApplicationCommand{
			Name:        def.Name,
			Description: def.Description,
			Options:     def.Options,
		})
	}

	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, "", cmd.ID)
	}

	for _, guild := range b.session.State.Guilds {
		if guild == nil {
			continue
		}
		guildCmds, err := b.session.ApplicationCommands(appID, guild.ID)
		if err != nil {
			continue
		}
		for _, cmd := range guildCmds {
			if _, ok := desired[cmd.Name]; ok {
				continue
			}
			_ = b.session.ApplicationCommandDelete(appID, guild.ID, cmd.ID)
		}
	}
	return nil
}
