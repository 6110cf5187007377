package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

var (
	ErrUnknownCommand   = errors.New("unknown command")
	ErrNotInGuild       = errors.New("command only works inside a server")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidArgument  = errors.New("invalid argument")
)

// Option carries one resolved slash-command option. Only the field matching
// the option's declared type is populated.
type Option struct {
	Str       string
	Int       int64
	UserID    string
	ChannelID string
}

// Invocation is the transport-independent view of one command call. The bot
// package builds it from a discordgo interaction; tests build it by hand.
type Invocation struct {
	GuildID           string
	ChannelID         string
	UserID            string
	UserName          string
	MemberPermissions int64
	BotPermissions    int64
	Options           map[string]Option

	Respond      func(content string, ephemeral bool) error
	RespondEmbed func(embed *discordgo.MessageEmbed) error
}

func (inv *Invocation) Option(name string) (Option, bool) {
	opt, ok := inv.Options[name]
	return opt, ok
}

// Duration reads a minutes option and converts it, rejecting non-positive
// values before the handler runs.
func (inv *Invocation) Duration(name string) (time.Duration, error) {
	opt, ok := inv.Options[name]
	if !ok || opt.Int <= 0 {
		return 0, ErrInvalidArgument
	}
	return time.Duration(opt.Int) * time.Minute, nil
}

// Command describes one slash command and its gate. Checks run in a fixed
// order before the handler: guild requirement, owner restriction, invoker
// permission, bot permission, then duration validity.
type Command struct {
	Name        string
	Description string

	RequireGuild     bool
	OwnerOnly        bool
	MemberPermission int64
	BotPermission    int64
	// DurationOption names a minutes option validated before Run.
	DurationOption string

	Options []*discordgo.ApplicationCommandOption

	Run func(ctx context.Context, inv *Invocation) error
}

type Dispatcher struct {
	logger   *zap.Logger
	ownerID  string
	commands map[string]*Command
}

func New(logger *zap.Logger, ownerID string) *Dispatcher {
	return &Dispatcher{
		logger:   logger,
		ownerID:  ownerID,
		commands: make(map[string]*Command),
	}
}

func (d *Dispatcher) Register(cmd *Command) {
	d.commands[cmd.Name] = cmd
}

func (d *Dispatcher) Commands() []*Command {
	out := make([]*Command, 0, len(d.commands))
	for _, cmd := range d.commands {
		out = append(out, cmd)
	}
	return out
}

// Dispatch gates and runs one invocation. A failed check returns the
// taxonomy error without ever invoking the handler.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, inv *Invocation) error {
	cmd, ok := d.commands[name]
	if !ok {
		return ErrUnknownCommand
	}
	if cmd.RequireGuild && inv.GuildID == "" {
		return ErrNotInGuild
	}
	if cmd.OwnerOnly && inv.UserID != d.ownerID {
		return ErrPermissionDenied
	}
	if cmd.MemberPermission != 0 && !hasPermission(inv.MemberPermissions, cmd.MemberPermission) {
		return ErrPermissionDenied
	}
	if cmd.BotPermission != 0 && !hasPermission(inv.BotPermissions, cmd.BotPermission) {
		return ErrPermissionDenied
	}
	if cmd.DurationOption != "" {
		if _, err := inv.Duration(cmd.DurationOption); err != nil {
			return err
		}
	}

	d.logger.Debug("dispatching command",
		zap.String("command", name),
		zap.String("guild_id", inv.GuildID),
		zap.String("user_id", inv.UserID))
	return cmd.Run(ctx, inv)
}

// hasPermission treats the administrator bit as implying everything, the
// same way the platform resolves it.
func hasPermission(set, perm int64) bool {
	if set&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return set&perm == perm
}
