package dispatcher

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func newTestDispatcher() *Dispatcher {
	return New(zap.NewNop(), "owner")
}

func TestDispatchUnknownCommand(t *testing.T) {
	d := newTestDispatcher()
	err := d.Dispatch(context.Background(), "nope", &Invocation{})
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestDispatchRequiresGuild(t *testing.T) {
	d := newTestDispatcher()
	ran := false
	d.Register(&Command{Name: "mute", RequireGuild: true, Run: func(ctx context.Context, inv *Invocation) error {
		ran = true
		return nil
	}})

	err := d.Dispatch(context.Background(), "mute", &Invocation{GuildID: ""})
	if !errors.Is(err, ErrNotInGuild) {
		t.Fatalf("expected ErrNotInGuild, got %v", err)
	}
	if ran {
		t.Fatalf("handler ran despite failed check")
	}
}

func TestDispatchMemberPermission(t *testing.T) {
	d := newTestDispatcher()
	ran := 0
	d.Register(&Command{
		Name:             "ban",
		RequireGuild:     true,
		MemberPermission: discordgo.PermissionBanMembers,
		Run: func(ctx context.Context, inv *Invocation) error {
			ran++
			return nil
		},
	})

	inv := &Invocation{GuildID: "g1", UserID: "u1"}
	if err := d.Dispatch(context.Background(), "ban", inv); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if ran != 0 {
		t.Fatalf("handler ran for unprivileged invoker")
	}

	inv.MemberPermissions = discordgo.PermissionBanMembers
	if err := d.Dispatch(context.Background(), "ban", inv); err != nil {
		t.Fatalf("privileged dispatch: %v", err)
	}
	if ran != 1 {
		t.Fatalf("handler did not run")
	}
}

func TestDispatchAdministratorImpliesAll(t *testing.T) {
	d := newTestDispatcher()
	d.Register(&Command{
		Name:             "ban",
		MemberPermission: discordgo.PermissionBanMembers,
		Run:              func(ctx context.Context, inv *Invocation) error { return nil },
	})

	inv := &Invocation{GuildID: "g1", MemberPermissions: discordgo.PermissionAdministrator}
	if err := d.Dispatch(context.Background(), "ban", inv); err != nil {
		t.Fatalf("administrator dispatch: %v", err)
	}
}

func TestDispatchBotPermission(t *testing.T) {
	d := newTestDispatcher()
	d.Register(&Command{
		Name:          "mute",
		BotPermission: discordgo.PermissionModerateMembers,
		Run:           func(ctx context.Context, inv *Invocation) error { return nil },
	})

	inv := &Invocation{GuildID: "g1", MemberPermissions: discordgo.PermissionAdministrator}
	if err := d.Dispatch(context.Background(), "mute", inv); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied for missing bot permission, got %v", err)
	}
}

func TestDispatchOwnerOnly(t *testing.T) {
	d := newTestDispatcher()
	d.Register(&Command{
		Name:      "servers",
		OwnerOnly: true,
		Run:       func(ctx context.Context, inv *Invocation) error { return nil },
	})

	if err := d.Dispatch(context.Background(), "servers", &Invocation{UserID: "someone"}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if err := d.Dispatch(context.Background(), "servers", &Invocation{UserID: "owner"}); err != nil {
		t.Fatalf("owner dispatch: %v", err)
	}
}

func TestDispatchValidatesDuration(t *testing.T) {
	d := newTestDispatcher()
	ran := false
	d.Register(&Command{
		Name:           "mute",
		DurationOption: "minutes",
		Run: func(ctx context.Context, inv *Invocation) error {
			ran = true
			return nil
		},
	})

	inv := &Invocation{GuildID: "g1", Options: map[string]Option{"minutes": {Int: 0}}}
	if err := d.Dispatch(context.Background(), "mute", inv); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if ran {
		t.Fatalf("handler ran with invalid duration")
	}

	inv.Options["minutes"] = Option{Int: 10}
	if err := d.Dispatch(context.Background(), "mute", inv); err != nil {
		t.Fatalf("valid dispatch: %v", err)
	}
}
