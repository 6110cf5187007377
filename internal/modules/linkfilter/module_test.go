package linkfilter

import (
	"context"
	"errors"
	"testing"
	"time"

	"modguard/internal/ledger"
	"modguard/internal/moderation"
	"modguard/internal/modules/audit"
	"modguard/internal/persist"
	"modguard/internal/scheduler"
	"modguard/internal/store"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type spyActions struct {
	deleted    []string
	messages   []string
	timeouts   []string
	failDelete error
}

func (a *spyActions) TimeoutMember(guildID, userID string, until time.Time) error {
	a.timeouts = append(a.timeouts, guildID+"/"+userID)
	return nil
}
func (a *spyActions) RemoveTimeout(guildID, userID string) error     { return nil }
func (a *spyActions) BanMember(guildID, userID, reason string) error { return nil }
func (a *spyActions) UnbanMember(guildID, userID string) error       { return nil }

func (a *spyActions) DeleteMessage(channelID, messageID string) error {
	if a.failDelete != nil {
		return a.failDelete
	}
	a.deleted = append(a.deleted, messageID)
	return nil
}

func (a *spyActions) SendMessage(channelID, content string) error {
	a.messages = append(a.messages, content)
	return nil
}

func newTestModule(t *testing.T, actions *spyActions) (*Module, *store.Store, *ledger.Ledger) {
	t.Helper()
	cfgStore, err := store.New(persist.NewMemory())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	led, err := ledger.New(persist.NewMemory(), persist.NewMemory())
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	auditLogger := audit.NewLogger(nil, zap.NewNop())
	mod := moderation.New(actions, led, scheduler.New(), auditLogger, zap.NewNop(), moderation.Config{})
	return New(cfgStore, mod, actions, auditLogger, zap.NewNop(), 15*time.Minute), cfgStore, led
}

func enableFilter(t *testing.T, cfgStore *store.Store, guildID string) {
	t.Helper()
	if _, err := cfgStore.SetAntiLinks(guildID, true); err != nil {
		t.Fatalf("enable filter: %v", err)
	}
}

func inviteMessage() Message {
	return Message{
		GuildID:   "g1",
		ChannelID: "c1",
		MessageID: "m1",
		AuthorID:  "u1",
		Content:   "join us https://discord.gg/abc123",
	}
}

func TestInviteDeletedAndAuthorMuted(t *testing.T) {
	actions := &spyActions{}
	module, cfgStore, led := newTestModule(t, actions)
	enableFilter(t, cfgStore, "g1")

	if !module.HandleMessage(context.Background(), inviteMessage()) {
		t.Fatalf("expected the filter to act")
	}
	if len(actions.deleted) != 1 || actions.deleted[0] != "m1" {
		t.Fatalf("message not deleted: %v", actions.deleted)
	}
	if len(actions.timeouts) != 1 {
		t.Fatalf("author not muted: %v", actions.timeouts)
	}
	rec, active := led.FindActive("g1", "u1", ledger.KindMute)
	if !active {
		t.Fatalf("no active mute recorded")
	}
	if got := rec.ExpiresAt.Sub(rec.IssuedAt); got != 15*time.Minute {
		t.Fatalf("expected a 15 minute mute, got %v", got)
	}
}

func TestFilterDisabledLeavesMessage(t *testing.T) {
	actions := &spyActions{}
	module, _, _ := newTestModule(t, actions)

	if module.HandleMessage(context.Background(), inviteMessage()) {
		t.Fatalf("filter acted while disabled")
	}
	if len(actions.deleted) != 0 {
		t.Fatalf("message deleted while filter disabled")
	}
}

func TestAdministratorExempt(t *testing.T) {
	actions := &spyActions{}
	module, cfgStore, _ := newTestModule(t, actions)
	enableFilter(t, cfgStore, "g1")

	msg := inviteMessage()
	msg.MemberPermissions = discordgo.PermissionAdministrator
	if module.HandleMessage(context.Background(), msg) {
		t.Fatalf("filter acted on an administrator")
	}
}

func TestBotAuthorExempt(t *testing.T) {
	actions := &spyActions{}
	module, cfgStore, _ := newTestModule(t, actions)
	enableFilter(t, cfgStore, "g1")

	msg := inviteMessage()
	msg.AuthorIsBot = true
	if module.HandleMessage(context.Background(), msg) {
		t.Fatalf("filter acted on a bot message")
	}
}

func TestPlainMessageUntouched(t *testing.T) {
	actions := &spyActions{}
	module, cfgStore, _ := newTestModule(t, actions)
	enableFilter(t, cfgStore, "g1")

	msg := inviteMessage()
	msg.Content = "no links here, just chatting about discord servers"
	if module.HandleMessage(context.Background(), msg) {
		t.Fatalf("filter acted on a plain message")
	}
}

func TestDeleteFailureWarnsWithoutMuting(t *testing.T) {
	actions := &spyActions{failDelete: errors.New("missing permission")}
	module, cfgStore, led := newTestModule(t, actions)
	enableFilter(t, cfgStore, "g1")

	if module.HandleMessage(context.Background(), inviteMessage()) {
		t.Fatalf("expected degraded handling to report no action")
	}
	if len(actions.messages) != 1 {
		t.Fatalf("expected a degraded-mode warning, got %v", actions.messages)
	}
	if _, active := led.FindActive("g1", "u1", ledger.KindMute); active {
		t.Fatalf("author muted despite failed deletion")
	}
}
