package services

import (
	"context"
	"strings"
	"testing"

	"github.com/tevasul/tevasul-backend/internal/domain"
	"github.com/tevasul/tevasul-backend/internal/repo"
)

func TestLinkService_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("no username", func(t *testing.T) {
		db := newTestDB(t)
		bot := &fakeBot{}
		svc := NewLinkService(db, bot)
		if err := svc.Start(ctx, textMessage(42, "", "/start")); err != nil {
			t.Fatalf("Start: %v", err)
		}
		if len(bot.texts) != 2 || bot.texts[0].Text != textNoUsername || bot.texts[1].Text != textServiceMenu {
			t.Fatalf("texts = %+v", bot.texts)
		}
	})

	t.Run("not registered", func(t *testing.T) {
		db := newTestDB(t)
		bot := &fakeBot{}
		svc := NewLinkService(db, bot)
		if err := svc.Start(ctx, textMessage(42, "stranger", "/start")); err != nil {
			t.Fatalf("Start: %v", err)
		}
		if !strings.Contains(bot.texts[0].Text, "@stranger") || !strings.Contains(bot.texts[0].Text, "غير مسجل") {
			t.Fatalf("first text = %q", bot.texts[0].Text)
		}
		if bot.lastText(t).Markup == nil {
			t.Fatalf("service menu sent without keyboard")
		}
	})

	t.Run("inactive user is not linked", func(t *testing.T) {
		db := newTestDB(t)
		db.Create(&domain.AllowedUser{ID: "u-1", TelegramUsername: "sleeper", IsActive: false})
		bot := &fakeBot{}
		svc := NewLinkService(db, bot)
		if err := svc.Start(ctx, textMessage(42, "sleeper", "/start")); err != nil {
			t.Fatalf("Start: %v", err)
		}
		u, _ := repo.FindAllowedUser(ctx, db, "sleeper")
		if u.TelegramChatID != "" {
			t.Fatalf("inactive user linked to %q", u.TelegramChatID)
		}
	})

	t.Run("links active user", func(t *testing.T) {
		db := newTestDB(t)
		db.Create(&domain.AllowedUser{ID: "u-2", TelegramUsername: "staffer", FullName: "Staff <One>", IsActive: true})
		bot := &fakeBot{}
		svc := NewLinkService(db, bot)
		if err := svc.Start(ctx, textMessage(42, "staffer", "/start")); err != nil {
			t.Fatalf("Start: %v", err)
		}
		u, err := repo.FindAllowedUser(ctx, db, "staffer")
		if err != nil || u.TelegramChatID != "42" {
			t.Fatalf("allowed user = %+v, %v", u, err)
		}
		welcome := bot.texts[0].Text
		if !strings.Contains(welcome, "Staff &lt;One&gt;") || !strings.Contains(welcome, "@staffer") {
			t.Fatalf("welcome = %q", welcome)
		}
		if bot.textsContaining(textServiceMenu) != 1 {
			t.Fatalf("service menu not sent")
		}
	})
}

func TestLinkService_Reply(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	db.Create(&domain.AllowedUser{ID: "u-3", TelegramUsername: "linked", TelegramChatID: "7", IsActive: true})
	bot := &fakeBot{}
	svc := NewLinkService(db, bot)

	if err := svc.Reply(ctx, textMessage(7, "linked", "hello")); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if got := bot.lastText(t).Text; got != textNotificationsOnly {
		t.Fatalf("linked reply = %q", got)
	}

	if err := svc.Reply(ctx, textMessage(8, "other", "hello")); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if got := bot.lastText(t); got.Text != textServiceMenu || got.ChatID != 8 {
		t.Fatalf("unlinked reply = %+v", got)
	}
}
