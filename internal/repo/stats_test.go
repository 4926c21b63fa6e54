package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tevasul/tevasul-backend/internal/domain"
)

func TestChatMessagesStats_CountError_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	if _, _, err := ChatMessagesStats(context.Background(), db, "s1"); err == nil {
		t.Fatalf("expected error due to missing chat_messages table")
	}
}

func TestChatMessagesStats_ZeroRows(t *testing.T) {
	db := newTestDB(t, &domain.ChatSession{}, &domain.ChatMessage{})
	count, maxAt, err := ChatMessagesStats(context.Background(), db, "s1")
	if err != nil {
		t.Fatalf("ChatMessagesStats error: %v", err)
	}
	if count != 0 || maxAt != nil {
		t.Fatalf("expected (0, nil), got (%d, %v)", count, maxAt)
	}
}

func TestChatMessagesStats_CountAndLatest(t *testing.T) {
	db := newTestDB(t, &domain.ChatSession{}, &domain.ChatMessage{})
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	db.Create(&domain.ChatSession{ID: "s1", VisitorID: "v", Language: "ar", Status: domain.SupportOpen, Title: "t"})
	db.Create(&domain.ChatSession{ID: "s2", VisitorID: "v", Language: "ar", Status: domain.SupportOpen, Title: "t"})
	for i, at := range []time.Time{base, base.Add(2 * time.Hour), base.Add(time.Hour)} {
		m := &domain.ChatMessage{ID: string(rune('a' + i)), SessionID: "s1", Sender: domain.SenderUser, Content: "x", CreatedAt: at, UpdatedAt: at}
		if err := db.Create(m).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	db.Create(&domain.ChatMessage{ID: "z", SessionID: "s2", Sender: domain.SenderUser, Content: "x", CreatedAt: base.Add(9 * time.Hour), UpdatedAt: base.Add(9 * time.Hour)})

	count, maxAt, err := ChatMessagesStats(context.Background(), db, "s1")
	if err != nil {
		t.Fatalf("ChatMessagesStats: %v", err)
	}
	if count != 3 || maxAt == nil || !maxAt.Equal(base.Add(2*time.Hour)) {
		t.Fatalf("got (%d, %v); want (3, %v)", count, maxAt, base.Add(2*time.Hour))
	}
}
