package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tevasul/tevasul-backend/internal/repo"
)

// ---------- test helpers ----------

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type sentText struct {
	ChatID int64
	Text   string
	Markup any
}

type sentDoc struct {
	ChatID  int64
	Name    string
	Size    int
	Caption string
}

type answered struct {
	ID    string
	Text  string
	Alert bool
}

type edited struct {
	ChatID int64
	MsgID  int
	Text   string
	Markup *tgbotapi.InlineKeyboardMarkup
}

// fakeBot records every outbound call. Errors can be injected per method.
type fakeBot struct {
	mu sync.Mutex

	texts    []sentText
	docs     []sentDoc
	answers  []answered
	edits    []edited
	commands [][]tgbotapi.BotCommand

	// sendDocErr, when set, is consulted for every SendDocument call.
	sendDocErr func(name string) error
	sendErr    error
	// failChats makes SendText fail for the listed chats only.
	failChats map[int64]bool
	nextID    int
}

func (f *fakeBot) SendText(_ context.Context, chatID int64, text string, markup any) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	if f.failChats[chatID] {
		return 0, errors.New("chat not found")
	}
	f.nextID++
	f.texts = append(f.texts, sentText{ChatID: chatID, Text: text, Markup: markup})
	return f.nextID, nil
}

func (f *fakeBot) SendDocument(_ context.Context, chatID int64, name string, data []byte, caption string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendDocErr != nil {
		if err := f.sendDocErr(name); err != nil {
			return 0, err
		}
	}
	f.nextID++
	f.docs = append(f.docs, sentDoc{ChatID: chatID, Name: name, Size: len(data), Caption: caption})
	return f.nextID, nil
}

func (f *fakeBot) AnswerCallback(_ context.Context, id, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, answered{ID: id, Text: text, Alert: alert})
	return nil
}

func (f *fakeBot) EditText(_ context.Context, chatID int64, msgID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, edited{ChatID: chatID, MsgID: msgID, Text: text, Markup: markup})
	return nil
}

func (f *fakeBot) SetCommands(_ context.Context, cmds []tgbotapi.BotCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmds)
	return nil
}

func (f *fakeBot) lastText(t *testing.T) sentText {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		t.Fatalf("no message sent")
	}
	return f.texts[len(f.texts)-1]
}

func (f *fakeBot) textsContaining(sub string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.texts {
		if strings.Contains(m.Text, sub) {
			n++
		}
	}
	return n
}

// fakeNotifier captures notifications.
type fakeNotifier struct {
	mu  sync.Mutex
	got []Notification
	err error
}

func (f *fakeNotifier) Notify(_ context.Context, n Notification) (NotifyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, n)
	return NotifyResult{MessageID: len(f.got)}, f.err
}

func textMessage(chatID int64, username, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		MessageID: 1,
		Chat:      &tgbotapi.Chat{ID: chatID},
		From:      &tgbotapi.User{ID: chatID, UserName: username, FirstName: "Ali"},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		end := strings.IndexByte(text, ' ')
		if end < 0 {
			end = len(text)
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return msg
}
