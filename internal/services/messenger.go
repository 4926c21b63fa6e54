package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"github.com/tevasul/tevasul-backend/internal/repo"
)

// Messenger is the part of telegram.Client the services send through.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, markup any) (int, error)
	SendDocument(ctx context.Context, chatID int64, name string, data []byte, caption string) (int, error)
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
	EditText(ctx context.Context, chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error
}

// CommandMessenger is a Messenger that can also publish a command menu.
type CommandMessenger interface {
	Messenger
	SetCommands(ctx context.Context, cmds []tgbotapi.BotCommand) error
}

// inlineMarkup turns a possibly nil keyboard into a value SendText accepts,
// so a nil pointer is never wrapped in a non-nil interface.
func inlineMarkup(kb *tgbotapi.InlineKeyboardMarkup) any {
	if kb == nil {
		return nil
	}
	return kb
}

// adminChat resolves the chat that receives notifications for purpose.
// An enabled telegram_config row with a chat id wins. A missing row, or a
// row without a chat id, falls back to fallback. A disabled row disables
// notifications regardless of the fallback.
func adminChat(ctx context.Context, db *gorm.DB, purpose, fallback string) (int64, error) {
	chat := fallback
	cfg, err := repo.GetTelegramConfig(ctx, db, purpose)
	switch {
	case err == nil && !cfg.IsEnabled:
		return 0, ErrTelegramDisabled
	case err == nil && cfg.AdminChatID != "":
		chat = cfg.AdminChatID
	case err != nil && !errors.Is(err, repo.ErrNotFound):
		return 0, err
	}
	if chat == "" {
		return 0, errNoAdminChat
	}
	id, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return 0, errNoAdminChat
	}
	return id, nil
}

// errNoAdminChat is the ErrTelegramDisabled of an enabled bot that has no
// usable admin chat. Callers with other recipients may carry on.
var errNoAdminChat = fmt.Errorf("%w: no admin chat", ErrTelegramDisabled)
