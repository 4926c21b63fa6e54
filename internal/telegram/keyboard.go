package telegram

import (
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MaxCallbackData is the Bot API limit on callback_data, in bytes.
const MaxCallbackData = 64

// Admin notification actions.
const (
	ActionViewRequest     = "view_request"
	ActionContactUser     = "contact_user"
	ActionMarkResolved    = "mark_resolved"
	ActionAlreadyResolved = "already_resolved"
)

var (
	ErrCallbackTooLong = errors.New("telegram: callback data exceeds 64 bytes")
	ErrBadCallback     = errors.New("telegram: malformed callback data")
)

// EncodeCallback joins action and id as "action:id".
func EncodeCallback(action, id string) (string, error) {
	if action == "" || strings.Contains(action, ":") {
		return "", ErrBadCallback
	}
	data := action
	if id != "" {
		data += ":" + id
	}
	if len(data) > MaxCallbackData {
		return "", ErrCallbackTooLong
	}
	return data, nil
}

// ParseCallback splits data on its first ':'. The id may itself contain
// colons.
func ParseCallback(data string) (action, id string, err error) {
	action, id, _ = strings.Cut(data, ":")
	if strings.TrimSpace(action) == "" {
		return "", "", ErrBadCallback
	}
	return action, id, nil
}

// Button is one inline button.
type Button struct {
	Text   string
	Action string
	Value  string
}

// InlineRows lays buttons out perRow to a row. Buttons whose callback data
// cannot be encoded are left out. It returns nil when no button is left.
func InlineRows(perRow int, buttons ...Button) *tgbotapi.InlineKeyboardMarkup {
	if perRow < 1 {
		perRow = 1
	}
	var (
		rows [][]tgbotapi.InlineKeyboardButton
		row  []tgbotapi.InlineKeyboardButton
	)
	for _, b := range buttons {
		data, err := EncodeCallback(b.Action, b.Value)
		if err != nil {
			continue
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Text, data))
		if len(row) == perRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func label(lang, ar, en string) string {
	if lang == "ar" {
		return ar
	}
	return en
}

// AdminKeyboard is attached to admin notifications about request id.
func AdminKeyboard(id, lang string) *tgbotapi.InlineKeyboardMarkup {
	view, _ := EncodeCallback(ActionViewRequest, id)
	contact, _ := EncodeCallback(ActionContactUser, id)
	resolve, err := EncodeCallback(ActionMarkResolved, id)
	if id == "" || err != nil {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label(lang, "عرض الطلب", "View Request"), view),
			tgbotapi.NewInlineKeyboardButtonData(label(lang, "التواصل مع العميل", "Contact User"), contact),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label(lang, "تم التعامل معه", "Mark Resolved"), resolve),
		),
	)
	return &kb
}

// ResolvedKeyboard replaces AdminKeyboard once the request is resolved.
func ResolvedKeyboard(id string) *tgbotapi.InlineKeyboardMarkup {
	return InlineRows(1, Button{Text: "✅ تم التعامل معه", Action: ActionAlreadyResolved, Value: id})
}

// RemoveKeyboard hides a reply keyboard.
func RemoveKeyboard() tgbotapi.ReplyKeyboardRemove { return tgbotapi.NewRemoveKeyboard(false) }

// ReplyKeyboard builds a resized reply keyboard from rows of labels.
func ReplyKeyboard(rows ...[]string) tgbotapi.ReplyKeyboardMarkup {
	kb := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, r := range rows {
		btns := make([]tgbotapi.KeyboardButton, 0, len(r))
		for _, l := range r {
			btns = append(btns, tgbotapi.NewKeyboardButton(l))
		}
		kb = append(kb, tgbotapi.NewKeyboardButtonRow(btns...))
	}
	m := tgbotapi.NewReplyKeyboard(kb...)
	m.ResizeKeyboard = true
	return m
}
