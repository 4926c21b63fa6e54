package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tevasul/tevasul-backend/internal/repo"
	"github.com/tevasul/tevasul-backend/internal/telegram"
	"github.com/tevasul/tevasul-backend/internal/wizard"
)

const (
	textNoUsername = "❌ عذراً، لا يوجد لديك username في التلغرام.\n\nلاستخدام هذا البوت، يجب أن يكون لديك username:\n\n1. افتح إعدادات التلغرام\n2. اذهب إلى \"الملف الشخصي\"\n3. أضف username\n4. ارجع وأرسل /start مرة أخرى"

	textLinked = "✅ مرحباً %s! 🎉\n\n<b>تم ربط حسابك بنجاح</b>\n\nاسم الحساب: %s\nUsername: @%s\n\nستبدأ الآن باستلام الإشعارات من موقع Tevasul مباشرة هنا.\n\n━━━━━━━━━━━━━━━\n💡 <i>إذا كنت بحاجة للمساعدة، تواصل معنا عبر الموقع:</i>\nhttps://tevasul.group"

	textNotRegistered = "❌ عذراً @%s\n\nحسابك غير مسجل في نظام الإشعارات.\n\n📋 <b>للحصول على الوصول:</b>\n1. تواصل مع فريق الدعم عبر الموقع\n2. سيقومون بإضافة username الخاص بك\n3. بعدها أرسل /start مرة أخرى\n\n🌐 <b>موقعنا:</b>\nhttps://tevasul.group"

	textNotificationsOnly = "شكراً على رسالتك. هذا البوت مخصص لإرسال الإشعارات فقط.\n\nإذا كنت بحاجة للمساعدة، يرجى زيارة الموقع: https://tevasul.group"

	textServiceMenu = "📋 <b>الخدمات المتاحة:</b>\nاختر الخدمة المطلوبة:"
)

// LinkService links Telegram chats to allowed users and answers chats that
// are not inside the wizard.
type LinkService struct {
	DB  *gorm.DB
	Bot Messenger

	log zerolog.Logger
}

// NewLinkService wires a LinkService.
func NewLinkService(db *gorm.DB, bot Messenger) *LinkService {
	return &LinkService{DB: db, Bot: bot, log: log.With().Str("component", "link").Logger()}
}

// serviceMenu is the inline keyboard offering the bot's flows.
func serviceMenu() *tgbotapi.InlineKeyboardMarkup {
	return telegram.InlineRows(1, telegram.Button{
		Text:   "🔄 طلب عودة طوعية",
		Action: wizard.ActionWizard,
		Value:  wizard.ValueVoluntaryReturn,
	})
}

// Start handles /start: it links the chat when the sender's username is
// allowed, then always sends the service menu.
func (s *LinkService) Start(ctx context.Context, msg *tgbotapi.Message) error {
	if msg == nil || msg.Chat == nil {
		return nil
	}
	chatID := msg.Chat.ID
	if err := s.link(ctx, msg); err != nil {
		return err
	}
	if _, err := s.Bot.SendText(ctx, chatID, textServiceMenu, inlineMarkup(serviceMenu())); err != nil {
		return fmt.Errorf("send service menu: %w", err)
	}
	return nil
}

func (s *LinkService) link(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	var username, firstName string
	if msg.From != nil {
		username, firstName = msg.From.UserName, msg.From.FirstName
	}
	if username == "" {
		_, err := s.Bot.SendText(ctx, chatID, textNoUsername, nil)
		return err
	}

	user, err := repo.FindAllowedUser(ctx, s.DB, username)
	switch {
	case errors.Is(err, repo.ErrNotFound) || (err == nil && !user.IsActive):
		_, err := s.Bot.SendText(ctx, chatID, fmt.Sprintf(textNotRegistered, html.EscapeString(username)), nil)
		return err
	case err != nil:
		return fmt.Errorf("find allowed user: %w", err)
	}

	if err := repo.LinkAllowedUserChat(ctx, s.DB, user.ID, strconv.FormatInt(chatID, 10)); err != nil {
		return fmt.Errorf("link chat: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Msg("telegram chat linked")

	fullName := user.FullName
	if fullName == "" {
		fullName = "غير محدد"
	}
	text := fmt.Sprintf(textLinked, html.EscapeString(firstName), html.EscapeString(fullName), html.EscapeString(username))
	_, err = s.Bot.SendText(ctx, chatID, text, telegram.RemoveKeyboard())
	return err
}

// Reply answers a message that is neither a command nor wizard input.
// Linked staff chats get the notifications-only notice; anyone else is
// offered the service menu.
func (s *LinkService) Reply(ctx context.Context, msg *tgbotapi.Message) error {
	if msg == nil || msg.Chat == nil {
		return nil
	}
	chatID := msg.Chat.ID
	_, err := repo.FindAllowedUserByChat(ctx, s.DB, strconv.FormatInt(chatID, 10))
	switch {
	case err == nil:
		_, err = s.Bot.SendText(ctx, chatID, textNotificationsOnly, nil)
	case errors.Is(err, repo.ErrNotFound):
		_, err = s.Bot.SendText(ctx, chatID, textServiceMenu, inlineMarkup(serviceMenu()))
	}
	return err
}
