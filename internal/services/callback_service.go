package services

import (
	"context"
	"errors"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tevasul/tevasul-backend/internal/domain"
	"github.com/tevasul/tevasul-backend/internal/repo"
	"github.com/tevasul/tevasul-backend/internal/telegram"
	"github.com/tevasul/tevasul-backend/internal/wizard"
)

// Callback answers.
const (
	cbResolved        = "✅ تم تحديث حالة الطلب إلى \"تم التعامل معه\" بنجاح"
	cbResolveFailed   = "❌ فشل في تحديث حالة الطلب"
	cbViewRequest     = "📋 عرض تفاصيل الطلب..."
	cbContactUser     = "📞 التواصل مع العميل..."
	cbAlreadyResolved = "✅ تم التعامل مع هذا الطلب"
	cbRequestMissing  = "❌ الطلب غير موجود"
	cbUnknownAction   = "❌ إجراء غير معروف"

	resolvedFooter = "\n\n✅ <b>تم التعامل مع هذا الطلب</b>"
)

// RequestResolver is the part of StatusService the callbacks use.
type RequestResolver interface {
	UpdateStatus(ctx context.Context, id, status string) (bool, error)
	Find(ctx context.Context, id string) (*repo.RequestSummary, error)
}

// WizardButtons receives the wizard's inline buttons.
type WizardButtons interface {
	Start(ctx context.Context, chatID int64) error
	HandleButton(ctx context.Context, chatID int64, action, value string) (bool, error)
}

// CallbackService handles inline-button presses on the main bot.
type CallbackService struct {
	Bot      Messenger
	Requests RequestResolver
	Wizard   WizardButtons

	log zerolog.Logger
}

// NewCallbackService wires a CallbackService.
func NewCallbackService(bot Messenger, requests RequestResolver, wiz WizardButtons) *CallbackService {
	return &CallbackService{
		Bot:      bot,
		Requests: requests,
		Wizard:   wiz,
		log:      log.With().Str("component", "callbacks").Logger(),
	}
}

// Handle answers q. Admin actions are answered with an alert; wizard buttons
// are acknowledged silently and forwarded.
func (s *CallbackService) Handle(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q == nil {
		return nil
	}
	action, id, err := telegram.ParseCallback(q.Data)
	if err != nil {
		return s.answer(ctx, q, cbUnknownAction)
	}

	switch action {
	case telegram.ActionMarkResolved:
		return s.markResolved(ctx, q, id)
	case telegram.ActionViewRequest:
		return s.viewRequest(ctx, q, id)
	case telegram.ActionContactUser:
		return s.answer(ctx, q, cbContactUser)
	case telegram.ActionAlreadyResolved:
		return s.answer(ctx, q, cbAlreadyResolved)
	case wizard.ActionWizard, wizard.ActionBorder, wizard.ActionDate:
		return s.wizardButton(ctx, q, action, id)
	}
	return s.answer(ctx, q, cbUnknownAction)
}

func (s *CallbackService) answer(ctx context.Context, q *tgbotapi.CallbackQuery, text string) error {
	if err := s.Bot.AnswerCallback(ctx, q.ID, text, true); err != nil {
		s.log.Warn().Err(err).Msg("answerCallbackQuery failed")
		return err
	}
	return nil
}

func (s *CallbackService) markResolved(ctx context.Context, q *tgbotapi.CallbackQuery, id string) error {
	ok, err := s.Requests.UpdateStatus(ctx, id, domain.StatusResolved)
	if err != nil || !ok {
		_ = s.answer(ctx, q, cbResolveFailed)
		if err != nil {
			return fmt.Errorf("mark resolved: %w", err)
		}
		return nil
	}
	if err := s.answer(ctx, q, cbResolved); err != nil {
		return err
	}
	if q.Message == nil || q.Message.Chat == nil {
		return nil
	}
	text := html.EscapeString(q.Message.Text) + resolvedFooter
	if err := s.Bot.EditText(ctx, q.Message.Chat.ID, q.Message.MessageID, text, telegram.ResolvedKeyboard(id)); err != nil {
		s.log.Warn().Err(err).Msg("could not mark notification resolved")
	}
	return nil
}

func (s *CallbackService) viewRequest(ctx context.Context, q *tgbotapi.CallbackQuery, id string) error {
	sum, err := s.Requests.Find(ctx, id)
	switch {
	case errors.Is(err, ErrRequestNotFound) || errors.Is(err, ErrMissingID):
		return s.answer(ctx, q, cbRequestMissing)
	case err != nil:
		_ = s.answer(ctx, q, cbViewRequest)
		return fmt.Errorf("view request: %w", err)
	}
	text := fmt.Sprintf("%s\n%s · %s · %s", cbViewRequest, sum.Kind, sum.Status, sum.CreatedAt.Format("2006-01-02"))
	return s.answer(ctx, q, text)
}

func (s *CallbackService) wizardButton(ctx context.Context, q *tgbotapi.CallbackQuery, action, value string) error {
	if err := s.Bot.AnswerCallback(ctx, q.ID, "", false); err != nil {
		s.log.Debug().Err(err).Msg("answerCallbackQuery failed")
	}
	if s.Wizard == nil || q.Message == nil || q.Message.Chat == nil {
		return nil
	}
	chatID := q.Message.Chat.ID
	if action == wizard.ActionWizard && value == wizard.ValueVoluntaryReturn {
		return s.Wizard.Start(ctx, chatID)
	}
	_, err := s.Wizard.HandleButton(ctx, chatID, action, value)
	return err
}
