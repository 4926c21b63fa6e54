package services

import (
	"context"
	"errors"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tevasul/tevasul-backend/internal/domain"
	"github.com/tevasul/tevasul-backend/internal/observability"
	"github.com/tevasul/tevasul-backend/internal/repo"
)

// CallbackHandler handles inline button presses on the main bot.
type CallbackHandler interface {
	Handle(ctx context.Context, q *tgbotapi.CallbackQuery) error
}

// ChatLinker handles /start and text that no wizard session claimed.
type ChatLinker interface {
	Start(ctx context.Context, msg *tgbotapi.Message) error
	Reply(ctx context.Context, msg *tgbotapi.Message) error
}

// WizardText feeds free text to an active wizard session.
type WizardText interface {
	HandleText(ctx context.Context, chatID int64, text string) (bool, error)
}

// AccountingHandler is the accounting bot.
type AccountingHandler interface {
	Handle(ctx context.Context, msg *tgbotapi.Message) error
	HandleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error
}

// UpdateDispatcher routes one Telegram update to the service that owns it.
// Webhook and long-poll deliveries both come through Dispatch.
type UpdateDispatcher struct {
	DB       *gorm.DB
	DedupTTL time.Duration

	Callbacks  CallbackHandler
	Links      ChatLinker
	Wizard     WizardText
	Accounting AccountingHandler

	log zerolog.Logger
}

// NewUpdateDispatcher wires a dispatcher. Any handler may be nil; updates
// for a missing handler are ignored.
func NewUpdateDispatcher(db *gorm.DB, ttl time.Duration, cb CallbackHandler, links ChatLinker, wiz WizardText, acct AccountingHandler) *UpdateDispatcher {
	return &UpdateDispatcher{
		DB:         db,
		DedupTTL:   ttl,
		Callbacks:  cb,
		Links:      links,
		Wizard:     wiz,
		Accounting: acct,
		log:        log.With().Str("component", "dispatcher").Logger(),
	}
}

func updateKind(u tgbotapi.Update) string {
	switch {
	case u.CallbackQuery != nil:
		return "callback"
	case u.Message != nil && u.Message.IsCommand():
		return "command"
	case u.Message != nil:
		return "message"
	default:
		return "other"
	}
}

// Dispatch claims u.UpdateID for bot and handles the update. A repeated
// update returns ErrDuplicateUpdate without side effects. The claim is
// taken before handling, so an update that fails is not processed again.
func (d *UpdateDispatcher) Dispatch(ctx context.Context, bot string, u tgbotapi.Update) error {
	kind := updateKind(u)
	ctx, span := otel.Tracer("services/UpdateDispatcher").Start(ctx, "Dispatch",
		trace.WithAttributes(
			attribute.String("telegram.bot", bot),
			attribute.String("telegram.update_kind", kind),
			attribute.Int("telegram.update_id", u.UpdateID),
		),
	)
	defer span.End()

	ttl := d.DedupTTL
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	if err := repo.ClaimUpdate(ctx, d.DB, bot, int64(u.UpdateID), ttl); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			observability.TelegramUpdates.WithLabelValues(bot, kind, observability.ResultDuplicate).Inc()
			return ErrDuplicateUpdate
		}
		span.RecordError(err)
		observability.TelegramUpdates.WithLabelValues(bot, kind, observability.ResultError).Inc()
		return err
	}

	var (
		handled bool
		err     error
	)
	switch bot {
	case domain.BotAccounting:
		handled, err = d.accounting(ctx, u)
	default:
		handled, err = d.main(ctx, u)
	}

	result := observability.ResultOf(err)
	if err == nil && !handled {
		result = observability.ResultIgnored
	}
	observability.TelegramUpdates.WithLabelValues(bot, kind, result).Inc()
	if err != nil {
		span.RecordError(err)
		d.log.Error().Err(err).Str("bot", bot).Int("update_id", u.UpdateID).Str("kind", kind).Msg("update failed")
	}
	return err
}

func (d *UpdateDispatcher) main(ctx context.Context, u tgbotapi.Update) (bool, error) {
	if q := u.CallbackQuery; q != nil {
		if d.Callbacks == nil {
			return false, nil
		}
		return true, d.Callbacks.Handle(ctx, q)
	}
	msg := u.Message
	if msg == nil || msg.Chat == nil {
		return false, nil
	}
	if msg.IsCommand() && msg.Command() == "start" {
		if d.Links == nil {
			return false, nil
		}
		return true, d.Links.Start(ctx, msg)
	}
	if strings.TrimSpace(msg.Text) == "" {
		return false, nil
	}
	if d.Wizard != nil {
		ok, err := d.Wizard.HandleText(ctx, msg.Chat.ID, msg.Text)
		if err != nil || ok {
			return ok || err != nil, err
		}
	}
	if d.Links == nil {
		return false, nil
	}
	return true, d.Links.Reply(ctx, msg)
}

func (d *UpdateDispatcher) accounting(ctx context.Context, u tgbotapi.Update) (bool, error) {
	if d.Accounting == nil {
		return false, nil
	}
	if q := u.CallbackQuery; q != nil {
		return true, d.Accounting.HandleCallback(ctx, q)
	}
	if u.Message == nil || u.Message.Chat == nil {
		return false, nil
	}
	return true, d.Accounting.Handle(ctx, u.Message)
}
