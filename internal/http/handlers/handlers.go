package handlers

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tevasul/tevasul-backend/internal/document"
	"github.com/tevasul/tevasul-backend/internal/domain"
	"github.com/tevasul/tevasul-backend/internal/services"
	"github.com/tevasul/tevasul-backend/internal/wizard"
)

// Dispatcher handles one decoded Telegram update for bot.
type Dispatcher interface {
	Dispatch(ctx context.Context, bot string, u tgbotapi.Update) error
}

// Notifier sends an admin notification.
type Notifier interface {
	Notify(ctx context.Context, n services.Notification) (services.NotifyResult, error)
}

// Broadcaster sends a message through the accounting bot.
type Broadcaster interface {
	Broadcast(ctx context.Context, text, chatID string) (services.BroadcastResult, error)
}

// AccountingPusher sends invoices and reports through the accounting bot.
type AccountingPusher interface {
	SendInvoice(ctx context.Context, inv services.Invoice) (services.BroadcastResult, error)
	SendDailyReport(ctx context.Context) (services.BroadcastResult, error)
	SendMonthlyReport(ctx context.Context, year int, month time.Month) (services.BroadcastResult, error)
}

// StatusUpdater resolves a request id to its table and sets its status.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id, status string) (bool, error)
}

// PetitionRenderer renders a voluntary-return petition, PDF or HTML.
type PetitionRenderer interface {
	Render(ctx context.Context, f wizard.Form) (document.Artifact, error)
}

// SupportChat is the website support chat.
type SupportChat interface {
	OpenSession(ctx context.Context, visitorID, lang, firstMessage string) (*domain.ChatSession, error)
	Post(ctx context.Context, sessionID, content, idemKey string) (*services.PostResult, error)
	ListMessages(ctx context.Context, sessionID string, page, pageSize int) ([]domain.ChatMessage, int64, error)
	ETag(ctx context.Context, sessionID string) (string, error)
}

// Moderators administers staff roles.
type Moderators interface {
	Promote(ctx context.Context, email string) (*domain.Profile, error)
	Demote(ctx context.Context, email string) (*domain.Profile, error)
	Sync(ctx context.Context) (services.SyncResult, error)
	List(ctx context.Context) ([]domain.Moderator, error)
}

// Deps are the services behind the endpoints. A nil service makes its
// endpoints answer 503.
type Deps struct {
	Dispatcher Dispatcher
	Notifier   Notifier
	Accounting Broadcaster
	Ledger     AccountingPusher
	Status     StatusUpdater
	Renderer   PetitionRenderer
	Catalog    *wizard.Catalog
	Support    SupportChat
	Moderators Moderators

	// Location decides "today" for petitions without a travel date.
	Location *time.Location
	Now      func() time.Time
}

// Handlers groups the endpoints.
type Handlers struct {
	d Deps
}

// New returns Handlers over d.
func New(d Deps) *Handlers {
	if d.Catalog == nil {
		d.Catalog = wizard.DefaultCatalog()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Handlers{d: d}
}

func (h *Handlers) today() string {
	return h.d.Now().In(h.d.Location).Format("02.01.2006")
}
