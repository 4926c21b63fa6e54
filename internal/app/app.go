// Package app composes the services, the HTTP engine and the background
// jobs of the server from a Config. Both binaries build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tevasul/tevasul-backend/internal/config"
	"github.com/tevasul/tevasul-backend/internal/document"
	"github.com/tevasul/tevasul-backend/internal/domain"
	httpapi "github.com/tevasul/tevasul-backend/internal/http"
	"github.com/tevasul/tevasul-backend/internal/http/handlers"
	"github.com/tevasul/tevasul-backend/internal/repo"
	"github.com/tevasul/tevasul-backend/internal/search"
	"github.com/tevasul/tevasul-backend/internal/services"
	"github.com/tevasul/tevasul-backend/internal/telegram"
)

// Bots are the connected Bot API clients. A nil client means that bot is
// not configured.
type Bots struct {
	Main       *telegram.Client
	Accounting *telegram.Client
}

// ConnectBots connects every bot that has a token.
func ConnectBots(cfg config.Config) (Bots, error) {
	var (
		b   Bots
		err error
	)
	opts := telegram.Options{Endpoint: cfg.Telegram.APIEndpoint, RPS: cfg.Telegram.RPS}
	if cfg.Telegram.BotToken != "" {
		opts.Name = domain.BotMain
		if b.Main, err = telegram.New(cfg.Telegram.BotToken, opts); err != nil {
			return Bots{}, err
		}
	}
	if cfg.Accounting.BotToken != "" {
		opts.Name = domain.BotAccounting
		if b.Accounting, err = telegram.New(cfg.Accounting.BotToken, opts); err != nil {
			return Bots{}, err
		}
	}
	return b, nil
}

// App is a composed server.
type App struct {
	Config     config.Config
	DB         *gorm.DB
	Bots       Bots
	Engine     *gin.Engine
	Dispatcher *services.UpdateDispatcher
	Wizard     *services.WizardService     // nil without the main bot
	Accounting *services.AccountingService // nil without the accounting bot

	log zerolog.Logger
}

// New wires the services over db and bots and registers the routes.
func New(cfg config.Config, db *gorm.DB, bots Bots, idx search.Index) *App {
	lg := log.With().Str("component", "app").Logger()
	loc := cfg.Location()
	renderer := NewRenderer(cfg.Document)

	a := &App{Config: cfg, DB: db, Bots: bots, log: lg}
	status := &services.StatusService{DB: db}

	// Interface fields stay untyped nil when a bot is missing.
	notifierSvc := &services.NotificationService{DB: db, FallbackChatID: cfg.Telegram.AdminChatID}
	if bots.Main != nil {
		notifierSvc = services.NewNotificationService(db, bots.Main, cfg.Telegram.AdminChatID)
	}

	var (
		callbacks  services.CallbackHandler
		links      services.ChatLinker
		wizText    services.WizardText
		accounting services.AccountingHandler
		broadcast  handlers.Broadcaster
		ledger     handlers.AccountingPusher
	)
	if bots.Main != nil {
		a.Wizard = services.NewWizardService(db, bots.Main, renderer, notifierSvc, cfg.SessionTTL, loc)
		callbacks = services.NewCallbackService(bots.Main, status, a.Wizard)
		links = services.NewLinkService(db, bots.Main)
		wizText = a.Wizard
	}
	if bots.Accounting != nil {
		var verifier services.PasswordVerifier
		if cfg.Accounting.SupabaseURL != "" {
			verifier = services.NewGoTrueVerifier(cfg.Accounting.SupabaseURL, cfg.Accounting.SupabaseAnonKey)
		} else {
			lg.Warn().Msg("SUPABASE_URL unset; accounting logins are not password checked")
		}
		acct := services.NewAccountingService(db, bots.Accounting, verifier, cfg.Accounting.SessionTTL, loc, "")
		if cfg.Document.PDFAPIURL != "" {
			acct.PDF = document.NewRemoteRenderer(cfg.Document.PDFAPIURL, cfg.Document.PDFAPIKey, cfg.Document.Timeout)
		}
		a.Accounting = acct
		accounting, broadcast, ledger = acct, acct, acct
	}
	a.Dispatcher = services.NewUpdateDispatcher(db, cfg.UpdateDedupTTL, callbacks, links, wizText, accounting)

	support := services.NewSupportService(db, idx, cfg.FAQThreshold, notifierSvc, cfg.IdempotencyTTL)

	gin.SetMode(cfg.GinMode)
	a.Engine = gin.New()
	httpapi.RegisterRoutes(a.Engine, db, handlers.Deps{
		Dispatcher: a.Dispatcher,
		Notifier:   notifierSvc,
		Accounting: broadcast,
		Ledger:     ledger,
		Status:     status,
		Renderer:   renderer,
		Support:    support,
		Moderators: services.NewModeratorService(db),
		Location:   loc,
	}, cfg)
	return a
}

// NewRenderer returns the petition renderer: the remote HTML-to-PDF service
// when configured, then the local fpdf renderer when a font is set, with
// the HTML fallback behind both.
func NewRenderer(cfg config.DocumentConfig) document.Renderer {
	var r document.Renderer
	if cfg.PDFAPIURL != "" {
		r.PDF = append(r.PDF, document.NewRemoteRenderer(cfg.PDFAPIURL, cfg.PDFAPIKey, cfg.Timeout))
	}
	if cfg.FontPath != "" {
		r.PDF = append(r.PDF, &document.LocalRenderer{FontPath: cfg.FontPath})
	}
	return r
}

// LoadIndex builds the FAQ index from path. A missing or unreadable file
// gives an empty index, so every support message escalates.
func LoadIndex(path string) search.Index {
	idx, err := search.NewIndexFromMarkdown(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Warn().Str("path", path).Msg("faq file not found; support chat will escalate everything")
	case err != nil:
		log.Warn().Err(err).Str("path", path).Msg("faq file unreadable")
	default:
		log.Info().Str("path", path).Int("entries", idx.Len()).Msg("faq index loaded")
	}
	return idx
}

// Migrate brings the schema up to date: versioned SQL migrations on
// Postgres, AutoMigrate on SQLite.
func Migrate(cfg config.Config, db *gorm.DB) error {
	if cfg.DB.Driver == "postgres" {
		v, err := repo.MigrateUp(cfg.DB.URL)
		if err != nil {
			return err
		}
		log.Info().Uint("version", v).Msg("migrations applied")
		return nil
	}
	return repo.AutoMigrate(db)
}

// Sweep expires overdue wizard sessions and prunes idempotency records and
// update claims whose TTL has passed.
func (a *App) Sweep(ctx context.Context) error {
	now := time.Now().UTC()
	expired, err := repo.ExpireSessions(ctx, a.DB, now)
	if err != nil {
		return fmt.Errorf("expire sessions: %w", err)
	}
	pruned, err := repo.PruneExpired(ctx, a.DB, now)
	if err != nil {
		return fmt.Errorf("prune expired: %w", err)
	}
	if expired > 0 || pruned > 0 {
		a.log.Info().Int64("sessions_expired", expired).Int64("rows_pruned", pruned).Msg("sweep")
	}
	return nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (a *App) RunSweeper(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := a.Sweep(ctx); err != nil && ctx.Err() == nil {
				a.log.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

// RunReports pushes the scheduled accounting reports, checking every
// interval until ctx is done. It returns at once when the accounting bot
// or the report time is not configured.
func (a *App) RunReports(ctx context.Context, every time.Duration) {
	at, enabled := a.Config.Accounting.ReportAt()
	if a.Accounting == nil || !enabled {
		return
	}
	sched := &services.ReportSchedule{At: at, Location: a.Config.Location(), Enabled: true}
	a.log.Info().Str("at", a.Config.Accounting.ReportTime).Msg("scheduled accounting reports enabled")

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			a.pushReports(ctx, sched, now)
		}
	}
}

func (a *App) pushReports(ctx context.Context, sched *services.ReportSchedule, now time.Time) {
	daily, monthly, year, month := sched.Due(now)
	if daily {
		res, err := a.Accounting.SendDailyReport(ctx)
		a.logReport("daily", res, err)
	}
	if monthly {
		res, err := a.Accounting.SendMonthlyReport(ctx, year, month)
		a.logReport("monthly", res, err)
	}
}

func (a *App) logReport(kind string, res services.BroadcastResult, err error) {
	if err != nil {
		a.log.Error().Err(err).Str("report", kind).Msg("scheduled report failed")
		return
	}
	a.log.Info().Str("report", kind).Int("sent_to", res.SentTo).Int("failed", res.Failed).Msg("scheduled report sent")
}

// RunPollers deletes each bot's webhook and long-polls it until ctx is
// done. It returns once every poller has stopped.
func (a *App) RunPollers(ctx context.Context) {
	var wg sync.WaitGroup
	for bot, c := range map[string]*telegram.Client{domain.BotMain: a.Bots.Main, domain.BotAccounting: a.Bots.Accounting} {
		if c == nil {
			continue
		}
		if err := c.DeleteWebhook(ctx, false); err != nil {
			a.log.Error().Err(err).Str("bot", bot).Msg("delete webhook before polling")
			continue
		}
		p := &telegram.Poller{Client: c, Name: bot, Handle: a.pollHandler(bot)}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Run(ctx)
		}()
	}
	wg.Wait()
}

func (a *App) pollHandler(bot string) telegram.UpdateHandler {
	return func(ctx context.Context, u tgbotapi.Update) error {
		err := a.Dispatcher.Dispatch(ctx, bot, u)
		if errors.Is(err, services.ErrDuplicateUpdate) {
			return nil
		}
		return err
	}
}
