package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tevasul/tevasul-backend/internal/document"
	"github.com/tevasul/tevasul-backend/internal/domain"
	"github.com/tevasul/tevasul-backend/internal/observability"
	"github.com/tevasul/tevasul-backend/internal/repo"
	"github.com/tevasul/tevasul-backend/internal/telegram"
	"github.com/tevasul/tevasul-backend/internal/wizard"
)

const (
	textSessionExpired = "⌛ انتهت صلاحية الجلسة بسبب عدم النشاط. أرسل /start للبدء من جديد."
	textWizardIntro    = "🔄 <b>طلب عودة طوعية</b>\n\nسنطرح عليك بعض الأسئلة لإعداد العريضة. يمكنك الإلغاء في أي وقت بإرسال /cancel."
	textPetitionReady  = "📄 عريضة العودة الطوعية"
	textRenderFailed   = "❌ تعذر إعداد العريضة. سيتواصل معك فريقنا قريباً."
	textSaved          = "✅ تم حفظ طلبك برقم: <code>%s</code>\nسيتواصل معك فريقنا قريباً."
	cancelButtonLabel  = "❌ إلغاء"
)

// PetitionRenderer renders a finished form.
type PetitionRenderer interface {
	Render(ctx context.Context, f wizard.Form) (document.Artifact, error)
}

// AdminNotifier delivers admin notifications.
type AdminNotifier interface {
	Notify(ctx context.Context, n Notification) (NotifyResult, error)
}

// WizardService runs the voluntary-return dialogue over Telegram. The
// dialogue itself lives in package wizard; this service loads and stores
// the tagged state and talks to Telegram.
type WizardService struct {
	DB       *gorm.DB
	Bot      Messenger
	Catalog  *wizard.Catalog
	Renderer PetitionRenderer
	Notifier AdminNotifier // optional
	TTL      time.Duration
	Location *time.Location
	Now      func() time.Time

	log zerolog.Logger
}

// NewWizardService wires a WizardService with the default border catalog.
func NewWizardService(db *gorm.DB, bot Messenger, renderer PetitionRenderer, notifier AdminNotifier, ttl time.Duration, loc *time.Location) *WizardService {
	if loc == nil {
		loc = time.UTC
	}
	return &WizardService{
		DB:       db,
		Bot:      bot,
		Catalog:  wizard.DefaultCatalog(),
		Renderer: renderer,
		Notifier: notifier,
		TTL:      ttl,
		Location: loc,
		Now:      time.Now,
		log:      log.With().Str("component", "wizard").Logger(),
	}
}

func (s *WizardService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *WizardService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return 30 * time.Minute
}

func (s *WizardService) catalog() *wizard.Catalog {
	if s.Catalog != nil {
		return s.Catalog
	}
	return wizard.DefaultCatalog()
}

// Start creates or replaces the chat's active session at the first step and
// sends its prompt.
func (s *WizardService) Start(ctx context.Context, chatID int64) error {
	ctx, span := otel.Tracer("services/WizardService").Start(ctx, "Start")
	defer span.End()

	st := wizard.Start()
	raw, err := wizard.Encode(st)
	if err != nil {
		return err
	}
	if _, err := repo.StartSession(ctx, s.DB, chatID, string(st.Step()), raw, s.ttl()); err != nil {
		span.RecordError(err)
		return fmt.Errorf("start session: %w", err)
	}
	observability.WizardTransitions.WithLabelValues("start").Inc()
	if _, err := s.Bot.SendText(ctx, chatID, textWizardIntro, nil); err != nil {
		return err
	}
	return s.prompt(ctx, chatID, wizard.PromptFor(st, s.catalog()))
}

// HandleText feeds a text message to the chat's active session. It reports
// false when the chat has no active session.
func (s *WizardService) HandleText(ctx context.Context, chatID int64, text string) (bool, error) {
	return s.handle(ctx, chatID, wizard.TextInput(text))
}

// HandleButton feeds a pressed wizard button to the chat's active session.
func (s *WizardService) HandleButton(ctx context.Context, chatID int64, action, value string) (bool, error) {
	return s.handle(ctx, chatID, wizard.ButtonInput(action, value))
}

func (s *WizardService) handle(ctx context.Context, chatID int64, in wizard.Input) (bool, error) {
	ctx, span := otel.Tracer("services/WizardService").Start(ctx, "Handle")
	defer span.End()

	sess, err := repo.GetActiveSession(ctx, s.DB, chatID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return true, fmt.Errorf("load session: %w", err)
	}
	span.SetAttributes(attribute.String("wizard.step", sess.Step))

	now := s.now()
	if sess.Expired(now) {
		return true, s.expire(ctx, chatID, sess)
	}

	st, err := wizard.Decode(sess.Step, sess.Answers)
	if err != nil {
		// The stored state cannot be resumed; close it like an expiry.
		s.log.Error().Err(err).Str("session_id", sess.ID).Msg("undecodable session state")
		return true, s.expire(ctx, chatID, sess)
	}

	cat := s.catalog()
	next, out, err := wizard.Advance(ctx, st, in, now.In(s.Location), cat)
	if err != nil {
		span.RecordError(err)
		return true, fmt.Errorf("advance %s: %w", sess.Step, err)
	}
	if out.Invalid != nil {
		observability.WizardTransitions.WithLabelValues("invalid").Inc()
		return true, s.prompt(ctx, chatID, wizard.Reprompt(st, out.Invalid, cat))
	}
	observability.WizardTransitions.WithLabelValues(out.Event).Inc()
	span.SetAttributes(attribute.String("wizard.event", out.Event))

	raw, err := wizard.Encode(next)
	if err != nil {
		return true, err
	}
	step := string(next.Step())

	switch next.(type) {
	case wizard.Cancelled:
		if err := repo.FinishSession(ctx, s.DB, sess.ID, domain.SessionCancelled, step, raw, nil); err != nil {
			return true, s.sessionErr(err)
		}
		return true, s.prompt(ctx, chatID, wizard.PromptFor(next, cat))
	case wizard.Completed:
		return true, s.complete(ctx, chatID, sess, next, raw, out.Form)
	}

	if err := repo.SaveSessionState(ctx, s.DB, sess.ID, step, raw, now.UTC().Add(s.ttl())); err != nil {
		return true, s.sessionErr(err)
	}
	return true, s.prompt(ctx, chatID, wizard.PromptFor(next, cat))
}

func (s *WizardService) sessionErr(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrSessionNotFound
	}
	return fmt.Errorf("save session: %w", err)
}

func (s *WizardService) expire(ctx context.Context, chatID int64, sess *domain.ConversationSession) error {
	observability.WizardTransitions.WithLabelValues("expired").Inc()
	if err := repo.FinishSession(ctx, s.DB, sess.ID, domain.SessionExpired, sess.Step, sess.Answers, nil); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("expire session: %w", err)
	}
	_, err := s.Bot.SendText(ctx, chatID, textSessionExpired, telegram.RemoveKeyboard())
	return err
}

// complete stores the petition, closes the session, delivers the document
// and tells the admins. Once the row is stored, later failures are logged
// and do not undo it.
func (s *WizardService) complete(ctx context.Context, chatID int64, sess *domain.ConversationSession, final wizard.State, raw []byte, form *wizard.Form) error {
	if form == nil {
		return errors.New("wizard: completed without form")
	}
	row := &domain.VoluntaryReturnForm{
		ChatID:      chatID,
		FullNameTR:  form.FullName,
		FullNameAR:  form.FullNameAR,
		KimlikNo:    form.Kimlik,
		GSM:         form.GSM,
		SinirKapisi: form.Border.NameTR,
		Companions:  datatypes.NewJSONType(form.Companions),
		TravelDate:  form.TravelDate,
		Source:      "telegram",
	}
	var formID string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateVoluntaryReturnForm(ctx, tx, row); err != nil {
			return err
		}
		formID = row.ID
		return repo.FinishSession(ctx, tx, sess.ID, domain.SessionCompleted, string(final.Step()), raw, &formID)
	})
	if err != nil {
		return s.sessionErr(err)
	}
	logger := s.log.With().Str("form_id", formID).Logger()
	logger.Info().Msg("voluntary return petition stored")

	if _, err := s.Bot.SendText(ctx, chatID, wizard.PromptFor(final, s.catalog()).Text, telegram.RemoveKeyboard()); err != nil {
		logger.Warn().Err(err).Msg("completion notice not delivered")
	}

	art, sent := s.deliver(ctx, chatID, *form, logger)
	if sent {
		if _, err := s.Bot.SendText(ctx, chatID, fmt.Sprintf(textSaved, formID), nil); err != nil {
			logger.Warn().Err(err).Msg("saved notice not delivered")
		}
	}

	if s.Notifier != nil {
		n := Notification{
			SessionID:   sess.ID,
			RequestID:   formID,
			RequestType: TypeVoluntaryReturn,
			Language:    "ar",
			Message:     petitionSummary(*form),
			UserInfo:    &UserInfo{Name: form.FullNameAR, Phone: form.GSM},
			AdditionalData: map[string]any{
				"kimlikNo":     form.Kimlik,
				"sinirKapisi":  form.Border.NameTR,
				"refakatCount": float64(len(form.Companions)),
				"customDate":   form.TravelDate,
			},
			Document: art,
		}
		if _, err := s.Notifier.Notify(ctx, n); err != nil {
			logger.Warn().Err(err).Msg("admin notification failed")
		}
	}
	return nil
}

// deliver renders the petition and sends it, re-sending the HTML rendering
// when Telegram rejects the PDF. It returns the artifact that went out.
func (s *WizardService) deliver(ctx context.Context, chatID int64, form wizard.Form, logger zerolog.Logger) (*document.Artifact, bool) {
	if s.Renderer == nil {
		return nil, false
	}
	art, err := s.Renderer.Render(ctx, form)
	if err != nil {
		logger.Error().Err(err).Msg("petition render failed")
		if _, err := s.Bot.SendText(ctx, chatID, textRenderFailed, nil); err != nil {
			logger.Warn().Err(err).Msg("render failure notice not delivered")
		}
		return nil, false
	}

	_, err = s.Bot.SendDocument(ctx, chatID, art.Name, art.Bytes, textPetitionReady)
	if err == nil {
		return &art, true
	}
	if art.Fallback || !telegram.IsRejected(err) {
		logger.Warn().Err(err).Str("file", art.Name).Msg("petition not delivered")
		return &art, false
	}

	logger.Warn().Err(err).Msg("telegram rejected pdf, sending html")
	fallback, herr := document.HTMLArtifact(form)
	if herr != nil {
		logger.Error().Err(herr).Msg("html fallback failed")
		return &art, false
	}
	observability.DocumentsRendered.WithLabelValues("html").Inc()
	if _, err := s.Bot.SendDocument(ctx, chatID, fallback.Name, fallback.Bytes, textPetitionReady); err != nil {
		logger.Warn().Err(err).Msg("html petition not delivered")
		return &fallback, false
	}
	return &fallback, true
}

// prompt sends p with its buttons and, for cancelable prompts, a cancel
// button on its own row.
func (s *WizardService) prompt(ctx context.Context, chatID int64, p wizard.Prompt) error {
	if p.Text == "" {
		return nil
	}
	_, err := s.Bot.SendText(ctx, chatID, p.Text, inlineMarkup(promptKeyboard(p)))
	return err
}

func promptKeyboard(p wizard.Prompt) *tgbotapi.InlineKeyboardMarkup {
	buttons := make([]telegram.Button, 0, len(p.Choices))
	for _, c := range p.Choices {
		buttons = append(buttons, telegram.Button{Text: c.Label, Action: c.Action, Value: c.Value})
	}
	kb := telegram.InlineRows(p.PerRow, buttons...)
	if !p.Cancelable {
		return kb
	}
	cancel := telegram.InlineRows(1, telegram.Button{Text: cancelButtonLabel, Action: wizard.ActionWizard, Value: wizard.ValueCancel})
	if kb == nil {
		return cancel
	}
	kb.InlineKeyboard = append(kb.InlineKeyboard, cancel.InlineKeyboard...)
	return kb
}

// petitionSummary is the plain description used in the admin notification.
func petitionSummary(f wizard.Form) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s / %s\n", f.FullName, f.FullNameAR)
	fmt.Fprintf(&b, "Kimlik: %s\nGSM: %s\n", f.Kimlik, f.GSM)
	fmt.Fprintf(&b, "%s - %s\n", f.Border.NameTR, f.Border.NameAR)
	fmt.Fprintf(&b, "%s", f.TravelDate)
	for i, c := range f.Companions {
		fmt.Fprintf(&b, "\n%d. %s (%s)", i+1, c.Name, c.Kimlik)
	}
	return b.String()
}

// ExpireStale marks overdue sessions expired. The sweeper calls it.
func (s *WizardService) ExpireStale(ctx context.Context) (int64, error) {
	return repo.ExpireSessions(ctx, s.DB, s.now().UTC())
}
