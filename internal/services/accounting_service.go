package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AlekSi/pointer"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tevasul/tevasul-backend/internal/domain"
	"github.com/tevasul/tevasul-backend/internal/repo"
	"github.com/tevasul/tevasul-backend/internal/telegram"
)

const (
	acctLoginPrompt  = "مرحباً بك في بوت المحاسبة! 👋\n\nيرجى إدخال بيانات تسجيل الدخول:\n📧 البريد الإلكتروني\n🔑 كلمة المرور\n\nأرسل البيانات بالتنسيق التالي:\n<code>email:your@email.com\npassword:yourpassword</code>"
	acctLoginFailed  = "❌ فشل تسجيل الدخول!\n\nالبريد الإلكتروني أو كلمة المرور غير صحيحة.\n\nيرجى المحاولة مرة أخرى أو إرسال /login"
	acctNotAdmin     = "❌ ليس لديك صلاحية للوصول!\n\nيجب أن تكون أدمن للوصول إلى بوت المحاسبة."
	acctSessionError = "❌ حدث خطأ أثناء إنشاء الجلسة. يرجى المحاولة مرة أخرى."
	acctLoggedIn     = "✅ تم تسجيل الدخول بنجاح!\n\nمرحباً %s 👋\n\nيمكنك الآن استخدام جميع أوامر البوت.\n\nاستخدم الأزرار أدناه للوصول السريع للخيارات."
	acctNeedLogin    = "⚠️ يجب تسجيل الدخول أولاً!\n\nأرسل /login لبدء تسجيل الدخول"
	acctHelp         = "📋 <b>أوامر بوت المحاسبة</b>\n\n<b>الأوامر المتاحة:</b>\n/start - القائمة الرئيسية\n/help - عرض المساعدة\n/status - حالة النظام\n/today - ملخص اليوم\n/transactions - آخر المعاملات\n/summary [الشهر] [السنة] - ملخص شهري\n/report [الشهر] [السنة] - تقرير شهري مفصل\n/stats - إحصائيات عامة\n/logout - تسجيل الخروج\n\n💡 يمكنك أيضاً استخدام الأزرار في الأسفل للوصول السريع"
	acctMenu         = "📋 <b>بوت المحاسبة</b>\n\nمرحباً بك في بوت المحاسبة!\n\nاستخدم الأزرار أدناه للوصول السريع للخيارات.\n\n🔐 <b>تم تسجيل الدخول كـ:</b> %s"
	acctStatus       = "✅ <b>حالة النظام</b>\n\n🟢 البوت يعمل بشكل طبيعي\n👤 المستخدم: %s\n🕐 تم تسجيل الدخول: %s"
	acctLoggedOut    = "✅ تم تسجيل الخروج بنجاح!\n\nشكراً لاستخدامك بوت المحاسبة 👋"
	acctUnknown      = "❓ أمر غير معروف!\n\nأرسل /help لعرض الأوامر المتاحة أو استخدم الأزرار أدناه"
	acctFetchError   = "❌ حدث خطأ في جلب البيانات"
	acctCallbackDone = "تمت المعالجة"
)

// Reply-keyboard buttons and the commands they stand for.
var acctButtons = map[string]string{
	"📊 ملخص اليوم":     "today",
	"📋 المعاملات":      "transactions",
	"📈 الملخص الشهري":  "summary",
	"📊 التقرير الشهري": "report",
	"📊 الإحصائيات":     "stats",
	"ℹ️ المساعدة":      "help",
	"🚪 تسجيل الخروج":   "logout",
}

func acctKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return telegram.ReplyKeyboard(
		[]string{"📊 ملخص اليوم", "📋 المعاملات"},
		[]string{"📈 الملخص الشهري", "📊 التقرير الشهري"},
		[]string{"📊 الإحصائيات", "ℹ️ المساعدة"},
		[]string{"🚪 تسجيل الخروج"},
	)
}

func acctLoginKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return telegram.ReplyKeyboard([]string{"/login", "/help"})
}

// AccountingCommands is the command menu published on login.
var AccountingCommands = []tgbotapi.BotCommand{
	{Command: "start", Description: "القائمة الرئيسية"},
	{Command: "help", Description: "عرض المساعدة"},
	{Command: "status", Description: "حالة النظام"},
	{Command: "today", Description: "ملخص اليوم"},
	{Command: "transactions", Description: "آخر المعاملات"},
	{Command: "summary", Description: "ملخص شهري"},
	{Command: "report", Description: "تقرير شهري مفصل"},
	{Command: "stats", Description: "إحصائيات عامة"},
	{Command: "logout", Description: "تسجيل الخروج"},
}

var (
	emailRE    = regexp.MustCompile(`(?i)email[:\s]+(\S+)`)
	passwordRE = regexp.MustCompile(`(?i)password[:\s]+(\S+)`)
)

// parseCredentials extracts "email:x password:y" from text.
func parseCredentials(text string) (email, password string, ok bool) {
	e := emailRE.FindStringSubmatch(text)
	p := passwordRE.FindStringSubmatch(text)
	if e == nil || p == nil {
		return "", "", false
	}
	return e[1], p[1], true
}

// BroadcastResult counts delivered and failed messages.
type BroadcastResult struct {
	SentTo     int `json:"sent_to"`
	Failed     int `json:"failed"`
	Recipients int `json:"recipients"`
}

// AccountingService is the accounting bot: admin login, ledger reports,
// invoices and broadcasts to logged-in admins.
type AccountingService struct {
	DB       *gorm.DB
	Bot      CommandMessenger
	Verifier PasswordVerifier // nil skips the password check
	PDF      HTMLConverter    // nil disables invoices
	TTL      time.Duration
	Location *time.Location
	// FallbackChatID is used when the accounting telegram_config row has
	// no admin chat.
	FallbackChatID string
	Now            func() time.Time

	log zerolog.Logger
}

// NewAccountingService wires an AccountingService.
func NewAccountingService(db *gorm.DB, bot CommandMessenger, verifier PasswordVerifier, ttl time.Duration, loc *time.Location, fallbackChatID string) *AccountingService {
	if loc == nil {
		loc = time.UTC
	}
	return &AccountingService{
		DB:             db,
		Bot:            bot,
		Verifier:       verifier,
		TTL:            ttl,
		Location:       loc,
		FallbackChatID: fallbackChatID,
		Now:            time.Now,
		log:            log.With().Str("component", "accounting").Logger(),
	}
}

func (s *AccountingService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AccountingService) loc() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

func (s *AccountingService) send(ctx context.Context, chatID int64, text string, markup any) error {
	_, err := s.Bot.SendText(ctx, chatID, text, markup)
	return err
}

// command splits "/cmd@bot a b" into "cmd" and its arguments. Reply
// keyboard labels map to their command.
func command(text string) (string, []string) {
	text = strings.TrimSpace(text)
	if cmd, ok := acctButtons[text]; ok {
		return cmd, nil
	}
	if !strings.HasPrefix(text, "/") {
		return "", nil
	}
	fields := strings.Fields(text)
	cmd := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return cmd, fields[1:]
}

// Handle processes one message sent to the accounting bot.
func (s *AccountingService) Handle(ctx context.Context, msg *tgbotapi.Message) error {
	if msg == nil || msg.Chat == nil {
		return nil
	}
	ctx, span := otel.Tracer("services/AccountingService").Start(ctx, "Handle")
	defer span.End()

	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	cmd, args := command(text)
	span.SetAttributes(attribute.String("accounting.command", cmd))

	if email, password, ok := parseCredentials(text); ok {
		return s.login(ctx, chatID, email, password)
	}
	if cmd == "login" {
		return s.send(ctx, chatID, acctLoginPrompt, telegram.RemoveKeyboard())
	}

	auth, err := s.session(ctx, chatID)
	if err != nil {
		return err
	}
	if auth == nil {
		if cmd == "start" {
			return s.send(ctx, chatID, acctLoginPrompt, nil)
		}
		if cmd == "help" {
			return s.send(ctx, chatID, acctHelp, acctLoginKeyboard())
		}
		return s.send(ctx, chatID, acctNeedLogin, acctLoginKeyboard())
	}

	switch cmd {
	case "start":
		return s.send(ctx, chatID, fmt.Sprintf(acctMenu, html.EscapeString(auth.Email)), acctKeyboard())
	case "help":
		return s.send(ctx, chatID, acctHelp, acctKeyboard())
	case "status":
		at := auth.AuthenticatedAt.In(s.loc()).Format("2006-01-02 15:04")
		return s.send(ctx, chatID, fmt.Sprintf(acctStatus, html.EscapeString(auth.Email), at), acctKeyboard())
	case "today":
		return s.report(ctx, chatID, s.today)
	case "transactions":
		return s.report(ctx, chatID, s.transactions)
	case "summary":
		y, m := s.monthArgs(args)
		return s.report(ctx, chatID, func(ctx context.Context) (string, error) { return s.monthly(ctx, y, m, false) })
	case "report":
		y, m := s.monthArgs(args)
		return s.report(ctx, chatID, func(ctx context.Context) (string, error) { return s.monthly(ctx, y, m, true) })
	case "stats":
		return s.report(ctx, chatID, s.stats)
	case "logout":
		if err := repo.DeactivateAccountingAuth(ctx, s.DB, strconv.FormatInt(chatID, 10)); err != nil {
			return fmt.Errorf("logout: %w", err)
		}
		return s.send(ctx, chatID, acctLoggedOut, telegram.RemoveKeyboard())
	}
	return s.send(ctx, chatID, acctUnknown, acctKeyboard())
}

// HandleCallback acknowledges accounting-bot buttons.
func (s *AccountingService) HandleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q == nil {
		return nil
	}
	return s.Bot.AnswerCallback(ctx, q.ID, acctCallbackDone, false)
}

// session returns the valid login of chatID, or nil when there is none.
func (s *AccountingService) session(ctx context.Context, chatID int64) (*domain.AccountingAuth, error) {
	auth, err := repo.GetAccountingAuth(ctx, s.DB, strconv.FormatInt(chatID, 10))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load accounting auth: %w", err)
	}
	if !auth.Valid(s.now()) {
		return nil, nil
	}
	return auth, nil
}

func (s *AccountingService) login(ctx context.Context, chatID int64, email, password string) error {
	logger := s.log.With().Int64("chat_id", chatID).Logger()

	profile, err := repo.GetProfileByEmail(ctx, s.DB, email)
	if errors.Is(err, repo.ErrNotFound) {
		return s.send(ctx, chatID, acctLoginFailed, nil)
	}
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if s.Verifier != nil {
		if err := s.Verifier.Verify(ctx, email, password); err != nil {
			if !errors.Is(err, ErrInvalidCredentials) {
				logger.Warn().Err(err).Msg("password check failed")
			}
			return s.send(ctx, chatID, acctLoginFailed, nil)
		}
	}
	if profile.Role != domain.RoleAdmin {
		return s.send(ctx, chatID, acctNotAdmin, nil)
	}

	ttl := s.TTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	now := s.now().UTC()
	auth := &domain.AccountingAuth{
		TelegramChatID:  strconv.FormatInt(chatID, 10),
		UserID:          profile.ID,
		Email:           profile.Email,
		AuthenticatedAt: now,
		ExpiresAt:       pointer.ToTime(now.Add(ttl)),
		IsActive:        true,
	}
	if err := repo.UpsertAccountingAuth(ctx, s.DB, auth); err != nil {
		logger.Error().Err(err).Msg("accounting session not stored")
		return s.send(ctx, chatID, acctSessionError, nil)
	}
	logger.Info().Str("user_id", profile.ID).Msg("accounting login")

	if err := s.Bot.SetCommands(ctx, AccountingCommands); err != nil {
		logger.Warn().Err(err).Msg("setMyCommands failed")
	}
	name := profile.FullName
	if name == "" {
		name = profile.Email
	}
	return s.send(ctx, chatID, fmt.Sprintf(acctLoggedIn, html.EscapeString(name)), acctKeyboard())
}

// monthArgs reads "[month] [year]", defaulting to the current month.
func (s *AccountingService) monthArgs(args []string) (int, time.Month) {
	now := s.now().In(s.loc())
	year, month := now.Year(), now.Month()
	if len(args) > 0 {
		if m, err := strconv.Atoi(args[0]); err == nil && m >= 1 && m <= 12 {
			month = time.Month(m)
		}
	}
	if len(args) > 1 {
		if y, err := strconv.Atoi(args[1]); err == nil && y >= 2000 && y <= 2100 {
			year = y
		}
	}
	return year, month
}

func (s *AccountingService) report(ctx context.Context, chatID int64, build func(context.Context) (string, error)) error {
	text, err := build(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("accounting report failed")
		return s.send(ctx, chatID, acctFetchError, acctKeyboard())
	}
	return s.send(ctx, chatID, text, acctKeyboard())
}

func (s *AccountingService) today(ctx context.Context) (string, error) {
	from, to := dayRange(s.now(), s.loc())
	txs, err := repo.ListTransactions(ctx, s.DB, from, to, 20)
	if err != nil {
		return "", err
	}
	return renderToday(from, txs), nil
}

func (s *AccountingService) transactions(ctx context.Context) (string, error) {
	txs, err := repo.ListTransactions(ctx, s.DB, time.Time{}, time.Time{}, 10)
	if err != nil {
		return "", err
	}
	return renderTransactions(txs), nil
}

func (s *AccountingService) monthly(ctx context.Context, year int, month time.Month, detailed bool) (string, error) {
	from, to := monthRange(year, month)
	txs, err := repo.ListTransactions(ctx, s.DB, from, to, 0)
	if err != nil {
		return "", err
	}
	if detailed {
		return renderReport(year, month, txs), nil
	}
	return renderMonthly(year, month, txs), nil
}

func (s *AccountingService) stats(ctx context.Context) (string, error) {
	all, err := repo.ListTransactions(ctx, s.DB, time.Time{}, time.Time{}, 0)
	if err != nil {
		return "", err
	}
	dayFrom, dayTo := dayRange(s.now(), s.loc())
	l := s.now().In(s.loc())
	monFrom, monTo := monthRange(l.Year(), l.Month())

	var today, month []domain.AccountingTransaction
	for _, tx := range all {
		d := tx.TransactionDate.UTC()
		if !d.Before(dayFrom) && d.Before(dayTo) {
			today = append(today, tx)
		}
		if !d.Before(monFrom) && d.Before(monTo) {
			month = append(month, tx)
		}
	}
	return renderStats(totalsOf(today), totalsOf(month), totalsOf(all)), nil
}

// Broadcast sends text to chatID (when given), the configured accounting
// admin chat and every active login, each chat once.
func (s *AccountingService) Broadcast(ctx context.Context, text, chatID string) (BroadcastResult, error) {
	ctx, span := otel.Tracer("services/AccountingService").Start(ctx, "Broadcast",
		trace.WithAttributes(attribute.Bool("chat_id.provided", chatID != "")),
	)
	defer span.End()

	if strings.TrimSpace(text) == "" {
		return BroadcastResult{}, ErrEmptyMessage
	}
	recipients, err := s.recipients(ctx, chatID)
	if err != nil {
		return BroadcastResult{}, err
	}
	if len(recipients) == 0 {
		return BroadcastResult{}, ErrNoRecipients
	}

	res := s.deliver(recipients, func(id int64) error {
		_, err := s.Bot.SendText(ctx, id, text, nil)
		return err
	})
	span.SetAttributes(attribute.Int("broadcast.sent", res.SentTo), attribute.Int("broadcast.failed", res.Failed))
	return res, nil
}

func (s *AccountingService) recipients(ctx context.Context, chatID string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	add(chatID)

	cfg, err := repo.GetTelegramConfig(ctx, s.DB, domain.BotAccounting)
	switch {
	case err == nil && cfg.AdminChatID != "":
		add(cfg.AdminChatID)
	case err != nil && !errors.Is(err, repo.ErrNotFound):
		return nil, fmt.Errorf("load accounting config: %w", err)
	default:
		add(s.FallbackChatID)
	}

	chats, err := repo.ActiveAccountingChats(ctx, s.DB, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("list accounting chats: %w", err)
	}
	for _, c := range chats {
		add(c)
	}
	return out, nil
}
