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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Invoice errors.
var (
	ErrMissingInvoice = errors.New("invoice html is required")
	ErrPDFUnavailable = errors.New("no pdf converter configured")
)

const (
	invoiceCaption  = "📄 <b>فاتورة جديدة</b>\n\nرقم الفاتورة: <b>%s</b>"
	invoiceNoNumber = "غير محدد"
)

// HTMLConverter turns an HTML page into PDF bytes.
type HTMLConverter interface {
	ConvertHTML(ctx context.Context, html []byte) ([]byte, error)
}

// Invoice is an HTML invoice to deliver as a PDF.
type Invoice struct {
	HTML   string
	Number string
	// ChatID, when set, receives the invoice besides the usual recipients.
	ChatID string
}

var unsafeFileChars = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

func invoiceFileName(number string) string {
	n := strings.Trim(unsafeFileChars.ReplaceAllString(strings.TrimSpace(number), "_"), "_")
	if n == "" {
		n = "invoice"
	}
	return "invoice_" + n + ".pdf"
}

// SendInvoice converts inv to PDF and sends it to the broadcast
// recipients. The PDF is converted once, and only after the recipients
// are known.
func (s *AccountingService) SendInvoice(ctx context.Context, inv Invoice) (BroadcastResult, error) {
	ctx, span := otel.Tracer("services/AccountingService").Start(ctx, "SendInvoice",
		trace.WithAttributes(attribute.String("invoice.number", inv.Number)),
	)
	defer span.End()

	if strings.TrimSpace(inv.HTML) == "" {
		return BroadcastResult{}, ErrMissingInvoice
	}
	if s.PDF == nil {
		return BroadcastResult{}, ErrPDFUnavailable
	}
	recipients, err := s.recipients(ctx, inv.ChatID)
	if err != nil {
		return BroadcastResult{}, err
	}
	if len(recipients) == 0 {
		return BroadcastResult{}, ErrNoRecipients
	}

	pdf, err := s.PDF.ConvertHTML(ctx, []byte(inv.HTML))
	if err != nil {
		span.RecordError(err)
		return BroadcastResult{}, fmt.Errorf("convert invoice: %w", err)
	}

	number := strings.TrimSpace(inv.Number)
	if number == "" {
		number = invoiceNoNumber
	}
	caption := fmt.Sprintf(invoiceCaption, html.EscapeString(number))
	name := invoiceFileName(inv.Number)

	res := s.deliver(recipients, func(id int64) error {
		_, err := s.Bot.SendDocument(ctx, id, name, pdf, caption)
		return err
	})
	span.SetAttributes(attribute.Int("invoice.sent", res.SentTo), attribute.Int("invoice.failed", res.Failed))
	s.log.Info().Str("invoice", name).Int("sent_to", res.SentTo).Int("failed", res.Failed).Msg("invoice delivered")
	return res, nil
}

// SendDailyReport pushes today's summary to the broadcast recipients.
func (s *AccountingService) SendDailyReport(ctx context.Context) (BroadcastResult, error) {
	text, err := s.today(ctx)
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("daily report: %w", err)
	}
	return s.Broadcast(ctx, text, "")
}

// SendMonthlyReport pushes the detailed report of month to the broadcast
// recipients. A zero year or month means the current one.
func (s *AccountingService) SendMonthlyReport(ctx context.Context, year int, month time.Month) (BroadcastResult, error) {
	now := s.now().In(s.loc())
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = now.Month()
	}
	text, err := s.monthly(ctx, year, month, true)
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("monthly report: %w", err)
	}
	return s.Broadcast(ctx, text, "")
}

// deliver calls send once per recipient and counts the outcome. Chat ids
// that are not numeric count as failures.
func (s *AccountingService) deliver(recipients []string, send func(int64) error) BroadcastResult {
	res := BroadcastResult{Recipients: len(recipients)}
	for _, r := range recipients {
		id, err := strconv.ParseInt(r, 10, 64)
		if err == nil {
			err = send(id)
		}
		if err != nil {
			s.log.Warn().Err(err).Str("chat_id", r).Msg("accounting delivery failed")
			res.Failed++
			continue
		}
		res.SentTo++
	}
	return res
}

// ReportSchedule decides when the scheduled reports are due: the daily
// summary once per local day after At, and on the 1st the detailed
// report of the month before. The zero value never fires.
type ReportSchedule struct {
	At       time.Duration // offset from local midnight
	Location *time.Location
	Enabled  bool

	lastDaily   string
	lastMonthly string
}

// Due reports which pushes are owed at now and marks them as sent. The
// year and month name the monthly report.
func (r *ReportSchedule) Due(now time.Time) (daily, monthly bool, year int, month time.Month) {
	if !r.Enabled {
		return false, false, 0, 0
	}
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	l := now.In(loc)
	midnight := time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
	if l.Sub(midnight) < r.At {
		return false, false, 0, 0
	}
	if day := l.Format(time.DateOnly); r.lastDaily != day {
		r.lastDaily = day
		daily = true
	}
	if l.Day() == 1 {
		prev := midnight.AddDate(0, -1, 0)
		if key := prev.Format("2006-01"); r.lastMonthly != key {
			r.lastMonthly = key
			monthly, year, month = true, prev.Year(), prev.Month()
		}
	}
	return daily, monthly, year, month
}
