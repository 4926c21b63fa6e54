package services

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tevasul/tevasul-backend/internal/domain"
)

var arabicMonths = [12]string{
	"يناير", "فبراير", "مارس", "أبريل", "مايو", "يونيو",
	"يوليو", "أغسطس", "سبتمبر", "أكتوبر", "نوفمبر", "ديسمبر",
}

func monthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return arabicMonths[m-1]
}

// formatMoney renders v as "TRY 1,234.56".
func formatMoney(v float64) string {
	p := message.NewPrinter(language.English)
	if v < 0 {
		return "-TRY " + p.Sprintf("%.2f", -v)
	}
	return "TRY " + p.Sprintf("%.2f", v)
}

type ledgerTotals struct {
	Income, Expense   float64
	IncomeN, ExpenseN int
}

func (t ledgerTotals) Net() float64 { return t.Income - t.Expense }
func (t ledgerTotals) Count() int   { return t.IncomeN + t.ExpenseN }

func totalsOf(txs []domain.AccountingTransaction) ledgerTotals {
	var t ledgerTotals
	for _, tx := range txs {
		switch tx.Type {
		case domain.TxIncome:
			t.Income += tx.Amount
			t.IncomeN++
		case domain.TxExpense:
			t.Expense += tx.Amount
			t.ExpenseN++
		}
	}
	return t
}

func categoryName(tx domain.AccountingTransaction) string {
	if tx.Category != nil && tx.Category.NameAR != "" {
		return tx.Category.NameAR
	}
	return "غير محدد"
}

func txIcon(tx domain.AccountingTransaction) string {
	if tx.Type == domain.TxIncome {
		return "📈"
	}
	return "📉"
}

type categoryTotal struct {
	Name   string
	Amount float64
}

// topCategories sums amounts of transactions of type typ per category and
// returns the n largest.
func topCategories(txs []domain.AccountingTransaction, typ string, n int) []categoryTotal {
	sums := map[string]float64{}
	for _, tx := range txs {
		if tx.Type == typ {
			sums[categoryName(tx)] += tx.Amount
		}
	}
	out := make([]categoryTotal, 0, len(sums))
	for name, amt := range sums {
		out = append(out, categoryTotal{Name: name, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// dayRange returns the business-day bounds of now in loc, expressed as the
// UTC midnights transaction dates are stored at.
func dayRange(now time.Time, loc *time.Location) (time.Time, time.Time) {
	l := now.In(loc)
	from := time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, 1)
}

func monthRange(year int, month time.Month) (time.Time, time.Time) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

func renderToday(day time.Time, txs []domain.AccountingTransaction) string {
	t := totalsOf(txs)
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>ملخص اليوم</b>\n\n📅 التاريخ: %s\n\n", day.Format("2006-01-02"))
	fmt.Fprintf(&b, "\n📈 <b>الإيرادات:</b> %s\n📉 <b>المصروفات:</b> %s\n💵 <b>صافي الربح:</b> %s\n",
		formatMoney(t.Income), formatMoney(t.Expense), formatMoney(t.Net()))
	fmt.Fprintf(&b, "\n📋 عدد المعاملات: %d", len(txs))
	if len(txs) > 0 {
		b.WriteString("\n\n<b>آخر المعاملات:</b>\n")
		for i, tx := range txs {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "\n%s %s - %s", txIcon(tx), formatMoney(tx.Amount), html.EscapeString(categoryName(tx)))
			if d := strings.TrimSpace(tx.DescriptionAR); d != "" {
				fmt.Fprintf(&b, "\n   %s", html.EscapeString(d))
			}
		}
	}
	return b.String()
}

func renderTransactions(txs []domain.AccountingTransaction) string {
	if len(txs) == 0 {
		return "📋 <b>آخر المعاملات</b>\n\nلا توجد معاملات حالياً"
	}
	var b strings.Builder
	b.WriteString("📋 <b>آخر المعاملات</b>\n\n")
	for i, tx := range txs {
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, txIcon(tx), formatMoney(tx.Amount))
		fmt.Fprintf(&b, "   📁 %s\n", html.EscapeString(categoryName(tx)))
		fmt.Fprintf(&b, "   📅 %s\n", tx.TransactionDate.Format("2006-01-02"))
		if d := strings.TrimSpace(tx.DescriptionAR); d != "" {
			fmt.Fprintf(&b, "   📝 %s\n", html.EscapeString(d))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeMonthTotals(b *strings.Builder, t ledgerTotals) {
	fmt.Fprintf(b, "📈 <b>إجمالي الإيرادات:</b> %s\n📉 <b>إجمالي المصروفات:</b> %s\n💵 <b>صافي الربح:</b> %s\n\n",
		formatMoney(t.Income), formatMoney(t.Expense), formatMoney(t.Net()))
	fmt.Fprintf(b, "📋 عدد المعاملات: %d\n", t.Count())
}

func renderMonthly(year int, month time.Month, txs []domain.AccountingTransaction) string {
	t := totalsOf(txs)
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>ملخص شهري</b>\n\n📅 %s %d\n\n", monthName(month), year)
	writeMonthTotals(&b, t)
	fmt.Fprintf(&b, "📈 عدد الإيرادات: %d\n📉 عدد المصروفات: %d", t.IncomeN, t.ExpenseN)
	return b.String()
}

func renderReport(year int, month time.Month, txs []domain.AccountingTransaction) string {
	t := totalsOf(txs)
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>تقرير شهري مفصل</b>\n\n📅 %s %d\n\n", monthName(month), year)
	writeMonthTotals(&b, t)
	b.WriteString("\n")
	section := func(title, typ string) {
		cats := topCategories(txs, typ, 5)
		if len(cats) == 0 {
			return
		}
		b.WriteString(title)
		for _, c := range cats {
			fmt.Fprintf(&b, "  • %s: %s\n", html.EscapeString(c.Name), formatMoney(c.Amount))
		}
		b.WriteString("\n")
	}
	section("<b>📈 الإيرادات حسب الفئة:</b>\n", domain.TxIncome)
	section("<b>📉 المصروفات حسب الفئة:</b>\n", domain.TxExpense)
	return strings.TrimRight(b.String(), "\n")
}

func renderStats(today, month, all ledgerTotals) string {
	var b strings.Builder
	b.WriteString("📊 <b>إحصائيات عامة</b>\n\n")
	fmt.Fprintf(&b, "<b>📅 اليوم:</b>\n  📈 الإيرادات: %s\n  📉 المصروفات: %s\n  💵 الصافي: %s\n\n",
		formatMoney(today.Income), formatMoney(today.Expense), formatMoney(today.Net()))
	fmt.Fprintf(&b, "<b>📅 هذا الشهر:</b>\n  📈 الإيرادات: %s\n  📉 المصروفات: %s\n  💵 الصافي: %s\n\n",
		formatMoney(month.Income), formatMoney(month.Expense), formatMoney(month.Net()))
	fmt.Fprintf(&b, "<b>📊 الإجمالي:</b>\n  📈 إجمالي الإيرادات: %s\n  📉 إجمالي المصروفات: %s\n  💵 إجمالي الصافي: %s\n\n",
		formatMoney(all.Income), formatMoney(all.Expense), formatMoney(all.Net()))
	fmt.Fprintf(&b, "📋 إجمالي المعاملات: %d", all.Count())
	return b.String()
}
