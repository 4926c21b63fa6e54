package wizard

import "fmt"

// Choice is one button offered with a prompt.
type Choice struct {
	Label  string
	Action string
	Value  string
}

// Prompt is the message sent to the user for a state.
type Prompt struct {
	Text    string
	Choices []Choice
	PerRow  int
	// Cancelable prompts carry a cancel button.
	Cancelable bool
}

var validationMessages = map[string]string{
	CodeNameLength:          "⚠️ يجب أن يتكون الاسم من 3 إلى 100 حرف.",
	CodeNameArabic:          "⚠️ يرجى كتابة الاسم بالأحرف العربية.",
	CodeKimlikLength:        "⚠️ رقم الكيمليك يجب أن يتكون من 11 رقماً بالضبط.",
	CodeGSMLength:           "⚠️ رقم الهاتف يجب أن يتكون من 10 إلى 15 رقماً.",
	CodeCompanionsRange:     "⚠️ أرسل عدداً صحيحاً بين 0 و 20.",
	CodeCompanionNameLength: "⚠️ يجب أن يتكون اسم المرافق من حرفين إلى 100 حرف.",
	CodeBorderUnknown:       "⚠️ يرجى اختيار نقطة العبور من القائمة.",
	CodeDateFormat:          "⚠️ صيغة التاريخ غير صحيحة. استخدم DD.MM.YYYY مثل 15.03.2026.",
	CodeDateRange:           "⚠️ التاريخ خارج النطاق المسموح (السنة بين 2025 و 2030).",
	CodeChoiceRequired:      "⚠️ يرجى الاختيار من الأزرار أو كتابة التاريخ.",
}

const (
	textCompleted = "✅ تم استلام جميع البيانات. جارٍ إعداد عريضة العودة الطوعية..."
	textCancelled = "❌ تم إلغاء الطلب. أرسل /start للبدء من جديد."
)

// PromptFor returns the message that asks for the input st is waiting for.
func PromptFor(st State, cat *Catalog) Prompt {
	switch s := st.(type) {
	case AwaitingName:
		return Prompt{Text: "الخطوة 1: أرسل اسمك الكامل بالأحرف اللاتينية (كما في الكيمليك).", Cancelable: true}
	case AwaitingNameAR:
		return Prompt{Text: "الخطوة 2: أرسل اسمك الكامل بالعربية.", Cancelable: true}
	case AwaitingKimlik:
		return Prompt{Text: "الخطوة 3: أرسل رقم الكيمليك (11 رقماً).", Cancelable: true}
	case AwaitingGSM:
		return Prompt{Text: "الخطوة 4: أرسل رقم هاتفك.", Cancelable: true}
	case AwaitingCompanions:
		return Prompt{Text: "الخطوة 5: كم عدد المرافقين؟ (0 إذا لا يوجد، الحد الأقصى 20)", Cancelable: true}
	case AwaitingCompanionKimlik:
		return Prompt{
			Text:       fmt.Sprintf("المرافق %d من %d: أرسل رقم الكيمليك (11 رقماً).", len(s.Collected)+1, s.Total),
			Cancelable: true,
		}
	case AwaitingCompanionName:
		return Prompt{
			Text:       fmt.Sprintf("المرافق %d من %d: أرسل الاسم الكامل.", len(s.Collected)+1, s.Total),
			Cancelable: true,
		}
	case AwaitingBorder:
		choices := make([]Choice, 0, len(cat.All))
		for _, b := range cat.All {
			choices = append(choices, Choice{Label: b.NameTR + " - " + b.NameAR, Action: ActionBorder, Value: b.Key})
		}
		return Prompt{Text: "الخطوة 6: اختر نقطة العبور الحدودية:", Choices: choices, PerRow: 2, Cancelable: true}
	case AwaitingDateChoice:
		return Prompt{
			Text: "الخطوة 7: اختر تاريخ الطلب:",
			Choices: []Choice{
				{Label: "📅 اليوم", Action: ActionDate, Value: ValueToday},
				{Label: "✏️ تاريخ آخر", Action: ActionDate, Value: ValueCustom},
			},
			PerRow:     2,
			Cancelable: true,
		}
	case AwaitingDateInput:
		return Prompt{Text: "أرسل التاريخ بصيغة DD.MM.YYYY (مثال: 15.03.2026).", Cancelable: true}
	case Completed:
		return Prompt{Text: textCompleted}
	case Cancelled:
		return Prompt{Text: textCancelled}
	}
	return Prompt{}
}

// Reprompt joins the diagnostic of v with the prompt of st.
func Reprompt(st State, v *ValidationError, cat *Catalog) Prompt {
	p := PromptFor(st, cat)
	if v != nil && v.Message != "" {
		p.Text = v.Message + "\n\n" + p.Text
	}
	return p
}
