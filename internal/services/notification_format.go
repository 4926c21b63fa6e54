package services

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"
)

// Request types accepted by NotificationService.
const (
	TypeChatSupport               = "chat_support"
	TypeTranslation               = "translation"
	TypeInsurance                 = "insurance"
	TypeHealthInsurance           = "health_insurance"
	TypeVoluntaryReturn           = "voluntary_return"
	TypeHealthInsuranceActivation = "health_insurance_activation"
	TypeServiceRequest            = "service_request"
	TypeGeneralInquiry            = "general_inquiry"
)

// Priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// maxDescriptionRunes keeps the formatted message under the 4096 character
// limit of sendMessage.
const maxDescriptionRunes = 2500

type bilingual struct{ ar, en string }

func (b bilingual) in(lang string) string {
	if lang == "ar" {
		return b.ar
	}
	return b.en
}

type requestKind struct {
	emoji string
	title bilingual
	text  bilingual
}

var requestKinds = map[string]requestKind{
	TypeChatSupport:               {"💬", bilingual{"طلب دعم جديد", "New Support Request"}, bilingual{"دعم فني", "Chat Support"}},
	TypeTranslation:               {"🌐", bilingual{"طلب ترجمة جديد", "New Translation Request"}, bilingual{"ترجمة", "Translation"}},
	TypeInsurance:                 {"🛡️", bilingual{"طلب تأمين جديد", "New Insurance Request"}, bilingual{"تأمين", "Insurance"}},
	TypeHealthInsurance:           {"🏥", bilingual{"طلب تأمين صحي للأجانب", "Foreign Health Insurance Request"}, bilingual{"تأمين صحي للأجانب", "Foreign Health Insurance"}},
	TypeVoluntaryReturn:           {"🔄", bilingual{"طلب عودة طوعية", "Voluntary Return Request"}, bilingual{"عودة طوعية", "Voluntary Return"}},
	TypeHealthInsuranceActivation: {"🏥", bilingual{"طلب تفعيل تأمين صحي", "Health Insurance Activation"}, bilingual{"تفعيل تأمين صحي", "Health Insurance Activation"}},
	TypeServiceRequest:            {"📋", bilingual{"طلب خدمة جديد", "New Service Request"}, bilingual{"طلب خدمة", "Service Request"}},
	TypeGeneralInquiry:            {"❓", bilingual{"استفسار عام", "General Inquiry"}, bilingual{"استفسار عام", "General Inquiry"}},
}

// kindOf returns the presentation of t, treating unknown types as general
// inquiries.
func kindOf(t string) requestKind {
	if k, ok := requestKinds[t]; ok {
		return k
	}
	return requestKinds[TypeGeneralInquiry]
}

var serviceTypes = map[string]bilingual{
	"translation":         {"ترجمة", "Translation"},
	"insurance":           {"تأمين", "Insurance"},
	"consultation":        {"استشارات", "Consultation"},
	"government_services": {"خدمات حكومية", "Government Services"},
	"legal_services":      {"خدمات قانونية", "Legal Services"},
	"business_services":   {"خدمات تجارية", "Business Services"},
	"education_services":  {"خدمات تعليمية", "Education Services"},
	"health_services":     {"خدمات صحية", "Health Services"},
	"travel_services":     {"خدمات سفر", "Travel Services"},
	"support_message":     {"رسالة دعم", "Support Message"},
	"general_inquiry":     {"استفسار عام", "General Inquiry"},
	"other":               {"خدمات أخرى", "Other Services"},
}

func serviceTypeText(v, lang string) string {
	if b, ok := serviceTypes[v]; ok {
		return b.in(lang)
	}
	return v
}

type priorityInfo struct {
	emoji string
	text  bilingual
}

var priorities = map[string]priorityInfo{
	PriorityLow:    {"🟢", bilingual{"منخفضة", "Low"}},
	PriorityNormal: {"🟡", bilingual{"عادية", "Normal"}},
	PriorityHigh:   {"🔴", bilingual{"عالية", "High"}},
	PriorityUrgent: {"🚨", bilingual{"مستعجلة", "Urgent"}},
}

func priorityOf(p string) priorityInfo {
	if v, ok := priorities[p]; ok {
		return v
	}
	return priorities[PriorityNormal]
}

// Labels used in the message body.
var (
	lblClient         = bilingual{"معلومات العميل:", "Client Information:"}
	lblName           = bilingual{"الاسم:", "Name:"}
	lblEmail          = bilingual{"البريد الإلكتروني:", "Email:"}
	lblPhone          = bilingual{"رقم الهاتف:", "Phone:"}
	lblNotSpecified   = bilingual{"غير محدد", "Not specified"}
	lblDetails        = bilingual{"تفاصيل الطلب:", "Request Details:"}
	lblAdditional     = bilingual{"معلومات إضافية:", "Additional Info:"}
	lblServiceType    = bilingual{"نوع الخدمة:", "Service Type:"}
	lblPriority       = bilingual{"الأولوية:", "Priority:"}
	lblStatus         = bilingual{"الحالة:", "Status:"}
	lblPending        = bilingual{"معلق", "Pending"}
	lblFileAttached   = bilingual{"ملف مرفق:", "File attached:"}
	lblFile           = bilingual{"ملف", "File"}
	lblIdentity       = bilingual{"رقم الهوية:", "Identity Number:"}
	lblSession        = bilingual{"معرف الجلسة:", "Session ID:"}
	lblRequest        = bilingual{"معرف الطلب:", "Request ID:"}
	lblCaption        = bilingual{"📎 ملف مرفق مع الطلب", "📎 File attached with request"}
	lblNotified       = bilingual{"تم إرسال الإشعار بنجاح", "Notification sent successfully"}
	lblUrgentWarning  = bilingual{"هذه رسالة مستعجلة تتطلب رداً فورياً!", "This is an urgent message requiring immediate response!"}
	lblPassportAttach = bilingual{"مرفقة", "Attached"}
)

// extras reads loosely typed additionalData values.
type extras map[string]any

func (e extras) str(key string) string {
	switch v := e[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprint(v)
	}
}

func (e extras) truthy(key string) bool {
	switch v := e[key].(type) {
	case bool:
		return v
	case string:
		return v != "" && v != "false"
	case float64:
		return v != 0
	case int:
		return v != 0
	}
	return false
}

func (e extras) number(key string) float64 {
	switch v := e[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func clipRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}

// formatNotification renders the HTML body sent to the admin chat.
func formatNotification(n Notification) string {
	lang := n.Language
	k := kindOf(n.RequestType)
	p := priorityOf(n.Priority)
	esc := html.EscapeString
	orNA := func(v string) string {
		if v == "" {
			return lblNotSpecified.in(lang)
		}
		return esc(v)
	}
	var u UserInfo
	if n.UserInfo != nil {
		u = *n.UserInfo
	}
	status := n.Status
	if status == "" {
		status = lblPending.in(lang)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s <b>%s</b>\n\n", k.emoji, k.title.in(lang))
	fmt.Fprintf(&b, "👤 <b>%s</b>\n", lblClient.in(lang))
	fmt.Fprintf(&b, "• %s %s\n", lblName.in(lang), orNA(u.Name))
	fmt.Fprintf(&b, "• %s %s\n", lblEmail.in(lang), orNA(u.Email))
	fmt.Fprintf(&b, "• %s %s\n\n", lblPhone.in(lang), orNA(u.Phone))
	fmt.Fprintf(&b, "📝 <b>%s</b>\n%s\n\n", lblDetails.in(lang), esc(clipRunes(n.Message, maxDescriptionRunes)))
	fmt.Fprintf(&b, "📊 <b>%s</b>\n", lblAdditional.in(lang))
	fmt.Fprintf(&b, "• %s %s\n", lblServiceType.in(lang), k.text.in(lang))
	fmt.Fprintf(&b, "• %s %s %s\n", lblPriority.in(lang), p.emoji, p.text.in(lang))
	fmt.Fprintf(&b, "• %s %s\n", lblStatus.in(lang), esc(status))

	if len(n.AdditionalData) > 0 {
		writeDetails(&b, n.RequestType, lang, extras(n.AdditionalData))
	}

	if n.SessionID != "" {
		fmt.Fprintf(&b, "\n💬 <b>%s</b> <code>%s</code>", lblSession.in(lang), esc(n.SessionID))
	}
	if n.RequestID != "" {
		fmt.Fprintf(&b, "\n🆔 <b>%s</b> <code>%s</code>", lblRequest.in(lang), esc(n.RequestID))
	}
	return b.String()
}

// writeDetails appends the type-specific section.
func writeDetails(b *strings.Builder, typ, lang string, x extras) {
	esc := html.EscapeString
	section := func(emoji string, title bilingual) {
		fmt.Fprintf(b, "\n\n%s <b>%s</b>", emoji, title.in(lang))
	}
	line := func(label bilingual, value string) {
		fmt.Fprintf(b, "\n• %s %s", label.in(lang), value)
	}
	file := func() {
		if x.truthy("hasFile") {
			name := x.str("fileName")
			if name == "" {
				name = lblFile.in(lang)
			}
			line(lblFileAttached, esc(name))
		}
	}

	switch typ {
	case TypeTranslation:
		section("🌐", bilingual{"تفاصيل الترجمة:", "Translation Details:"})
		file()
		if v := x.str("serviceType"); v != "" {
			line(bilingual{"نوع الترجمة:", "Translation type:"}, esc(v))
		}
	case TypeInsurance:
		section("🛡️", bilingual{"تفاصيل التأمين:", "Insurance Details:"})
		file()
		if v := x.str("serviceType"); v != "" {
			line(bilingual{"نوع التأمين:", "Insurance type:"}, esc(v))
		}
	case TypeServiceRequest:
		section("📋", bilingual{"تفاصيل الخدمة:", "Service Details:"})
		if v := x.str("serviceType"); v != "" {
			line(bilingual{"نوع الخدمة:", "Service type:"}, esc(serviceTypeText(v, lang)))
		}
		file()
	case TypeHealthInsurance:
		section("🏥", bilingual{"تفاصيل التأمين الصحي:", "Health Insurance Details:"})
		if v := x.str("ageGroup"); v != "" {
			line(bilingual{"الفئة العمرية:", "Age Group:"}, esc(v))
		}
		if x.truthy("calculatedAge") {
			line(bilingual{"العمر المحسوب:", "Calculated Age:"}, esc(x.str("calculatedAge"))+" "+bilingual{"سنة", "years"}.in(lang))
		}
		if v := x.str("birthDate"); v != "" {
			line(bilingual{"تاريخ الميلاد:", "Birth Date:"}, esc(v))
		}
		if v := x.str("companyName"); v != "" {
			line(bilingual{"الشركة المطلوبة:", "Requested Company:"}, esc(v))
		}
		if x.truthy("durationMonths") {
			line(bilingual{"المدة المطلوبة:", "Duration:"}, esc(x.str("durationMonths"))+" "+bilingual{"شهر", "months"}.in(lang))
		}
		if x.truthy("calculatedPrice") {
			line(bilingual{"السعر المحسوب:", "Calculated Price:"}, esc(x.str("calculatedPrice"))+" "+bilingual{"ليرة تركية", "TL"}.in(lang))
		}
		if x.truthy("hasPassportImage") {
			line(bilingual{"صورة جواز السفر:", "Passport Image:"}, lblPassportAttach.in(lang))
		}
	case TypeVoluntaryReturn:
		section("🔄", bilingual{"تفاصيل العودة الطوعية:", "Voluntary Return Details:"})
		if v := x.str("kimlikNo"); v != "" {
			line(lblIdentity, esc(v))
		}
		if v := x.str("sinirKapisi"); v != "" {
			line(bilingual{"نقطة الحدود:", "Border Point:"}, esc(v))
		}
		if x.number("refakatCount") > 0 {
			line(bilingual{"عدد المرافقين:", "Number of companions:"}, x.str("refakatCount"))
		}
		if v := x.str("customDate"); v != "" {
			line(bilingual{"تاريخ مخصص:", "Custom date:"}, esc(v))
		}
	case TypeHealthInsuranceActivation:
		section("🏥", bilingual{"تفاصيل تفعيل التأمين الصحي:", "Health Insurance Activation Details:"})
		if v := x.str("kimlikNo"); v != "" {
			line(lblIdentity, esc(v))
		}
		if v := x.str("address"); v != "" {
			line(bilingual{"العنوان:", "Address:"}, esc(v))
		}
	case TypeChatSupport:
		section("💬", bilingual{"تفاصيل الدعم الفني:", "Support Details:"})
		if x.truthy("messageCount") {
			line(bilingual{"عدد الرسائل:", "Message count:"}, x.str("messageCount"))
		}
		if v := x.str("language"); v != "" {
			name := "English"
			if v == "ar" {
				name = "العربية"
			}
			line(bilingual{"اللغة:", "Language:"}, name)
		}
		if x.truthy("isUrgent") {
			fmt.Fprintf(b, "\n• ⚠️ %s", lblUrgentWarning.in(lang))
		}
	}
}
