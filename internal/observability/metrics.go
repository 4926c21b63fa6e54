package observability

import "github.com/prometheus/client_golang/prometheus"

// Domain collectors. Label values come from small fixed sets; never put
// chat ids or request ids in a label.
var (
	TelegramUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_updates_total",
			Help: "Telegram updates received, by bot, update kind and result.",
		},
		[]string{"bot", "kind", "result"},
	)

	WizardTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_transitions_total",
			Help: "Voluntary-return wizard transitions, by event.",
		},
		[]string{"event"},
	)

	DocumentsRendered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "documents_rendered_total",
			Help: "Petitions rendered, by output format.",
		},
		[]string{"format"},
	)

	NotificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Admin notifications, by request type and result.",
		},
		[]string{"type", "result"},
	)
)

func init() {
	prometheus.MustRegister(TelegramUpdates, WizardTransitions, DocumentsRendered, NotificationsSent)
}

// Result label values.
const (
	ResultOK        = "ok"
	ResultError     = "error"
	ResultDuplicate = "duplicate"
	ResultIgnored   = "ignored"
)

// ResultOf maps err to ResultOK or ResultError.
func ResultOf(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
