package handlers

// Error codes carried in ErrorResponse.Code. Clients branch on these, so
// they never change once published.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	ErrCodeValidation          = "validation_failed"
	ErrCodeTelegramUnavailable = "telegram_unavailable"
	ErrCodeNotifyFailed        = "notify_failed"
	ErrCodeRenderFailed        = "render_failed"
	ErrCodeSessionClosed       = "session_closed"
	ErrCodeAnswerFailed        = "answer_failed"
	ErrCodeListFailed          = "list_failed"
)
