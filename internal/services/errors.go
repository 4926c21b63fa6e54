// Package services holds the business logic of the Tevasul backend: the
// Telegram wizard, admin notifications, callbacks, the accounting bot, the
// support chat and moderator administration.
//
// This file centralizes the service-level error values so that handlers can
// map them to HTTP codes and webhook replies consistently. Translation into
// user-facing text happens at the handler layer or, for Telegram, in the
// service that owns the conversation.
package services

import "errors"

// Telegram and dispatch errors.
var (
	// ErrDuplicateUpdate is returned by UpdateDispatcher.Dispatch when the
	// update_id was already claimed for the same bot.
	ErrDuplicateUpdate = errors.New("duplicate telegram update")

	// ErrTelegramDisabled means no enabled bot or admin chat is configured.
	ErrTelegramDisabled = errors.New("telegram not configured")

	// ErrSessionNotFound indicates the wizard or support session does not
	// exist or is no longer active.
	ErrSessionNotFound = errors.New("session not found")
)

// Request resolver errors.
var (
	ErrRequestNotFound = errors.New("request not found")
	ErrInvalidStatus   = errors.New("invalid request status")
	ErrMissingID       = errors.New("request id is required")
)

// Notification errors.
var (
	ErrEmptyMessage      = errors.New("message is empty")
	ErrNoRecipients      = errors.New("no recipients configured")
	ErrInvalidAttachment = errors.New("attachment is not valid base64")
)

// Support chat errors.
var (
	ErrTooLong         = errors.New("message too long")
	ErrSessionClosed   = errors.New("session is closed")
	ErrInvalidLanguage = errors.New("language must be ar, en or tr")
	ErrMissingVisitor  = errors.New("visitor id is required")
)

// Staff and accounting errors.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrNotAdmin           = errors.New("user is not an admin")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrCannotDemoteAdmin  = errors.New("admins cannot be demoted here")
)
