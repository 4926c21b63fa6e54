// Package telegram wraps the Bot API client used by both bots.
//
// Every outbound call first waits on a per-bot rate limiter and honors the
// caller's context while waiting. tgbotapi requests take no context, so a
// request already sent runs to completion; Poller stops waiting on an
// in-flight long poll instead. The underlying HTTP client retries
// transient network failures. Telegram-side rejections come back as
// *tgbotapi.Error and can be recognised with IsRejected.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Options configures New.
type Options struct {
	// Endpoint is the Bot API URL pattern with two %s (token, method).
	// Empty means the public Bot API.
	Endpoint   string
	HTTPClient *http.Client
	RPS        float64
	Burst      int
	// Name labels log lines, e.g. "main" or "accounting".
	Name string
}

// Client is a rate-limited Bot API client.
type Client struct {
	api     *tgbotapi.BotAPI
	limiter *rate.Limiter
	name    string
	log     zerolog.Logger
}

// New connects to the Bot API with token. It calls getMe once, so an
// invalid token fails here.
func New(token string, opts Options) (*Client, error) {
	if token == "" {
		return nil, errors.New("telegram: empty bot token")
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = BuildHTTPClient(45 * time.Second)
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, hc)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect %s bot: %w", opts.Name, err)
	}

	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		api:     api,
		limiter: rate.NewLimiter(limit, burst),
		name:    opts.Name,
		log:     loggerFor(opts.Name),
	}, nil
}

func loggerFor(bot string) zerolog.Logger {
	return log.With().Str("component", "telegram").Str("bot", bot).Logger()
}

// Username returns the bot's username as reported by getMe.
func (c *Client) Username() string { return c.api.Self.UserName }

// Name returns the label given in Options.
func (c *Client) Name() string { return c.name }

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram: rate limit wait: %w", err)
	}
	return nil
}

// IsRejected reports whether err is an error answer from the Bot API, as
// opposed to a transport failure.
func IsRejected(err error) bool {
	var apiErr *tgbotapi.Error
	return errors.As(err, &apiErr)
}

// SendText sends an HTML-formatted message and returns its message id.
// markup may be nil or any tgbotapi reply markup value.
func (c *Client) SendText(ctx context.Context, chatID int64, text string, markup any) (int, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	sent, err := c.api.Send(msg)
	if err != nil {
		c.log.Warn().Err(err).Int64("chat_id", chatID).Msg("sendMessage failed")
		return 0, fmt.Errorf("telegram: sendMessage: %w", err)
	}
	return sent.MessageID, nil
}

// SendDocument uploads data as a file named name. The caption is HTML.
func (c *Client) SendDocument(ctx context.Context, chatID int64, name string, data []byte, caption string) (int, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption
	doc.ParseMode = tgbotapi.ModeHTML
	sent, err := c.api.Send(doc)
	if err != nil {
		c.log.Warn().Err(err).Int64("chat_id", chatID).Str("file", name).Msg("sendDocument failed")
		return 0, fmt.Errorf("telegram: sendDocument: %w", err)
	}
	return sent.MessageID, nil
}

// AnswerCallback acknowledges a callback query.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	cb := tgbotapi.NewCallback(callbackID, text)
	cb.ShowAlert = alert
	if _, err := c.api.Request(cb); err != nil {
		return fmt.Errorf("telegram: answerCallbackQuery: %w", err)
	}
	return nil
}

// EditText replaces the text and inline keyboard of a sent message.
func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.ReplyMarkup = markup
	if _, err := c.api.Request(edit); err != nil {
		return fmt.Errorf("telegram: editMessageText: %w", err)
	}
	return nil
}

// SetWebhook points the bot at url. secret is echoed by Telegram in the
// X-Telegram-Bot-Api-Secret-Token header of every delivery.
func (c *Client) SetWebhook(ctx context.Context, url, secret string, dropPending bool) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	params.AddBool("drop_pending_updates", dropPending)
	if _, err := c.api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("telegram: setWebhook: %w", err)
	}
	return nil
}

// DeleteWebhook removes the webhook so getUpdates can be used.
func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: dropPending}); err != nil {
		return fmt.Errorf("telegram: deleteWebhook: %w", err)
	}
	return nil
}

// WebhookInfo returns the current webhook status.
func (c *Client) WebhookInfo(ctx context.Context) (tgbotapi.WebhookInfo, error) {
	if err := c.wait(ctx); err != nil {
		return tgbotapi.WebhookInfo{}, err
	}
	info, err := c.api.GetWebhookInfo()
	if err != nil {
		return tgbotapi.WebhookInfo{}, fmt.Errorf("telegram: getWebhookInfo: %w", err)
	}
	return info, nil
}

// Me calls getMe.
func (c *Client) Me(ctx context.Context) (tgbotapi.User, error) {
	if err := c.wait(ctx); err != nil {
		return tgbotapi.User{}, err
	}
	u, err := c.api.GetMe()
	if err != nil {
		return tgbotapi.User{}, fmt.Errorf("telegram: getMe: %w", err)
	}
	return u, nil
}

// SetCommands replaces the bot's command menu.
func (c *Client) SetCommands(ctx context.Context, cmds []tgbotapi.BotCommand) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewSetMyCommands(cmds...)); err != nil {
		return fmt.Errorf("telegram: setMyCommands: %w", err)
	}
	return nil
}

// GetUpdates long-polls for updates starting at offset. Once sent, the
// request is not cut short by ctx and may take up to timeoutSec.
func (c *Client) GetUpdates(ctx context.Context, offset, timeoutSec int) ([]tgbotapi.Update, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	u := tgbotapi.NewUpdate(offset)
	u.Timeout = timeoutSec
	u.AllowedUpdates = []string{"message", "callback_query"}
	updates, err := c.api.GetUpdates(u)
	if err != nil {
		return nil, fmt.Errorf("telegram: getUpdates: %w", err)
	}
	return updates, nil
}
