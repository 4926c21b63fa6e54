package telegram

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// UpdateHandler processes one update. Errors are logged by the poller.
type UpdateHandler func(ctx context.Context, u tgbotapi.Update) error

// Updater is the part of Client the poller needs.
type Updater interface {
	GetUpdates(ctx context.Context, offset, timeoutSec int) ([]tgbotapi.Update, error)
}

// Poller long-polls getUpdates and hands each update to Handle in order.
type Poller struct {
	Client  Updater
	Handle  UpdateHandler
	Timeout int           // long-poll timeout in seconds, default 30
	Backoff time.Duration // pause after a failed poll, default 3s
	Name    string
}

// Run polls until ctx is done and returns as soon as it is, even while a
// long poll is still in flight. It acknowledges an update by moving the
// offset past it whether or not Handle succeeded, so a failing update is
// not redelivered forever.
func (p *Poller) Run(ctx context.Context) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 30
	}
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = 3 * time.Second
	}
	logger := loggerFor(p.Name)
	logger.Info().Int("timeout", timeout).Msg("long polling started")

	offset := 0
	for {
		if ctx.Err() != nil {
			logger.Info().Msg("long polling stopped")
			return nil
		}
		updates, err := p.poll(ctx, offset, timeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Warn().Err(err).Dur("backoff", backoff).Msg("getUpdates failed")
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if err := p.Handle(ctx, u); err != nil {
				logger.Error().Err(err).Int("update_id", u.UpdateID).Msg("update handler failed")
			}
		}
	}
}

type pollResult struct {
	updates []tgbotapi.Update
	err     error
}

// poll runs one getUpdates call and stops waiting for it when ctx is done.
// The request itself cannot be cancelled; it finishes in the background and
// whatever it fetched stays unacknowledged for the next poll.
func (p *Poller) poll(ctx context.Context, offset, timeout int) ([]tgbotapi.Update, error) {
	ch := make(chan pollResult, 1)
	go func() {
		updates, err := p.Client.GetUpdates(ctx, offset, timeout)
		ch <- pollResult{updates: updates, err: err}
	}()
	select {
	case r := <-ch:
		return r.updates, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
