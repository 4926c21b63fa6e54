package services

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/tevasul/tevasul-backend/internal/domain"
)

// routeRecorder implements every dispatcher handler and logs the calls.
type routeRecorder struct {
	calls       []string
	wizardClaim bool
	err         error
}

func (r *routeRecorder) Handle(_ context.Context, _ *tgbotapi.CallbackQuery) error {
	r.calls = append(r.calls, "callback")
	return r.err
}

func (r *routeRecorder) Start(_ context.Context, _ *tgbotapi.Message) error {
	r.calls = append(r.calls, "start")
	return r.err
}

func (r *routeRecorder) Reply(_ context.Context, _ *tgbotapi.Message) error {
	r.calls = append(r.calls, "reply")
	return r.err
}

func (r *routeRecorder) HandleText(_ context.Context, _ int64, text string) (bool, error) {
	r.calls = append(r.calls, "wizard:"+text)
	return r.wizardClaim, nil
}

type acctRecorder struct{ calls []string }

func (a *acctRecorder) Handle(_ context.Context, msg *tgbotapi.Message) error {
	a.calls = append(a.calls, "message:"+msg.Text)
	return nil
}

func (a *acctRecorder) HandleCallback(_ context.Context, q *tgbotapi.CallbackQuery) error {
	a.calls = append(a.calls, "callback:"+q.Data)
	return nil
}

func TestUpdateDispatcher_MainRouting(t *testing.T) {
	tests := []struct {
		name        string
		update      tgbotapi.Update
		wizardClaim bool
		want        []string
	}{
		{
			name:   "callback",
			update: tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{ID: "cb", Data: "mark_resolved:r1"}},
			want:   []string{"callback"},
		},
		{
			name:   "start command",
			update: tgbotapi.Update{Message: textMessage(5, "ali", "/start")},
			want:   []string{"start"},
		},
		{
			name:        "wizard claims text",
			update:      tgbotapi.Update{Message: textMessage(5, "ali", "Ahmet")},
			wizardClaim: true,
			want:        []string{"wizard:Ahmet"},
		},
		{
			name:   "unclaimed text goes to the linker",
			update: tgbotapi.Update{Message: textMessage(5, "ali", "hello")},
			want:   []string{"wizard:hello", "reply"},
		},
		{
			name:   "empty text is ignored",
			update: tgbotapi.Update{Message: textMessage(5, "ali", " ")},
			want:   nil,
		},
		{
			name:   "no message",
			update: tgbotapi.Update{},
			want:   nil,
		},
	}
	for i, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := &routeRecorder{wizardClaim: tc.wizardClaim}
			d := NewUpdateDispatcher(newTestDB(t), 0, rec, rec, rec, nil)
			tc.update.UpdateID = 100 + i
			if err := d.Dispatch(context.Background(), domain.BotMain, tc.update); err != nil {
				t.Fatalf("Dispatch: %v", err)
			}
			if diff := cmp.Diff(tc.want, rec.calls); diff != "" {
				t.Fatalf("calls (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUpdateDispatcher_Duplicate(t *testing.T) {
	rec := &routeRecorder{}
	d := NewUpdateDispatcher(newTestDB(t), 0, rec, rec, rec, nil)
	ctx := context.Background()
	u := tgbotapi.Update{UpdateID: 7, Message: textMessage(5, "ali", "/start")}

	if err := d.Dispatch(ctx, domain.BotMain, u); err != nil {
		t.Fatalf("first Dispatch: %v", err)
	}
	if err := d.Dispatch(ctx, domain.BotMain, u); !errors.Is(err, ErrDuplicateUpdate) {
		t.Fatalf("err = %v; want ErrDuplicateUpdate", err)
	}
	// Update ids are scoped per bot.
	if err := d.Dispatch(ctx, domain.BotAccounting, u); err != nil {
		t.Fatalf("accounting Dispatch: %v", err)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("calls = %v; want a single start", rec.calls)
	}
}

func TestUpdateDispatcher_HandlerErrorIsReturned(t *testing.T) {
	rec := &routeRecorder{err: errors.New("send failed")}
	d := NewUpdateDispatcher(newTestDB(t), 0, rec, rec, rec, nil)
	ctx := context.Background()
	u := tgbotapi.Update{UpdateID: 1, Message: textMessage(5, "ali", "/start")}

	if err := d.Dispatch(ctx, domain.BotMain, u); err == nil || err.Error() != "send failed" {
		t.Fatalf("err = %v", err)
	}
	// The claim is kept; a redelivery is not handled again.
	if err := d.Dispatch(ctx, domain.BotMain, u); !errors.Is(err, ErrDuplicateUpdate) {
		t.Fatalf("redelivery err = %v", err)
	}
}

func TestUpdateDispatcher_AccountingRouting(t *testing.T) {
	acct := &acctRecorder{}
	mainRec := &routeRecorder{}
	d := NewUpdateDispatcher(newTestDB(t), 0, mainRec, mainRec, mainRec, acct)
	ctx := context.Background()

	updates := []tgbotapi.Update{
		{UpdateID: 1, Message: textMessage(9, "boss", "/today")},
		{UpdateID: 2, CallbackQuery: &tgbotapi.CallbackQuery{ID: "x", Data: "acct:week"}},
		{UpdateID: 3},
	}
	for _, u := range updates {
		if err := d.Dispatch(ctx, domain.BotAccounting, u); err != nil {
			t.Fatalf("Dispatch(%d): %v", u.UpdateID, err)
		}
	}
	if diff := cmp.Diff([]string{"message:/today", "callback:acct:week"}, acct.calls); diff != "" {
		t.Fatalf("accounting calls (-want +got):\n%s", diff)
	}
	if len(mainRec.calls) != 0 {
		t.Fatalf("main handlers called: %v", mainRec.calls)
	}

	// Without an accounting handler the update is ignored, not failed.
	bare := NewUpdateDispatcher(newTestDB(t), 0, nil, nil, nil, nil)
	if err := bare.Dispatch(ctx, domain.BotAccounting, tgbotapi.Update{UpdateID: 4, Message: textMessage(9, "boss", "hi")}); err != nil {
		t.Fatalf("Dispatch without handler: %v", err)
	}
}
