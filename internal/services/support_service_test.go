package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tevasul/tevasul-backend/internal/domain"
	"github.com/tevasul/tevasul-backend/internal/repo"
	"github.com/tevasul/tevasul-backend/internal/search"
)

type fakeIndex struct {
	byQuery map[string][]search.Result
}

func (f *fakeIndex) TopK(q string, k int) []search.Result {
	rs := f.byQuery[q]
	if len(rs) > k {
		rs = rs[:k]
	}
	out := make([]search.Result, len(rs))
	copy(out, rs)
	return out
}

func (f *fakeIndex) Len() int { return len(f.byQuery) }

const faqQuestion = "what are your opening hours"

func newSupportFixture(t *testing.T) (*SupportService, *fakeNotifier) {
	t.Helper()
	idx := &fakeIndex{byQuery: map[string][]search.Result{
		faqQuestion:  {{Question: "Opening hours", Snippet: "We are open 9-18 on weekdays.", Score: 0.8}},
		"weak match": {{Question: "Opening hours", Snippet: "We are open 9-18 on weekdays.", Score: 0.1}},
	}}
	n := &fakeNotifier{}
	return NewSupportService(newTestDB(t), idx, 0.3, n, time.Hour), n
}

func TestSupportService_OpenSession(t *testing.T) {
	svc, _ := newSupportFixture(t)
	ctx := context.Background()

	sess, err := svc.OpenSession(ctx, "visitor-1", "", "how do I renew my residence permit?")
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if sess.Language != "ar" || sess.Status != domain.SupportOpen {
		t.Fatalf("session = %+v", sess)
	}
	if sess.Title != "Renew Residence Permit" {
		t.Fatalf("title = %q", sess.Title)
	}

	tr, err := svc.OpenSession(ctx, "visitor-2", "TR", "")
	if err != nil || tr.Title != "Destek sohbeti" || tr.Language != "tr" {
		t.Fatalf("OpenSession(tr) = %+v, %v", tr, err)
	}

	if _, err := svc.OpenSession(ctx, " ", "en", ""); !errors.Is(err, ErrMissingVisitor) {
		t.Fatalf("err = %v; want ErrMissingVisitor", err)
	}
	if _, err := svc.OpenSession(ctx, "v", "fr", ""); !errors.Is(err, ErrInvalidLanguage) {
		t.Fatalf("err = %v; want ErrInvalidLanguage", err)
	}
}

func TestGenerateTitle_ClipsAndLimitsWords(t *testing.T) {
	svc := &SupportService{TitleMaxLen: 12}
	if got := svc.generateTitle("alpha beta gamma delta epsilon zeta eta theta", "en"); got != "Alpha Beta G" {
		t.Fatalf("title = %q", got)
	}
	svc.TitleMaxLen = 200
	if got := svc.generateTitle("one two three four five six seven", "en"); got != "One Two Three Four Five Six" {
		t.Fatalf("title = %q", got)
	}
	if got := svc.generateTitle("?!", "en"); got != "" {
		t.Fatalf("title = %q; want empty", got)
	}
}

func TestSupportService_Post_Answered(t *testing.T) {
	svc, n := newSupportFixture(t)
	ctx := context.Background()
	sess, _ := svc.OpenSession(ctx, "v", "en", "")

	res, err := svc.Post(ctx, sess.ID, "  "+faqQuestion+" ", "")
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if res.Escalated || res.User == nil || res.Reply == nil {
		t.Fatalf("result = %+v", res)
	}
	if res.Reply.Sender != domain.SenderBot || res.Reply.Score == nil || *res.Reply.Score != 0.8 {
		t.Fatalf("reply = %+v", res.Reply)
	}
	if res.User.Content != faqQuestion {
		t.Fatalf("user content = %q", res.User.Content)
	}
	if len(n.got) != 0 {
		t.Fatalf("notified on an answered question")
	}
}

func TestSupportService_Post_EscalatesOnMiss(t *testing.T) {
	svc, n := newSupportFixture(t)
	ctx := context.Background()
	sess, _ := svc.OpenSession(ctx, "v", "en", "")

	res, err := svc.Post(ctx, sess.ID, "weak match", "")
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if !res.Escalated || res.Reply == nil || res.Reply.Content != handoffReply["en"] {
		t.Fatalf("result = %+v", res)
	}
	got, _ := repo.GetChatSession(ctx, svc.DB, sess.ID)
	if got.Status != domain.SupportEscalated {
		t.Fatalf("status = %s", got.Status)
	}
	if len(n.got) != 1 {
		t.Fatalf("notifications = %d", len(n.got))
	}
	note := n.got[0]
	if note.RequestType != TypeChatSupport || note.SessionID != sess.ID || note.Priority != PriorityNormal {
		t.Fatalf("notification = %+v", note)
	}
	if note.AdditionalData["messageCount"] != float64(2) || note.AdditionalData["isUrgent"] != false {
		t.Fatalf("additional = %v", note.AdditionalData)
	}

	// Once escalated the bot stays quiet and does not notify again.
	res, err = svc.Post(ctx, sess.ID, faqQuestion, "")
	if err != nil || res.Reply != nil || res.Escalated {
		t.Fatalf("post after escalation = %+v, %v", res, err)
	}
	if len(n.got) != 1 {
		t.Fatalf("notified again: %d", len(n.got))
	}
}

func TestSupportService_Post_HumanRequestIsUrgent(t *testing.T) {
	svc, n := newSupportFixture(t)
	ctx := context.Background()
	sess, _ := svc.OpenSession(ctx, "v", "ar", "")

	res, err := svc.Post(ctx, sess.ID, "أريد التحدث مع موظف، الأمر عاجل", "")
	if err != nil || !res.Escalated {
		t.Fatalf("Post = %+v, %v", res, err)
	}
	if n.got[0].Priority != PriorityUrgent || n.got[0].AdditionalData["isUrgent"] != true || n.got[0].Language != "ar" {
		t.Fatalf("notification = %+v", n.got[0])
	}
}

func TestSupportService_Post_Idempotent(t *testing.T) {
	svc, _ := newSupportFixture(t)
	ctx := context.Background()
	sess, _ := svc.OpenSession(ctx, "v", "en", "")

	first, err := svc.Post(ctx, sess.ID, faqQuestion, "key-1")
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	again, err := svc.Post(ctx, sess.ID, faqQuestion, "key-1")
	if err != nil {
		t.Fatalf("Post again: %v", err)
	}
	if !again.Replayed || again.Reply == nil || again.Reply.ID != first.Reply.ID {
		t.Fatalf("replay = %+v; want reply %s", again, first.Reply.ID)
	}
	count, _ := repo.CountChatMessages(ctx, svc.DB, sess.ID)
	if count != 2 {
		t.Fatalf("messages = %d; want 2", count)
	}
}

func TestSupportService_Post_Validation(t *testing.T) {
	svc, _ := newSupportFixture(t)
	ctx := context.Background()
	sess, _ := svc.OpenSession(ctx, "v", "en", "")
	svc.MaxMessageRunes = 5

	if _, err := svc.Post(ctx, sess.ID, " ", ""); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("err = %v; want ErrEmptyMessage", err)
	}
	if _, err := svc.Post(ctx, sess.ID, "مرحبا بكم", ""); !errors.Is(err, ErrTooLong) {
		t.Fatalf("err = %v; want ErrTooLong", err)
	}
	if _, err := svc.Post(ctx, "missing", "hi", ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v; want ErrSessionNotFound", err)
	}
	if _, err := repo.SetChatSessionStatus(ctx, svc.DB, sess.ID, domain.SupportClosed); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := svc.Post(ctx, sess.ID, "hi", ""); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("err = %v; want ErrSessionClosed", err)
	}
}

func TestSupportService_ListMessages_And_ETag(t *testing.T) {
	svc, _ := newSupportFixture(t)
	ctx := context.Background()
	sess, _ := svc.OpenSession(ctx, "v", "en", "")

	empty, total, err := svc.ListMessages(ctx, sess.ID, 0, 0)
	if err != nil || total != 0 || len(empty) != 0 {
		t.Fatalf("ListMessages(empty) = %v, %d, %v", empty, total, err)
	}
	tag0, err := svc.ETag(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ETag: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := svc.Post(ctx, sess.ID, faqQuestion, ""); err != nil {
			t.Fatalf("Post: %v", err)
		}
	}
	items, total, err := svc.ListMessages(ctx, sess.ID, 2, 3)
	if err != nil || total != 4 || len(items) != 1 {
		t.Fatalf("ListMessages(page 2) = %d items, total %d, %v", len(items), total, err)
	}
	tag1, _ := svc.ETag(ctx, sess.ID)
	if tag1 == tag0 || !strings.HasPrefix(tag1, `W/"`) {
		t.Fatalf("etag %q -> %q", tag0, tag1)
	}

	if _, _, err := svc.ListMessages(ctx, "missing", 1, 10); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v; want ErrSessionNotFound", err)
	}
}
