// Package services – SupportService
//
// This file implements the website support chat. A visitor opens a session
// and posts messages; each message is answered from the FAQ index when the
// best match reaches the configured threshold. Otherwise, or when the
// visitor asks for a person, the session is escalated to staff and a
// chat_support notification goes to the admin chat.
//
// Message posts are idempotent per (session, Idempotency-Key): a retried
// request returns the message produced the first time.
//
// Observability: public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AlekSi/pointer"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tevasul/tevasul-backend/internal/domain"
	"github.com/tevasul/tevasul-backend/internal/repo"
	"github.com/tevasul/tevasul-backend/internal/search"
)

var supportLanguages = map[string]language.Tag{
	"ar": language.Arabic,
	"en": language.English,
	"tr": language.Turkish,
}

var (
	defaultTitles = map[string]string{"ar": "محادثة دعم", "en": "Support chat", "tr": "Destek sohbeti"}
	handoffReply  = map[string]string{
		"ar": "سيتم تحويل محادثتك إلى أحد موظفينا وسيتواصل معك قريباً.",
		"en": "We are forwarding your conversation to our team. Someone will reply shortly.",
		"tr": "Görüşmeniz ekibimize iletiliyor. En kısa sürede size dönüş yapılacak.",
	}
)

// Phrases, in normalized form, that ask for a person or signal urgency.
var (
	humanPhrases  = []string{"human", "agent", "operator", "real person", "موظف", "انسان", "شخص حقيقي", "خدمه العملاء", "temsilci", "canli destek", "yetkili"}
	urgentPhrases = []string{"urgent", "asap", "emergency", "عاجل", "مستعجل", "طارئ", "acil"}
)

func containsAnyPhrase(normalized string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(normalized, search.Normalize(p)) {
			return true
		}
	}
	return false
}

// PostResult is what Post produced. On a replay only the stored message is
// set, in User or Reply depending on its sender.
type PostResult struct {
	User      *domain.ChatMessage
	Reply     *domain.ChatMessage
	Escalated bool
	Replayed  bool
}

// SupportService runs the support chat.
type SupportService struct {
	DB        *gorm.DB
	Index     search.Index
	Threshold float64
	Notifier  AdminNotifier // optional

	MaxMessageRunes int
	IdempotencyTTL  time.Duration
	TitleMaxLen     int

	log zerolog.Logger
}

// NewSupportService wires a SupportService with default limits.
func NewSupportService(db *gorm.DB, idx search.Index, threshold float64, notifier AdminNotifier, idemTTL time.Duration) *SupportService {
	return &SupportService{
		DB:              db,
		Index:           idx,
		Threshold:       threshold,
		Notifier:        notifier,
		MaxMessageRunes: 2000,
		IdempotencyTTL:  idemTTL,
		TitleMaxLen:     60,
		log:             log.With().Str("component", "support").Logger(),
	}
}

// OpenSession starts a session for visitorID. An empty language means
// Arabic. The title is built from firstMessage when given.
func (s *SupportService) OpenSession(ctx context.Context, visitorID, lang, firstMessage string) (*domain.ChatSession, error) {
	ctx, span := otel.Tracer("services/SupportService").Start(ctx, "OpenSession",
		trace.WithAttributes(attribute.String("support.language", lang)),
	)
	defer span.End()

	visitorID = strings.TrimSpace(visitorID)
	if visitorID == "" {
		return nil, ErrMissingVisitor
	}
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		lang = "ar"
	}
	if _, ok := supportLanguages[lang]; !ok {
		return nil, ErrInvalidLanguage
	}
	title := s.generateTitle(firstMessage, lang)
	if title == "" {
		title = defaultTitles[lang]
	}
	return repo.CreateChatSession(ctx, s.DB, visitorID, lang, title)
}

// Session returns the session with id.
func (s *SupportService) Session(ctx context.Context, id string) (*domain.ChatSession, error) {
	sess, err := repo.GetChatSession(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	return sess, err
}

// Post stores a visitor message and answers it. idemKey may be empty.
func (s *SupportService) Post(ctx context.Context, sessionID, content, idemKey string) (*PostResult, error) {
	ctx, span := otel.Tracer("services/SupportService").Start(ctx, "Post",
		trace.WithAttributes(
			attribute.String("support.session_id", sessionID),
			attribute.Bool("idempotency.key", idemKey != ""),
		),
	)
	defer span.End()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(content) > s.MaxMessageRunes {
		return nil, ErrTooLong
	}

	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == domain.SupportClosed {
		return nil, ErrSessionClosed
	}

	if idemKey != "" {
		if res, ok, err := s.replay(ctx, sessionID, idemKey); err != nil || ok {
			return res, err
		}
	}

	norm := search.Normalize(content)
	wantsHuman := containsAnyPhrase(norm, humanPhrases)
	var (
		hit   search.Result
		found bool
	)
	if sess.Status == domain.SupportOpen && !wantsHuman {
		hit, found = search.Best(s.Index, content, s.Threshold)
	}
	escalate := sess.Status == domain.SupportOpen && !found
	span.SetAttributes(attribute.Bool("support.answered", found), attribute.Bool("support.escalated", escalate))

	res := &PostResult{Escalated: escalate}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := repo.CreateChatMessage(ctx, tx, sessionID, domain.SenderUser, content, nil)
		if err != nil {
			return err
		}
		res.User = user
		resultID := user.ID

		switch {
		case found:
			reply, err := repo.CreateChatMessage(ctx, tx, sessionID, domain.SenderBot, hit.Snippet, pointer.ToFloat64(hit.Score))
			if err != nil {
				return err
			}
			res.Reply, resultID = reply, reply.ID
		case escalate:
			reply, err := repo.CreateChatMessage(ctx, tx, sessionID, domain.SenderBot, handoffReply[sess.Language], nil)
			if err != nil {
				return err
			}
			res.Reply, resultID = reply, reply.ID
			if _, err := repo.SetChatSessionStatus(ctx, tx, sessionID, domain.SupportEscalated); err != nil {
				return err
			}
		}

		if err := repo.TouchChatSession(ctx, tx, sessionID); err != nil {
			return err
		}
		if idemKey != "" {
			if _, err := repo.CreateIdempotency(ctx, tx, sessionID, idemKey, resultID, http.StatusCreated, s.idemTTL()); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// A concurrent request with the same key won; return its result.
		if r, ok, rerr := s.replay(ctx, sessionID, idemKey); rerr == nil && ok {
			return r, nil
		}
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if escalate {
		s.escalate(ctx, sess, content, norm)
	}
	return res, nil
}

func (s *SupportService) idemTTL() time.Duration {
	if s.IdempotencyTTL > 0 {
		return s.IdempotencyTTL
	}
	return 24 * time.Hour
}

func (s *SupportService) replay(ctx context.Context, sessionID, key string) (*PostResult, bool, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, sessionID, key, time.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	msg, err := repo.GetChatMessage(ctx, s.DB, rec.MessageID)
	if err != nil {
		return nil, false, fmt.Errorf("replay message: %w", err)
	}
	res := &PostResult{Replayed: true}
	if msg.Sender == domain.SenderUser {
		res.User = msg
	} else {
		res.Reply = msg
	}
	return res, true, nil
}

// escalate notifies staff. Failures are logged; the visitor already has
// the handoff reply.
func (s *SupportService) escalate(ctx context.Context, sess *domain.ChatSession, content, norm string) {
	if s.Notifier == nil {
		return
	}
	count, err := repo.CountChatMessages(ctx, s.DB, sess.ID)
	if err != nil {
		s.log.Warn().Err(err).Msg("count messages")
	}
	urgent := containsAnyPhrase(norm, urgentPhrases)
	prio := PriorityNormal
	if urgent {
		prio = PriorityUrgent
	}
	lang := sess.Language
	if lang != "ar" {
		lang = "en"
	}
	_, err = s.Notifier.Notify(ctx, Notification{
		SessionID:   sess.ID,
		Message:     content,
		Language:    lang,
		RequestType: TypeChatSupport,
		Priority:    prio,
		AdditionalData: map[string]any{
			"messageCount": float64(count),
			"language":     sess.Language,
			"isUrgent":     urgent,
		},
	})
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID).Msg("escalation notification failed")
	}
}

// ListMessages returns a page of the session's messages and the total.
func (s *SupportService) ListMessages(ctx context.Context, sessionID string, page, pageSize int) ([]domain.ChatMessage, int64, error) {
	ctx, span := otel.Tracer("services/SupportService").Start(ctx, "ListMessages",
		trace.WithAttributes(
			attribute.String("support.session_id", sessionID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if _, err := s.Session(ctx, sessionID); err != nil {
		return nil, 0, err
	}
	total, err := repo.CountChatMessages(ctx, s.DB, sessionID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ChatMessage{}, 0, nil
	}
	items, err := repo.ListChatMessagesPage(ctx, s.DB, sessionID, (page-1)*pageSize, pageSize)
	return items, total, err
}

// ETag returns a weak validator that changes whenever a message is added
// or updated in the session.
func (s *SupportService) ETag(ctx context.Context, sessionID string) (string, error) {
	count, maxUpdated, err := repo.ChatMessagesStats(ctx, s.DB, sessionID)
	if err != nil {
		return "", err
	}
	var ts int64
	if maxUpdated != nil {
		ts = maxUpdated.UTC().UnixNano()
	}
	return fmt.Sprintf(`W/"%s-%d-%d"`, sessionID, count, ts), nil
}

var titleWordRE = regexp.MustCompile(`[\p{L}]+[\p{N}]*`)

// generateTitle takes the first words of the opening message that are not
// stopwords, title-cased for languages with case.
func (s *SupportService) generateTitle(msg, lang string) string {
	toks := titleWordRE.FindAllString(strings.TrimSpace(msg), -1)
	if len(toks) == 0 {
		return ""
	}
	stop := make(map[string]struct{}, len(search.DefaultStopwords))
	for _, w := range search.DefaultStopwords {
		stop[search.Normalize(w)] = struct{}{}
	}
	caser := cases.Title(supportLanguages[lang])
	out := make([]string, 0, 6)
	for _, w := range toks {
		if _, skip := stop[search.Normalize(w)]; skip {
			continue
		}
		out = append(out, caser.String(w))
		if len(out) == 6 {
			break
		}
	}
	max := s.TitleMaxLen
	if max <= 0 {
		max = 60
	}
	return clipTitle(strings.Join(out, " "), max)
}

func clipTitle(title string, max int) string {
	if utf8.RuneCountInString(title) > max {
		return strings.TrimSpace(string([]rune(title)[:max]))
	}
	return title
}
