package usecase

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"inquiry-agent/internal/domain"
	"inquiry-agent/internal/ratelimit"
)

const defaultNotifyTimeout = 8 * time.Second

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type InquiryWriter interface {
	InsertInquiry(ctx context.Context, rec domain.InquiryRecord) error
}

type RuleChecker interface {
	Check(ctx context.Context, identity string, rule ratelimit.Rule) (ratelimit.Result, error)
}

type InquiryNotifier interface {
	NotifyAdmin(ctx context.Context, rec domain.InquiryRecord) error
	SendAutoReply(ctx context.Context, rec domain.InquiryRecord) error
}

type Alerter interface {
	Alert(ctx context.Context, message, path string) error
}

// SubmitService turns a finished conversation into a persisted lead.
type SubmitService struct {
	store         InquiryWriter
	limiter       RuleChecker
	notifier      InquiryNotifier
	alerter       Alerter
	logger        *slog.Logger
	notifyTimeout time.Duration
	now           func() time.Time
}

type SubmitOption func(*SubmitService)

func WithNotifier(n InquiryNotifier) SubmitOption {
	return func(s *SubmitService) { s.notifier = n }
}

func WithAlerter(a Alerter) SubmitOption {
	return func(s *SubmitService) { s.alerter = a }
}

func WithSubmitLogger(l *slog.Logger) SubmitOption {
	return func(s *SubmitService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithNotifyTimeout(d time.Duration) SubmitOption {
	return func(s *SubmitService) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

type SubmitInput struct {
	Name      string
	Email     string
	Source    string
	Messages  []domain.ChatMessage
	Extracted *domain.ExtractedIntent
}

type SubmitOutput struct {
	InquiryID  string
	CalPrefill domain.CalPrefill
}

func NewSubmitService(store InquiryWriter, limiter RuleChecker, opts ...SubmitOption) (*SubmitService, error) {
	if store == nil {
		return nil, errors.New("usecase: inquiry store must not be nil")
	}
	if limiter == nil {
		return nil, errors.New("usecase: rate limiter must not be nil")
	}
	s := &SubmitService{
		store:         store,
		limiter:       limiter,
		logger:        slog.Default(),
		notifyTimeout: defaultNotifyTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SubmitService) Submit(ctx context.Context, in SubmitInput) (SubmitOutput, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	if err := validateSubmission(name, email, in); err != nil {
		return SubmitOutput{}, err
	}

	res, err := s.limiter.Check(ctx, strings.ToLower(email), SubmitRule)
	if err != nil {
		return SubmitOutput{}, newError(ErrorInternal, "rate_limit_error", "Something went wrong. Please try again.", err)
	}
	if !res.Allowed {
		return SubmitOutput{}, newError(ErrorRateLimited, "submit_rate_limited",
			"Too many submissions. Please try again later.", nil)
	}

	var extracted *domain.ExtractedIntent
	if in.Extracted != nil {
		normalized := NormalizeIntent(*in.Extracted)
		extracted = &normalized
	}
	rec := buildInquiryRecord(name, email, domain.ParseSource(in.Source), in.Messages, extracted, s.now().UTC())

	if err := s.store.InsertInquiry(ctx, rec); err != nil {
		s.logger.ErrorContext(ctx, "inquiry insert failed", "inquiry_id", rec.ID, "err", err)
		if errors.Is(err, domain.ErrNotConfigured) {
			return SubmitOutput{}, newError(ErrorConfiguration, "store_not_configured", "Failed to save inquiry.", err)
		}
		s.alert(ctx, "Failed to save AI inquiry: "+err.Error())
		return SubmitOutput{}, newError(ErrorInternal, "inquiry_insert_error", "Failed to save inquiry.", err)
	}

	s.notify(ctx, rec)

	return SubmitOutput{
		InquiryID:  rec.ID,
		CalPrefill: buildCalPrefill(rec),
	}, nil
}

func validateSubmission(name, email string, in SubmitInput) error {
	if name == "" || email == "" {
		return newError(ErrorInvalidInput, "missing_contact", "Name and email are required.", nil)
	}
	if utf8.RuneCountInString(email) > MaxEmailChars || !emailPattern.MatchString(email) {
		return newError(ErrorInvalidInput, "invalid_email", "Invalid email address.", nil)
	}
	if utf8.RuneCountInString(name) > MaxNameChars {
		return newError(ErrorInvalidInput, "name_too_long", "Name too long.", nil)
	}
	if in.Extracted != nil && utf8.RuneCountInString(in.Extracted.Summary) > MaxDescriptionChars {
		return newError(ErrorInvalidInput, "summary_too_long", "Summary too long.", nil)
	}
	if len(in.Messages) > MaxSubmitMessages {
		return newError(ErrorInvalidInput, "too_many_messages", "Conversation too long.", nil)
	}
	for _, m := range in.Messages {
		if !m.IsConversational() {
			return newError(ErrorInvalidInput, "invalid_role", "Invalid message.", nil)
		}
		if utf8.RuneCountInString(m.Content) > MaxMessageChars {
			return newError(ErrorInvalidInput, "message_too_long", "Message too long.", nil)
		}
	}
	return nil
}

// notify runs both emails concurrently and waits for them, bounded by the
// notify timeout. The wait is detached from ctx cancellation so a client
// disconnect does not abort delivery.
func (s *SubmitService) notify(ctx context.Context, rec domain.InquiryRecord) {
	if s.notifier == nil {
		s.logger.WarnContext(ctx, "inquiry notifier not configured, skipping emails", "inquiry_id", rec.ID)
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	var wg conc.WaitGroup
	wg.Go(func() {
		if err := s.notifier.NotifyAdmin(nctx, rec); err != nil {
			s.logger.ErrorContext(ctx, "inquiry notification email failed", "inquiry_id", rec.ID, "err", err)
		}
	})
	wg.Go(func() {
		if err := s.notifier.SendAutoReply(nctx, rec); err != nil {
			s.logger.ErrorContext(ctx, "inquiry auto-reply email failed", "inquiry_id", rec.ID, "err", err)
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if r := wg.WaitAndRecover(); r != nil {
			s.logger.ErrorContext(ctx, "inquiry notification panicked", "inquiry_id", rec.ID, "err", r.AsError())
		}
	}()
	select {
	case <-done:
	case <-nctx.Done():
		s.logger.WarnContext(ctx, "inquiry notifications timed out", "inquiry_id", rec.ID)
	}
}

func (s *SubmitService) alert(ctx context.Context, message string) {
	if s.alerter == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()
	if err := s.alerter.Alert(actx, message, "/ai-chat"); err != nil {
		s.logger.WarnContext(ctx, "critical alert failed", "err", err)
	}
}

// FlattenTranscript renders a conversation as "User: ..." and "AI: ..." blocks
// separated by blank lines.
func FlattenTranscript(messages []domain.ChatMessage) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		speaker := "AI"
		if m.Role == domain.RoleUser {
			speaker = "User"
		}
		parts = append(parts, speaker+": "+m.Content)
	}
	return strings.Join(parts, "\n\n")
}

func buildInquiryRecord(name, email string, source domain.Source, messages []domain.ChatMessage, extracted *domain.ExtractedIntent, now time.Time) domain.InquiryRecord {
	rec := domain.InquiryRecord{
		ID:           newUUID(),
		Name:         name,
		Email:        email,
		Source:       source,
		AITranscript: FlattenTranscript(messages),
		AIExtracted:  extracted,
		Status:       domain.InquiryStatusNew,
		CreatedAt:    now,
	}
	if len(messages) > 0 {
		rec.Description = messages[0].Content
	}
	if extracted != nil {
		rec.ProjectType = extracted.ProjectType
		rec.BudgetRange = extracted.BudgetSignal
		rec.Timeline = extracted.Urgency
		rec.AISummary = extracted.Summary
		if extracted.Summary != "" {
			rec.Description = extracted.Summary
		}
	}
	return rec
}

func buildCalPrefill(rec domain.InquiryRecord) domain.CalPrefill {
	notes := "Source: " + string(rec.Source)
	if rec.AISummary != "" {
		notes = "AI Summary: " + rec.AISummary + "\n" + notes
	}
	return domain.CalPrefill{Name: rec.Name, Email: rec.Email, Notes: notes}
}

var newUUID = func() string {
	return uuid.NewString()
}
