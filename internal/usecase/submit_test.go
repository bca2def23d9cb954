package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"inquiry-agent/internal/domain"
	"inquiry-agent/internal/ratelimit"
)

type fakeInquiryStore struct {
	inserted []domain.InquiryRecord
	err      error
}

func (f *fakeInquiryStore) InsertInquiry(_ context.Context, rec domain.InquiryRecord) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, rec)
	return nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	admin     []string
	replies   []string
	adminErr  error
	replyErr  error
	block     chan struct{}
	panicking bool
}

func (f *fakeNotifier) NotifyAdmin(ctx context.Context, rec domain.InquiryRecord) error {
	if f.panicking {
		panic("template exploded")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.admin = append(f.admin, rec.ID)
	return f.adminErr
}

func (f *fakeNotifier) SendAutoReply(_ context.Context, rec domain.InquiryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, rec.Email)
	return f.replyErr
}

type fakeAlerter struct {
	messages []string
}

func (f *fakeAlerter) Alert(_ context.Context, message, _ string) error {
	f.messages = append(f.messages, message)
	return nil
}

// countingLimiter allows the first max checks per identity and endpoint.
type countingLimiter struct {
	max    int
	counts map[string]int
	seen   []string
}

func (c *countingLimiter) Check(_ context.Context, identity string, rule ratelimit.Rule) (ratelimit.Result, error) {
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.seen = append(c.seen, identity)
	key := rule.Endpoint + "#" + identity
	if c.counts[key] >= c.max {
		return ratelimit.Result{Allowed: false}, nil
	}
	c.counts[key]++
	return ratelimit.Result{Allowed: true, Remaining: c.max - c.counts[key]}, nil
}

func fixedUUID(t *testing.T) {
	t.Helper()
	orig := newUUID
	n := 0
	newUUID = func() string {
		n++
		return fmt.Sprintf("inq-%d", n)
	}
	t.Cleanup(func() { newUUID = orig })
}

func newSubmit(t *testing.T, store InquiryWriter, lim RuleChecker, opts ...SubmitOption) *SubmitService {
	t.Helper()
	svc, err := NewSubmitService(store, lim, opts...)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func conversation() []domain.ChatMessage {
	return []domain.ChatMessage{
		user("We need a new brand"),
		assistant("What's the timeline?"),
		user("Next month"),
	}
}

func TestNewSubmitService_ValidatesDependencies(t *testing.T) {
	_, err := NewSubmitService(nil, &countingLimiter{max: 3})
	require.Error(t, err)
	_, err = NewSubmitService(&fakeInquiryStore{}, nil)
	require.Error(t, err)
}

func TestSubmit_HappyPath(t *testing.T) {
	fixedUUID(t)
	store := &fakeInquiryStore{}
	notifier := &fakeNotifier{}
	svc := newSubmit(t, store, &countingLimiter{max: 3}, WithNotifier(notifier))

	out, err := svc.Submit(context.Background(), SubmitInput{
		Name:     " Ada ",
		Email:    "Ada@Example.com",
		Source:   "ai_voice",
		Messages: conversation(),
		Extracted: &domain.ExtractedIntent{
			ProjectType:  "brand",
			BudgetSignal: "mid",
			Urgency:      "soon",
			Sentiment:    "excited",
			Summary:      "Brand refresh",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "inq-1", out.InquiryID)
	require.Equal(t, domain.CalPrefill{
		Name:  "Ada",
		Email: "Ada@Example.com",
		Notes: "AI Summary: Brand refresh\nSource: ai_voice",
	}, out.CalPrefill)

	require.Len(t, store.inserted, 1)
	rec := store.inserted[0]
	require.Equal(t, "Brand refresh", rec.Description)
	require.Equal(t, "brand", rec.ProjectType)
	require.Equal(t, "mid", rec.BudgetRange)
	require.Equal(t, "soon", rec.Timeline)
	require.Equal(t, "Brand refresh", rec.AISummary)
	require.Equal(t, domain.SourceVoice, rec.Source)
	require.Equal(t, domain.InquiryStatusNew, rec.Status)
	require.Equal(t, "User: We need a new brand\n\nAI: What's the timeline?\n\nUser: Next month", rec.AITranscript)
	require.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), rec.CreatedAt)

	require.Equal(t, []string{"inq-1"}, notifier.admin)
	require.Equal(t, []string{"Ada@Example.com"}, notifier.replies)
}

func TestSubmit_NoSummaryUsesFirstMessage(t *testing.T) {
	store := &fakeInquiryStore{}
	svc := newSubmit(t, store, &countingLimiter{max: 3})

	out, err := svc.Submit(context.Background(), SubmitInput{
		Name:     "Ada",
		Email:    "ada@example.com",
		Source:   "carrier pigeon",
		Messages: conversation(),
	})
	require.NoError(t, err)
	require.Equal(t, "Source: ai_text", out.CalPrefill.Notes)
	rec := store.inserted[0]
	require.Equal(t, "We need a new brand", rec.Description)
	require.Nil(t, rec.AIExtracted)
	require.Empty(t, rec.AISummary)
	require.Equal(t, domain.SourceText, rec.Source)
}

func TestSubmit_NormalizesExtracted(t *testing.T) {
	store := &fakeInquiryStore{}
	svc := newSubmit(t, store, &countingLimiter{max: 3})

	_, err := svc.Submit(context.Background(), SubmitInput{
		Name:      "Ada",
		Email:     "ada@example.com",
		Extracted: &domain.ExtractedIntent{ProjectType: "spaceship", Summary: "  Rocket  "},
	})
	require.NoError(t, err)
	rec := store.inserted[0]
	require.Empty(t, rec.ProjectType)
	require.Equal(t, "Rocket", rec.Description)
	require.Equal(t, "Rocket", rec.AIExtracted.Summary)
}

func TestSubmit_ValidationNeverWrites(t *testing.T) {
	tooMany := make([]domain.ChatMessage, MaxSubmitMessages+1)
	for i := range tooMany {
		tooMany[i] = user("x")
	}
	tests := []struct {
		name   string
		in     SubmitInput
		reason string
	}{
		{name: "missing name", in: SubmitInput{Name: "  ", Email: "a@b.co"}, reason: "missing_contact"},
		{name: "missing email", in: SubmitInput{Name: "Ada"}, reason: "missing_contact"},
		{name: "no at sign", in: SubmitInput{Name: "Ada", Email: "ada.example.com"}, reason: "invalid_email"},
		{name: "no dot", in: SubmitInput{Name: "Ada", Email: "ada@example"}, reason: "invalid_email"},
		{name: "space", in: SubmitInput{Name: "Ada", Email: "a da@example.com"}, reason: "invalid_email"},
		{name: "email too long", in: SubmitInput{Name: "Ada", Email: strings.Repeat("a", 250) + "@b.co"}, reason: "invalid_email"},
		{name: "name too long", in: SubmitInput{Name: strings.Repeat("n", MaxNameChars+1), Email: "a@b.co"}, reason: "name_too_long"},
		{name: "summary too long", in: SubmitInput{Name: "Ada", Email: "a@b.co", Extracted: &domain.ExtractedIntent{Summary: strings.Repeat("s", MaxDescriptionChars+1)}}, reason: "summary_too_long"},
		{name: "too many messages", in: SubmitInput{Name: "Ada", Email: "a@b.co", Messages: tooMany}, reason: "too_many_messages"},
		{name: "message too long", in: SubmitInput{Name: "Ada", Email: "a@b.co", Messages: []domain.ChatMessage{user(strings.Repeat("m", MaxMessageChars+1))}}, reason: "message_too_long"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeInquiryStore{}
			lim := &countingLimiter{max: 3}
			svc := newSubmit(t, store, lim)
			_, err := svc.Submit(context.Background(), tc.in)
			expectError(t, err, ErrorInvalidInput, tc.reason)
			require.Empty(t, store.inserted)
			require.Empty(t, lim.seen)
		})
	}
}

func TestSubmit_FourthSubmissionIsRateLimited(t *testing.T) {
	store := &fakeInquiryStore{}
	lim := &countingLimiter{max: 3}
	svc := newSubmit(t, store, lim)

	emails := []string{"ada@example.com", "ADA@example.com", "Ada@Example.com"}
	for _, e := range emails {
		_, err := svc.Submit(context.Background(), SubmitInput{Name: "Ada", Email: e})
		require.NoError(t, err)
	}
	_, err := svc.Submit(context.Background(), SubmitInput{Name: "Ada", Email: "ada@EXAMPLE.com"})
	expectError(t, err, ErrorRateLimited, "submit_rate_limited")
	require.Len(t, store.inserted, 3)
	for _, id := range lim.seen {
		require.Equal(t, "ada@example.com", id)
	}
}

func TestSubmit_InsertFailureAlerts(t *testing.T) {
	alerter := &fakeAlerter{}
	notifier := &fakeNotifier{}
	svc := newSubmit(t, &fakeInquiryStore{err: errors.New("conditional check failed")}, &countingLimiter{max: 3},
		WithAlerter(alerter), WithNotifier(notifier))

	_, err := svc.Submit(context.Background(), SubmitInput{Name: "Ada", Email: "ada@example.com"})
	expectError(t, err, ErrorInternal, "inquiry_insert_error")
	require.Len(t, alerter.messages, 1)
	require.Contains(t, alerter.messages[0], "conditional check failed")
	require.Empty(t, notifier.admin)
	require.Empty(t, notifier.replies)
}

func TestSubmit_StoreNotConfigured(t *testing.T) {
	svc := newSubmit(t, &fakeInquiryStore{err: fmt.Errorf("repo: %w", domain.ErrNotConfigured)}, &countingLimiter{max: 3})
	_, err := svc.Submit(context.Background(), SubmitInput{Name: "Ada", Email: "ada@example.com"})
	expectError(t, err, ErrorConfiguration, "store_not_configured")
}

func TestSubmit_NotificationFailuresDoNotFailSubmission(t *testing.T) {
	notifier := &fakeNotifier{adminErr: errors.New("smtp down"), replyErr: errors.New("smtp down")}
	svc := newSubmit(t, &fakeInquiryStore{}, &countingLimiter{max: 3}, WithNotifier(notifier))

	_, err := svc.Submit(context.Background(), SubmitInput{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	require.Len(t, notifier.admin, 1)
	require.Len(t, notifier.replies, 1)
}

func TestSubmit_NotificationPanicIsRecovered(t *testing.T) {
	notifier := &fakeNotifier{panicking: true}
	svc := newSubmit(t, &fakeInquiryStore{}, &countingLimiter{max: 3}, WithNotifier(notifier))

	_, err := svc.Submit(context.Background(), SubmitInput{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	require.Len(t, notifier.replies, 1)
}

func TestSubmit_NotificationsAreBoundedByTimeout(t *testing.T) {
	notifier := &fakeNotifier{block: make(chan struct{})}
	defer close(notifier.block)
	svc := newSubmit(t, &fakeInquiryStore{}, &countingLimiter{max: 3},
		WithNotifier(notifier), WithNotifyTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := svc.Submit(context.Background(), SubmitInput{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestSubmit_NotificationsSurviveCallerCancellation(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := newSubmit(t, &fakeInquiryStore{}, &countingLimiter{max: 3}, WithNotifier(notifier))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Submit(ctx, SubmitInput{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	require.Len(t, notifier.admin, 1)
}

func TestFlattenTranscript(t *testing.T) {
	require.Empty(t, FlattenTranscript(nil))
	require.Equal(t, "User: hi", FlattenTranscript([]domain.ChatMessage{user("hi")}))
}
