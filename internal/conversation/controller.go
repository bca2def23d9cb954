package conversation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"inquiry-agent/internal/domain"
)

const (
	RecordingLimit = 60 * time.Second

	DefaultCalLink = "toolnyc/30min"

	msgConnection   = "Connection error. Please try again."
	msgSubmitFailed = "Failed to save. Try again."
)

var ErrClosed = errors.New("conversation: controller closed")

type Transport interface {
	Chat(ctx context.Context, messages []domain.ChatMessage, audio string) (domain.TurnReply, error)
	Submit(ctx context.Context, sub domain.Submission) (domain.CalPrefill, error)
}

// Recorder captures one audio clip at a time.
type Recorder interface {
	Start(ctx context.Context) error
	// Stop finalises the capture. Empty audio means nothing was recorded.
	Stop() (audio []byte, mimeType string, err error)
	Close() error
}

type Scheduler interface {
	Open(ctx context.Context, calLink string, prefill domain.CalPrefill) error
}

// Timer is the subset of *time.Timer the controller needs.
type Timer interface {
	Stop() bool
}

// userMessager is implemented by transport errors that carry text meant for
// the user.
type userMessager interface {
	UserMessage() string
}

type Controller struct {
	transport Transport
	recorder  Recorder
	scheduler Scheduler
	calLink   string
	logger    *slog.Logger
	afterFunc func(d time.Duration, f func()) Timer

	mu       sync.Mutex
	session  *Session
	timer    Timer
	recordID int
	closed   bool
}

type Option func(*Controller)

func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

func WithScheduler(s Scheduler) Option {
	return func(c *Controller) { c.scheduler = s }
}

func WithCalLink(link string) Option {
	return func(c *Controller) {
		if link = strings.TrimSpace(link); link != "" {
			c.calLink = link
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func withAfterFunc(fn func(d time.Duration, f func()) Timer) Option {
	return func(c *Controller) { c.afterFunc = fn }
}

func NewController(t Transport, opts ...Option) (*Controller, error) {
	if t == nil {
		return nil, errors.New("conversation: transport must not be nil")
	}
	c := &Controller{
		transport: t,
		calLink:   DefaultCalLink,
		logger:    slog.Default(),
		afterFunc: func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) },
		session:   NewSession(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

// SendText dispatches one typed turn. It returns ErrBusy while another turn
// is in flight. Transport failures are surfaced on the session, not returned.
func (c *Controller) SendText(ctx context.Context, text string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if err := BeginTurn(c.session, text, false); err != nil {
		c.mu.Unlock()
		return err
	}
	outgoing := c.session.Outgoing()
	c.mu.Unlock()

	c.exchange(ctx, outgoing, "")
	return nil
}

// ToggleRecording starts a capture, or finalises and sends the one in
// progress.
func (c *Controller) ToggleRecording(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.session.State == StateRecording {
		c.mu.Unlock()
		return c.finishRecording(ctx, c.currentRecordID())
	}
	defer c.mu.Unlock()

	if c.recorder == nil {
		return errors.New("conversation: no recorder configured")
	}
	if err := StartRecording(c.session); err != nil {
		return err
	}
	if err := c.recorder.Start(ctx); err != nil {
		_ = AbandonRecording(c.session)
		return fmt.Errorf("conversation: start recording: %w", err)
	}
	c.recordID++
	id := c.recordID
	c.timer = c.afterFunc(RecordingLimit, func() {
		if err := c.finishRecording(context.Background(), id); err != nil && !errors.Is(err, ErrClosed) {
			c.logger.Warn("auto-stop recording failed", "err", err)
		}
	})
	return nil
}

func (c *Controller) currentRecordID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recordID
}

// finishRecording stops capture id and sends it. A stale id (the capture was
// already finalised) is a no-op.
func (c *Controller) finishRecording(ctx context.Context, id int) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.session.State != StateRecording || id != c.recordID {
		c.mu.Unlock()
		return nil
	}
	c.stopTimerLocked()
	audio, mimeType, err := c.recorder.Stop()
	if err != nil || len(audio) == 0 {
		_ = AbandonRecording(c.session)
		c.mu.Unlock()
		if err != nil {
			return fmt.Errorf("conversation: stop recording: %w", err)
		}
		return nil
	}
	if err := BeginTurn(c.session, "", true); err != nil {
		c.mu.Unlock()
		return err
	}
	outgoing := c.session.Outgoing()
	c.mu.Unlock()

	c.exchange(ctx, outgoing, encodeAudio(audio, mimeType))
	return nil
}

// exchange runs the network call without holding the lock; the session sits
// in PROCESSING meanwhile so concurrent sends are rejected.
func (c *Controller) exchange(ctx context.Context, outgoing []domain.ChatMessage, audio string) {
	reply, err := c.transport.Chat(ctx, outgoing, audio)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if err != nil {
		c.logger.WarnContext(ctx, "chat turn failed", "err", err)
		_ = FailTurn(c.session, userMessage(err, msgConnection))
		return
	}
	_ = CompleteTurn(c.session, reply)
}

// SubmitContact validates and submits the contact form, then opens the
// scheduling widget. Validation and transport failures leave the session in
// CONTACT with LastError set.
func (c *Controller) SubmitContact(ctx context.Context, name, email string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	sub, err := BeginSubmit(c.session, name, email)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	prefill, err := c.transport.Submit(ctx, sub)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		_ = FailSubmit(c.session, userMessage(err, msgSubmitFailed))
		c.mu.Unlock()
		return fmt.Errorf("conversation: submit: %w", err)
	}
	_ = CompleteSubmit(c.session, prefill)
	c.mu.Unlock()

	if c.scheduler == nil {
		return nil
	}
	if err := c.scheduler.Open(ctx, c.calLink, prefill); err != nil {
		return fmt.Errorf("conversation: open scheduler: %w", err)
	}
	return nil
}

// Close discards the session and releases the recorder. Calls after Close
// return ErrClosed.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.stopTimerLocked()
	Reset(c.session)
	if c.recorder != nil {
		return c.recorder.Close()
	}
	return nil
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func encodeAudio(audio []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(audio)
}

func userMessage(err error, fallback string) string {
	var um userMessager
	if errors.As(err, &um) {
		if msg := strings.TrimSpace(um.UserMessage()); msg != "" {
			return msg
		}
	}
	return fallback
}
