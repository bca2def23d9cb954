// Package conversation is the client side of the intake flow: a Session
// advanced by pure transition functions, and a Controller that drives it
// against a transport, a recorder and a scheduling widget.
package conversation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"inquiry-agent/internal/domain"
)

type State string

const (
	StateIdle         State = "IDLE"
	StateRecording    State = "RECORDING"
	StateProcessing   State = "PROCESSING"
	StateConversation State = "CONVERSATION"
	StateContact      State = "CONTACT"
	StateDone         State = "DONE"
)

// MaxUserMessages is the number of completed user turns before the flow
// moves to contact capture.
const MaxUserMessages = 3

var (
	ErrBusy              = errors.New("conversation: a request is already in flight")
	ErrInvalidTransition = errors.New("conversation: invalid transition")
	ErrContactRequired   = errors.New("conversation: name and email are required")
	ErrInvalidEmail      = errors.New("conversation: invalid email")
)

const (
	msgContactRequired = "Name and email are required."
	msgInvalidEmail    = "Please enter a valid email."
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Session is the whole client-side state of one intake conversation.
type Session struct {
	State     State
	Messages  []domain.ChatMessage
	Extracted *domain.ExtractedIntent
	Source    domain.Source
	UserTurns int
	// LastError is the user-facing text of the most recent failed turn or
	// submission; cleared on the next success.
	LastError  string
	Submitting bool
	Prefill    *domain.CalPrefill

	pendingVoice bool
}

func NewSession() *Session {
	return &Session{State: StateIdle, Source: domain.SourceText}
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *Session) Clone() Session {
	out := *s
	out.Messages = append([]domain.ChatMessage(nil), s.Messages...)
	if s.Extracted != nil {
		ex := *s.Extracted
		out.Extracted = &ex
	}
	if s.Prefill != nil {
		p := *s.Prefill
		out.Prefill = &p
	}
	return out
}

// Outgoing is the transcript sent with the next turn.
func (s *Session) Outgoing() []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(s.Messages))
	for _, m := range s.Messages {
		if m.Content != "" {
			out = append(out, m)
		}
	}
	return out
}

// RemainingTurns reports how many user turns are left before contact capture.
func (s *Session) RemainingTurns() int {
	if n := MaxUserMessages - s.UserTurns; n > 0 {
		return n
	}
	return 0
}

func transitionError(from State, op string) error {
	if from == StateProcessing {
		return ErrBusy
	}
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, op, from)
}

func StartRecording(s *Session) error {
	if s.State != StateIdle && s.State != StateConversation {
		return transitionError(s.State, "start recording")
	}
	s.State = StateRecording
	s.Source = domain.SourceVoice
	return nil
}

// AbandonRecording leaves RECORDING without sending anything.
func AbandonRecording(s *Session) error {
	if s.State != StateRecording {
		return transitionError(s.State, "abandon recording")
	}
	s.State = restingState(s)
	return nil
}

// BeginTurn moves to PROCESSING. A text turn is appended immediately; a voice
// turn is appended when its transcript comes back.
func BeginTurn(s *Session, text string, voice bool) error {
	switch {
	case s.State == StateRecording && voice:
	case (s.State == StateIdle || s.State == StateConversation) && !voice:
	default:
		return transitionError(s.State, "begin turn")
	}
	text = strings.TrimSpace(text)
	if !voice {
		if text == "" {
			return fmt.Errorf("%w: empty message", ErrInvalidTransition)
		}
		s.Messages = append(s.Messages, domain.ChatMessage{Role: domain.RoleUser, Content: text})
	}
	s.pendingVoice = voice
	s.State = StateProcessing
	return nil
}

// CompleteTurn records the assistant reply and moves to CONVERSATION, or to
// CONTACT once the turn cap is reached.
func CompleteTurn(s *Session, reply domain.TurnReply) error {
	if s.State != StateProcessing {
		return transitionError(s.State, "complete turn")
	}
	if s.pendingVoice && reply.Transcript != "" {
		s.Messages = append(s.Messages, domain.ChatMessage{Role: domain.RoleUser, Content: reply.Transcript})
	}
	if reply.Reply != "" {
		s.Messages = append(s.Messages, domain.ChatMessage{Role: domain.RoleAssistant, Content: reply.Reply})
	}
	if reply.Extracted != nil {
		ex := *reply.Extracted
		s.Extracted = &ex
	}
	s.pendingVoice = false
	s.LastError = ""
	s.UserTurns++
	if s.UserTurns >= MaxUserMessages {
		s.State = StateContact
	} else {
		s.State = StateConversation
	}
	return nil
}

// FailTurn surfaces msg and returns to CONVERSATION. Turns already appended
// are kept.
func FailTurn(s *Session, msg string) error {
	if s.State != StateProcessing {
		return transitionError(s.State, "fail turn")
	}
	s.pendingVoice = false
	s.LastError = msg
	s.State = StateConversation
	return nil
}

// BeginSubmit validates the contact fields and marks a submission in flight.
// Validation failures keep the session in CONTACT with LastError set.
func BeginSubmit(s *Session, name, email string) (domain.Submission, error) {
	if s.State != StateContact {
		return domain.Submission{}, transitionError(s.State, "submit")
	}
	if s.Submitting {
		return domain.Submission{}, ErrBusy
	}
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		s.LastError = msgContactRequired
		return domain.Submission{}, ErrContactRequired
	}
	if !emailPattern.MatchString(email) {
		s.LastError = msgInvalidEmail
		return domain.Submission{}, ErrInvalidEmail
	}
	s.Submitting = true
	s.LastError = ""
	sub := domain.Submission{
		Name:     name,
		Email:    email,
		Source:   s.Source,
		Messages: append([]domain.ChatMessage(nil), s.Messages...),
	}
	if s.Extracted != nil {
		ex := *s.Extracted
		sub.Extracted = &ex
	}
	return sub, nil
}

func CompleteSubmit(s *Session, prefill domain.CalPrefill) error {
	if s.State != StateContact || !s.Submitting {
		return transitionError(s.State, "complete submit")
	}
	s.Submitting = false
	s.Prefill = &prefill
	s.State = StateDone
	return nil
}

func FailSubmit(s *Session, msg string) error {
	if s.State != StateContact || !s.Submitting {
		return transitionError(s.State, "fail submit")
	}
	s.Submitting = false
	s.LastError = msg
	return nil
}

// Reset discards everything and returns to IDLE.
func Reset(s *Session) {
	*s = *NewSession()
}

func restingState(s *Session) State {
	if len(s.Messages) == 0 && s.UserTurns == 0 {
		return StateIdle
	}
	return StateConversation
}
