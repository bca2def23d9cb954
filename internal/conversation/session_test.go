package conversation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"inquiry-agent/internal/domain"
)

func TestTurnCapMovesToContact(t *testing.T) {
	s := NewSession()
	for i := 1; i <= MaxUserMessages; i++ {
		require.NoError(t, BeginTurn(s, "turn", false))
		require.Equal(t, StateProcessing, s.State)
		require.NoError(t, CompleteTurn(s, domain.TurnReply{Reply: "ok"}))
		if i < MaxUserMessages {
			require.Equal(t, StateConversation, s.State)
		}
	}
	require.Equal(t, StateContact, s.State)
	require.Zero(t, s.RemainingTurns())
	require.ErrorIs(t, BeginTurn(s, "one more", false), ErrInvalidTransition)
}

func TestBeginTurn_WhileProcessingIsBusy(t *testing.T) {
	s := NewSession()
	require.NoError(t, BeginTurn(s, "first", false))
	require.ErrorIs(t, BeginTurn(s, "second", false), ErrBusy)
	require.ErrorIs(t, StartRecording(s), ErrBusy)
	require.Len(t, s.Messages, 1)
}

func TestBeginTurn_EmptyText(t *testing.T) {
	s := NewSession()
	require.ErrorIs(t, BeginTurn(s, "   ", false), ErrInvalidTransition)
	require.Equal(t, StateIdle, s.State)
}

func TestFailTurn_KeepsUserTurn(t *testing.T) {
	s := NewSession()
	require.NoError(t, BeginTurn(s, "hello", false))
	require.NoError(t, FailTurn(s, "Connection error. Please try again."))
	require.Equal(t, StateConversation, s.State)
	require.Equal(t, "Connection error. Please try again.", s.LastError)
	require.Equal(t, []domain.ChatMessage{{Role: domain.RoleUser, Content: "hello"}}, s.Messages)
	require.Zero(t, s.UserTurns)

	require.NoError(t, BeginTurn(s, "again", false))
	require.NoError(t, CompleteTurn(s, domain.TurnReply{Reply: "hi"}))
	require.Empty(t, s.LastError)
	require.Equal(t, 1, s.UserTurns)
}

func TestVoiceTurn(t *testing.T) {
	s := NewSession()
	require.NoError(t, StartRecording(s))
	require.Equal(t, domain.SourceVoice, s.Source)
	require.ErrorIs(t, BeginTurn(s, "typed", false), ErrInvalidTransition)
	require.NoError(t, BeginTurn(s, "", true))
	require.Empty(t, s.Outgoing())

	intent := &domain.ExtractedIntent{ProjectType: "motion"}
	require.NoError(t, CompleteTurn(s, domain.TurnReply{Reply: "Cool.", Transcript: "an explainer video", Extracted: intent}))
	require.Equal(t, []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "an explainer video"},
		{Role: domain.RoleAssistant, Content: "Cool."},
	}, s.Messages)
	require.Equal(t, "motion", s.Extracted.ProjectType)

	intent.ProjectType = "web"
	require.Equal(t, "motion", s.Extracted.ProjectType)
}

func TestExtractedIsLastWriteWins(t *testing.T) {
	s := NewSession()
	require.NoError(t, BeginTurn(s, "a", false))
	require.NoError(t, CompleteTurn(s, domain.TurnReply{Reply: "b", Extracted: &domain.ExtractedIntent{Urgency: "soon"}}))
	require.NoError(t, BeginTurn(s, "c", false))
	require.NoError(t, CompleteTurn(s, domain.TurnReply{Reply: "d"}))
	require.Equal(t, "soon", s.Extracted.Urgency)
	require.NoError(t, BeginTurn(s, "e", false))
	require.NoError(t, CompleteTurn(s, domain.TurnReply{Reply: "f", Extracted: &domain.ExtractedIntent{Urgency: "flexible"}}))
	require.Equal(t, "flexible", s.Extracted.Urgency)
}

func TestAbandonRecording(t *testing.T) {
	s := NewSession()
	require.NoError(t, StartRecording(s))
	require.NoError(t, AbandonRecording(s))
	require.Equal(t, StateIdle, s.State)

	require.NoError(t, BeginTurn(s, "a", false))
	require.NoError(t, CompleteTurn(s, domain.TurnReply{Reply: "b"}))
	require.NoError(t, StartRecording(s))
	require.NoError(t, AbandonRecording(s))
	require.Equal(t, StateConversation, s.State)
}

func contactSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession()
	for i := 0; i < MaxUserMessages; i++ {
		require.NoError(t, BeginTurn(s, "turn", false))
		require.NoError(t, CompleteTurn(s, domain.TurnReply{Reply: "ok"}))
	}
	require.Equal(t, StateContact, s.State)
	return s
}

func TestBeginSubmit_Validation(t *testing.T) {
	tests := []struct {
		name  string
		email string
		err   error
		msg   string
	}{
		{name: "", email: "a@b.co", err: ErrContactRequired, msg: msgContactRequired},
		{name: "Ada", email: " ", err: ErrContactRequired, msg: msgContactRequired},
		{name: "Ada", email: "not-an-email", err: ErrInvalidEmail, msg: msgInvalidEmail},
		{name: "Ada", email: "a@b", err: ErrInvalidEmail, msg: msgInvalidEmail},
	}
	for _, tc := range tests {
		s := contactSession(t)
		_, err := BeginSubmit(s, tc.name, tc.email)
		require.ErrorIs(t, err, tc.err)
		require.Equal(t, tc.msg, s.LastError)
		require.Equal(t, StateContact, s.State)
		require.False(t, s.Submitting)
	}
}

func TestSubmitLifecycle(t *testing.T) {
	s := contactSession(t)
	sub, err := BeginSubmit(s, " Ada ", " ada@example.com ")
	require.NoError(t, err)
	require.Equal(t, "Ada", sub.Name)
	require.Equal(t, "ada@example.com", sub.Email)
	require.Equal(t, domain.SourceText, sub.Source)
	require.Len(t, sub.Messages, 2*MaxUserMessages)

	_, err = BeginSubmit(s, "Ada", "ada@example.com")
	require.ErrorIs(t, err, ErrBusy)

	require.NoError(t, FailSubmit(s, "Failed to save. Try again."))
	require.Equal(t, StateContact, s.State)
	require.False(t, s.Submitting)

	_, err = BeginSubmit(s, "Ada", "ada@example.com")
	require.NoError(t, err)
	prefill := domain.CalPrefill{Name: "Ada", Email: "ada@example.com", Notes: "Source: ai_text"}
	require.NoError(t, CompleteSubmit(s, prefill))
	require.Equal(t, StateDone, s.State)
	require.Equal(t, prefill, *s.Prefill)

	_, err = BeginSubmit(s, "Ada", "ada@example.com")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReset(t *testing.T) {
	s := contactSession(t)
	Reset(s)
	require.Equal(t, *NewSession(), *s)
}
