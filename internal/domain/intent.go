package domain

// ExtractedIntent is the structured reading of a prospect's request that the
// chat model appends to each reply. Enumerated fields hold "" when the model
// produced a value outside the allowed set.
type ExtractedIntent struct {
	ProjectType  string `json:"project_type"`
	BudgetSignal string `json:"budget_signal"`
	Urgency      string `json:"urgency"`
	Sentiment    string `json:"sentiment"`
	Summary      string `json:"summary"`
}

var (
	ProjectTypes   = []string{"brand", "web", "motion", "graphic", "other"}
	BudgetSignals  = []string{"low", "mid", "high", "enterprise"}
	UrgencyLevels  = []string{"immediate", "soon", "flexible"}
	SentimentMoods = []string{"excited", "neutral", "frustrated", "exploratory"}
)

// Source identifies the channel a conversation was held on.
type Source string

const (
	SourceVoice Source = "ai_voice"
	SourceText  Source = "ai_text"
)

// ParseSource coerces anything other than ai_voice to ai_text.
func ParseSource(s string) Source {
	if Source(s) == SourceVoice {
		return SourceVoice
	}
	return SourceText
}

// CalPrefill is handed to the scheduling widget once a lead is captured.
type CalPrefill struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Notes string `json:"notes"`
}
