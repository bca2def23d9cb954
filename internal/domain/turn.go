package domain

// TurnReply is the server's answer to one chat turn.
type TurnReply struct {
	Reply      string           `json:"reply"`
	Extracted  *ExtractedIntent `json:"extracted"`
	Transcript string           `json:"transcript,omitempty"`
}

// Submission is the contact step's payload.
type Submission struct {
	Name      string           `json:"name"`
	Email     string           `json:"email"`
	Source    Source           `json:"source"`
	Messages  []ChatMessage    `json:"messages"`
	Extracted *ExtractedIntent `json:"extracted"`
}
