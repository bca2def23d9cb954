package usecase

import (
	"strings"

	"inquiry-agent/internal/domain"
)

const (
	extractStart = "---EXTRACTED---"
	extractEnd   = "---END---"

	fallbackReply = "Thanks for sharing. Could you tell me a bit more about what you're looking for?"
)

func buildPromptMessages(conversation []domain.ChatMessage) []domain.ChatMessage {
	messages := make([]domain.ChatMessage, 0, len(conversation)+1)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: buildSystemPrompt()})
	for _, m := range conversation {
		messages = append(messages, domain.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return messages
}

func buildSystemPrompt() string {
	return strings.Join([]string{
		"Role:",
		"You are the studio's intake assistant: a friendly, concise creative consultancy AI.",
		"Your job is to understand what the prospective client needs and extract project details.",
		"",
		"Behavior Rules:",
		"1) Be conversational but efficient.",
		"2) Ask one clarifying question at a time.",
		"3) Keep replies under 2 sentences.",
		"",
		"Output Contract:",
		outputContract(),
	}, "\n")
}

func outputContract() string {
	return strings.Join([]string{
		"After your reply, always append a JSON block with your best extraction of the client's intent.",
		"Update it on later messages if new information emerges. Format:",
		"",
		extractStart,
		`{"project_type":"` + strings.Join(domain.ProjectTypes, "|") +
			`","budget_signal":"` + strings.Join(domain.BudgetSignals, "|") +
			`","urgency":"` + strings.Join(domain.UrgencyLevels, "|") +
			`","sentiment":"` + strings.Join(domain.SentimentMoods, "|") +
			`","summary":"one sentence summary"}`,
		extractEnd,
		"",
		"If you can't determine a field, use your best guess based on context.",
	}, "\n")
}
