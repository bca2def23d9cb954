package usecase

import (
	"time"

	"inquiry-agent/internal/ratelimit"
)

const (
	MaxChatMessages     = 10
	MaxMessageChars     = 2000
	MaxAudioBytes       = 5 << 20
	MaxSubmitMessages   = 20
	MaxNameChars        = 200
	MaxEmailChars       = 254
	MaxDescriptionChars = 5000
)

var (
	ChatHourlyRule = ratelimit.Rule{MaxRequests: 3, Window: time.Hour, Endpoint: "ai-chat"}
	ChatDailyRule  = ratelimit.Rule{MaxRequests: 10, Window: 24 * time.Hour, Endpoint: "ai-chat-daily"}
	SubmitRule     = ratelimit.Rule{MaxRequests: 3, Window: time.Hour, Endpoint: "ai-submit"}
)

// Rules lists every window the services charge, for sizing the sweep horizon.
func Rules() []ratelimit.Rule {
	return []ratelimit.Rule{ChatHourlyRule, ChatDailyRule, SubmitRule}
}
