package usecase

import (
	"encoding/json"
	"slices"
	"strings"

	"inquiry-agent/internal/domain"
)

const maxSummaryLen = 500

// Extraction is the parsed form of one model reply: the user-visible text and,
// when the model produced a well-formed block, the extracted intent.
type Extraction struct {
	Reply  string
	intent *domain.ExtractedIntent
}

// Parsed returns the intent and true, or the zero value and false when the
// reply carried no usable block.
func (e Extraction) Parsed() (domain.ExtractedIntent, bool) {
	if e.intent == nil {
		return domain.ExtractedIntent{}, false
	}
	return *e.intent, true
}

// Intent returns a copy of the parsed intent or nil.
func (e Extraction) Intent() *domain.ExtractedIntent {
	if e.intent == nil {
		return nil
	}
	out := *e.intent
	return &out
}

// ParseExtraction splits raw model output into reply text and the first
// delimited extraction block. A missing or malformed block yields an
// unparsed Extraction; it never fails.
func ParseExtraction(raw string) Extraction {
	start := strings.Index(raw, extractStart)
	if start < 0 {
		return Extraction{Reply: replyOrFallback(raw)}
	}
	bodyStart := start + len(extractStart)
	endRel := strings.Index(raw[bodyStart:], extractEnd)
	if endRel < 0 {
		return Extraction{Reply: replyOrFallback(raw)}
	}
	body := raw[bodyStart : bodyStart+endRel]
	reply := raw[:start] + raw[bodyStart+endRel+len(extractEnd):]

	out := Extraction{Reply: replyOrFallback(reply)}
	var intent *domain.ExtractedIntent
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &intent); err != nil || intent == nil {
		return out
	}
	normalized := NormalizeIntent(*intent)
	out.intent = &normalized
	return out
}

// NormalizeIntent clears enumerated fields outside their allowed sets and
// bounds the summary.
func NormalizeIntent(in domain.ExtractedIntent) domain.ExtractedIntent {
	return domain.ExtractedIntent{
		ProjectType:  enumValue(in.ProjectType, domain.ProjectTypes),
		BudgetSignal: enumValue(in.BudgetSignal, domain.BudgetSignals),
		Urgency:      enumValue(in.Urgency, domain.UrgencyLevels),
		Sentiment:    enumValue(in.Sentiment, domain.SentimentMoods),
		Summary:      truncateRunes(strings.TrimSpace(in.Summary), maxSummaryLen),
	}
}

func enumValue(v string, allowed []string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if slices.Contains(allowed, v) {
		return v
	}
	return ""
}

func replyOrFallback(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallbackReply
	}
	return s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
