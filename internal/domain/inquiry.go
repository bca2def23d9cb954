package domain

import (
	"errors"
	"time"
)

// ErrNotConfigured marks failures caused by missing credentials or clients for
// a hosted collaborator, as opposed to the collaborator itself failing.
var ErrNotConfigured = errors.New("collaborator not configured")

const InquiryStatusNew = "new"

// InquiryRecord is a persisted lead. It is written once by the submission
// pipeline and never updated by it.
type InquiryRecord struct {
	ID           string           `dynamodbav:"id" json:"id"`
	Name         string           `dynamodbav:"name" json:"name"`
	Email        string           `dynamodbav:"email" json:"email"`
	Company      string           `dynamodbav:"company,omitempty" json:"company,omitempty"`
	ProjectType  string           `dynamodbav:"project_type,omitempty" json:"project_type,omitempty"`
	Description  string           `dynamodbav:"description" json:"description"`
	BudgetRange  string           `dynamodbav:"budget_range,omitempty" json:"budget_range,omitempty"`
	Timeline     string           `dynamodbav:"timeline,omitempty" json:"timeline,omitempty"`
	Source       Source           `dynamodbav:"source" json:"source"`
	AITranscript string           `dynamodbav:"ai_transcript" json:"ai_transcript"`
	AIExtracted  *ExtractedIntent `dynamodbav:"ai_extracted,omitempty" json:"ai_extracted,omitempty"`
	AISummary    string           `dynamodbav:"ai_summary,omitempty" json:"ai_summary,omitempty"`
	Status       string           `dynamodbav:"status" json:"status"`
	CreatedAt    time.Time        `dynamodbav:"created_at" json:"created_at"`
}

// RateLimitEntry is one accepted request charged against (Identity, Endpoint).
type RateLimitEntry struct {
	Identity  string
	Endpoint  string
	CreatedAt time.Time
}
