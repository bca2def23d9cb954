// Package notify renders and delivers the side effects of a captured lead:
// the internal alert email, the submitter's auto-reply and critical push
// alerts.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"inquiry-agent/internal/domain"
	"inquiry-agent/internal/integrations/ntfy"
	"inquiry-agent/internal/integrations/resend"
)

type Sender interface {
	Send(ctx context.Context, email resend.Email) (string, error)
}

type Pusher interface {
	Push(ctx context.Context, title, body string, priority ntfy.Priority) error
}

type EmailConfig struct {
	From    string
	AdminTo string
	Brand   string
	SiteURL string
}

// EmailNotifier sends both inquiry emails through one Sender.
type EmailNotifier struct {
	sender Sender
	cfg    EmailConfig
}

func NewEmailNotifier(sender Sender, cfg EmailConfig) (*EmailNotifier, error) {
	if sender == nil {
		return nil, errors.New("notify: sender must not be nil")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("notify: from address must not be empty")
	}
	if strings.TrimSpace(cfg.AdminTo) == "" {
		return nil, errors.New("notify: admin address must not be empty")
	}
	if strings.TrimSpace(cfg.Brand) == "" {
		cfg.Brand = "Tool"
	}
	return &EmailNotifier{sender: sender, cfg: cfg}, nil
}

// NotifyAdmin emails the studio inbox with the lead's details.
func (n *EmailNotifier) NotifyAdmin(ctx context.Context, rec domain.InquiryRecord) error {
	html, err := render(inquiryTemplate, inquiryView{
		Brand:        n.cfg.Brand,
		SiteURL:      n.cfg.SiteURL,
		Rows:         detailRows(rec),
		MessageLines: strings.Split(rec.Description, "\n"),
	})
	if err != nil {
		return err
	}
	_, err = n.sender.Send(ctx, resend.Email{
		From:    n.cfg.From,
		To:      []string{n.cfg.AdminTo},
		ReplyTo: rec.Email,
		Subject: "New inquiry from " + rec.Name,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("notify: admin email: %w", err)
	}
	return nil
}

// SendAutoReply acknowledges the inquiry to the submitter.
func (n *EmailNotifier) SendAutoReply(ctx context.Context, rec domain.InquiryRecord) error {
	html, err := render(autoReplyTemplate, autoReplyView{
		Brand:   n.cfg.Brand,
		SiteURL: n.cfg.SiteURL,
		Name:    rec.Name,
	})
	if err != nil {
		return err
	}
	_, err = n.sender.Send(ctx, resend.Email{
		From:    n.cfg.From,
		To:      []string{rec.Email},
		Subject: "We got your message - " + n.cfg.Brand,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("notify: auto-reply: %w", err)
	}
	return nil
}

func detailRows(rec domain.InquiryRecord) []detailRow {
	rows := []detailRow{{Label: "Name", Value: rec.Name}, {Label: "Email", Value: rec.Email}}
	if rec.Company != "" {
		rows = append(rows, detailRow{Label: "Company", Value: rec.Company})
	}
	if rec.BudgetRange != "" {
		rows = append(rows, detailRow{Label: "Budget", Value: rec.BudgetRange})
	}
	if rec.Timeline != "" {
		rows = append(rows, detailRow{Label: "Timeline", Value: rec.Timeline})
	}
	return rows
}

// PushAlerter raises critical errors as urgent push notifications. A nil
// Pusher turns every alert into a no-op.
type PushAlerter struct {
	pusher Pusher
}

func NewPushAlerter(p Pusher) *PushAlerter {
	return &PushAlerter{pusher: p}
}

func (a *PushAlerter) Alert(ctx context.Context, message, path string) error {
	if a == nil || a.pusher == nil {
		return nil
	}
	body := message
	if path != "" {
		body = fmt.Sprintf("%s (%s)", message, path)
	}
	if err := a.pusher.Push(ctx, "Critical Error", body, ntfy.PriorityUrgent); err != nil {
		return fmt.Errorf("notify: push alert: %w", err)
	}
	return nil
}
