package cli

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"inquiry-agent/internal/domain"
)

const calBaseURL = "https://cal.com/"

// PrintScheduler prints the booking link instead of opening a widget.
type PrintScheduler struct {
	Out io.Writer
}

func (s PrintScheduler) Open(_ context.Context, calLink string, prefill domain.CalPrefill) error {
	_, err := fmt.Fprintf(s.Out, "Book a call: %s\n", BookingURL(calLink, prefill))
	return err
}

// BookingURL builds the scheduling link with the contact details prefilled.
func BookingURL(calLink string, prefill domain.CalPrefill) string {
	q := url.Values{}
	q.Set("name", prefill.Name)
	q.Set("email", prefill.Email)
	if prefill.Notes != "" {
		q.Set("notes", prefill.Notes)
	}
	return calBaseURL + strings.Trim(calLink, "/") + "?" + q.Encode()
}
