package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
)

type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SweepHandler runs the rate-limit cleanup on a schedule.
type SweepHandler struct {
	sweeper Sweeper
	logger  *slog.Logger
}

type SweepResult struct {
	Deleted int `json:"deleted"`
}

func NewSweepHandler(s Sweeper, logger *slog.Logger) (*SweepHandler, error) {
	if s == nil {
		return nil, errors.New("handler: sweeper must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepHandler{sweeper: s, logger: logger}, nil
}

func (h *SweepHandler) Handle(ctx context.Context, event events.CloudWatchEvent) (SweepResult, error) {
	n, err := h.sweeper.Sweep(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "rate limit sweep failed", "event_id", event.ID, "deleted", n, "err", err)
		return SweepResult{Deleted: n}, err
	}
	h.logger.InfoContext(ctx, "rate limit sweep complete", "event_id", event.ID, "deleted", n)
	return SweepResult{Deleted: n}, nil
}
