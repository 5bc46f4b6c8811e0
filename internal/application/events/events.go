// Package events publishes account lifecycle notifications to whoever listens.
package events

import (
	"context"
	"log/slog"

	"github.com/atelier-api/internal/domain"
)

// Publisher is injected wherever events are raised.
type Publisher interface {
	Publish(ctx context.Context, e domain.Event) error
}

// LogPublisher writes events to a slog logger. Used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, e domain.Event) error {
	p.logger.InfoContext(ctx, "event published",
		"type", e.Type,
		"account_id", e.AccountID,
		"role", e.Role,
		"channel", e.Channel,
	)
	return nil
}
