package event

import (
	"context"
	"log/slog"
)

// ConversationBootstrapper opens a chat thread for a fresh match. The real
// implementation lives in the messaging service; the engine only triggers
// it and tolerates failure (the match stands either way, messaging retries
// off the match.created event).
type ConversationBootstrapper interface {
	Bootstrap(ctx context.Context, userAID, userBID uint64) error
}

// NoopBootstrapper is the default: conversation creation rides entirely on
// the match.created event.
type NoopBootstrapper struct{}

func (NoopBootstrapper) Bootstrap(context.Context, uint64, uint64) error { return nil }

// LoggingBootstrapper records the trigger for development setups without a
// messaging service.
type LoggingBootstrapper struct {
	Logger *slog.Logger
}

func (b LoggingBootstrapper) Bootstrap(_ context.Context, userAID, userBID uint64) error {
	b.Logger.Info("conversation bootstrap requested", "user_a", userAID, "user_b", userBID)
	return nil
}
