package event_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sangamlabs/match-engine/internal/event"
)

func TestNoopBootstrapper(t *testing.T) {
	var b event.ConversationBootstrapper = event.NoopBootstrapper{}
	assert.NoError(t, b.Bootstrap(context.Background(), 1, 2))
}

func TestLoggingBootstrapper(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	b := event.LoggingBootstrapper{Logger: log}
	require.NoError(t, b.Bootstrap(context.Background(), 1, 2))

	out := buf.String()
	assert.Contains(t, out, "conversation bootstrap requested")
	assert.Contains(t, out, "user_a=1")
	assert.Contains(t, out, "user_b=2")
}
