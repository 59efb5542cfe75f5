package narration_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/inquiry/internal/logging"
	"github.com/aretw0/inquiry/pkg/narration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowNarrator struct {
	mu    sync.Mutex
	texts []string
	gate  chan struct{}
	err   error
}

func (n *slowNarrator) Speak(ctx context.Context, text string) error {
	<-n.gate
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	return n.err
}

func TestAsync_DoesNotBlock(t *testing.T) {
	inner := &slowNarrator{gate: make(chan struct{}), err: errors.New("tts down")}
	a := narration.NewAsync(inner)

	begin := time.Now()
	require.NoError(t, a.Speak(context.Background(), "one"))
	require.NoError(t, a.Speak(context.Background(), "two"))
	assert.Less(t, time.Since(begin), 50*time.Millisecond)

	close(inner.gate)
	a.Close()

	assert.Equal(t, []string{"one", "two"}, inner.texts, "narration keeps order and swallows errors")
}

func TestAsync_DropsWhenBacklogFull(t *testing.T) {
	var buf bytes.Buffer
	inner := &slowNarrator{gate: make(chan struct{})}
	a := narration.NewAsync(inner,
		narration.WithBacklog(1),
		narration.WithLogger(logging.NewWithWriter(&buf, slog.LevelDebug, logging.FormatText)),
	)

	for i := 0; i < 5; i++ {
		_ = a.Speak(context.Background(), "text")
	}
	close(inner.gate)
	a.Close()

	assert.Contains(t, buf.String(), "backlog full")
	assert.Less(t, len(inner.texts), 5)
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	n := narration.NewLog(logging.NewWithWriter(&buf, slog.LevelInfo, logging.FormatText))
	require.NoError(t, n.Speak(context.Background(), "Welcome"))
	assert.Contains(t, buf.String(), "text=Welcome")
}
