package observe

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrNop(t *testing.T) {
	assert.IsType(t, Nop{}, OrNop(nil))

	r := &Recorder{}
	assert.Same(t, r, OrNop(r))
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Emit(ctx, Event{Name: "tick", Attrs: map[string]any{"i": i}})
		}(i)
	}
	wg.Wait()
	r.Emit(ctx, Event{Name: "done"})

	assert.Len(t, r.Events(), 11)
	assert.Len(t, r.Named("tick"), 10)
	assert.Len(t, r.Named("done"), 1)
	assert.Empty(t, r.Named("missing"))
}

func TestSlogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := NewSlogSink(logger)

	sink.Emit(context.Background(), Event{
		Name:  "retrieve.prefix",
		Attrs: map[string]any{"prefix": "db/", "added": 3},
	})

	out := buf.String()
	require.Contains(t, out, "msg=retrieve.prefix")
	assert.Contains(t, out, "added=3 prefix=db/")
}

func TestSlogSink_LevelFiltered(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	NewSlogSink(logger).Emit(context.Background(), Event{Name: "hidden"})
	assert.Empty(t, buf.String())

	(&SlogSink{}).Emit(context.Background(), Event{Name: "no logger"})
}
