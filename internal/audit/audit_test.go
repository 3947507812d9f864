package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{gate: make(chan struct{})}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false, BufferSize: 8}, &countingSink{})
	require.Nil(t, d)

	d.Emit(context.Background(), Event{EventType: "ignored"})
	d.Close()
	assert.Zero(t, d.Dropped())
}

func TestDispatcherDeliversAndFlushesOnClose(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64, DropIfFull: false}, sink)

	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), Event{EventType: "e"})
	}
	d.Close()

	assert.EqualValues(t, 50, sink.count.Load())
	assert.EqualValues(t, 50, d.Delivered())
}

func TestDispatcherOnDropSeesDroppedEvents(t *testing.T) {
	sink := newGateSink()
	var mu sync.Mutex
	var lost []string
	d := NewDispatcher(Config{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
		OnDrop: func(ev Event) {
			mu.Lock()
			defer mu.Unlock()
			lost = append(lost, ev.EventType)
		},
	}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "refresh_success"})
	}
	close(sink.gate)
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, lost)
	assert.EqualValues(t, len(lost), d.Dropped())
	assert.EqualValues(t, 5, d.Dropped()+d.Delivered())
}

func TestDispatcherDropIfFullDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Emit(context.Background(), Event{EventType: "e2"})

	start := time.Now()
	d.Emit(context.Background(), Event{EventType: "e3"})
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.NotZero(t, d.Dropped())
}

func TestDispatcherBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: false}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Emit(context.Background(), Event{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		d.Emit(context.Background(), Event{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestDispatcherBlockedEmitHonorsContext(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: false}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Emit(context.Background(), Event{EventType: "e2"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	d.Emit(ctx, Event{EventType: "e3"})
	assert.Less(t, time.Since(start), time.Second)
}

func TestDispatcherCloseIdempotent(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4, DropIfFull: true}, &countingSink{})

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Close()
	d.Close()
	d.Emit(context.Background(), Event{EventType: "e2"})
}

func TestJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{
		Timestamp: time.Now().UTC(),
		EventType: "sign_in",
		UserID:    "user_01",
		OrgID:     "org_01",
		IP:        "127.0.0.1",
		Success:   true,
	})
	sink.Emit(context.Background(), Event{EventType: "state_mismatch", Error: "state_mismatch"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "sign_in", first["event_type"])
	assert.Equal(t, "user_01", first["user_id"])
	assert.Equal(t, "org_01", first["org_id"])
	assert.NotContains(t, lines[1], "user_id")
}

func TestChannelSink(t *testing.T) {
	sink := NewChannelSink(0)
	sink.Emit(context.Background(), Event{EventType: "logout"})

	select {
	case ev := <-sink.Events():
		assert.Equal(t, "logout", ev.EventType)
	default:
		t.Fatal("expected buffered event")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sink.Emit(ctx, Event{EventType: "fills"})
	cancel()
	sink.Emit(ctx, Event{EventType: "dropped"})
	assert.Len(t, sink.Events(), 1)
}

func TestZapSinkLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewZapSink(zap.New(core))

	sink.Emit(context.Background(), Event{
		EventType: "sign_in",
		UserID:    "user_01",
		Success:   true,
		Metadata:  map[string]string{"orgs": "2"},
	})
	sink.Emit(context.Background(), Event{
		EventType: "session_decode_failure",
		Error:     "unauthenticated",
		IP:        "203.0.113.9",
	})

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "sign_in", entries[0].Message)
	assert.Equal(t, "audit", entries[0].LoggerName)
	assert.Equal(t, "user_01", entries[0].ContextMap()["user_id"])
	assert.Equal(t, "2", entries[0].ContextMap()["meta.orgs"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "203.0.113.9", entries[1].ContextMap()["ip"])
	assert.NotContains(t, entries[1].ContextMap(), "user_id")
}

func TestZapSinkNilLogger(t *testing.T) {
	sink := NewZapSink(nil)
	sink.Emit(context.Background(), Event{EventType: "noop"})
}
