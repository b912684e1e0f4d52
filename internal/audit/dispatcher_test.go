package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Emit(_ context.Context, event Event) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcherDeliversAndDrains(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(DispatcherConfig{BufferSize: 16}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: EventLoginSuccess})
	}
	d.Close()

	if got := sink.count(); got != 10 {
		t.Fatalf("delivered %d events, want 10", got)
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	// A sink that blocks until released, so the buffer fills.
	release := make(chan struct{})
	blocking := sinkFunc(func(context.Context, Event) { <-release })

	d := NewDispatcher(DispatcherConfig{BufferSize: 1, DropIfFull: true}, blocking)
	defer func() {
		close(release)
		d.Close()
	}()

	// One in flight, one buffered, the rest dropped.
	deadline := time.After(2 * time.Second)
	for d.Dropped() == 0 {
		d.Emit(context.Background(), Event{EventType: EventLoginFailure})
		select {
		case <-deadline:
			t.Fatal("dispatcher never dropped under backpressure")
		default:
		}
	}
}

func TestEmitAfterCloseIsNoOp(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(DispatcherConfig{BufferSize: 4}, sink)
	d.Close()

	d.Emit(context.Background(), Event{EventType: EventLogout})
	if got := sink.count(); got != 0 {
		t.Fatalf("event delivered after close: %d", got)
	}
}

func TestNilDispatcherIsSafe(t *testing.T) {
	var d *Dispatcher
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reports drops")
	}
}

type sinkFunc func(ctx context.Context, event Event)

func (f sinkFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{
		EventType: EventLoginSuccess,
		Username:  "msmith",
		Success:   true,
	})
	sink.Emit(context.Background(), Event{EventType: EventLogout, Username: "msmith"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("wrote %d lines, want 2", len(lines))
	}

	var decoded Event
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("line not valid JSON: %v", err)
	}
	if decoded.EventType != EventLoginSuccess || decoded.Username != "msmith" || !decoded.Success {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestChannelSink(t *testing.T) {
	sink := NewChannelSink(2)
	sink.Emit(context.Background(), Event{EventType: EventIPBlocked, IP: "10.0.0.9"})

	select {
	case got := <-sink.Events():
		if got.EventType != EventIPBlocked || got.IP != "10.0.0.9" {
			t.Fatalf("received = %+v", got)
		}
	default:
		t.Fatal("no event in channel")
	}
}
