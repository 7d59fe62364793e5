package dispatcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	called := false
	d.Register("solar", func(_ context.Context, e Event) (any, error) {
		called = true
		return "result", nil
	})

	result, err := d.Dispatch(context.Background(), Event{Command: "solar", Args: []string{"field-1"}})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
	if result != "result" {
		t.Errorf("expected 'result', got %v", result)
	}
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(context.Background(), Event{Command: "unknown"})

	if err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	d.Register("store", func(_ context.Context, e Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return nil, nil
	}, Buffered(100))

	// Dispatch 3 events
	for i := 0; i < 3; i++ {
		result, err := d.Dispatch(context.Background(), Event{Command: "store"})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != "queued" {
			t.Errorf("expected 'queued', got %v", result)
		}
	}

	// Wait for processing
	wg.Wait()

	if processed.Load() != 3 {
		t.Errorf("expected 3 processed, got %d", processed.Load())
	}
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	// Block the handler so queue fills up
	block := make(chan struct{})
	d.Register("influx", func(_ context.Context, e Event) (any, error) {
		<-block
		return nil, nil
	}, Buffered(2))

	// Fill the queue (2 items) + 1 being processed
	d.Dispatch(context.Background(), Event{Command: "influx"}) // being processed
	d.Dispatch(context.Background(), Event{Command: "influx"}) // queued
	d.Dispatch(context.Background(), Event{Command: "influx"}) // queued

	// This should be dropped
	_, err := d.Dispatch(context.Background(), Event{Command: "influx"})

	if err == nil {
		t.Error("expected error when queue is full")
	}

	close(block)
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	d.Register("export", func(_ context.Context, e Event) (any, error) {
		<-block
		return nil, nil
	}, Buffered(1), Blocking())

	// First event starts processing
	d.Dispatch(context.Background(), Event{Command: "export"})
	// Second event fills the queue
	d.Dispatch(context.Background(), Event{Command: "export"})

	// Third event should block (test with timeout)
	done := make(chan struct{})
	go func() {
		d.Dispatch(context.Background(), Event{Command: "export"})
		close(done)
	}()

	select {
	case <-done:
		t.Error("dispatch should have blocked")
	case <-time.After(50 * time.Millisecond):
		// Expected - dispatch is blocking
	}

	close(block)
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("wind", func(_ context.Context, e Event) (any, error) {
		return "ok", nil
	}, Logged())

	d.Dispatch(context.Background(), Event{Command: "wind", Args: []string{"a", "b"}})

	// Give time for logging
	time.Sleep(10 * time.Millisecond)

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected at least 2 log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("delete", func(_ context.Context, e Event) (any, error) {
		return nil, fmt.Errorf("test error")
	}, Logged())

	d.Dispatch(context.Background(), Event{Command: "delete"})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	hasError := false
	for _, msg := range logger.messages {
		if len(msg) >= 5 && msg[:5] == "ERROR" {
			hasError = true
			break
		}
	}

	if !hasError {
		t.Error("expected error log message")
	}
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register("list", func(_ context.Context, e Event) (any, error) { return nil, nil })

	if !d.HasHandler("list") {
		t.Error("expected handler to exist")
	}

	if d.HasHandler("get") {
		t.Error("expected handler to not exist")
	}
}

func TestDispatcher_CombinedOptions(t *testing.T) {
	d, logger := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)

	d.Register("candidates", func(_ context.Context, e Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return "done", nil
	}, Buffered(100), Logged())

	result, err := d.Dispatch(context.Background(), Event{Command: "candidates"})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result != "queued" {
		t.Errorf("expected 'queued', got %v", result)
	}

	wg.Wait()

	if processed.Load() != 1 {
		t.Errorf("expected 1 processed, got %d", processed.Load())
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_CaseInsensitive(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register("Solar", func(_ context.Context, e Event) (any, error) { return e.Command, nil })

	result, err := d.Dispatch(context.Background(), Event{Command: " SOLAR "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != " SOLAR " {
		t.Errorf("handler should see the original command, got %v", result)
	}
	if !d.HasHandler("solar") {
		t.Error("expected handler to be registered under lower case")
	}
}

func TestDispatcher_SetsTimestamp(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got time.Time
	d.Register("solar", func(_ context.Context, e Event) (any, error) {
		got = e.Timestamp
		return nil, nil
	})

	before := time.Now()
	d.Dispatch(context.Background(), Event{Command: "solar"})
	if got.Before(before) {
		t.Errorf("expected timestamp after %v, got %v", before, got)
	}
}

func TestDispatcher_CloseDrainsQueue(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	d.Register("store", func(_ context.Context, e Event) (any, error) {
		time.Sleep(time.Millisecond)
		processed.Add(1)
		return nil, nil
	}, Buffered(10))

	for i := 0; i < 5; i++ {
		d.Dispatch(context.Background(), Event{Command: "store"})
	}
	d.Close()

	if processed.Load() != 5 {
		t.Errorf("expected 5 processed after Close, got %d", processed.Load())
	}

	if _, err := d.Dispatch(context.Background(), Event{Command: "store"}); err == nil {
		t.Error("expected error dispatching to a closed queue")
	}

	// second Close is a no-op
	d.Close()
}

func TestDispatcher_QueuedHandlerOutlivesCaller(t *testing.T) {
	d, _ := newTestDispatcher(t)

	errCh := make(chan error, 1)
	d.Register("store", func(ctx context.Context, e Event) (any, error) {
		errCh <- ctx.Err()
		return nil, nil
	}, Buffered(1))

	ctx, cancel := context.WithCancel(context.Background())
	d.Dispatch(ctx, Event{Command: "store"})
	cancel()
	d.Close()

	if err := <-errCh; err != nil {
		t.Errorf("queued handler context should not be canceled, got %v", err)
	}
}

func TestDispatcher_BlockingHonorsContext(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	defer close(block)
	d.Register("export", func(_ context.Context, e Event) (any, error) {
		<-block
		return nil, nil
	}, Buffered(1), Blocking())

	d.Dispatch(context.Background(), Event{Command: "export"})
	d.Dispatch(context.Background(), Event{Command: "export"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := d.Dispatch(ctx, Event{Command: "export"})
	if err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestDispatcher_QueuedErrorLogged(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("influx", func(_ context.Context, e Event) (any, error) {
		return nil, fmt.Errorf("write failed")
	}, Buffered(1))

	d.Dispatch(context.Background(), Event{Command: "influx"})
	d.Close()

	logger.mu.Lock()
	defer logger.mu.Unlock()

	found := false
	for _, msg := range logger.messages {
		if strings.HasPrefix(msg, "ERROR: queued event failed") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected queued failure to be logged, got %v", logger.messages)
	}
}

func TestTee(t *testing.T) {
	a, b := &testLogger{}, &testLogger{}
	l := Tee(a, b)

	l.Debug("one")
	l.Info("two")
	l.Error("three", "k", 1)

	if len(a.messages) != 3 || len(b.messages) != 3 {
		t.Errorf("expected 3 messages each, got %d and %d", len(a.messages), len(b.messages))
	}
	if b.messages[2] != "ERROR: three [k 1]" {
		t.Errorf("unexpected message %q", b.messages[2])
	}
}
