package dispatcher

import (
	"fmt"
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
	d.Register("march_enable", func(e Event) (any, error) {
		called = true
		return "result", nil
	})

	result, err := d.Dispatch(Event{Command: "march_enable", Args: []string{"arg1"}})

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

	_, err := d.Dispatch(Event{Command: "never_registered"})

	if err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	d.Register("participant_moved", func(e Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return nil, nil
	}, Buffered(100))

	// Dispatch 3 events
	for i := 0; i < 3; i++ {
		result, err := d.Dispatch(Event{Command: "participant_moved"})
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
	d.Register("roster_sync", func(e Event) (any, error) {
		<-block
		return nil, nil
	}, Buffered(2))

	// Fill the queue (2 items) + 1 being processed
	d.Dispatch(Event{Command: "roster_sync"}) // being processed
	d.Dispatch(Event{Command: "roster_sync"}) // queued
	d.Dispatch(Event{Command: "roster_sync"}) // queued

	// This should be dropped
	_, err := d.Dispatch(Event{Command: "roster_sync"})

	if err == nil {
		t.Error("expected error when queue is full")
	}

	close(block)
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	d.Register("scene_info", func(e Event) (any, error) {
		<-block
		return nil, nil
	}, Buffered(1), Blocking())

	// First event starts processing
	d.Dispatch(Event{Command: "scene_info"})
	// Second event fills the queue
	d.Dispatch(Event{Command: "scene_info"})

	// Third event should block (test with timeout)
	done := make(chan struct{})
	go func() {
		d.Dispatch(Event{Command: "scene_info"})
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

	d.Register("march_leader", func(e Event) (any, error) {
		return "ok", nil
	}, Logged())

	d.Dispatch(Event{Command: "march_leader", Args: []string{"a", "b"}})

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

	d.Register("march_disable", func(e Event) (any, error) {
		return nil, fmt.Errorf("test error")
	}, Logged())

	d.Dispatch(Event{Command: "march_disable"})

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

	d.Register("march_status", func(e Event) (any, error) { return nil, nil })

	if !d.HasHandler("march_status") {
		t.Error("expected handler to exist")
	}

	if d.HasHandler("move_result") {
		t.Error("expected handler to not exist")
	}
}

func TestDispatcher_CombinedOptions(t *testing.T) {
	d, logger := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)

	d.Register("move_command", func(e Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return "done", nil
	}, Buffered(100), Logged())

	result, err := d.Dispatch(Event{Command: "move_command"})

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

func TestDispatcher_ActorIdentityPassedThrough(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var gotActor string
	var gotGM bool
	d.Register("march_enable", func(e Event) (any, error) {
		gotActor = e.ActorID
		gotGM = e.IsGM
		return nil, nil
	})

	d.Dispatch(Event{Command: "march_enable", ActorID: "user-7", IsGM: true})

	if gotActor != "user-7" || !gotGM {
		t.Errorf("actor identity not carried: actor=%q gm=%v", gotActor, gotGM)
	}
}
