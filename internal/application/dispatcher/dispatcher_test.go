package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garyjia/disbursement/internal/domain/event"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func (m *mockLogger) HasInfo(msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, info := range m.infos {
		if info == msg {
			return true
		}
	}
	return false
}

func noop(ctx context.Context, evt *event.Event) error { return nil }

func submitted() *event.Event {
	return event.NewEvent(event.TypeRequestSubmitted, "REQ001", nil)
}

func TestSubscribe(t *testing.T) {
	t.Run("auto-generated names are unique per event type", func(t *testing.T) {
		d := NewDispatcher()
		d.Subscribe(event.TypeRequestSubmitted, noop)
		d.Subscribe(event.TypeRequestSubmitted, noop)

		handlers := d.ListHandlers(event.TypeRequestSubmitted)
		if len(handlers) != 2 {
			t.Fatalf("expected 2 handlers, got %d", len(handlers))
		}
		if handlers[0].Name == handlers[1].Name {
			t.Errorf("expected distinct names, both were %q", handlers[0].Name)
		}
	})

	t.Run("logs registration", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))

		d.SubscribeNamed(event.TypeRequestSubmitted, "audit", noop)

		if !logger.HasInfo("Handler registered") {
			t.Error("expected registration to be logged")
		}
	})
}

func TestSubscribeAll(t *testing.T) {
	d := NewDispatcher()
	var seen []event.Type
	var mu sync.Mutex

	d.SubscribeAll("recorder", func(ctx context.Context, evt *event.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, evt.Type)
		return nil
	})

	for _, typ := range []event.Type{event.TypeRequestSubmitted, event.TypeStatusChanged, event.TypeAdvanceLiquidated} {
		if err := d.Dispatch(context.Background(), event.NewEvent(typ, "REQ001", nil)); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
	}

	if len(seen) != 3 {
		t.Errorf("expected wildcard handler to see 3 events, got %v", seen)
	}
}

func TestUnsubscribe(t *testing.T) {
	d := NewDispatcher()
	called1, called2 := false, false

	d.SubscribeNamed(event.TypeRequestSubmitted, "handler-1", func(ctx context.Context, evt *event.Event) error {
		called1 = true
		return nil
	})
	d.SubscribeNamed(event.TypeRequestSubmitted, "handler-2", func(ctx context.Context, evt *event.Event) error {
		called2 = true
		return nil
	})

	d.Unsubscribe(event.TypeRequestSubmitted, "handler-1")

	if err := d.Dispatch(context.Background(), submitted()); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	if called1 {
		t.Error("expected handler-1 not to be called")
	}
	if !called2 {
		t.Error("expected handler-2 to be called")
	}
}

func TestDispatch(t *testing.T) {
	t.Run("runs typed handlers before wildcard handlers", func(t *testing.T) {
		d := NewDispatcher()
		var order []string

		d.SubscribeAll("all", func(ctx context.Context, evt *event.Event) error {
			order = append(order, "all")
			return nil
		})
		d.SubscribeNamed(event.TypeRequestSubmitted, "first", func(ctx context.Context, evt *event.Event) error {
			order = append(order, "first")
			return nil
		})
		d.SubscribeNamed(event.TypeRequestSubmitted, "second", func(ctx context.Context, evt *event.Event) error {
			order = append(order, "second")
			return nil
		})

		if err := d.Dispatch(context.Background(), submitted()); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}

		want := []string{"first", "second", "all"}
		if fmt.Sprint(order) != fmt.Sprint(want) {
			t.Errorf("order = %v, want %v", order, want)
		}
	})

	t.Run("keeps going after a handler error and joins errors", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		errA := errors.New("a failed")
		errB := errors.New("b failed")
		called := false

		d.Subscribe(event.TypeRequestSubmitted, func(ctx context.Context, evt *event.Event) error { return errA })
		d.Subscribe(event.TypeRequestSubmitted, func(ctx context.Context, evt *event.Event) error {
			called = true
			return nil
		})
		d.Subscribe(event.TypeRequestSubmitted, func(ctx context.Context, evt *event.Event) error { return errB })

		err := d.Dispatch(context.Background(), submitted())
		if !errors.Is(err, errA) || !errors.Is(err, errB) {
			t.Errorf("expected joined error containing both failures, got %v", err)
		}
		if !called {
			t.Error("expected handler after the failing one to run")
		}
		if logger.ErrorCount() != 2 {
			t.Errorf("expected 2 error logs, got %d", logger.ErrorCount())
		}
	})

	t.Run("recovers from handler panic", func(t *testing.T) {
		d := NewDispatcher()
		d.Subscribe(event.TypeRequestSubmitted, func(ctx context.Context, evt *event.Event) error {
			panic("boom")
		})

		if err := d.Dispatch(context.Background(), submitted()); err == nil {
			t.Fatal("expected error from panic recovery")
		}
	})

	t.Run("returns ErrClosed after close", func(t *testing.T) {
		d := NewDispatcher()
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}

		if err := d.Dispatch(context.Background(), submitted()); !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	})
}

func TestDispatchAsync(t *testing.T) {
	t.Run("handlers outlive a cancelled caller context", func(t *testing.T) {
		d := NewDispatcher()
		var ctxErr atomic.Value

		d.Subscribe(event.TypeStatusChanged, func(ctx context.Context, evt *event.Event) error {
			time.Sleep(10 * time.Millisecond)
			if err := ctx.Err(); err != nil {
				ctxErr.Store(err)
			}
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		d.DispatchAsync(ctx, event.NewEvent(event.TypeStatusChanged, "REQ001", nil))
		cancel()

		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if v := ctxErr.Load(); v != nil {
			t.Errorf("expected detached context, handler saw %v", v)
		}
	})

	t.Run("logs handler errors and panics", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		var called atomic.Int32

		d.Subscribe(event.TypeRequestSubmitted, func(ctx context.Context, evt *event.Event) error {
			return errors.New("handler error")
		})
		d.Subscribe(event.TypeRequestSubmitted, func(ctx context.Context, evt *event.Event) error {
			panic("async panic")
		})
		d.Subscribe(event.TypeRequestSubmitted, func(ctx context.Context, evt *event.Event) error {
			called.Add(1)
			return nil
		})

		d.DispatchAsync(context.Background(), submitted())

		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if called.Load() != 1 {
			t.Errorf("expected healthy handler to run once, got %d", called.Load())
		}
		if logger.ErrorCount() != 2 {
			t.Errorf("expected 2 error logs, got %d", logger.ErrorCount())
		}
	})

	t.Run("does not dispatch when closed", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		var called atomic.Int32

		d.Subscribe(event.TypeRequestSubmitted, func(ctx context.Context, evt *event.Event) error {
			called.Add(1)
			return nil
		})

		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}

		d.DispatchAsync(context.Background(), submitted())
		time.Sleep(20 * time.Millisecond)

		if called.Load() > 0 {
			t.Error("expected handler not to be called after close")
		}
		if logger.ErrorCount() == 0 {
			t.Error("expected error log for dispatching to closed dispatcher")
		}
	})
}

func TestListHandlers(t *testing.T) {
	d := NewDispatcher()
	d.SubscribeNamed(event.TypeRequestSubmitted, "audit", noop)

	handlers := d.ListHandlers(event.TypeRequestSubmitted)
	if len(handlers) != 1 {
		t.Fatalf("expected 1 handler, got %d", len(handlers))
	}
	if handlers[0].Name != "audit" {
		t.Errorf("expected name 'audit', got %q", handlers[0].Name)
	}
	if handlers[0].Handler != nil {
		t.Error("expected handler function not to be exposed")
	}
	if got := d.ListHandlers(event.TypeRequestDeleted); len(got) != 0 {
		t.Errorf("expected no handlers, got %d", len(got))
	}
}

func TestClose(t *testing.T) {
	t.Run("waits for async handlers to complete", func(t *testing.T) {
		d := NewDispatcher()
		var completed atomic.Bool

		d.Subscribe(event.TypeRequestSubmitted, func(ctx context.Context, evt *event.Event) error {
			time.Sleep(30 * time.Millisecond)
			completed.Store(true)
			return nil
		})

		d.DispatchAsync(context.Background(), submitted())

		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if !completed.Load() {
			t.Error("expected async handler to complete before Close returns")
		}
	})

	t.Run("returns error on double close", func(t *testing.T) {
		d := NewDispatcher()
		if err := d.Close(); err != nil {
			t.Fatalf("first close failed: %v", err)
		}
		if err := d.Close(); err == nil {
			t.Fatal("expected error on second close")
		}
	})
}

func TestConcurrentSubscribeAndDispatch(t *testing.T) {
	d := NewDispatcher()
	var called atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Subscribe(event.TypeStatusChanged, func(ctx context.Context, evt *event.Event) error {
				called.Add(1)
				return nil
			})
		}()
	}
	wg.Wait()

	names := map[string]bool{}
	for _, h := range d.ListHandlers(event.TypeStatusChanged) {
		names[h.Name] = true
	}
	if len(names) != 10 {
		t.Fatalf("expected 10 uniquely named handlers, got %d", len(names))
	}

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Dispatch(context.Background(), event.NewEvent(event.TypeStatusChanged, "REQ001", nil))
		}()
	}
	wg.Wait()

	if called.Load() != 50 {
		t.Errorf("expected 50 handler calls, got %d", called.Load())
	}
}
