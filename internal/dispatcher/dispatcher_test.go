package dispatcher

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mechevo/simulator/internal/eventlog"
	"github.com/mechevo/simulator/pkg/core"
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

func (l *testLogger) hasPrefix(prefix string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, msg := range l.messages {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}
	t.Cleanup(d.Close)

	return d, logger
}

func hpEvent(id, value int) core.Event {
	return core.NewEvent(core.TitleModifyHp).Int("id", id).Int("value", value)
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got core.Event
	d.Register(core.TitleModifyHp, func(e core.Event) error {
		got = e
		return nil
	})

	if err := d.Dispatch(hpEvent(3, 80)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if v, _ := got.Get("value"); v != "80" {
		t.Errorf("expected value 80, got %q", v)
	}
}

func TestDispatcher_UnknownTitle(t *testing.T) {
	d, _ := newTestDispatcher(t)

	err := d.Dispatch(core.NewEvent(core.TitleErasePlayer))

	if !errors.Is(err, ErrUnknownTitle) {
		t.Errorf("expected ErrUnknownTitle, got %v", err)
	}
}

func TestDispatcher_AnyTitleFallback(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var specific, fallback int
	d.Register(core.TitleModifyHp, func(core.Event) error { specific++; return nil })
	d.Register(AnyTitle, func(core.Event) error { fallback++; return nil })

	d.Dispatch(hpEvent(1, 10))
	d.Dispatch(core.NewEvent(core.TitleMovePlayer))
	d.Dispatch(core.NewEvent(core.TitleErasePlayer))

	if specific != 1 || fallback != 2 {
		t.Errorf("expected 1 specific and 2 fallback, got %d and %d", specific, fallback)
	}
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	d.Register(core.TitleMovePlayer, func(e core.Event) error {
		processed.Add(1)
		wg.Done()
		return nil
	}, Buffered(100))

	for i := 0; i < 3; i++ {
		if err := d.Dispatch(core.NewEvent(core.TitleMovePlayer)); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}

	wg.Wait()

	if processed.Load() != 3 {
		t.Errorf("expected 3 processed, got %d", processed.Load())
	}
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	started := make(chan struct{}, 1)
	block := make(chan struct{})
	d.Register(core.TitleMovePlayer, func(e core.Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil
	}, Buffered(2))
	defer close(block)

	d.Dispatch(core.NewEvent(core.TitleMovePlayer)) // being processed
	<-started
	d.Dispatch(core.NewEvent(core.TitleMovePlayer)) // queued
	d.Dispatch(core.NewEvent(core.TitleMovePlayer)) // queued

	err := d.Dispatch(core.NewEvent(core.TitleMovePlayer))

	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	started := make(chan struct{}, 1)
	block := make(chan struct{})
	d.Register(core.TitleMovePlayer, func(e core.Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil
	}, Buffered(1), Blocking())

	d.Dispatch(core.NewEvent(core.TitleMovePlayer))
	<-started
	d.Dispatch(core.NewEvent(core.TitleMovePlayer))

	done := make(chan struct{})
	go func() {
		d.Dispatch(core.NewEvent(core.TitleMovePlayer))
		close(done)
	}()

	select {
	case <-done:
		t.Error("dispatch should have blocked")
	case <-time.After(50 * time.Millisecond):
		// Expected - dispatch is blocking
	}

	close(block)
	<-done
}

func TestDispatcher_CloseDrainsQueue(t *testing.T) {
	logger := &testLogger{}
	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	var processed atomic.Int32
	d.Register(AnyTitle, func(e core.Event) error {
		time.Sleep(time.Millisecond)
		processed.Add(1)
		return nil
	}, Buffered(50), Blocking())

	for i := 0; i < 20; i++ {
		d.Dispatch(hpEvent(i, 1))
	}
	d.Close()

	if processed.Load() != 20 {
		t.Errorf("expected 20 processed after Close, got %d", processed.Load())
	}
	if err := d.Dispatch(hpEvent(1, 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}

	// second Close is a no-op
	d.Close()
}

func TestDispatcher_BufferedHandlerErrorLogged(t *testing.T) {
	logger := &testLogger{}
	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	d.Register(AnyTitle, func(e core.Event) error {
		return fmt.Errorf("disk full")
	}, Buffered(4))

	d.Dispatch(hpEvent(1, 1))
	d.Close()

	if !logger.hasPrefix("ERROR: buffered handler failed") {
		t.Error("expected buffered failure to be logged")
	}
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(core.TitleModifyHp, func(e core.Event) error {
		return nil
	}, Logged())

	d.Dispatch(hpEvent(1, 50))

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected at least 2 log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(core.TitleModifyHp, func(e core.Event) error {
		return fmt.Errorf("test error")
	}, Logged())

	d.Dispatch(hpEvent(1, 50))

	if !logger.hasPrefix("ERROR") {
		t.Error("expected error log message")
	}
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(core.TitleCreatePlayer, func(e core.Event) error { return nil })

	if !d.HasHandler(core.TitleCreatePlayer) {
		t.Error("expected handler to exist")
	}

	if d.HasHandler(core.TitleErasePlayer) {
		t.Error("expected handler to not exist")
	}
}

func TestDispatcher_ListenerFromEventLog(t *testing.T) {
	d, logger := newTestDispatcher(t)

	var titles []string
	d.Register(core.TitleCreatePlayer, func(e core.Event) error {
		titles = append(titles, e.Title)
		return nil
	})
	d.Register(core.TitleModifyHp, func(e core.Event) error {
		return fmt.Errorf("rejected")
	})

	log := eventlog.New()
	log.Subscribe(d.Listener())

	log.Emit(core.NewEvent(core.TitleCreatePlayer).Int("id", 1))
	log.Emit(core.NewEvent(core.TitleMovePlayer).Int("id", 1)) // unrouted, ignored
	log.Emit(hpEvent(1, 90))

	if len(titles) != 1 {
		t.Errorf("expected 1 routed event, got %d", len(titles))
	}
	if log.Len() != 3 {
		t.Errorf("expected log to keep all 3 events, got %d", log.Len())
	}
	if !logger.hasPrefix("ERROR: dispatch failed") {
		t.Error("expected rejected event to be logged")
	}
}

func TestDispatcher_CombinedOptions(t *testing.T) {
	d, logger := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)

	d.Register(core.TitleMovePlayer, func(e core.Event) error {
		processed.Add(1)
		wg.Done()
		return nil
	}, Buffered(100), Logged())

	if err := d.Dispatch(core.NewEvent(core.TitleMovePlayer)); err != nil {
		t.Errorf("unexpected error: %v", err)
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
