package service

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/file-manager/internal/sim"
	"github.com/bigkaa/goartstore/file-manager/internal/storage/filerecord"
	"github.com/bigkaa/goartstore/file-manager/internal/storage/uploadqueue"
)

// testLogger возвращает логгер для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// gateClock — часы, у которых Sleep ждёт разрешения теста.
// Каждый вызов Sleep сначала сообщает о себе в entered.
type gateClock struct {
	*sim.ManualClock
	entered chan struct{}
	release chan struct{}
}

func newGateClock() *gateClock {
	return &gateClock{
		ManualClock: sim.NewManualClock(testStart),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
}

func (g *gateClock) Sleep(ctx context.Context, _ time.Duration) error {
	select {
	case g.entered <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-g.release:
		return nil
	}
}

// waitEntered ждёт, пока симуляция войдёт в Sleep.
func (g *gateClock) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("таймаут ожидания шага симуляции")
	}
}

// testEnv — движок загрузки с хранилищами для тестов.
type testEnv struct {
	queue  *uploadqueue.Store
	files  *filerecord.Store
	events *EventBroker
	engine *UploadEngine
}

// newTestEnv создаёт окружение. Хранилища работают без задержки,
// симуляция идёт по часам clock.
func newTestEnv(t *testing.T, clock sim.Clock, cfg EngineConfig, failures FailureInjector) *testEnv {
	t.Helper()
	logger := testLogger()
	storeClock := sim.NewManualClock(testStart)

	env := &testEnv{
		queue:  uploadqueue.New(storeClock, 0, logger),
		files:  filerecord.New(storeClock, 0, logger),
		events: NewEventBroker(),
	}
	env.engine = NewUploadEngine(
		env.queue, env.files,
		NewPlaceholderThumbnails("https://picsum.photos/200/200"),
		env.events, clock, sim.FixedRandom(0.5), failures, cfg, logger,
	)
	t.Cleanup(env.engine.Close)
	return env
}

// waitCtx возвращает контекст с таймаутом для Wait в тестах.
func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
