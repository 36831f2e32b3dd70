package uploadqueue

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/lifecycle"
	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/sim"
)

// testLogger возвращает логгер для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func newTestStore() *Store {
	return New(sim.NewManualClock(time.Now()), 0, testLogger())
}

func f64(v float64) *float64 { return &v }

func status(s model.UploadStatus) *model.UploadStatus { return &s }

func mustCreate(t *testing.T, s *Store, name string, size int64) model.UploadQueueEntry {
	t.Helper()
	e, err := s.Create(context.Background(), model.UploadQueueInput{
		FileName: name, FileSize: size, FileType: "text/plain",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return e
}

// TestCreate_Defaults проверяет значения по умолчанию новой записи.
func TestCreate_Defaults(t *testing.T) {
	s := newTestStore()
	e := mustCreate(t, s, "a.txt", 100)

	if !strings.HasPrefix(e.FileID, IDPrefix) {
		t.Errorf("FileID: ожидался префикс %q, получено %q", IDPrefix, e.FileID)
	}
	if e.Status != model.UploadPending {
		t.Errorf("Status: ожидалось pending, получено %s", e.Status)
	}
	if e.Progress != 0 || e.Speed != 0 || e.TimeRemaining != 0 {
		t.Errorf("числовые поля должны быть нулевыми: %+v", e)
	}
}

// TestCreate_Order проверяет порядок постановки и дубликаты.
func TestCreate_Order(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	a, _ := s.Create(ctx, model.UploadQueueInput{FileID: "a", FileName: "a"})
	b, _ := s.Create(ctx, model.UploadQueueInput{FileID: "b", FileName: "b"})

	list, _ := s.List(ctx)
	if len(list) != 2 || list[0].FileID != a.FileID || list[1].FileID != b.FileID {
		t.Errorf("неожиданный порядок: %+v", list)
	}

	if _, err := s.Create(ctx, model.UploadQueueInput{FileID: "a"}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("ожидалась ErrDuplicate, получено %v", err)
	}
	if _, err := s.Create(ctx, model.UploadQueueInput{FileSize: -1}); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("ожидалась ErrInvalidEntry, получено %v", err)
	}
}

// TestUpdate_Lifecycle проверяет полный путь pending → uploading → completed.
func TestUpdate_Lifecycle(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	e := mustCreate(t, s, "a.txt", 100)

	got, err := s.Update(ctx, e.FileID, model.UploadPatch{Status: status(model.UploadUploading)})
	if err != nil {
		t.Fatalf("pending → uploading: %v", err)
	}
	if got.Status != model.UploadUploading {
		t.Errorf("ожидалось uploading, получено %s", got.Status)
	}

	got, err = s.Update(ctx, e.FileID, model.UploadPatch{
		Progress: f64(50), Speed: f64(1000), TimeRemaining: f64(2), Status: status(model.UploadUploading),
	})
	if err != nil {
		t.Fatalf("шаг прогресса: %v", err)
	}
	if got.Progress != 50 || got.Speed != 1000 || got.TimeRemaining != 2 {
		t.Errorf("неожиданные поля: %+v", got)
	}

	got, err = s.Update(ctx, e.FileID, model.UploadPatch{
		Progress: f64(99.9), TimeRemaining: f64(5), Status: status(model.UploadCompleted),
	})
	if err != nil {
		t.Fatalf("uploading → completed: %v", err)
	}
	if got.Progress != 100 || got.TimeRemaining != 0 {
		t.Errorf("completed: прогресс должен быть 100, оставшееся время 0: %+v", got)
	}
}

// TestUpdate_TerminalRejected проверяет, что конечные записи не обновляются.
func TestUpdate_TerminalRejected(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	for _, final := range []model.UploadStatus{model.UploadCompleted, model.UploadError} {
		e := mustCreate(t, s, "a", 10)
		if _, err := s.Update(ctx, e.FileID, model.UploadPatch{Status: status(final)}); err != nil {
			t.Fatalf("pending → %s: %v", final, err)
		}

		_, err := s.Update(ctx, e.FileID, model.UploadPatch{Progress: f64(100)})
		var te *lifecycle.TransitionError
		if !errors.As(err, &te) || te.Code != lifecycle.CodeTerminalState {
			t.Errorf("%s: ожидалась TERMINAL_STATE, получено %v", final, err)
		}

		_, err = s.Update(ctx, e.FileID, model.UploadPatch{Status: status(model.UploadUploading)})
		if !errors.As(err, &te) {
			t.Errorf("%s → uploading: ожидалась TransitionError, получено %v", final, err)
		}

		got, _ := s.Get(ctx, e.FileID)
		if got.Status != final {
			t.Errorf("статус изменился: %s", got.Status)
		}
	}
}

// TestUpdate_ProgressMonotonic проверяет запрет уменьшения прогресса.
func TestUpdate_ProgressMonotonic(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	e := mustCreate(t, s, "a", 10)

	s.Update(ctx, e.FileID, model.UploadPatch{Status: status(model.UploadUploading), Progress: f64(40)})

	if _, err := s.Update(ctx, e.FileID, model.UploadPatch{Progress: f64(30)}); !errors.Is(err, ErrProgressRegression) {
		t.Errorf("ожидалась ErrProgressRegression, получено %v", err)
	}
	got, _ := s.Get(ctx, e.FileID)
	if got.Progress != 40 {
		t.Errorf("прогресс изменился: %v", got.Progress)
	}
}

// TestUpdate_Sanitize проверяет ограничение значений.
func TestUpdate_Sanitize(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	e := mustCreate(t, s, "a", 10)

	got, err := s.Update(ctx, e.FileID, model.UploadPatch{
		Status:        status(model.UploadUploading),
		Progress:      f64(150),
		Speed:         f64(-1),
		TimeRemaining: f64(math.Inf(1)),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Progress != 100 {
		t.Errorf("Progress: ожидалось 100, получено %v", got.Progress)
	}
	if got.Speed != 0 || got.TimeRemaining != 0 {
		t.Errorf("Speed и TimeRemaining должны быть 0: %+v", got)
	}
}

// TestUpdate_AfterDelete проверяет, что обновление удалённой записи не воскрешает её.
func TestUpdate_AfterDelete(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	e := mustCreate(t, s, "a", 10)

	if _, err := s.Delete(ctx, e.FileID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Update(ctx, e.FileID, model.UploadPatch{Progress: f64(10)}); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
	if s.Count() != 0 {
		t.Error("запись не должна появиться снова")
	}
	if _, err := s.Delete(ctx, e.FileID); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторное удаление: ожидалась ErrNotFound, получено %v", err)
	}
}

// TestClear проверяет очистку очереди.
func TestClear(t *testing.T) {
	s := newTestStore()
	mustCreate(t, s, "a", 1)
	mustCreate(t, s, "b", 1)

	n, err := s.Clear(context.Background())
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 2 {
		t.Errorf("ожидалось 2 удалённые записи, получено %d", n)
	}
	if s.Count() != 0 {
		t.Errorf("очередь должна быть пустой, осталось %d", s.Count())
	}
}

// TestCountByStatus проверяет подсчёт по статусу.
func TestCountByStatus(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	a := mustCreate(t, s, "a", 1)
	mustCreate(t, s, "b", 1)
	s.Update(ctx, a.FileID, model.UploadPatch{Status: status(model.UploadError)})

	if n := s.CountByStatus(model.UploadPending); n != 1 {
		t.Errorf("pending: ожидалось 1, получено %d", n)
	}
	if n := s.CountByStatus(model.UploadError); n != 1 {
		t.Errorf("error: ожидалось 1, получено %d", n)
	}
}
