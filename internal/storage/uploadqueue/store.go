// Пакет uploadqueue — потокобезопасное in-memory хранилище записей очереди загрузки.
//
// Записи хранятся в порядке постановки в очередь. Update проверяет переход
// статуса через конечный автомат lifecycle: после completed или error
// запись больше не обновляется, а прогресс в процессе загрузки не убывает.
//
// Отмена загрузки — это удаление записи. Update удалённой записи возвращает
// ErrNotFound, что для движка загрузки означает отмену, а не сбой.
package uploadqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/lifecycle"
	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/sim"
)

var (
	// ErrNotFound — запись с указанным fileId отсутствует (в том числе после отмены).
	ErrNotFound = errors.New("запись очереди не найдена")
	// ErrDuplicate — запись с таким fileId уже есть.
	ErrDuplicate = errors.New("запись очереди уже существует")
	// ErrInvalidEntry — данные записи не прошли проверку.
	ErrInvalidEntry = errors.New("некорректная запись очереди")
	// ErrProgressRegression — попытка уменьшить прогресс активной загрузки.
	ErrProgressRegression = errors.New("прогресс не может уменьшаться")
)

// IDPrefix — префикс идентификаторов загрузки, отделяет их от ID записей файлов.
const IDPrefix = "upload_"

// Store — хранилище записей очереди загрузки.
type Store struct {
	mu      sync.RWMutex
	entries []model.UploadQueueEntry

	clock   sim.Clock
	latency time.Duration
	logger  *slog.Logger
}

// New создаёт пустую очередь.
// latency — имитация задержки каждой операции (0 — без задержки).
func New(clock sim.Clock, latency time.Duration, logger *slog.Logger) *Store {
	return &Store{
		clock:   clock,
		latency: latency,
		logger:  logger.With(slog.String("component", "uploadqueue")),
	}
}

// List возвращает копию всех записей в порядке постановки.
func (s *Store) List(ctx context.Context) ([]model.UploadQueueEntry, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.UploadQueueEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

// Get возвращает запись по fileId.
func (s *Store) Get(ctx context.Context, fileID string) (model.UploadQueueEntry, error) {
	if err := s.wait(ctx); err != nil {
		return model.UploadQueueEntry{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(fileID)
	if i < 0 {
		return model.UploadQueueEntry{}, fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	return s.entries[i], nil
}

// Create добавляет запись в конец очереди со статусом pending и нулевым прогрессом.
// Пустой FileID заменяется сгенерированным.
func (s *Store) Create(ctx context.Context, in model.UploadQueueInput) (model.UploadQueueEntry, error) {
	if in.FileSize < 0 {
		return model.UploadQueueEntry{}, fmt.Errorf("%w: отрицательный размер %d", ErrInvalidEntry, in.FileSize)
	}
	if err := s.wait(ctx); err != nil {
		return model.UploadQueueEntry{}, err
	}

	fileID := in.FileID
	if fileID == "" {
		fileID = IDPrefix + uuid.NewString()
	}

	entry := model.UploadQueueEntry{
		FileID:   fileID,
		FileName: in.FileName,
		FileSize: in.FileSize,
		FileType: in.FileType,
		Status:   model.UploadPending,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(fileID) >= 0 {
		return model.UploadQueueEntry{}, fmt.Errorf("%w: %s", ErrDuplicate, fileID)
	}
	s.entries = append(s.entries, entry)
	return entry, nil
}

// Update применяет patch к записи и возвращает обновлённую копию.
//
// Ошибки:
//   - ErrNotFound — запись удалена (отменена)
//   - *lifecycle.TransitionError — запись в конечном статусе или переход недопустим
//   - ErrProgressRegression — новый прогресс меньше текущего
func (s *Store) Update(ctx context.Context, fileID string, patch model.UploadPatch) (model.UploadQueueEntry, error) {
	if err := s.wait(ctx); err != nil {
		return model.UploadQueueEntry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(fileID)
	if i < 0 {
		return model.UploadQueueEntry{}, fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	entry := s.entries[i]

	status := entry.Status
	if patch.Status != nil {
		if err := lifecycle.Validate(entry.Status, *patch.Status); err != nil {
			return model.UploadQueueEntry{}, err
		}
		status = *patch.Status
	} else if lifecycle.IsTerminal(entry.Status) {
		return model.UploadQueueEntry{}, &lifecycle.TransitionError{
			Code:    lifecycle.CodeTerminalState,
			Message: fmt.Sprintf("запись %s в конечном статусе %s", fileID, entry.Status),
		}
	}

	if patch.Progress != nil {
		p := clamp(*patch.Progress, 0, 100)
		if p < entry.Progress {
			return model.UploadQueueEntry{}, fmt.Errorf("%w: %s: %.2f → %.2f",
				ErrProgressRegression, fileID, entry.Progress, p)
		}
		entry.Progress = p
	}
	if patch.Speed != nil {
		entry.Speed = nonNegative(*patch.Speed)
	}
	if patch.TimeRemaining != nil {
		entry.TimeRemaining = nonNegative(*patch.TimeRemaining)
	}
	entry.Status = status
	if status == model.UploadCompleted {
		entry.Progress = 100
		entry.TimeRemaining = 0
	}

	s.entries[i] = entry
	return entry, nil
}

// Delete удаляет запись и возвращает её.
func (s *Store) Delete(ctx context.Context, fileID string) (model.UploadQueueEntry, error) {
	if err := s.wait(ctx); err != nil {
		return model.UploadQueueEntry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(fileID)
	if i < 0 {
		return model.UploadQueueEntry{}, fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	removed := s.entries[i]
	s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
	return removed, nil
}

// Clear удаляет все записи и возвращает их количество.
func (s *Store) Clear(ctx context.Context) (int, error) {
	if err := s.wait(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	s.entries = nil
	if n > 0 {
		s.logger.Info("Очередь загрузки очищена", slog.Int("entries", n))
	}
	return n, nil
}

// Count возвращает количество записей.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// CountByStatus возвращает количество записей с указанным статусом.
func (s *Store) CountByStatus(status model.UploadStatus) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.entries {
		if e.Status == status {
			count++
		}
	}
	return count
}

// wait имитирует задержку операции. Прерывается отменой ctx.
func (s *Store) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	return s.clock.Sleep(ctx, s.latency)
}

// indexOf возвращает позицию записи или -1. Вызывать под мьютексом.
func (s *Store) indexOf(fileID string) int {
	for i := range s.entries {
		if s.entries[i].FileID == fileID {
			return i
		}
	}
	return -1
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// nonNegative приводит отрицательные и неконечные значения к нулю.
func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
