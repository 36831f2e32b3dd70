// Пакет filerecord — потокобезопасное in-memory хранилище FileRecord.
//
// Записи хранятся в порядке создания: Create вставляет запись в начало,
// поэтому List всегда возвращает самые свежие записи первыми.
// Все методы возвращают копии, внутреннее состояние изменяется только хранилищем.
//
// Не персистентный: содержимое живёт до завершения процесса.
// Начальный набор можно загрузить из JSON (LoadFile).
package filerecord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/sim"
)

var (
	// ErrNotFound — запись с указанным ID отсутствует.
	ErrNotFound = errors.New("запись не найдена")
	// ErrInvalidRecord — данные записи не прошли проверку.
	ErrInvalidRecord = errors.New("некорректная запись")
)

// Store — хранилище метаданных загруженных файлов.
// Использует sync.RWMutex для конкурентного чтения и эксклюзивной записи.
type Store struct {
	mu      sync.RWMutex
	records []model.FileRecord // новые первыми
	version uint64             // счётчик изменений
	ready   bool

	clock   sim.Clock
	latency time.Duration
	logger  *slog.Logger
}

// New создаёт пустое хранилище.
// latency — имитация задержки каждой операции (0 — без задержки).
func New(clock sim.Clock, latency time.Duration, logger *slog.Logger) *Store {
	return &Store{
		clock:   clock,
		latency: latency,
		logger:  logger.With(slog.String("component", "filerecord")),
	}
}

// Load заменяет содержимое хранилища переданным набором (в порядке отображения).
// Недостающие ID и даты загрузки назначаются. После загрузки хранилище готово.
func (s *Store) Load(records []model.FileRecord) error {
	loaded := make([]model.FileRecord, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if rec.Size < 0 {
			return fmt.Errorf("%w: %q: отрицательный размер %d", ErrInvalidRecord, rec.Name, rec.Size)
		}
		if rec.ID == "" {
			id, err := newID()
			if err != nil {
				return err
			}
			rec.ID = id
		}
		if seen[rec.ID] {
			return fmt.Errorf("%w: повторяющийся id %q", ErrInvalidRecord, rec.ID)
		}
		seen[rec.ID] = true
		if rec.UploadDate.IsZero() {
			rec.UploadDate = s.clock.Now().UTC()
		}
		loaded = append(loaded, rec.Clone())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = loaded
	s.version++
	s.ready = true

	s.logger.Info("Хранилище записей загружено", slog.Int("files", len(loaded)))
	return nil
}

// LoadFile загружает начальный набор записей из JSON-массива.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("чтение %s: %w", path, err)
	}
	var records []model.FileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("разбор %s: %w", path, err)
	}
	return s.Load(records)
}

// IsReady возвращает true, если хранилище инициализировано.
func (s *Store) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Version возвращает счётчик изменений. Растёт при каждой мутации.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Count возвращает количество записей.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// List возвращает копию всех записей, новые первыми.
func (s *Store) List(ctx context.Context) ([]model.FileRecord, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.records), nil
}

// Get возвращает запись по ID.
func (s *Store) Get(ctx context.Context, id string) (model.FileRecord, error) {
	if err := s.wait(ctx); err != nil {
		return model.FileRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.FileRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.records[i].Clone(), nil
}

// Create назначает ID и дату загрузки, вставляет запись в начало и возвращает копию.
func (s *Store) Create(ctx context.Context, in model.FileRecordInput) (model.FileRecord, error) {
	if in.Size < 0 {
		return model.FileRecord{}, fmt.Errorf("%w: отрицательный размер %d", ErrInvalidRecord, in.Size)
	}
	if err := s.wait(ctx); err != nil {
		return model.FileRecord{}, err
	}

	id, err := newID()
	if err != nil {
		return model.FileRecord{}, err
	}

	rec := model.FileRecord{
		ID:           id,
		Name:         in.Name,
		Size:         in.Size,
		Type:         in.Type,
		UploadDate:   s.clock.Now().UTC(),
		ThumbnailURL: in.ThumbnailURL,
	}.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]model.FileRecord{rec}, s.records...)
	s.version++

	s.logger.Debug("Запись создана",
		slog.String("id", rec.ID),
		slog.String("name", rec.Name),
		slog.Int64("size", rec.Size),
	)
	return rec.Clone(), nil
}

// Update применяет patch к записи. ID и дата загрузки не меняются.
func (s *Store) Update(ctx context.Context, id string, patch model.FileRecordPatch) (model.FileRecord, error) {
	if patch.Size != nil && *patch.Size < 0 {
		return model.FileRecord{}, fmt.Errorf("%w: отрицательный размер %d", ErrInvalidRecord, *patch.Size)
	}
	if err := s.wait(ctx); err != nil {
		return model.FileRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.FileRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	rec := s.records[i]
	if patch.Name != nil {
		rec.Name = *patch.Name
	}
	if patch.Size != nil {
		rec.Size = *patch.Size
	}
	if patch.Type != nil {
		rec.Type = *patch.Type
	}
	if patch.ThumbnailURL != nil {
		u := *patch.ThumbnailURL
		rec.ThumbnailURL = &u
	}
	s.records[i] = rec
	s.version++

	return rec.Clone(), nil
}

// Delete удаляет запись и возвращает её.
func (s *Store) Delete(ctx context.Context, id string) (model.FileRecord, error) {
	if err := s.wait(ctx); err != nil {
		return model.FileRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.FileRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	removed := s.records[i]
	s.records = append(s.records[:i:i], s.records[i+1:]...)
	s.version++

	s.logger.Debug("Запись удалена", slog.String("id", id))
	return removed, nil
}

// Search ищет записи, у которых имя или тип содержит query без учёта регистра.
// Пустой запрос (или только пробелы) возвращает полный список.
// Непустой запрос сравнивается как есть, вместе с пробелами по краям.
func (s *Store) Search(ctx context.Context, query string) ([]model.FileRecord, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	if strings.TrimSpace(q) == "" {
		q = ""
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if q == "" {
		return cloneAll(s.records), nil
	}
	result := make([]model.FileRecord, 0)
	for _, rec := range s.records {
		if Matches(rec, q) {
			result = append(result, rec.Clone())
		}
	}
	return result, nil
}

// Matches проверяет совпадение записи с запросом, уже приведённым к нижнему регистру.
func Matches(rec model.FileRecord, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(rec.Name), lowerQuery) ||
		strings.Contains(strings.ToLower(rec.Type), lowerQuery)
}

// wait имитирует задержку операции. Прерывается отменой ctx.
func (s *Store) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	return s.clock.Sleep(ctx, s.latency)
}

// indexOf возвращает позицию записи или -1. Вызывать под мьютексом.
func (s *Store) indexOf(id string) int {
	for i := range s.records {
		if s.records[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneAll(records []model.FileRecord) []model.FileRecord {
	out := make([]model.FileRecord, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}
	return out
}

// newID генерирует упорядоченный по времени UUID v7.
func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("генерация id: %w", err)
	}
	return id.String(), nil
}
