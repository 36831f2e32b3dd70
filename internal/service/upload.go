// Пакет service — бизнес-логика File Manager.
// upload.go — движок жизненного цикла загрузок.
//
// Для каждого принятого файла движок создаёт запись очереди и проводит её
// через симуляцию передачи: pending → uploading → completed | error.
// При успехе создаётся FileRecord, а запись очереди удаляется после
// небольшой паузы, чтобы наблюдатели успели показать завершённое состояние.
//
// Отмена — удаление записи из очереди. Дополнительно у каждой загрузки есть
// собственный контекст, который отменяется вместе с удалением, поэтому
// симуляция останавливается на ближайшем шаге. Если обновление всё же
// успевает наткнуться на удалённую запись, ErrNotFound трактуется как отмена.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/sim"
	"github.com/bigkaa/goartstore/file-manager/internal/storage/filerecord"
	"github.com/bigkaa/goartstore/file-manager/internal/storage/uploadqueue"
)

// Ошибки движка загрузки.
var (
	// ErrSimulatedTransfer — сбой, внесённый в симуляцию передачи.
	ErrSimulatedTransfer = errors.New("сбой передачи")
	// ErrEngineClosed — движок остановлен и новые загрузки не принимает.
	ErrEngineClosed = errors.New("движок загрузки остановлен")
	// ErrBatchNotFound — пакет неизвестен или уже вытеснен из реестра.
	ErrBatchNotFound = errors.New("пакет загрузки не найден")

	errCancelled = errors.New("загрузка отменена")
)

// Результаты отдельной загрузки (метка result метрик).
const (
	resultSucceeded = "succeeded"
	resultFailed    = "failed"
	resultCancelled = "cancelled"
	resultRejected  = "rejected"
)

// batchRegistrySize — сколько пакетов хранится в реестре для поиска по ID.
const batchRegistrySize = 1024

// Prometheus метрики движка загрузки
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fm_uploads_total",
		Help: "Количество загрузок по результату (succeeded, failed, cancelled, rejected).",
	}, []string{"result"})

	uploadDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fm_upload_duration_seconds",
		Help:    "Длительность симуляции загрузки в секундах.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	batchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_upload_batches_total",
		Help: "Количество принятых пакетов загрузки.",
	})
)

// EngineConfig — параметры симуляции передачи.
type EngineConfig struct {
	// StepInterval — пауза перед каждым шагом
	StepInterval time.Duration
	// BaseSpeed — базовая скорость, байт/с
	BaseSpeed float64
	// SpeedJitter — относительный разброс скорости (0.15 = ±15%)
	SpeedJitter float64
	// ChunkCount — на сколько частей делится файл
	ChunkCount int
	// MinChunkSize — минимальный размер части, байт
	MinChunkSize int64
	// CompletionGrace — через сколько удалить завершённую запись из очереди
	CompletionGrace time.Duration
	// BatchRetention — сколько хранить пакет в реестре
	BatchRetention time.Duration
}

// DefaultEngineConfig возвращает параметры по умолчанию.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		StepInterval:    200 * time.Millisecond,
		BaseSpeed:       2 * 1024 * 1024,
		SpeedJitter:     0.15,
		ChunkCount:      20,
		MinChunkSize:    100 * 1024,
		CompletionGrace: 2 * time.Second,
		BatchRetention:  10 * time.Minute,
	}
}

// FailureInjector решает, должен ли шаг step загрузки завершиться сбоем.
type FailureInjector interface {
	Inject(entry model.UploadQueueEntry, step int) error
}

// FailureFunc — адаптер функции к FailureInjector.
type FailureFunc func(entry model.UploadQueueEntry, step int) error

// Inject вызывает f.
func (f FailureFunc) Inject(entry model.UploadQueueEntry, step int) error {
	return f(entry, step)
}

// RandomFailures — сбои с вероятностью Rate на каждом шаге.
type RandomFailures struct {
	Rate   float64
	Random sim.Random
}

// Inject возвращает ErrSimulatedTransfer с вероятностью Rate.
func (r RandomFailures) Inject(entry model.UploadQueueEntry, step int) error {
	if r.Rate <= 0 || r.Random == nil {
		return nil
	}
	if r.Random.Float64() < r.Rate {
		return fmt.Errorf("%w: шаг %d", ErrSimulatedTransfer, step)
	}
	return nil
}

// noFailures — загрузки всегда успешны.
var noFailures = FailureFunc(func(model.UploadQueueEntry, int) error { return nil })

// BatchOutcome — итог пакета загрузки после завершения всех файлов.
type BatchOutcome struct {
	BatchID   string             `json:"batchId"`
	Accepted  int                `json:"accepted"`
	Rejected  int                `json:"rejected"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Cancelled int                `json:"cancelled"`
	Files     []model.FileRecord `json:"files"`
	Errors    []string           `json:"errors,omitempty"`
	// Err — объединённые ошибки неудачных загрузок (отмены не входят).
	Err error `json:"-"`
}

// Batch — пакет файлов, принятых одним вызовом Submit.
type Batch struct {
	ID        string
	CreatedAt time.Time
	// Entries — снимок записей очереди на момент постановки
	Entries []model.UploadQueueEntry
	// RejectedFiles — имена файлов, не прошедших фильтр допуска
	RejectedFiles []string

	done    chan struct{}
	mu      sync.RWMutex
	outcome BatchOutcome
}

func newBatch(id string, now time.Time) *Batch {
	return &Batch{ID: id, CreatedAt: now, done: make(chan struct{})}
}

// Outcome возвращает итог, если пакет уже завершён.
func (b *Batch) Outcome() (BatchOutcome, bool) {
	select {
	case <-b.done:
		b.mu.RLock()
		defer b.mu.RUnlock()
		return b.outcome, true
	default:
		return BatchOutcome{}, false
	}
}

// Wait ждёт завершения всех загрузок пакета или отмены ctx.
func (b *Batch) Wait(ctx context.Context) (BatchOutcome, error) {
	select {
	case <-ctx.Done():
		return BatchOutcome{}, ctx.Err()
	case <-b.done:
		out, _ := b.Outcome()
		return out, nil
	}
}

func (b *Batch) settle(out BatchOutcome) {
	b.mu.Lock()
	b.outcome = out
	b.mu.Unlock()
	close(b.done)
}

// fileResult — итог одной загрузки.
type fileResult struct {
	result string
	record *model.FileRecord
	err    error
}

// UploadEngine — движок жизненного цикла загрузок.
type UploadEngine struct {
	queue    *uploadqueue.Store
	files    *filerecord.Store
	thumbs   ThumbnailProvider
	events   *EventBroker
	clock    sim.Clock
	random   sim.Random
	failures FailureInjector
	cfg      EngineConfig
	logger   *slog.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu      sync.Mutex
	running map[string]context.CancelFunc // fileId → отмена симуляции
	timers  map[string]sim.Timer          // fileId → отложенное удаление
	closed  bool
	wg      sync.WaitGroup

	batches *expirable.LRU[string, *Batch]
}

// NewUploadEngine создаёт движок загрузки.
// failures может быть nil — тогда сбоев нет.
func NewUploadEngine(
	queue *uploadqueue.Store,
	files *filerecord.Store,
	thumbs ThumbnailProvider,
	events *EventBroker,
	clock sim.Clock,
	random sim.Random,
	failures FailureInjector,
	cfg EngineConfig,
	logger *slog.Logger,
) *UploadEngine {
	if failures == nil {
		failures = noFailures
	}
	if cfg.ChunkCount <= 0 {
		cfg.ChunkCount = 1
	}
	if cfg.MinChunkSize <= 0 {
		cfg.MinChunkSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &UploadEngine{
		queue:      queue,
		files:      files,
		thumbs:     thumbs,
		events:     events,
		clock:      clock,
		random:     random,
		failures:   failures,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "upload_engine")),
		baseCtx:    ctx,
		baseCancel: cancel,
		running:    make(map[string]context.CancelFunc),
		timers:     make(map[string]sim.Timer),
		batches:    expirable.NewLRU[string, *Batch](batchRegistrySize, nil, cfg.BatchRetention),
	}
}

// Submit принимает пакет файлов.
//
// Поток:
//  1. Фильтр допуска (policy), отклонённые файлы только подсчитываются
//  2. Создание записей очереди для всех принятых файлов
//  3. Запуск независимой симуляции для каждой записи
//
// Возвращает пакет сразу после шага 3. Итог — через Batch.Wait.
// Записи создаются с ctx запроса, симуляции живут до Cancel, Clear или Close.
func (e *UploadEngine) Submit(ctx context.Context, files []model.SourceFile, policy AcceptPolicy) (*Batch, error) {
	if e.isClosed() {
		return nil, ErrEngineClosed
	}

	batch := newBatch(uuid.NewString(), e.clock.Now().UTC())

	accepted := make([]model.SourceFile, 0, len(files))
	for _, f := range files {
		f = PrepareSource(f)
		if err := policy.Admit(f); err != nil {
			batch.RejectedFiles = append(batch.RejectedFiles, f.Name)
			uploadsTotal.WithLabelValues(resultRejected).Inc()
			e.logger.Debug("Файл отклонён фильтром допуска",
				slog.String("batch_id", batch.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		accepted = append(accepted, f)
	}

	// Все записи создаются до старта любой симуляции.
	entries := make([]model.UploadQueueEntry, 0, len(accepted))
	for _, f := range accepted {
		entry, err := e.queue.Create(ctx, model.UploadQueueInput{
			FileName: f.Name,
			FileSize: f.Size,
			FileType: f.Type,
		})
		if err != nil {
			e.rollback(entries)
			return nil, fmt.Errorf("постановка %q в очередь: %w", f.Name, err)
		}
		entries = append(entries, entry)
	}
	batch.Entries = entries

	ctxs, err := e.register(entries)
	if err != nil {
		e.rollback(entries)
		return nil, err
	}

	for i := range entries {
		entry := entries[i]
		e.publish(Event{Type: EventQueued, BatchID: batch.ID, FileID: entry.FileID, Entry: &entry})
	}

	e.batches.Add(batch.ID, batch)
	batchesTotal.Inc()

	e.logger.Info("Пакет загрузки принят",
		slog.String("batch_id", batch.ID),
		slog.Int("accepted", len(entries)),
		slog.Int("rejected", len(batch.RejectedFiles)),
	)

	go e.run(batch, entries, ctxs)
	return batch, nil
}

// SubmitAndWait принимает пакет и ждёт его завершения.
func (e *UploadEngine) SubmitAndWait(ctx context.Context, files []model.SourceFile, policy AcceptPolicy) (BatchOutcome, error) {
	batch, err := e.Submit(ctx, files, policy)
	if err != nil {
		return BatchOutcome{}, err
	}
	return batch.Wait(ctx)
}

// Batch возвращает пакет по ID.
func (e *UploadEngine) Batch(id string) (*Batch, error) {
	b, ok := e.batches.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	return b, nil
}

// ActiveUploads возвращает текущие записи очереди.
func (e *UploadEngine) ActiveUploads(ctx context.Context) ([]model.UploadQueueEntry, error) {
	return e.queue.List(ctx)
}

// Cancel удаляет запись из очереди и останавливает её симуляцию.
// Применим к записи в любом статусе, в том числе для уборки записей с ошибкой.
// Возвращает uploadqueue.ErrNotFound, если записи нет.
func (e *UploadEngine) Cancel(ctx context.Context, fileID string) error {
	removed, err := e.queue.Delete(ctx, fileID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	cancel := e.running[fileID]
	timer := e.timers[fileID]
	delete(e.timers, fileID)
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if timer != nil {
		timer.Stop()
	}

	e.logger.Info("Загрузка удалена из очереди",
		slog.String("file_id", fileID),
		slog.String("status", string(removed.Status)),
	)
	e.publish(Event{Type: EventRemoved, FileID: fileID, Entry: &removed})
	return nil
}

// Clear останавливает все симуляции и очищает очередь.
func (e *UploadEngine) Clear(ctx context.Context) (int, error) {
	n, err := e.queue.Clear(ctx)
	if err != nil {
		return 0, err
	}
	e.stopAll()
	e.publish(Event{Type: EventCleared})
	return n, nil
}

// Close останавливает все симуляции и ждёт их завершения.
// После Close движок новые пакеты не принимает.
func (e *UploadEngine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.baseCancel()
	e.stopAll()
	e.wg.Wait()
	e.logger.Info("Движок загрузки остановлен")
}

// IsReady сообщает, принимает ли движок новые пакеты.
func (e *UploadEngine) IsReady() bool {
	return !e.isClosed()
}

// --- Внутренние методы ---

func (e *UploadEngine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// register создаёт контексты отмены для записей до запуска симуляций,
// чтобы Cancel, вызванный сразу после Submit, остановил загрузку.
func (e *UploadEngine) register(entries []model.UploadQueueEntry) ([]context.Context, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrEngineClosed
	}
	ctxs := make([]context.Context, len(entries))
	for i, entry := range entries {
		ctx, cancel := context.WithCancel(e.baseCtx)
		e.running[entry.FileID] = cancel
		ctxs[i] = ctx
	}
	e.wg.Add(1)
	return ctxs, nil
}

// rollback удаляет записи, созданные до ошибки постановки пакета.
func (e *UploadEngine) rollback(entries []model.UploadQueueEntry) {
	for _, entry := range entries {
		if _, err := e.queue.Delete(context.Background(), entry.FileID); err != nil &&
			!errors.Is(err, uploadqueue.ErrNotFound) {
			e.logger.Warn("Не удалось откатить запись очереди",
				slog.String("file_id", entry.FileID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// stopAll отменяет все симуляции и отложенные удаления.
func (e *UploadEngine) stopAll() {
	e.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(e.running))
	for _, cancel := range e.running {
		cancels = append(cancels, cancel)
	}
	timers := make([]sim.Timer, 0, len(e.timers))
	for id, t := range e.timers {
		timers = append(timers, t)
		delete(e.timers, id)
	}
	e.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	for _, t := range timers {
		t.Stop()
	}
}

// run — барьер ожидания всех загрузок пакета.
// Задачи errgroup всегда возвращают nil: сбой одного файла не прерывает остальные.
func (e *UploadEngine) run(batch *Batch, entries []model.UploadQueueEntry, ctxs []context.Context) {
	defer e.wg.Done()

	results := make([]fileResult, len(entries))
	var g errgroup.Group
	for i := range entries {
		g.Go(func() error {
			results[i] = e.simulate(ctxs[i], batch.ID, entries[i])
			return nil
		})
	}
	_ = g.Wait()

	out := BatchOutcome{
		BatchID:  batch.ID,
		Accepted: len(entries),
		Rejected: len(batch.RejectedFiles),
		Files:    make([]model.FileRecord, 0, len(entries)),
	}
	var merr *multierror.Error
	for i, res := range results {
		switch res.result {
		case resultSucceeded:
			out.Succeeded++
			out.Files = append(out.Files, *res.record)
		case resultCancelled:
			out.Cancelled++
		default:
			out.Failed++
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", entries[i].FileName, res.err))
		}
	}
	if err := merr.ErrorOrNil(); err != nil {
		out.Err = err
		for _, fe := range merr.Errors {
			out.Errors = append(out.Errors, fe.Error())
		}
	}

	batch.settle(out)
	e.publish(Event{Type: EventBatchSettled, BatchID: batch.ID, Outcome: &out})

	e.logger.Info("Пакет загрузки завершён",
		slog.String("batch_id", batch.ID),
		slog.Int("succeeded", out.Succeeded),
		slog.Int("failed", out.Failed),
		slog.Int("cancelled", out.Cancelled),
		slog.Int("rejected", out.Rejected),
	)
}

// simulate проводит одну запись через симуляцию и материализует FileRecord.
func (e *UploadEngine) simulate(ctx context.Context, batchID string, entry model.UploadQueueEntry) fileResult {
	defer e.release(entry.FileID)

	start := e.clock.Now()
	log := e.logger.With(
		slog.String("batch_id", batchID),
		slog.String("file_id", entry.FileID),
	)

	err := e.transfer(ctx, batchID, entry)
	switch {
	case err == nil:
	case errors.Is(err, errCancelled):
		uploadsTotal.WithLabelValues(resultCancelled).Inc()
		log.Info("Загрузка отменена", slog.String("file", entry.FileName))
		e.publish(Event{Type: EventCancelled, BatchID: batchID, FileID: entry.FileID})
		return fileResult{result: resultCancelled}
	default:
		return e.fail(ctx, log, batchID, entry, err)
	}

	// Передача завершена, запись в очереди уже completed.
	// FileRecord создаётся даже если запись успели убрать из очереди.
	rec, err := e.files.Create(context.WithoutCancel(ctx), model.FileRecordInput{
		Name:         entry.FileName,
		Size:         entry.FileSize,
		Type:         entry.FileType,
		ThumbnailURL: e.thumbnail(entry),
	})
	if err != nil {
		uploadsTotal.WithLabelValues(resultFailed).Inc()
		log.Error("Ошибка создания записи файла", slog.String("error", err.Error()))
		e.scheduleRemoval(entry.FileID)
		return fileResult{result: resultFailed, err: err}
	}

	uploadsTotal.WithLabelValues(resultSucceeded).Inc()
	uploadDurationSeconds.Observe(e.clock.Now().Sub(start).Seconds())
	log.Info("Загрузка завершена",
		slog.String("file", rec.Name),
		slog.String("record_id", rec.ID),
		slog.Int64("size", rec.Size),
	)
	e.publish(Event{Type: EventCompleted, BatchID: batchID, FileID: entry.FileID, File: &rec})

	e.scheduleRemoval(entry.FileID)
	return fileResult{result: resultSucceeded, record: &rec}
}

// transfer — цикл симуляции передачи. Возвращает nil при завершении,
// errCancelled при отмене, иначе ошибку сбоя.
func (e *UploadEngine) transfer(ctx context.Context, batchID string, entry model.UploadQueueEntry) error {
	size := entry.FileSize

	// Пустой файл завершается за один шаг.
	if size == 0 {
		completed := model.UploadCompleted
		return e.apply(ctx, batchID, entry.FileID, model.UploadPatch{
			Progress:      ptr(100.0),
			Speed:         ptr(0.0),
			TimeRemaining: ptr(0.0),
			Status:        &completed,
		})
	}

	uploading := model.UploadUploading
	if err := e.apply(ctx, batchID, entry.FileID, model.UploadPatch{Status: &uploading}); err != nil {
		return err
	}

	chunk := e.chunkSize(size)
	var uploaded int64
	for step := 1; uploaded < size; step++ {
		if err := e.clock.Sleep(ctx, e.cfg.StepInterval); err != nil {
			return errCancelled
		}
		if err := e.failures.Inject(entry, step); err != nil {
			return err
		}

		if chunk >= size-uploaded {
			uploaded = size
		} else {
			uploaded += chunk
		}
		progress := float64(uploaded) / float64(size) * 100
		speed := e.speed()
		remaining := finiteOrZero(float64(size-uploaded) / speed)

		status := model.UploadUploading
		if uploaded >= size {
			status = model.UploadCompleted
			progress = 100
			remaining = 0
		}

		if err := e.apply(ctx, batchID, entry.FileID, model.UploadPatch{
			Progress:      &progress,
			Speed:         &speed,
			TimeRemaining: &remaining,
			Status:        &status,
		}); err != nil {
			return err
		}
	}
	return nil
}

// apply обновляет запись очереди и публикует событие.
// Отсутствие записи и отмена контекста означают отмену загрузки.
func (e *UploadEngine) apply(ctx context.Context, batchID, fileID string, patch model.UploadPatch) error {
	updated, err := e.queue.Update(ctx, fileID, patch)
	if err != nil {
		if errors.Is(err, uploadqueue.ErrNotFound) || ctx.Err() != nil {
			return errCancelled
		}
		return fmt.Errorf("обновление записи очереди: %w", err)
	}
	// Событие completed публикуется вместе с FileRecord после его создания.
	if updated.Status != model.UploadCompleted {
		e.publish(Event{Type: EventProgress, BatchID: batchID, FileID: fileID, Entry: &updated})
	}
	return nil
}

// fail переводит запись в статус error. Запись остаётся в очереди до явной уборки.
func (e *UploadEngine) fail(ctx context.Context, log *slog.Logger, batchID string, entry model.UploadQueueEntry, cause error) fileResult {
	errStatus := model.UploadError
	updated, err := e.queue.Update(ctx, entry.FileID, model.UploadPatch{Status: &errStatus})
	if err != nil && (errors.Is(err, uploadqueue.ErrNotFound) || ctx.Err() != nil) {
		uploadsTotal.WithLabelValues(resultCancelled).Inc()
		e.publish(Event{Type: EventCancelled, BatchID: batchID, FileID: entry.FileID})
		return fileResult{result: resultCancelled}
	}
	if err != nil {
		log.Warn("Не удалось перевести запись в статус error", slog.String("error", err.Error()))
	}

	uploadsTotal.WithLabelValues(resultFailed).Inc()
	log.Warn("Загрузка завершилась сбоем",
		slog.String("file", entry.FileName),
		slog.String("error", cause.Error()),
	)
	ev := Event{Type: EventFailed, BatchID: batchID, FileID: entry.FileID, Error: cause.Error()}
	if err == nil {
		ev.Entry = &updated
	}
	e.publish(ev)
	return fileResult{result: resultFailed, err: cause}
}

// release снимает регистрацию симуляции.
func (e *UploadEngine) release(fileID string) {
	e.mu.Lock()
	cancel := e.running[fileID]
	delete(e.running, fileID)
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// scheduleRemoval удаляет завершённую запись из очереди через CompletionGrace.
func (e *UploadEngine) scheduleRemoval(fileID string) {
	if e.cfg.CompletionGrace <= 0 {
		e.removeCompleted(fileID)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.timers[fileID] = e.clock.AfterFunc(e.cfg.CompletionGrace, func() {
		e.mu.Lock()
		delete(e.timers, fileID)
		e.mu.Unlock()
		e.removeCompleted(fileID)
	})
}

// removeCompleted удаляет запись из очереди. Запись, уже убранную вручную, пропускает.
func (e *UploadEngine) removeCompleted(fileID string) {
	removed, err := e.queue.Delete(context.Background(), fileID)
	if err != nil {
		if !errors.Is(err, uploadqueue.ErrNotFound) {
			e.logger.Warn("Ошибка удаления завершённой записи",
				slog.String("file_id", fileID),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	e.publish(Event{Type: EventRemoved, FileID: fileID, Entry: &removed})
}

// chunkSize — размер одного шага: size/ChunkCount с округлением вверх,
// но не меньше MinChunkSize. Файл крупнее порога проходит ровно за ChunkCount шагов.
func (e *UploadEngine) chunkSize(size int64) int64 {
	n := int64(e.cfg.ChunkCount)
	return max(size/n+min(size%n, 1), e.cfg.MinChunkSize)
}

// speed — базовая скорость с равномерным разбросом ±SpeedJitter.
func (e *UploadEngine) speed() float64 {
	base := e.cfg.BaseSpeed
	return base + (e.random.Float64()-0.5)*2*e.cfg.SpeedJitter*base
}

func (e *UploadEngine) thumbnail(entry model.UploadQueueEntry) *string {
	if e.thumbs == nil {
		return nil
	}
	return e.thumbs.ThumbnailURL(model.SourceFile{
		Name: entry.FileName,
		Size: entry.FileSize,
		Type: entry.FileType,
	})
}

func (e *UploadEngine) publish(ev Event) {
	if e.events == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = e.clock.Now().UTC()
	}
	e.events.Publish(ev)
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func ptr[T any](v T) *T { return &v }
