// stats.go — фоновый сбор показателей хранилищ для Prometheus.
//
// Периодически (и один раз сразу после старта) пересчитывает количество
// записей очереди по статусам и общее количество записей файлов.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/storage/filerecord"
	"github.com/bigkaa/goartstore/file-manager/internal/storage/uploadqueue"
)

// Prometheus метрики хранилищ
var (
	queueEntriesGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fm_upload_queue_entries",
		Help: "Количество записей очереди загрузки по статусу.",
	}, []string{"status"})

	filesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fm_files_total",
		Help: "Количество записей загруженных файлов.",
	})
)

// allStatuses — статусы записей очереди в порядке жизненного цикла.
var allStatuses = []model.UploadStatus{
	model.UploadPending,
	model.UploadUploading,
	model.UploadCompleted,
	model.UploadError,
}

// StatsSnapshot — результат одного сбора показателей.
type StatsSnapshot struct {
	Files    int                        `json:"files"`
	Queue    map[model.UploadStatus]int `json:"queue"`
	Duration time.Duration              `json:"-"`
}

// StatsService — периодический сбор показателей хранилищ.
type StatsService struct {
	queue    *uploadqueue.Store
	files    *filerecord.Store
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStatsService создаёт сервис сбора показателей.
func NewStatsService(
	queue *uploadqueue.Store,
	files *filerecord.Store,
	interval time.Duration,
	logger *slog.Logger,
) *StatsService {
	return &StatsService{
		queue:    queue,
		files:    files,
		interval: interval,
		logger:   logger.With(slog.String("component", "stats")),
	}
}

// Start запускает фоновую горутину с периодическим тикером.
// Вызывается один раз при старте приложения.
func (s *StatsService) Start(ctx context.Context) {
	statsCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(statsCtx)

	s.logger.Info("Сбор показателей запущен",
		slog.String("interval", s.interval.String()),
	)
}

// Stop останавливает фоновый процесс и ждёт его завершения.
func (s *StatsService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.logger.Info("Сбор показателей остановлен")
}

// run — основной цикл фоновой горутины.
func (s *StatsService) run(ctx context.Context) {
	defer close(s.done)

	// Первый запуск — сразу после старта
	s.RunOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce()
		}
	}
}

// RunOnce пересчитывает показатели и обновляет Prometheus gauges.
func (s *StatsService) RunOnce() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	snap := StatsSnapshot{
		Files: s.files.Count(),
		Queue: make(map[model.UploadStatus]int, len(allStatuses)),
	}
	for _, st := range allStatuses {
		n := s.queue.CountByStatus(st)
		snap.Queue[st] = n
		queueEntriesGauge.WithLabelValues(string(st)).Set(float64(n))
	}
	filesGauge.Set(float64(snap.Files))
	snap.Duration = time.Since(start)

	s.logger.Debug("Показатели обновлены",
		slog.Int("files", snap.Files),
		slog.Int("uploading", snap.Queue[model.UploadUploading]),
		slog.Int("error", snap.Queue[model.UploadError]),
	)
	return snap
}
