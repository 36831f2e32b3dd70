// search.go — фасад поиска по записям файлов.
// Координирует хранилище записей, LRU-кэш и Prometheus-метрики.
//
// Поисковая сессия (SearchSession) соответствует одному окну интерфейса:
// новый запрос отменяет незавершённый предыдущий, а результат устаревшего
// запроса не публикуется (побеждает последний запрос).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/storage/filerecord"
)

// ErrSearchSuperseded — запрос вытеснен более новым запросом той же сессии.
var ErrSearchSuperseded = errors.New("поисковый запрос вытеснен более новым")

// sessionRegistrySize — максимум одновременно отслеживаемых сессий.
const sessionRegistrySize = 4096

// Prometheus-метрики поиска.
var (
	searchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fm_search_total",
		Help: "Общее количество поисковых запросов по результату (ok, superseded, error).",
	}, []string{"result"})
	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fm_search_duration_seconds",
		Help:    "Длительность поисковых запросов.",
		Buckets: prometheus.DefBuckets,
	})
)

// SearchResult — опубликованный результат поиска.
type SearchResult struct {
	// Query — нормализованный запрос
	Query string `json:"query"`
	// Items — найденные записи
	Items []model.FileRecord `json:"items"`
	// Total — количество найденных записей
	Total int `json:"total"`
}

// SearchService — сервис поиска записей файлов.
type SearchService struct {
	files    *filerecord.Store
	cache    *CacheService
	sessions *expirable.LRU[string, *SearchSession]
	logger   *slog.Logger

	mu sync.Mutex // сериализует создание сессий
}

// NewSearchService создаёт сервис поиска.
// cache может быть nil — тогда результаты не кэшируются.
func NewSearchService(
	files *filerecord.Store,
	cache *CacheService,
	sessionTTL time.Duration,
	logger *slog.Logger,
) *SearchService {
	return &SearchService{
		files:    files,
		cache:    cache,
		sessions: expirable.NewLRU[string, *SearchSession](sessionRegistrySize, nil, sessionTTL),
		logger:   logger.With(slog.String("component", "search_service")),
	}
}

// Search выполняет поиск без учёта сессии.
// Пустой запрос возвращает полный список.
func (s *SearchService) Search(ctx context.Context, query string) (*SearchResult, error) {
	start := time.Now()
	defer func() { searchDuration.Observe(time.Since(start).Seconds()) }()

	res, err := s.search(ctx, query)
	if err != nil {
		searchTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	searchTotal.WithLabelValues("ok").Inc()
	return res, nil
}

// List возвращает все записи, новые первыми.
func (s *SearchService) List(ctx context.Context) ([]model.FileRecord, error) {
	return s.files.List(ctx)
}

// Session возвращает сессию по ID, создавая её при необходимости.
func (s *SearchService) Session(id string) *SearchSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions.Get(id); ok {
		return sess
	}
	sess := &SearchSession{id: id, svc: s}
	s.sessions.Add(id, sess)
	return sess
}

func (s *SearchService) search(ctx context.Context, query string) (*SearchResult, error) {
	q := normalizeQuery(query)
	version := s.files.Version()

	if s.cache != nil {
		if items, ok := s.cache.Get(version, q); ok {
			return &SearchResult{Query: q, Items: items, Total: len(items)}, nil
		}
	}

	items, err := s.files.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("поиск записей: %w", err)
	}

	// Результат кэшируется, только если хранилище не менялось во время поиска.
	if s.cache != nil && s.files.Version() == version {
		s.cache.Set(version, q, items)
	}
	return &SearchResult{Query: q, Items: items, Total: len(items)}, nil
}

// normalizeQuery приводит запрос к нижнему регистру, как его сравнивает хранилище.
// Запрос из одних пробелов становится пустым.
func normalizeQuery(q string) string {
	if strings.TrimSpace(q) == "" {
		return ""
	}
	return strings.ToLower(q)
}

// SearchSession — поисковая сессия с семантикой «побеждает последний запрос».
type SearchSession struct {
	id  string
	svc *SearchService

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	visible *SearchResult
}

// ID возвращает идентификатор сессии.
func (ss *SearchSession) ID() string { return ss.id }

// Search выполняет запрос в рамках сессии.
// Незавершённый предыдущий запрос отменяется. Если пока шёл этот запрос
// пришёл более новый, возвращается ErrSearchSuperseded и видимый результат
// не меняется.
func (ss *SearchSession) Search(ctx context.Context, query string) (*SearchResult, error) {
	start := time.Now()
	defer func() { searchDuration.Observe(time.Since(start).Seconds()) }()

	ss.mu.Lock()
	if ss.cancel != nil {
		ss.cancel()
	}
	ss.gen++
	gen := ss.gen
	searchCtx, cancel := context.WithCancel(ctx)
	ss.cancel = cancel
	ss.mu.Unlock()
	defer cancel()

	res, err := ss.svc.search(searchCtx, query)

	ss.mu.Lock()
	defer ss.mu.Unlock()
	if gen != ss.gen {
		searchTotal.WithLabelValues("superseded").Inc()
		return nil, ErrSearchSuperseded
	}
	ss.cancel = nil
	if err != nil {
		searchTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	ss.visible = res
	searchTotal.WithLabelValues("ok").Inc()
	return res, nil
}

// Visible возвращает последний опубликованный результат (nil, если поиска не было).
func (ss *SearchSession) Visible() *SearchResult {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.visible
}
