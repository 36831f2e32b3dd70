// search_cache.go — LRU-кэш результатов поиска с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
//
// Ключ включает версию хранилища записей, поэтому любая мутация хранилища
// делает старые результаты недостижимыми без явной инвалидации.
package service

import (
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_search_cache_hits_total",
		Help: "Общее количество попаданий в кэш результатов поиска.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_search_cache_misses_total",
		Help: "Общее количество промахов кэша результатов поиска.",
	})
)

// CacheService — LRU-кэш результатов поиска с автоматическим TTL.
type CacheService struct {
	cache *expirable.LRU[string, []model.FileRecord]
}

// NewCacheService создаёт кэш с указанным максимальным размером и TTL.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	cache := expirable.NewLRU[string, []model.FileRecord](maxSize, nil, ttl)
	return &CacheService{cache: cache}
}

// Get возвращает копию результатов для (version, query).
// Обновляет Prometheus-метрики hit/miss.
func (c *CacheService) Get(version uint64, query string) ([]model.FileRecord, bool) {
	val, ok := c.cache.Get(cacheKey(version, query))
	if !ok {
		cacheMissesTotal.Inc()
		return nil, false
	}
	cacheHitsTotal.Inc()
	return cloneRecords(val), true
}

// Set сохраняет копию результатов.
func (c *CacheService) Set(version uint64, query string, records []model.FileRecord) {
	c.cache.Add(cacheKey(version, query), cloneRecords(records))
}

// Len возвращает число записей в кэше.
func (c *CacheService) Len() int {
	return c.cache.Len()
}

func cacheKey(version uint64, query string) string {
	return strconv.FormatUint(version, 10) + "|" + query
}

func cloneRecords(records []model.FileRecord) []model.FileRecord {
	out := make([]model.FileRecord, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
