// cache.go — LRU-кэш записей файлового реестра с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/sheetstore/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ss_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш файлового реестра.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ss_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша файлового реестра.",
	})
)

// FileCache — LRU-кэш записей файлового реестра с автоматическим TTL.
// Ключ — логическое имя файла. Инвалидируется при удалении файла.
type FileCache struct {
	cache *expirable.LRU[string, *model.FileRecord]
}

// NewFileCache создаёт LRU-кэш с указанным максимальным размером и TTL.
func NewFileCache(maxSize int, ttl time.Duration) *FileCache {
	cache := expirable.NewLRU[string, *model.FileRecord](maxSize, nil, ttl)
	return &FileCache{cache: cache}
}

// Get возвращает запись реестра из кэша по логическому имени файла.
// Возвращает (запись, true) при hit или (nil, false) при miss.
func (c *FileCache) Get(fileName string) (*model.FileRecord, bool) {
	val, ok := c.cache.Get(fileName)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *FileCache) Set(fileName string, record *model.FileRecord) {
	c.cache.Add(fileName, record)
}

// Delete удаляет запись из кэша (инвалидация при удалении файла).
func (c *FileCache) Delete(fileName string) {
	c.cache.Remove(fileName)
}
