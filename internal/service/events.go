// events.go — рассылка событий жизненного цикла загрузок наблюдателям
// (SSE-клиенты, логирование, тесты).
//
// Publish никогда не блокирует движок загрузки: если буфер подписчика
// заполнен, событие для него отбрасывается и учитывается в метрике.
package service

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
)

var eventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "fm_events_dropped_total",
	Help: "Количество событий, отброшенных из-за переполнения буфера подписчика.",
})

// EventType — тип события.
type EventType string

const (
	EventQueued       EventType = "queued"        // запись поставлена в очередь
	EventProgress     EventType = "progress"      // шаг прогресса
	EventCompleted    EventType = "completed"     // загрузка завершена, FileRecord создан
	EventFailed       EventType = "failed"        // загрузка завершилась сбоем
	EventCancelled    EventType = "cancelled"     // симуляция остановлена отменой
	EventRemoved      EventType = "removed"       // запись удалена из очереди
	EventCleared      EventType = "cleared"       // очередь очищена целиком
	EventBatchSettled EventType = "batch_settled" // все загрузки пакета завершены
)

// Event — событие жизненного цикла загрузки.
type Event struct {
	Type    EventType               `json:"type"`
	At      time.Time               `json:"at"`
	BatchID string                  `json:"batchId,omitempty"`
	FileID  string                  `json:"fileId,omitempty"`
	Entry   *model.UploadQueueEntry `json:"entry,omitempty"`
	File    *model.FileRecord       `json:"file,omitempty"`
	Outcome *BatchOutcome           `json:"outcome,omitempty"`
	Error   string                  `json:"error,omitempty"`
}

// EventBroker — рассылка событий всем подписчикам.
type EventBroker struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewEventBroker создаёт брокер без подписчиков.
func NewEventBroker() *EventBroker {
	return &EventBroker{subs: make(map[int]chan Event)}
}

// Subscribe регистрирует подписчика с буфером buffer.
// Возвращает канал событий и функцию отписки, закрывающую канал.
func (b *EventBroker) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Publish отправляет событие всем подписчикам без блокировки.
func (b *EventBroker) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			eventsDroppedTotal.Inc()
		}
	}
}

// Subscribers возвращает число активных подписчиков.
func (b *EventBroker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close закрывает каналы всех подписчиков. Новые подписки сразу получают закрытый канал.
func (b *EventBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
