// events.go — SSE (Server-Sent Events) endpoint событий жизненного цикла загрузок.
// Каждый SSE-клиент обслуживается своей горутиной запроса и получает
// события брокера: queued, progress, completed, failed, cancelled, removed,
// cleared, batch_settled.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/file-manager/internal/service"
)

// eventBuffer — буфер событий одного SSE-клиента.
const eventBuffer = 256

// EventsHandler — обработчик SSE endpoint.
type EventsHandler struct {
	broker    *service.EventBroker
	keepAlive time.Duration
	logger    *slog.Logger
}

// NewEventsHandler создаёт обработчик SSE.
// keepAlive — интервал комментариев-пингов, не дающих прокси закрыть соединение.
func NewEventsHandler(broker *service.EventBroker, keepAlive time.Duration, logger *slog.Logger) *EventsHandler {
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	return &EventsHandler{
		broker:    broker,
		keepAlive: keepAlive,
		logger:    logger.With(slog.String("component", "api.events")),
	}
}

// Stream обрабатывает GET /api/v1/events — SSE endpoint.
// Необязательные фильтры: batch (ID пакета), type (список типов через запятую).
// Формат: event: <type>\ndata: {json}\n\n
// Соединение закрывается при отключении клиента или остановке брокера.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	batchFilter := r.URL.Query().Get("batch")
	typeFilter := parseTypeFilter(r.URL.Query().Get("type"))

	// Настраиваем заголовки SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Отключаем буферизацию Nginx

	// ResponseController находит http.Flusher через Unwrap() обёрток middleware.
	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		http.Error(w, "SSE не поддерживается", http.StatusInternalServerError)
		return
	}

	events, unsubscribe := h.broker.Subscribe(eventBuffer)
	defer unsubscribe()

	ctx := r.Context()
	h.logger.Debug("SSE клиент подключён",
		slog.String("remote_addr", r.RemoteAddr),
		slog.Int("subscribers", h.broker.Subscribers()),
	)

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE клиент отключён", slog.String("remote_addr", r.RemoteAddr))
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if batchFilter != "" && ev.BatchID != batchFilter {
				continue
			}
			if len(typeFilter) > 0 && !typeFilter[ev.Type] {
				continue
			}
			if err := h.send(w, rc, ev); err != nil {
				h.logger.Debug("Ошибка отправки SSE", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			_ = rc.Flush()
		}
	}
}

// send записывает одно событие в поток.
func (h *EventsHandler) send(w http.ResponseWriter, rc *http.ResponseController, ev service.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Ошибка сериализации события",
			slog.String("type", string(ev.Type)),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	return rc.Flush()
}

// parseTypeFilter разбирает список типов событий через запятую.
func parseTypeFilter(raw string) map[service.EventType]bool {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	out := make(map[service.EventType]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out[service.EventType(t)] = true
		}
	}
	return out
}
