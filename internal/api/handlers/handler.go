// handler.go — APIHandler собирает доменные handlers и регистрирует
// их маршруты в chi-роутере. Общие помощники ответа и разбора ошибок.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/file-manager/internal/api/errors"
	"github.com/bigkaa/goartstore/file-manager/internal/service"
	"github.com/bigkaa/goartstore/file-manager/internal/storage/filerecord"
	"github.com/bigkaa/goartstore/file-manager/internal/storage/uploadqueue"
)

// APIHandler — единая точка регистрации всех endpoints.
type APIHandler struct {
	files   *FilesHandler
	uploads *UploadsHandler
	events  *EventsHandler
	health  *HealthHandler
}

// NewAPIHandler создаёт единый handler для всех endpoints.
func NewAPIHandler(
	files *FilesHandler,
	uploads *UploadsHandler,
	events *EventsHandler,
	health *HealthHandler,
) *APIHandler {
	return &APIHandler{
		files:   files,
		uploads: uploads,
		events:  events,
		health:  health,
	}
}

// Routes регистрирует маршруты API в роутере.
func (h *APIHandler) Routes(r chi.Router) {
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)

	r.Route("/api/v1", func(r chi.Router) {
		// --- Очередь загрузки ---
		r.Post("/uploads", h.uploads.SubmitUploads)
		r.Get("/uploads", h.uploads.ListUploads)
		r.Delete("/uploads", h.uploads.ClearUploads)
		r.Delete("/uploads/{fileId}", h.uploads.CancelUpload)
		r.Get("/batches/{batchId}", h.uploads.GetBatch)

		// --- Загруженные файлы ---
		r.Get("/files", h.files.ListFiles)
		r.Get("/files/search", h.files.SearchFiles)
		r.Get("/files/{id}", h.files.GetFile)
		r.Patch("/files/{id}", h.files.UpdateFile)
		r.Delete("/files/{id}", h.files.DeleteFile)
		r.Get("/files/{id}/preview", h.files.PreviewFile)

		// --- События ---
		r.Get("/events", h.events.Stream)
	})
}

// writeJSON записывает JSON-ответ.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, filerecord.ErrNotFound),
		errors.Is(err, uploadqueue.ErrNotFound),
		errors.Is(err, service.ErrBatchNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, filerecord.ErrInvalidRecord),
		errors.Is(err, uploadqueue.ErrInvalidEntry):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrSearchSuperseded):
		apierrors.SearchSuperseded(w, err.Error())
	case errors.Is(err, service.ErrEngineClosed):
		apierrors.Unavailable(w, err.Error())
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		// Клиент отключился, отвечать некому.
		logger.Debug("Запрос прерван клиентом",
			slog.String("path", r.URL.Path),
		)
	default:
		logger.Error("Ошибка обработки запроса",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}

// queryInt разбирает необязательный целочисленный query-параметр.
// Отсутствующий параметр возвращает def.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("параметр %s должен быть целым числом", name)
	}
	return n, nil
}

// queryBool разбирает необязательный логический query-параметр.
func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("параметр %s должен быть true или false", name)
	}
	return b, nil
}
