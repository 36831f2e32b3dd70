// uploads.go — HTTP handlers очереди загрузки.
// Приём пакета файлов (multipart), список активных загрузок,
// отмена одной загрузки, сброс очереди, состояние пакета.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/file-manager/internal/api/errors"
	"github.com/bigkaa/goartstore/file-manager/internal/domain/lifecycle"
	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/service"
)

// Имена полей multipart-формы с файлами.
const (
	formFieldFiles = "files"
	formFieldFile  = "file"
)

// maxWaitTimeout — предел ожидания завершения пакета в одном запросе.
const maxWaitTimeout = 5 * time.Minute

// sniffLen — сколько байт начала файла читать для определения типа.
const sniffLen = 3072

// UploadListResponse — ответ GET /api/v1/uploads.
type UploadListResponse struct {
	Items []model.UploadQueueEntry `json:"items"`
	Total int                      `json:"total"`
}

// BatchResponse — состояние пакета загрузки.
type BatchResponse struct {
	BatchID       string                   `json:"batchId"`
	CreatedAt     time.Time                `json:"createdAt"`
	Accepted      int                      `json:"accepted"`
	Rejected      int                      `json:"rejected"`
	RejectedFiles []string                 `json:"rejectedFiles"`
	Entries       []model.UploadQueueEntry `json:"entries"`
	Settled       bool                     `json:"settled"`
	Outcome       *service.BatchOutcome    `json:"outcome,omitempty"`
}

// ClearResponse — ответ DELETE /api/v1/uploads.
type ClearResponse struct {
	Removed int `json:"removed"`
}

// UploadsHandler — обработчик endpoints очереди загрузки.
type UploadsHandler struct {
	engine          *service.UploadEngine
	policy          service.AcceptPolicy
	multipartMemory int64
	maxRequestBody  int64
	logger          *slog.Logger
}

// NewUploadsHandler создаёт обработчик очереди загрузки.
// policy — политика допуска по умолчанию, запрос может только сузить её.
func NewUploadsHandler(
	engine *service.UploadEngine,
	policy service.AcceptPolicy,
	multipartMemory, maxRequestBody int64,
	logger *slog.Logger,
) *UploadsHandler {
	if multipartMemory <= 0 {
		multipartMemory = 32 << 20
	}
	return &UploadsHandler{
		engine:          engine,
		policy:          policy,
		multipartMemory: multipartMemory,
		maxRequestBody:  maxRequestBody,
		logger:          logger.With(slog.String("component", "api.uploads")),
	}
}

// SubmitUploads обрабатывает POST /api/v1/uploads.
// Multipart form: files (один или несколько файлов, допускается и поле file),
// accept (опционально, список допустимых типов), max_size (опционально, байт).
// Отвечает 202 с состоянием пакета; при wait=true ждёт завершения и отвечает 200.
func (h *UploadsHandler) SubmitUploads(w http.ResponseWriter, r *http.Request) {
	wait, err := queryBool(r, "wait")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	if h.maxRequestBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBody)
	}
	if err := r.ParseMultipartForm(h.multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.FileTooLarge(w, fmt.Sprintf("Тело запроса превышает %d байт", tooLarge.Limit))
			return
		}
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var headers []*multipart.FileHeader
	headers = append(headers, r.MultipartForm.File[formFieldFiles]...)
	headers = append(headers, r.MultipartForm.File[formFieldFile]...)
	if len(headers) == 0 {
		apierrors.ValidationError(w, "Поле 'files' обязательно")
		return
	}

	policy, err := h.requestPolicy(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	sources := make([]model.SourceFile, 0, len(headers))
	for _, fh := range headers {
		src, err := sourceFromHeader(fh)
		if err != nil {
			apierrors.ValidationError(w, fmt.Sprintf("Чтение файла %q: %s", fh.Filename, err.Error()))
			return
		}
		sources = append(sources, src)
	}

	batch, err := h.engine.Submit(r.Context(), sources, policy)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Location", "/api/v1/batches/"+batch.ID)
	if !wait {
		writeJSON(w, http.StatusAccepted, batchResponse(batch))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), maxWaitTimeout)
	defer cancel()
	if _, err := batch.Wait(ctx); err != nil && r.Context().Err() != nil {
		return
	}
	resp := batchResponse(batch)
	status := http.StatusOK
	if !resp.Settled {
		status = http.StatusAccepted
	}
	writeJSON(w, status, resp)
}

// ListUploads обрабатывает GET /api/v1/uploads.
// Записи в порядке постановки в очередь. Необязательный фильтр status.
func (h *UploadsHandler) ListUploads(w http.ResponseWriter, r *http.Request) {
	var status model.UploadStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := lifecycle.ParseStatus(raw)
		if err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
		status = st
	}

	items, err := h.engine.ActiveUploads(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if status != "" {
		items = slices.DeleteFunc(items, func(e model.UploadQueueEntry) bool { return e.Status != status })
	}
	writeJSON(w, http.StatusOK, UploadListResponse{Items: items, Total: len(items)})
}

// CancelUpload обрабатывает DELETE /api/v1/uploads/{fileId}.
// Удаляет запись в любом статусе и останавливает её симуляцию.
func (h *UploadsHandler) CancelUpload(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Cancel(r.Context(), chi.URLParam(r, "fileId")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearUploads обрабатывает DELETE /api/v1/uploads.
// Останавливает все симуляции и очищает очередь.
func (h *UploadsHandler) ClearUploads(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.Clear(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ClearResponse{Removed: n})
}

// GetBatch обрабатывает GET /api/v1/batches/{batchId}.
// С wait=true ждёт завершения пакета (не дольше timeout, по умолчанию 30s).
func (h *UploadsHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := h.engine.Batch(chi.URLParam(r, "batchId"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	wait, err := queryBool(r, "wait")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if wait {
		timeout := 30 * time.Second
		if raw := r.URL.Query().Get("timeout"); raw != "" {
			timeout, err = time.ParseDuration(raw)
			if err != nil || timeout <= 0 {
				apierrors.ValidationError(w, "Параметр timeout должен быть положительной длительностью (например 10s)")
				return
			}
		}
		ctx, cancel := context.WithTimeout(r.Context(), min(timeout, maxWaitTimeout))
		defer cancel()
		if _, err := batch.Wait(ctx); err != nil && r.Context().Err() != nil {
			return
		}
	}

	writeJSON(w, http.StatusOK, batchResponse(batch))
}

// requestPolicy сужает политику допуска параметрами запроса.
// Файл допускается, только если проходит и серверную политику, и политику запроса.
func (h *UploadsHandler) requestPolicy(r *http.Request) (service.AcceptPolicy, error) {
	var narrow service.AcceptPolicy
	if accept := strings.TrimSpace(r.FormValue("accept")); accept != "" {
		narrow.AcceptedTypes = service.ParseAcceptList(accept)
	}

	if raw := strings.TrimSpace(r.FormValue("max_size")); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return service.AcceptPolicy{}, fmt.Errorf("параметр max_size должен быть положительным целым числом")
		}
		narrow.MaxSizeBytes = n
	}

	if len(narrow.AcceptedTypes) == 0 && narrow.MaxSizeBytes == 0 {
		return h.policy, nil
	}
	return h.policy.And(narrow), nil
}

// sourceFromHeader читает метаданные файла из multipart-заголовка.
// Для определения типа по содержимому читается только начало файла.
func sourceFromHeader(fh *multipart.FileHeader) (model.SourceFile, error) {
	src := model.SourceFile{
		Name: fh.Filename,
		Size: fh.Size,
		Type: fh.Header.Get("Content-Type"),
	}
	// Клиенты ставят octet-stream, когда тип неизвестен: определяем его сами.
	if strings.EqualFold(strings.TrimSpace(src.Type), "application/octet-stream") {
		src.Type = ""
	}
	if src.Type != "" || fh.Size == 0 {
		return src, nil
	}

	f, err := fh.Open()
	if err != nil {
		return model.SourceFile{}, err
	}
	defer f.Close()

	head, err := io.ReadAll(io.LimitReader(f, sniffLen))
	if err != nil {
		return model.SourceFile{}, err
	}
	src.Data = head
	return src, nil
}

// batchResponse формирует состояние пакета.
func batchResponse(b *service.Batch) BatchResponse {
	resp := BatchResponse{
		BatchID:       b.ID,
		CreatedAt:     b.CreatedAt,
		Accepted:      len(b.Entries),
		Rejected:      len(b.RejectedFiles),
		RejectedFiles: b.RejectedFiles,
		Entries:       b.Entries,
	}
	if resp.RejectedFiles == nil {
		resp.RejectedFiles = []string{}
	}
	if resp.Entries == nil {
		resp.Entries = []model.UploadQueueEntry{}
	}
	if out, ok := b.Outcome(); ok {
		resp.Settled = true
		resp.Outcome = &out
	}
	return resp
}
