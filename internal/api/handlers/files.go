// files.go — HTTP handlers для записей загруженных файлов.
// List, Search, Get, Update, Delete, Preview.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/file-manager/internal/api/errors"
	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/service"
	"github.com/bigkaa/goartstore/file-manager/internal/storage/filerecord"
)

// maxListLimit — верхняя граница параметра limit.
const maxListLimit = 1000

// FileListResponse — ответ GET /api/v1/files.
type FileListResponse struct {
	Items   []model.FileRecord `json:"items"`
	Total   int                `json:"total"`
	Limit   int                `json:"limit"`
	Offset  int                `json:"offset"`
	HasMore bool               `json:"hasMore"`
}

// FilesHandler — обработчик endpoints записей файлов.
type FilesHandler struct {
	files  *filerecord.Store
	search *service.SearchService
	logger *slog.Logger
}

// NewFilesHandler создаёт обработчик endpoints записей файлов.
func NewFilesHandler(files *filerecord.Store, search *service.SearchService, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		files:  files,
		search: search,
		logger: logger.With(slog.String("component", "api.files")),
	}
}

// ListFiles обрабатывает GET /api/v1/files.
// Новые записи первыми. Пагинация: limit (без него — все записи), offset.
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if r.URL.Query().Has("limit") && (limit <= 0 || limit > maxListLimit) {
		apierrors.ValidationError(w, fmt.Sprintf("Параметр limit должен быть от 1 до %d", maxListLimit))
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if offset < 0 {
		apierrors.ValidationError(w, "Параметр offset не может быть отрицательным")
		return
	}

	all, err := h.search.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	total := len(all)
	if limit == 0 {
		limit = max(total-offset, 0)
	}
	start := min(offset, total)
	end := min(start+limit, total)

	writeJSON(w, http.StatusOK, FileListResponse{
		Items:   all[start:end],
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: end < total,
	})
}

// SearchFiles обрабатывает GET /api/v1/files/search?q=...&session=...
// Без q возвращает все записи. С параметром session выполняется в рамках
// поисковой сессии: более поздний запрос той же сессии вытесняет текущий,
// и вытесненный получает 409 SEARCH_SUPERSEDED.
func (h *FilesHandler) SearchFiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))

	var (
		res *service.SearchResult
		err error
	)
	if sessionID != "" {
		res, err = h.search.Session(sessionID).Search(r.Context(), query)
	} else {
		res, err = h.search.Search(r.Context(), query)
	}
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// GetFile обрабатывает GET /api/v1/files/{id}.
func (h *FilesHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	rec, err := h.files.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpdateFile обрабатывает PATCH /api/v1/files/{id}.
// Изменяет name, size, type и/или thumbnailUrl. ID и uploadDate неизменны.
func (h *FilesHandler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	var patch model.FileRecordPatch
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}
	if patch.IsEmpty() {
		apierrors.ValidationError(w, "Нет полей для обновления")
		return
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		apierrors.ValidationError(w, "Имя файла не может быть пустым")
		return
	}

	rec, err := h.files.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("Запись файла обновлена", slog.String("id", rec.ID))
	writeJSON(w, http.StatusOK, rec)
}

// DeleteFile обрабатывает DELETE /api/v1/files/{id}.
// Возвращает удалённую запись.
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	removed, err := h.files.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("Запись файла удалена",
		slog.String("id", removed.ID),
		slog.String("name", removed.Name),
	)
	writeJSON(w, http.StatusOK, removed)
}

// PreviewFile обрабатывает GET /api/v1/files/{id}/preview.
// Перенаправляет на миниатюру; 404, если миниатюры нет.
func (h *FilesHandler) PreviewFile(w http.ResponseWriter, r *http.Request) {
	rec, err := h.files.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if rec.ThumbnailURL == nil || *rec.ThumbnailURL == "" {
		apierrors.NotFound(w, fmt.Sprintf("У файла %s нет миниатюры", rec.ID))
		return
	}
	http.Redirect(w, r, *rec.ThumbnailURL, http.StatusFound)
}
