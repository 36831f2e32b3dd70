// Пакет client — HTTP-клиент File Manager для утилиты fmctl.
// Операции: загрузка пакета файлов, список и поиск записей, очередь загрузки,
// отмена и очистка, поток событий SSE.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/bigkaa/goartstore/file-manager/internal/api/handlers"
	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/service"
)

// APIError — ошибка, возвращённая сервером в стандартном формате.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("сервер вернул статус %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// UploadOptions — параметры загрузки пакета.
type UploadOptions struct {
	// Accept — сужение списка допустимых типов (пусто — политика сервера)
	Accept string
	// MaxSize — сужение лимита размера в байтах (0 — лимит сервера)
	MaxSize int64
	// Wait — дождаться завершения пакета
	Wait bool
}

// Client — HTTP-клиент File Manager.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт клиент. timeout ограничивает обычные запросы;
// загрузка с ожиданием и поток событий используют только ctx.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "fm_client")),
	}
}

// Upload отправляет файлы одним пакетом (POST /api/v1/uploads).
// Тип каждого файла определяется по содержимому.
func (c *Client) Upload(ctx context.Context, paths []string, opts UploadOptions) (*handlers.BatchResponse, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("не указаны файлы для загрузки")
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return nil, err
		}
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, paths, opts))
	}()

	q := url.Values{}
	if opts.Wait {
		q.Set("wait", "true")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/api/v1/uploads", q), pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("создание запроса Upload: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	// Загрузка с ожиданием может идти дольше обычного таймаута.
	httpClient := &http.Client{Transport: c.httpClient.Transport}
	var batch handlers.BatchResponse
	if err := c.doWith(httpClient, req, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// writeUploadForm пишет multipart-форму с файлами и параметрами допуска.
func writeUploadForm(mw *multipart.Writer, paths []string, opts UploadOptions) error {
	if opts.Accept != "" {
		if err := mw.WriteField("accept", opts.Accept); err != nil {
			return err
		}
	}
	if opts.MaxSize > 0 {
		if err := mw.WriteField("max_size", strconv.FormatInt(opts.MaxSize, 10)); err != nil {
			return err
		}
	}
	for _, p := range paths {
		if err := writeFilePart(mw, p); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writeFilePart(mw *multipart.Writer, path string) error {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("определение типа %s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, filepath.Base(path)))
	h.Set("Content-Type", mtype.String())
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

// Batch возвращает состояние пакета (GET /api/v1/batches/{id}).
func (c *Client) Batch(ctx context.Context, id string) (*handlers.BatchResponse, error) {
	var batch handlers.BatchResponse
	if err := c.get(ctx, "/api/v1/batches/"+url.PathEscape(id), nil, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// ListFiles возвращает записи файлов (GET /api/v1/files).
func (c *Client) ListFiles(ctx context.Context) (*handlers.FileListResponse, error) {
	var resp handlers.FileListResponse
	if err := c.get(ctx, "/api/v1/files", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Search ищет записи по подстроке имени или типа (GET /api/v1/files/search).
func (c *Client) Search(ctx context.Context, query, session string) (*service.SearchResult, error) {
	q := url.Values{"q": {query}}
	if session != "" {
		q.Set("session", session)
	}
	var res service.SearchResult
	if err := c.get(ctx, "/api/v1/files/search", q, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Uploads возвращает записи очереди загрузки (GET /api/v1/uploads).
// Непустой status оставляет только записи с этим статусом.
func (c *Client) Uploads(ctx context.Context, status string) (*handlers.UploadListResponse, error) {
	var q url.Values
	if status != "" {
		q = url.Values{"status": {status}}
	}
	var resp handlers.UploadListResponse
	if err := c.get(ctx, "/api/v1/uploads", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel удаляет запись очереди (DELETE /api/v1/uploads/{fileId}).
func (c *Client) Cancel(ctx context.Context, fileID string) error {
	return c.send(ctx, http.MethodDelete, "/api/v1/uploads/"+url.PathEscape(fileID), nil)
}

// Clear очищает очередь загрузки (DELETE /api/v1/uploads).
func (c *Client) Clear(ctx context.Context) (int, error) {
	var resp handlers.ClearResponse
	if err := c.send(ctx, http.MethodDelete, "/api/v1/uploads", &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

// DeleteFile удаляет запись файла (DELETE /api/v1/files/{id}).
func (c *Client) DeleteFile(ctx context.Context, id string) (*model.FileRecord, error) {
	var rec model.FileRecord
	if err := c.send(ctx, http.MethodDelete, "/api/v1/files/"+url.PathEscape(id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Watch читает поток событий (GET /api/v1/events) и вызывает fn для каждого события.
// Возвращает nil, когда сервер закрыл поток или ctx отменён.
func (c *Client) Watch(ctx context.Context, batchID string, fn func(service.Event) error) error {
	q := url.Values{}
	if batchID != "" {
		q.Set("batch", batchID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/v1/events", q), nil)
	if err != nil {
		return fmt.Errorf("создание запроса Watch: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// Без таймаута: поток живёт до отмены ctx.
	resp, err := (&http.Client{Transport: c.httpClient.Transport}).Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("подключение к потоку событий: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var ev service.Event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			c.logger.Warn("Некорректное событие", slog.String("error", err.Error()))
			continue
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("чтение потока событий: %w", err)
	}
	return nil
}

// --- Внутренние методы ---

func (c *Client) url(path string, q url.Values) string {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path, q), nil)
	if err != nil {
		return fmt.Errorf("создание запроса %s: %w", path, err)
	}
	return c.doWith(c.httpClient, req, out)
}

func (c *Client) send(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path, nil), nil)
	if err != nil {
		return fmt.Errorf("создание запроса %s %s: %w", method, path, err)
	}
	return c.doWith(c.httpClient, req, out)
}

// doWith выполняет запрос и декодирует JSON-ответ в out (если out не nil).
func (c *Client) doWith(httpClient *http.Client, req *http.Request, out any) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("запрос %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("декодирование ответа %s: %w", req.URL.Path, err)
	}
	return nil
}

// decodeAPIError читает тело ошибки {"error": {"code", "message"}}.
func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Code != "" {
		return &APIError{StatusCode: resp.StatusCode, Code: payload.Error.Code, Message: payload.Error.Message}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}
