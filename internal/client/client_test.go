package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/file-manager/internal/api/handlers"
	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/service"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupMockFM создаёт mock HTTP-сервер File Manager.
func setupMockFM(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL, 5*time.Second, testLogger())
}

func TestClient_Upload(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "photo.bin")
	pngData := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	if err := os.WriteFile(png, pngData, 0o600); err != nil {
		t.Fatal(err)
	}

	c := setupMockFM(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/uploads" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("wait") != "true" {
			t.Error("ожидался параметр wait=true")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		if got := r.FormValue("max_size"); got != "2048" {
			t.Errorf("max_size: ожидалось 2048, получено %q", got)
		}
		files := r.MultipartForm.File["files"]
		if len(files) != 1 {
			t.Errorf("ожидался 1 файл, получено %d", len(files))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if files[0].Filename != "photo.bin" {
			t.Errorf("имя файла: %q", files[0].Filename)
		}
		if ct := files[0].Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("тип файла должен определяться по содержимому: %q", ct)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(handlers.BatchResponse{BatchID: "b-1", Accepted: 1, Settled: true})
	})

	batch, err := c.Upload(context.Background(), []string{png}, UploadOptions{MaxSize: 2048, Wait: true})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if batch.BatchID != "b-1" || !batch.Settled {
		t.Errorf("неожиданный ответ: %+v", batch)
	}
}

func TestClient_Upload_MissingFile(t *testing.T) {
	c := New("http://127.0.0.1:0", time.Second, testLogger())
	if _, err := c.Upload(context.Background(), []string{"/nonexistent/file"}, UploadOptions{}); err == nil {
		t.Error("ожидалась ошибка для несуществующего файла")
	}
	if _, err := c.Upload(context.Background(), nil, UploadOptions{}); err == nil {
		t.Error("ожидалась ошибка для пустого списка")
	}
}

func TestClient_Search(t *testing.T) {
	c := setupMockFM(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/files/search" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		q := r.URL.Query()
		if q.Get("q") != "report" || q.Get("session") != "s1" {
			t.Errorf("неожиданные параметры: %v", q)
		}
		json.NewEncoder(w).Encode(service.SearchResult{
			Query: "report",
			Items: []model.FileRecord{{ID: "1", Name: "report.pdf"}},
			Total: 1,
		})
	})

	res, err := c.Search(context.Background(), "report", "s1")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 1 || res.Items[0].Name != "report.pdf" {
		t.Errorf("неожиданный результат: %+v", res)
	}
}

func TestClient_APIError(t *testing.T) {
	c := setupMockFM(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":"NOT_FOUND","message":"запись очереди не найдена"}}`)
	})

	err := c.Cancel(context.Background(), "upload_x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("ожидалась APIError, получено %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "NOT_FOUND" {
		t.Errorf("неожиданная ошибка: %+v", apiErr)
	}
}

func TestClient_CancelAndClear(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
	)
	c := setupMockFM(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		mu.Unlock()
		switch r.URL.Path {
		case "/api/v1/uploads/upload_1":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v1/uploads":
			json.NewEncoder(w).Encode(handlers.ClearResponse{Removed: 3})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	if err := c.Cancel(context.Background(), "upload_1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	n, err := c.Clear(context.Background())
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 3 {
		t.Errorf("Removed: ожидалось 3, получено %d", n)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 2 || calls[0] != "DELETE /api/v1/uploads/upload_1" || calls[1] != "DELETE /api/v1/uploads" {
		t.Errorf("неожиданные вызовы: %v", calls)
	}
}

func TestClient_Watch(t *testing.T) {
	c := setupMockFM(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("batch") != "b-1" {
			t.Errorf("ожидался фильтр batch=b-1, получено %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": ping\n\n")
		fmt.Fprint(w, "event: queued\ndata: {\"type\":\"queued\",\"fileId\":\"f1\"}\n\n")
		fmt.Fprint(w, "event: bogus\ndata: not-json\n\n")
		fmt.Fprint(w, "event: completed\ndata: {\"type\":\"completed\",\"fileId\":\"f1\"}\n\n")
	})

	var got []service.EventType
	err := c.Watch(context.Background(), "b-1", func(ev service.Event) error {
		got = append(got, ev.Type)
		return nil
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if len(got) != 2 || got[0] != service.EventQueued || got[1] != service.EventCompleted {
		t.Errorf("неожиданные события: %v", got)
	}
}

func TestClient_Uploads_StatusFilter(t *testing.T) {
	c := setupMockFM(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/uploads" || r.URL.Query().Get("status") != "error" {
			t.Errorf("неожиданный запрос: %s", r.URL.String())
		}
		json.NewEncoder(w).Encode(handlers.UploadListResponse{
			Items: []model.UploadQueueEntry{{FileID: "upload_1", Status: model.UploadError}},
			Total: 1,
		})
	})

	resp, err := c.Uploads(context.Background(), "error")
	if err != nil {
		t.Fatalf("Uploads: %v", err)
	}
	if resp.Total != 1 || resp.Items[0].Status != model.UploadError {
		t.Errorf("неожиданный ответ: %+v", resp)
	}
}
