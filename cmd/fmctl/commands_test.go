package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/file-manager/internal/api/handlers"
	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/service"
)

func TestPrintFiles(t *testing.T) {
	var buf bytes.Buffer
	printFiles(&buf, []model.FileRecord{
		{ID: "f1", Name: "report.pdf", Type: "application/pdf", Size: 3 * 1024 * 1024, UploadDate: time.Now()},
	})

	out := buf.String()
	for _, want := range []string{"ID", "report.pdf", "application/pdf", "3.0 MiB"} {
		if !strings.Contains(out, want) {
			t.Errorf("вывод не содержит %q:\n%s", want, out)
		}
	}
}

func TestPrintBatch(t *testing.T) {
	t.Run("не завершён", func(t *testing.T) {
		var buf bytes.Buffer
		printBatch(&buf, &handlers.BatchResponse{
			BatchID:       "b-1",
			Accepted:      1,
			Rejected:      1,
			RejectedFiles: []string{"big.iso"},
		})
		out := buf.String()
		if !strings.Contains(out, "отклонён: big.iso") {
			t.Errorf("нет отклонённого файла:\n%s", out)
		}
		if !strings.Contains(out, "fmctl watch --batch b-1") {
			t.Errorf("нет подсказки для незавершённого пакета:\n%s", out)
		}
	})

	t.Run("завершён", func(t *testing.T) {
		var buf bytes.Buffer
		printBatch(&buf, &handlers.BatchResponse{
			BatchID:  "b-2",
			Accepted: 2,
			Settled:  true,
			Outcome: &service.BatchOutcome{
				Succeeded: 1,
				Failed:    1,
				Files:     []model.FileRecord{{ID: "f2", Name: "photo.png", Type: "image/png", Size: 2048}},
				Errors:    []string{"сбой передачи"},
			},
		})
		out := buf.String()
		for _, want := range []string{"Успешно: 1, сбоев: 1", "ошибка: сбой передачи", "photo.png"} {
			if !strings.Contains(out, want) {
				t.Errorf("вывод не содержит %q:\n%s", want, out)
			}
		}
	})
}

func TestPrintEvent(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		ev   service.Event
		want string
	}{
		{
			name: "прогресс",
			ev: service.Event{Type: service.EventProgress, At: at, Entry: &model.UploadQueueEntry{
				FileName: "a.pdf", Progress: 42.5, Speed: 2 * 1024 * 1024,
			}},
			want: "42.5%",
		},
		{
			name: "завершение",
			ev:   service.Event{Type: service.EventCompleted, At: at, File: &model.FileRecord{Name: "a.pdf", Size: 1024}},
			want: "a.pdf (1.0 KiB)",
		},
		{
			name: "ошибка",
			ev:   service.Event{Type: service.EventFailed, At: at, FileID: "u1", Error: "сбой передачи"},
			want: "u1: сбой передачи",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printEvent(&buf, tt.ev)
			out := buf.String()
			if !strings.HasPrefix(out, "12:00:00.000") {
				t.Errorf("ожидалась отметка времени в начале строки: %q", out)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("вывод %q не содержит %q", out, tt.want)
			}
		})
	}
}
