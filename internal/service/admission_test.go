package service

import (
	"errors"
	"testing"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
)

func TestAcceptPolicy_Admit(t *testing.T) {
	policy := AcceptPolicy{
		AcceptedTypes: ParseAcceptList("image/*,application/pdf,.doc,.docx,.xls,.xlsx,.ppt,.pptx"),
		MaxSizeBytes:  50 * mib,
	}

	tests := []struct {
		name   string
		file   model.SourceFile
		reason string // пусто — файл допускается
	}{
		{"изображение по маске", model.SourceFile{Name: "a.png", Size: 1, Type: "image/png"}, ""},
		{"маска без учёта регистра", model.SourceFile{Name: "a.JPG", Size: 1, Type: "IMAGE/JPEG"}, ""},
		{"точный MIME", model.SourceFile{Name: "a.pdf", Size: 1, Type: "application/pdf"}, ""},
		{"MIME с параметрами", model.SourceFile{Name: "a", Size: 1, Type: "application/pdf; q=1"}, ""},
		{"расширение", model.SourceFile{Name: "Report.DOCX", Size: 1, Type: "application/octet-stream"}, ""},
		{"ровно лимит", model.SourceFile{Name: "a.pdf", Size: 50 * mib, Type: "application/pdf"}, ""},
		{"неподходящий тип", model.SourceFile{Name: "a.txt", Size: 1, Type: "text/plain"}, RejectType},
		{"похожее расширение", model.SourceFile{Name: "a.docm", Size: 1, Type: "application/x"}, RejectType},
		{"превышен лимит", model.SourceFile{Name: "a.pdf", Size: 50*mib + 1, Type: "application/pdf"}, RejectSize},
		{"отрицательный размер", model.SourceFile{Name: "a.pdf", Size: -1, Type: "application/pdf"}, RejectInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Admit(tt.file)
			if tt.reason == "" {
				if err != nil {
					t.Errorf("неожиданное отклонение: %v", err)
				}
				return
			}
			var re *RejectionError
			if !errors.As(err, &re) {
				t.Fatalf("ожидалась RejectionError, получено %v", err)
			}
			if re.Reason != tt.reason {
				t.Errorf("причина: ожидалось %q, получено %q", tt.reason, re.Reason)
			}
			if !errors.Is(err, ErrRejected) {
				t.Error("errors.Is(err, ErrRejected) должно быть true")
			}
		})
	}
}

func TestAcceptPolicy_NoRestrictions(t *testing.T) {
	var policy AcceptPolicy
	if err := policy.Admit(model.SourceFile{Name: "any.bin", Size: 1 << 40, Type: "x/y"}); err != nil {
		t.Errorf("пустая политика должна допускать всё: %v", err)
	}
}

func TestAcceptPolicy_And(t *testing.T) {
	server := AcceptPolicy{
		AcceptedTypes: ParseAcceptList("image/*,application/pdf,.docx"),
		MaxSizeBytes:  10 * mib,
	}

	tests := []struct {
		name    string
		narrow  AcceptPolicy
		file    model.SourceFile
		wantErr bool
	}{
		{
			name:   "точный тип внутри маски",
			narrow: AcceptPolicy{AcceptedTypes: []string{"image/png"}},
			file:   model.SourceFile{Name: "a.png", Size: mib, Type: "image/png"},
		},
		{
			name:    "другой тип той же маски",
			narrow:  AcceptPolicy{AcceptedTypes: []string{"image/png"}},
			file:    model.SourceFile{Name: "b.jpg", Size: mib, Type: "image/jpeg"},
			wantErr: true,
		},
		{
			name:   "расширение вместо MIME",
			narrow: AcceptPolicy{AcceptedTypes: []string{".pdf"}},
			file:   model.SourceFile{Name: "report.pdf", Size: mib, Type: "application/pdf"},
		},
		{
			name:    "запрос не расширяет серверный список",
			narrow:  AcceptPolicy{AcceptedTypes: []string{"text/plain"}},
			file:    model.SourceFile{Name: "notes.txt", Size: 10, Type: "text/plain"},
			wantErr: true,
		},
		{
			name:    "меньший лимит размера",
			narrow:  AcceptPolicy{MaxSizeBytes: mib},
			file:    model.SourceFile{Name: "big.png", Size: 2 * mib, Type: "image/png"},
			wantErr: true,
		},
		{
			name:    "больший лимит не отменяет серверный",
			narrow:  AcceptPolicy{MaxSizeBytes: 100 * mib},
			file:    model.SourceFile{Name: "huge.png", Size: 20 * mib, Type: "image/png"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := server.And(tt.narrow).Admit(tt.file)
			if (err != nil) != tt.wantErr {
				t.Errorf("Admit(%s): ошибка %v, ожидалась ошибка: %v", tt.file.Name, err, tt.wantErr)
			}
		})
	}

	if len(server.Also) != 0 {
		t.Error("And не должен изменять исходную политику")
	}
}

func TestParseAcceptList(t *testing.T) {
	got := ParseAcceptList(" image/* ,, .pdf,")
	if len(got) != 2 || got[0] != "image/*" || got[1] != ".pdf" {
		t.Errorf("неожиданное значение %v", got)
	}
}

func TestPrepareSource(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

	tests := []struct {
		name     string
		in       model.SourceFile
		wantType string
		wantSize int64
	}{
		{"тип по содержимому", model.SourceFile{Name: "noext", Data: png}, "image/png", int64(len(png))},
		{"тип по расширению", model.SourceFile{Name: "doc.pdf", Size: 10}, "application/pdf", 10},
		{"заданный тип сохраняется", model.SourceFile{Name: "a", Size: 1, Type: "Text/Plain; charset=utf-8"}, "text/plain", 1},
		{"неизвестный тип", model.SourceFile{Name: "blob", Size: 3}, "application/octet-stream", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PrepareSource(tt.in)
			if got.Type != tt.wantType {
				t.Errorf("Type: ожидалось %q, получено %q", tt.wantType, got.Type)
			}
			if got.Size != tt.wantSize {
				t.Errorf("Size: ожидалось %d, получено %d", tt.wantSize, got.Size)
			}
		})
	}
}
