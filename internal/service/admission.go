// admission.go — фильтр допуска файлов в очередь загрузки.
//
// Файл допускается, если его тип подходит под список допустимых типов
// (точный MIME, маска image/* или расширение .docx) и размер не превышает лимит.
// Отклонённые файлы исключаются из пакета без ошибки, учитывается только их количество.
package service

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
)

// ErrRejected — файл не прошёл фильтр допуска.
var ErrRejected = errors.New("файл отклонён")

// Причины отклонения.
const (
	RejectType    = "type"
	RejectSize    = "size"
	RejectInvalid = "invalid"
)

// RejectionError — причина отклонения конкретного файла.
type RejectionError struct {
	File   string
	Reason string // type, size, invalid
	Detail string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.File, e.Detail, e.Reason)
}

// Is позволяет сравнивать через errors.Is(err, ErrRejected).
func (e *RejectionError) Is(target error) bool {
	return target == ErrRejected
}

// AcceptPolicy — критерии допуска файлов.
// Пустой AcceptedTypes и нулевой MaxSizeBytes снимают соответствующее ограничение.
type AcceptPolicy struct {
	AcceptedTypes []string
	MaxSizeBytes  int64
	// Also — политики, которым файл должен соответствовать дополнительно
	Also []AcceptPolicy
}

// And возвращает политику, допускающую файл только при допуске и p, и other.
// Шаблоны не сравниваются между собой: image/png внутри image/* и .pdf
// рядом с application/pdf сужают политику, а не обнуляют её.
func (p AcceptPolicy) And(other AcceptPolicy) AcceptPolicy {
	out := p
	out.Also = append(slices.Clone(p.Also), other)
	return out
}

// ParseAcceptList разбирает список допустимых типов через запятую.
func ParseAcceptList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Admit возвращает nil, если файл допускается, иначе *RejectionError.
func (p AcceptPolicy) Admit(f model.SourceFile) error {
	if f.Size < 0 {
		return &RejectionError{File: f.Name, Reason: RejectInvalid, Detail: "отрицательный размер"}
	}
	if p.MaxSizeBytes > 0 && f.Size > p.MaxSizeBytes {
		return &RejectionError{
			File:   f.Name,
			Reason: RejectSize,
			Detail: fmt.Sprintf("размер %s превышает лимит %s",
				humanize.IBytes(uint64(f.Size)), humanize.IBytes(uint64(p.MaxSizeBytes))),
		}
	}
	if len(p.AcceptedTypes) > 0 && !p.accepts(f.Name, f.Type) {
		return &RejectionError{
			File:   f.Name,
			Reason: RejectType,
			Detail: fmt.Sprintf("тип %q не входит в список допустимых", f.Type),
		}
	}
	for _, also := range p.Also {
		if err := also.Admit(f); err != nil {
			return err
		}
	}
	return nil
}

// accepts проверяет совпадение хотя бы с одним шаблоном.
func (p AcceptPolicy) accepts(name, mimeType string) bool {
	essence := mimeEssence(mimeType)
	ext := strings.ToLower(filepath.Ext(name))
	for _, pattern := range p.AcceptedTypes {
		if matchAccept(strings.ToLower(strings.TrimSpace(pattern)), ext, essence) {
			return true
		}
	}
	return false
}

// matchAccept сравнивает один шаблон (уже в нижнем регистре) с расширением и MIME-типом.
func matchAccept(pattern, ext, essence string) bool {
	switch {
	case pattern == "":
		return false
	case pattern == "*" || pattern == "*/*":
		return true
	case strings.HasPrefix(pattern, "."):
		return ext != "" && ext == pattern
	case strings.HasSuffix(pattern, "/*"):
		return essence != "" && strings.HasPrefix(essence, strings.TrimSuffix(pattern, "*"))
	default:
		return essence == mimeEssence(pattern)
	}
}

// mimeEssence отбрасывает параметры MIME-типа и приводит его к нижнему регистру.
func mimeEssence(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(strings.TrimSpace(t))
}

// PrepareSource дополняет метаданные файла перед допуском:
// размер берётся из содержимого, если не указан, а пустой тип
// определяется по содержимому (mimetype) или по расширению имени.
func PrepareSource(f model.SourceFile) model.SourceFile {
	if f.Size == 0 && len(f.Data) > 0 {
		f.Size = int64(len(f.Data))
	}
	if strings.TrimSpace(f.Type) != "" {
		f.Type = mimeEssence(f.Type)
		return f
	}
	if len(f.Data) > 0 {
		f.Type = mimeEssence(mimetype.Detect(f.Data).String())
		if f.Type != "application/octet-stream" && f.Type != "text/plain" {
			return f
		}
	}
	if byExt := mime.TypeByExtension(filepath.Ext(f.Name)); byExt != "" {
		f.Type = mimeEssence(byExt)
		return f
	}
	if f.Type == "" {
		f.Type = "application/octet-stream"
	}
	return f
}
