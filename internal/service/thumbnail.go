// thumbnail.go — ссылки на миниатюры для загруженных изображений.
// Миниатюра есть только у файлов image/*, остальные получают nil.
package service

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
)

// ThumbnailProvider выдаёт ссылку на миниатюру файла.
// Для файлов без миниатюры возвращает nil.
type ThumbnailProvider interface {
	ThumbnailURL(f model.SourceFile) *string
}

// PlaceholderThumbnails — генератор ссылок на случайные изображения-заглушки.
// Миниатюры получают только изображения (image/*).
type PlaceholderThumbnails struct {
	baseURL string
	seq     atomic.Int64
}

// NewPlaceholderThumbnails создаёт генератор с базовым URL сервиса заглушек.
func NewPlaceholderThumbnails(baseURL string) *PlaceholderThumbnails {
	return &PlaceholderThumbnails{baseURL: baseURL}
}

// ThumbnailURL возвращает уникальную ссылку для изображения, иначе nil.
func (p *PlaceholderThumbnails) ThumbnailURL(f model.SourceFile) *string {
	if !model.IsImageType(f.Type) {
		return nil
	}
	sep := "?"
	if strings.Contains(p.baseURL, "?") {
		sep = "&"
	}
	u := fmt.Sprintf("%s%srandom=%d", p.baseURL, sep, p.seq.Add(1))
	return &u
}
