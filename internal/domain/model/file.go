// Пакет model — доменные модели File Manager.
// FileRecord — метаданные успешно загруженного файла,
// UploadQueueEntry — запись об активной (симулируемой) загрузке.
package model

import (
	"strings"
	"time"
)

// FileRecord — метаданные загруженного файла.
// ID и UploadDate назначаются хранилищем при создании и далее не меняются.
type FileRecord struct {
	// ID — уникальный идентификатор (UUID v7, упорядочен по времени)
	ID string `json:"id"`

	// Name — имя файла
	Name string `json:"name"`

	// Size — размер в байтах, не может быть отрицательным
	Size int64 `json:"size"`

	// Type — MIME-тип
	Type string `json:"type"`

	// UploadDate — время создания записи (UTC)
	UploadDate time.Time `json:"uploadDate"`

	// ThumbnailURL — ссылка на миниатюру, есть только у изображений
	ThumbnailURL *string `json:"thumbnailUrl"`
}

// Clone возвращает глубокую копию записи.
func (r FileRecord) Clone() FileRecord {
	if r.ThumbnailURL != nil {
		u := *r.ThumbnailURL
		r.ThumbnailURL = &u
	}
	return r
}

// IsImage сообщает, относится ли запись к изображениям.
func (r FileRecord) IsImage() bool {
	return IsImageType(r.Type)
}

// FileRecordInput — данные для создания записи.
type FileRecordInput struct {
	Name         string  `json:"name"`
	Size         int64   `json:"size"`
	Type         string  `json:"type"`
	ThumbnailURL *string `json:"thumbnailUrl,omitempty"`
}

// FileRecordPatch — частичное обновление записи. nil-поля не меняются.
// ID и UploadDate через patch не изменяются.
type FileRecordPatch struct {
	Name         *string `json:"name,omitempty"`
	Size         *int64  `json:"size,omitempty"`
	Type         *string `json:"type,omitempty"`
	ThumbnailURL *string `json:"thumbnailUrl,omitempty"`
}

// IsEmpty сообщает, что patch ничего не меняет.
func (p FileRecordPatch) IsEmpty() bool {
	return p.Name == nil && p.Size == nil && p.Type == nil && p.ThumbnailURL == nil
}

// IsImageType проверяет, что MIME-тип относится к изображениям (image/*).
func IsImageType(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}
