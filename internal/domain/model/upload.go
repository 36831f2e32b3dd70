package model

// UploadStatus — статус записи очереди загрузки.
type UploadStatus string

const (
	// UploadPending — запись создана, передача ещё не началась
	UploadPending UploadStatus = "pending"
	// UploadUploading — идёт симуляция передачи
	UploadUploading UploadStatus = "uploading"
	// UploadCompleted — передача завершена, FileRecord создан
	UploadCompleted UploadStatus = "completed"
	// UploadError — передача прервана сбоем
	UploadError UploadStatus = "error"
)

// UploadQueueEntry — запись об активной загрузке.
// FileName, FileSize и FileType — снимок исходного файла, после создания не меняются.
type UploadQueueEntry struct {
	FileID        string       `json:"fileId"`
	FileName      string       `json:"fileName"`
	FileSize      int64        `json:"fileSize"`
	FileType      string       `json:"fileType"`
	Progress      float64      `json:"progress"`
	Speed         float64      `json:"speed"`
	TimeRemaining float64      `json:"timeRemaining"`
	Status        UploadStatus `json:"status"`
}

// UploadQueueInput — данные для постановки файла в очередь.
// Пустой FileID означает, что идентификатор сгенерирует хранилище.
type UploadQueueInput struct {
	FileID   string
	FileName string
	FileSize int64
	FileType string
}

// UploadPatch — частичное обновление записи очереди. nil-поля не меняются.
type UploadPatch struct {
	Progress      *float64
	Speed         *float64
	TimeRemaining *float64
	Status        *UploadStatus
}

// SourceFile — файл, переданный на загрузку.
// Data может быть пустым: симуляции достаточно метаданных.
type SourceFile struct {
	Name string
	Size int64
	Type string
	Data []byte
}
