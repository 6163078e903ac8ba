package model

import "time"

// FileRecord — запись загруженного файла в реестре.
// Хранится в таблице file_registry.
type FileRecord struct {
	// ID — суррогатный идентификатор записи
	ID int64 `json:"id"`
	// FileName — уникальное логическое имя, генерируется сервером
	// (отличается от имени, заданного пользователем)
	FileName string `json:"fileName"`
	// OriginalName — исходное имя файла при загрузке
	OriginalName string `json:"originalName"`
	// StoragePath — относительный путь файла в data dir
	StoragePath string `json:"-"`
	// ContentType — MIME-тип файла
	ContentType string `json:"contentType"`
	// Size — размер файла в байтах
	Size int64 `json:"size"`
	// UploadedBy — идентификатор загрузившего
	UploadedBy string `json:"uploadedBy"`
	// UploadedAt — время загрузки
	UploadedAt time.Time `json:"uploadedAt"`
	// IsActive — false после удаления файла (запись реестра не удаляется)
	IsActive bool `json:"isActive"`
}
