package model

import "time"

// Операции аудита. Всегда в верхнем регистре.
const (
	AuditOpCreate = "CREATE"
	AuditOpUpdate = "UPDATE"
	AuditOpDelete = "DELETE"
)

// AuditEntry — неизменяемая запись журнала аудита.
// Хранится в таблице audit_log, append-only: записи никогда
// не обновляются и не удаляются.
type AuditEntry struct {
	// ID — суррогатный идентификатор записи
	ID int64 `json:"id"`
	// FileName — файл, к которому относилась операция
	FileName string `json:"fileName"`
	// SheetName — лист
	SheetName string `json:"sheetName"`
	// RowIndex — индекс строки
	RowIndex int `json:"rowIndex"`
	// RowID — ID затронутой строки (слабая ссылка: строка может быть
	// soft-deleted, запись аудита живёт независимо)
	RowID int64 `json:"rowId"`
	// Operation — CREATE, UPDATE или DELETE
	Operation string `json:"operationType"`
	// OldValue — сериализованное старое значение строки (nil для CREATE)
	OldValue map[string]string `json:"oldValue,omitempty"`
	// NewValue — сериализованное новое значение строки (nil для DELETE)
	NewValue map[string]string `json:"newValue,omitempty"`
	// ChangedColumns — имена реально изменившихся колонок
	ChangedColumns []string `json:"changedColumns,omitempty"`
	// Actor — идентификатор инициатора операции
	Actor string `json:"changedBy"`
	// ClientIP — IP клиента
	ClientIP string `json:"ipAddress,omitempty"`
	// UserAgent — User-Agent клиента
	UserAgent string `json:"userAgent,omitempty"`
	// Reason — свободный комментарий к изменению
	Reason string `json:"changeReason,omitempty"`
	// CreatedAt — время записи
	CreatedAt time.Time `json:"changeDate"`
	// Success — завершилась ли документируемая операция успешно
	Success bool `json:"isSuccessful"`
	// ErrorMessage — сообщение об ошибке при Success=false
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// AuditContext — сведения об инициаторе мутации, протаскиваются
// от HTTP-обработчика до журнала аудита.
type AuditContext struct {
	// Actor — идентификатор пользователя (или системный маркер)
	Actor string
	// ClientIP — IP клиента
	ClientIP string
	// UserAgent — User-Agent клиента
	UserAgent string
	// Reason — комментарий к изменению
	Reason string
}
