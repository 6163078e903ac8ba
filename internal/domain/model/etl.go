package model

import "time"

// Статусы выполнения ETL-пакета.
const (
	ETLStatusRunning   = "RUNNING"
	ETLStatusSucceeded = "SUCCEEDED"
	ETLStatusFailed    = "FAILED"
	ETLStatusCancelled = "CANCELLED"
)

// ETLExecution — долговременная запись о запуске внешнего ETL-пакета.
// Хранится в таблице etl_executions; запуск не блокирует исходный
// HTTP-запрос, статус опрашивается отдельным endpoint.
type ETLExecution struct {
	// ID — UUID запуска
	ID string `json:"executionId"`
	// PackageName — имя ETL-пакета
	PackageName string `json:"packageName"`
	// Status — RUNNING, SUCCEEDED, FAILED или CANCELLED
	Status string `json:"status"`
	// StartedAt — время запуска
	StartedAt time.Time `json:"startedAt"`
	// FinishedAt — время завершения (nil пока RUNNING)
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	// Message — итоговое сообщение (ошибка, причина отмены)
	Message string `json:"message,omitempty"`
}
