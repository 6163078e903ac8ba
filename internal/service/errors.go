// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrConflict — конкурирующее изменение не удалось применить
	// после всех повторных попыток.
	ErrConflict = errors.New("строка изменена другим пользователем — повторите попытку")
	// ErrInvalidState — операция над удалённой или терминальной записью.
	ErrInvalidState = errors.New("недопустимое состояние записи")
	// ErrParse — ошибка разбора файла таблицы или сериализованных данных.
	ErrParse = errors.New("ошибка разбора данных таблицы")
)
