package model

import "time"

// SheetRow — одна строка электронной таблицы, сохранённая в БД.
// Хранится в таблице sheet_rows.
type SheetRow struct {
	// ID — суррогатный идентификатор строки
	ID int64 `json:"id"`
	// FileName — логическое имя файла-владельца
	FileName string `json:"fileName"`
	// SheetName — имя листа
	SheetName string `json:"sheetName"`
	// RowIndex — позиция строки в исходной таблице (не уникальна:
	// индекс разделяют прежние поколения и soft-deleted предшественники)
	RowIndex int `json:"rowIndex"`
	// Columns — карта колонка → строковое значение (сериализуется в JSONB)
	Columns map[string]string `json:"rowData"`
	// CreatedAt — время создания
	CreatedAt time.Time `json:"createdDate"`
	// ModifiedAt — время последнего изменения (nil — не менялась)
	ModifiedAt *time.Time `json:"modifiedDate,omitempty"`
	// ModifiedBy — кто последним менял строку
	ModifiedBy *string `json:"modifiedBy,omitempty"`
	// IsDeleted — флаг soft delete
	IsDeleted bool `json:"isDeleted"`
	// Version — счётчик версий, начинается с 1, +1 на каждую успешную мутацию.
	// Используется для optimistic concurrency.
	Version int `json:"version"`
}

// RowPage — страница строк с метаданными пагинации.
type RowPage struct {
	// Items — строки текущей страницы
	Items []*SheetRow `json:"items"`
	// Total — общее количество живых строк файла/листа
	Total int `json:"total"`
	// Page — номер страницы (с 1)
	Page int `json:"page"`
	// PageSize — размер страницы
	PageSize int `json:"pageSize"`
	// HasMore — есть ли ещё страницы
	HasMore bool `json:"hasMore"`
}

// RowChangeInfo — метаданные изменения строки для history endpoints.
// Явная структура вместо открытой map — контракт статически известен.
type RowChangeInfo struct {
	RowID      int64      `json:"rowId"`
	RowIndex   int        `json:"rowIndex"`
	SheetName  string     `json:"sheetName"`
	Version    int        `json:"version"`
	CreatedAt  time.Time  `json:"createdDate"`
	ModifiedAt *time.Time `json:"modifiedDate,omitempty"`
	ModifiedBy *string    `json:"modifiedBy,omitempty"`
	IsDeleted  bool       `json:"isDeleted"`
}
