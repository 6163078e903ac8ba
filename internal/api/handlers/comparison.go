// comparison.go — обработчики сравнения наборов строк и истории изменений.
package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/sheetstore/internal/api/errors"
)

// compareFilesRequest — тело сравнения двух файлов.
type compareFilesRequest struct {
	FileName1 string `json:"fileName1"`
	FileName2 string `json:"fileName2"`
	SheetName string `json:"sheetName,omitempty"`
}

// CompareFiles — POST /api/comparison/files.
func (h *APIHandler) CompareFiles(w http.ResponseWriter, r *http.Request) {
	var req compareFilesRequest
	if err := decodeBody(r, &req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("некорректное тело запроса: %v", err))
		return
	}
	if req.FileName1 == "" || req.FileName2 == "" {
		apierrors.ValidationError(w, "поля fileName1 и fileName2 обязательны")
		return
	}

	result, err := h.comparison.CompareFiles(r.Context(), req.FileName1, req.FileName2, req.SheetName)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

// compareVersionsRequest — тело сравнения двух временных срезов файла.
type compareVersionsRequest struct {
	FileName  string    `json:"fileName"`
	Date1     time.Time `json:"date1"`
	Date2     time.Time `json:"date2"`
	SheetName string    `json:"sheetName,omitempty"`
}

// CompareVersions — POST /api/comparison/versions.
func (h *APIHandler) CompareVersions(w http.ResponseWriter, r *http.Request) {
	var req compareVersionsRequest
	if err := decodeBody(r, &req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("некорректное тело запроса: %v", err))
		return
	}
	if req.FileName == "" {
		apierrors.ValidationError(w, "поле fileName обязательно")
		return
	}
	if req.Date1.IsZero() || req.Date2.IsZero() {
		apierrors.ValidationError(w, "поля date1 и date2 обязательны")
		return
	}

	result, err := h.comparison.CompareVersions(r.Context(), req.FileName, req.Date1, req.Date2, req.SheetName)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

// ListChanges — GET /api/comparison/changes/{fileName}?from=&to=&sheetName=.
// Даты — RFC 3339; from по умолчанию — начало эпохи, to — текущий момент.
func (h *APIHandler) ListChanges(w http.ResponseWriter, r *http.Request) {
	from, err := queryTime(r, "from", time.Time{})
	if err != nil {
		apierrors.ValidationError(w, "некорректный параметр from (ожидается RFC 3339)")
		return
	}
	to, err := queryTime(r, "to", time.Now().UTC())
	if err != nil {
		apierrors.ValidationError(w, "некорректный параметр to (ожидается RFC 3339)")
		return
	}

	rows, err := h.comparison.ListChanges(r.Context(),
		pathParam(r, "fileName"), r.URL.Query().Get("sheetName"), from, to)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, rows)
}

// FileHistory — GET /api/comparison/history/{fileName}.
// Метаданные изменений всех живых строк файла.
func (h *APIHandler) FileHistory(w http.ResponseWriter, r *http.Request) {
	info, err := h.comparison.FileHistory(r.Context(), pathParam(r, "fileName"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, info)
}

// RowHistory — GET /api/comparison/row-history/{rowId}.
// Все поколения, разделяющие (file, sheet, rowIndex) строки.
func (h *APIHandler) RowHistory(w http.ResponseWriter, r *http.Request) {
	rowID, err := strconv.ParseInt(chi.URLParam(r, "rowId"), 10, 64)
	if err != nil {
		apierrors.ValidationError(w, "некорректный rowId")
		return
	}

	rows, err := h.comparison.RowHistory(r.Context(), rowID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, rows)
}

// queryTime разбирает RFC 3339 query-параметр времени.
func queryTime(r *http.Request, name string, def time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return time.Parse(time.RFC3339, raw)
}
