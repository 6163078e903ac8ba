// excel.go — обработчики загрузки, чтения и мутаций табличных данных.
package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/sheetstore/internal/api/errors"
	"github.com/bigkaa/sheetstore/internal/service"
)

// UploadFile — POST /api/excel/upload.
// Multipart-форма: поле file — содержимое, uploadedBy — кто загрузил.
func (h *APIHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("ошибка разбора multipart-формы: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "поле file обязательно")
		return
	}
	defer file.Close() //nolint:errcheck

	record, err := h.files.Upload(r.Context(), file, header.Filename,
		header.Header.Get("Content-Type"), r.FormValue("uploadedBy"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, record)
}

// ReadFile — POST /api/excel/read/{fileName}.
// Разбирает физический файл и заменяет поколение строк в хранилище.
func (h *APIHandler) ReadFile(w http.ResponseWriter, r *http.Request) {
	result, err := h.ingest.ReadFile(r.Context(), pathParam(r, "fileName"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

// GetData — GET /api/excel/data/{fileName}?page=&pageSize=&sheetName=.
func (h *APIHandler) GetData(w http.ResponseWriter, r *http.Request) {
	page, err := h.rows.GetPage(r.Context(),
		pathParam(r, "fileName"),
		r.URL.Query().Get("sheetName"),
		queryInt(r, "page", 1),
		queryInt(r, "pageSize", 0),
	)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, page)
}

// GetAllData — GET /api/excel/data/{fileName}/all.
func (h *APIHandler) GetAllData(w http.ResponseWriter, r *http.Request) {
	rows, err := h.rows.GetAll(r.Context(),
		pathParam(r, "fileName"), r.URL.Query().Get("sheetName"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, rows)
}

// updateRowRequest — тело одиночного обновления строки.
type updateRowRequest struct {
	ID      int64             `json:"id"`
	Columns map[string]string `json:"rowData"`
	Actor   string            `json:"modifiedBy"`
	Reason  string            `json:"changeReason"`
}

// UpdateRow — PUT /api/excel/data.
func (h *APIHandler) UpdateRow(w http.ResponseWriter, r *http.Request) {
	var req updateRowRequest
	if err := decodeBody(r, &req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("некорректное тело запроса: %v", err))
		return
	}
	if req.ID == 0 {
		apierrors.ValidationError(w, "поле id обязательно")
		return
	}
	if len(req.Columns) == 0 {
		apierrors.ValidationError(w, "поле rowData обязательно")
		return
	}

	row, err := h.rows.Update(r.Context(), req.ID, req.Columns,
		auditContext(r, req.Actor, req.Reason))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, row)
}

// bulkUpdateRequest — тело пакетного обновления.
type bulkUpdateRequest struct {
	Items  []service.BulkUpdateItem `json:"items"`
	Actor  string                   `json:"modifiedBy"`
	Reason string                   `json:"changeReason"`
}

// BulkUpdateRows — PUT /api/excel/data/bulk.
// Элементы применяются последовательно и независимо.
func (h *APIHandler) BulkUpdateRows(w http.ResponseWriter, r *http.Request) {
	var req bulkUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("некорректное тело запроса: %v", err))
		return
	}
	if len(req.Items) == 0 {
		apierrors.ValidationError(w, "поле items обязательно")
		return
	}

	results := h.rows.BulkUpdate(r.Context(), req.Items,
		auditContext(r, req.Actor, req.Reason))
	writeSuccess(w, http.StatusOK, results)
}

// addRowRequest — тело добавления строки.
type addRowRequest struct {
	FileName  string            `json:"fileName"`
	SheetName string            `json:"sheetName"`
	Columns   map[string]string `json:"rowData"`
	Actor     string            `json:"createdBy"`
	Reason    string            `json:"changeReason"`
}

// AddRow — POST /api/excel/data.
func (h *APIHandler) AddRow(w http.ResponseWriter, r *http.Request) {
	var req addRowRequest
	if err := decodeBody(r, &req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("некорректное тело запроса: %v", err))
		return
	}
	if req.FileName == "" || req.SheetName == "" {
		apierrors.ValidationError(w, "поля fileName и sheetName обязательны")
		return
	}

	row, err := h.rows.Add(r.Context(), req.FileName, req.SheetName, req.Columns,
		auditContext(r, req.Actor, req.Reason))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, row)
}

// DeleteRow — DELETE /api/excel/data/{id}?actor=.
func (h *APIHandler) DeleteRow(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		apierrors.ValidationError(w, "некорректный id строки")
		return
	}

	actx := auditContext(r, r.URL.Query().Get("actor"), r.URL.Query().Get("reason"))
	if err := h.rows.Delete(r.Context(), id, actx); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccessMessage(w, http.StatusOK, "строка удалена")
}

// ExportFile — POST /api/excel/export.
// Единственный endpoint, отвечающий бинарным телом вместо JSON-конверта.
func (h *APIHandler) ExportFile(w http.ResponseWriter, r *http.Request) {
	var req service.ExportRequest
	if err := decodeBody(r, &req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("некорректное тело запроса: %v", err))
		return
	}

	data, err := h.export.Export(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", req.FileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GetSheets — GET /api/excel/sheets/{fileName}.
func (h *APIHandler) GetSheets(w http.ResponseWriter, r *http.Request) {
	sheets, err := h.ingest.SheetNames(r.Context(), pathParam(r, "fileName"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, sheets)
}

// DeleteFile — DELETE /api/excel/files/{fileName}?actor=.
// Деактивирует файл и каскадно помечает удалёнными его строки.
func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	fileName := pathParam(r, "fileName")
	actor := r.URL.Query().Get("actor")
	if actor == "" {
		actor = "anonymous"
	}

	if err := h.files.Delete(r.Context(), fileName, actor); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccessMessage(w, http.StatusOK, "файл удалён")
}

// ListFiles — GET /api/files?page=&pageSize=.
func (h *APIHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	page, err := h.files.List(r.Context(),
		queryInt(r, "page", 1), queryInt(r, "pageSize", 0))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, page)
}

// ListFileAudit — GET /api/audit/{fileName}?page=&pageSize=.
// Записи аудита файла, новые первыми.
func (h *APIHandler) ListFileAudit(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := queryInt(r, "pageSize", 50)
	if pageSize < 1 || pageSize > 1000 {
		pageSize = 50
	}

	entries, err := h.audit.ListByFile(r.Context(),
		pathParam(r, "fileName"), pageSize, (page-1)*pageSize)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, entries)
}

// ListRowAudit — GET /api/audit/row/{rowId}.
// Вся история записей аудита одной строки, старые первыми.
func (h *APIHandler) ListRowAudit(w http.ResponseWriter, r *http.Request) {
	rowID, err := strconv.ParseInt(chi.URLParam(r, "rowId"), 10, 64)
	if err != nil {
		apierrors.ValidationError(w, "некорректный rowId")
		return
	}

	entries, err := h.audit.ListByRow(r.Context(), rowID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, entries)
}
