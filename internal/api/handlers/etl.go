// etl.go — обработчики запусков внешних ETL-пакетов.
// Запуск — fire-and-forget: ответ возвращается сразу, статус
// опрашивается отдельным запросом.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/sheetstore/internal/api/errors"
)

// ExecutePackage — POST /api/etl/execute/{packageName}.
// Возвращает 202 и ID запуска, не дожидаясь завершения работы.
func (h *APIHandler) ExecutePackage(w http.ResponseWriter, r *http.Request) {
	exec, err := h.etl.Execute(r.Context(), pathParam(r, "packageName"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusAccepted, exec)
}

// ExecutionStatus — GET /api/etl/status/{executionId}.
func (h *APIHandler) ExecutionStatus(w http.ResponseWriter, r *http.Request) {
	exec, err := h.etl.Status(r.Context(), chi.URLParam(r, "executionId"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, exec)
}

// CancelExecution — POST /api/etl/cancel/{executionId}.
// Прерывает выполняющийся запуск.
func (h *APIHandler) CancelExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := h.etl.Cancel(r.Context(), chi.URLParam(r, "executionId"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, exec)
}

// ListExecutions — GET /api/etl/executions?page=&pageSize=.
func (h *APIHandler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := queryInt(r, "pageSize", 50)
	if pageSize < 1 || pageSize > 1000 {
		apierrors.ValidationError(w, "pageSize должен быть в диапазоне [1, 1000]")
		return
	}

	execs, err := h.etl.List(r.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, execs)
}
