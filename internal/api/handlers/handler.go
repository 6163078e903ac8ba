// handler.go — основной обработчик API.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
// Все успешные ответы — в конверте {"success": true, "data": ...}.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/sheetstore/internal/api/errors"
	"github.com/bigkaa/sheetstore/internal/domain/model"
	"github.com/bigkaa/sheetstore/internal/service"
)

// APIHandler — основной обработчик API Sheetstore.
type APIHandler struct {
	health     *HealthHandler
	files      *service.FileService
	ingest     *service.IngestService
	rows       *service.RowService
	export     *service.ExportService
	comparison *service.ComparisonService
	audit      *service.AuditService
	etl        *service.ETLService
	// maxUploadSize — предел размера загружаемого файла в байтах (SS_MAX_UPLOAD_SIZE)
	maxUploadSize int64
	logger        *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	files *service.FileService,
	ingest *service.IngestService,
	rows *service.RowService,
	export *service.ExportService,
	comparison *service.ComparisonService,
	audit *service.AuditService,
	etl *service.ETLService,
	maxUploadSize int64,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:        health,
		files:         files,
		ingest:        ingest,
		rows:          rows,
		export:        export,
		comparison:    comparison,
		audit:         audit,
		etl:           etl,
		maxUploadSize: maxUploadSize,
		logger:        logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// successBody — конверт успешного ответа.
type successBody struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// writeSuccess записывает успешный ответ в конверте.
func writeSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(successBody{Success: true, Data: data})
}

// writeSuccessMessage записывает успешный ответ без полезной нагрузки.
func writeSuccessMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(successBody{Success: true, Message: message})
}

// writeServiceError отображает ошибку сервисного слоя на HTTP-статус.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrInvalidState):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrParse):
		apierrors.UnprocessableEntity(w, err.Error())
	default:
		h.logger.Error("Внутренняя ошибка", slog.String("error", err.Error()))
		apierrors.InternalError(w, "внутренняя ошибка сервера")
	}
}

// pathParam возвращает percent-декодированный параметр пути.
// Имена файлов в пути приходят экранированными.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// queryInt возвращает целочисленный query-параметр или значение по умолчанию.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// auditContext собирает контекст аудита из запроса.
// Актор берётся из тела запроса (параметр), IP и User-Agent — из заголовков.
func auditContext(r *http.Request, actor, reason string) model.AuditContext {
	if actor == "" {
		actor = "anonymous"
	}
	return model.AuditContext{
		Actor:     actor,
		ClientIP:  clientIP(r),
		UserAgent: r.UserAgent(),
		Reason:    reason,
	}
}

// clientIP возвращает IP клиента с учётом реверс-прокси.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	return r.RemoteAddr
}

// decodeBody разбирает JSON-тело запроса.
func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close() //nolint:errcheck
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
