package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"pico-faultsim/internal/diagnostics"
	"pico-faultsim/internal/fault"
	"pico-faultsim/internal/metrics"
	"pico-faultsim/internal/models"
	"pico-faultsim/internal/scenario"
)

const (
	defaultReportLimit = 10
	// maxRounds верхняя граница rounds в запросе
	maxRounds = 10000
)

// countedStatuses итоги, по которым хранилище ведет счетчики прогонов
var countedStatuses = []models.Status{models.StatusAllNormal, models.StatusFaultDetected, models.StatusFaultMissed}

// ReportStore хранилище выгруженных отчетов
type ReportStore interface {
	RecentReports(scenario string, limit int) ([]string, error)
	RecentFaults(scenario string, limit int) ([]string, error)
	GetReport(key string) (*models.Report, error)
	GetCounter(scenario string, status models.Status) (int64, error)
	Ping() error
	GetStats() map[string]interface{}
}

// Handler обработчик HTTP запросов
type Handler struct {
	runner  *diagnostics.Runner
	catalog *scenario.Catalog
	store   ReportStore
}

// NewHandler создает новый обработчик; store может быть nil
func NewHandler(runner *diagnostics.Runner, catalog *scenario.Catalog, store ReportStore) *Handler {
	return &Handler{
		runner:  runner,
		catalog: catalog,
		store:   store,
	}
}

// Register регистрирует маршруты
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/scenarios", h.ListScenarios)
	mux.HandleFunc("/diagnostics", h.RunDiagnostics)
	mux.HandleFunc("/diagnostics/batch", h.BatchRunDiagnostics)
	mux.HandleFunc("/reports", h.GetReports)
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/stats", h.GetStats)
}

// ListScenarios обрабатывает GET /scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RequestDuration.WithLabelValues(r.Method, "/scenarios").Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodGet {
		metrics.RequestsTotal.WithLabelValues(r.Method, "/scenarios", "405").Inc()
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	list, err := h.catalog.Select()
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(r.Method, "/scenarios", "500").Inc()
		http.Error(w, "Failed to list scenarios", http.StatusInternalServerError)
		return
	}

	metrics.RequestsTotal.WithLabelValues(r.Method, "/scenarios", "200").Inc()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(list),
		"scenarios": list,
	})
}

// RunDiagnostics обрабатывает POST /diagnostics?scenario=<name>&rounds=<n>
func (h *Handler) RunDiagnostics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RequestDuration.WithLabelValues(r.Method, "/diagnostics").Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodPost {
		metrics.RequestsTotal.WithLabelValues(r.Method, "/diagnostics", "405").Inc()
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := r.URL.Query().Get("scenario")
	if name == "" {
		metrics.RequestsTotal.WithLabelValues(r.Method, "/diagnostics", "400").Inc()
		http.Error(w, "scenario parameter is required", http.StatusBadRequest)
		return
	}
	rounds, err := parseRounds(r)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(r.Method, "/diagnostics", "400").Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s, err := h.catalog.Get(name)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(r.Method, "/diagnostics", "404").Inc()
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if rounds == 0 {
		rounds = h.runner.Rounds(s)
	}

	report, err := h.runner.RunN(r.Context(), s, rounds)
	if err != nil {
		code := statusFor(err)
		metrics.RequestsTotal.WithLabelValues(r.Method, "/diagnostics", strconv.Itoa(code)).Inc()
		http.Error(w, err.Error(), code)
		return
	}

	metrics.RequestsTotal.WithLabelValues(r.Method, "/diagnostics", "200").Inc()
	writeJSON(w, http.StatusOK, report)
}

// BatchRunDiagnostics обрабатывает POST /diagnostics/batch?scenario=a&scenario=b.
// Без параметров прогоняются все сценарии каталога.
func (h *Handler) BatchRunDiagnostics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RequestDuration.WithLabelValues(r.Method, "/diagnostics/batch").Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodPost {
		metrics.RequestsTotal.WithLabelValues(r.Method, "/diagnostics/batch", "405").Inc()
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	list, err := h.catalog.Select(r.URL.Query()["scenario"]...)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(r.Method, "/diagnostics/batch", "404").Inc()
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	reports, err := h.runner.RunAll(r.Context(), list)
	if err != nil {
		code := statusFor(err)
		metrics.RequestsTotal.WithLabelValues(r.Method, "/diagnostics/batch", strconv.Itoa(code)).Inc()
		http.Error(w, err.Error(), code)
		return
	}

	summary := map[string]int{}
	for _, rep := range reports {
		summary[rep.Status.String()]++
	}

	metrics.RequestsTotal.WithLabelValues(r.Method, "/diagnostics/batch", "200").Inc()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":   len(reports),
		"summary": summary,
		"reports": reports,
	})
}

// GetReports обрабатывает GET /reports?scenario=<name>&limit=<n>
func (h *Handler) GetReports(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RequestDuration.WithLabelValues(r.Method, "/reports").Observe(time.Since(start).Seconds())
	}()

	if h.store == nil {
		metrics.RequestsTotal.WithLabelValues(r.Method, "/reports", "503").Inc()
		http.Error(w, "Report store is not configured", http.StatusServiceUnavailable)
		return
	}

	name := r.URL.Query().Get("scenario")
	if name == "" {
		metrics.RequestsTotal.WithLabelValues(r.Method, "/reports", "400").Inc()
		http.Error(w, "scenario parameter is required", http.StatusBadRequest)
		return
	}
	limit := defaultReportLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			metrics.RequestsTotal.WithLabelValues(r.Method, "/reports", "400").Inc()
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	faultsOnly := false
	if v := r.URL.Query().Get("faults"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			metrics.RequestsTotal.WithLabelValues(r.Method, "/reports", "400").Inc()
			http.Error(w, "faults must be a boolean", http.StatusBadRequest)
			return
		}
		faultsOnly = b
	}

	recent := h.store.RecentReports
	if faultsOnly {
		recent = h.store.RecentFaults
	}
	keys, err := recent(name, limit)
	if err != nil {
		metrics.RedisOperations.WithLabelValues("get_reports", "error").Inc()
		metrics.RequestsTotal.WithLabelValues(r.Method, "/reports", "500").Inc()
		http.Error(w, "Failed to retrieve reports", http.StatusInternalServerError)
		return
	}
	metrics.RedisOperations.WithLabelValues("get_reports", "success").Inc()

	reports := make([]*models.Report, 0, len(keys))
	for _, key := range keys {
		rep, err := h.store.GetReport(key)
		if err != nil {
			// ключ в индексе мог пережить сам отчет
			metrics.RedisOperations.WithLabelValues("get_report", "error").Inc()
			continue
		}
		metrics.RedisOperations.WithLabelValues("get_report", "success").Inc()
		reports = append(reports, rep)
	}

	metrics.RequestsTotal.WithLabelValues(r.Method, "/reports", "200").Inc()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scenario":     name,
		"report_count": len(reports),
		"reports":      reports,
	})
}

// HealthCheck обрабатывает GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK

	resp := map[string]interface{}{
		"scenarios": len(h.catalog.Names()),
		"timestamp": time.Now(),
	}
	if h.store != nil {
		redisOK := h.store.Ping() == nil
		resp["redis"] = redisOK
		if !redisOK {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}
	}
	resp["status"] = status

	writeJSON(w, httpStatus, resp)
}

// GetStats обрабатывает GET /stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RequestDuration.WithLabelValues(r.Method, "/stats").Observe(time.Since(start).Seconds())
	}()

	resp := map[string]interface{}{
		"runner":    h.runner.Stats(),
		"scenarios": h.catalog.Names(),
		"timestamp": time.Now(),
	}
	if h.store != nil {
		resp["redis"] = h.store.GetStats()
		if runs, err := h.runCounters(); err != nil {
			metrics.RedisOperations.WithLabelValues("get_counter", "error").Inc()
		} else {
			metrics.RedisOperations.WithLabelValues("get_counter", "success").Inc()
			resp["runs"] = runs
		}
	}

	metrics.RequestsTotal.WithLabelValues(r.Method, "/stats", "200").Inc()
	writeJSON(w, http.StatusOK, resp)
}

// runCounters счетчики выгруженных прогонов по сценариям и итогам
func (h *Handler) runCounters() (map[string]map[string]int64, error) {
	runs := make(map[string]map[string]int64)
	for _, name := range h.catalog.Names() {
		byStatus := make(map[string]int64, len(countedStatuses))
		for _, st := range countedStatuses {
			n, err := h.store.GetCounter(name, st)
			if err != nil {
				return nil, err
			}
			byStatus[st.String()] = n
		}
		runs[name] = byStatus
	}
	return runs, nil
}

func parseRounds(r *http.Request) (int, error) {
	v := r.URL.Query().Get("rounds")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, errors.New("rounds must be a positive integer")
	}
	if n > maxRounds {
		return 0, fmt.Errorf("rounds must not exceed %d", maxRounds)
	}
	return n, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, fault.ErrConfiguration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
