package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/hydronote/groundwatch/internal/alerting"
	"github.com/hydronote/groundwatch/internal/dashboard"
	"github.com/hydronote/groundwatch/internal/domain"
	"github.com/hydronote/groundwatch/internal/forecast"
	"github.com/hydronote/groundwatch/internal/httputil"
	"github.com/hydronote/groundwatch/internal/repository"
	"github.com/hydronote/groundwatch/internal/store"
)

type API struct {
	store     *store.Store
	forecasts *forecast.Service
	alerts    *alerting.Service
	runs      repository.RunRepository
	mux       *http.ServeMux
}

type CreateAlertRequest struct {
	Name        string                `json:"name"`
	Severity    domain.Severity       `json:"severity"`
	Scope       domain.AlertScope     `json:"scope"`
	Condition   domain.AlertCondition `json:"condition"`
	NotifyInApp bool                  `json:"notify_in_app"`
	NotifyEmail bool                  `json:"notify_email"`
	CreatedBy   string                `json:"created_by"`
}

type AckRequest struct {
	UserID string `json:"user_id"`
}

// NewAPI builds the HTTP surface. The run repository may be nil, which turns
// the run-history endpoints into 503s.
func NewAPI(st *store.Store, forecasts *forecast.Service, alerts *alerting.Service, runs repository.RunRepository) *API {
	api := &API{
		store:     st,
		forecasts: forecasts,
		alerts:    alerts,
		runs:      runs,
		mux:       http.NewServeMux(),
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	a.mux.HandleFunc("/api/tasks", a.handleTasks)
	a.mux.HandleFunc("/api/tasks/", a.handleTaskByID)
	a.mux.HandleFunc("/api/wells", a.handleWells)
	a.mux.HandleFunc("/api/forecasts", a.handleForecasts)
	a.mux.HandleFunc("/api/forecasts/", a.handleForecastByID)
	a.mux.HandleFunc("/api/alerts", a.handleAlerts)
	a.mux.HandleFunc("/api/alerts/", a.handleAlertByID)
	a.mux.HandleFunc("/api/history/", a.handleHistory)
	a.mux.HandleFunc("/api/notifications", a.handleNotifications)
	a.mux.HandleFunc("/api/runs/stats", a.handleRunStats)
	a.mux.HandleFunc("/api/runs/recent", a.handleRecentRuns)

	dash := dashboard.NewDashboard(a.store)
	a.mux.HandleFunc("/api/dashboard/stats", dash.GetStats)
	a.mux.HandleFunc("/api/dashboard/recent", dash.GetRecentTasks)

	a.mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	})
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// orgID extracts the organization the request acts for. Authentication is
// handled upstream; by the time a request reaches this handler the header is
// trusted.
func orgID(w http.ResponseWriter, r *http.Request) (string, bool) {
	org := r.Header.Get("X-Org-ID")
	if org == "" {
		httputil.WriteJSONError(w, "X-Org-ID header is required", http.StatusBadRequest)
		return "", false
	}

	return org, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteJSONError(w, "Failed to read request body", http.StatusBadRequest)
		return false
	}

	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Printf("failed to close request body: %v", err)
		}
	}()

	if err := json.Unmarshal(body, v); err != nil {
		httputil.WriteJSONError(w, "Invalid JSON", http.StatusBadRequest)
		return false
	}

	return true
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		httputil.WriteJSONError(w, "Not found", http.StatusNotFound)
		return
	}

	httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
}

// Tasks

func (a *API) handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	org, ok := orgID(w, r)
	if !ok {
		return
	}

	tasks, err := a.store.ListTasks(r.Context(), org)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	httputil.WriteJSON(w, tasks, http.StatusOK)
}

func (a *API) handleTaskByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	org, ok := orgID(w, r)
	if !ok {
		return
	}

	taskID := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	if taskID == "" {
		httputil.WriteJSONError(w, "Task ID is required", http.StatusBadRequest)
		return
	}

	t, err := a.store.GetTask(r.Context(), org, taskID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	httputil.WriteJSON(w, t, http.StatusOK)
}

// Wells

func (a *API) handleWells(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	org, ok := orgID(w, r)
	if !ok {
		return
	}

	wells, err := a.store.ListWells(r.Context(), org)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	httputil.WriteJSON(w, wells, http.StatusOK)
}

// Forecasts

func (a *API) handleForecasts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.runForecast(w, r)
	case http.MethodGet:
		a.listForecasts(w, r)
	default:
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *API) runForecast(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}

	var req forecast.RunRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := a.forecasts.Run(r.Context(), org, req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeStoreError(w, err)
			return
		}
		httputil.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	httputil.WriteJSON(w, res, http.StatusAccepted)
}

func (a *API) listForecasts(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}

	forecasts, err := a.store.ListForecasts(r.Context(), org)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	httputil.WriteJSON(w, forecasts, http.StatusOK)
}

func (a *API) handleForecastByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	org, ok := orgID(w, r)
	if !ok {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/forecasts/")
	parts := strings.Split(rest, "/")
	if parts[0] == "" {
		httputil.WriteJSONError(w, "Forecast ID is required", http.StatusBadRequest)
		return
	}

	f, err := a.store.GetForecast(r.Context(), org, parts[0])
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if len(parts) == 1 {
		httputil.WriteJSON(w, f, http.StatusOK)
		return
	}

	switch parts[1] {
	case "series":
		a.forecastSeries(w, r, f.ID)
	case "results":
		a.forecastResults(w, r, f.ID)
	default:
		httputil.WriteJSONError(w, "Not found", http.StatusNotFound)
	}
}

func (a *API) forecastSeries(w http.ResponseWriter, r *http.Request, forecastID string) {
	var (
		points []domain.SeriesPoint
		err    error
	)

	if wellID := r.URL.Query().Get("well_id"); wellID != "" {
		points, err = a.store.WellSeries(r.Context(), forecastID, wellID)
	} else {
		points, err = a.store.Series(r.Context(), forecastID)
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if points == nil {
		points = []domain.SeriesPoint{}
	}
	httputil.WriteJSON(w, points, http.StatusOK)
}

func (a *API) forecastResults(w http.ResponseWriter, r *http.Request, forecastID string) {
	results, err := a.store.WellResults(r.Context(), forecastID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if results == nil {
		results = []domain.WellForecastResult{}
	}
	httputil.WriteJSON(w, results, http.StatusOK)
}

// Alerts

func (a *API) handleAlerts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createAlert(w, r)
	case http.MethodGet:
		a.listAlerts(w, r)
	default:
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *API) createAlert(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}

	var req CreateAlertRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteJSONError(w, "Alert name is required", http.StatusBadRequest)
		return
	}
	if req.Severity == "" {
		req.Severity = domain.SeverityWarning
	}

	alert := domain.NewAlert(org, req.Name, req.CreatedBy, req.Severity)
	alert.Scope = req.Scope
	alert.Condition = req.Condition
	alert.NotifyInApp = req.NotifyInApp
	alert.NotifyEmail = req.NotifyEmail

	if err := a.store.SaveAlert(r.Context(), alert); err != nil {
		writeStoreError(w, err)
		return
	}

	httputil.WriteJSON(w, alert, http.StatusCreated)
}

func (a *API) listAlerts(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}

	alerts, err := a.store.ListAlerts(r.Context(), org)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	httputil.WriteJSON(w, alerts, http.StatusOK)
}

func (a *API) handleAlertByID(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(w, r)
	if !ok {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/alerts/")
	parts := strings.Split(rest, "/")
	if parts[0] == "" {
		httputil.WriteJSONError(w, "Alert ID is required", http.StatusBadRequest)
		return
	}

	alertID := parts[0]
	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		alert, err := a.store.GetAlert(r.Context(), org, alertID)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		httputil.WriteJSON(w, alert, http.StatusOK)
		return
	}

	switch parts[1] {
	case "test":
		if r.Method != http.MethodPost {
			httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		res, err := a.alerts.TestRun(r.Context(), org, alertID)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		httputil.WriteJSON(w, res, http.StatusOK)
	case "history":
		if r.Method != http.MethodGet {
			httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if _, err := a.store.GetAlert(r.Context(), org, alertID); err != nil {
			writeStoreError(w, err)
			return
		}

		history, err := a.store.HistoryFor(r.Context(), alertID)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		if history == nil {
			history = []domain.AlertHistoryEntry{}
		}
		httputil.WriteJSON(w, history, http.StatusOK)
	default:
		httputil.WriteJSONError(w, "Not found", http.StatusNotFound)
	}
}

// Alert history acknowledgement

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/ack") {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	org, ok := orgID(w, r)
	if !ok {
		return
	}

	historyID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/history/"), "/ack")
	if historyID == "" {
		httputil.WriteJSONError(w, "History ID is required", http.StatusBadRequest)
		return
	}

	var req AckRequest
	if !decodeBody(w, r, &req) {
		return
	}

	entry, err := a.alerts.Acknowledge(r.Context(), org, historyID, req.UserID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	httputil.WriteJSON(w, entry, http.StatusOK)
}

// Run history (Postgres-backed, optional)

func (a *API) handleRunStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.runs == nil {
		httputil.WriteJSONError(w, "Run history is not configured", http.StatusServiceUnavailable)
		return
	}

	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			httputil.WriteJSONError(w, "Invalid hours parameter", http.StatusBadRequest)
			return
		}
		hours = parsed
	}

	stats, err := a.runs.GetRunStats(r.Context(), hours)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if stats == nil {
		stats = []repository.RunStats{}
	}
	httputil.WriteJSON(w, stats, http.StatusOK)
}

func (a *API) handleRecentRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.runs == nil {
		httputil.WriteJSONError(w, "Run history is not configured", http.StatusServiceUnavailable)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			httputil.WriteJSONError(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs, err := a.runs.GetRecentRuns(r.Context(), limit)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if runs == nil {
		runs = []repository.RecentRun{}
	}
	httputil.WriteJSON(w, runs, http.StatusOK)
}

// Notifications

func (a *API) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	org, ok := orgID(w, r)
	if !ok {
		return
	}

	notifications, err := a.store.NotificationsFor(r.Context(), org)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if notifications == nil {
		notifications = []domain.Notification{}
	}
	httputil.WriteJSON(w, notifications, http.StatusOK)
}
