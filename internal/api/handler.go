package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/harrier/internal/analysis"
	"github.com/opensource-finance/harrier/internal/behavior"
	"github.com/opensource-finance/harrier/internal/domain"
)

// scoreCacheTTL bounds staleness of the cached score read path.
const scoreCacheTTL = 5 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	engine   *behavior.Engine
	pipeline *analysis.Pipeline
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *behavior.Engine, pipeline *analysis.Pipeline, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		engine:   engine,
		pipeline: pipeline,
		version:  version,
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// RunAnalysisRequest is the request body for POST /analysis/run.
type RunAnalysisRequest struct {
	WindowID string    `json:"windowId"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// RunAnalysis executes a full analysis pass over the stored snapshot
// for the requested window and returns the result.
func (h *Handler) RunAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RunAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if req.WindowID == "" {
		writeError(w, http.StatusBadRequest, "windowId is required")
		return
	}
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	window := domain.Window{ID: req.WindowID, Start: req.Start, End: req.End}

	customers, err := h.repo.ListCustomers(ctx)
	if err != nil {
		slog.Error("failed to load customers", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load snapshot")
		return
	}
	accounts, err := h.repo.ListAccounts(ctx)
	if err != nil {
		slog.Error("failed to load accounts", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load snapshot")
		return
	}
	transactions, err := h.repo.ListTransactions(ctx, window)
	if err != nil {
		slog.Error("failed to load transactions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load snapshot")
		return
	}

	snapshot := &domain.Snapshot{
		Customers:    customers,
		Accounts:     accounts,
		Transactions: transactions,
	}

	result, err := h.pipeline.Run(ctx, snapshot, window)
	if err != nil {
		slog.Error("analysis run failed", "window_id", req.WindowID, "error", err)
		writeError(w, http.StatusInternalServerError, "analysis run failed")
		return
	}

	// Freshly computed scores replace whatever the cache held.
	if h.cache != nil {
		for _, score := range result.Scores {
			if err := h.cache.SetScore(ctx, score, scoreCacheTTL); err != nil {
				slog.Warn("failed to cache score", "customer_id", score.CustomerID, "error", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// CreateCustomer upserts a customer record.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var c domain.Customer
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if c.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if c.DeclaredIncome < 0 {
		writeError(w, http.StatusBadRequest, "declaredIncome must not be negative")
		return
	}

	if err := h.repo.SaveCustomer(ctx, &c); err != nil {
		slog.Error("failed to save customer", "id", c.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save customer")
		return
	}

	writeJSON(w, http.StatusCreated, &c)
}

// CreateAccount upserts an account record.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var a domain.Account
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if a.ID == "" || a.CustomerID == "" {
		writeError(w, http.StatusBadRequest, "id and customerId are required")
		return
	}

	if err := h.repo.SaveAccount(ctx, &a); err != nil {
		slog.Error("failed to save account", "id", a.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save account")
		return
	}

	writeJSON(w, http.StatusCreated, &a)
}

// CreateTransaction ingests a transaction record. Transactions are
// immutable: replaying the same id is a no-op.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if tx.Direction == "" {
		tx.Direction = domain.DirectionDebit
	}
	if err := tx.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.SaveTransaction(ctx, &tx); err != nil {
		slog.Error("failed to save transaction", "id", tx.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save transaction")
		return
	}

	writeJSON(w, http.StatusCreated, &tx)
}

// GetCustomer retrieves a customer by ID.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID := chi.URLParam(r, "id")

	c, err := h.repo.GetCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "customer not found")
			return
		}
		slog.Error("failed to get customer", "id", customerID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get customer")
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// GetCustomerScore retrieves the latest score for a customer, reading
// through the cache.
func (h *Handler) GetCustomerScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID := chi.URLParam(r, "id")

	if h.cache != nil {
		if score, err := h.cache.GetScore(ctx, customerID); err == nil && score != nil {
			w.Header().Set("X-Cache", "hit")
			writeJSON(w, http.StatusOK, score)
			return
		}
	}

	score, err := h.repo.GetCustomerScore(ctx, customerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "score not found")
			return
		}
		slog.Error("failed to get score", "customer_id", customerID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get score")
		return
	}

	if h.cache != nil {
		if err := h.cache.SetScore(ctx, score, scoreCacheTTL); err != nil {
			slog.Warn("failed to cache score", "customer_id", customerID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, score)
}

// ListCustomerAlerts returns all alerts for a customer.
func (h *Handler) ListCustomerAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID := chi.URLParam(r, "id")

	alerts, err := h.repo.ListAlertsByCustomer(ctx, customerID)
	if err != nil {
		slog.Error("failed to list alerts", "customer_id", customerID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// ListClusters returns the clusters detected for a window.
func (h *Handler) ListClusters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	windowID := r.URL.Query().Get("window")
	if windowID == "" {
		writeError(w, http.StatusBadRequest, "window query parameter is required")
		return
	}

	clusters, err := h.repo.ListClusters(ctx, windowID)
	if err != nil {
		slog.Error("failed to list clusters", "window_id", windowID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list clusters")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"clusters": clusters,
		"count":    len(clusters),
	})
}

// ListAlerts returns open and assigned alerts for a window.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	windowID := r.URL.Query().Get("window")
	if windowID == "" {
		writeError(w, http.StatusBadRequest, "window query parameter is required")
		return
	}

	alerts, err := h.repo.ListOpenAlerts(ctx, windowID)
	if err != nil {
		slog.Error("failed to list alerts", "window_id", windowID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// GetAlert retrieves an alert by ID.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	alertID := chi.URLParam(r, "id")

	alert, err := h.repo.GetAlert(ctx, alertID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		slog.Error("failed to get alert", "id", alertID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get alert")
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

// AssignRequest is the request body for POST /alerts/{id}/assign.
type AssignRequest struct {
	Analyst string `json:"analyst"`
}

// AssignAlert assigns an alert to an analyst.
func (h *Handler) AssignAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	alertID := chi.URLParam(r, "id")

	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if req.Analyst == "" {
		writeError(w, http.StatusBadRequest, "analyst is required")
		return
	}

	if err := h.repo.UpdateAlertStatus(ctx, alertID, domain.AlertAssigned, req.Analyst, ""); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		slog.Error("failed to assign alert", "id", alertID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to assign alert")
		return
	}

	slog.Info("alert assigned", "id", alertID, "analyst", req.Analyst)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  string(domain.AlertAssigned),
		"analyst": req.Analyst,
	})
}

// ResolveRequest is the request body for POST /alerts/{id}/resolve.
type ResolveRequest struct {
	Status  domain.AlertStatus `json:"status"`
	Analyst string             `json:"analyst"`
	Notes   string             `json:"notes,omitempty"`
}

// ResolveAlert closes an alert as resolved or dismissed. Closed alerts
// are never reused by later analysis passes.
func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	alertID := chi.URLParam(r, "id")

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if req.Status != domain.AlertResolved && req.Status != domain.AlertDismissed {
		writeError(w, http.StatusBadRequest, "status must be RESOLVED or DISMISSED")
		return
	}

	if err := h.repo.UpdateAlertStatus(ctx, alertID, req.Status, req.Analyst, req.Notes); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		slog.Error("failed to resolve alert", "id", alertID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to resolve alert")
		return
	}

	slog.Info("alert closed", "id", alertID, "status", req.Status)
	writeJSON(w, http.StatusOK, map[string]string{
		"status": string(req.Status),
	})
}

// ListRules returns the behavioral rules currently loaded in the engine.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.engine.LoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": loaded,
		"count": len(loaded),
	})
}

// GetRule retrieves a loaded rule by ID.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	for _, rule := range h.engine.LoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeError(w, http.StatusNotFound, "rule not found")
}

// CreateRule validates, loads, and persists a behavioral rule.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var rule domain.BehaviorRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if rule.ID == "" || rule.Name == "" || rule.Expression == "" {
		writeError(w, http.StatusBadRequest, "id, name, and expression are required")
		return
	}
	if rule.Threshold < 0 || rule.Threshold > 1 {
		writeError(w, http.StatusBadRequest, "threshold must be between 0 and 1")
		return
	}

	// Compile first so a bad expression never reaches the database.
	if err := h.engine.LoadRule(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule expression: "+err.Error())
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveBehaviorRule(ctx, &rule); err != nil {
			slog.Error("failed to save rule", "id", rule.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to save rule")
			return
		}
	}

	slog.Info("behavioral rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, &rule)
}

// ReloadRules reloads all behavioral rules from the database into the
// engine. Enables hot-reloading without a restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	dbRules, err := h.repo.ListBehaviorRules(ctx)
	if err != nil {
		slog.Error("failed to list rules", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load rules from database")
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reload rules: "+err.Error())
		return
	}

	slog.Info("behavioral rules reloaded", "count", h.engine.RulesCount())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   h.engine.RulesCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
