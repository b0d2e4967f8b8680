package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/liamcoop/approvals/configuration"
	"github.com/liamcoop/approvals/internal/logger"
	"github.com/liamcoop/approvals/rules"
)

// UserHeader identifies the caller for audit fields
const UserHeader = "X-User-ID"

// anonymousUser is recorded when the caller sent no identity
const anonymousUser = "system"

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := logger.Snapshot()
	resp := HealthResponse{
		Status:  "healthy",
		Storage: "memory",
		Errors:  stats.Errors,
		Warns:   stats.Warnings,
		Err5xx:  stats.Errors5xx,
		Err4xx:  stats.Errors4xx,
	}

	if s.db != nil {
		resp.Storage = "postgres"
		if err := s.db.PingContext(r.Context()); err != nil {
			resp.Status = "unhealthy"
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// List configurations handler. ?requestTypeId= narrows the list.
func (s *Server) handleListConfigurations(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")

	var (
		configs []*configuration.WorkflowConfiguration
		err     error
	)
	if requestTypeID := r.URL.Query().Get("requestTypeId"); requestTypeID != "" {
		configs, err = s.manager.ListByRequestType(r.Context(), tenantID, requestTypeID)
	} else {
		configs, err = s.manager.ListByTenant(r.Context(), tenantID)
	}
	if err != nil {
		respondManagerError(w, r, "failed to list configurations", err)
		return
	}

	if configs == nil {
		configs = []*configuration.WorkflowConfiguration{}
	}
	respondJSON(w, http.StatusOK, ConfigurationsListResponse{Configurations: configs})
}

// Create configuration handler
func (s *Server) handleCreateConfiguration(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")

	var req configuration.CreateInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	cfg, err := s.manager.Create(r.Context(), tenantID, userID(r), req)
	if err != nil {
		respondManagerError(w, r, "failed to create configuration", err)
		return
	}

	respondJSON(w, http.StatusCreated, cfg)
}

// Get configuration handler
func (s *Server) handleGetConfiguration(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	id := chi.URLParam(r, "configurationId")

	cfg, err := s.manager.Get(r.Context(), tenantID, id)
	if err != nil {
		respondManagerError(w, r, "failed to get configuration", err)
		return
	}
	if cfg == nil {
		respondError(w, http.StatusNotFound, "configuration not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, cfg)
}

// Update configuration handler. Only the fields present in the body change.
func (s *Server) handleUpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	id := chi.URLParam(r, "configurationId")

	var req configuration.UpdateInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	cfg, err := s.manager.Update(r.Context(), tenantID, id, userID(r), req)
	if err != nil {
		respondManagerError(w, r, "failed to update configuration", err)
		return
	}
	if cfg == nil {
		respondError(w, http.StatusNotFound, "configuration not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, cfg)
}

// Delete configuration handler
func (s *Server) handleDeleteConfiguration(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	id := chi.URLParam(r, "configurationId")

	deleted, err := s.manager.Delete(r.Context(), tenantID, id, userID(r))
	if err != nil {
		respondManagerError(w, r, "failed to delete configuration", err)
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "configuration not found", nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type transitionFunc func(ctx context.Context, tenantID, id, userID string) (bool, error)

// handleTransition serves activate, deactivate, publish and archive
func (s *Server) handleTransition(transition transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantId")
		id := chi.URLParam(r, "configurationId")

		ok, err := transition(r.Context(), tenantID, id, userID(r))
		if err != nil {
			respondManagerError(w, r, "transition failed", err)
			return
		}
		if !ok {
			respondError(w, http.StatusNotFound, "configuration not found", nil)
			return
		}

		respondJSON(w, http.StatusOK, SuccessResponse{Success: true})
	}
}

type copyFunc func(ctx context.Context, tenantID, id, userID string) (*configuration.WorkflowConfiguration, error)

// handleCopy serves clone and new version
func (s *Server) handleCopy(copyConfiguration copyFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantId")
		id := chi.URLParam(r, "configurationId")

		cfg, err := copyConfiguration(r.Context(), tenantID, id, userID(r))
		if err != nil {
			respondManagerError(w, r, "failed to copy configuration", err)
			return
		}
		if cfg == nil {
			respondError(w, http.StatusNotFound, "configuration not found", nil)
			return
		}

		respondJSON(w, http.StatusCreated, cfg)
	}
}

// Select active configuration handler
func (s *Server) handleSelectConfiguration(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")

	var req SelectRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if strings.TrimSpace(req.RequestTypeID) == "" {
		respondError(w, http.StatusBadRequest, "requestTypeId is required", nil)
		return
	}

	cfg, err := s.manager.SelectActiveConfiguration(r.Context(), tenantID, req.RequestTypeID, req.Data)
	if err != nil {
		respondManagerError(w, r, "selection failed", err)
		return
	}

	respondJSON(w, http.StatusOK, SelectResponse{Matched: cfg != nil, Configuration: cfg})
}

// List compatible configurations handler
func (s *Server) handleListCompatible(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")

	var req DataRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	configs, err := s.manager.ListCompatible(r.Context(), tenantID, req.Data)
	if err != nil {
		respondManagerError(w, r, "failed to list compatible configurations", err)
		return
	}

	respondJSON(w, http.StatusOK, ConfigurationsListResponse{Configurations: configs})
}

// Evaluate the rules of a stored configuration
func (s *Server) handleEvaluateConfiguration(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	id := chi.URLParam(r, "configurationId")

	var req DataRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	startTime := time.Now()
	result, err := s.manager.EvaluateRules(r.Context(), tenantID, id, req.Data)
	if err != nil {
		respondManagerError(w, r, "evaluation failed", err)
		return
	}
	if result == nil {
		respondError(w, http.StatusNotFound, "configuration not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, EvaluateRulesResponse{
		Result:         *result,
		EvaluationTime: time.Since(startTime).String(),
	})
}

type checkFunc func(ctx context.Context, tenantID, id string, data map[string]any) (bool, error)

// handleCheckConditions serves the start and completion condition checks.
// A missing configuration reports matched=false.
func (s *Server) handleCheckConditions(check checkFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantId")
		id := chi.URLParam(r, "configurationId")

		var req DataRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body", err)
			return
		}

		matched, err := check(r.Context(), tenantID, id, req.Data)
		if err != nil {
			respondManagerError(w, r, "condition check failed", err)
			return
		}

		respondJSON(w, http.StatusOK, ConditionCheckResponse{Matched: matched})
	}
}

// Evaluate ad-hoc rules handler
func (s *Server) handleEvaluateRules(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRulesRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Data == nil {
		respondError(w, http.StatusBadRequest, "data is required", nil)
		return
	}

	startTime := time.Now()
	result := rules.EvaluateRules(req.Rules, req.Data)

	respondJSON(w, http.StatusOK, EvaluateRulesResponse{
		Result:         result,
		EvaluationTime: time.Since(startTime).String(),
	})
}

// Validate rules and conditions handler
func (s *Server) handleValidateRules(w http.ResponseWriter, r *http.Request) {
	var req ValidateRulesRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	resp := ValidateRulesResponse{
		Valid:      true,
		Rules:      make([]ItemValidation, 0, len(req.Rules)),
		Conditions: make([]ItemValidation, 0, len(req.Conditions)),
	}
	for i, rule := range req.Rules {
		item := itemValidation(i, append(rules.RuleProblems(rule), rules.OperandProblems(rule.Operator, rule.Value)...))
		resp.Valid = resp.Valid && item.Valid
		resp.Rules = append(resp.Rules, item)
	}
	for i, c := range req.Conditions {
		item := itemValidation(i, append(rules.ConditionProblems(c), rules.OperandProblems(c.Operator, c.Value)...))
		resp.Valid = resp.Valid && item.Valid
		resp.Conditions = append(resp.Conditions, item)
	}

	respondJSON(w, http.StatusOK, resp)
}

func itemValidation(index int, problems []string) ItemValidation {
	if problems == nil {
		problems = []string{}
	}
	return ItemValidation{Index: index, Valid: len(problems) == 0, Problems: problems}
}

// Helper functions

func userID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(UserHeader)); id != "" {
		return id
	}
	return anonymousUser
}

// decodeJSON decodes the request body into dest. An empty body leaves dest untouched.
func decodeJSON(r *http.Request, dest any) error {
	err := json.NewDecoder(r.Body).Decode(dest)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// respondManagerError maps manager errors onto HTTP statuses
func respondManagerError(w http.ResponseWriter, r *http.Request, message string, err error) {
	var validationErr *configuration.ValidationError
	switch {
	case errors.As(err, &validationErr):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:    "invalid configuration",
			Problems: validationErr.Errors,
		})
		logger.CountHTTPStatus(http.StatusBadRequest)
	case errors.Is(err, configuration.ErrUnknownRequestType):
		respondError(w, http.StatusBadRequest, "unknown request type", err)
	case errors.Is(err, configuration.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "invalid state transition", err)
	case errors.Is(err, configuration.ErrNotFound):
		respondError(w, http.StatusNotFound, "configuration not found", nil)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		respondError(w, http.StatusServiceUnavailable, "request cancelled", err)
	default:
		logger.Error(message, "request_id", middleware.GetReqID(r.Context()), "error", err)
		respondError(w, http.StatusInternalServerError, message, err)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	logger.CountHTTPStatus(status)
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}
