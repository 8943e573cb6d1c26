package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/homewise/homewise-core/internal/automation"
	"github.com/homewise/homewise-core/internal/dispatch"
)

// handleListRules returns all rules in ascending ID order.
func (s *Server) handleListRules(w http.ResponseWriter, _ *http.Request) {
	rules := s.rules.List()
	writeSuccess(w, http.StatusOK, "rules", map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}

// handleGetRule returns a single rule by ID.
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rule, err := s.rules.Get(id)
	if err != nil {
		writeNotFound(w, "rule not found")
		return
	}
	writeSuccess(w, http.StatusOK, "rule", rule)
}

// ruleRequest is the request body for creating and updating rules.
// Enabled is a pointer so an explicit false is distinguishable from an
// omitted field: omitted defaults to true, but a caller-supplied value is
// always respected.
type ruleRequest struct {
	Name    string             `json:"name"`
	Enabled *bool              `json:"enabled,omitempty"`
	Trigger automation.Trigger `json:"trigger"`
	Actions []dispatch.Action  `json:"actions"`
}

// handleCreateRule creates a new automation rule.
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	created, err := s.rules.Create(r.Context(), &automation.Rule{
		Name:    req.Name,
		Enabled: enabled,
		Trigger: req.Trigger,
		Actions: req.Actions,
	})
	if err != nil {
		s.writeRuleError(w, err, "create rule failed")
		return
	}

	writeSuccess(w, http.StatusCreated, "rule created", created)
}

// handleUpdateRule replaces a rule's definition.
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.rules.Get(id)
	if err != nil {
		writeNotFound(w, "rule not found")
		return
	}

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	enabled := existing.Enabled
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	name := existing.Name
	if req.Name != "" {
		name = req.Name
	}
	trigger := existing.Trigger
	if req.Trigger.Kind != "" {
		trigger = req.Trigger
	}
	actions := existing.Actions
	if req.Actions != nil {
		actions = req.Actions
	}

	updated, err := s.rules.Update(r.Context(), &automation.Rule{
		ID:      id,
		Name:    name,
		Enabled: enabled,
		Trigger: trigger,
		Actions: actions,
	})
	if err != nil {
		s.writeRuleError(w, err, "update rule failed")
		return
	}

	writeSuccess(w, http.StatusOK, "rule updated", updated)
}

// toggleRuleRequest is the request body for POST /rules/{id}/toggle.
// Omitting enabled flips the current value.
type toggleRuleRequest struct {
	Enabled *bool `json:"enabled,omitempty"`
}

// handleToggleRule enables or disables a rule.
func (s *Server) handleToggleRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.rules.Get(id)
	if err != nil {
		writeNotFound(w, "rule not found")
		return
	}

	var req toggleRuleRequest
	if r.Body != nil {
		//nolint:errcheck // empty body means flip
		json.NewDecoder(r.Body).Decode(&req)
	}

	enabled := !existing.Enabled
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	updated, err := s.rules.SetEnabled(r.Context(), id, enabled)
	if err != nil {
		s.writeRuleError(w, err, "toggle rule failed")
		return
	}

	writeSuccess(w, http.StatusOK, "rule toggled", updated)
}

// handleDeleteRule removes a rule.
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.rules.Delete(r.Context(), id); err != nil {
		s.writeRuleError(w, err, "delete rule failed")
		return
	}

	writeSuccess(w, http.StatusOK, "rule deleted", nil)
}

// writeRuleError maps automation errors onto the envelope.
func (s *Server) writeRuleError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, automation.ErrRuleNotFound):
		writeNotFound(w, "rule not found")
	case errors.Is(err, automation.ErrRuleExists):
		writeConflict(w, "rule already exists")
	case errors.Is(err, automation.ErrInvalidRule),
		errors.Is(err, automation.ErrInvalidTrigger),
		errors.Is(err, automation.ErrInvalidAction):
		writeBadRequest(w, err.Error())
	default:
		s.logger.Error(logMsg, "error", err)
		writeInternalError(w, "rule operation failed")
	}
}
