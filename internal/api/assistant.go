package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/homewise/homewise-core/internal/audit"
)

// commandRequest is the request body for POST /assistant/command.
type commandRequest struct {
	Command string `json:"command"`
}

// handleCommand interprets a natural-language command and dispatches the
// resulting actions. The reply text is always returned; the payload
// carries the per-action results when the command moved any devices.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		writeBadRequest(w, "command is required")
		return
	}

	intent := s.interpreter.Interpret(r.Context(), req.Command)

	payload := map[string]any{
		"matched": intent.Matched,
		"reply":   intent.Reply,
	}

	if len(intent.Actions) > 0 {
		batch := s.dispatcher.Dispatch(r.Context(), intent.Actions)
		payload["results"] = batch.Results
		payload["applied"] = batch.AppliedCount()
		payload["total"] = len(batch.Results)
	}

	subject, _ := r.Context().Value(ctxKeySubject).(string)
	s.recordActivity(audit.Entry{
		Action:     audit.ActionCommand,
		EntityType: audit.EntityAssistant,
		Subject:    subject,
		Source:     "api",
		Details:    map[string]any{"command": req.Command, "matched": intent.Matched},
	})

	writeSuccess(w, http.StatusOK, intent.Reply, payload)
}
