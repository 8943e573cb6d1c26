package api

import (
	"net/http"
	"strconv"

	"github.com/homewise/homewise-core/internal/audit"
)

// handleListActivity returns recent activity entries, most recent first.
// Supports action, entity_type, entity_id, limit, and offset query params.
func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	if s.activityLog == nil {
		writeNotFound(w, "activity log not enabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.activityLog.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing activity", "error", err)
		writeInternalError(w, "failed to list activity")
		return
	}

	writeSuccess(w, http.StatusOK, "activity", result)
}

// recordActivity queues an entry if a recorder is configured.
func (s *Server) recordActivity(entry audit.Entry) {
	if s.activity != nil {
		s.activity.Record(entry)
	}
}
