package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/homewise/homewise-core/internal/dispatch"
	"github.com/homewise/homewise-core/internal/scene"
)

// handleListScenes returns all scenes.
func (s *Server) handleListScenes(w http.ResponseWriter, _ *http.Request) {
	scenes := s.scenes.List()
	writeSuccess(w, http.StatusOK, "scenes", map[string]any{
		"scenes": scenes,
		"count":  len(scenes),
	})
}

// handleGetScene returns a single scene by ID.
func (s *Server) handleGetScene(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sc, err := s.scenes.Get(id)
	if err != nil {
		writeNotFound(w, "scene not found")
		return
	}
	writeSuccess(w, http.StatusOK, "scene", sc)
}

// sceneRequest is the request body for creating and updating scenes.
type sceneRequest struct {
	Name    string            `json:"name"`
	Actions []dispatch.Action `json:"actions"`
}

// handleCreateScene creates a new scene.
func (s *Server) handleCreateScene(w http.ResponseWriter, r *http.Request) {
	var req sceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	created, err := s.scenes.Create(r.Context(), &scene.Scene{
		Name:    req.Name,
		Actions: req.Actions,
	})
	if err != nil {
		s.writeSceneError(w, err, "create scene failed")
		return
	}

	writeSuccess(w, http.StatusCreated, "scene created", created)
}

// handleUpdateScene replaces a scene's name and actions.
func (s *Server) handleUpdateScene(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.scenes.Get(id)
	if err != nil {
		writeNotFound(w, "scene not found")
		return
	}

	var req sceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	name := existing.Name
	if req.Name != "" {
		name = req.Name
	}
	actions := existing.Actions
	if req.Actions != nil {
		actions = req.Actions
	}

	updated, err := s.scenes.Update(r.Context(), &scene.Scene{
		ID:      id,
		Name:    name,
		Actions: actions,
	})
	if err != nil {
		s.writeSceneError(w, err, "update scene failed")
		return
	}

	writeSuccess(w, http.StatusOK, "scene updated", updated)
}

// handleDeleteScene removes a scene.
func (s *Server) handleDeleteScene(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.scenes.Delete(r.Context(), id); err != nil {
		s.writeSceneError(w, err, "delete scene failed")
		return
	}

	writeSuccess(w, http.StatusOK, "scene deleted", nil)
}

// handleExecuteScene dispatches a scene's actions as one batch.
// success reflects whether every action applied; the payload always
// carries the per-action results.
func (s *Server) handleExecuteScene(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	batch, err := s.sceneExec.Execute(r.Context(), id)
	if err != nil {
		if errors.Is(err, scene.ErrSceneNotFound) {
			writeNotFound(w, "scene not found")
			return
		}
		s.logger.Error("execute scene failed", "scene_id", id, "error", err)
		writeInternalError(w, "failed to execute scene")
		return
	}

	payload := map[string]any{
		"results": batch.Results,
		"applied": batch.AppliedCount(),
		"total":   len(batch.Results),
	}
	if batch.AllApplied() {
		writeSuccess(w, http.StatusOK, "scene executed", payload)
		return
	}
	writeFailure(w, http.StatusOK, "scene executed with failures", payload)
}

// writeSceneError maps scene errors onto the envelope.
func (s *Server) writeSceneError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, scene.ErrSceneNotFound):
		writeNotFound(w, "scene not found")
	case errors.Is(err, scene.ErrSceneExists):
		writeConflict(w, "scene already exists")
	case errors.Is(err, scene.ErrInvalidScene):
		writeBadRequest(w, err.Error())
	default:
		s.logger.Error(logMsg, "error", err)
		writeInternalError(w, "scene operation failed")
	}
}
