package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/homewise/homewise-core/internal/device"
	"github.com/homewise/homewise-core/internal/dispatch"
)

// handleListDevices returns all devices, optionally filtered by room
// and/or type query parameters.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	room := device.Room(r.URL.Query().Get("room"))
	deviceType := device.DeviceType(r.URL.Query().Get("type"))

	devices := s.devices.Filter(room, deviceType)
	writeSuccess(w, http.StatusOK, "devices", map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := s.devices.Get(id)
	if err != nil {
		writeNotFound(w, "device not found")
		return
	}
	writeSuccess(w, http.StatusOK, "device", d)
}

// handleDeviceStats returns aggregate device counts.
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, "device stats", s.devices.Stats())
}

// createDeviceRequest is the request body for POST /devices.
type createDeviceRequest struct {
	ID         string            `json:"id,omitempty"`
	Name       string            `json:"name"`
	Type       device.DeviceType `json:"type"`
	Room       device.Room       `json:"room"`
	Status     device.Status     `json:"status,omitempty"`
	Properties device.Properties `json:"properties,omitempty"`
}

// handleCreateDevice registers a new device.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	created, err := s.devices.CreateDevice(r.Context(), &device.Device{
		ID:         req.ID,
		Name:       req.Name,
		Type:       req.Type,
		Room:       req.Room,
		Status:     req.Status,
		Properties: req.Properties,
	})
	if err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceExists):
			writeConflict(w, "device already exists")
		case errors.Is(err, device.ErrInvalidName),
			errors.Is(err, device.ErrInvalidDeviceType),
			errors.Is(err, device.ErrInvalidRoom),
			errors.Is(err, device.ErrInvalidStatus),
			errors.Is(err, device.ErrInvalidDevice):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Error("create device failed", "error", err)
			writeInternalError(w, "failed to create device")
		}
		return
	}

	writeSuccess(w, http.StatusCreated, "device created", created)
}

// updateDeviceRequest is the request body for PATCH /devices/{id}.
// Only metadata changes here; state goes through PUT /devices/{id}/state.
type updateDeviceRequest struct {
	Name string            `json:"name,omitempty"`
	Type device.DeviceType `json:"type,omitempty"`
	Room device.Room       `json:"room,omitempty"`
}

// handleUpdateDevice changes a device's metadata.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	updated, err := s.devices.UpdateDevice(r.Context(), id, req.Name, req.Type, req.Room)
	if err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceNotFound):
			writeNotFound(w, "device not found")
		case errors.Is(err, device.ErrInvalidName),
			errors.Is(err, device.ErrInvalidDeviceType),
			errors.Is(err, device.ErrInvalidRoom):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Error("update device failed", "device_id", id, "error", err)
			writeInternalError(w, "failed to update device")
		}
		return
	}

	writeSuccess(w, http.StatusOK, "device updated", updated)
}

// handleDeleteDevice removes a device.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.devices.DeleteDevice(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("delete device failed", "device_id", id, "error", err)
		writeInternalError(w, "failed to delete device")
		return
	}

	writeSuccess(w, http.StatusOK, "device deleted", nil)
}

// applyDeviceUpdateRequest is the request body for PUT /devices/{id}/state.
// Status and property writes are translated into dispatcher actions.
type applyDeviceUpdateRequest struct {
	Status     *device.Status    `json:"status,omitempty"`
	Properties device.Properties `json:"properties,omitempty"`
}

// handleApplyDeviceUpdate mutates a device's state through the dispatcher.
func (s *Server) handleApplyDeviceUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req applyDeviceUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Status == nil && len(req.Properties) == 0 {
		writeBadRequest(w, "status or properties required")
		return
	}

	var actions []dispatch.Action
	if req.Status != nil {
		switch *req.Status {
		case device.StatusOn:
			actions = append(actions, dispatch.Action{DeviceID: id, Operation: dispatch.OpTurnOn})
		case device.StatusOff:
			actions = append(actions, dispatch.Action{DeviceID: id, Operation: dispatch.OpTurnOff})
		default:
			writeBadRequest(w, "status must be on or off")
			return
		}
	}
	for key, value := range req.Properties {
		actions = append(actions, dispatch.Action{
			DeviceID: id, Operation: dispatch.OpSetProperty, Key: key, Value: value,
		})
	}

	batch := s.dispatcher.Dispatch(r.Context(), actions)
	s.writeBatchResult(w, id, batch)
}

// handleToggleDevice flips a device's on/off status.
func (s *Server) handleToggleDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result := s.dispatcher.DispatchOne(r.Context(), dispatch.Action{
		DeviceID: id, Operation: dispatch.OpToggle,
	})
	s.writeBatchResult(w, id, dispatch.BatchResult{Results: []dispatch.Result{result}})
}

// writeBatchResult maps a dispatch outcome onto the response envelope.
// Fully applied batches return the final device state; failures surface
// the per-action results so the caller can see what happened.
func (s *Server) writeBatchResult(w http.ResponseWriter, id string, batch dispatch.BatchResult) {
	if batch.AllApplied() {
		d, err := s.devices.Get(id)
		if err != nil {
			writeInternalError(w, "state applied but device unreadable")
			return
		}
		writeSuccess(w, http.StatusOK, "state applied", map[string]any{
			"device":  d,
			"results": batch.Results,
		})
		return
	}

	status := http.StatusBadRequest
	for _, res := range batch.Results {
		if res.Outcome == dispatch.OutcomeNotFound {
			status = http.StatusNotFound
			break
		}
	}
	writeFailure(w, status, "one or more actions failed", map[string]any{
		"results": batch.Results,
	})
}
