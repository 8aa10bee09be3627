package httpapi

import (
	"net/http"
	"strings"
	"time"

	"modelhost/internal/common/fsutil"
	"modelhost/internal/modelrt"
	"modelhost/internal/registry"
	"modelhost/internal/session"
	"modelhost/internal/store"
	"modelhost/pkg/types"
)

// listModels godoc
// @Summary      List registered models
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Failure      500  {object}  types.ErrorResponse
// @Router       /api/models [get]
func (a *api) listModels(w http.ResponseWriter, r *http.Request) {
	rows, err := a.catalog.Models(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to retrieve stored models: "+err.Error())
		return
	}
	out := make([]types.Model, 0, len(rows))
	for _, m := range rows {
		out = append(out, types.Model{ID: m.ModelID, Name: m.Name, IsQuantized: m.Quantized, IsUncensored: m.Uncensored})
	}
	writeJSON(w, http.StatusOK, types.ModelsResponse{Models: out})
}

// registerModel godoc
// @Summary      Register a local model directory
// @Tags         models
// @Accept       json
// @Produce      json
// @Param        body  body      types.RegisterModelRequest  true  "Model to register"
// @Success      201   {object}  types.Model
// @Failure      400   {object}  types.ErrorResponse
// @Router       /api/models/register [post]
func (a *api) registerModel(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterModelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ModelID = strings.TrimSpace(req.ModelID)
	if req.ModelID == "" || strings.TrimSpace(req.LocalPath) == "" {
		writeJSONError(w, http.StatusBadRequest, "model_id and local_path are required")
		return
	}
	dir, err := fsutil.ResolveDir(req.LocalPath, false)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid local_path: "+err.Error())
		return
	}
	if _, ok, err := registry.Inspect(dir); err != nil || !ok {
		writeJSONError(w, http.StatusBadRequest, "no .gguf weights in "+dir)
		return
	}
	m := store.Model{ModelID: req.ModelID, Name: req.ModelName, Quantized: req.IsQuantized, Uncensored: req.IsUncensored}
	if err := a.catalog.RegisterModel(r.Context(), m, dir); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to register model: "+err.Error())
		return
	}
	if m.Name == "" {
		m.Name = m.ModelID
	}
	writeJSON(w, http.StatusCreated, types.Model{ID: m.ModelID, Name: m.Name, IsQuantized: m.Quantized, IsUncensored: m.Uncensored})
}

// deleteModel godoc
// @Summary      Delete a registered model
// @Description  Removes the model records. Files on disk are kept.
// @Tags         models
// @Accept       json
// @Produce      json
// @Param        body  body      types.DeleteModelRequest  true  "Model to delete"
// @Success      200   {object}  types.MessageResponse
// @Failure      404   {object}  types.ErrorResponse
// @Router       /api/models/delete [post]
func (a *api) deleteModel(w http.ResponseWriter, r *http.Request) {
	var req types.DeleteModelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ModelID) == "" {
		writeJSONError(w, http.StatusBadRequest, "model_id is required")
		return
	}
	if err := a.catalog.DeleteModel(r.Context(), req.ModelID); err != nil {
		writeError(w, err, req.ModelID)
		return
	}
	writeJSON(w, http.StatusOK, types.MessageResponse{Message: "Model deleted successfully"})
}

// storageStatuses godoc
// @Summary      Storage status of every model
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.ModelStorageStatusResponse
// @Router       /api/models/status [get]
func (a *api) storageStatuses(w http.ResponseWriter, r *http.Request) {
	rows, err := a.catalog.StorageStatuses(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to retrieve model statuses: "+err.Error())
		return
	}
	out := make([]types.ModelStorageStatus, 0, len(rows))
	for _, s := range rows {
		out = append(out, types.ModelStorageStatus{ModelID: s.ModelID, Status: s.Status, Progress: s.Progress, LocalPath: s.LocalPath})
	}
	writeJSON(w, http.StatusOK, types.ModelStorageStatusResponse{Models: out})
}

// loadModel godoc
// @Summary      Make a model the active model
// @Description  Schedules the load and returns immediately. Poll /api/models/load/status.
// @Tags         models
// @Accept       json
// @Produce      json
// @Param        body  body      types.LoadModelRequest  true  "Model to load"
// @Success      202   {object}  types.LoadModelResponse
// @Failure      400   {object}  types.ErrorResponse
// @Failure      503   {object}  types.ErrorResponse
// @Router       /api/models/load [post]
func (a *api) loadModel(w http.ResponseWriter, r *http.Request) {
	var req types.LoadModelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	precision, err := modelrt.ParsePrecision(req.Precision)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	opID, err := a.models.RequestLoad(strings.TrimSpace(req.ModelID), precision)
	if err != nil {
		writeError(w, err, req.ModelID)
		return
	}
	writeJSON(w, http.StatusAccepted, types.LoadModelResponse{ModelID: req.ModelID, Status: "loading", OpID: opID})
}

// loadStatuses godoc
// @Summary      Load state of every model seen so far
// @Tags         models
// @Produce      json
// @Success      200  {array}  types.ModelLoadStatus
// @Router       /api/models/load/status [get]
func (a *api) loadStatuses(w http.ResponseWriter, r *http.Request) {
	out := a.models.LoadStatuses()
	if out == nil {
		out = []types.ModelLoadStatus{}
	}
	writeJSON(w, http.StatusOK, out)
}

// infer godoc
// @Summary      Run inference on the active model
// @Tags         models
// @Accept       json
// @Produce      json
// @Param        body  body      types.InferRequest  true  "Prompt"
// @Success      200   {object}  types.InferResponse
// @Failure      400   {object}  types.ErrorResponse
// @Failure      409   {object}  types.ErrorResponse  "model not loaded"
// @Failure      429   {object}  types.ErrorResponse  "too busy"
// @Failure      502   {object}  types.ErrorResponse  "inference failed"
// @Router       /api/models/infer [post]
func (a *api) infer(w http.ResponseWriter, r *http.Request) {
	var req types.InferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if strings.TrimSpace(req.ModelID) == "" {
		writeJSONError(w, http.StatusBadRequest, "model_id is required")
		return
	}

	// Shutdown cancels in-flight generations too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	start := time.Now()
	text, err := a.models.Infer(ctx, req)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		status := writeError(w, err, req.ModelID)
		if requestLogLevel(r) >= LevelDebug {
			logger().Debug().Str("model", req.ModelID).Str("mode", req.Mode).Int("status", status).
				Dur("dur", time.Since(start)).Err(err).Msg("infer failed")
		}
		return
	}
	if requestLogLevel(r) >= LevelDebug {
		logger().Debug().Str("model", req.ModelID).Str("mode", req.Mode).Int("chars", len(text)).
			Dur("dur", time.Since(start)).Msg("infer done")
	}
	writeJSON(w, http.StatusOK, types.InferResponse{Message: text})
}

// clearCache godoc
// @Summary      Clear cached chat history of a session
// @Description  Persisted messages are kept.
// @Tags         history
// @Accept       json
// @Produce      json
// @Param        body  body      types.SessionCacheRequest  true  "Session"
// @Success      200   {object}  types.MessageResponse
// @Router       /api/models/clear [post]
func (a *api) clearCache(w http.ResponseWriter, r *http.Request) {
	var req types.SessionCacheRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	a.history.Clear(req.SessionID, req.ModelID, req.ShareContext)
	writeJSON(w, http.StatusOK, types.MessageResponse{Message: "Session cache cleared successfully"})
}

// chatHistory godoc
// @Summary      Cached chat history of a session
// @Tags         history
// @Accept       json
// @Produce      json
// @Param        body  body      types.SessionCacheRequest  true  "Session"
// @Success      200   {object}  types.HistoryResponse
// @Router       /api/models/history [post]
func (a *api) chatHistory(w http.ResponseWriter, r *http.Request) {
	var req types.SessionCacheRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	entries := a.history.History(req.SessionID, req.ModelID, req.ShareContext)
	writeJSON(w, http.StatusOK, types.HistoryResponse{Messages: historyEntries(entries)})
}

func historyEntries(entries []session.Entry) []types.HistoryEntry {
	out := make([]types.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		name := e.Name
		if name == "" {
			name = e.ModelID
		}
		out = append(out, types.HistoryEntry{
			Name:      name,
			Message:   types.ChatMessage{Role: e.Turn.Role, Content: e.Turn.Content},
			Timestamp: e.Timestamp.Local().Format(time.RFC3339),
		})
	}
	return out
}
