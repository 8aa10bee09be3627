package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"modelhost/internal/store"
	"modelhost/pkg/types"
)

func toSession(s store.Session) types.Session {
	return types.Session{ID: s.ID, Name: s.Name, CreatedAt: s.CreatedAt.Unix()}
}

// createSession godoc
// @Summary      Create a chat session
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        body  body      types.CreateSessionRequest  true  "Session"
// @Success      201   {object}  types.Session
// @Router       /api/sessions [post]
func (a *api) createSession(w http.ResponseWriter, r *http.Request) {
	var req types.CreateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "New chat"
	}
	s, err := a.catalog.CreateSession(r.Context(), name)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to create session: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toSession(s))
}

// listSessions godoc
// @Summary      List chat sessions, newest first
// @Tags         sessions
// @Produce      json
// @Success      200  {object}  types.SessionsResponse
// @Router       /api/sessions [get]
func (a *api) listSessions(w http.ResponseWriter, r *http.Request) {
	rows, err := a.catalog.Sessions(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to list sessions: "+err.Error())
		return
	}
	out := make([]types.Session, 0, len(rows))
	for _, s := range rows {
		out = append(out, toSession(s))
	}
	writeJSON(w, http.StatusOK, types.SessionsResponse{Sessions: out})
}

// deleteSession godoc
// @Summary      Delete a chat session and its messages
// @Tags         sessions
// @Produce      json
// @Param        id   path      string  true  "Session id"
// @Success      200  {object}  types.MessageResponse
// @Failure      404  {object}  types.ErrorResponse
// @Router       /api/sessions/{id} [delete]
func (a *api) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.catalog.DeleteSession(r.Context(), id); err != nil {
		writeError(w, err, "")
		return
	}
	a.history.Forget(id)
	writeJSON(w, http.StatusOK, types.MessageResponse{Message: "Session deleted successfully"})
}

// loadSession godoc
// @Summary      Load a session's messages into the history cache
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        body  body      types.LoadSessionRequest  true  "Session"
// @Success      200   {object}  types.MessageResponse
// @Router       /api/sessions/cache [post]
func (a *api) loadSession(w http.ResponseWriter, r *http.Request) {
	var req types.LoadSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeJSONError(w, http.StatusBadRequest, "id is required")
		return
	}
	if err := a.history.Load(r.Context(), req.ID); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to load session: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, types.MessageResponse{Message: "Session cache loaded successfully"})
}
