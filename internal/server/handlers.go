package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/claude/gymdex/internal/catalog"
	"github.com/claude/gymdex/internal/models"
	"github.com/claude/gymdex/internal/prefs"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ensureStore runs the escalation ladder before store work: healthy
// handle, else reinitialize, else hard reset. Only when the reset also
// fails does the caller see a terminal failure.
func (s *Server) ensureStore(ctx context.Context) error {
	if s.mgr.CheckHealthy(ctx) {
		return nil
	}
	s.log.Warn("training store unhealthy, reinitializing")
	err := s.mgr.Reinitialize(ctx)
	if err == nil {
		return nil
	}
	s.log.Error("reinitialize failed, resetting store", "error", err)
	if err := s.mgr.ResetHard(ctx); err != nil {
		return fmt.Errorf("training store unavailable: %w", err)
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !s.mgr.CheckHealthy(r.Context()) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	var session models.TrainingSession
	if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if session.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	// Fill in what the client is allowed to leave blank.
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now()
	if session.Date.IsZero() {
		session.Date = now
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	for i := range session.Exercises {
		for j := range session.Exercises[i].Sets {
			if session.Exercises[i].Sets[j].ID == "" {
				session.Exercises[i].Sets[j].ID = uuid.NewString()
			}
		}
	}
	if session.Volume == 0 {
		session.Volume = models.ComputeVolume(session.Exercises)
	}

	ctx := r.Context()
	if err := s.ensureStore(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err := s.store.SaveSession(ctx, &session); err != nil {
		s.log.Error("save session failed", "session", session.ID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id parameter required")
		return
	}

	sessions, err := s.store.Sessions(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sessions == nil {
		sessions = []models.TrainingSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.store.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.ensureStore(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err := s.store.DeleteSession(ctx, chi.URLParam(r, "id")); err != nil {
		s.log.Error("delete session failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.UserStats(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListRoutines(w http.ResponseWriter, r *http.Request) {
	routines, err := s.catalog.Routines(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if routines == nil {
		routines = []catalog.Routine{}
	}
	writeJSON(w, http.StatusOK, routines)
}

func (s *Server) handleGetRoutine(w http.ResponseWriter, r *http.Request) {
	routine, err := s.catalog.RoutineByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if routine == nil {
		writeError(w, http.StatusNotFound, "routine not found")
		return
	}
	writeJSON(w, http.StatusOK, routine)
}

func (s *Server) handleCreateRoutine(w http.ResponseWriter, r *http.Request) {
	var routine catalog.Routine
	if err := json.NewDecoder(r.Body).Decode(&routine); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	created, err := s.catalog.CreateRoutine(r.Context(), &routine)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateRoutine(w http.ResponseWriter, r *http.Request) {
	var routine catalog.Routine
	if err := json.NewDecoder(r.Body).Decode(&routine); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	routine.ID = chi.URLParam(r, "id")
	if err := s.catalog.UpdateRoutine(r.Context(), &routine); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, routine)
}

func (s *Server) handleDeleteRoutine(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeleteRoutine(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPrefs(w http.ResponseWriter, r *http.Request) {
	p, err := s.prefs.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePutPrefs(w http.ResponseWriter, r *http.Request) {
	var p prefs.Prefs
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := s.prefs.Save(&p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.ResetHard(r.Context()); err != nil {
		s.log.Error("hard reset failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
