package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/failure-kb/internal/model"
	"github.com/sells-group/failure-kb/internal/store"
)

const maxBodySize = 1 << 20

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, envelope{Success: false, Message: fmt.Sprintf(format, args...)})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return false
	}
	return true
}

// pathParam returns a decoded URL parameter. chi leaves escapes such as %2F
// in place when the raw path differs from the decoded one.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTestCaseHistory(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	doc := s.store.GetTestCaseHistory(name)
	if doc == nil {
		writeError(w, http.StatusNotFound, "No failure history found for test case: %s", name)
		return
	}
	writeData(w, http.StatusOK, doc)
}

func (s *Server) handleTesterNotes(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	activity := s.store.TesterActivity(name)
	if activity == nil {
		writeError(w, http.StatusNotFound, "No failure history found for test case: %s", name)
		return
	}
	writeData(w, http.StatusOK, activity)
}

type bugStatusRequest struct {
	IsBug        *bool  `json:"is_bug"`
	Notes        string `json:"notes"`
	FailureIndex int    `json:"failure_index"`
}

func (s *Server) handleUpdateBugStatus(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")

	var req bugStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.IsBug == nil {
		writeError(w, http.StatusBadRequest, "is_bug is required")
		return
	}

	s.writeMu.Lock()
	ok, err := s.store.UpdateBugStatus(name, *req.IsBug, req.Notes, req.FailureIndex)
	s.writeMu.Unlock()

	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update bug status for %s: %v", name, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Failed to update bug status for %s: test case or failure index %d not found", name, req.FailureIndex)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: fmt.Sprintf("Bug status updated for %s: %s", name, model.ClassificationFor(*req.IsBug)),
	})
}

func (s *Server) handleFailureHistory(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	found, err := s.store.GetFailureHistory(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	if found == nil {
		writeError(w, http.StatusNotFound, "No failure found with id: %s", id)
		return
	}
	writeData(w, http.StatusOK, found)
}

func (s *Server) handleSaveAnalysis(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var analysis json.RawMessage
	if !decodeBody(w, r, &analysis) {
		return
	}
	if len(analysis) == 0 {
		writeError(w, http.StatusBadRequest, "analysis body is required")
		return
	}

	s.writeMu.Lock()
	path, err := s.store.SaveAnalysis(id, analysis)
	s.writeMu.Unlock()

	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save analysis for %s: %v", id, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]string{"failure_id": id, "path": path})
}

func (s *Server) handleSaveFailure(w http.ResponseWriter, r *http.Request) {
	var obs model.FailureObservation
	if !decodeBody(w, r, &obs) {
		return
	}

	s.writeMu.Lock()
	res, err := s.store.Merge(obs)
	s.writeMu.Unlock()

	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save failure %s: %v", res.FailureID, err)
		return
	}
	status := http.StatusOK
	if res.Outcome == store.OutcomeNew {
		status = http.StatusCreated
	}
	writeData(w, status, res)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	matches, err := s.store.FindSimilar(q.Get("testCase"), q.Get("error"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeData(w, http.StatusOK, matches)
}

func (s *Server) handleFailureStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.store.FailureStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

func (s *Server) handleBugStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.store.BugStatistics()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

type harvestRequest struct {
	ProjectIDs []string `json:"project_ids"`
}

func (s *Server) handleHarvest(w http.ResponseWriter, r *http.Request) {
	if s.harvester == nil {
		writeError(w, http.StatusServiceUnavailable, "harvesting is not configured")
		return
	}

	var req harvestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s.writeMu.Lock()
	summary, err := s.harvester.Run(r.Context(), req.ProjectIDs)
	s.writeMu.Unlock()

	if err != nil {
		writeError(w, http.StatusBadGateway, "harvest failed: %v", err)
		return
	}
	writeData(w, http.StatusOK, summary)
}

type cleanupRequest struct {
	DaysOld int `json:"days_old"`
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	req := cleanupRequest{DaysOld: s.retentionDays}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.DaysOld < 0 {
		writeError(w, http.StatusBadRequest, "days_old must not be negative")
		return
	}

	s.writeMu.Lock()
	removed, err := s.store.CleanupOld(req.DaysOld)
	s.writeMu.Unlock()

	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeData(w, http.StatusOK, map[string]int{"removed": removed, "days_old": req.DaysOld})
}

func (s *Server) handleWipe(w http.ResponseWriter, _ *http.Request) {
	s.writeMu.Lock()
	report := s.store.Wipe()
	s.writeMu.Unlock()

	status := http.StatusOK
	if !report.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, report)
}
