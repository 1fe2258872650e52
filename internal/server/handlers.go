package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"faultline/internal/bootstrap/logging"
	"faultline/internal/broadcast"
	"faultline/internal/domain/crash"
	domainissue "faultline/internal/domain/issue"
	"faultline/internal/errs"
	"faultline/internal/ports"
	"faultline/internal/usecase/intake"
)

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

type batchItemResponse struct {
	Index  int                   `json:"index"`
	Result *intake.CaptureResult `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

type batchResponse struct {
	Results []batchItemResponse `json:"results"`
}

type assignRequest struct {
	Assignee string `json:"assignee"`
}

// artifactResponse is the metadata projection of a stored artifact; the
// content blob never leaves the store over this surface.
type artifactResponse struct {
	ArtifactID        uint64 `json:"artifact_id"`
	ProjectID         string `json:"project_id"`
	Release           string `json:"release"`
	Name              string `json:"name"`
	SHA256            string `json:"sha256"`
	Type              string `json:"type"`
	Size              int64  `json:"size"`
	HasSourcesContent bool   `json:"has_sources_content"`
	UploadedAt        string `json:"uploaded_at"`
	LastAccessedAt    string `json:"last_accessed_at,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")

	raw, err := readBody(w, r, s.cfg.MaxBodyBytes)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	var input crash.Input
	if err := json.Unmarshal(raw, &input); err != nil {
		writeError(w, http.StatusBadRequest, "malformed json body: "+err.Error())
		return
	}

	res, err := s.svc.Capture(r.Context(), project, input)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func (s *Server) handleCaptureBatch(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")

	raw, err := readBody(w, r, s.cfg.MaxBodyBytes)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	var inputs []crash.Input
	if err := json.Unmarshal(raw, &inputs); err != nil {
		writeError(w, http.StatusBadRequest, "malformed json body: "+err.Error())
		return
	}

	results, err := s.svc.CaptureBatch(r.Context(), project, inputs)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	out := batchResponse{Results: make([]batchItemResponse, 0, len(results))}
	for _, item := range results {
		slot := batchItemResponse{Index: item.Index}
		if item.Err != nil {
			slot.Error = item.Err.Error()
		} else {
			res := item.Result
			slot.Result = &res
		}
		out.Results = append(out.Results, slot)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUploadArtifact(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	release := strings.TrimSpace(r.URL.Query().Get("release"))
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if release == "" || name == "" {
		writeError(w, http.StatusBadRequest, "release and name query parameters are required")
		return
	}

	content, err := readBody(w, r, s.cfg.MaxBodyBytes)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	if len(content) == 0 {
		writeError(w, http.StatusBadRequest, "artifact content is empty")
		return
	}

	ref, err := s.svc.UploadArtifact(r.Context(), intake.UploadArtifactInput{
		ProjectID: project,
		Release:   release,
		Name:      name,
		Content:   content,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if ref.Deduplicated {
		status = http.StatusOK
	}
	writeJSON(w, status, ref)
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	artifactID, ok := idParam(w, r, "artifactID", "artifact not found")
	if !ok {
		return
	}

	stored, err := s.svc.GetArtifact(r.Context(), project, artifactID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toArtifactResponse(stored))
}

func (s *Server) handleDeleteArtifact(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	artifactID, ok := idParam(w, r, "artifactID", "artifact not found")
	if !ok {
		return
	}

	if err := s.svc.DeleteArtifact(r.Context(), project, artifactID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListIssues(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	q := r.URL.Query()

	limit, ok := limitParam(w, q.Get("limit"))
	if !ok {
		return
	}

	items, err := s.svc.ListIssues(r.Context(), intake.ListIssuesInput{
		ProjectID: project,
		Status:    strings.TrimSpace(q.Get("status")),
		Assignee:  strings.TrimSpace(q.Get("assignee")),
		Limit:     limit,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	issueID, ok := idParam(w, r, "issueID", "issue not found")
	if !ok {
		return
	}

	detail, err := s.svc.GetIssue(r.Context(), project, issueID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleResolveIssue(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.svc.ResolveIssue)
}

func (s *Server) handleUnresolveIssue(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.svc.UnresolveIssue)
}

func (s *Server) handleIgnoreIssue(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.svc.IgnoreIssue)
}

func (s *Server) handleTransition(
	w http.ResponseWriter,
	r *http.Request,
	action func(context.Context, string, uint64) (intake.IssueItem, error),
) {
	project := chi.URLParam(r, "project")
	issueID, ok := idParam(w, r, "issueID", "issue not found")
	if !ok {
		return
	}

	item, err := action(r.Context(), project, issueID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleAssignIssue(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	issueID, ok := idParam(w, r, "issueID", "issue not found")
	if !ok {
		return
	}

	raw, err := readBody(w, r, s.cfg.MaxBodyBytes)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	var req assignRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed json body: "+err.Error())
		return
	}

	item, err := s.svc.AssignIssue(r.Context(), project, issueID, req.Assignee)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteIssue(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	issueID, ok := idParam(w, r, "issueID", "issue not found")
	if !ok {
		return
	}

	if err := s.svc.DeleteIssue(r.Context(), project, issueID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListReleases(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")

	limit, ok := limitParam(w, r.URL.Query().Get("limit"))
	if !ok {
		return
	}

	items, err := s.svc.ListReleases(r.Context(), project, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetRelease(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	version := chi.URLParam(r, "version")

	item, err := s.svc.GetRelease(r.Context(), project, version)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// writeServiceError maps pipeline errors onto the HTTP taxonomy: input
// rejections are 4xx, lost upsert races are 503 with Retry-After, and
// everything else is an opaque 500 that only the log explains.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, intake.ErrPayloadTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case intake.IsValidationError(err),
		errors.Is(err, intake.ErrBatchSizeExceeded),
		errors.Is(err, domainissue.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ports.ErrIssueNotFound),
		errors.Is(err, ports.ErrArtifactNotFound),
		errors.Is(err, ports.ErrReleaseNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, intake.ErrConflictRetryExhausted),
		errors.Is(err, broadcast.ErrRegistryClosed):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logging.Error(r.Context(), "request failed", slog.Any("err", errs.Loggable(err)))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// idParam parses a numeric path id. A non-numeric id names nothing, so it
// reads as the same 404 an absent row gets.
func idParam(w http.ResponseWriter, r *http.Request, name string, notFound string) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusNotFound, notFound)
		return 0, false
	}
	return id, true
}

func limitParam(w http.ResponseWriter, raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}

func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	body := http.MaxBytesReader(w, r.Body, limit)
	defer body.Close()
	return io.ReadAll(body)
}

func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	writeError(w, http.StatusBadRequest, "unreadable request body")
}

func toArtifactResponse(stored ports.Artifact) artifactResponse {
	out := artifactResponse{
		ArtifactID:        stored.ArtifactID,
		ProjectID:         stored.ProjectID,
		Release:           stored.Release,
		Name:              stored.Name,
		SHA256:            stored.SHA256,
		Type:              stored.Type,
		Size:              stored.Size,
		HasSourcesContent: stored.HasSourcesContent,
		UploadedAt:        stored.UploadedAt,
	}
	if stored.LastAccessedAt != nil {
		out.LastAccessedAt = *stored.LastAccessedAt
	}
	return out
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
