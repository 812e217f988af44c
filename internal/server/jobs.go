package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/arandu-labs/arandu/internal/logfields"
	"github.com/arandu-labs/arandu/internal/observability"
	"github.com/arandu-labs/arandu/internal/queue"
	"github.com/arandu-labs/arandu/internal/store"
)

// CreateJobRequest is the reproduction submission body.
type CreateJobRequest struct {
	RepoURL    string `json:"repo_url"`
	ArxivID    string `json:"arxiv_id,omitempty"`
	RunCommand string `json:"run_command,omitempty"`
}

// JobResponse is the serialised job record.
type JobResponse struct {
	ID                  string          `json:"id"`
	RepoURL             string          `json:"repo_url"`
	ArxivID             string          `json:"arxiv_id,omitempty"`
	RunCommand          string          `json:"run_command,omitempty"`
	Status              string          `json:"status"`
	ErrorMessage        string          `json:"error_message,omitempty"`
	DetectedEnvironment json.RawMessage `json:"detected_environment,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

func jobResponse(job *store.Job) JobResponse {
	resp := JobResponse{
		ID:           job.ID,
		RepoURL:      job.RepoURL,
		ArxivID:      job.ArxivID,
		RunCommand:   job.RunCommand,
		Status:       string(job.Status),
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
	if job.DetectedEnvironment != "" {
		resp.DetectedEnvironment = json.RawMessage(job.DetectedEnvironment)
	}
	return resp
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.RepoURL == "" {
		writeError(w, http.StatusBadRequest, "repo_url is required", "")
		return
	}

	job, err := s.store.CreateJob(r.Context(), req.RepoURL, req.ArxivID, req.RunCommand)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create job", err.Error())
		return
	}

	// Enqueue after commit: a job row without a queue item must not stay
	// pending forever, so enqueue failure marks it failed immediately.
	if err := s.queue.Enqueue(r.Context(), queue.QueueDefault, job.ID); err != nil {
		observability.ErrorContext(r.Context(), "enqueue job failed",
			logfields.JobID(job.ID), logfields.Error(err))
		if dbErr := s.store.MarkJobFailed(r.Context(), job.ID, "Unexpected error: failed to enqueue job"); dbErr != nil {
			observability.ErrorContext(r.Context(), "mark job failed after enqueue error", logfields.Error(dbErr))
		}
		writeError(w, http.StatusInternalServerError, "failed to enqueue job", "")
		return
	}

	writeJSON(w, http.StatusCreated, jobResponse(job))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetJob(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found", "")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load job", err.Error())
		return
	}

	resp := map[string]any{"job": jobResponse(job)}
	if run, err := s.store.GetRunByJobID(r.Context(), job.ID); err == nil {
		resp["run"] = map[string]any{
			"exit_code":        run.ExitCode,
			"stdout_preview":   run.StdoutPreview,
			"stderr_preview":   run.StderrPreview,
			"duration_seconds": run.DurationSeconds,
			"started_at":       run.StartedAt,
			"completed_at":     run.CompletedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetJob(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found", "")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load job", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":            job.ID,
		"status":        job.Status,
		"error_message": job.ErrorMessage,
		"updated_at":    job.UpdatedAt,
	})
}

// ArtifactResponse is one artifact row with its download location.
type ArtifactResponse struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Format      string `json:"format"`
	ContentSize int64  `json:"content_size"`
	DownloadURL string `json:"download_url"`
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if _, err := s.store.GetJob(r.Context(), jobID); errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found", "")
		return
	}

	artifacts, err := s.store.ListArtifacts(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list artifacts", err.Error())
		return
	}

	out := make([]ArtifactResponse, 0, len(artifacts))
	for _, a := range artifacts {
		out = append(out, ArtifactResponse{
			ID:          a.ID,
			Type:        string(a.Type),
			Format:      a.Format,
			ContentSize: a.ContentSize,
			DownloadURL: s.cfg.Server.APIBaseURL + "/jobs/" + jobID + "/artifacts/" + string(a.Type),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"artifacts": out})
}

var artifactContentTypes = map[string]string{
	"markdown": "text/markdown; charset=utf-8",
	"ipynb":    "application/x-ipynb+json",
}

func (s *Server) handleDownloadArtifact(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	artifactType := r.PathValue("type")

	artifacts, err := s.store.ListArtifacts(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list artifacts", err.Error())
		return
	}
	for _, a := range artifacts {
		if string(a.Type) != artifactType {
			continue
		}
		content, err := os.ReadFile(a.ContentPath)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read artifact", err.Error())
			return
		}
		contentType := artifactContentTypes[a.Format]
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", "attachment; filename="+filepath.Base(a.ContentPath))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
		return
	}
	writeError(w, http.StatusNotFound, "artifact not found", "")
}
