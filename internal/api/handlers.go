package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/runstage/runstage/internal/manager"
	"github.com/runstage/runstage/internal/staging"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Manager:       s.config.ManagerKind,
	})
}

// handleSetup handles POST /jobs.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	var req SetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ToolID == "" {
		s.writeError(w, http.StatusBadRequest, "tool_id is required")
		return
	}

	jobID := req.JobID
	if jobID == "" {
		jobID = uuid.New().String()
	}

	if err := s.manager.SetupJob(r.Context(), jobID, req.ToolID, req.ToolVersion); err != nil {
		if errors.Is(err, staging.ErrInvalidJobID) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, fs.ErrExist) {
			s.writeError(w, http.StatusConflict, "job already staged")
			return
		}
		s.logger.Error("job setup failed", "job_id", jobID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "job setup failed")
		return
	}

	s.logger.Info("job staged via API", "job_id", jobID, "tool_id", req.ToolID)
	respondJSON(w, http.StatusCreated, SetupResponse{
		JobID:  jobID,
		Status: string(manager.StatusQueued),
	})
}

// handleLaunch handles POST /jobs/{job_id}/launch.
func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	var req LaunchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CommandLine == "" {
		s.writeError(w, http.StatusBadRequest, "command_line is required")
		return
	}

	if err := s.manager.Launch(r.Context(), jobID, req.CommandLine, req.SubmitParams); err != nil {
		s.writeManagerError(w, jobID, "launch", err)
		return
	}

	// The local backend is already running at this point; report whatever
	// state the backend landed in rather than assuming queued.
	status, err := s.manager.GetStatus(r.Context(), jobID)
	if err != nil {
		s.writeManagerError(w, jobID, "status", err)
		return
	}

	respondJSON(w, http.StatusAccepted, SetupResponse{
		JobID:  jobID,
		Status: string(status),
	})
}

// handleStatus handles GET /jobs/{job_id}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	status, err := s.manager.GetStatus(r.Context(), jobID)
	if err != nil {
		s.writeManagerError(w, jobID, "status", err)
		return
	}

	resp := JobStatusResponse{JobID: jobID, Status: string(status)}
	if status == manager.StatusComplete {
		code, ok, err := s.manager.ReturnCode(r.Context(), jobID)
		if err != nil {
			s.writeManagerError(w, jobID, "return code", err)
			return
		}
		if ok {
			resp.ReturnCode = &code
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleKill handles POST /jobs/{job_id}/kill.
func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := s.manager.Kill(r.Context(), jobID); err != nil {
		s.writeManagerError(w, jobID, "kill", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClean handles DELETE /jobs/{job_id}.
func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := s.manager.Clean(r.Context(), jobID); err != nil {
		s.writeManagerError(w, jobID, "clean", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStdout(w http.ResponseWriter, r *http.Request) {
	s.handleOutput(w, r, s.manager.StdoutContents)
}

func (s *Server) handleStderr(w http.ResponseWriter, r *http.Request) {
	s.handleOutput(w, r, s.manager.StderrContents)
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request, read func(context.Context, string) ([]byte, error)) {
	jobID := chi.URLParam(r, "jobID")
	contents, err := read(r.Context(), jobID)
	if err != nil {
		s.writeManagerError(w, jobID, "output", err)
		return
	}
	respondJSON(w, http.StatusOK, OutputResponse{JobID: jobID, Contents: string(contents)})
}

// handleUpload handles POST /jobs/{job_id}/files/{subarea}?name=<client path>.
// The body is the raw file content, streamed to a temporary file and published
// into place only once complete, so the staged path is never observable
// part-written and stays untouched when an upload dies mid-stream. The
// response carries the staged path and a BLAKE3 digest so clients can verify
// the transfer.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	path, err := s.resolveStagedPath(r, jobID, true)
	if err != nil {
		s.writeStagingError(w, jobID, err)
		return
	}

	hasher := blake3.New()
	body := http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	tmp, err := staging.CopyToTemp(io.TeeReader(body, hasher))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "upload failed: "+err.Error())
		return
	}
	if err := staging.Publish(tmp, path); err != nil {
		os.Remove(tmp)
		s.logger.Error("publish staged file failed", "job_id", jobID, "path", path, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to publish staged file")
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		s.logger.Error("stat staged file failed", "job_id", jobID, "path", path, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to stat staged file")
		return
	}

	s.logger.Info("file staged via API", "job_id", jobID, "path", path, "size", info.Size())
	respondJSON(w, http.StatusCreated, UploadResponse{
		Path:   path,
		Size:   info.Size(),
		Digest: hex.EncodeToString(hasher.Sum(nil)),
	})
}

// handleDownload handles GET /jobs/{job_id}/files/{subarea}?name=<client path>.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	path, err := s.resolveStagedPath(r, jobID, false)
	if err != nil {
		s.writeStagingError(w, jobID, err)
		return
	}

	in, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.writeError(w, http.StatusNotFound, "file not staged")
			return
		}
		s.logger.Error("staged file open failed", "job_id", jobID, "path", path, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to open staged file")
		return
	}
	defer in.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	if _, err := io.Copy(w, in); err != nil {
		s.logger.Error("staged file download interrupted", "job_id", jobID, "path", path, "error", err)
	}
}

// resolveStagedPath maps the request's subarea and name query onto a
// contained path inside the job directory.
func (s *Server) resolveStagedPath(r *http.Request, jobID string, createParents bool) (string, error) {
	name := r.URL.Query().Get("name")
	if name == "" {
		return "", fmt.Errorf("%w: name query parameter is required", errBadStagingRequest)
	}

	subarea := chi.URLParam(r, "subarea")
	accessor, ok := s.subareaAccessor(subarea)
	if !ok {
		return "", fmt.Errorf("%w: unknown subarea %q", errBadStagingRequest, subarea)
	}

	dir, err := accessor(r.Context(), jobID)
	if err != nil {
		return "", err
	}

	// Nested client paths are preserved; containment is enforced by MapPath.
	return staging.MapPath(dir, name, true, createParents)
}

func (s *Server) subareaAccessor(name string) (func(context.Context, string) (string, error), bool) {
	switch name {
	case "working":
		return s.manager.WorkingDirectory, true
	case "inputs":
		return s.manager.InputsDirectory, true
	case "outputs":
		return s.manager.OutputsDirectory, true
	case "configs":
		return s.manager.ConfigsDirectory, true
	case "tool_files":
		return s.manager.ToolFilesDirectory, true
	case "unstructured":
		return s.manager.UnstructuredFilesDirectory, true
	}
	return nil, false
}

var errBadStagingRequest = errors.New("bad staging request")

func (s *Server) writeStagingError(w http.ResponseWriter, jobID string, err error) {
	switch {
	case errors.Is(err, errBadStagingRequest), errors.Is(err, staging.ErrOutsideSandbox):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, manager.ErrJobNotFound):
		s.writeError(w, http.StatusNotFound, "job not found")
	default:
		s.logger.Error("staging path resolution failed", "job_id", jobID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to resolve staged path")
	}
}

func (s *Server) writeManagerError(w http.ResponseWriter, jobID, op string, err error) {
	if errors.Is(err, manager.ErrJobNotFound) {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.logger.Error("manager operation failed", "job_id", jobID, "op", op, "error", err)
	s.writeError(w, http.StatusInternalServerError, op+" failed: "+err.Error())
}

// respondJSON is a helper to write JSON responses.
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
