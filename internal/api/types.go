package api

// SetupRequest is the JSON body for POST /jobs.
type SetupRequest struct {
	// JobID is optional. When empty the server mints one.
	JobID       string `json:"job_id,omitempty"`
	ToolID      string `json:"tool_id"`
	ToolVersion string `json:"tool_version,omitempty"`
}

// SetupResponse is returned on successful job setup.
type SetupResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// LaunchRequest is the JSON body for POST /jobs/{job_id}/launch.
type LaunchRequest struct {
	CommandLine  string            `json:"command_line"`
	SubmitParams map[string]string `json:"submit_params,omitempty"`
}

// JobStatusResponse is returned by GET /jobs/{job_id}.
type JobStatusResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	// ReturnCode is present only once the job is complete.
	ReturnCode *int `json:"return_code,omitempty"`
}

// UploadResponse is returned after a staged file upload.
type UploadResponse struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Digest string `json:"digest"`
}

// OutputResponse carries captured stdout or stderr.
type OutputResponse struct {
	JobID    string `json:"job_id"`
	Contents string `json:"contents"`
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Manager       string `json:"manager"`
}
