package api

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/zeebo/blake3"

	"github.com/runstage/runstage/internal/api/mocks"
	"github.com/runstage/runstage/internal/manager"
	"github.com/runstage/runstage/internal/staging"
)

func newTestServer(t *testing.T, apiKey string) (*Server, *mocks.MockManager) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mgr := mocks.NewMockManager(ctrl)
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	s := New(Config{Listen: "127.0.0.1:0", APIKey: apiKey, ManagerKind: "local"}, mgr, logger)
	return s, mgr
}

func doRequest(s *Server, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rec, req)
	return rec
}

func TestHealthzNeedsNoAuth(t *testing.T) {
	s, _ := newTestServer(t, "secret")
	rec := doRequest(s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", rec.Code)
	}

	var resp HealthzResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Manager != "local" {
		t.Errorf("healthz = %+v", resp)
	}
}

func TestAuthRejectsMissingAndWrongKey(t *testing.T) {
	s, _ := newTestServer(t, "secret")

	rec := doRequest(s, http.MethodGet, "/jobs/job-1", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing key status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/jobs/job-1", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key status = %d, want 401", rec.Code)
	}
}

func TestAuthAcceptsValidKey(t *testing.T) {
	s, mgr := newTestServer(t, "secret")
	mgr.EXPECT().GetStatus(gomock.Any(), "job-1").Return(manager.StatusQueued, nil)

	req := httptest.NewRequest(http.MethodGet, "/jobs/job-1", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestSetupMintsJobID(t *testing.T) {
	s, mgr := newTestServer(t, "")
	mgr.EXPECT().SetupJob(gomock.Any(), gomock.Any(), "blast", "2.14").Return(nil)

	body := strings.NewReader(`{"tool_id": "blast", "tool_version": "2.14"}`)
	rec := doRequest(s, http.MethodPost, "/jobs", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("setup status = %d, want 201: %s", rec.Code, rec.Body)
	}

	var resp SetupResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID == "" {
		t.Errorf("minted job id is empty")
	}
	if resp.Status != "queued" {
		t.Errorf("status = %q, want queued", resp.Status)
	}
}

func TestSetupRequiresToolID(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := doRequest(s, http.MethodPost, "/jobs", strings.NewReader(`{}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("setup status = %d, want 400", rec.Code)
	}
}

func TestSetupRejectsTraversalJobID(t *testing.T) {
	s, mgr := newTestServer(t, "")
	mgr.EXPECT().SetupJob(gomock.Any(), "../evil", "blast", "").
		Return(fmt.Errorf("bad id: %w", staging.ErrInvalidJobID))

	body := strings.NewReader(`{"job_id": "../evil", "tool_id": "blast"}`)
	rec := doRequest(s, http.MethodPost, "/jobs", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("setup status = %d, want 400", rec.Code)
	}
}

func TestLaunchPassesCommandAndParams(t *testing.T) {
	s, mgr := newTestServer(t, "")
	mgr.EXPECT().
		Launch(gomock.Any(), "job-1", "echo hi", map[string]string{"queue": "fast"}).
		Return(nil)
	mgr.EXPECT().GetStatus(gomock.Any(), "job-1").Return(manager.StatusQueued, nil)

	body := strings.NewReader(`{"command_line": "echo hi", "submit_params": {"queue": "fast"}}`)
	rec := doRequest(s, http.MethodPost, "/jobs/job-1/launch", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("launch status = %d, want 202: %s", rec.Code, rec.Body)
	}
}

func TestLaunchEchoesBackendStatus(t *testing.T) {
	s, mgr := newTestServer(t, "")
	mgr.EXPECT().Launch(gomock.Any(), "job-1", "true", gomock.Nil()).Return(nil)
	mgr.EXPECT().GetStatus(gomock.Any(), "job-1").Return(manager.StatusRunning, nil)

	rec := doRequest(s, http.MethodPost, "/jobs/job-1/launch", strings.NewReader(`{"command_line": "true"}`))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("launch status = %d, want 202: %s", rec.Code, rec.Body)
	}

	var resp SetupResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "running" {
		t.Errorf("status = %q, want running", resp.Status)
	}
}

func TestLaunchRequiresCommandLine(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := doRequest(s, http.MethodPost, "/jobs/job-1/launch", strings.NewReader(`{}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("launch status = %d, want 400", rec.Code)
	}
}

func TestStatusIncludesReturnCodeWhenComplete(t *testing.T) {
	s, mgr := newTestServer(t, "")
	mgr.EXPECT().GetStatus(gomock.Any(), "job-1").Return(manager.StatusComplete, nil)
	mgr.EXPECT().ReturnCode(gomock.Any(), "job-1").Return(7, true, nil)

	rec := doRequest(s, http.MethodGet, "/jobs/job-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp JobStatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "complete" {
		t.Errorf("status = %q, want complete", resp.Status)
	}
	if resp.ReturnCode == nil || *resp.ReturnCode != 7 {
		t.Errorf("return_code = %v, want 7", resp.ReturnCode)
	}
}

func TestStatusOmitsReturnCodeWhileRunning(t *testing.T) {
	s, mgr := newTestServer(t, "")
	mgr.EXPECT().GetStatus(gomock.Any(), "job-1").Return(manager.StatusRunning, nil)

	rec := doRequest(s, http.MethodGet, "/jobs/job-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "return_code") {
		t.Errorf("running response carries return_code: %s", rec.Body)
	}
}

func TestUnknownJobIs404(t *testing.T) {
	s, mgr := newTestServer(t, "")
	mgr.EXPECT().GetStatus(gomock.Any(), "ghost").
		Return(manager.Status(""), fmt.Errorf("%w: %q", manager.ErrJobNotFound, "ghost"))

	rec := doRequest(s, http.MethodGet, "/jobs/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestKillAndCleanReturnNoContent(t *testing.T) {
	s, mgr := newTestServer(t, "")
	mgr.EXPECT().Kill(gomock.Any(), "job-1").Return(nil)
	mgr.EXPECT().Clean(gomock.Any(), "job-1").Return(nil)

	if rec := doRequest(s, http.MethodPost, "/jobs/job-1/kill", nil); rec.Code != http.StatusNoContent {
		t.Errorf("kill status = %d, want 204", rec.Code)
	}
	if rec := doRequest(s, http.MethodDelete, "/jobs/job-1", nil); rec.Code != http.StatusNoContent {
		t.Errorf("clean status = %d, want 204", rec.Code)
	}
}

func TestStdoutContents(t *testing.T) {
	s, mgr := newTestServer(t, "")
	mgr.EXPECT().StdoutContents(gomock.Any(), "job-1").Return([]byte("hello\n"), nil)

	rec := doRequest(s, http.MethodGet, "/jobs/job-1/stdout", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stdout status = %d, want 200", rec.Code)
	}
	var resp OutputResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Contents != "hello\n" {
		t.Errorf("contents = %q, want hello", resp.Contents)
	}
}

func TestUploadStagesFileWithDigest(t *testing.T) {
	s, mgr := newTestServer(t, "")
	inputs := t.TempDir()
	mgr.EXPECT().InputsDirectory(gomock.Any(), "job-1").Return(inputs, nil)

	content := []byte("ACGTACGT\n")
	rec := doRequest(s, http.MethodPost, "/jobs/job-1/files/inputs?name=data/reads.fa", bytes.NewReader(content))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, want 201: %s", rec.Code, rec.Body)
	}

	var resp UploadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	staged, err := os.ReadFile(filepath.Join(inputs, "data", "reads.fa"))
	if err != nil {
		t.Fatalf("read staged file: %v", err)
	}
	if !bytes.Equal(staged, content) {
		t.Errorf("staged content = %q, want %q", staged, content)
	}

	sum := blake3.Sum256(content)
	if want := hex.EncodeToString(sum[:]); resp.Digest != want {
		t.Errorf("digest = %q, want %q", resp.Digest, want)
	}
	if resp.Size != int64(len(content)) {
		t.Errorf("size = %d, want %d", resp.Size, len(content))
	}
}

// chunkedBody feeds its chunks one Read call at a time, running check before
// every Read so a test can observe the destination mid-stream. Once the
// chunks are exhausted it returns err, or io.EOF when err is nil.
type chunkedBody struct {
	chunks [][]byte
	err    error
	check  func()
}

func (b *chunkedBody) Read(p []byte) (int, error) {
	if b.check != nil {
		b.check()
	}
	if len(b.chunks) == 0 {
		if b.err != nil {
			return 0, b.err
		}
		return 0, io.EOF
	}
	n := copy(p, b.chunks[0])
	b.chunks = b.chunks[1:]
	return n, nil
}

func TestUploadDoesNotExposePartialContent(t *testing.T) {
	s, mgr := newTestServer(t, "")
	inputs := t.TempDir()
	mgr.EXPECT().InputsDirectory(gomock.Any(), "job-1").Return(inputs, nil)

	finalPath := filepath.Join(inputs, "data.txt")
	if err := os.WriteFile(finalPath, []byte("previous\n"), 0o644); err != nil {
		t.Fatalf("seed destination: %v", err)
	}

	// While the body is still streaming, the destination must hold the
	// previous content untouched, never a prefix of the new upload.
	body := &chunkedBody{
		chunks: [][]byte{[]byte("partial-"), []byte("rest\n")},
		check: func() {
			got, err := os.ReadFile(finalPath)
			if err != nil {
				t.Fatalf("read destination mid-upload: %v", err)
			}
			if string(got) != "previous\n" {
				t.Fatalf("destination mid-upload = %q, want previous content", got)
			}
		},
	}

	rec := doRequest(s, http.MethodPost, "/jobs/job-1/files/inputs?name=data.txt", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, want 201: %s", rec.Code, rec.Body)
	}

	got, err := os.ReadFile(finalPath)
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if string(got) != "partial-rest\n" {
		t.Errorf("destination = %q, want %q", got, "partial-rest\n")
	}
}

func TestFailedUploadLeavesDestinationUntouched(t *testing.T) {
	s, mgr := newTestServer(t, "")
	inputs := t.TempDir()
	mgr.EXPECT().InputsDirectory(gomock.Any(), "job-1").Return(inputs, nil)

	finalPath := filepath.Join(inputs, "data.txt")
	if err := os.WriteFile(finalPath, []byte("previous\n"), 0o644); err != nil {
		t.Fatalf("seed destination: %v", err)
	}

	body := &chunkedBody{
		chunks: [][]byte{[]byte("doomed-")},
		err:    fmt.Errorf("connection reset"),
	}
	rec := doRequest(s, http.MethodPost, "/jobs/job-1/files/inputs?name=data.txt", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("upload status = %d, want 400: %s", rec.Code, rec.Body)
	}

	got, err := os.ReadFile(finalPath)
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if string(got) != "previous\n" {
		t.Errorf("destination after failed upload = %q, want previous content", got)
	}
}

func TestUploadRejectsTraversal(t *testing.T) {
	s, mgr := newTestServer(t, "")
	inputs := t.TempDir()
	mgr.EXPECT().InputsDirectory(gomock.Any(), "job-1").Return(inputs, nil)

	rec := doRequest(s, http.MethodPost, "/jobs/job-1/files/inputs?name=../../etc/passwd", strings.NewReader("x"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("upload status = %d, want 400: %s", rec.Code, rec.Body)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(filepath.Dir(inputs)), "etc", "passwd")); err == nil {
		t.Errorf("traversal upload landed outside the subarea")
	}
}

func TestUploadUnknownSubarea(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := doRequest(s, http.MethodPost, "/jobs/job-1/files/secrets?name=x", strings.NewReader("x"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("upload status = %d, want 400", rec.Code)
	}
}

func TestUploadRequiresName(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := doRequest(s, http.MethodPost, "/jobs/job-1/files/inputs", strings.NewReader("x"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("upload status = %d, want 400", rec.Code)
	}
}

func TestDownloadRoundTrip(t *testing.T) {
	s, mgr := newTestServer(t, "")
	outputs := t.TempDir()
	if err := os.WriteFile(filepath.Join(outputs, "result.txt"), []byte("done\n"), 0o644); err != nil {
		t.Fatalf("seed output file: %v", err)
	}
	mgr.EXPECT().OutputsDirectory(gomock.Any(), "job-1").Return(outputs, nil)

	rec := doRequest(s, http.MethodGet, "/jobs/job-1/files/outputs?name=result.txt", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if rec.Body.String() != "done\n" {
		t.Errorf("downloaded content = %q, want done", rec.Body.String())
	}
}

func TestDownloadMissingFileIs404(t *testing.T) {
	s, mgr := newTestServer(t, "")
	mgr.EXPECT().OutputsDirectory(gomock.Any(), "job-1").Return(t.TempDir(), nil)

	rec := doRequest(s, http.MethodGet, "/jobs/job-1/files/outputs?name=missing.txt", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("download status = %d, want 404", rec.Code)
	}
}
