package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablemorph/tablemorph/internal/analyze"
	"github.com/tablemorph/tablemorph/internal/codegen"
	"github.com/tablemorph/tablemorph/internal/detect"
	"github.com/tablemorph/tablemorph/internal/engine"
	"github.com/tablemorph/tablemorph/internal/llm"
	"github.com/tablemorph/tablemorph/internal/match"
	"github.com/tablemorph/tablemorph/internal/orchestrator"
	"github.com/tablemorph/tablemorph/internal/output"
	"github.com/tablemorph/tablemorph/internal/plan"
	"github.com/tablemorph/tablemorph/internal/store"
	"github.com/tablemorph/tablemorph/internal/validate"
)

type fakeClient struct {
	text string
	err  error
}

func (f *fakeClient) GetTextResponse(ctx context.Context, req llm.Request) (string, error) {
	return f.text, f.err
}

func (f *fakeClient) GetJSONResponse(ctx context.Context, req llm.Request, v any) error {
	if f.err != nil {
		return f.err
	}
	return llm.DecodeJSONResponse(f.text, v)
}

type noopRunner struct{}

func (noopRunner) Run(ctx context.Context, scriptPath, workDir string) (*codegen.RunResult, error) {
	return &codegen.RunResult{ExitCode: 0}, nil
}

const planJSON = `{
	"confidence_score": 0.9,
	"column_mappings": [
		{"source_col": "Name", "target_col": "first_name", "action": "transform", "transform_id": "t1"},
		{"source_col": "Name", "target_col": "last_name", "action": "transform", "transform_id": "t1"},
		{"source_col": "Phone", "target_col": "phone", "action": "direct"},
		{"source_col": "Email", "target_col": "email", "action": "direct"}
	],
	"transformations": [
		{"id": "t1", "function": "SPLIT_FULL_NAME", "input_col": "Name", "output_cols": ["first_name", "last_name"]}
	]
}`

const customersCSV = "Name,Phone,Email\n" +
	"John Doe,9876543210,john@example.com\n" +
	"Jane Smith,9123456789,jane@example.com\n"

func newTestServer(t *testing.T) (*Server, *orchestrator.Orchestrator) {
	return newTestServerWithPlanner(t, &fakeClient{text: planJSON})
}

func newTestServerWithPlanner(t *testing.T, planner llm.Client) (*Server, *orchestrator.Orchestrator) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	jobs, err := store.Open(ctx, ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { jobs.Close() })

	base := t.TempDir()
	offline := &fakeClient{err: errors.New("offline")}
	orch := orchestrator.New(orchestrator.Config{OutputDir: filepath.Join(base, "output")}, orchestrator.Deps{
		Jobs:      jobs,
		Detector:  detect.NewDetector(offline, logger),
		Matcher:   match.NewMatcher(logger),
		Analyst:   analyze.NewAnalyst(offline, logger),
		Planner:   plan.NewPlanner(planner, logger),
		Engine:    engine.New(nil, logger),
		Validator: validate.NewValidator(logger),
		Codegen:   codegen.NewAgent(&fakeClient{text: "print('ok')"}, logger),
		Runner:    noopRunner{},
		Writer:    output.NewWriter(filepath.Join(base, "output"), logger),
		Logger:    logger,
	})

	s := New(Config{UploadDir: filepath.Join(base, "uploads")}, orch, logger)
	return s, orch
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func uploadCSV(t *testing.T, h http.Handler, fileName, schemaName string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write([]byte(customersCSV))
	require.NoError(t, err)
	if schemaName != "" {
		require.NoError(t, mw.WriteField("target_schema", schemaName))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/transform", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func waitForStatus(t *testing.T, h http.Handler, jobID, want string) map[string]any {
	t.Helper()
	var last map[string]any
	require.Eventually(t, func() bool {
		w := doJSON(t, h, http.MethodGet, "/api/status/"+jobID, nil)
		if w.Code != http.StatusOK {
			return false
		}
		last = map[string]any{}
		if err := json.Unmarshal(w.Body.Bytes(), &last); err != nil {
			return false
		}
		return last["status"] == want
	}, 10*time.Second, 25*time.Millisecond, "job %s never reached %s (last: %v)", jobID, want, last)
	return last
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	w := doJSON(t, s.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestSchemas(t *testing.T) {
	s, _ := newTestServer(t)
	w := doJSON(t, s.Handler(), http.MethodGet, "/api/schemas", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "generic_customer")
	assert.Contains(t, w.Body.String(), "sales_invoice")
}

func TestTransformLifecycle(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	w := uploadCSV(t, h, "customers.csv", "generic_customer")
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	jobID, _ := resp["job_id"].(string)
	require.NotEmpty(t, jobID)
	// The accept response reflects the job as created, not whatever stage
	// the background run has reached.
	assert.Equal(t, "pending", resp["status"])

	status := waitForStatus(t, h, jobID, "completed")
	assert.Equal(t, "customers.csv", status["source_file"])
	assert.Equal(t, "generic_customer", status["target_schema"])
	assert.Equal(t, 100.0, status["quality_score"])
	assert.NotEmpty(t, status["output_file"])

	// The validation report is served once the job completes.
	w = doJSON(t, h, http.MethodGet, "/api/report/"+jobID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"success"`)

	// Download streams the workbook as an attachment.
	w = doJSON(t, h, http.MethodGet, "/api/download/"+jobID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.True(t, w.Body.Len() > 0)

	// The job shows up in the listing.
	w = doJSON(t, h, http.MethodGet, "/api/jobs", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), jobID)
}

func TestTransformRejectsUnsupportedExtension(t *testing.T) {
	s, _ := newTestServer(t)
	w := uploadCSV(t, s.Handler(), "notes.txt", "generic_customer")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Unsupported file type")
}

func TestTransformRejectsUnknownSchema(t *testing.T) {
	s, _ := newTestServer(t)
	w := uploadCSV(t, s.Handler(), "customers.csv", "no_such_schema")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown target schema")
}

func TestTransformRequiresFile(t *testing.T) {
	s, _ := newTestServer(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/transform", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing file upload")
}

func TestStatusUnknownJob(t *testing.T) {
	s, _ := newTestServer(t)
	w := doJSON(t, s.Handler(), http.MethodGet, "/api/status/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Job not found")
}

func TestQuestionsForPendingJob(t *testing.T) {
	s, orch := newTestServer(t)
	job, err := orch.CreateJob(context.Background(), "input.csv", "generic_customer")
	require.NoError(t, err)

	w := doJSON(t, s.Handler(), http.MethodGet, "/api/question/"+job.JobID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "pending", resp["status"])
	assert.Equal(t, 0.0, resp["total"])
}

func TestAnswerResumesSuspendedJob(t *testing.T) {
	questionPlanJSON := `{
		"confidence_score": 0.9,
		"column_mappings": [
			{"source_col": "Name", "target_col": "first_name", "action": "direct"}
		],
		"requires_user_input": true,
		"user_questions": ["Which date format should order dates use?"]
	}`
	s, _ := newTestServerWithPlanner(t, &fakeClient{text: questionPlanJSON})
	h := s.Handler()

	w := uploadCSV(t, h, "customers.csv", "generic_customer")
	require.Equal(t, http.StatusAccepted, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	jobID, _ := resp["job_id"].(string)
	waitForStatus(t, h, jobID, "waiting_for_input")

	w = doJSON(t, h, http.MethodPost, "/api/answer/"+jobID,
		map[string]any{"question_index": 0, "answer": "UK"})
	require.Equal(t, http.StatusOK, w.Code)

	// The answer response is a snapshot taken before the resumed pipeline
	// starts mutating the job in the background.
	var answered map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &answered))
	assert.Equal(t, "waiting_for_input", answered["status"])
	assert.Equal(t, 0.0, answered["remaining_questions"])
	assert.Equal(t, "Answer recorded", answered["message"])

	waitForStatus(t, h, jobID, "completed")
}

func TestAnswerRejectsNonSuspendedJob(t *testing.T) {
	s, orch := newTestServer(t)
	job, err := orch.CreateJob(context.Background(), "input.csv", "generic_customer")
	require.NoError(t, err)

	w := doJSON(t, s.Handler(), http.MethodPost, "/api/answer/"+job.JobID,
		map[string]any{"question_index": 0, "answer": "UK"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not waiting for input")
}

func TestSelectRejectsNonSelectingJob(t *testing.T) {
	s, orch := newTestServer(t)
	job, err := orch.CreateJob(context.Background(), "input.csv", "generic_customer")
	require.NoError(t, err)

	w := doJSON(t, s.Handler(), http.MethodPost, "/api/select/"+job.JobID,
		map[string]any{"selection": "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not selecting a table")
}

func TestAnswerValidation(t *testing.T) {
	s, orch := newTestServer(t)
	job, err := orch.CreateJob(context.Background(), "input.csv", "generic_customer")
	require.NoError(t, err)

	// A body without the required answer field fails binding.
	w := doJSON(t, s.Handler(), http.MethodPost, "/api/answer/"+job.JobID,
		map[string]any{"question_index": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownloadBeforeCompletion(t *testing.T) {
	s, orch := newTestServer(t)
	job, err := orch.CreateJob(context.Background(), "input.csv", "generic_customer")
	require.NoError(t, err)

	w := doJSON(t, s.Handler(), http.MethodGet, "/api/download/"+job.JobID, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Job not completed")
}

func TestUploadedFileIsSaved(t *testing.T) {
	s, _ := newTestServer(t)
	w := uploadCSV(t, s.Handler(), "saved.csv", "generic_customer")
	require.Equal(t, http.StatusAccepted, w.Code)

	data, err := os.ReadFile(filepath.Join(s.cfg.UploadDir, "saved.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Name,Phone,Email"))
}
