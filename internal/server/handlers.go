package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tablemorph/tablemorph/internal/common"
	"github.com/tablemorph/tablemorph/internal/orchestrator"
	"github.com/tablemorph/tablemorph/internal/schema"
	"github.com/tablemorph/tablemorph/internal/tabular"
)

type transformResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type statusResponse struct {
	JobID        string   `json:"job_id"`
	Status       string   `json:"status"`
	SourceFile   string   `json:"source_file"`
	TargetSchema string   `json:"target_schema"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
	QualityScore *float64 `json:"quality_score,omitempty"`
	OutputFile   string   `json:"output_file,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

type questionResponse struct {
	JobID     string   `json:"job_id"`
	Status    string   `json:"status"`
	Questions []string `json:"questions"`
	Answered  int      `json:"answered"`
	Total     int      `json:"total"`
}

type answerRequest struct {
	QuestionIndex int    `json:"question_index"`
	Answer        string `json:"answer" binding:"required"`
}

type selectRequest struct {
	Selection string `json:"selection" binding:"required"`
}

type jobListItem struct {
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	SourceFile string `json:"source_file"`
	CreatedAt  string `json:"created_at"`
}

// handleTransform accepts an uploaded file and starts a job in the
// background.
func (s *Server) handleTransform(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file upload"})
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !supportedExt(ext) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Unsupported file type: %s. Allowed: %v", ext, tabular.SupportedExtensions),
		})
		return
	}

	targetSchema := c.DefaultPostForm("target_schema", "generic_customer")
	if schema.Get(targetSchema) == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown target schema: %s", targetSchema)})
		return
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		s.serverError(c, err)
		return
	}
	dest := filepath.Join(s.cfg.UploadDir, filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, dest); err != nil {
		s.serverError(c, err)
		return
	}

	job, err := s.orch.CreateJob(c.Request.Context(), dest, targetSchema)
	if err != nil {
		s.serverError(c, err)
		return
	}
	// The background run mutates the job; build the response first.
	resp := transformResponse{
		JobID:   job.JobID,
		Status:  string(job.Status),
		Message: "Transformation started. Use /api/status/{job_id} to check progress.",
	}
	s.runInBackground(job)

	c.JSON(http.StatusAccepted, resp)
}

func (s *Server) handleStatus(c *gin.Context) {
	job, ok := s.loadJob(c)
	if !ok {
		return
	}
	resp := statusResponse{
		JobID:        job.JobID,
		Status:       string(job.Status),
		SourceFile:   filepath.Base(job.SourceFile),
		TargetSchema: job.TargetSchemaName,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    job.UpdatedAt.Format(time.RFC3339),
		QualityScore: job.QualityScore(),
		ErrorMessage: job.ErrorMessage,
	}
	if job.OutputFile != "" {
		resp.OutputFile = filepath.Base(job.OutputFile)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleQuestions(c *gin.Context) {
	job, ok := s.loadJob(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, questionResponse{
		JobID:     job.JobID,
		Status:    string(job.Status),
		Questions: job.PendingQuestions,
		Answered:  len(job.UserAnswers),
		Total:     len(job.PendingQuestions),
	})
}

func (s *Server) handleAnswer(c *gin.Context) {
	job, ok := s.loadJob(c)
	if !ok {
		return
	}
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !job.Status.Suspended() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Job is not waiting for input (status: %s)", job.Status),
		})
		return
	}

	// Record the answer synchronously; any resumed pipeline runs in the
	// background.
	if job.Status == orchestrator.StatusWaitingForInput {
		done := s.orch.RecordAnswer(c.Request.Context(), job, req.QuestionIndex, req.Answer)
		// Snapshot the response before the resumed pipeline mutates the job.
		resp := gin.H{
			"job_id":              job.JobID,
			"status":              string(job.Status),
			"message":             "Answer recorded",
			"remaining_questions": len(job.PendingQuestions),
		}
		if done {
			s.runInBackground(job)
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	// Table selection phrased as an answer.
	s.selectAndRespond(c, job, req.Answer)
}

func (s *Server) handleSelectTable(c *gin.Context) {
	job, ok := s.loadJob(c)
	if !ok {
		return
	}
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if job.Status != orchestrator.StatusSelectingTable {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Job is not selecting a table (status: %s)", job.Status),
		})
		return
	}
	s.selectAndRespond(c, job, req.Selection)
}

func (s *Server) handleListJobs(c *gin.Context) {
	jobs, err := s.orch.ListJobs(c.Request.Context(), 0)
	if err != nil {
		s.serverError(c, err)
		return
	}
	out := make([]jobListItem, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobListItem{
			JobID:      j.JobID,
			Status:     string(j.Status),
			SourceFile: filepath.Base(j.SourceFile),
			CreatedAt:  j.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleDownload(c *gin.Context) {
	job, ok := s.loadJob(c)
	if !ok {
		return
	}
	if job.Status != orchestrator.StatusCompleted {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Job not completed (status: %s)", job.Status),
		})
		return
	}
	if job.OutputFile == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Output file not found"})
		return
	}
	if _, err := os.Stat(job.OutputFile); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Output file not found"})
		return
	}
	c.FileAttachment(job.OutputFile, filepath.Base(job.OutputFile))
}

func (s *Server) handleReport(c *gin.Context) {
	job, ok := s.loadJob(c)
	if !ok {
		return
	}
	if job.ValidationReport == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No validation report available"})
		return
	}
	c.JSON(http.StatusOK, job.ValidationReport)
}

func (s *Server) handleSchemas(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"schemas": schema.Names()})
}

func (s *Server) selectAndRespond(c *gin.Context, job *orchestrator.Job, selection string) {
	updated, err := s.orch.SelectTable(c.Request.Context(), job, selection)
	if err != nil {
		s.serverError(c, err)
		return
	}
	if updated.Status == orchestrator.StatusSelectingTable {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid selection: %s. Please try again.", selection),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job_id":  updated.JobID,
		"status":  string(updated.Status),
		"message": "Table selected",
	})
}

func (s *Server) loadJob(c *gin.Context) (*orchestrator.Job, bool) {
	jobID := c.Param("job_id")
	job, err := s.orch.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Job not found: %s", jobID)})
		} else {
			s.serverError(c, err)
		}
		return nil, false
	}
	return job, true
}

func (s *Server) runInBackground(job *orchestrator.Job) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
		defer cancel()
		if _, err := s.orch.RunJob(ctx, job); err != nil {
			s.logger.Error("job.background_failed", "job_id", job.JobID, "error", err)
		}
	}()
}

func (s *Server) serverError(c *gin.Context, err error) {
	s.logger.Error("http.error",
		"path", c.Request.URL.Path,
		"req_id", c.GetString("req_id"),
		"error", err,
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func supportedExt(ext string) bool {
	for _, e := range tabular.SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}
