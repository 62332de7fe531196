// Package orchestrator drives transformation jobs through the full
// pipeline: table detection, analysis, planning, execution, validation and
// output, with an agentic code-generation fallback.
package orchestrator

import (
	"time"

	"github.com/tablemorph/tablemorph/internal/analyze"
	"github.com/tablemorph/tablemorph/internal/detect"
	"github.com/tablemorph/tablemorph/internal/match"
	"github.com/tablemorph/tablemorph/internal/plan"
	"github.com/tablemorph/tablemorph/internal/validate"
)

// Status of a transformation job.
type Status string

const (
	StatusPending         Status = "pending"
	StatusDetectingTables Status = "detecting_tables"
	StatusSelectingTable  Status = "selecting_table"
	StatusAnalyzing       Status = "analyzing"
	StatusPlanning        Status = "planning"
	StatusWaitingForInput Status = "waiting_for_input"
	StatusExecuting       Status = "executing"
	StatusValidating      Status = "validating"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
)

// Terminal reports whether the job can make no further progress.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Suspended reports whether the job is waiting on the user.
func (s Status) Suspended() bool {
	return s == StatusWaitingForInput || s == StatusSelectingTable
}

// Job is one transformation run. The whole struct is the persisted snapshot;
// Version tracks the stored copy for optimistic updates and never travels in
// the snapshot itself.
type Job struct {
	JobID            string    `json:"job_id"`
	SourceFile       string    `json:"source_file"`
	TargetSchemaName string    `json:"target_schema_name"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	SourceAnalysis   *analyze.SourceAnalysis `json:"source_analysis,omitempty"`
	Plan             *plan.Plan              `json:"transformation_plan,omitempty"`
	ValidationReport *validate.Report        `json:"validation_report,omitempty"`
	OutputFile       string                  `json:"output_file,omitempty"`

	PendingQuestions []string          `json:"pending_questions,omitempty"`
	UserAnswers      map[string]string `json:"user_answers,omitempty"`

	MultiTableAnalysis *detect.MultiTableAnalysis `json:"multi_table_analysis,omitempty"`
	TableMatching      *match.Result              `json:"table_matching_result,omitempty"`
	SelectedTableID    string                     `json:"selected_table_id,omitempty"`

	ErrorMessage string   `json:"error_message,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
	RetryCount   int      `json:"retry_count"`

	Version int64 `json:"-"`
}

// SelectedTable returns the detected table the job targets, nil when
// detection has not run or the id is unknown.
func (j *Job) SelectedTable() *detect.DetectedTable {
	if j.MultiTableAnalysis == nil || j.SelectedTableID == "" {
		return nil
	}
	for i := range j.MultiTableAnalysis.Tables {
		if j.MultiTableAnalysis.Tables[i].TableID == j.SelectedTableID {
			return &j.MultiTableAnalysis.Tables[i]
		}
	}
	return nil
}

// QualityScore returns the validation quality score, nil before validation.
func (j *Job) QualityScore() *float64 {
	if j.ValidationReport == nil {
		return nil
	}
	score := j.ValidationReport.QualityScore
	return &score
}
