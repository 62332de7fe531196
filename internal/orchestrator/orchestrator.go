package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tablemorph/tablemorph/internal/analyze"
	"github.com/tablemorph/tablemorph/internal/codegen"
	"github.com/tablemorph/tablemorph/internal/common"
	"github.com/tablemorph/tablemorph/internal/detect"
	"github.com/tablemorph/tablemorph/internal/engine"
	"github.com/tablemorph/tablemorph/internal/match"
	"github.com/tablemorph/tablemorph/internal/output"
	"github.com/tablemorph/tablemorph/internal/plan"
	"github.com/tablemorph/tablemorph/internal/schema"
	"github.com/tablemorph/tablemorph/internal/store"
	"github.com/tablemorph/tablemorph/internal/tabular"
	"github.com/tablemorph/tablemorph/internal/validate"
)

// Plans below this confidence switch to the code-generation fallback.
const fallbackConfidenceThreshold = 0.5

// Config tunes orchestration.
type Config struct {
	OutputDir  string
	MaxRetries int
	SampleRows int
}

// Orchestrator wires the agents together and owns job state transitions.
type Orchestrator struct {
	cfg       Config
	jobs      *store.Store
	detector  *detect.Detector
	matcher   *match.Matcher
	analyst   *analyze.Analyst
	planner   *plan.Planner
	engine    *engine.Engine
	validator *validate.Validator
	codegen   *codegen.Agent
	runner    codegen.Runner
	writer    *output.Writer
	logger    *slog.Logger
}

// Deps carries the orchestrator's collaborators.
type Deps struct {
	Jobs      *store.Store
	Detector  *detect.Detector
	Matcher   *match.Matcher
	Analyst   *analyze.Analyst
	Planner   *plan.Planner
	Engine    *engine.Engine
	Validator *validate.Validator
	Codegen   *codegen.Agent
	Runner    codegen.Runner
	Writer    *output.Writer
	Logger    *slog.Logger
}

func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "output"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.SampleRows <= 0 {
		cfg.SampleRows = 50
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:       cfg,
		jobs:      deps.Jobs,
		detector:  deps.Detector,
		matcher:   deps.Matcher,
		analyst:   deps.Analyst,
		planner:   deps.Planner,
		engine:    deps.Engine,
		validator: deps.Validator,
		codegen:   deps.Codegen,
		runner:    deps.Runner,
		writer:    deps.Writer,
		logger:    logger,
	}
}

// CreateJob registers a new job in pending state.
func (o *Orchestrator) CreateJob(ctx context.Context, sourceFile, targetSchemaName string) (*Job, error) {
	if targetSchemaName == "" {
		targetSchemaName = "generic_customer"
	}
	now := time.Now().UTC()
	job := &Job{
		JobID:            uuid.NewString()[:8],
		SourceFile:       sourceFile,
		TargetSchemaName: targetSchemaName,
		Status:           StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
		UserAnswers:      map[string]string{},
	}

	snapshot, err := json.Marshal(job)
	if err != nil {
		return nil, common.WrapErrorAs(common.ErrInternal, "marshal job", err)
	}
	rec, err := o.jobs.Create(ctx, job.JobID, string(job.Status), snapshot)
	if err != nil {
		return nil, err
	}
	job.Version = rec.Version
	o.logger.Info("job.created", "job_id", job.JobID, "source", sourceFile, "schema", targetSchemaName)
	return job, nil
}

// RunJob advances the job through every stage it can reach without user
// input. The job snapshot is persisted after each stage so a crash resumes
// from the last completed one.
func (o *Orchestrator) RunJob(ctx context.Context, job *Job) (*Job, error) {
	if job.MultiTableAnalysis == nil {
		o.stageDetectTables(ctx, job)
		o.saveJob(ctx, job)
		if job.Status == StatusFailed || job.Status == StatusSelectingTable {
			return job, nil
		}
	}

	o.stageAnalyze(ctx, job)
	o.saveJob(ctx, job)
	if job.Status == StatusFailed {
		return job, nil
	}

	o.stagePlan(ctx, job)
	// FAILED is terminal to observers. A failure the fallback can rescue is
	// resolved before the snapshot is persisted.
	if job.Status == StatusFailed {
		o.stageFallback(ctx, job)
		o.saveJob(ctx, job)
		return job, nil
	}
	o.saveJob(ctx, job)
	if job.Status == StatusWaitingForInput {
		return job, nil
	}
	if job.Plan != nil && job.Plan.ConfidenceScore < fallbackConfidenceThreshold {
		o.logger.Warn("job.low_confidence",
			"job_id", job.JobID,
			"confidence", job.Plan.ConfidenceScore,
		)
		o.stageFallback(ctx, job)
		o.saveJob(ctx, job)
		return job, nil
	}

	result := o.stageExecute(ctx, job)
	if job.Status == StatusFailed {
		o.stageFallback(ctx, job)
		o.saveJob(ctx, job)
		return job, nil
	}
	o.saveJob(ctx, job)

	o.stageValidateAndOutput(ctx, job, result)
	o.saveJob(ctx, job)
	return job, nil
}

// stageDetectTables finds tables in the file and picks one, asking the user
// when several match the schema equally well.
func (o *Orchestrator) stageDetectTables(ctx context.Context, job *Job) {
	job.Status = StatusDetectingTables
	job.UpdatedAt = time.Now().UTC()

	loader, err := tabular.NewLoader(job.SourceFile, o.logger)
	if err != nil {
		o.fail(job, "Table detection failed", err)
		return
	}
	sheets, err := loader.SheetNames()
	if err != nil || len(sheets) == 0 {
		o.fail(job, "Table detection failed", err)
		return
	}
	grid, err := loader.LoadRaw(sheets[0])
	if err != nil {
		o.fail(job, "Table detection failed", err)
		return
	}
	analysis, err := o.detector.Detect(ctx, grid, filepath.Base(job.SourceFile), sheets[0])
	if err != nil {
		o.fail(job, "Table detection failed", err)
		return
	}
	job.MultiTableAnalysis = analysis

	tables := analysis.Tables
	if len(tables) == 0 {
		job.Status = StatusFailed
		job.ErrorMessage = "No suitable tables found in file"
		return
	}
	if len(tables) == 1 {
		job.SelectedTableID = tables[0].TableID
		return
	}

	target := o.targetSchema(job)
	job.TableMatching = o.matcher.Match(tables, target)

	var good []match.TableMatch
	for _, m := range job.TableMatching.Matches {
		if m.MatchScore >= match.HighMatchThreshold {
			good = append(good, m)
		}
	}
	switch {
	case len(good) == 1:
		job.SelectedTableID = good[0].TableID
	case len(good) > 1:
		job.Status = StatusSelectingTable
		prompt := job.TableMatching.UserPrompt
		if prompt == "" {
			prompt = "Which table do you want to transform?"
		}
		job.PendingQuestions = []string{prompt}
	case job.TableMatching.BestMatchTableID != "":
		job.SelectedTableID = job.TableMatching.BestMatchTableID
	default:
		job.Status = StatusFailed
		job.ErrorMessage = "No suitable tables found in file"
	}
}

// stageAnalyze inspects the selected table (or the whole first sheet).
func (o *Orchestrator) stageAnalyze(ctx context.Context, job *Job) {
	job.Status = StatusAnalyzing
	job.UpdatedAt = time.Now().UTC()

	table, err := o.loadTable(job)
	if err != nil {
		o.fail(job, "Analysis failed", err)
		return
	}
	analysis, err := o.analyst.Analyze(ctx, table, filepath.Base(job.SourceFile), o.cfg.SampleRows)
	if err != nil {
		o.fail(job, "Analysis failed", err)
		return
	}
	job.SourceAnalysis = analysis
}

// stagePlan asks the planner for a transformation plan and suspends when it
// raises user questions.
func (o *Orchestrator) stagePlan(ctx context.Context, job *Job) {
	job.Status = StatusPlanning
	job.UpdatedAt = time.Now().UTC()

	pl, err := o.planner.Generate(ctx, job.SourceAnalysis, o.targetSchema(job))
	if err != nil {
		o.fail(job, "Planning failed", err)
		return
	}
	job.Plan = pl

	if pl.RequiresUserInput && len(pl.UserQuestions) > 0 {
		unanswered := unansweredQuestions(pl.UserQuestions, job.UserAnswers)
		if len(unanswered) > 0 {
			job.Status = StatusWaitingForInput
			job.PendingQuestions = unanswered
		}
	}
}

// stageExecute runs the plan with a bounded retry loop.
func (o *Orchestrator) stageExecute(ctx context.Context, job *Job) *tabular.Table {
	job.Status = StatusExecuting
	job.UpdatedAt = time.Now().UTC()

	var lastErr error
	for job.RetryCount <= o.cfg.MaxRetries {
		table, err := o.loadTable(job)
		if err == nil {
			var result *tabular.Table
			var warnings []string
			result, warnings, err = o.engine.Execute(table, job.Plan)
			if err == nil {
				job.Warnings = append(job.Warnings, warnings...)
				return result
			}
		}
		lastErr = err
		job.RetryCount++
		if job.RetryCount <= o.cfg.MaxRetries {
			o.logger.Warn("job.execute_retry",
				"job_id", job.JobID,
				"attempt", job.RetryCount,
				"max_retries", o.cfg.MaxRetries,
				"error", err,
			)
		}
	}
	o.fail(job, "Execution failed", lastErr)
	return nil
}

// stageValidateAndOutput validates the result and writes the workbook.
func (o *Orchestrator) stageValidateAndOutput(ctx context.Context, job *Job, result *tabular.Table) {
	job.Status = StatusValidating
	job.UpdatedAt = time.Now().UTC()

	if result == nil {
		o.fail(job, "Validation/Output failed", fmt.Errorf("no result data to validate"))
		return
	}
	job.ValidationReport = o.validator.Validate(result, o.targetSchema(job))

	stem := strings.TrimSuffix(filepath.Base(job.SourceFile), filepath.Ext(job.SourceFile))
	fileName := fmt.Sprintf("%s_transformed_%s.xlsx", stem, job.JobID)
	path, err := o.writer.Write(result, job.ValidationReport, fileName)
	if err != nil {
		o.fail(job, "Validation/Output failed", err)
		return
	}
	job.OutputFile = path
	job.Status = StatusCompleted
	o.logger.Info("job.completed",
		"job_id", job.JobID,
		"output", path,
		"quality_score", job.ValidationReport.QualityScore,
	)
}

// stageFallback generates a standalone script, runs it under a timeout and
// checks for the expected output file.
func (o *Orchestrator) stageFallback(ctx context.Context, job *Job) {
	o.logger.Warn("job.fallback", "job_id", job.JobID, "source", job.SourceFile)
	job.Status = StatusExecuting
	job.UpdatedAt = time.Now().UTC()
	job.ErrorMessage = ""

	target := o.targetSchema(job)
	code, err := o.codegen.Generate(ctx, codegen.Request{
		SourcePath: job.SourceFile,
		Target:     target,
		Analysis:   job.SourceAnalysis,
		Mode:       codegen.ModeStandard,
	})
	if err != nil {
		o.fail(job, "Fallback failed", err)
		return
	}

	workDir := filepath.Dir(o.cfg.OutputDir)
	scriptPath, err := codegen.WriteScript(workDir, job.JobID, code)
	if err != nil {
		o.fail(job, "Fallback failed", err)
		return
	}
	if _, err := o.runner.Run(ctx, scriptPath, workDir); err != nil {
		o.fail(job, "Fallback failed", err)
		return
	}

	expected := filepath.Join(o.cfg.OutputDir, codegen.OutputFileName(target))
	if _, err := os.Stat(expected); err == nil {
		job.OutputFile = expected
		job.Status = StatusCompleted
		o.logger.Info("job.fallback_completed", "job_id", job.JobID, "output", expected)
		return
	}
	job.Status = StatusCompleted
	job.ErrorMessage = "Script ran but output file not found at expected location"
	o.logger.Warn("job.fallback_output_missing", "job_id", job.JobID, "expected", expected)
}

// RecordAnswer stores one answer and persists the job without resuming the
// pipeline. It reports whether every pending question now has an answer.
func (o *Orchestrator) RecordAnswer(ctx context.Context, job *Job, questionIndex int, answer string) bool {
	if job.Status != StatusWaitingForInput {
		return false
	}
	if job.UserAnswers == nil {
		job.UserAnswers = map[string]string{}
	}
	if questionIndex >= 0 && questionIndex < len(job.PendingQuestions) {
		job.UserAnswers[job.PendingQuestions[questionIndex]] = answer
	}
	done := len(unansweredQuestions(job.PendingQuestions, job.UserAnswers)) == 0
	if done {
		job.PendingQuestions = nil
	}
	o.saveJob(ctx, job)
	return done
}

// AnswerQuestion records one answer. When every pending question has an
// answer the pipeline resumes from planning. A job waiting on table
// selection treats the answer as a selection.
func (o *Orchestrator) AnswerQuestion(ctx context.Context, job *Job, questionIndex int, answer string) (*Job, error) {
	if job.Status == StatusSelectingTable {
		return o.SelectTable(ctx, job, answer)
	}
	if job.Status != StatusWaitingForInput {
		return job, nil
	}
	if o.RecordAnswer(ctx, job, questionIndex, answer) {
		return o.RunJob(ctx, job)
	}
	return job, nil
}

// SelectTable resolves a table selection, accepting either the 1-indexed
// ordinal from the prompt or a table id. Invalid selections leave the job
// waiting.
func (o *Orchestrator) SelectTable(ctx context.Context, job *Job, selection string) (*Job, error) {
	if job.Status != StatusSelectingTable {
		return job, nil
	}
	if job.MultiTableAnalysis == nil {
		job.Status = StatusFailed
		job.ErrorMessage = "No tables detected for selection"
		o.saveJob(ctx, job)
		return job, nil
	}

	tables := job.MultiTableAnalysis.Tables
	if n, err := strconv.Atoi(strings.TrimSpace(selection)); err == nil {
		if n >= 1 && n <= len(tables) {
			job.SelectedTableID = tables[n-1].TableID
		}
	} else {
		for _, t := range tables {
			if t.TableID == selection {
				job.SelectedTableID = selection
				break
			}
		}
	}
	if job.SelectedTableID == "" {
		o.logger.Warn("job.invalid_selection", "job_id", job.JobID, "selection", selection)
		return job, nil
	}

	job.PendingQuestions = nil
	o.logger.Info("job.table_selected", "job_id", job.JobID, "table_id", job.SelectedTableID)
	return o.RunJob(ctx, job)
}

// GetJob loads a job snapshot from the store.
func (o *Orchestrator) GetJob(ctx context.Context, jobID string) (*Job, error) {
	rec, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(rec.Snapshot, &job); err != nil {
		return nil, common.WrapErrorAs(common.ErrInternal, "unmarshal job snapshot", err)
	}
	job.Version = rec.Version
	return &job, nil
}

// ListJobs returns stored jobs, newest first.
func (o *Orchestrator) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	recs, err := o.jobs.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Job, 0, len(recs))
	for _, rec := range recs {
		var job Job
		if err := json.Unmarshal(rec.Snapshot, &job); err != nil {
			o.logger.Warn("job.snapshot_corrupt", "job_id", rec.ID, "error", err)
			continue
		}
		job.Version = rec.Version
		out = append(out, job)
	}
	return out, nil
}

// loadTable extracts the selected table, or loads the full first sheet when
// detection found a single implicit table.
func (o *Orchestrator) loadTable(job *Job) (*tabular.Table, error) {
	loader, err := tabular.NewLoader(job.SourceFile, o.logger)
	if err != nil {
		return nil, err
	}
	sheets, err := loader.SheetNames()
	if err != nil || len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets in %s: %w", job.SourceFile, err)
	}

	if t := job.SelectedTable(); t != nil {
		grid, err := loader.LoadRaw(sheets[0])
		if err != nil {
			return nil, err
		}
		return tabular.ExtractTable(grid, t.Boundary, t.HeaderRow)
	}
	return loader.LoadFull(sheets[0], 0)
}

func (o *Orchestrator) targetSchema(job *Job) *schema.TargetSchema {
	if t := schema.Get(job.TargetSchemaName); t != nil {
		return t
	}
	return schema.Get("generic_customer")
}

func (o *Orchestrator) fail(job *Job, stage string, err error) {
	job.Status = StatusFailed
	job.ErrorMessage = fmt.Sprintf("%s: %v", stage, err)
	job.UpdatedAt = time.Now().UTC()
	o.logger.Error("job.failed", "job_id", job.JobID, "stage", stage, "error", err)
}

// saveJob persists the snapshot with the job's current version. Persistence
// failures are logged, not fatal: the in-memory job keeps progressing.
func (o *Orchestrator) saveJob(ctx context.Context, job *Job) {
	job.UpdatedAt = time.Now().UTC()
	snapshot, err := json.Marshal(job)
	if err != nil {
		o.logger.Error("job.save_failed", "job_id", job.JobID, "error", err)
		return
	}
	version, err := o.jobs.Update(ctx, job.JobID, string(job.Status), snapshot, job.Version)
	if err != nil {
		o.logger.Error("job.save_failed", "job_id", job.JobID, "error", err)
		return
	}
	job.Version = version
}

func unansweredQuestions(questions []string, answers map[string]string) []string {
	var out []string
	for _, q := range questions {
		if _, ok := answers[q]; !ok {
			out = append(out, q)
		}
	}
	return out
}
