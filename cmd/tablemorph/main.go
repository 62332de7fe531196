// Command tablemorph transforms messy tabular files from the command line,
// without running the HTTP server. Multiple files run concurrently; a single
// file gets interactive prompts when the planner needs answers.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tablemorph/tablemorph/internal/analyze"
	"github.com/tablemorph/tablemorph/internal/codegen"
	"github.com/tablemorph/tablemorph/internal/common"
	"github.com/tablemorph/tablemorph/internal/detect"
	"github.com/tablemorph/tablemorph/internal/engine"
	"github.com/tablemorph/tablemorph/internal/enrich"
	"github.com/tablemorph/tablemorph/internal/llm/anthropic"
	"github.com/tablemorph/tablemorph/internal/match"
	"github.com/tablemorph/tablemorph/internal/orchestrator"
	"github.com/tablemorph/tablemorph/internal/output"
	"github.com/tablemorph/tablemorph/internal/plan"
	"github.com/tablemorph/tablemorph/internal/registry"
	"github.com/tablemorph/tablemorph/internal/schema"
	"github.com/tablemorph/tablemorph/internal/store"
	"github.com/tablemorph/tablemorph/internal/validate"
)

func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		schemaName = flag.String("schema", "generic_customer", "target schema name")
		outDir     = flag.String("out", "", "output directory (overrides OUTPUT_DIR)")
		dbPath     = flag.String("db", ":memory:", "job store DSN (sqlite path or postgres:// URL)")
		tableSel   = flag.String("table", "", "table to transform when the file has several (id or 1-based index)")
		listSchema = flag.Bool("schemas", false, "list available target schemas and exit")
	)
	flag.Parse()

	if *listSchema {
		for _, name := range schema.Names() {
			fmt.Println(name)
		}
		return
	}

	files := flag.Args()
	if len(files) == 0 {
		printError("Error: at least one input file is required\n")
		printError("Usage: tablemorph [flags] FILE [FILE...]\n")
		os.Exit(1)
	}
	if schema.Get(*schemaName) == nil {
		printError("Error: unknown schema %q, available: %s\n", *schemaName, strings.Join(schema.Names(), ", "))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()
	cfg := common.LoadConfig()
	if *outDir != "" {
		cfg.Jobs.OutputDir = *outDir
	}

	jobs, err := store.Open(ctx, *dbPath, logger)
	if err != nil {
		printError("Error: opening job store: %v\n", err)
		os.Exit(1)
	}
	defer jobs.Close()

	client := anthropic.NewClient(anthropic.Config{
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	reg := registry.New()
	pincodes := enrich.NewPincodeService(cfg.Enrich.PincodeCachePath, cfg.Enrich.HTTPTimeout, logger)
	reg.Register("LOOKUP_PINCODE", registry.KindRecord, pincodes.RegistryFunc())

	orch := orchestrator.New(orchestrator.Config{
		OutputDir:  cfg.Jobs.OutputDir,
		MaxRetries: cfg.Jobs.MaxRetries,
		SampleRows: cfg.Jobs.SampleRows,
	}, orchestrator.Deps{
		Jobs:      jobs,
		Detector:  detect.NewDetector(client, logger),
		Matcher:   match.NewMatcher(logger),
		Analyst:   analyze.NewAnalyst(client, logger),
		Planner:   plan.NewPlanner(client, logger),
		Engine:    engine.New(reg, logger),
		Validator: validate.NewValidator(logger),
		Codegen:   codegen.NewAgent(client, logger),
		Runner:    codegen.NewSubprocessRunner(cfg.Codegen.PythonBin, cfg.Codegen.ScriptTimeout, logger),
		Writer:    output.NewWriter(cfg.Jobs.OutputDir, logger),
		Logger:    logger,
	})

	interactive := len(files) == 1
	var mu sync.Mutex
	failures := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Jobs.MaxConcurrent)
	for _, file := range files {
		g.Go(func() error {
			ok := runFile(gctx, orch, file, *schemaName, *tableSel, interactive)
			if !ok {
				mu.Lock()
				failures++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Processed %d file(s), %d failed\n", len(files), failures)
	if failures > 0 {
		os.Exit(1)
	}
}

// runFile drives one job to a terminal state and reports success.
func runFile(ctx context.Context, orch *orchestrator.Orchestrator, file, schemaName, tableSel string, interactive bool) bool {
	job, err := orch.CreateJob(ctx, file, schemaName)
	if err != nil {
		printError("%s: creating job: %v\n", file, err)
		return false
	}
	job, err = orch.RunJob(ctx, job)
	if err != nil {
		printError("%s: %v\n", file, err)
		return false
	}

	for job.Status.Suspended() {
		if job.Status == orchestrator.StatusSelectingTable && tableSel != "" {
			job, err = orch.SelectTable(ctx, job, tableSel)
			if err != nil {
				printError("%s: selecting table: %v\n", file, err)
				return false
			}
			if job.Status == orchestrator.StatusSelectingTable {
				printError("%s: invalid table selection %q\n", file, tableSel)
				return false
			}
			continue
		}
		if !interactive {
			printError("%s: job %s needs input, rerun the file on its own to answer\n", file, job.JobID)
			return false
		}
		job, err = answerInteractively(ctx, orch, job)
		if err != nil {
			printError("%s: %v\n", file, err)
			return false
		}
	}

	if job.Status != orchestrator.StatusCompleted {
		printError("%s: job %s failed: %s\n", file, job.JobID, job.ErrorMessage)
		return false
	}

	fmt.Printf("%s -> %s\n", file, job.OutputFile)
	if score := job.QualityScore(); score != nil {
		fmt.Printf("  quality score: %.1f%%\n", *score)
	}
	if job.ValidationReport != nil && job.ValidationReport.Summary != "" {
		fmt.Printf("  %s\n", job.ValidationReport.Summary)
	}
	for _, w := range job.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	return true
}

// answerInteractively prompts on stdin for every pending question, then
// resumes the job.
func answerInteractively(ctx context.Context, orch *orchestrator.Orchestrator, job *orchestrator.Job) (*orchestrator.Job, error) {
	reader := bufio.NewReader(os.Stdin)
	questions := append([]string(nil), job.PendingQuestions...)
	for i, q := range questions {
		fmt.Printf("\n%s\n> ", q)
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("reading answer: %w", err)
		}
		answer := strings.TrimSpace(line)

		if job.Status == orchestrator.StatusSelectingTable {
			return orch.SelectTable(ctx, job, answer)
		}
		if orch.RecordAnswer(ctx, job, i, answer) {
			return orch.RunJob(ctx, job)
		}
	}
	return job, nil
}
