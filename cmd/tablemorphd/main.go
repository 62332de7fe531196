package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

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
	"github.com/tablemorph/tablemorph/internal/server"
	"github.com/tablemorph/tablemorph/internal/store"
	"github.com/tablemorph/tablemorph/internal/validate"
)

func main() {
	configPath := flag.String("config", "tablemorph.yaml", "optional YAML config file")
	flag.Parse()

	// Structured logger that outputs messages with variables but no time/level
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.ApplyFile(*configPath, true); err != nil {
		logger.Error("failed to load config file", "path", *configPath, "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.LLM.APIKey == "" {
		logger.Warn("ANTHROPIC_API_KEY not set, planning will fall back to name matching")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Database.DialTimeout)
	jobs, err := store.Open(dialCtx, cfg.Database.DSN, logger)
	cancel()
	if err != nil {
		logger.Error("failed to open job store", "dsn", cfg.Database.DSN, "error", err)
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

	srv := server.New(server.Config{Addr: cfg.Server.Addr}, orch, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
