package codegen

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// RunResult carries the outcome of one script execution.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes generated scripts. Implementations must enforce a timeout.
type Runner interface {
	Run(ctx context.Context, scriptPath, workDir string) (*RunResult, error)
}

// SubprocessRunner runs scripts through a Python interpreter with a hard
// deadline. Generated code is untrusted enough that it never runs without
// one.
type SubprocessRunner struct {
	pythonBin string
	timeout   time.Duration
	logger    *slog.Logger
}

func NewSubprocessRunner(pythonBin string, timeout time.Duration, logger *slog.Logger) *SubprocessRunner {
	if pythonBin == "" {
		pythonBin = "python3"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SubprocessRunner{pythonBin: pythonBin, timeout: timeout, logger: logger}
}

func (r *SubprocessRunner) Run(ctx context.Context, scriptPath, workDir string) (*RunResult, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.pythonBin, scriptPath)
	cmd.Dir = workDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &RunResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: -1,
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}
	if ctx.Err() == context.DeadlineExceeded {
		r.logger.Warn("codegen.run.timeout", "script", scriptPath, "timeout", r.timeout)
		return result, fmt.Errorf("script timed out after %s", r.timeout)
	}
	if err != nil {
		r.logger.Warn("codegen.run.failed", "script", scriptPath, "exit_code", result.ExitCode, "stderr_bytes", len(result.Stderr))
		return result, fmt.Errorf("script execution failed: %s", firstLines(result.Stderr, 20))
	}

	r.logger.Info("codegen.run.ok",
		"script", scriptPath,
		"exit_code", result.ExitCode,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// WriteScript saves generated code next to the output directory as
// fallback_<jobID>.py and returns the path.
func WriteScript(dir, jobID, code string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create script dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("fallback_%s.py", jobID))
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return "", fmt.Errorf("write script: %w", err)
	}
	return path, nil
}

func firstLines(s string, n int) string {
	count := 0
	for i := range s {
		if s[i] == '\n' {
			count++
			if count >= n {
				return s[:i]
			}
		}
	}
	return s
}
