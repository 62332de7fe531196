// Package codegen generates and runs standalone Python transformation
// scripts. It is the fallback path when plan execution has low confidence or
// fails outright.
package codegen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tablemorph/tablemorph/internal/analyze"
	"github.com/tablemorph/tablemorph/internal/llm"
	"github.com/tablemorph/tablemorph/internal/schema"
)

const systemPrompt = `You are an expert Python Data Engineer. Your task is to write a complete, standalone Python script to transform an Excel file.

REQUIREMENTS:
1. Use 'pandas' for data manipulation.
2. Use 'sys.argv' or hardcoded paths as instructed.
3. The script must be complete, runnable, and error-free.
4. Handle edge cases (missing columns, nulls) gracefully.
5. Output the result to 'output/' directory. If the input is XML or the user asks for JSON, use '.json' format. Otherwise default to '.xlsx'.
6. PRINT CLEAR LOGS to stdout so the user knows what's happening.

OUTPUT FORMAT:
Return ONLY the Python code block. No markdown fencing or explanations outside the code.`

// Mode selects the generation strategy.
type Mode string

const (
	// ModeStandard targets a specific schema and projects only its columns.
	ModeStandard Mode = "standard"
	// ModeFlexible implements a free-form user request.
	ModeFlexible Mode = "flexible"
	// ModeNormalization flattens grouped or hierarchical sheets.
	ModeNormalization Mode = "normalization"
)

// Request describes one script generation.
type Request struct {
	SourcePath   string
	Target       *schema.TargetSchema
	Analysis     *analyze.SourceAnalysis
	Requirements string
	Mode         Mode
}

// Agent generates transformation scripts through the LLM.
type Agent struct {
	client llm.Client
	logger *slog.Logger
}

func NewAgent(client llm.Client, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{client: client, logger: logger}
}

// Generate returns the Python source for the request. Standard mode requires
// a target schema.
func (a *Agent) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	if a.client == nil {
		return "", fmt.Errorf("no llm client configured")
	}

	var prompt string
	switch req.Mode {
	case ModeNormalization:
		prompt = normalizationPrompt(req)
	case ModeFlexible:
		prompt = flexiblePrompt(req)
	default:
		if req.Target == nil {
			return "", fmt.Errorf("target schema is required for standard mode")
		}
		prompt = standardPrompt(req)
	}

	text, err := a.client.GetTextResponse(ctx, llm.Request{
		System:    systemPrompt,
		Prompt:    prompt,
		MaxTokens: 4096,
	})
	if err != nil {
		return "", fmt.Errorf("code generation: %w", err)
	}
	code := cleanCode(text)
	if code == "" {
		return "", fmt.Errorf("code generation returned empty script")
	}

	a.logger.Info("codegen.ok",
		"mode", string(req.Mode),
		"source", req.SourcePath,
		"script_bytes", len(code),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return code, nil
}

// OutputFileName is the file the standard-mode script writes under output/.
func OutputFileName(target *schema.TargetSchema) string {
	return fmt.Sprintf("%s_fallback.xlsx", target.Name)
}

func sourceColumns(analysis *analyze.SourceAnalysis) string {
	names := make([]string, 0, len(analysis.Columns))
	for _, c := range analysis.Columns {
		names = append(names, c.ColumnName)
	}
	return strings.Join(names, ", ")
}

func standardPrompt(req Request) string {
	var cols strings.Builder
	for _, c := range req.Target.Columns {
		hint := ""
		if c.TransformationHint != "" {
			hint = fmt.Sprintf(" (Hint: %s)", c.TransformationHint)
		}
		fmt.Fprintf(&cols, "- %s (%s): %s%s\n", c.Name, c.DataType, c.Description, hint)
	}

	prompt := fmt.Sprintf(`Write a Python script to transform '%s'.

SOURCE SCHEMA:
Columns: %s
Total Rows: %d

TARGET SCHEMA (Create these columns):
%s
SPECIFIC INSTRUCTIONS:
- Load the source Excel file.
- Perform necessary transformations to create target columns.
- If transformation hint is provided (e.g., CONCATENATE, COMPUTE), implement that logic.
- Select ONLY the target columns for the final output.
- Save result to 'output/%s'.
`, req.SourcePath, sourceColumns(req.Analysis), req.Analysis.TotalRows, cols.String(), OutputFileName(req.Target))

	if req.Requirements != "" {
		prompt += fmt.Sprintf("\nADDITIONAL REQUIREMENTS:\n%s", req.Requirements)
	}
	return prompt
}

func flexiblePrompt(req Request) string {
	task := req.Requirements
	if task == "" {
		task = "Perform a standard conversion of all data."
	}
	return fmt.Sprintf(`Write a Python script to transform '%s' based on the user's request.

SOURCE SCHEMA:
Columns: %s
Total Rows: %d

THE TASK:
%s

SPECIFIC INSTRUCTIONS:
- Load the source file using pandas.
- For Excel files, load ALL sheets with pd.read_excel(path, sheet_name=None), modify the relevant ones, and write every sheet back so none are lost.
- Implement the logic described in THE TASK. If it's empty or just says 'convert', perform a standard conversion of all data.
- If the request implies keeping all original columns, do so.
- If the request implies filtering or aggregation, the output should reflect that.
- Save result to 'output/flexible_transform_result.xlsx' AND 'output/flexible_transform_result.json' unless specifically asked for only one format.
- PRINT CLEAR LOGS to stdout.
`, req.SourcePath, sourceColumns(req.Analysis), req.Analysis.TotalRows, task)
}

func normalizationPrompt(req Request) string {
	hint := req.Requirements
	if hint == "" {
		hint = "Look for grouped headers and flatten them."
	}
	return fmt.Sprintf(`Write a Python script to NORMALIZE and FLATTEN the unstructured hierarchical data in '%s'.

SOURCE SCHEMA (Raw):
Columns: %s
Total Rows: %d

THE TASK:
The input file contains unstructured or grouped data (e.g., Ledger headers, merged cells, or parent-child relationships).
Your goal is to convert this into a flat, structured table suitable for database import.

SPECIFIC INSTRUCTIONS:
- Load the source Excel file using pandas (header=None usually helps for unstructured data).
- Identify "parent" rows (e.g., rows containing "Ledger:", "Group:", or bold headers) and "child" transaction rows.
- Create a new column for the parent entity (e.g., "Ledger Name") and fill it down for all valid transaction rows.
- Remove the original header/separator rows.
- Ensure the final output has a single header row and consistent columns.
- Save result to 'output/normalized_data.xlsx'.
- PRINT CLEAR LOGS to stdout explaining what structure was detected and determining the new columns.

USER HINT:
%s
`, req.SourcePath, sourceColumns(req.Analysis), req.Analysis.TotalRows, hint)
}

// cleanCode strips markdown fencing the model sometimes wraps around code.
func cleanCode(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```python") {
		text = text[len("```python"):]
	} else if strings.HasPrefix(text, "```") {
		text = text[3:]
	}
	if strings.HasSuffix(text, "```") {
		text = text[:len(text)-3]
	}
	return strings.TrimSpace(text)
}
