// Package analyze inspects source tables: local type inference enriched with
// AI semantic hints.
package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tablemorph/tablemorph/internal/llm"
	"github.com/tablemorph/tablemorph/internal/registry"
	"github.com/tablemorph/tablemorph/internal/tabular"
)

const systemPrompt = `You are a Data Inspector Agent. Your job is to analyze sample data from Excel/CSV files and produce a structured analysis.

TASK: Analyze the provided sample data and return a JSON object with your findings.

For each column, determine:
1. **inferred_type**: The data type - one of: "string", "integer", "float", "date", "boolean", "mixed", "empty"
2. **semantic_type**: What the data represents - one of: "name", "first_name", "last_name", "full_name", "email", "phone", "address", "city", "state", "pincode", "country", "gstin", "pan", "date", "currency", "id", "quantity", "description", "unknown"
3. **issues**: Any problems detected like "mixed formats", "inconsistent types", "special characters"
4. **suggested_functions**: Functions from the registry that might help transform this column:
   - SPLIT_FULL_NAME (for full names)
   - NORMALIZE_PHONE (for phone numbers)
   - SMART_DATE_PARSE (for dates)
   - VALIDATE_EMAIL (for emails)
   - VALIDATE_GSTIN (for GSTIN)
   - CLEAN_WHITESPACE (for dirty text)
   - MAP_VALUES (for categorical data)

OUTPUT: Return ONLY valid JSON matching this structure:
{
  "columns": [
    {
      "column_name": "string",
      "inferred_type": "string",
      "semantic_type": "string or null",
      "issues": ["list of issues"],
      "suggested_functions": ["list of function names"]
    }
  ],
  "structural_issues": [
    {
      "issue_type": "merged_cells|multi_row_header|empty_rows|inconsistent_types",
      "description": "string",
      "severity": "critical|warning|info"
    }
  ],
  "overall_quality": "good|fair|poor",
  "preprocessing_steps": ["list of recommended steps"]
}

Do not include any text outside the JSON object.`

var responseSchema = map[string]any{
	"type":     "object",
	"required": []any{"columns"},
	"properties": map[string]any{
		"columns": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"column_name"},
				"properties": map[string]any{
					"column_name":         map[string]any{"type": "string"},
					"inferred_type":       map[string]any{"type": "string"},
					"semantic_type":       map[string]any{"type": []any{"string", "null"}},
					"issues":              map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"suggested_functions": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
			},
		},
		"structural_issues":   map[string]any{"type": "array"},
		"overall_quality":     map[string]any{"type": "string"},
		"preprocessing_steps": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
}

// ColumnAnalysis holds per-column findings: local statistics merged with AI
// semantics.
type ColumnAnalysis struct {
	ColumnName         string   `json:"column_name"`
	ColumnIndex        int      `json:"column_index"`
	InferredType       string   `json:"inferred_type"`
	SemanticType       string   `json:"semantic_type,omitempty"`
	TotalValues        int      `json:"total_values"`
	NullCount          int      `json:"null_count"`
	UniqueCount        int      `json:"unique_count"`
	Completeness       float64  `json:"completeness"`
	SampleValues       []string `json:"sample_values,omitempty"`
	Issues             []string `json:"issues,omitempty"`
	SuggestedFunctions []string `json:"suggested_functions,omitempty"`
}

// StructuralIssue is a sheet-level problem the AI spotted.
type StructuralIssue struct {
	IssueType   string `json:"issue_type"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// SourceAnalysis is the complete analysis of one source table.
type SourceAnalysis struct {
	FileName           string            `json:"file_name"`
	TotalRows          int               `json:"total_rows"`
	TotalColumns       int               `json:"total_columns"`
	SampleRowsAnalyzed int               `json:"sample_rows_analyzed"`
	Columns            []ColumnAnalysis  `json:"columns"`
	StructuralIssues   []StructuralIssue `json:"structural_issues,omitempty"`
	OverallQuality     string            `json:"overall_quality"`
	PreprocessingSteps []string          `json:"preprocessing_steps,omitempty"`
}

type aiResponse struct {
	Columns []struct {
		ColumnName         string   `json:"column_name"`
		InferredType       string   `json:"inferred_type"`
		SemanticType       *string  `json:"semantic_type"`
		Issues             []string `json:"issues"`
		SuggestedFunctions []string `json:"suggested_functions"`
	} `json:"columns"`
	StructuralIssues []struct {
		IssueType   string `json:"issue_type"`
		Description string `json:"description"`
		Severity    string `json:"severity"`
	} `json:"structural_issues"`
	OverallQuality     string   `json:"overall_quality"`
	PreprocessingSteps []string `json:"preprocessing_steps"`
}

// Analyst combines deterministic column statistics with an AI semantic pass.
// The local pass is authoritative for types and counts; the AI only adds
// semantics, issues and suggestions. AI failure degrades gracefully.
type Analyst struct {
	client llm.Client
	logger *slog.Logger
}

func NewAnalyst(client llm.Client, logger *slog.Logger) *Analyst {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyst{client: client, logger: logger}
}

// Analyze inspects a sample of the table.
func (a *Analyst) Analyze(ctx context.Context, table *tabular.Table, fileName string, sampleRows int) (*SourceAnalysis, error) {
	start := time.Now()
	if sampleRows <= 0 {
		sampleRows = 50
	}
	sample := table.Head(sampleRows)

	columns := localAnalysis(sample)
	result := &SourceAnalysis{
		FileName:           fileName,
		TotalRows:          table.NumRows(),
		TotalColumns:       table.NumCols(),
		SampleRowsAnalyzed: sample.NumRows(),
		Columns:            columns,
		OverallQuality:     "fair",
	}

	ai, err := a.aiAnalysis(ctx, sample)
	if err != nil {
		a.logger.Warn("analyze.ai_failed", "file", fileName, "error", err)
	} else {
		mergeAI(result, ai)
	}

	a.logger.Info("analyze.ok",
		"file", fileName,
		"columns", len(result.Columns),
		"quality", result.OverallQuality,
		"structural_issues", len(result.StructuralIssues),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func localAnalysis(sample *tabular.Table) []ColumnAnalysis {
	out := make([]ColumnAnalysis, 0, sample.NumCols())
	for idx, name := range sample.Columns {
		values := sample.Column(name)
		nulls := 0
		unique := map[string]bool{}
		var nonNull []string
		for _, v := range values {
			if tabular.IsEmpty(v) {
				nulls++
				continue
			}
			s := tabular.CellString(v)
			nonNull = append(nonNull, s)
			unique[s] = true
		}
		completeness := 0.0
		if len(values) > 0 {
			completeness = 1.0 - float64(nulls)/float64(len(values))
		}
		out = append(out, ColumnAnalysis{
			ColumnName:   name,
			ColumnIndex:  idx,
			InferredType: inferType(nonNull),
			TotalValues:  len(values),
			NullCount:    nulls,
			UniqueCount:  len(unique),
			Completeness: completeness,
			SampleValues: sample.SampleValues(name, 5),
		})
	}
	return out
}

var boolVocabulary = map[string]bool{
	"true": true, "false": true, "yes": true, "no": true,
	"1": true, "0": true, "y": true, "n": true,
}

var datePattern = regexp.MustCompile(`\d{1,4}[-/.]\d{1,2}[-/.]\d{1,4}`)

// inferType classifies a column from its non-null values: numeric when 80%
// coerce, date when half parse, boolean on a closed vocabulary, else string.
func inferType(nonNull []string) string {
	if len(nonNull) == 0 {
		return "empty"
	}
	n := float64(len(nonNull))

	numeric := 0
	allWhole := true
	for _, v := range nonNull {
		cleaned := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			continue
		}
		numeric++
		if f != float64(int64(f)) {
			allWhole = false
		}
	}
	if float64(numeric) > n*0.8 {
		if allWhole {
			return "integer"
		}
		return "float"
	}

	dates := 0
	for _, v := range nonNull {
		if _, ok := registry.SmartDateParse(v, "UK"); ok || datePattern.MatchString(v) {
			dates++
		}
	}
	if float64(dates) > n*0.5 {
		return "date"
	}

	allBool := true
	for _, v := range nonNull {
		if !boolVocabulary[strings.ToLower(strings.TrimSpace(v))] {
			allBool = false
			break
		}
	}
	if allBool {
		return "boolean"
	}
	return "string"
}

func (a *Analyst) aiAnalysis(ctx context.Context, sample *tabular.Table) (*aiResponse, error) {
	if a.client == nil {
		return nil, fmt.Errorf("no llm client configured")
	}
	var b strings.Builder
	b.WriteString("Analyze this data sample and provide your findings as JSON.\n\nCOLUMN INFORMATION:\n")
	for _, name := range sample.Columns {
		fmt.Fprintf(&b, "- %s: samples %v\n", name, sample.SampleValues(name, 5))
	}
	b.WriteString("\nDATA SAMPLE (CSV format):\n```csv\n")
	b.WriteString(toCSVString(sample, 20))
	b.WriteString("```\n\nAnalyze each column and return your findings as specified in your instructions.")

	text, err := a.client.GetTextResponse(ctx, llm.Request{System: systemPrompt, Prompt: b.String()})
	if err != nil {
		return nil, err
	}
	raw := []byte(llm.StripCodeFences(text))
	var resp aiResponse
	if err := llm.ValidateAndDecode(responseSchema, raw, &resp); err != nil {
		return nil, fmt.Errorf("analysis response: %w", err)
	}
	return &resp, nil
}

// mergeAI overlays AI findings on local columns, joined by exact column name.
func mergeAI(result *SourceAnalysis, ai *aiResponse) {
	byName := map[string]int{}
	for i, c := range ai.Columns {
		byName[c.ColumnName] = i
	}
	for i := range result.Columns {
		idx, ok := byName[result.Columns[i].ColumnName]
		if !ok {
			continue
		}
		aic := ai.Columns[idx]
		if aic.SemanticType != nil && *aic.SemanticType != "" {
			result.Columns[i].SemanticType = *aic.SemanticType
		}
		result.Columns[i].Issues = aic.Issues
		result.Columns[i].SuggestedFunctions = aic.SuggestedFunctions
	}
	for _, si := range ai.StructuralIssues {
		issue := StructuralIssue{IssueType: si.IssueType, Description: si.Description, Severity: si.Severity}
		if issue.IssueType == "" {
			issue.IssueType = "inconsistent_types"
		}
		if issue.Severity == "" {
			issue.Severity = "warning"
		}
		result.StructuralIssues = append(result.StructuralIssues, issue)
	}
	if ai.OverallQuality != "" {
		result.OverallQuality = ai.OverallQuality
	}
	result.PreprocessingSteps = ai.PreprocessingSteps
}

func toCSVString(t *tabular.Table, maxRows int) string {
	var b strings.Builder
	b.WriteString(strings.Join(t.Columns, ","))
	b.WriteString("\n")
	rows := t.NumRows()
	if rows > maxRows {
		rows = maxRows
	}
	for i := 0; i < rows; i++ {
		cells := make([]string, len(t.Columns))
		for j := range t.Columns {
			cells[j] = strings.ReplaceAll(tabular.CellString(t.Rows[i][j]), ",", " ")
		}
		b.WriteString(strings.Join(cells, ","))
		b.WriteString("\n")
	}
	return b.String()
}
