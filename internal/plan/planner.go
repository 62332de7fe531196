package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tablemorph/tablemorph/internal/analyze"
	"github.com/tablemorph/tablemorph/internal/llm"
	"github.com/tablemorph/tablemorph/internal/schema"
)

const systemPrompt = `You are an expert Data Engineer Agent. Your goal is to create a transformation plan that maps source columns to target columns.

FUNCTION REGISTRY (available functions):
- SPLIT_FULL_NAME: Split full name into first/middle/last. Params: delimiter (auto|space|comma), culture (western|eastern), handle_single_name (first_name_only|last_name_only)
- REGEX_EXTRACT: Extract via regex. Params: pattern (regex string), group_index (int)
- CLEAN_WHITESPACE: Remove extra spaces. No params.
- SMART_DATE_PARSE: Parse dates. Params: ambiguity_preference (US|UK|ISO)
- FORMAT_DATE: Format dates. Params: target_format (strftime format)
- NORMALIZE_CURRENCY: Clean currency values. Params: currency_symbol (optional)
- MAP_VALUES: Map categories. Params: mapping_dict (object), default (string)
- CONDITIONAL_FILL: Fill empty with fallback. Params: fallback_col (string)
- NORMALIZE_PHONE: Normalize phone numbers. Params: region (IN|US|etc), format (E.164|NATIONAL|INTERNATIONAL)
- VALIDATE_EMAIL: Validate email format. No params (validation only).
- VALIDATE_GSTIN: Validate Indian GSTIN. No params (validation only).
- LOOKUP_PINCODE: Enrich pincode to city/state. Params: provider (optional)
- UPPERCASE, LOWERCASE, TITLECASE: Case conversion. No params.
- CONCATENATE: Join columns. Params: separator (string). Use input_cols for multiple columns.
- COMPUTE_DATE_DIFF: Difference in days (date1 - date2). Params: date2_col (string) OR use input_cols=[date1, date2].

RULES:
1. PREFER PREBUILT: Always use registry functions. Only mark "requires_user_input" for truly ambiguous cases.
2. BE EXPLICIT: For REGEX_EXTRACT, write the actual regex pattern.
3. DATA ENRICHMENT: If target needs City/State and source has Pincode, add enrichment.
4. COMPUTED COLUMNS: Check 'transformation_hint' in target schema.
   - For 'CONCATENATE', use action="transform", function="CONCATENATE", and input_cols=[col1, col2...].
   - For 'COMPUTE', use action="transform", function="COMPUTE_DATE_DIFF", input_cols=[date1, date2].
5. COLUMN MATCHING: Match columns by name similarity AND semantic type.
6. CONFIDENCE: Set confidence_score based on match quality (0.0-1.0).

OUTPUT: Return ONLY valid JSON with this structure:
{
  "transformation_id": "uuid",
  "confidence_score": 0.95,
  "column_mappings": [
    {"source_col": "Name", "target_col": "first_name", "action": "transform", "transform_id": "tf_01"}
  ],
  "transformations": [
    {"id": "tf_01", "function": "SPLIT_FULL_NAME", "input_col": "Name", "output_cols": ["first_name", "last_name"], "params": {"delimiter": "auto"}}
  ],
  "enrichments": [
    {"id": "en_01", "trigger_col": "Pincode", "target_cols": ["city", "state"], "api_service": "postal_code_lookup", "strategy": "cache_first_then_api"}
  ],
  "unmapped_source_cols": ["Column_X"],
  "unmapped_target_cols": ["middle_name"],
  "warnings": ["Phone numbers have mixed formats"],
  "requires_user_input": false,
  "user_questions": []
}

Do not include markdown or text outside the JSON.`

var responseSchema = map[string]any{
	"type":     "object",
	"required": []any{"column_mappings"},
	"properties": map[string]any{
		"transformation_id": map[string]any{"type": "string"},
		"confidence_score":  map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"column_mappings": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"source_col", "target_col"},
				"properties": map[string]any{
					"source_col":   map[string]any{"type": "string"},
					"target_col":   map[string]any{"type": "string"},
					"action":       map[string]any{"type": "string"},
					"transform_id": map[string]any{"type": []any{"string", "null"}},
				},
			},
		},
		"transformations": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"id", "function"},
				"properties": map[string]any{
					"id":          map[string]any{"type": "string"},
					"function":    map[string]any{"type": "string"},
					"input_col":   map[string]any{"type": []any{"string", "null"}},
					"input_cols":  map[string]any{"type": []any{"array", "null"}, "items": map[string]any{"type": "string"}},
					"output_col":  map[string]any{"type": []any{"string", "null"}},
					"output_cols": map[string]any{"type": []any{"array", "null"}, "items": map[string]any{"type": "string"}},
					"params":      map[string]any{"type": []any{"object", "null"}},
				},
			},
		},
		"enrichments": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"trigger_col", "target_cols"},
				"properties": map[string]any{
					"id":          map[string]any{"type": "string"},
					"trigger_col": map[string]any{"type": "string"},
					"target_cols": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"api_service": map[string]any{"type": "string"},
					"strategy":    map[string]any{"type": "string"},
				},
			},
		},
		"unmapped_source_cols": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"unmapped_target_cols": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"warnings":             map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"requires_user_input":  map[string]any{"type": "boolean"},
		"user_questions":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
}

// Planner asks the AI for a transformation plan and falls back to direct
// name matching when the AI fails.
type Planner struct {
	client llm.Client
	logger *slog.Logger
}

func NewPlanner(client llm.Client, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{client: client, logger: logger}
}

// Generate produces a plan for the analyzed source against the target
// schema. AI failure never fails the call: the fallback plan maps columns by
// normalized name and carries a low confidence score.
func (p *Planner) Generate(ctx context.Context, source *analyze.SourceAnalysis, target *schema.TargetSchema) (*Plan, error) {
	start := time.Now()

	pl, err := p.aiPlan(ctx, source, target)
	if err != nil {
		p.logger.Warn("plan.ai_failed", "schema", target.Name, "error", err)
		pl = fallbackPlan(source, target)
	}
	if pl.TransformationID == "" {
		pl.TransformationID = uuid.NewString()
	}

	p.logger.Info("plan.ok",
		"schema", target.Name,
		"confidence", pl.ConfidenceScore,
		"mappings", len(pl.ColumnMappings),
		"transformations", len(pl.Transformations),
		"enrichments", len(pl.Enrichments),
		"requires_user_input", pl.RequiresUserInput,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return pl, nil
}

func (p *Planner) aiPlan(ctx context.Context, source *analyze.SourceAnalysis, target *schema.TargetSchema) (*Plan, error) {
	if p.client == nil {
		return nil, fmt.Errorf("no llm client configured")
	}

	prompt := fmt.Sprintf(`Create a transformation plan to convert the source data to the target schema.

SOURCE SCHEMA ANALYSIS:
%s

TARGET SCHEMA:
%s

CRITICAL INSTRUCTIONS:
1. Look for 'transformation_hint' in the TARGET SCHEMA columns.
2. If a hint exists (e.g., CONCATENATE, COMPUTE), you MUST create a 'transformations' entry for it.
3. Do not just map columns directly if a transformation is required.
4. For computed columns, set action="transform" in column_mappings.

Generate the transformation plan as JSON.`, formatSource(source), formatTarget(target))

	text, err := p.client.GetTextResponse(ctx, llm.Request{System: systemPrompt, Prompt: prompt})
	if err != nil {
		return nil, err
	}
	raw := []byte(llm.StripCodeFences(text))
	var pl Plan
	if err := llm.ValidateAndDecode(responseSchema, raw, &pl); err != nil {
		return nil, fmt.Errorf("plan response: %w", err)
	}
	applyDefaults(&pl)
	return &pl, nil
}

// applyDefaults fills the optional fields the AI may omit.
func applyDefaults(pl *Plan) {
	if pl.ConfidenceScore == 0 {
		pl.ConfidenceScore = 0.5
	}
	for i := range pl.ColumnMappings {
		if pl.ColumnMappings[i].Action == "" {
			pl.ColumnMappings[i].Action = "direct"
		}
	}
	for i := range pl.Enrichments {
		if pl.Enrichments[i].Strategy == "" {
			pl.Enrichments[i].Strategy = "cache_first_then_api"
		}
	}
}

func formatSource(source *analyze.SourceAnalysis) string {
	type colInfo struct {
		Name               string   `json:"name"`
		Type               string   `json:"type"`
		Semantic           string   `json:"semantic,omitempty"`
		Samples            []string `json:"samples"`
		Completeness       string   `json:"completeness"`
		SuggestedFunctions []string `json:"suggested_functions,omitempty"`
	}
	type issueInfo struct {
		Type string `json:"type"`
		Desc string `json:"desc"`
	}

	cols := make([]colInfo, 0, len(source.Columns))
	for _, c := range source.Columns {
		samples := c.SampleValues
		if len(samples) > 3 {
			samples = samples[:3]
		}
		cols = append(cols, colInfo{
			Name:               c.ColumnName,
			Type:               c.InferredType,
			Semantic:           c.SemanticType,
			Samples:            samples,
			Completeness:       fmt.Sprintf("%.0f%%", c.Completeness*100),
			SuggestedFunctions: c.SuggestedFunctions,
		})
	}
	issues := make([]issueInfo, 0, len(source.StructuralIssues))
	for _, i := range source.StructuralIssues {
		issues = append(issues, issueInfo{Type: i.IssueType, Desc: i.Description})
	}

	out, _ := json.MarshalIndent(map[string]any{
		"file_name":  source.FileName,
		"total_rows": source.TotalRows,
		"columns":    cols,
		"issues":     issues,
	}, "", "  ")
	return string(out)
}

func formatTarget(target *schema.TargetSchema) string {
	type colInfo struct {
		Name               string   `json:"name"`
		Type               string   `json:"type"`
		Required           bool     `json:"required"`
		Pattern            string   `json:"pattern,omitempty"`
		CommonNames        []string `json:"common_names,omitempty"`
		TransformationHint string   `json:"transformation_hint,omitempty"`
	}
	cols := make([]colInfo, 0, len(target.Columns))
	for _, c := range target.Columns {
		aliases := c.CommonSourceNames
		if len(aliases) > 5 {
			aliases = aliases[:5]
		}
		cols = append(cols, colInfo{
			Name:               c.Name,
			Type:               string(c.DataType),
			Required:           c.Required,
			Pattern:            c.Pattern,
			CommonNames:        aliases,
			TransformationHint: c.TransformationHint,
		})
	}
	out, _ := json.MarshalIndent(map[string]any{
		"name":             target.Name,
		"columns":          cols,
		"required_columns": target.RequiredColumns,
	}, "", "  ")
	return string(out)
}

// fallbackPlan maps columns whose normalized names match exactly, directly
// or through a known alias. No transformations, no enrichments.
func fallbackPlan(source *analyze.SourceAnalysis, target *schema.TargetSchema) *Plan {
	var mappings []ColumnMapping
	for _, sc := range source.Columns {
		sourceNorm := normalize(sc.ColumnName)
		for i := range target.Columns {
			tc := &target.Columns[i]
			matched := sourceNorm == normalize(tc.Name)
			if !matched {
				for _, alias := range tc.CommonSourceNames {
					if sourceNorm == normalize(alias) {
						matched = true
						break
					}
				}
			}
			if matched {
				mappings = append(mappings, ColumnMapping{
					SourceCol: sc.ColumnName,
					TargetCol: tc.Name,
					Action:    "direct",
				})
				break
			}
		}
	}
	return &Plan{
		TransformationID: uuid.NewString(),
		ConfidenceScore:  0.3,
		ColumnMappings:   mappings,
		Warnings:         []string{"AI planning failed - using basic name matching"},
	}
}

func normalize(name string) string {
	return strings.ReplaceAll(strings.ReplaceAll(strings.ToLower(name), "_", ""), " ", "")
}
