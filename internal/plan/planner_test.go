package plan

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablemorph/tablemorph/internal/analyze"
	"github.com/tablemorph/tablemorph/internal/llm"
	"github.com/tablemorph/tablemorph/internal/schema"
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

func sourceAnalysis() *analyze.SourceAnalysis {
	return &analyze.SourceAnalysis{
		FileName:  "input.xlsx",
		TotalRows: 10,
		Columns: []analyze.ColumnAnalysis{
			{ColumnName: "Customer Name", InferredType: "string", Completeness: 1.0},
			{ColumnName: "Mobile", InferredType: "string", Completeness: 0.9},
			{ColumnName: "Internal Ref", InferredType: "string", Completeness: 1.0},
		},
	}
}

func contactSchema() *schema.TargetSchema {
	return &schema.TargetSchema{
		Name: "contact",
		Columns: []schema.TargetColumn{
			{Name: "name", DataType: schema.TypeString, Required: true,
				CommonSourceNames: []string{"customer_name", "full_name"}},
			{Name: "phone", DataType: schema.TypePhone,
				CommonSourceNames: []string{"mobile", "contact_no"}},
		},
		RequiredColumns: []string{"name"},
	}
}

func TestGenerateUsesAIPlan(t *testing.T) {
	client := &fakeClient{text: "```json\n" + `{
		"transformation_id": "plan-1",
		"confidence_score": 0.92,
		"column_mappings": [
			{"source_col": "Customer Name", "target_col": "name", "action": "transform", "transform_id": "tf_01"},
			{"source_col": "Mobile", "target_col": "phone"}
		],
		"transformations": [
			{"id": "tf_01", "function": "CLEAN_WHITESPACE", "input_col": "Customer Name", "output_col": "name"}
		],
		"enrichments": [
			{"id": "en_01", "trigger_col": "Pincode", "target_cols": ["city", "state"], "api_service": "postal_code_lookup"}
		],
		"unmapped_source_cols": ["Internal Ref"]
	}` + "\n```"}
	p := NewPlanner(client, nil)

	pl, err := p.Generate(context.Background(), sourceAnalysis(), contactSchema())
	require.NoError(t, err)
	assert.Equal(t, "plan-1", pl.TransformationID)
	assert.Equal(t, 0.92, pl.ConfidenceScore)
	require.Len(t, pl.ColumnMappings, 2)
	// Omitted actions default to direct.
	assert.Equal(t, "direct", pl.ColumnMappings[1].Action)
	// Omitted enrichment strategies default to cache-first.
	require.Len(t, pl.Enrichments, 1)
	assert.Equal(t, "cache_first_then_api", pl.Enrichments[0].Strategy)
	assert.Equal(t, []string{"Internal Ref"}, pl.UnmappedSourceCols)
	assert.Empty(t, pl.Warnings)
}

func TestGenerateFallsBackOnAIError(t *testing.T) {
	p := NewPlanner(&fakeClient{err: errors.New("api down")}, nil)

	pl, err := p.Generate(context.Background(), sourceAnalysis(), contactSchema())
	require.NoError(t, err)
	assert.Equal(t, 0.3, pl.ConfidenceScore)
	assert.NotEmpty(t, pl.TransformationID)
	assert.Contains(t, pl.Warnings, "AI planning failed - using basic name matching")
}

func TestGenerateFallsBackOnMalformedResponse(t *testing.T) {
	p := NewPlanner(&fakeClient{text: "here is your plan: map everything"}, nil)

	pl, err := p.Generate(context.Background(), sourceAnalysis(), contactSchema())
	require.NoError(t, err)
	assert.Equal(t, 0.3, pl.ConfidenceScore)
}

func TestGenerateFallsBackOnSchemaViolation(t *testing.T) {
	// Valid JSON missing the required column_mappings key.
	p := NewPlanner(&fakeClient{text: `{"confidence_score": 0.9}`}, nil)

	pl, err := p.Generate(context.Background(), sourceAnalysis(), contactSchema())
	require.NoError(t, err)
	assert.Contains(t, pl.Warnings, "AI planning failed - using basic name matching")
}

func TestFallbackPlanMatchesNamesAndAliases(t *testing.T) {
	pl := fallbackPlan(sourceAnalysis(), contactSchema())

	require.Len(t, pl.ColumnMappings, 2)
	assert.Equal(t, ColumnMapping{SourceCol: "Customer Name", TargetCol: "name", Action: "direct"}, pl.ColumnMappings[0])
	assert.Equal(t, ColumnMapping{SourceCol: "Mobile", TargetCol: "phone", Action: "direct"}, pl.ColumnMappings[1])
	assert.Empty(t, pl.Transformations)
	assert.Empty(t, pl.Enrichments)
}

func TestApplyDefaults(t *testing.T) {
	pl := &Plan{
		ColumnMappings: []ColumnMapping{{SourceCol: "a", TargetCol: "b"}},
		Enrichments:    []Enrichment{{TriggerCol: "Pincode", TargetCols: []string{"city"}}},
	}
	applyDefaults(pl)
	assert.Equal(t, 0.5, pl.ConfidenceScore)
	assert.Equal(t, "direct", pl.ColumnMappings[0].Action)
	assert.Equal(t, "cache_first_then_api", pl.Enrichments[0].Strategy)
}

func TestTransformLookup(t *testing.T) {
	pl := &Plan{Transformations: []Transformation{{ID: "tf_01", Function: "TRIM"}}}
	require.NotNil(t, pl.Transform("tf_01"))
	assert.Equal(t, "TRIM", pl.Transform("tf_01").Function)
	assert.Nil(t, pl.Transform("missing"))
}
