package analyze

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablemorph/tablemorph/internal/llm"
	"github.com/tablemorph/tablemorph/internal/tabular"
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

func sampleTable() *tabular.Table {
	return tabular.NewTable(
		[]string{"Name", "Amount", "Date", "Active"},
		[][]any{
			{"John Doe", "100", "25/12/2024", "yes"},
			{"Jane Smith", "250.5", "01/01/2025", "no"},
			{"", "300", "15/03/2025", "yes"},
		},
	)
}

func TestInferType(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"integers", []string{"1", "2", "3", "4", "5"}, "integer"},
		{"floats", []string{"1.5", "2.25", "3.75", "4.5", "5.5"}, "float"},
		{"comma separated numbers", []string{"1,000", "25,000", "3,500", "9,999", "12,345"}, "integer"},
		{"dates", []string{"25/12/2024", "01/01/2025"}, "date"},
		{"booleans", []string{"yes", "no", "Y", "N"}, "boolean"},
		{"strings", []string{"Mumbai", "Delhi"}, "string"},
		{"empty", nil, "empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferType(tt.values))
		})
	}
}

func TestLocalAnalysisStatistics(t *testing.T) {
	columns := localAnalysis(sampleTable())
	require.Len(t, columns, 4)

	name := columns[0]
	assert.Equal(t, "Name", name.ColumnName)
	assert.Equal(t, 3, name.TotalValues)
	assert.Equal(t, 1, name.NullCount)
	assert.Equal(t, 2, name.UniqueCount)
	assert.InDelta(t, 2.0/3.0, name.Completeness, 1e-9)
	assert.Equal(t, []string{"John Doe", "Jane Smith"}, name.SampleValues)

	assert.Equal(t, "float", columns[1].InferredType)
	assert.Equal(t, "date", columns[2].InferredType)
	assert.Equal(t, "boolean", columns[3].InferredType)
}

func TestAnalyzeMergesAIFindings(t *testing.T) {
	client := &fakeClient{text: `{
		"columns": [
			{"column_name": "Name", "inferred_type": "string", "semantic_type": "full_name",
			 "issues": ["mixed formats"], "suggested_functions": ["SPLIT_FULL_NAME"]}
		],
		"structural_issues": [
			{"issue_type": "empty_rows", "description": "blank row 3", "severity": "info"}
		],
		"overall_quality": "good",
		"preprocessing_steps": ["drop empty rows"]
	}`}
	a := NewAnalyst(client, nil)

	res, err := a.Analyze(context.Background(), sampleTable(), "input.xlsx", 50)
	require.NoError(t, err)
	assert.Equal(t, "input.xlsx", res.FileName)
	assert.Equal(t, 3, res.TotalRows)
	assert.Equal(t, "good", res.OverallQuality)
	assert.Equal(t, []string{"drop empty rows"}, res.PreprocessingSteps)

	require.Len(t, res.StructuralIssues, 1)
	assert.Equal(t, "empty_rows", res.StructuralIssues[0].IssueType)

	assert.Equal(t, "full_name", res.Columns[0].SemanticType)
	assert.Equal(t, []string{"SPLIT_FULL_NAME"}, res.Columns[0].SuggestedFunctions)
	// Local statistics stay authoritative for untouched columns.
	assert.Equal(t, "float", res.Columns[1].InferredType)
	assert.Empty(t, res.Columns[1].SemanticType)
}

func TestAnalyzeSurvivesAIFailure(t *testing.T) {
	a := NewAnalyst(&fakeClient{err: errors.New("api down")}, nil)

	res, err := a.Analyze(context.Background(), sampleTable(), "input.xlsx", 50)
	require.NoError(t, err)
	assert.Equal(t, "fair", res.OverallQuality)
	assert.Len(t, res.Columns, 4)
	assert.Empty(t, res.Columns[0].SemanticType)
}

func TestAnalyzeSurvivesMalformedAIResponse(t *testing.T) {
	a := NewAnalyst(&fakeClient{text: "I think the data looks fine!"}, nil)

	res, err := a.Analyze(context.Background(), sampleTable(), "input.xlsx", 50)
	require.NoError(t, err)
	assert.Equal(t, "fair", res.OverallQuality)
}

func TestAnalyzeRespectsSampleLimit(t *testing.T) {
	rows := make([][]any, 100)
	for i := range rows {
		rows[i] = []any{"v"}
	}
	table := tabular.NewTable([]string{"col"}, rows)
	a := NewAnalyst(&fakeClient{err: errors.New("skip ai")}, nil)

	res, err := a.Analyze(context.Background(), table, "big.csv", 10)
	require.NoError(t, err)
	assert.Equal(t, 100, res.TotalRows)
	assert.Equal(t, 10, res.SampleRowsAnalyzed)
}
