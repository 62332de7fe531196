// Package plan generates transformation plans that map analyzed source
// tables onto target schemas.
package plan

// ColumnMapping assigns one source column to one target column. Action is
// "direct", "transform" or "omit"; transform mappings reference a
// transformation by id.
type ColumnMapping struct {
	SourceCol   string `json:"source_col"`
	TargetCol   string `json:"target_col"`
	Action      string `json:"action"`
	TransformID string `json:"transform_id,omitempty"`
}

// Transformation is one registry function invocation. Single-input functions
// use InputCol, multi-input functions use InputCols. Record-returning
// functions list their outputs in OutputCols.
type Transformation struct {
	ID         string         `json:"id"`
	Function   string         `json:"function"`
	InputCol   string         `json:"input_col,omitempty"`
	InputCols  []string       `json:"input_cols,omitempty"`
	OutputCol  string         `json:"output_col,omitempty"`
	OutputCols []string       `json:"output_cols,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
}

// Enrichment derives target columns from an external lookup keyed on a
// trigger column.
type Enrichment struct {
	ID         string   `json:"id"`
	TriggerCol string   `json:"trigger_col"`
	TargetCols []string `json:"target_cols"`
	APIService string   `json:"api_service"`
	Strategy   string   `json:"strategy"`
}

// Plan is a complete, executable transformation plan.
type Plan struct {
	TransformationID   string           `json:"transformation_id"`
	ConfidenceScore    float64          `json:"confidence_score"`
	ColumnMappings     []ColumnMapping  `json:"column_mappings"`
	Transformations    []Transformation `json:"transformations"`
	Enrichments        []Enrichment     `json:"enrichments"`
	UnmappedSourceCols []string         `json:"unmapped_source_cols,omitempty"`
	UnmappedTargetCols []string         `json:"unmapped_target_cols,omitempty"`
	Warnings           []string         `json:"warnings,omitempty"`
	RequiresUserInput  bool             `json:"requires_user_input"`
	UserQuestions      []string         `json:"user_questions,omitempty"`
}

// Transform returns the transformation with the given id, or nil.
func (p *Plan) Transform(id string) *Transformation {
	for i := range p.Transformations {
		if p.Transformations[i].ID == id {
			return &p.Transformations[i]
		}
	}
	return nil
}
