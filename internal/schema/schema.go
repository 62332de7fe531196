// Package schema defines target schemas: the shape the transformed output
// must conform to.
package schema

import "strings"

// DataType enumerates the value domains a target column can declare.
type DataType string

const (
	TypeString  DataType = "string"
	TypeInteger DataType = "integer"
	TypeFloat   DataType = "float"
	TypeDate    DataType = "date"
	TypeBoolean DataType = "boolean"
	TypeEmail   DataType = "email"
	TypePhone   DataType = "phone"
)

// TargetColumn is the definition of one column in a target schema.
type TargetColumn struct {
	Name          string   `json:"name"`
	DataType      DataType `json:"data_type"`
	Required      bool     `json:"required"`
	MaxLength     int      `json:"max_length,omitempty"`
	Pattern       string   `json:"pattern,omitempty"`
	AllowedValues []string `json:"allowed_values,omitempty"`
	Description   string   `json:"description,omitempty"`

	// Hints for the AI planner.
	CommonSourceNames  []string `json:"common_source_names,omitempty"`
	TransformationHint string   `json:"transformation_hint,omitempty"`
}

// TargetSchema is the complete definition of what the output should look like.
type TargetSchema struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description,omitempty"`
	Columns     []TargetColumn `json:"columns"`

	// Validation rules.
	UniqueColumns   []string `json:"unique_columns,omitempty"`
	RequiredColumns []string `json:"required_columns,omitempty"`
}

// Column returns the named column (case-insensitive), nil when absent.
func (s *TargetSchema) Column(name string) *TargetColumn {
	for i := range s.Columns {
		if strings.EqualFold(s.Columns[i].Name, name) {
			return &s.Columns[i]
		}
	}
	return nil
}

// Required returns all columns flagged required.
func (s *TargetSchema) Required() []TargetColumn {
	var out []TargetColumn
	for _, c := range s.Columns {
		if c.Required {
			out = append(out, c)
		}
	}
	return out
}

// Optional returns all columns not flagged required.
func (s *TargetSchema) Optional() []TargetColumn {
	var out []TargetColumn
	for _, c := range s.Columns {
		if !c.Required {
			out = append(out, c)
		}
	}
	return out
}

// ColumnNames returns the schema's column names in declaration order.
func (s *TargetSchema) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}
