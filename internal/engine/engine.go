// Package engine executes transformation plans deterministically. It is not
// an AI component: it only runs functions the plan names, in three fixed
// phases (transformations, enrichments, column projection).
package engine

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tablemorph/tablemorph/internal/plan"
	"github.com/tablemorph/tablemorph/internal/registry"
	"github.com/tablemorph/tablemorph/internal/tabular"
)

// apiServiceFuncs maps plan enrichment service names to registry functions.
// Unknown services fall back to the upper-cased service name.
var apiServiceFuncs = map[string]string{
	"postal_code_lookup": "LOOKUP_PINCODE",
	"pincode_lookup":     "LOOKUP_PINCODE",
}

// Engine applies a plan to a table. Per-step failures never abort the run;
// they accumulate as warnings and the remaining steps continue.
type Engine struct {
	registry *registry.Registry
	logger   *slog.Logger
}

func New(reg *registry.Registry, logger *slog.Logger) *Engine {
	if reg == nil {
		reg = registry.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{registry: reg, logger: logger}
}

// Execute runs the plan on a copy of the table and returns the projected
// result plus any step warnings. The input table is never modified.
func (e *Engine) Execute(table *tabular.Table, pl *plan.Plan) (*tabular.Table, []string, error) {
	start := time.Now()
	work := table.Clone()
	var warnings []string

	for _, t := range pl.Transformations {
		if err := e.applyTransformation(work, &t); err != nil {
			warnings = append(warnings, fmt.Sprintf("Transformation %s failed: %v", t.ID, err))
		}
	}
	for _, en := range pl.Enrichments {
		if err := e.applyEnrichment(work, &en); err != nil {
			warnings = append(warnings, fmt.Sprintf("Enrichment %s failed: %v", en.ID, err))
		}
	}
	result := project(work, pl)

	e.logger.Info("engine.ok",
		"plan", pl.TransformationID,
		"rows", result.NumRows(),
		"cols", result.NumCols(),
		"warnings", len(warnings),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, warnings, nil
}

// applyTransformation runs one step over every row. Single-input steps read
// InputCol; multi-input steps collect InputCols into the values slice.
func (e *Engine) applyTransformation(work *tabular.Table, t *plan.Transformation) error {
	if !e.registry.Has(t.Function) {
		return fmt.Errorf("unknown function: %s", t.Function)
	}

	switch {
	case t.InputCol != "" && work.HasColumn(t.InputCol):
		if e.registry.ReturnsRecord(t.Function) {
			return e.applyRecordStep(work, t)
		}
		return e.applyScalarStep(work, t)

	case len(t.InputCols) > 0:
		return e.applyMultiColStep(work, t)
	}
	// Missing input column: the projection phase falls back to a direct
	// copy, so this is not an error.
	return nil
}

// applyRecordStep expands a record-returning function into output columns.
// Each listed output column receives the matching field, "" when the field is
// absent. A single OutputCol receives the record's leading field.
func (e *Engine) applyRecordStep(work *tabular.Table, t *plan.Transformation) error {
	results := make([]registry.Result, work.NumRows())
	for i := 0; i < work.NumRows(); i++ {
		res, err := e.registry.Execute(t.Function, registry.Args{
			Value:  work.Cell(i, t.InputCol),
			Params: t.Params,
		})
		if err != nil {
			return err
		}
		results[i] = res
	}

	if len(t.OutputCols) > 0 {
		for _, col := range t.OutputCols {
			work.AddColumn(col)
			for i := 0; i < work.NumRows(); i++ {
				v, ok := results[i].Fields[col]
				if !ok {
					v = ""
				}
				work.SetCell(i, col, v)
			}
		}
		return nil
	}
	if t.OutputCol != "" {
		work.AddColumn(t.OutputCol)
		for i := 0; i < work.NumRows(); i++ {
			work.SetCell(i, t.OutputCol, results[i].First())
		}
	}
	return nil
}

func (e *Engine) applyScalarStep(work *tabular.Table, t *plan.Transformation) error {
	outputCol := t.OutputCol
	if outputCol == "" {
		outputCol = t.InputCol
	}
	work.AddColumn(outputCol)

	// CONDITIONAL_FILL references sibling columns, so it gets the row.
	needsRow := strings.EqualFold(t.Function, "CONDITIONAL_FILL")

	for i := 0; i < work.NumRows(); i++ {
		args := registry.Args{
			Value:  work.Cell(i, t.InputCol),
			Params: t.Params,
		}
		if needsRow {
			args.Row = work.Row(i)
		}
		res, err := e.registry.Execute(t.Function, args)
		if err != nil {
			return err
		}
		work.SetCell(i, outputCol, res.First())
	}
	return nil
}

// applyMultiColStep feeds several input columns into one output column
// (CONCATENATE, COMPUTE_DATE_DIFF).
func (e *Engine) applyMultiColStep(work *tabular.Table, t *plan.Transformation) error {
	if t.OutputCol == "" {
		return fmt.Errorf("multi-column step %s has no output_col", t.ID)
	}
	work.AddColumn(t.OutputCol)

	for i := 0; i < work.NumRows(); i++ {
		var values []any
		for _, c := range t.InputCols {
			if work.HasColumn(c) {
				values = append(values, work.Cell(i, c))
			}
		}
		res, err := e.registry.Execute(t.Function, registry.Args{
			Values: values,
			Row:    work.Row(i),
			Params: t.Params,
		})
		if err != nil {
			return err
		}
		work.SetCell(i, t.OutputCol, res.First())
	}
	return nil
}

// applyEnrichment resolves the service name to a registry function and
// expands the result record into the enrichment's target columns. Record
// fields are matched case-insensitively.
func (e *Engine) applyEnrichment(work *tabular.Table, en *plan.Enrichment) error {
	if !work.HasColumn(en.TriggerCol) {
		return nil
	}
	funcName, ok := apiServiceFuncs[en.APIService]
	if !ok {
		funcName = strings.ToUpper(en.APIService)
	}
	if !e.registry.Has(funcName) {
		return fmt.Errorf("unknown enrichment service: %s", en.APIService)
	}

	results := make([]registry.Result, work.NumRows())
	for i := 0; i < work.NumRows(); i++ {
		res, err := e.registry.Execute(funcName, registry.Args{
			Value: work.Cell(i, en.TriggerCol),
		})
		if err != nil {
			return err
		}
		results[i] = res
	}

	for _, col := range en.TargetCols {
		work.AddColumn(col)
		for i := 0; i < work.NumRows(); i++ {
			work.SetCell(i, col, recordField(results[i], col))
		}
	}
	return nil
}

// recordField finds a field matching the column name, lower-cased first then
// exact, "" when absent. Scalar results contribute nothing.
func recordField(res registry.Result, col string) any {
	if res.Kind != registry.KindRecord {
		return ""
	}
	if v, ok := res.Fields[strings.ToLower(col)]; ok {
		return v
	}
	if v, ok := res.Fields[col]; ok {
		return v
	}
	return ""
}

// project builds the final table from the plan's column mappings. Direct
// mappings copy the source column, falling back to a same-named transformed
// column. Transform mappings prefer the transformed column, falling back to
// the source. Enrichment-created columns not named in mappings are appended.
// With no mappings at all the intermediate table passes through unchanged.
func project(work *tabular.Table, pl *plan.Plan) *tabular.Table {
	out := tabular.NewTable(nil, nil)
	for i := 0; i < work.NumRows(); i++ {
		out.Rows = append(out.Rows, nil)
	}
	copyColumn := func(target, from string) {
		idx := out.AddColumn(target)
		values := work.Column(from)
		for i := range out.Rows {
			out.Rows[i][idx] = values[i]
		}
	}

	for _, m := range pl.ColumnMappings {
		if m.Action == "skip" || m.Action == "omit" {
			continue
		}
		switch m.Action {
		case "transform":
			if work.HasColumn(m.TargetCol) {
				copyColumn(m.TargetCol, m.TargetCol)
			} else if work.HasColumn(m.SourceCol) {
				copyColumn(m.TargetCol, m.SourceCol)
			}
		default: // direct
			if work.HasColumn(m.SourceCol) {
				copyColumn(m.TargetCol, m.SourceCol)
			} else if work.HasColumn(m.TargetCol) {
				copyColumn(m.TargetCol, m.TargetCol)
			}
		}
	}

	mapped := map[string]bool{}
	for _, m := range pl.ColumnMappings {
		mapped[m.TargetCol] = true
	}
	for _, col := range work.Columns {
		if mapped[col] || out.HasColumn(col) {
			continue
		}
		for _, en := range pl.Enrichments {
			if containsString(en.TargetCols, col) {
				copyColumn(col, col)
				break
			}
		}
	}

	if out.NumCols() == 0 {
		return work
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
