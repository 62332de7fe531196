// Package validate checks transformed tables against target schemas and
// produces quality reports. Validation is fully deterministic.
package validate

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tablemorph/tablemorph/internal/registry"
	"github.com/tablemorph/tablemorph/internal/schema"
	"github.com/tablemorph/tablemorph/internal/tabular"
)

// Error is one cell-level finding. Severity is "error" or "warning".
type Error struct {
	RowIndex     int    `json:"row_index"`
	Column       string `json:"column"`
	Issue        string `json:"issue"`
	Value        string `json:"value,omitempty"`
	Severity     string `json:"severity"`
	SuggestedFix string `json:"suggested_fix,omitempty"`
}

// ColumnValidation aggregates per-column counts.
type ColumnValidation struct {
	ColumnName     string  `json:"column_name"`
	ValidCount     int     `json:"valid_count"`
	InvalidCount   int     `json:"invalid_count"`
	NullCount      int     `json:"null_count"`
	ValidationRate float64 `json:"validation_rate"`
}

// Report is the full validation outcome for one table.
type Report struct {
	Status            string             `json:"status"`
	TotalRows         int                `json:"total_rows"`
	SuccessfulRows    int                `json:"successful_rows"`
	FailedRows        int                `json:"failed_rows"`
	WarningRows       int                `json:"warning_rows"`
	QualityScore      float64            `json:"quality_score"`
	Errors            []Error            `json:"errors,omitempty"`
	ColumnValidations []ColumnValidation `json:"column_validations,omitempty"`
	Summary           string             `json:"summary"`
}

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
	nonDigit     = regexp.MustCompile(`\D`)
)

// Validator validates tables against a target schema.
type Validator struct {
	logger *slog.Logger
}

func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{logger: logger}
}

// Validate checks every schema column against the table. A missing required
// column is an error on every row. Row counts, the quality score and the
// status are derived from the collected findings.
func (v *Validator) Validate(table *tabular.Table, target *schema.TargetSchema) *Report {
	start := time.Now()
	var errs []Error
	var columns []ColumnValidation

	for i := range target.Columns {
		tc := &target.Columns[i]
		if !table.HasColumn(tc.Name) {
			if tc.Required {
				for row := 0; row < table.NumRows(); row++ {
					errs = append(errs, Error{
						RowIndex: row,
						Column:   tc.Name,
						Issue:    fmt.Sprintf("Required column '%s' is missing", tc.Name),
						Severity: "error",
					})
				}
			}
			continue
		}
		colErrs, cv := validateColumn(table.Column(tc.Name), tc)
		errs = append(errs, colErrs...)
		columns = append(columns, cv)
	}

	errorRows := map[int]bool{}
	warningRows := map[int]bool{}
	for _, e := range errs {
		if e.Severity == "error" {
			errorRows[e.RowIndex] = true
		} else {
			warningRows[e.RowIndex] = true
		}
	}
	warnOnly := 0
	for row := range warningRows {
		if !errorRows[row] {
			warnOnly++
		}
	}

	report := &Report{
		TotalRows:         table.NumRows(),
		SuccessfulRows:    table.NumRows() - len(errorRows),
		FailedRows:        len(errorRows),
		WarningRows:       warnOnly,
		Errors:            errs,
		ColumnValidations: columns,
	}
	report.QualityScore = qualityScore(report)
	report.Status = status(report)
	report.Summary = summary(report)

	v.logger.Info("validate.ok",
		"schema", target.Name,
		"status", report.Status,
		"rows", report.TotalRows,
		"failed_rows", report.FailedRows,
		"quality_score", report.QualityScore,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return report
}

// validateColumn runs type, pattern and allowed-value checks on every cell.
// Email and numeric failures are errors; phone and date failures only warn.
func validateColumn(values []any, tc *schema.TargetColumn) ([]Error, ColumnValidation) {
	var errs []Error
	valid, invalid, nulls := 0, 0, 0

	var pattern *regexp.Regexp
	if tc.Pattern != "" {
		pattern, _ = regexp.Compile(tc.Pattern)
	}

	for idx, value := range values {
		if tabular.IsEmpty(value) {
			nulls++
			if tc.Required {
				errs = append(errs, Error{
					RowIndex: idx,
					Column:   tc.Name,
					Issue:    "Required field is empty",
					Severity: "error",
				})
				invalid++
			} else {
				valid++
			}
			continue
		}

		valueStr := strings.TrimSpace(tabular.CellString(value))
		isValid := true

		switch tc.DataType {
		case schema.TypeEmail:
			if !emailPattern.MatchString(valueStr) {
				errs = append(errs, Error{
					RowIndex:     idx,
					Column:       tc.Name,
					Issue:        "Invalid email format",
					Value:        valueStr,
					Severity:     "error",
					SuggestedFix: "Check email format (user@domain.com)",
				})
				isValid = false
			}
		case schema.TypePhone:
			if !validPhone(valueStr) {
				errs = append(errs, Error{
					RowIndex:     idx,
					Column:       tc.Name,
					Issue:        "Invalid phone number",
					Value:        valueStr,
					Severity:     "warning",
					SuggestedFix: "Ensure valid phone number format",
				})
			}
		case schema.TypeInteger, schema.TypeFloat:
			if !validNumeric(valueStr) {
				errs = append(errs, Error{
					RowIndex: idx,
					Column:   tc.Name,
					Issue:    fmt.Sprintf("Invalid %s value", tc.DataType),
					Value:    valueStr,
					Severity: "error",
				})
				isValid = false
			}
		case schema.TypeDate:
			if !validDate(value, valueStr) {
				errs = append(errs, Error{
					RowIndex: idx,
					Column:   tc.Name,
					Issue:    "Invalid date format",
					Value:    valueStr,
					Severity: "warning",
				})
			}
		}

		if pattern != nil && isValid && !pattern.MatchString(valueStr) {
			errs = append(errs, Error{
				RowIndex: idx,
				Column:   tc.Name,
				Issue:    "Value doesn't match required pattern",
				Value:    valueStr,
				Severity: "error",
			})
			isValid = false
		}

		if len(tc.AllowedValues) > 0 && isValid && !contains(tc.AllowedValues, valueStr) {
			shown := tc.AllowedValues
			if len(shown) > 5 {
				shown = shown[:5]
			}
			errs = append(errs, Error{
				RowIndex: idx,
				Column:   tc.Name,
				Issue:    fmt.Sprintf("Value not in allowed list: %v", shown),
				Value:    valueStr,
				Severity: "error",
			})
			isValid = false
		}

		if isValid {
			valid++
		} else {
			invalid++
		}
	}

	rate := 0.0
	if len(values) > 0 {
		rate = float64(valid) / float64(len(values))
	}
	return errs, ColumnValidation{
		ColumnName:     tc.Name,
		ValidCount:     valid,
		InvalidCount:   invalid,
		NullCount:      nulls,
		ValidationRate: rate,
	}
}

// validPhone strips formatting and accepts 8 to 15 digits.
func validPhone(value string) bool {
	digits := nonDigit.ReplaceAllString(value, "")
	return len(digits) >= 8 && len(digits) <= 15
}

// validNumeric accepts anything that parses as a number once thousands
// separators are stripped. Integer columns tolerate fractional values.
func validNumeric(value string) bool {
	_, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	return err == nil
}

func validDate(value any, valueStr string) bool {
	if _, ok := value.(time.Time); ok {
		return true
	}
	_, ok := registry.SmartDateParse(valueStr, "UK")
	return ok
}

func qualityScore(r *Report) float64 {
	if r.TotalRows == 0 {
		return 0
	}
	return float64(r.SuccessfulRows) / float64(r.TotalRows) * 100
}

// status tiers the outcome: success with no failed rows, partial while fewer
// than half fail, failed otherwise.
func status(r *Report) string {
	switch {
	case r.FailedRows == 0:
		return "success"
	case float64(r.FailedRows) < float64(r.TotalRows)*0.5:
		return "partial"
	default:
		return "failed"
	}
}

func summary(r *Report) string {
	lines := []string{
		fmt.Sprintf("Validation %s", strings.ToUpper(r.Status)),
		fmt.Sprintf("Total rows: %d", r.TotalRows),
		fmt.Sprintf("Successful: %d (%.1f%%)", r.SuccessfulRows, r.QualityScore),
	}
	if r.FailedRows > 0 {
		lines = append(lines, fmt.Sprintf("Failed: %d", r.FailedRows))
	}
	if r.WarningRows > 0 {
		lines = append(lines, fmt.Sprintf("Warnings: %d", r.WarningRows))
	}
	return strings.Join(lines, " | ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
