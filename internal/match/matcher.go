// Package match scores detected tables against target schemas and picks the
// best candidate for transformation.
package match

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/tablemorph/tablemorph/internal/detect"
	"github.com/tablemorph/tablemorph/internal/schema"
)

// Similarity thresholds.
const (
	HighMatchThreshold     = 0.7
	ModerateMatchThreshold = 0.4
)

// ColumnPair is one source-to-target column assignment.
type ColumnPair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// TableMatch is the score of one table against the target schema.
type TableMatch struct {
	TableID            string       `json:"table_id"`
	TargetSchemaName   string       `json:"target_schema_name"`
	MatchScore         float64      `json:"match_score"`
	MatchedColumns     []ColumnPair `json:"matched_columns"`
	UnmatchedSourceCol []string     `json:"unmatched_source_cols"`
	UnmatchedTargetCol []string     `json:"unmatched_target_cols"`
}

// Result ranks every detected table against the schema.
type Result struct {
	TargetSchemaName      string       `json:"target_schema_name"`
	Matches               []TableMatch `json:"matches"` // sorted by score, best first
	BestMatchTableID      string       `json:"best_match_table_id,omitempty"`
	RequiresUserSelection bool         `json:"requires_user_selection"`
	UserPrompt            string       `json:"user_prompt,omitempty"`
}

// Matcher matches tables to schemas with deterministic name, type and
// similarity scoring.
type Matcher struct {
	logger *slog.Logger
}

func NewMatcher(logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{logger: logger}
}

// Match scores every table. When more than one table clears the high
// threshold the result carries a selection prompt for the caller.
func (m *Matcher) Match(tables []detect.DetectedTable, target *schema.TargetSchema) *Result {
	matches := make([]TableMatch, 0, len(tables))
	for i := range tables {
		matches = append(matches, matchTable(&tables[i], target))
	}
	// Sort by score descending (insertion sort keeps it stable).
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].MatchScore > matches[j-1].MatchScore; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}

	var good []TableMatch
	for _, mt := range matches {
		if mt.MatchScore >= HighMatchThreshold {
			good = append(good, mt)
		}
	}
	res := &Result{
		TargetSchemaName:      target.Name,
		Matches:               matches,
		RequiresUserSelection: len(good) > 1,
	}
	if len(matches) > 0 {
		res.BestMatchTableID = matches[0].TableID
	}
	if res.RequiresUserSelection {
		res.UserPrompt = selectionPrompt(good, tables)
	}

	m.logger.Info("match.ok",
		"schema", target.Name,
		"tables", len(tables),
		"good_matches", len(good),
		"best", res.BestMatchTableID,
		"requires_selection", res.RequiresUserSelection,
	)
	return res
}

// matchTable greedily claims target columns in source-column order; each
// target is claimed at most once. The table score weights required-column
// coverage at 0.6 and optional coverage at 0.4.
func matchTable(table *detect.DetectedTable, target *schema.TargetSchema) TableMatch {
	targetMatched := map[string]bool{}
	sourceMatched := map[string]bool{}
	var pairs []ColumnPair

	for _, sourceCol := range table.ColumnNames {
		bestTarget := ""
		bestScore := 0.0
		for i := range target.Columns {
			tc := &target.Columns[i]
			if targetMatched[tc.Name] {
				continue
			}
			score := columnMatchScore(sourceCol, tc, table.SampleValues[sourceCol])
			if score > bestScore {
				bestScore = score
				bestTarget = tc.Name
			}
		}
		if bestTarget != "" && bestScore >= ModerateMatchThreshold {
			pairs = append(pairs, ColumnPair{Source: sourceCol, Target: bestTarget})
			sourceMatched[sourceCol] = true
			targetMatched[bestTarget] = true
		}
	}

	var unmatchedSource []string
	for _, c := range table.ColumnNames {
		if !sourceMatched[c] {
			unmatchedSource = append(unmatchedSource, c)
		}
	}
	var unmatchedTarget []string
	requiredMatched := 0
	for _, tc := range target.Columns {
		if tc.Required {
			if targetMatched[tc.Name] {
				requiredMatched++
			} else {
				unmatchedTarget = append(unmatchedTarget, tc.Name)
			}
		}
	}

	requiredTotal := len(target.RequiredColumns)
	requiredScore := 1.0
	if requiredTotal > 0 {
		requiredScore = float64(requiredMatched) / float64(requiredTotal)
	}
	optionalMatched := len(pairs) - requiredMatched
	optionalTotal := len(target.Columns) - requiredTotal
	optionalScore := 1.0
	if optionalTotal > 0 {
		optionalScore = float64(optionalMatched) / float64(optionalTotal)
	}
	score := 0.6*requiredScore + 0.4*optionalScore

	return TableMatch{
		TableID:            table.TableID,
		TargetSchemaName:   target.Name,
		MatchScore:         score,
		MatchedColumns:     pairs,
		UnmatchedSourceCol: unmatchedSource,
		UnmatchedTargetCol: unmatchedTarget,
	}
}

// columnMatchScore scores one source/target column pair. Checks are ordered
// by strength: exact normalized name, known alias, alias containment, string
// similarity, semantic type from samples, keyword overlap.
func columnMatchScore(sourceCol string, target *schema.TargetColumn, samples []string) float64 {
	sourceNorm := normalizeName(sourceCol)
	targetNorm := normalizeName(target.Name)

	if sourceNorm == targetNorm {
		return 1.0
	}

	score := 0.0
	for _, alias := range target.CommonSourceNames {
		aliasNorm := normalizeName(alias)
		if sourceNorm == aliasNorm {
			return 0.95
		}
		if strings.Contains(sourceNorm, aliasNorm) || strings.Contains(aliasNorm, sourceNorm) {
			score = maxf(score, 0.8)
		}
	}

	score = maxf(score, levenshtein.Similarity(sourceNorm, targetNorm, nil)*0.9)

	if len(samples) > 0 {
		inferred := inferSemanticType(samples)
		if inferred == string(target.DataType) {
			score = maxf(score, 0.7)
		} else if typesCompatible(inferred, string(target.DataType)) {
			score = maxf(score, 0.5)
		}
	}

	sourceKeywords := extractKeywords(sourceCol)
	targetKeywords := extractKeywords(target.Name)
	if overlap := keywordOverlap(sourceKeywords, targetKeywords); overlap > 0 {
		score = maxf(score, 0.6*overlap+0.3)
	}
	return score
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

func normalizeName(name string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(name), "")
}

var (
	separators = regexp.MustCompile(`[_\s\-.]+`)
	camelCase  = regexp.MustCompile(`([A-Z])`)
)

func extractKeywords(name string) []string {
	var out []string
	for _, w := range separators.Split(name, -1) {
		spaced := camelCase.ReplaceAllString(w, " $1")
		for _, part := range strings.Fields(spaced) {
			if len(part) > 1 {
				out = append(out, strings.ToLower(part))
			}
		}
	}
	return out
}

func keywordOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := map[string]bool{}
	for _, w := range a {
		setA[w] = true
	}
	shared := 0
	seen := map[string]bool{}
	for _, w := range b {
		if setA[w] && !seen[w] {
			shared++
			seen[w] = true
		}
	}
	if shared == 0 {
		return 0
	}
	denom := len(a)
	if len(b) > denom {
		denom = len(b)
	}
	return float64(shared) / float64(denom)
}

var (
	emailSample = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
	phoneSample = regexp.MustCompile(`^[+\d\s\-()]{8,}$`)
	dateSample  = regexp.MustCompile(`\d{1,4}[-/.]\d{1,2}[-/.]\d{1,4}`)
	spaceRe     = regexp.MustCompile(`\s`)
)

// inferSemanticType guesses a value domain from sample values; a pattern must
// cover at least half the samples to win.
func inferSemanticType(samples []string) string {
	if len(samples) == 0 {
		return "string"
	}
	n := float64(len(samples))
	emails, phones, dates := 0, 0, 0
	for _, v := range samples {
		if emailSample.MatchString(v) {
			emails++
		}
		if phoneSample.MatchString(spaceRe.ReplaceAllString(v, "")) {
			phones++
		}
		if dateSample.MatchString(v) {
			dates++
		}
	}
	switch {
	case float64(emails)/n >= 0.5:
		return "email"
	case float64(phones)/n >= 0.5:
		return "phone"
	case float64(dates)/n >= 0.5:
		return "date"
	}

	numeric := 0
	hasDecimal := false
	for _, v := range samples {
		cleaned := strings.NewReplacer(",", "", "$", "", "₹", "").Replace(v)
		if _, err := strconv.ParseFloat(strings.TrimSpace(cleaned), 64); err == nil {
			numeric++
		}
		if strings.Contains(v, ".") {
			hasDecimal = true
		}
	}
	if float64(numeric)/n >= 0.5 {
		if hasDecimal {
			return "float"
		}
		return "integer"
	}
	return "string"
}

var compatibleGroups = []map[string]bool{
	{"string": true, "name": true, "first_name": true, "last_name": true, "full_name": true, "address": true, "city": true, "state": true, "country": true},
	{"integer": true, "float": true, "number": true, "currency": true, "quantity": true},
	{"phone": true, "phone_number": true, "mobile": true},
	{"email": true, "email_address": true},
	{"date": true, "datetime": true, "timestamp": true},
}

func typesCompatible(a, b string) bool {
	for _, g := range compatibleGroups {
		if g[a] && g[b] {
			return true
		}
	}
	return false
}

// selectionPrompt lists ambiguous candidates for the caller to choose from.
func selectionPrompt(good []TableMatch, tables []detect.DetectedTable) string {
	byID := map[string]*detect.DetectedTable{}
	for i := range tables {
		byID[tables[i].TableID] = &tables[i]
	}

	lines := []string{"Multiple tables match the target schema. Please select one:", ""}
	for idx, mt := range good {
		t := byID[mt.TableID]
		if t == nil {
			continue
		}
		title := t.Title
		if title == "" {
			title = fmt.Sprintf("Table at row %d", t.Boundary.StartRow+1)
		}
		cols := t.ColumnNames
		shown := cols
		if len(cols) > 4 {
			shown = cols[:4]
		}
		colLine := strings.Join(shown, ", ")
		if len(cols) > 4 {
			colLine += fmt.Sprintf(" (+%d more)", len(cols)-4)
		}
		lines = append(lines,
			fmt.Sprintf("%d. %s", idx+1, title),
			fmt.Sprintf("   Columns: %s", colLine),
			fmt.Sprintf("   Rows: %d", t.RowCount),
			fmt.Sprintf("   Match Score: %.0f%%", mt.MatchScore*100),
			"",
		)
	}
	lines = append(lines, "Enter the number of the table you want to transform:")
	return strings.Join(lines, "\n")
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
