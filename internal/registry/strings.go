package registry

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var multiSpace = regexp.MustCompile(`\s+`)

var titleCaser = cases.Title(language.English)

// splitFullName splits a full name into first, middle and last components.
//
// Params:
//
//	delimiter: split character, "auto" detects comma before space
//	culture: "western" (first last) or "eastern" (last first)
//	handle_single_name: "first_name_only" or "last_name_only"
func splitFullName(args Args) (Result, error) {
	order := []string{"first_name", "middle_name", "last_name"}
	empty := map[string]any{"first_name": "", "middle_name": "", "last_name": ""}
	if isMissing(args.Value) {
		return Record(empty, order...), nil
	}
	value := strings.TrimSpace(cellString(args.Value))
	if value == "" {
		return Record(empty, order...), nil
	}

	delimiter := paramString(args.Params, "delimiter", "auto")
	culture := paramString(args.Params, "culture", "western")
	handleSingle := paramString(args.Params, "handle_single_name", "first_name_only")

	if delimiter == "auto" {
		if strings.Contains(value, ",") {
			delimiter = ","
		} else {
			delimiter = " "
		}
	}

	var parts []string
	for _, p := range strings.Split(value, delimiter) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	rec := func(first, middle, last string) Result {
		return Record(map[string]any{"first_name": first, "middle_name": middle, "last_name": last}, order...)
	}
	switch len(parts) {
	case 0:
		return Record(empty, order...), nil
	case 1:
		if handleSingle == "last_name_only" {
			return rec("", "", parts[0]), nil
		}
		return rec(parts[0], "", ""), nil
	case 2:
		if culture == "eastern" {
			return rec(parts[1], "", parts[0]), nil
		}
		return rec(parts[0], "", parts[1]), nil
	default:
		if culture == "eastern" {
			return rec(parts[len(parts)-1], strings.Join(parts[1:len(parts)-1], " "), parts[0]), nil
		}
		return rec(parts[0], strings.Join(parts[1:len(parts)-1], " "), parts[len(parts)-1]), nil
	}
}

// regexExtract extracts a substring via a regex group. Malformed patterns and
// non-matches yield "".
func regexExtract(args Args) (Result, error) {
	if isMissing(args.Value) {
		return Scalar(""), nil
	}
	pattern := paramString(args.Params, "pattern", "")
	groupIndex := paramInt(args.Params, "group_index", 0)
	if pattern == "" {
		return Scalar(cellString(args.Value)), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Scalar(""), nil
	}
	m := re.FindStringSubmatch(cellString(args.Value))
	if m == nil {
		return Scalar(""), nil
	}
	if groupIndex >= 0 && groupIndex < len(m) {
		return Scalar(m[groupIndex]), nil
	}
	return Scalar(""), nil
}

func cleanWhitespace(args Args) (Result, error) {
	if isMissing(args.Value) {
		return Scalar(""), nil
	}
	s := strings.TrimSpace(cellString(args.Value))
	return Scalar(multiSpace.ReplaceAllString(s, " ")), nil
}

func uppercase(args Args) (Result, error) {
	if isMissing(args.Value) {
		return Scalar(""), nil
	}
	return Scalar(strings.ToUpper(cellString(args.Value))), nil
}

func lowercase(args Args) (Result, error) {
	if isMissing(args.Value) {
		return Scalar(""), nil
	}
	return Scalar(strings.ToLower(cellString(args.Value))), nil
}

func titlecase(args Args) (Result, error) {
	if isMissing(args.Value) {
		return Scalar(""), nil
	}
	return Scalar(titleCaser.String(cellString(args.Value))), nil
}

func trim(args Args) (Result, error) {
	if isMissing(args.Value) {
		return Scalar(""), nil
	}
	return Scalar(strings.TrimSpace(cellString(args.Value))), nil
}

// concatenate joins the input values with a separator, skipping missing cells.
func concatenate(args Args) (Result, error) {
	separator := paramString(args.Params, "separator", " ")
	values := args.Values
	if values == nil {
		values = []any{args.Value}
	}
	var parts []string
	for _, v := range values {
		if !isMissing(v) {
			parts = append(parts, strings.TrimSpace(cellString(v)))
		}
	}
	return Scalar(strings.Join(parts, separator)), nil
}

// mapValues maps a value through a case-insensitive lookup table.
//
// Params:
//
//	mapping_dict: source -> target values
//	default: value to use when no entry matches (defaults to the input)
func mapValues(args Args) (Result, error) {
	if isMissing(args.Value) {
		return Scalar(paramString(args.Params, "default", "")), nil
	}
	def := paramString(args.Params, "default", cellString(args.Value))
	needle := strings.ToLower(strings.TrimSpace(cellString(args.Value)))

	if mapping, ok := args.Params["mapping_dict"].(map[string]any); ok {
		for k, v := range mapping {
			if strings.ToLower(k) == needle {
				return Scalar(cellString(v)), nil
			}
		}
	}
	return Scalar(def), nil
}

// conditionalFill replaces empty values with a fallback column's value or a
// configured default.
func conditionalFill(args Args) (Result, error) {
	if !isMissing(args.Value) && strings.TrimSpace(cellString(args.Value)) != "" {
		return Scalar(args.Value), nil
	}
	fallbackCol := paramString(args.Params, "fallback_col", "")
	if fallbackCol != "" && args.Row != nil {
		if v, ok := args.Row[fallbackCol]; ok {
			return Scalar(v), nil
		}
	}
	return Scalar(paramString(args.Params, "default", "")), nil
}
