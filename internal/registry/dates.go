package registry

import (
	"strings"
	"time"
)

// Layout lists per ambiguity preference, most specific first. Day and month
// tokens are unpadded so both "5/1/2024" and "05/01/2024" parse.
var (
	usLayouts = []string{
		"1/2/2006", "1-2-2006", "1/2/06",
		"2006-1-2", "2006/1/2",
		"2 Jan 2006", "2 January 2006",
		"Jan 2, 2006", "January 2, 2006",
	}
	isoLayouts = []string{
		"2006-1-2", "2006/1/2",
		"2/1/2006", "2-1-2006",
		"2 Jan 2006", "2 January 2006",
	}
	ukLayouts = []string{
		"2/1/2006", "2-1-2006", "2/1/06",
		"2006-1-2", "2006/1/2",
		"2 Jan 2006", "2 January 2006",
		"2-Jan-2006", "2-January-2006",
	}
)

// SmartDateParse parses a date string trying the format list selected by the
// ambiguity preference ("US", "ISO", default "UK"). Returns the zero time and
// false when nothing matches.
func SmartDateParse(value string, preference string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	var layouts []string
	switch preference {
	case "US":
		layouts = usLayouts
	case "ISO":
		layouts = isoLayouts
	default:
		layouts = ukLayouts
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	// Last resort: RFC3339-ish timestamps exported by spreadsheets.
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "1/2/06"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// smartDateParseFunc exposes SmartDateParse in the registry. Unparseable
// input yields a nil scalar.
func smartDateParseFunc(args Args) (Result, error) {
	if isMissing(args.Value) {
		return Scalar(nil), nil
	}
	pref := paramString(args.Params, "ambiguity_preference", "UK")
	t, ok := SmartDateParse(cellString(args.Value), pref)
	if !ok {
		return Scalar(nil), nil
	}
	return Scalar(t), nil
}

// formatDate renders a date in the target strftime-style format, defaulting
// to ISO-8601. Unparseable input is passed through unchanged.
func formatDate(args Args) (Result, error) {
	if isMissing(args.Value) {
		return Scalar(""), nil
	}
	layout := strftimeLayout(paramString(args.Params, "target_format", "%Y-%m-%d"))
	if t, ok := args.Value.(time.Time); ok {
		return Scalar(t.Format(layout)), nil
	}
	pref := paramString(args.Params, "ambiguity_preference", "UK")
	t, ok := SmartDateParse(cellString(args.Value), pref)
	if !ok {
		return Scalar(cellString(args.Value)), nil
	}
	return Scalar(t.Format(layout)), nil
}

// computeDateDiff returns (date1 - date2) in whole days. date1 comes from the
// primary value, date2 from the date2_col row reference or the second input
// value. Either side failing to parse yields a nil scalar.
func computeDateDiff(args Args) (Result, error) {
	if isMissing(args.Value) {
		return Scalar(nil), nil
	}
	pref := paramString(args.Params, "ambiguity_preference", "UK")
	date1, ok := parseDateCell(args.Value, pref)
	if !ok {
		return Scalar(nil), nil
	}

	var second any
	date2Col := paramString(args.Params, "date2_col", "")
	if date2Col != "" && args.Row != nil {
		v, present := args.Row[date2Col]
		if !present {
			return Scalar(nil), nil
		}
		second = v
	} else if len(args.Values) >= 2 {
		second = args.Values[1]
	} else {
		return Scalar(nil), nil
	}

	date2, ok := parseDateCell(second, pref)
	if !ok {
		return Scalar(nil), nil
	}
	return Scalar(int(date1.Sub(date2).Hours() / 24)), nil
}

func parseDateCell(v any, pref string) (time.Time, bool) {
	if t, ok := v.(time.Time); ok {
		return t, true
	}
	if isMissing(v) {
		return time.Time{}, false
	}
	return SmartDateParse(cellString(v), pref)
}

// strftimeLayout converts the strftime tokens the planner emits into a Go
// time layout.
func strftimeLayout(format string) string {
	r := strings.NewReplacer(
		"%Y", "2006",
		"%y", "06",
		"%m", "01",
		"%d", "02",
		"%b", "Jan",
		"%B", "January",
		"%H", "15",
		"%M", "04",
		"%S", "05",
	)
	return r.Replace(format)
}
