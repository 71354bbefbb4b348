package core

// convert.go turns raw cell text into typed values.
//
// Uploaded files carry every cell as text. These helpers decide whether a
// cell is Missing, a number, a boolean or a date, and are shared by dtype
// inference at parse time and by literal coercion in filters and fills.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numericRegex validates that a string is a plain numeric literal.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// naTokens are cell texts read as Missing at parse time.
var naTokens = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"n/a":  {},
	"#N/A": {},
	"NaN":  {},
	"nan":  {},
	"-NaN": {},
	"-nan": {},
	"null": {},
	"NULL": {},
	"None": {},
	"<NA>": {},
}

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"1/2/2006 15:04:05", "1/2/2006 15:04",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"2006-01-02", "2006/01/02", "2006.01.02",
		"Jan 2, 2006", "2 Jan 2006", "January 2, 2006",
	}
)

// isNAToken reports whether raw cell text denotes a missing value.
func isNAToken(s string) bool {
	_, ok := naTokens[strings.TrimSpace(s)]
	return ok
}

// parseNumber parses a finite float. NaN and Inf are rejected so that every
// numeric cell serializes as a JSON number.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// parseBoolToken recognizes the tokens a Boolean column may hold.
func parseBoolToken(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes":
		return true, true
	case "false", "no":
		return false, true
	}
	return false, false
}

// equalityBool is the fixed token set used when comparing a Boolean column
// for equality: true, 1 and yes are true and everything else is false.
func equalityBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// parseDate parses a date or timestamp in any supported layout.
// Supports multiple date formats and handles 2-digit years with pivot.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	// Try 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	// Try 2-digit year layouts with pivot year adjustment
	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t.UTC(), true
		}
	}

	return time.Time{}, false
}

// coerceLiteral converts user-supplied text to a value of dtype d.
func coerceLiteral(s string, d Dtype) (Value, bool) {
	switch d {
	case DtypeNumeric:
		f, ok := parseNumber(s)
		return Number(f), ok
	case DtypeBoolean:
		b, ok := parseBoolToken(s)
		if !ok {
			switch strings.TrimSpace(s) {
			case "1":
				b, ok = true, true
			case "0":
				b, ok = false, true
			}
		}
		return Bool(b), ok
	case DtypeDatetime:
		t, ok := parseDate(s)
		return Time(t), ok
	default:
		return Text(s), true
	}
}
