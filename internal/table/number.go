package table

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// numberNoise is stripped from cells before parsing. Order matters: "NT$"
// must go before "$".
var numberNoise = strings.NewReplacer(
	",", "", "，", "",
	"%", "", "％", "",
	"+", "", "＋", "",
	"NT$", "", "$", "", "元", "",
	"－", "-", "−", "-",
)

var missingMarks = map[string]bool{
	"": true, "-": true, "--": true, "---": true, "N/A": true, "n/a": true, "X": true,
}

// ParseNumber coerces a table cell to a float. ok is false when the cell is
// empty, a placeholder, or unparsable; callers treat that as missing.
func ParseNumber(s string) (float64, bool) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = numberNoise.Replace(s)
	if missingMarks[s] {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParsePercent parses a percent-change cell in percentage units ("9.8%" -> 9.8).
func ParsePercent(s string) (float64, bool) {
	return ParseNumber(s)
}

// ParseRatio parses a percentage cell into a 0-1 ratio ("30%" -> 0.3).
func ParseRatio(s string) (float64, bool) {
	v, ok := ParseNumber(s)
	if !ok {
		return 0, false
	}
	return v / 100, true
}

// Ptr returns a pointer to v when ok, else nil.
func Ptr(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}
