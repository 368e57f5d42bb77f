package linkage

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// NormalizeMRN keeps only the digits, so "MRN-0022-445" becomes "0022445".
func NormalizeMRN(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeName folds an HL7 composite or free-text name to lower-case
// letters separated by single spaces: "DOE^JOHN" becomes "doe john".
func NormalizeName(s string) string {
	s = strings.ReplaceAll(s, "^", " ")
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// DOBPolicy decides how a slash or dash date with both day and month <= 12
// is read.
type DOBPolicy int

const (
	// DayFirst tries DD/MM/YYYY before MM/DD/YYYY.
	DayFirst DOBPolicy = iota
	// MonthFirst tries MM/DD/YYYY first, the form patient intake stores.
	MonthFirst
)

// ParseDOBPolicy accepts "day-first" and "month-first".
func ParseDOBPolicy(s string) (DOBPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "day-first":
		return DayFirst, nil
	case "month-first":
		return MonthFirst, nil
	}
	return DayFirst, fmt.Errorf("linkage: unknown DOB order %q", s)
}

func (p DOBPolicy) String() string {
	if p == MonthFirst {
		return "month-first"
	}
	return "day-first"
}

var dayFirstLayouts = []string{"20060102", "2006-1-2", "2/1/2006", "2-1-2006", "1/2/2006"}
var monthFirstLayouts = []string{"20060102", "2006-1-2", "1/2/2006", "2-1-2006", "2/1/2006"}

// Normalize re-emits a recognised date as YYYY-MM-DD. Unrecognised input is
// returned trimmed but otherwise unchanged.
func (p DOBPolicy) Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	layouts := dayFirstLayouts
	if p == MonthFirst {
		layouts = monthFirstLayouts
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

// NormalizeDOB normalizes under DayFirst.
func NormalizeDOB(s string) string {
	return DayFirst.Normalize(s)
}
