package report

import (
	"strings"

	"github.com/ehr/reportlink/internal/platform/hl7v2"
)

// DisplayUnit renders a unit for people. Compound units (code^text^system)
// show their text component.
func DisplayUnit(unit string) string {
	parts := strings.Split(unit, hl7v2.ComponentSeparator)
	if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
		return strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(parts[0])
}

// FormatObservation renders one observation on a single line, e.g.
// "HR: 72 beats per minute (Reference: 60-100) (N)".
func FormatObservation(o Observation) string {
	code := Str(o.Code)
	if code == "" {
		code = "Unknown"
	}
	parts := []string{code + ":"}
	if v := Str(o.Value); v != "" {
		parts = append(parts, v)
	}
	if u := Str(o.Unit); u != "" {
		parts = append(parts, DisplayUnit(u))
	}
	if r := Str(o.ReferenceRange); r != "" {
		parts = append(parts, "(Reference: "+r+")")
	}
	if f := Str(o.AbnormalFlag); f != "" {
		parts = append(parts, "("+f+")")
	}
	return strings.Join(parts, " ")
}

// FormatReportDate renders an HL7 timestamp as "2006-01-02 15:04:05".
// Anything else is returned unchanged.
func FormatReportDate(s string) string {
	t, err := hl7v2.ParseTimestamp(s)
	if err != nil {
		return s
	}
	return t.Format("2006-01-02 15:04:05")
}
