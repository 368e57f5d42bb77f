package hl7v2

import (
	"fmt"
	"strings"
	"time"
)

// ORU describes an observation-result message to generate.
type ORU struct {
	SendingApp   string
	SendingFac   string
	ReceivingApp string
	ReceivingFac string
	Timestamp    time.Time // MSH-7; zero means now
	ControlID    string    // MSH-10; empty means generated

	PatientMRN  string // PID-3
	PatientName string // PID-5, may already be family^given
	PatientDOB  string // PID-7

	Observations []OBX
}

// OBX is one observation row. Values are written as raw HL7 text, so a
// Unit of "bpm^beats per minute^UCUM" stays a composite.
type OBX struct {
	ValueType      string // defaults to NM
	Code           string
	Value          string
	Unit           string
	ReferenceRange string
	AbnormalFlag   string
}

// GenerateORU renders an ORU^R01 message with \r segment separators.
//
// OBX rows use the compact layout the report parser reads: the value sits
// directly after the observation identifier with no OBX-4 sub-id, i.e.
// OBX|set|type|code|value|unit|range|flag.
func GenerateORU(m ORU) ([]byte, error) {
	if m.PatientMRN == "" && m.PatientName == "" {
		return nil, fmt.Errorf("hl7v2: patient MRN or name is required")
	}
	if len(m.Observations) == 0 {
		return nil, fmt.Errorf("hl7v2: at least one observation is required")
	}

	segments := []string{buildMSH(m), buildPID(m)}
	for i, obs := range m.Observations {
		segments = append(segments, buildOBX(i+1, obs))
	}
	return []byte(strings.Join(segments, "\r")), nil
}

// buildMSH constructs the MSH header for an ORU^R01.
func buildMSH(m ORU) string {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	controlID := m.ControlID
	if controlID == "" {
		controlID = fmt.Sprintf("MSG%s", time.Now().UTC().Format("20060102150405.000"))
	}
	return strings.Join([]string{
		"MSH", `^~\&`,
		escapeField(m.SendingApp), escapeField(m.SendingFac),
		escapeField(m.ReceivingApp), escapeField(m.ReceivingFac),
		ts.Format("20060102150405"), "",
		"ORU^R01", escapeField(controlID), "P", "2.5.1",
	}, FieldSeparator)
}

func buildPID(m ORU) string {
	return fmt.Sprintf("PID|1||%s||%s||%s",
		escapeField(m.PatientMRN), escapeField(m.PatientName), escapeField(m.PatientDOB))
}

func buildOBX(setID int, obs OBX) string {
	valueType := obs.ValueType
	if valueType == "" {
		valueType = "NM"
	}
	return fmt.Sprintf("OBX|%d|%s|%s|%s|%s|%s|%s",
		setID, valueType,
		escapeField(obs.Code), escapeField(obs.Value), escapeField(obs.Unit),
		escapeField(obs.ReferenceRange), escapeField(obs.AbnormalFlag))
}

// Escape escapes every HL7 delimiter in free text.
// The HL7 escape sequences are:
//
//	\F\ = |  (field separator)
//	\S\ = ^  (component separator)
//	\R\ = ~  (repetition separator)
//	\E\ = \  (escape character)
//	\T\ = &  (subcomponent separator)
func Escape(s string) string {
	s = escapeField(s)
	return strings.ReplaceAll(s, "^", "\\S\\")
}

// escapeField escapes everything except the component separator, which
// stored values are allowed to carry.
func escapeField(s string) string {
	// Escape backslash first to avoid double-escaping
	s = strings.ReplaceAll(s, "\\", "\\E\\")
	s = strings.ReplaceAll(s, "|", "\\F\\")
	s = strings.ReplaceAll(s, "~", "\\R\\")
	s = strings.ReplaceAll(s, "&", "\\T\\")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
