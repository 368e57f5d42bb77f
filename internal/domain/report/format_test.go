package report

import "testing"

func TestFormatObservation(t *testing.T) {
	obs := Observation{
		Code:           strPtr("HR"),
		Value:          strPtr("72"),
		Unit:           strPtr("bpm^beats per minute^UCUM"),
		ReferenceRange: strPtr("60-100"),
		AbnormalFlag:   strPtr("N"),
	}
	want := "HR: 72 beats per minute (Reference: 60-100) (N)"
	if got := FormatObservation(obs); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	if got := FormatObservation(Observation{Value: strPtr("Sinus")}); got != "Unknown: Sinus" {
		t.Errorf("expected 'Unknown: Sinus', got %q", got)
	}
}

func TestDisplayUnit(t *testing.T) {
	cases := map[string]string{
		"bpm":                       "bpm",
		"bpm^beats per minute^UCUM": "beats per minute",
		"mmHg^ ^UCUM":               "mmHg",
	}
	for in, want := range cases {
		if got := DisplayUnit(in); got != want {
			t.Errorf("%q: expected %q, got %q", in, want, got)
		}
	}
}

func TestFormatReportDate(t *testing.T) {
	if got := FormatReportDate("20240116120000"); got != "2024-01-16 12:00:00" {
		t.Errorf("expected formatted timestamp, got %q", got)
	}
	if got := FormatReportDate("January 16"); got != "January 16" {
		t.Errorf("expected free text unchanged, got %q", got)
	}
}

func TestReport_ToORU(t *testing.T) {
	rep, _ := ParseHL7([]byte(validHL7), Options{})
	m := rep.ToORU()
	if m.PatientMRN != "MRN1234567" || m.ControlID != rep.ReportID {
		t.Errorf("unexpected ORU header values %+v", m)
	}
	if len(m.Observations) != 2 || m.Observations[0].AbnormalFlag != "N" {
		t.Errorf("unexpected ORU observations %+v", m.Observations)
	}
	if m.Timestamp.Year() != 2024 {
		t.Errorf("expected report timestamp, got %v", m.Timestamp)
	}
}
