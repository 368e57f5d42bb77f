package hl7v2

import (
	"strings"
	"testing"
	"time"
)

func sampleORUInput() ORU {
	return ORU{
		SendingApp:  "reportlink",
		Timestamp:   time.Date(2024, 1, 16, 12, 0, 0, 0, time.UTC),
		ControlID:   "CTRL1",
		PatientMRN:  "MRN1234567",
		PatientName: "DOE^JOHN",
		PatientDOB:  "19850203",
		Observations: []OBX{
			{Code: "HR", Value: "72", Unit: "bpm^beats per minute^UCUM", ReferenceRange: "60-100", AbnormalFlag: "N"},
			{ValueType: "ST", Code: "RHY", Value: "Sinus | regular"},
		},
	}
}

func TestGenerateORU_Segments(t *testing.T) {
	raw, err := GenerateORU(sampleORUInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := SplitLines(string(raw))
	if len(lines) != 4 {
		t.Fatalf("expected 4 segments, got %d", len(lines))
	}

	msh, _ := ParseSegment(lines[0])
	if v, _ := msh.Field(6); v != "20240116120000" {
		t.Errorf("expected MSH-7 '20240116120000', got %q", v)
	}
	if v, _ := msh.Field(8); v != "ORU^R01" {
		t.Errorf("expected MSH-9 'ORU^R01', got %q", v)
	}

	pid, _ := ParseSegment(lines[1])
	if v, _ := pid.Field(3); v != "MRN1234567" {
		t.Errorf("expected PID-3 'MRN1234567', got %q", v)
	}
	if v, _ := pid.Field(5); v != "DOE^JOHN" {
		t.Errorf("expected composite name to survive, got %q", v)
	}

	obx, _ := ParseSegment(lines[2])
	if v, _ := obx.Field(4); v != "72" {
		t.Errorf("expected value at index 4, got %q", v)
	}
	if v, _ := obx.Field(5); v != "bpm^beats per minute^UCUM" {
		t.Errorf("expected composite unit, got %q", v)
	}
	if v, _ := obx.Field(7); v != "N" {
		t.Errorf("expected abnormal flag at index 7, got %q", v)
	}

	if !strings.Contains(lines[3], "Sinus \\F\\ regular") {
		t.Errorf("expected escaped pipe in free text, got %q", lines[3])
	}
	if !strings.HasPrefix(lines[3], "OBX|2|ST|RHY|") {
		t.Errorf("unexpected second OBX %q", lines[3])
	}
}

func TestGenerateORU_Validation(t *testing.T) {
	in := sampleORUInput()
	in.Observations = nil
	if _, err := GenerateORU(in); err == nil {
		t.Error("expected error without observations")
	}

	in = sampleORUInput()
	in.PatientMRN, in.PatientName = "", ""
	if _, err := GenerateORU(in); err == nil {
		t.Error("expected error without patient identifiers")
	}
}

func TestEscape(t *testing.T) {
	got := Escape(`a|b^c~d\e&f`)
	want := `a\F\b\S\c\R\d\E\e\T\f`
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
