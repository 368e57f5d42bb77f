package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validHL7 = "MSH|^~\\&|LabSystem|LabFac|EHR|EHRFac|20240116120000||ORU^R01|MSG00001|P|2.5.1\n" +
	"PID|1||MRN1234567||DOE^JOHN||19850203|M\n" +
	"OBX|1|NM|HR^Heart Rate|72|bpm^beats per minute^UCUM|60-100|N\n" +
	"OBX|2|ST|RHY^Rhythm|Sinus\n"

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseHL7_Valid(t *testing.T) {
	rep, issues := ParseHL7([]byte(validHL7), Options{})
	if rep == nil {
		t.Fatalf("expected report, got issues %v", issues.Strings())
	}
	if len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues.Strings())
	}
	if rep.ReportID == "" {
		t.Error("expected report id")
	}
	if Str(rep.ReportDate) != "20240116120000" {
		t.Errorf("expected report date '20240116120000', got %q", Str(rep.ReportDate))
	}
	if Str(rep.MessageType) != "ORU^R01" {
		t.Errorf("expected message type 'ORU^R01', got %q", Str(rep.MessageType))
	}

	mrn, name, dob := rep.Identifiers()
	if mrn != "MRN1234567" || name != "DOE^JOHN" || dob != "19850203" {
		t.Errorf("unexpected identifiers %q %q %q", mrn, name, dob)
	}

	if len(rep.Observations) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(rep.Observations))
	}
	hr := rep.Observations[0]
	if Str(hr.Code) != "HR" {
		t.Errorf("expected code 'HR', got %q", Str(hr.Code))
	}
	if Str(hr.Value) != "72" {
		t.Errorf("expected value '72', got %q", Str(hr.Value))
	}
	if Str(hr.Unit) != "bpm^beats per minute^UCUM" {
		t.Errorf("expected compound unit, got %q", Str(hr.Unit))
	}
	if Str(hr.AbnormalFlag) != "N" {
		t.Errorf("expected abnormal flag 'N' with corrected guard, got %v", hr.AbnormalFlag)
	}

	rhy := rep.Observations[1]
	if rhy.Unit != nil || rhy.ReferenceRange != nil || rhy.AbnormalFlag != nil {
		t.Errorf("expected absent unit, range and flag, got %+v", rhy)
	}
}

func TestParseHL7_LegacyOBXGuard(t *testing.T) {
	rep, _ := ParseHL7([]byte(validHL7), Options{LegacyOBXGuard: true})
	if rep == nil {
		t.Fatal("expected report")
	}
	hr := rep.Observations[0]
	if hr.AbnormalFlag != nil {
		t.Errorf("expected legacy guard to drop the final flag, got %q", Str(hr.AbnormalFlag))
	}
	if Str(hr.ReferenceRange) != "60-100" {
		t.Errorf("expected reference range, got %v", hr.ReferenceRange)
	}

	short, _ := ParseHL7([]byte("PID|1||M1\nOBX|1|NM|HR|72|bpm\n"), Options{LegacyOBXGuard: true})
	if short == nil {
		t.Fatal("expected report")
	}
	if short.Observations[0].Unit != nil {
		t.Errorf("expected legacy guard to drop a trailing unit, got %q", Str(short.Observations[0].Unit))
	}

	fixed, _ := ParseHL7([]byte("PID|1||M1\nOBX|1|NM|HR|72|bpm\n"), Options{})
	if Str(fixed.Observations[0].Unit) != "bpm" {
		t.Errorf("expected corrected guard to keep the unit, got %v", fixed.Observations[0].Unit)
	}
}

func TestParseHL7_OBXWithoutPID(t *testing.T) {
	rep, issues := ParseHL7([]byte("OBX|1|NM|HR|72\nOBX|2|NM|RR|16\n"), Options{})
	if rep != nil {
		t.Fatal("expected nil report without PID")
	}
	found := false
	for _, s := range issues.Strings() {
		if strings.Contains(s, "PID segment missing") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected 'PID segment missing', got %v", issues.Strings())
	}
	if !issues.Has(ErrMissingRequiredField) {
		t.Error("expected ErrMissingRequiredField")
	}
}

func TestParseHL7_NoObservations(t *testing.T) {
	rep, issues := ParseHL7([]byte("MSH|^~\\&|A\nPID|1||MRN1\n"), Options{})
	if rep != nil {
		t.Fatal("expected nil report without OBX")
	}
	if got := issues.Strings(); len(got) != 1 || got[0] != "No OBX segments found" {
		t.Errorf("expected only 'No OBX segments found', got %v", got)
	}
}

func TestParseHL7_LineIssuesSurviveFailure(t *testing.T) {
	data := "garbage\nZZZ|1\nOBX|1|NM|HR|72\n"
	rep, issues := ParseHL7([]byte(data), Options{})
	if rep != nil {
		t.Fatal("expected failure")
	}
	if len(issues) != 3 {
		t.Fatalf("expected format, unknown segment and PID issues, got %v", issues.Strings())
	}

	var first Issue
	if !errors.As(issues[0], &first) || !errors.Is(first, ErrFormat) || first.Line != 1 {
		t.Errorf("expected format issue at line 1, got %+v", issues[0])
	}
	if issues[0].Error() != "Invalid segment format at line 1: 'garbage'" {
		t.Errorf("unexpected message %q", issues[0].Error())
	}
	if !errors.Is(issues[1], ErrUnknownSegment) || issues[1].Line != 2 {
		t.Errorf("expected unknown segment at line 2, got %+v", issues[1])
	}
}

func TestParseHL7_UnknownSegmentIsNonFatal(t *testing.T) {
	rep, issues := ParseHL7([]byte(validHL7+"NTE|1||comment\n"), Options{})
	if rep == nil {
		t.Fatalf("expected report, got %v", issues.Strings())
	}
	if len(issues) != 1 || !issues.Has(ErrUnknownSegment) {
		t.Errorf("expected one unknown segment warning, got %v", issues.Strings())
	}
}

func TestParseHL7_CorruptedSegmentDropped(t *testing.T) {
	data := []byte("PID|1||MRN1\nOBX|1|NM|HR|72\nOBX|2|NM|RR|1\xff6\n")
	rep, issues := ParseHL7(data, Options{})
	if rep == nil {
		t.Fatalf("expected report, got %v", issues.Strings())
	}
	if len(rep.Observations) != 1 {
		t.Errorf("expected corrupted OBX to be dropped, got %d observations", len(rep.Observations))
	}
	if !issues.Has(ErrCorruptedSegment) || issues[0].Line != 3 {
		t.Errorf("expected corrupted segment at line 3, got %v", issues.Strings())
	}
}

func TestParseHL7_BlankLinesAndCarriageReturns(t *testing.T) {
	data := strings.ReplaceAll(validHL7, "\n", "\r\n\r\n")
	rep, issues := ParseHL7([]byte(data), Options{})
	if rep == nil || len(issues) != 0 {
		t.Fatalf("expected clean parse, got %v", issues.Strings())
	}
	if len(rep.Observations) != 2 {
		t.Errorf("expected 2 observations, got %d", len(rep.Observations))
	}
}

func TestParseHL7_MSHBeyondLength(t *testing.T) {
	rep, _ := ParseHL7([]byte("MSH|^~\\&|App\nPID|1||M1\nOBX|1|NM|HR|72\n"), Options{})
	if rep == nil {
		t.Fatal("expected report")
	}
	if rep.ReportDate != nil || rep.MessageType != nil {
		t.Errorf("expected absent date and type, got %v %v", rep.ReportDate, rep.MessageType)
	}
}

func TestParseHL7_EmptyOBXCode(t *testing.T) {
	rep, _ := ParseHL7([]byte("PID|1||M1\nOBX|1|NM||72\n"), Options{})
	if rep == nil {
		t.Fatal("expected report")
	}
	if rep.Observations[0].Code != nil {
		t.Errorf("expected absent code, got %q", Str(rep.Observations[0].Code))
	}
}

func TestParseHL7_UTF16WithBOM(t *testing.T) {
	src := "PID|1||M1\nOBX|1|NM|HR|72\n"
	data := []byte{0xFF, 0xFE}
	for _, r := range src {
		data = append(data, byte(r), 0)
	}
	rep, issues := ParseHL7(data, Options{})
	if rep == nil {
		t.Fatalf("expected UTF-16 input to decode, got %v", issues.Strings())
	}
	if mrn, _, _ := rep.Identifiers(); mrn != "M1" {
		t.Errorf("expected MRN 'M1', got %q", mrn)
	}
}

func TestParseHL7File_Errors(t *testing.T) {
	_, issues := ParseHL7File(filepath.Join(t.TempDir(), "missing.hl7"), Options{})
	if !issues.Has(ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", issues.Strings())
	}

	_, issues = ParseHL7File(writeFile(t, "empty.hl7", nil), Options{})
	if !issues.Has(ErrEmptyFile) {
		t.Errorf("expected ErrEmptyFile, got %v", issues.Strings())
	}

	_, issues = ParseHL7File(writeFile(t, "blank.hl7", []byte("\n \n")), Options{})
	if !issues.Has(ErrEmptyFile) {
		t.Errorf("expected ErrEmptyFile for whitespace, got %v", issues.Strings())
	}

	_, issues = ParseHL7File(t.TempDir(), Options{})
	if !issues.Has(ErrEncoding) {
		t.Errorf("expected ErrEncoding for unreadable path, got %v", issues.Strings())
	}
}

func TestParseHL7File_FreshIDs(t *testing.T) {
	path := writeFile(t, "r.hl7", []byte(validHL7))
	a, _ := ParseHL7File(path, Options{})
	b, _ := ParseHL7File(path, Options{})
	if a == nil || b == nil {
		t.Fatal("expected reports")
	}
	if a.ReportID == b.ReportID {
		t.Errorf("expected distinct report ids, got %q twice", a.ReportID)
	}
}

func TestParseHL7File_ContentHashIDs(t *testing.T) {
	path := writeFile(t, "r.hl7", []byte(validHL7))
	opts := Options{IDs: ContentHashIDs{}}
	a, _ := ParseHL7File(path, opts)
	b, _ := ParseHL7File(path, opts)
	if a.ReportID != b.ReportID {
		t.Errorf("expected equal content ids, got %q and %q", a.ReportID, b.ReportID)
	}

	other, _ := ParseHL7([]byte(strings.Replace(validHL7, "|72|", "|73|", 1)), opts)
	if other.ReportID == a.ReportID {
		t.Error("expected different content to produce a different id")
	}
}
