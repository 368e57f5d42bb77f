package report

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strings"
)

// TextExtractor turns a PDF file into one text blob.
type TextExtractor interface {
	ExtractText(path string) (string, error)
}

var (
	pdfPatientName = regexp.MustCompile(`(?i)Patient Name:[ \t]*([^\r\n]*)`)
	pdfMRN         = regexp.MustCompile(`(?i)MRN:[ \t]*([^\r\n]*)`)
	pdfDOB         = regexp.MustCompile(`(?i)Date of Birth:[ \t]*([^\r\n]*)`)
	pdfReportDate  = regexp.MustCompile(`(?i)Report Date:[ \t]*([^\r\n]*)`)
	pdfHeartRate   = regexp.MustCompile(`(?i)Heart Rate:[ \t]*(\d+)`)
	pdfRhythm      = regexp.MustCompile(`(?i)Rhythm:[ \t]*([^\r\n]*)`)
)

// ParsePDFFile extracts text from a PDF report and parses it. A nil
// extractor means no extraction capability is installed.
func ParsePDFFile(path string, ex TextExtractor, opts Options) (*Report, Issues) {
	if ex == nil {
		return nil, single(ErrDependencyMissing, "PDF text extraction is not available: set UNIDOC_LICENSE_API_KEY")
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, single(ErrFileNotFound, "File not found")
	}
	text, err := ex.ExtractText(path)
	if err != nil {
		return nil, single(ErrExtractionFailed, "Failed to extract text from PDF file: "+err.Error())
	}
	return ParsePDFText(text, opts)
}

// ParsePDFText parses text already extracted from a PDF report. Labels are
// matched case-insensitively. A value must sit on the same line as its
// label: "MRN:" followed by the number on the next line reads as an empty
// MRN, and the next line is not consulted.
func ParsePDFText(text string, opts Options) (*Report, Issues) {
	if strings.TrimSpace(text) == "" {
		return nil, single(ErrEmptyContent, "PDF text extraction returned empty content")
	}

	var issues Issues
	required := func(re *regexp.Regexp, label string) *string {
		m := re.FindStringSubmatch(text)
		if m == nil {
			issues.add(ErrMissingRequiredField, 0, "Could not find '%s' in PDF", label)
			return nil
		}
		return strPtr(strings.TrimSpace(m[1]))
	}
	optional := func(re *regexp.Regexp) *string {
		m := re.FindStringSubmatch(text)
		if m == nil || strings.TrimSpace(m[1]) == "" {
			return nil
		}
		return strPtr(strings.TrimSpace(m[1]))
	}

	name := required(pdfPatientName, "Patient Name")
	mrn := required(pdfMRN, "MRN")
	dob := required(pdfDOB, "Date of Birth")
	date := required(pdfReportDate, "Report Date")

	var obs []Observation
	if hr := optional(pdfHeartRate); hr != nil {
		obs = append(obs, Observation{
			Code:           strPtr("HR"),
			Value:          hr,
			Unit:           strPtr("bpm"),
			ReferenceRange: strPtr("60-100"),
		})
	}
	if rhy := optional(pdfRhythm); rhy != nil {
		obs = append(obs, Observation{Code: strPtr("RHY"), Value: rhy})
	}

	if Str(name) == "" || Str(mrn) == "" {
		if name != nil && *name == "" {
			issues.add(ErrMissingRequiredField, 0, "'Patient Name' is empty in PDF")
		}
		if mrn != nil && *mrn == "" {
			issues.add(ErrMissingRequiredField, 0, "'MRN' is empty in PDF")
		}
		return nil, issues
	}

	rep := &Report{
		ReportDate:  date,
		MessageType: strPtr(MessageTypePDF),
		PatientIdentifiers: PatientIdentifiers{
			MRN:         mrn,
			Name:        name,
			DateOfBirth: dob,
		},
		Observations: obs,
	}
	rep.ReportID = opts.ids().NewID(rep)
	return rep, issues
}
