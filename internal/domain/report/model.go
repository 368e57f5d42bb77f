package report

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/reportlink/internal/platform/hl7v2"
)

// MessageTypePDF marks reports built from extracted PDF text.
const MessageTypePDF = "PDF_REPORT"

// Report is the canonical, format-independent ingestion unit. Absent values
// are nil and serialize as null, matching existing patients.json files.
type Report struct {
	ReportID           string             `json:"reportId"`
	ReportDate         *string            `json:"reportDate"`
	MessageType        *string            `json:"messageType"`
	PatientIdentifiers PatientIdentifiers `json:"patientIdentifiers"`
	Observations       []Observation      `json:"observations"`
}

// PatientIdentifiers are the raw identity values as extracted.
type PatientIdentifiers struct {
	MRN         *string `json:"mrn"`
	Name        *string `json:"name"`
	DateOfBirth *string `json:"dateOfBirth"`
}

// Observation is one recorded clinical value.
type Observation struct {
	Code           *string `json:"code"`
	Value          *string `json:"value"`
	Unit           *string `json:"unit"`
	ReferenceRange *string `json:"referenceRange"`
	AbnormalFlag   *string `json:"abnormalFlag"`
}

// Options tune parsing.
type Options struct {
	// LegacyOBXGuard reproduces the older OBX length checks, which
	// demand one more field than the index read for unit, reference range
	// and abnormal flag.
	LegacyOBXGuard bool

	// IDs assigns report ids. Nil means RandomIDs.
	IDs IDGenerator
}

func (o Options) ids() IDGenerator {
	if o.IDs == nil {
		return RandomIDs{}
	}
	return o.IDs
}

// IDGenerator assigns the ReportID of a freshly parsed report.
type IDGenerator interface {
	NewID(r *Report) string
}

// RandomIDs gives every parse a new uuid, so re-parsing a file yields a
// different id each time.
type RandomIDs struct{}

func (RandomIDs) NewID(*Report) string { return uuid.NewString() }

// reportNamespace scopes content-derived report ids.
var reportNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:reportlink:report"))

// ContentHashIDs derives the id from the canonical content, so the same
// report parsed twice gets the same id.
type ContentHashIDs struct{}

func (ContentHashIDs) NewID(r *Report) string {
	c := *r
	c.ReportID = ""
	b, err := json.Marshal(c)
	if err != nil {
		return uuid.NewString()
	}
	return uuid.NewSHA1(reportNamespace, b).String()
}

// IDGeneratorFor maps a REPORT_ID_MODE value to a generator.
func IDGeneratorFor(mode string) IDGenerator {
	if mode == "content-hash" {
		return ContentHashIDs{}
	}
	return RandomIDs{}
}

// Str returns *p, or "" when p is nil.
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func strPtr(s string) *string { return &s }

// Identifiers returns the MRN, name and date of birth with absent values as "".
func (r *Report) Identifiers() (mrn, name, dob string) {
	id := r.PatientIdentifiers
	return Str(id.MRN), Str(id.Name), Str(id.DateOfBirth)
}

// Time parses ReportDate as an HL7 timestamp. ok is false for absent or
// free-text dates.
func (r *Report) Time() (t time.Time, ok bool) {
	if r.ReportDate == nil {
		return time.Time{}, false
	}
	t, err := hl7v2.ParseTimestamp(*r.ReportDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ToORU converts the report into an ORU^R01 description for re-emission.
func (r *Report) ToORU() hl7v2.ORU {
	mrn, name, dob := r.Identifiers()
	m := hl7v2.ORU{
		SendingApp:  "reportlink",
		ControlID:   r.ReportID,
		PatientMRN:  mrn,
		PatientName: name,
		PatientDOB:  dob,
	}
	if t, ok := r.Time(); ok {
		m.Timestamp = t
	}
	for _, o := range r.Observations {
		m.Observations = append(m.Observations, hl7v2.OBX{
			Code:           Str(o.Code),
			Value:          Str(o.Value),
			Unit:           Str(o.Unit),
			ReferenceRange: Str(o.ReferenceRange),
			AbnormalFlag:   Str(o.AbnormalFlag),
		})
	}
	return m
}
