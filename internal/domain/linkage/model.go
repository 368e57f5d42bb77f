package linkage

import (
	"github.com/ehr/reportlink/internal/domain/patient"
)

// Tier names the matching strategy that produced a result.
type Tier string

const (
	TierExactMRN     Tier = "exact-mrn"
	TierExactNameDOB Tier = "exact-name-dob"
	TierFuzzy        Tier = "fuzzy"
	TierNone         Tier = "none"
)

// Fixed confidences of the deterministic tiers.
const (
	ExactMRNConfidence     = 100
	ExactNameDOBConfidence = 80
)

// FieldScores are per-field similarities from 0 to 100.
type FieldScores struct {
	MRN  float64 `json:"mrnScore"`
	Name float64 `json:"nameScore"`
	DOB  float64 `json:"dobScore"`
}

// MatchResult is the outcome of one match call. Patient is nil for TierNone.
type MatchResult struct {
	Patient       *patient.Patient `json:"-"`
	Confidence    float64          `json:"confidence"`
	FieldScores   FieldScores      `json:"fieldScores"`
	Tier          Tier             `json:"tier"`
	LowConfidence bool             `json:"lowConfidence"`
}

// Matched reports whether a patient was selected.
func (m MatchResult) Matched() bool {
	return m.Patient != nil
}

// PatientID returns the matched patient's id, or "".
func (m MatchResult) PatientID() string {
	if m.Patient == nil {
		return ""
	}
	return m.Patient.PatientID
}
