package patient

import (
	"github.com/google/uuid"

	"github.com/ehr/reportlink/internal/domain/report"
)

// Patient is an identity record. JSON names match patients.json.
type Patient struct {
	PatientID      string          `json:"patientID"`
	MRN            string          `json:"MRN"`
	Name           string          `json:"Name"`
	DOB            string          `json:"DOB"`
	AssignedDoctor string          `json:"AssignedDoctor"`
	Transmissions  []report.Report `json:"Transmissions"`
}

// New creates a patient with a fresh, permanent PatientID.
func New(mrn, name, dob, doctor string) *Patient {
	return &Patient{
		PatientID:      uuid.NewString(),
		MRN:            mrn,
		Name:           name,
		DOB:            dob,
		AssignedDoctor: doctor,
		Transmissions:  []report.Report{},
	}
}

// HasReport reports whether a transmission with the given id is attached.
func (p *Patient) HasReport(reportID string) bool {
	for i := range p.Transmissions {
		if p.Transmissions[i].ReportID == reportID {
			return true
		}
	}
	return false
}

// Summary is the list view of a patient.
type Summary struct {
	PatientID         string `json:"patientID"`
	MRN               string `json:"MRN"`
	Name              string `json:"Name"`
	DOB               string `json:"DOB"`
	AssignedDoctor    string `json:"AssignedDoctor"`
	TransmissionCount int    `json:"transmissionCount"`
}

func (p *Patient) Summary() Summary {
	return Summary{
		PatientID:         p.PatientID,
		MRN:               p.MRN,
		Name:              p.Name,
		DOB:               p.DOB,
		AssignedDoctor:    p.AssignedDoctor,
		TransmissionCount: len(p.Transmissions),
	}
}

// Transmission is one attached report seen from the dashboard.
type Transmission struct {
	ReportID    string        `json:"reportId"`
	ReportDate  string        `json:"reportDate"`
	DisplayDate string        `json:"displayDate"`
	PatientID   string        `json:"patientID"`
	PatientName string        `json:"patient"`
	PatientMRN  string        `json:"patientMRN"`
	Report      report.Report `json:"report"`
}
