package linkage

import (
	"github.com/ehr/reportlink/internal/domain/patient"
	"github.com/ehr/reportlink/internal/domain/report"
)

// Attach appends r to p's transmissions. It does not persist and does not
// deduplicate: attaching two parses of the same file adds two entries.
func Attach(p *patient.Patient, r *report.Report) {
	p.Transmissions = append(p.Transmissions, *r)
}
