package patient

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ehr/reportlink/internal/domain/report"
	"github.com/ehr/reportlink/internal/platform/auth"
	"github.com/ehr/reportlink/internal/platform/hl7v2"
	"github.com/ehr/reportlink/internal/platform/reporting"
)

// ExportTransmissions renders the doctor's recent transmissions as a
// workbook with one row per report and one row per observation.
func (s *Service) ExportTransmissions(ctx context.Context, sess auth.Session) ([]byte, error) {
	recent, err := s.RecentTransmissions(ctx, sess)
	if err != nil {
		return nil, err
	}

	reports := reporting.Sheet{
		Name:    "Transmissions",
		Headers: []string{"Report ID", "Report Date", "Patient", "MRN", "Message Type", "Observations"},
		Widths:  []float64{38, 20, 24, 14, 14, 12},
	}
	observations := reporting.Sheet{
		Name:    "Observations",
		Headers: []string{"Report ID", "MRN", "Code", "Value", "Unit", "Reference", "Flag", "Display"},
		Widths:  []float64{38, 14, 10, 10, 18, 12, 6, 48},
	}
	for _, t := range recent {
		reports.Rows = append(reports.Rows, []interface{}{
			t.ReportID, t.DisplayDate, t.PatientName, t.PatientMRN,
			report.Str(t.Report.MessageType), len(t.Report.Observations),
		})
		for _, o := range t.Report.Observations {
			observations.Rows = append(observations.Rows, []interface{}{
				t.ReportID, t.PatientMRN, report.Str(o.Code), report.Str(o.Value),
				report.DisplayUnit(report.Str(o.Unit)), report.Str(o.ReferenceRange),
				report.Str(o.AbnormalFlag), report.FormatObservation(o),
			})
		}
	}

	data, err := reporting.Workbook(reports, observations)
	if err != nil {
		return nil, fmt.Errorf("export transmissions: %w", err)
	}
	s.logger.Info().Str("doctor", sess.Username).Int("reports", len(recent)).Msg("transmissions exported")
	return data, nil
}

// TransmissionHL7 re-emits every report attached to one of the doctor's
// patients as ORU^R01 messages separated by a blank line.
func (s *Service) TransmissionHL7(ctx context.Context, sess auth.Session, patientID string) ([]byte, error) {
	p, err := s.Get(ctx, sess, patientID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for i := range p.Transmissions {
		msg, err := hl7v2.GenerateORU(p.Transmissions[i].ToORU())
		if err != nil {
			return nil, fmt.Errorf("report %s: %w", p.Transmissions[i].ReportID, err)
		}
		if buf.Len() > 0 {
			buf.WriteString("\r\n")
		}
		buf.Write(msg)
		buf.WriteString("\r")
	}
	return buf.Bytes(), nil
}
