package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ehr/reportlink/internal/domain/linkage"
	"github.com/ehr/reportlink/internal/domain/patient"
	"github.com/ehr/reportlink/internal/domain/report"
)

func printPatients(w io.Writer, patients []*patient.Patient) error {
	if len(patients) == 0 {
		_, err := fmt.Fprintln(w, "No patients found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMRN\tNAME\tDOB\tREPORTS")
	for _, p := range patients {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", p.PatientID, p.MRN, p.Name, p.DOB, len(p.Transmissions))
	}
	return tw.Flush()
}

// printOutcome writes one line per ingested file followed by its
// observations and parse issues.
func printOutcome(w io.Writer, path string, out *linkage.Outcome, err error) {
	switch {
	case out == nil:
		fmt.Fprintf(w, "%s: %v\n", path, err)
		return
	case err != nil:
		fmt.Fprintf(w, "%s: %v (tier %s, confidence %.2f)\n", path, err, out.Match.Tier, out.Match.Confidence)
	case out.Duplicate:
		fmt.Fprintf(w, "%s: already attached to patient %s\n", path, out.PatientID)
	default:
		fmt.Fprintf(w, "%s: attached to patient %s (tier %s, confidence %.2f)\n",
			path, out.PatientID, out.Match.Tier, out.Match.Confidence)
	}
	if out.Match.LowConfidence {
		fmt.Fprintln(w, "  low confidence match: review recommended")
	}
	if out.Report != nil {
		for _, o := range out.Report.Observations {
			fmt.Fprintf(w, "  %s\n", report.FormatObservation(o))
		}
	}
	for _, issue := range out.Issues {
		fmt.Fprintf(w, "  warning: %s\n", issue)
	}
}
