package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ehr/reportlink/internal/domain/linkage"
	"github.com/ehr/reportlink/internal/platform/auth"
)

// withApp opens the app for one command and verifies the session token.
func withApp(cmd *cobra.Command, fn func(a *app, sess auth.Session) error) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()
	token, _ := cmd.Flags().GetString("token")
	sess, err := a.session(token)
	if err != nil {
		return err
	}
	return fn(a, sess)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Authenticate and print a session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				password = os.Getenv("REPORTLINK_PASSWORD")
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			sess, err := a.users.Authenticate(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			token, err := a.tokens.Issue(sess)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("password", "", "password (default $REPORTLINK_PASSWORD)")
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	createCmd := &cobra.Command{
		Use:   "create <username> <password>",
		Short: "Create a doctor or nurse (admin only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			roleName, _ := cmd.Flags().GetString("role")
			role, err := auth.ParseRole(roleName)
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app, sess auth.Session) error {
				if err := a.users.CreateUser(cmd.Context(), sess, args[0], args[1], role); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User %s created with role %s.\n", args[0], role)
				return nil
			})
		},
	}
	createCmd.Flags().String("role", "doctor", "role of the new user: doctor or nurse")
	cmd.AddCommand(createCmd)

	bootstrapCmd := &cobra.Command{
		Use:   "bootstrap <username> <password>",
		Short: "Create the admin account if none exists",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			created, err := a.users.EnsureAdmin(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "Admin %s created.\n", args[0])
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "An admin account already exists.")
			}
			return nil
		},
	}
	cmd.AddCommand(bootstrapCmd)

	return cmd
}

func patientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patient",
		Short: "Manage the calling doctor's patients",
	}

	createCmd := &cobra.Command{
		Use:   "create <mrn> <name> <dob>",
		Short: "Register a patient (DOB as MM/DD/YYYY)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app, sess auth.Session) error {
				p, err := a.patients.CreatePatient(cmd.Context(), sess, args[0], args[1], args[2])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Patient %s created with id %s.\n", p.MRN, p.PatientID)
				return nil
			})
		},
	}
	cmd.AddCommand(createCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List your patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app, sess auth.Session) error {
				patients, err := a.patients.ListForDoctor(cmd.Context(), sess)
				if err != nil {
					return err
				}
				return printPatients(cmd.OutOrStdout(), patients)
			})
		},
	}
	cmd.AddCommand(listCmd)

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search your patients by MRN, then by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app, sess auth.Session) error {
				patients, err := a.patients.SearchForDoctor(cmd.Context(), sess, args[0])
				if err != nil {
					return err
				}
				return printPatients(cmd.OutOrStdout(), patients)
			})
		},
	}
	cmd.AddCommand(searchCmd)

	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Parse and ingest HL7 or PDF reports",
	}

	parseCmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a report and print the canonical form without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			r, issues, err := a.linkage.Parse(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, issue := range issues.Strings() {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", issue)
			}
			if r == nil {
				return fmt.Errorf("%w: %v", linkage.ErrParseFailed, issues.Err())
			}
			return printJSON(out, r)
		},
	}
	cmd.AddCommand(parseCmd)

	ingestCmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Parse, match and attach reports to patients",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fuzzy, _ := cmd.Flags().GetBool("fuzzy")
			return withApp(cmd, func(a *app, sess auth.Session) error {
				var failed int
				for _, path := range args {
					out, err := a.linkage.Ingest(cmd.Context(), sess, path, linkage.IngestOptions{Fuzzy: fuzzy})
					printOutcome(cmd.OutOrStdout(), path, out, err)
					if errors.Is(err, auth.ErrUnauthenticated) || errors.Is(err, auth.ErrForbidden) {
						return err
					}
					if err != nil {
						failed++
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d report(s) were not stored", failed, len(args))
				}
				return nil
			})
		},
	}
	ingestCmd.Flags().Bool("fuzzy", false, "fall back to weighted fuzzy matching")
	cmd.AddCommand(ingestCmd)

	return cmd
}

func matchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Resolve identifiers to a patient without attaching anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			mrn, _ := cmd.Flags().GetString("mrn")
			name, _ := cmd.Flags().GetString("name")
			dob, _ := cmd.Flags().GetString("dob")
			fuzzy, _ := cmd.Flags().GetBool("fuzzy")
			return withApp(cmd, func(a *app, sess auth.Session) error {
				res, err := a.linkage.Match(cmd.Context(), sess, mrn, name, dob, fuzzy)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), matchView{MatchResult: res, PatientID: res.PatientID()})
			})
		},
	}
	cmd.Flags().String("mrn", "", "medical record number")
	cmd.Flags().String("name", "", "patient name")
	cmd.Flags().String("dob", "", "date of birth")
	cmd.Flags().Bool("fuzzy", false, "fall back to weighted fuzzy matching")
	return cmd
}

type matchView struct {
	linkage.MatchResult
	PatientID string `json:"patientID,omitempty"`
}

func transmissionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transmissions",
		Short: "Review reports attached to your patients",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List attached reports, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app, sess auth.Session) error {
				items, err := a.patients.RecentTransmissions(cmd.Context(), sess)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "DATE\tPATIENT\tMRN\tREPORT\tOBSERVATIONS")
				for _, t := range items {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
						t.DisplayDate, t.PatientName, t.PatientMRN, t.ReportID, len(t.Report.Observations))
				}
				return w.Flush()
			})
		},
	}
	cmd.AddCommand(listCmd)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write attached reports to an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("out")
			return withApp(cmd, func(a *app, sess auth.Session) error {
				data, err := a.patients.ExportTransmissions(cmd.Context(), sess)
				if err != nil {
					return err
				}
				if err := os.WriteFile(path, data, 0o600); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s.\n", path)
				return nil
			})
		},
	}
	exportCmd.Flags().String("out", "transmissions.xlsx", "output file")
	cmd.AddCommand(exportCmd)

	hl7Cmd := &cobra.Command{
		Use:   "hl7",
		Short: "Print a patient's reports as ORU^R01 messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			patientID, _ := cmd.Flags().GetString("patient")
			if patientID == "" {
				return errors.New("--patient is required")
			}
			return withApp(cmd, func(a *app, sess auth.Session) error {
				data, err := a.patients.TransmissionHL7(cmd.Context(), sess, patientID)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}
	hl7Cmd.Flags().String("patient", "", "patient id")
	cmd.AddCommand(hl7Cmd)

	return cmd
}
