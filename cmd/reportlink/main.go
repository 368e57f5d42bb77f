package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "reportlink",
		Short:         "Report normalization and patient record-linkage engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("token", "", "session token from 'reportlink login' (default $REPORTLINK_TOKEN)")

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(loginCmd())
	root.AddCommand(userCmd())
	root.AddCommand(patientCmd())
	root.AddCommand(reportCmd())
	root.AddCommand(matchCmd())
	root.AddCommand(transmissionsCmd())
	return root
}
