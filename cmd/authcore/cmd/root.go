package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "authcore",
	Short: "authcore is the authentication and session service",
	Long: `The authentication, session, and rate-limiting core for the Harborline
site. The content/CRUD layer consumes it over HTTP JSON and never touches
credentials directly.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
