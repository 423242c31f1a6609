package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "smsbridge",
	Short: "Bridge Nexmo SMS to canonical activities",
	Long:  "SMS Bridge receives carrier webhooks as canonical Note activities and sends Note activities as SMS through the Nexmo REST API.",
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
