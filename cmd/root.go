package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rt2gh",
	Short: "rt2gh migrates RT tickets into GitHub issues",
	Long: `rt2gh is a CLI tool that migrates tickets from an RT (Request Tracker)
instance into GitHub issues. Each ticket becomes one issue carrying a
back-reference tag in its title, and the ticket's correspondence history is
replayed as issue comments. Re-running is safe: tickets that already have
an issue are skipped.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringP("repository", "r", "", "GitHub repository name (e.g., 'username/repo')")
}
