// Package cmd provides the command-line interface for the rt2gh tool.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmatias/rt2gh/internal/config"
	"github.com/pmatias/rt2gh/internal/github"
	"github.com/pmatias/rt2gh/internal/logging"
	"github.com/pmatias/rt2gh/internal/migration"
	"github.com/pmatias/rt2gh/internal/rt"
)

// migrateCmd represents the command that migrates RT tickets into GitHub
// issues.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate RT tickets into GitHub issues",
	Long: `Migrate RT tickets into GitHub issues.

Tickets are selected either explicitly (--ticket, repeatable) or by
searching one or more RT queues (--queue, repeatable) for tickets with
status new, open, or stalled. Tickets that already have a GitHub issue
(recognized by the back-reference tag in open issue titles) are skipped,
so repeated runs never create duplicates.

For each migrated ticket:
1. An issue is created with the ticket subject, a back-reference tag, the
   indented original description, and a 'migrated' label (plus the value
   of any 'severity' custom field)
2. The remaining ticket history is replayed as issue comments, in order
3. With --comment-back, a correspondence entry is posted on the RT ticket
   pointing at the new issue

A failing ticket never aborts the run; failures are logged with enough
context to replay them by hand. Attachments are never transferred.

Example:
  rt2gh migrate -r owner/repo -q General -q Bugs --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		repository, err := cmd.Flags().GetString("repository")
		if err != nil {
			return err
		}

		tickets, err := cmd.Flags().GetIntSlice("ticket")
		if err != nil {
			return err
		}

		queues, err := cmd.Flags().GetStringArray("queue")
		if err != nil {
			return err
		}

		dryRun, err := cmd.Flags().GetBool("dry-run")
		if err != nil {
			return err
		}

		commentBack, err := cmd.Flags().GetBool("comment-back")
		if err != nil {
			return err
		}

		nonInteractive, err := cmd.Flags().GetBool("non-interactive")
		if err != nil {
			return err
		}

		if repository == "" {
			return fmt.Errorf("repository flag is required")
		}

		if len(tickets) == 0 && len(queues) == 0 {
			return fmt.Errorf("at least one ticket (--ticket) or queue (--queue) must be specified")
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %v", err)
		}

		if err := config.ResolveRTPassword(cfg, nonInteractive); err != nil {
			return err
		}

		logging.Info("starting migration",
			"repository", repository,
			"tickets", tickets,
			"queues", queues,
			"dry_run", dryRun,
			"comment_back", commentBack)

		// Initialize clients
		rtClient, err := rt.NewClient(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize rt client: %v", err)
		}

		githubClient, err := github.NewClient(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize github client: %v", err)
		}

		candidates, err := migration.CandidateIDs(rtClient, tickets, queues)
		if err != nil {
			return err
		}

		openIssues, err := githubClient.ListOpenIssues(repository)
		if err != nil {
			return fmt.Errorf("failed to list open github issues: %v", err)
		}
		migrated := migration.MigratedIDs(openIssues)

		plan := migration.Plan(candidates, migrated)
		logging.Info("computed migration plan",
			"candidates", len(candidates),
			"already_migrated", len(migrated),
			"planned", len(plan))

		executor := &migration.Executor{
			Source:        rtClient,
			Target:        githubClient,
			Repository:    repository,
			RTBaseURL:     cfg.RT.URL,
			DryRun:        dryRun,
			CommentBack:   commentBack,
			RetryInterval: cfg.CommentRetryInterval,
		}

		report := executor.Run(plan)

		// Per-ticket failures are reported via logs; the process exit
		// only reflects whether the run itself completed.
		logging.Info("migration complete",
			"migrated", report.Migrated(),
			"failed", report.Failed())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().IntSliceP("ticket", "t", []int{}, "RT ticket id to migrate (can be specified multiple times)")
	migrateCmd.Flags().StringArrayP("queue", "q", []string{}, "RT queue to search for migratable tickets (can be specified multiple times)")
	migrateCmd.Flags().Bool("dry-run", false, "compute and report what would be created without creating anything")
	migrateCmd.Flags().Bool("comment-back", false, "post a correspondence entry on each migrated RT ticket pointing at its issue")
	migrateCmd.Flags().Bool("non-interactive", false, "never prompt for credentials; fail if any are missing")
}
