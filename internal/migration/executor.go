package migration

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pmatias/rt2gh/internal/logging"
	"github.com/pmatias/rt2gh/pkg/models"
)

// firstCommentRetries bounds the backoff retries on the first comment of a
// ticket. GitHub's read-after-write consistency is not guaranteed, so a
// comment posted immediately after issue creation can 404; retrying the
// first comment with backoff covers the propagation window without an
// unconditional sleep.
const firstCommentRetries = 4

// Executor runs the migration pipeline over a planned list of ticket ids.
// Failures are isolated per ticket and per transaction: nothing short of a
// configuration error terminates the run.
type Executor struct {
	Source     SourceReader
	Target     TargetClient
	Repository string

	// RTBaseURL is embedded as a deep link in every issue body.
	RTBaseURL string

	// DryRun computes and reports every payload without mutating either
	// tracker.
	DryRun bool

	// CommentBack posts a correspondence entry on each migrated RT ticket
	// pointing at the created issue.
	CommentBack bool

	// RetryInterval is the initial backoff interval for the first comment
	// after issue creation.
	RetryInterval time.Duration

	// Reporter receives dry-run output. Defaults to stdout.
	Reporter *Reporter
}

// Run migrates every ticket in the plan, one at a time, in order. It
// returns a report with one result per planned ticket.
func (e *Executor) Run(plan []int) models.MigrationReport {
	if e.Reporter == nil {
		e.Reporter = NewReporter(nil)
	}

	var report models.MigrationReport
	for _, id := range plan {
		report.Results = append(report.Results, e.migrateTicket(id))
	}

	logging.Info("migration run complete",
		"planned", len(plan),
		"migrated", report.Migrated(),
		"failed", report.Failed(),
		"dry_run", e.DryRun)

	return report
}

// migrateTicket runs one ticket through fetch, build, and (unless dry-run)
// create, replay, and back-reference. Every failure path returns a result
// instead of aborting the run.
func (e *Executor) migrateTicket(id int) models.TicketResult {
	ticket, err := e.Source.FetchTicket(id)
	if err != nil {
		logging.Error("failed to fetch ticket", "ticket_id", id, "error", err)
		return models.TicketResult{
			TicketID: id,
			Status:   models.StatusFailed,
			Error:    fmt.Sprintf("fetch: %v", err),
		}
	}

	issueReq := BuildIssue(ticket, e.RTBaseURL)
	replay := replayTransactions(ticket)

	if e.DryRun {
		e.Reporter.DryRunIssue(id, issueReq)
		for _, tx := range replay {
			e.Reporter.DryRunComment(id, len(BuildComment(tx)))
		}
		return models.TicketResult{
			TicketID: id,
			Subject:  ticket.Subject,
			Status:   models.StatusDryRun,
		}
	}

	created, err := e.Target.CreateIssue(e.Repository, issueReq)
	if err != nil {
		// Log the full body so an operator can hand-create the issue.
		logging.Error("failed to create issue",
			"ticket_id", id,
			"title", issueReq.Title,
			"body", issueReq.Body,
			"error", err)
		return models.TicketResult{
			TicketID: id,
			Subject:  ticket.Subject,
			Status:   models.StatusFailed,
			Error:    fmt.Sprintf("create issue: %v", err),
		}
	}

	e.replayComments(id, created.Number, replay)

	if e.CommentBack {
		message := backReferenceMessage(created.URL)
		if err := e.Source.AppendCorrespondence(id, message); err != nil {
			logging.Error("failed to write back-reference on source ticket",
				"ticket_id", id,
				"issue_url", created.URL,
				"error", err)
		}
	}

	logging.Info("migrated ticket",
		"ticket_id", id,
		"subject", ticket.Subject,
		"issue_number", created.Number,
		"issue_url", created.URL)

	return models.TicketResult{
		TicketID:    id,
		Subject:     ticket.Subject,
		Status:      models.StatusMigrated,
		IssueNumber: created.Number,
		IssueURL:    created.URL,
	}
}

// replayComments posts the remaining transactions as comments, in order.
// The first comment is retried with backoff (see firstCommentRetries); a
// failed comment is logged with its content and replay continues.
func (e *Executor) replayComments(ticketID, issueNumber int, replay []models.Transaction) {
	first := true
	for _, tx := range replay {
		body := BuildComment(tx)

		var err error
		if first {
			first = false
			bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(e.RetryInterval)), firstCommentRetries)
			err = backoff.Retry(func() error {
				return e.Target.CreateComment(e.Repository, issueNumber, body)
			}, bo)
		} else {
			err = e.Target.CreateComment(e.Repository, issueNumber, body)
		}

		if err != nil {
			// The issue already exists; partial comment replay is
			// recoverable by hand, so log the content and keep going.
			logging.Error("failed to create comment",
				"ticket_id", ticketID,
				"issue_number", issueNumber,
				"content", body,
				"error", err)
		}
	}
}

// replayTransactions returns the transactions to replay as comments: all
// but the description transaction, minus those without content.
func replayTransactions(ticket models.Ticket) []models.Transaction {
	if len(ticket.Transactions) < 2 {
		return nil
	}

	var replay []models.Transaction
	for _, tx := range ticket.Transactions[1:] {
		if !tx.HasContent() {
			continue
		}
		replay = append(replay, tx)
	}
	return replay
}

// backReferenceMessage is the correspondence posted on a migrated RT
// ticket.
func backReferenceMessage(issueURL string) string {
	return fmt.Sprintf("This ticket has been migrated to GitHub and is now tracked at:\n\n"+
		"  %s\n\n"+
		"Please direct any future correspondence there. This ticket will remain\n"+
		"open until the GitHub issue is resolved, at which point it will be closed.",
		issueURL)
}
