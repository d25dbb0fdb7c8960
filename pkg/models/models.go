// Package models defines data structures shared across the application.
package models

// NoContentMarker is the literal content RT returns for transactions that
// carry no user-visible text (status changes, scrip actions, and so on).
// Transactions with this content are never replayed as comments.
const NoContentMarker = "This transaction appears to have no content"

// Ticket represents an RT ticket with its full transaction history.
type Ticket struct {
	// ID is the numeric RT ticket id (e.g., 42)
	ID int

	// Subject is the ticket's subject line
	Subject string

	// CustomFields maps custom field names to their values (e.g., "Severity" -> "critical")
	CustomFields map[string]string

	// Transactions is the ticket's history in chronological order.
	// The first transaction is the ticket creation and supplies the
	// issue description; the rest are replayed as comments.
	Transactions []Transaction
}

// Transaction represents one chronological entry in a ticket's history.
type Transaction struct {
	// Creator is the RT username that caused the transaction
	Creator string

	// Created is the tracker-supplied creation timestamp, kept verbatim
	Created string

	// Content is the transaction's textual content, or NoContentMarker
	Content string
}

// HasContent reports whether the transaction carries user-visible text.
func (t Transaction) HasContent() bool {
	return t.Content != "" && t.Content != NoContentMarker
}

// GitHubIssue represents an existing GitHub issue with the fields the
// migration cares about.
type GitHubIssue struct {
	// Number is the issue number in GitHub (e.g., 42)
	Number int

	// Title is the issue's title or summary
	Title string

	// Labels is a slice of label names attached to the issue
	Labels []string
}

// IssueRequest is the payload for creating a GitHub issue.
type IssueRequest struct {
	// Title is the ticket subject plus the back-reference tag
	Title string

	// Body is the indented description with a deep link to the RT ticket
	Body string

	// Labels always contains the migration label, plus any severity value
	Labels []string
}

// CreatedIssue identifies a freshly created GitHub issue.
type CreatedIssue struct {
	// Number is used for attaching comments
	Number int

	// URL is the issue's HTML URL, used in the back-reference comment
	URL string
}

// TicketStatus is the terminal state of one ticket's migration.
type TicketStatus string

const (
	// StatusMigrated means the issue was created (comment replay may
	// still have had individual failures, which are logged).
	StatusMigrated TicketStatus = "migrated"

	// StatusFailed means the ticket could not be fetched or the issue
	// could not be created.
	StatusFailed TicketStatus = "failed"

	// StatusDryRun means the ticket was computed but nothing was created.
	StatusDryRun TicketStatus = "dry-run"
)

// TicketResult records the outcome of migrating a single ticket.
type TicketResult struct {
	TicketID    int
	Subject     string
	Status      TicketStatus
	IssueNumber int
	IssueURL    string
	Error       string
}

// MigrationReport summarizes one run of the migration pipeline.
type MigrationReport struct {
	Results []TicketResult
}

// Migrated returns the number of tickets that produced an issue.
func (r MigrationReport) Migrated() int { return r.count(StatusMigrated) }

// Failed returns the number of tickets that could not be migrated.
func (r MigrationReport) Failed() int { return r.count(StatusFailed) }

func (r MigrationReport) count(status TicketStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}
