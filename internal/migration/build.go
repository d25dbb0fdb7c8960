package migration

import (
	"fmt"
	"strings"

	"github.com/pmatias/rt2gh/pkg/models"
)

// MigratedLabel is attached to every issue this tool creates.
const MigratedLabel = "migrated"

// descriptionIndent is the margin prepended to every line of the original
// ticket description inside the issue body.
const descriptionIndent = "    "

// BuildIssue computes the issue payload for a ticket: tagged title, body
// with a deep link to the RT ticket and the indented description, and the
// label set. The description is the ticket's first transaction.
func BuildIssue(ticket models.Ticket, rtBaseURL string) models.IssueRequest {
	var description string
	if len(ticket.Transactions) > 0 {
		description = ticket.Transactions[0].Content
	}

	body := fmt.Sprintf("Migrated from %s/Ticket/Display.html?id=%d\n\n%s",
		strings.TrimRight(rtBaseURL, "/"), ticket.ID, indent(description))

	return models.IssueRequest{
		Title:  FormatTitle(ticket.Subject, ticket.ID),
		Body:   body,
		Labels: BuildLabels(ticket),
	}
}

// BuildLabels computes the label set: the fixed migrated label plus the
// value of any custom field named "severity" (case-insensitive) whose
// value is non-empty.
func BuildLabels(ticket models.Ticket) []string {
	labels := []string{MigratedLabel}
	for name, value := range ticket.CustomFields {
		if strings.EqualFold(name, "severity") && value != "" {
			labels = append(labels, value)
		}
	}
	return labels
}

// BuildComment formats a transaction as a comment body:
// "<creator> - <timestamp>" followed by the content.
func BuildComment(tx models.Transaction) string {
	return fmt.Sprintf("%s - %s\n\n%s", tx.Creator, tx.Created, tx.Content)
}

// indent prefixes every line of s with the description margin.
func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = descriptionIndent + line
	}
	return strings.Join(lines, "\n")
}
