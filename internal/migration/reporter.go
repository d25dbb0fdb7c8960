package migration

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/pmatias/rt2gh/pkg/models"
)

// Reporter prints human-facing dry-run output. Log lines go to the logger;
// the dry-run report is the operator-facing artifact of a pre-flight run,
// so it goes to stdout.
type Reporter struct {
	out io.Writer

	title   *color.Color
	comment *color.Color
}

// NewReporter creates a Reporter writing to w, or to stdout when w is nil.
func NewReporter(w io.Writer) *Reporter {
	if w == nil {
		w = os.Stdout
	}
	return &Reporter{
		out:     w,
		title:   color.New(color.FgCyan, color.Bold),
		comment: color.New(color.Faint),
	}
}

// DryRunIssue reports the issue that would be created for a ticket.
func (r *Reporter) DryRunIssue(ticketID int, req models.IssueRequest) {
	r.title.Fprintf(r.out, "would create issue: %s\n", req.Title)
	fmt.Fprintf(r.out, "  ticket: %d, labels: %v, body: %d bytes\n", ticketID, req.Labels, len(req.Body))
}

// DryRunComment reports the byte length of a comment that would be created.
func (r *Reporter) DryRunComment(ticketID int, bodyBytes int) {
	r.comment.Fprintf(r.out, "  would create comment: %d bytes\n", bodyBytes)
}
