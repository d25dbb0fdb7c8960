package migration

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/pmatias/rt2gh/pkg/models"
)

// sourceTag identifies the source tracker inside issue titles. It must
// match byte for byte between FormatTitle and ParseTicketID: this tag is
// the sole dedup key across runs.
const sourceTag = "rt.cpan.org"

var titleTagPattern = regexp.MustCompile(`\[` + regexp.QuoteMeta(sourceTag) + ` #(\d+)\]$`)

// FormatTitle builds an issue title carrying the back-reference tag,
// e.g. `Crash on save [rt.cpan.org #42]`.
func FormatTitle(subject string, ticketID int) string {
	return fmt.Sprintf("%s [%s #%d]", subject, sourceTag, ticketID)
}

// ParseTicketID extracts the source ticket id from an issue title. It
// returns false when the title carries no back-reference tag.
func ParseTicketID(title string) (int, bool) {
	matches := titleTagPattern.FindStringSubmatch(title)
	if len(matches) < 2 {
		return 0, false
	}
	id, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

// MigratedIDs extracts the set of already-migrated ticket ids from a list
// of open issues. Issues without a back-reference tag are ignored.
func MigratedIDs(issues []models.GitHubIssue) map[int]bool {
	migrated := make(map[int]bool)
	for _, issue := range issues {
		if id, ok := ParseTicketID(issue.Title); ok {
			migrated[id] = true
		}
	}
	return migrated
}
