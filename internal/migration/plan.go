package migration

import (
	"fmt"
	"sort"

	"github.com/pmatias/rt2gh/internal/logging"
	"github.com/pmatias/rt2gh/pkg/models"
)

// SourceReader is the read/write capability this pipeline needs from the
// source tracker.
type SourceReader interface {
	Search(queue string) ([]int, error)
	FetchTicket(id int) (models.Ticket, error)
	AppendCorrespondence(id int, message string) error
}

// TargetClient is the capability this pipeline needs from the target
// tracker.
type TargetClient interface {
	ListOpenIssues(repository string) ([]models.GitHubIssue, error)
	CreateIssue(repository string, req models.IssueRequest) (models.CreatedIssue, error)
	CreateComment(repository string, issueNumber int, body string) error
}

// CandidateIDs computes the candidate ticket ids for a run. Explicit ids
// are returned verbatim, order preserved. Otherwise each queue is searched
// for migratable tickets and the results concatenated; overlapping queues
// may repeat an id here, Plan dedups them.
func CandidateIDs(source SourceReader, explicit []int, queues []string) ([]int, error) {
	if len(explicit) > 0 {
		logging.Debug("using explicit ticket ids", "count", len(explicit))
		return explicit, nil
	}

	var candidates []int
	for _, queue := range queues {
		ids, err := source.Search(queue)
		if err != nil {
			return nil, fmt.Errorf("failed to search queue '%s': %v", queue, err)
		}
		logging.Info("searched queue", "queue", queue, "ticket_count", len(ids))
		candidates = append(candidates, ids...)
	}

	return candidates, nil
}

// Plan computes the ordered work list: candidate ids not already migrated,
// sorted ascending. Duplicate candidates (overlapping queues) are dropped,
// first occurrence wins. Deterministic order makes re-runs after a partial
// failure resume predictably and keeps logs diffable.
func Plan(candidates []int, migrated map[int]bool) []int {
	seen := make(map[int]bool, len(candidates))
	plan := make([]int, 0, len(candidates))

	for _, id := range candidates {
		if seen[id] {
			logging.Warn("dropping duplicate candidate ticket", "ticket_id", id)
			continue
		}
		seen[id] = true

		if migrated[id] {
			logging.Debug("skipping already-migrated ticket", "ticket_id", id)
			continue
		}
		plan = append(plan, id)
	}

	sort.Ints(plan)
	return plan
}
