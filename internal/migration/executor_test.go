package migration

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmatias/rt2gh/pkg/models"
)

// mockSource implements SourceReader for testing.
type mockSource struct {
	SearchFunc               func(queue string) ([]int, error)
	FetchTicketFunc          func(id int) (models.Ticket, error)
	AppendCorrespondenceFunc func(id int, message string) error
}

func (m *mockSource) Search(queue string) ([]int, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(queue)
	}
	return nil, errors.New("Search not implemented")
}

func (m *mockSource) FetchTicket(id int) (models.Ticket, error) {
	if m.FetchTicketFunc != nil {
		return m.FetchTicketFunc(id)
	}
	return models.Ticket{}, errors.New("FetchTicket not implemented")
}

func (m *mockSource) AppendCorrespondence(id int, message string) error {
	if m.AppendCorrespondenceFunc != nil {
		return m.AppendCorrespondenceFunc(id, message)
	}
	return errors.New("AppendCorrespondence not implemented")
}

// mockTarget implements TargetClient for testing.
type mockTarget struct {
	ListOpenIssuesFunc func(repository string) ([]models.GitHubIssue, error)
	CreateIssueFunc    func(repository string, req models.IssueRequest) (models.CreatedIssue, error)
	CreateCommentFunc  func(repository string, issueNumber int, body string) error
}

func (m *mockTarget) ListOpenIssues(repository string) ([]models.GitHubIssue, error) {
	if m.ListOpenIssuesFunc != nil {
		return m.ListOpenIssuesFunc(repository)
	}
	return nil, errors.New("ListOpenIssues not implemented")
}

func (m *mockTarget) CreateIssue(repository string, req models.IssueRequest) (models.CreatedIssue, error) {
	if m.CreateIssueFunc != nil {
		return m.CreateIssueFunc(repository, req)
	}
	return models.CreatedIssue{}, errors.New("CreateIssue not implemented")
}

func (m *mockTarget) CreateComment(repository string, issueNumber int, body string) error {
	if m.CreateCommentFunc != nil {
		return m.CreateCommentFunc(repository, issueNumber, body)
	}
	return errors.New("CreateComment not implemented")
}

// ticketFixture builds a ticket whose first transaction is the description
// and whose remaining transactions carry the given contents.
func ticketFixture(id int, subject string, description string, comments ...string) models.Ticket {
	transactions := []models.Transaction{
		{Creator: "alice", Created: "2015-02-01 12:00:00", Content: description},
	}
	for i, content := range comments {
		transactions = append(transactions, models.Transaction{
			Creator: "bob",
			Created: fmt.Sprintf("2015-02-0%d 09:00:00", i+2),
			Content: content,
		})
	}
	return models.Ticket{ID: id, Subject: subject, Transactions: transactions}
}

func newTestExecutor(source *mockSource, target *mockTarget) *Executor {
	return &Executor{
		Source:        source,
		Target:        target,
		Repository:    "owner/repo",
		RTBaseURL:     "https://rt.cpan.org",
		RetryInterval: time.Millisecond,
		Reporter:      NewReporter(&bytes.Buffer{}),
	}
}

func TestMigrateSingleTicket(t *testing.T) {
	// Ticket 42 with a description, a no-content transaction, and one
	// real comment: exactly one comment must be created.
	ticket := ticketFixture(42, "Crash on save", "It crashes.", models.NoContentMarker, "Me too.")

	source := &mockSource{
		FetchTicketFunc: func(id int) (models.Ticket, error) { return ticket, nil },
		AppendCorrespondenceFunc: func(id int, message string) error {
			t.Fatal("back-reference must not be written when comment-back is disabled")
			return nil
		},
	}

	var createdTitle string
	var comments []string
	target := &mockTarget{
		CreateIssueFunc: func(repository string, req models.IssueRequest) (models.CreatedIssue, error) {
			createdTitle = req.Title
			return models.CreatedIssue{Number: 101, URL: "https://github.com/owner/repo/issues/101"}, nil
		},
		CreateCommentFunc: func(repository string, issueNumber int, body string) error {
			assert.Equal(t, 101, issueNumber)
			comments = append(comments, body)
			return nil
		},
	}

	report := newTestExecutor(source, target).Run([]int{42})

	require.Len(t, report.Results, 1)
	result := report.Results[0]
	assert.Equal(t, models.StatusMigrated, result.Status)
	assert.Equal(t, 42, result.TicketID)
	assert.Equal(t, "Crash on save", result.Subject)
	assert.Equal(t, 101, result.IssueNumber)

	assert.Equal(t, "Crash on save [rt.cpan.org #42]", createdTitle)
	require.Len(t, comments, 1)
	assert.Contains(t, comments[0], "Me too.")
}

func TestReplayPreservesTransactionOrder(t *testing.T) {
	// N transactions with content yield N-1 comment attempts, in order.
	ticket := ticketFixture(5, "Ordered", "description", "first", "second", "third")

	source := &mockSource{
		FetchTicketFunc: func(id int) (models.Ticket, error) { return ticket, nil },
	}

	var comments []string
	target := &mockTarget{
		CreateIssueFunc: func(repository string, req models.IssueRequest) (models.CreatedIssue, error) {
			return models.CreatedIssue{Number: 1}, nil
		},
		CreateCommentFunc: func(repository string, issueNumber int, body string) error {
			comments = append(comments, body)
			return nil
		},
	}

	newTestExecutor(source, target).Run([]int{5})

	require.Len(t, comments, 3)
	assert.Contains(t, comments[0], "first")
	assert.Contains(t, comments[1], "second")
	assert.Contains(t, comments[2], "third")
}

func TestIssueCreationFailureIsolation(t *testing.T) {
	// Issue creation fails for ticket 7: no comments, no back-reference,
	// ticket 9 is still processed.
	source := &mockSource{
		FetchTicketFunc: func(id int) (models.Ticket, error) {
			return ticketFixture(id, fmt.Sprintf("Ticket %d", id), "description", "a comment"), nil
		},
		AppendCorrespondenceFunc: func(id int, message string) error {
			assert.NotEqual(t, 7, id, "no back-reference for a failed ticket")
			return nil
		},
	}

	commentCount := map[int]int{}
	target := &mockTarget{
		CreateIssueFunc: func(repository string, req models.IssueRequest) (models.CreatedIssue, error) {
			if id, _ := ParseTicketID(req.Title); id == 7 {
				return models.CreatedIssue{}, errors.New("boom")
			}
			return models.CreatedIssue{Number: 900, URL: "https://github.com/owner/repo/issues/900"}, nil
		},
		CreateCommentFunc: func(repository string, issueNumber int, body string) error {
			commentCount[issueNumber]++
			return nil
		},
	}

	executor := newTestExecutor(source, target)
	executor.CommentBack = true
	report := executor.Run([]int{7, 9})

	require.Len(t, report.Results, 2)
	assert.Equal(t, models.StatusFailed, report.Results[0].Status)
	assert.Equal(t, 7, report.Results[0].TicketID)
	assert.Equal(t, models.StatusMigrated, report.Results[1].Status)
	assert.Equal(t, 9, report.Results[1].TicketID)

	assert.Equal(t, map[int]int{900: 1}, commentCount, "no comments for the failed ticket")
	assert.Equal(t, 1, report.Migrated())
	assert.Equal(t, 1, report.Failed())
}

func TestFetchFailureIsolation(t *testing.T) {
	source := &mockSource{
		FetchTicketFunc: func(id int) (models.Ticket, error) {
			if id == 3 {
				return models.Ticket{}, errors.New("no such ticket")
			}
			return ticketFixture(id, "OK", "description"), nil
		},
	}

	target := &mockTarget{
		CreateIssueFunc: func(repository string, req models.IssueRequest) (models.CreatedIssue, error) {
			return models.CreatedIssue{Number: 1}, nil
		},
	}

	report := newTestExecutor(source, target).Run([]int{3, 4})

	require.Len(t, report.Results, 2)
	assert.Equal(t, models.StatusFailed, report.Results[0].Status)
	assert.Contains(t, report.Results[0].Error, "fetch")
	assert.Equal(t, models.StatusMigrated, report.Results[1].Status)
}

func TestCommentFailureDoesNotAbortReplay(t *testing.T) {
	ticket := ticketFixture(5, "Flaky", "description", "first", "second", "third")

	source := &mockSource{
		FetchTicketFunc: func(id int) (models.Ticket, error) { return ticket, nil },
	}

	var comments []string
	target := &mockTarget{
		CreateIssueFunc: func(repository string, req models.IssueRequest) (models.CreatedIssue, error) {
			return models.CreatedIssue{Number: 1}, nil
		},
		CreateCommentFunc: func(repository string, issueNumber int, body string) error {
			comments = append(comments, body)
			if len(comments) == 2 {
				return errors.New("transient failure")
			}
			return nil
		},
	}

	report := newTestExecutor(source, target).Run([]int{5})

	// The second comment failed but the third was still attempted, and
	// the ticket as a whole still counts as migrated.
	require.Len(t, comments, 3)
	assert.Contains(t, comments[2], "third")
	assert.Equal(t, models.StatusMigrated, report.Results[0].Status)
}

func TestFirstCommentRetriedAfterCreation(t *testing.T) {
	// The first comment can hit a not-yet-visible issue; it is retried
	// with backoff until the issue propagates.
	ticket := ticketFixture(6, "Eventually consistent", "description", "only comment")

	source := &mockSource{
		FetchTicketFunc: func(id int) (models.Ticket, error) { return ticket, nil },
	}

	attempts := 0
	target := &mockTarget{
		CreateIssueFunc: func(repository string, req models.IssueRequest) (models.CreatedIssue, error) {
			return models.CreatedIssue{Number: 1}, nil
		},
		CreateCommentFunc: func(repository string, issueNumber int, body string) error {
			attempts++
			if attempts < 3 {
				return errors.New("404 issue not found")
			}
			return nil
		},
	}

	report := newTestExecutor(source, target).Run([]int{6})

	assert.Equal(t, 3, attempts)
	assert.Equal(t, models.StatusMigrated, report.Results[0].Status)
}

func TestDryRunPerformsNoMutations(t *testing.T) {
	ticket := ticketFixture(42, "Crash on save", "It crashes.", "Me too.", models.NoContentMarker)

	source := &mockSource{
		FetchTicketFunc: func(id int) (models.Ticket, error) { return ticket, nil },
		AppendCorrespondenceFunc: func(id int, message string) error {
			t.Fatal("dry run must not write back-references")
			return nil
		},
	}

	target := &mockTarget{
		CreateIssueFunc: func(repository string, req models.IssueRequest) (models.CreatedIssue, error) {
			t.Fatal("dry run must not create issues")
			return models.CreatedIssue{}, nil
		},
		CreateCommentFunc: func(repository string, issueNumber int, body string) error {
			t.Fatal("dry run must not create comments")
			return nil
		},
	}

	var out bytes.Buffer
	executor := newTestExecutor(source, target)
	executor.DryRun = true
	executor.CommentBack = true
	executor.Reporter = NewReporter(&out)

	report := executor.Run([]int{42})

	require.Len(t, report.Results, 1)
	assert.Equal(t, models.StatusDryRun, report.Results[0].Status)
	assert.Contains(t, out.String(), "Crash on save [rt.cpan.org #42]")
	assert.Contains(t, out.String(), "would create comment")
}

func TestCommentBack(t *testing.T) {
	ticket := ticketFixture(11, "Needs back-reference", "description")

	var correspondence string
	source := &mockSource{
		FetchTicketFunc: func(id int) (models.Ticket, error) { return ticket, nil },
		AppendCorrespondenceFunc: func(id int, message string) error {
			assert.Equal(t, 11, id)
			correspondence = message
			return nil
		},
	}

	target := &mockTarget{
		CreateIssueFunc: func(repository string, req models.IssueRequest) (models.CreatedIssue, error) {
			return models.CreatedIssue{Number: 12, URL: "https://github.com/owner/repo/issues/12"}, nil
		},
	}

	executor := newTestExecutor(source, target)
	executor.CommentBack = true
	report := executor.Run([]int{11})

	assert.Equal(t, models.StatusMigrated, report.Results[0].Status)
	assert.Contains(t, correspondence, "https://github.com/owner/repo/issues/12")
	assert.Contains(t, correspondence, "will remain\nopen until the GitHub issue is resolved")
}

func TestCommentBackFailureDoesNotFailTicket(t *testing.T) {
	ticket := ticketFixture(11, "Back-reference fails", "description")

	source := &mockSource{
		FetchTicketFunc: func(id int) (models.Ticket, error) { return ticket, nil },
		AppendCorrespondenceFunc: func(id int, message string) error {
			return errors.New("rt is down")
		},
	}

	target := &mockTarget{
		CreateIssueFunc: func(repository string, req models.IssueRequest) (models.CreatedIssue, error) {
			return models.CreatedIssue{Number: 12}, nil
		},
	}

	executor := newTestExecutor(source, target)
	executor.CommentBack = true
	report := executor.Run([]int{11})

	assert.Equal(t, models.StatusMigrated, report.Results[0].Status)
}

func TestRepeatedRunsAreIdempotent(t *testing.T) {
	source := &mockSource{
		FetchTicketFunc: func(id int) (models.Ticket, error) {
			return ticketFixture(id, fmt.Sprintf("Ticket %d", id), "description"), nil
		},
	}

	var open []models.GitHubIssue
	issueNumber := 0
	target := &mockTarget{
		CreateIssueFunc: func(repository string, req models.IssueRequest) (models.CreatedIssue, error) {
			issueNumber++
			open = append(open, models.GitHubIssue{Number: issueNumber, Title: req.Title})
			return models.CreatedIssue{Number: issueNumber}, nil
		},
	}

	candidates := []int{2, 1, 3}
	executor := newTestExecutor(source, target)

	// First run against an empty target migrates everything.
	firstPlan := Plan(candidates, MigratedIDs(nil))
	report := executor.Run(firstPlan)
	assert.Equal(t, 3, report.Migrated())
	assert.Len(t, open, 3)

	// Second run sees the created issues and plans nothing.
	secondPlan := Plan(candidates, MigratedIDs(open))
	assert.Empty(t, secondPlan)
	assert.Len(t, open, 3, "second run created no issues")
}
