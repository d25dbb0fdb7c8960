// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"

	"github.com/pmatias/rt2gh/internal/config"
	"github.com/pmatias/rt2gh/internal/logging"
	"github.com/pmatias/rt2gh/pkg/models"
)

// issuePageSize is GitHub's default page size for issue listings. Every
// page must be visited when building the migrated-id set; stopping after
// the first page would silently re-migrate tickets beyond it.
const issuePageSize = 30

// Client encapsulates the GitHub API client.
type Client struct {
	client *github.Client
}

// NewClient creates a new GitHub API client from resolved configuration.
// It initializes the client with the appropriate base URL, authenticates
// with the GitHub API, and tests the connection.
func NewClient(cfg *config.Config) (*Client, error) {
	token := cfg.GitHub.Token
	if token == "" {
		return nil, fmt.Errorf("github token not found in configuration")
	}

	domain := cfg.GitHub.Domain
	if domain == "" {
		domain = "github.com"
	}

	var apiURL string
	if domain == "github.com" {
		apiURL = "https://api.github.com/"
	} else {
		apiURL = fmt.Sprintf("https://%s/api/v3/", domain)
	}

	logging.Info("github configuration",
		"domain", domain,
		"api_url", apiURL,
		"token", logging.MaskSensitive(token))

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(context.Background(), ts)

	client := github.NewClient(tc)

	if domain != "github.com" {
		parsedURL, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}
		client.BaseURL = parsedURL
		client.UploadURL = parsedURL
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("error testing github token: %w", err)
	}

	logging.Info("github authentication successful",
		"username", user.GetLogin())

	return &Client{client: client}, nil
}

// ListOpenIssues retrieves all open issues from a GitHub repository,
// following pagination until every page has been visited. Pull requests
// are filtered out. The repository should be in the format "owner/repo".
func (c *Client) ListOpenIssues(repository string) ([]models.GitHubIssue, error) {
	owner, repo, err := parseRepository(repository)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	opts := &github.IssueListByRepoOptions{
		State: "open",
		ListOptions: github.ListOptions{
			PerPage: issuePageSize,
		},
	}

	var result []models.GitHubIssue
	for {
		issues, resp, err := c.client.Issues.ListByRepo(ctx, owner, repo, opts)
		if err != nil {
			logging.Error("failed to fetch github issues", "repository", repository, "error", err)
			return nil, fmt.Errorf("failed to fetch GitHub issues: %v", err)
		}

		for _, issue := range issues {
			// Skip pull requests (they're also returned by the Issues API)
			if issue.PullRequestLinks != nil {
				continue
			}

			labelNames := make([]string, 0, len(issue.Labels))
			for _, label := range issue.Labels {
				labelNames = append(labelNames, label.GetName())
			}

			result = append(result, models.GitHubIssue{
				Number: issue.GetNumber(),
				Title:  issue.GetTitle(),
				Labels: labelNames,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	logging.Debug("listed open issues", "repository", repository, "issue_count", len(result))
	return result, nil
}

// CreateIssue creates a GitHub issue from the given payload. Labels that
// don't exist in the repository are created automatically by GitHub. It
// returns the created issue's number and HTML URL.
func (c *Client) CreateIssue(repository string, req models.IssueRequest) (models.CreatedIssue, error) {
	owner, repo, err := parseRepository(repository)
	if err != nil {
		return models.CreatedIssue{}, err
	}

	ctx := context.Background()
	labels := req.Labels
	issueReq := &github.IssueRequest{
		Title:  github.String(req.Title),
		Body:   github.String(req.Body),
		Labels: &labels,
	}

	issue, _, err := c.client.Issues.Create(ctx, owner, repo, issueReq)
	if err != nil {
		return models.CreatedIssue{}, fmt.Errorf("failed to create issue in %s: %v", repository, err)
	}

	logging.Debug("created issue",
		"repository", repository,
		"issue_number", issue.GetNumber(),
		"title", req.Title)

	return models.CreatedIssue{
		Number: issue.GetNumber(),
		URL:    issue.GetHTMLURL(),
	}, nil
}

// CreateComment adds a comment to an existing GitHub issue.
func (c *Client) CreateComment(repository string, issueNumber int, body string) error {
	owner, repo, err := parseRepository(repository)
	if err != nil {
		return err
	}

	ctx := context.Background()
	comment := &github.IssueComment{Body: github.String(body)}

	_, _, err = c.client.Issues.CreateComment(ctx, owner, repo, issueNumber, comment)
	if err != nil {
		return fmt.Errorf("failed to create comment on issue %s#%d: %v", repo, issueNumber, err)
	}

	logging.Debug("created comment", "repository", repository, "issue_number", issueNumber)
	return nil
}

// parseRepository splits an "owner/repo" string into its parts.
func parseRepository(repository string) (string, string, error) {
	parts := strings.Split(repository, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid repository format: %s, expected format: owner/repo", repository)
	}
	return parts[0], parts[1], nil
}
