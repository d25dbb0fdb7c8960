// Package rt provides a client for RT's REST 1.0 interface.
//
// RT speaks a line-oriented text format over plain HTTP: every response
// starts with a status line ("RT/4.0.18 200 Ok"), followed by a blank line
// and key/value records. There is no maintained Go client library for it,
// so the small subset this tool needs (search, ticket show, ticket history,
// correspondence) is implemented directly on net/http.
package rt

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pmatias/rt2gh/internal/config"
	"github.com/pmatias/rt2gh/internal/logging"
	"github.com/pmatias/rt2gh/pkg/models"
)

// migratableStatuses is the RT status filter for queue searches. Only
// tickets an operator could still act on are worth migrating.
var migratableStatuses = []string{"new", "open", "stalled"}

// Client handles interactions with the RT REST 1.0 API.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// NewClient creates a new RT client from resolved configuration.
func NewClient(cfg *config.Config) (*Client, error) {
	if err := config.ValidateRTConfig(cfg); err != nil {
		return nil, err
	}

	logging.Info("rt configuration",
		"url", cfg.RT.URL,
		"username", cfg.RT.Username,
		"password", logging.MaskSensitive(cfg.RT.Password))

	return &Client{
		baseURL:    strings.TrimRight(cfg.RT.URL, "/"),
		username:   cfg.RT.Username,
		password:   cfg.RT.Password,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Search returns the ids of tickets in the given queue whose status is
// new, open, or stalled, in ascending id order.
func (c *Client) Search(queue string) ([]int, error) {
	var statuses []string
	for _, s := range migratableStatuses {
		statuses = append(statuses, fmt.Sprintf("Status='%s'", s))
	}
	query := fmt.Sprintf("Queue='%s' AND (%s)", queue, strings.Join(statuses, " OR "))

	params := url.Values{}
	params.Set("query", query)
	params.Set("orderby", "+id")
	params.Set("format", "i")

	body, err := c.get("search/ticket", params)
	if err != nil {
		return nil, fmt.Errorf("failed to search queue '%s': %w", queue, err)
	}

	var ids []int
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "ticket/") {
			continue
		}
		id, err := strconv.Atoi(strings.TrimPrefix(line, "ticket/"))
		if err != nil {
			logging.Warn("skipping unparseable search result", "queue", queue, "line", line)
			continue
		}
		ids = append(ids, id)
	}

	logging.Debug("searched queue", "queue", queue, "ticket_count", len(ids))
	return ids, nil
}

// FetchTicket retrieves a ticket's subject, custom fields, and full
// transaction history. The history is returned in chronological order;
// the first transaction is the ticket creation.
func (c *Client) FetchTicket(id int) (models.Ticket, error) {
	show, err := c.get(fmt.Sprintf("ticket/%d/show", id), nil)
	if err != nil {
		return models.Ticket{}, fmt.Errorf("failed to fetch ticket %d: %w", id, err)
	}

	// Missing tickets and denied access come back as comment lines in an
	// otherwise OK response ("# Ticket 999 does not exist."); a real
	// ticket starts with its id record.
	if strings.HasPrefix(strings.TrimSpace(show), "#") {
		return models.Ticket{}, fmt.Errorf("failed to fetch ticket %d: %s", id, strings.TrimSpace(show))
	}

	ticket := models.Ticket{
		ID:           id,
		CustomFields: map[string]string{},
	}
	parseShow(show, &ticket)

	params := url.Values{}
	params.Set("format", "l")
	history, err := c.get(fmt.Sprintf("ticket/%d/history", id), params)
	if err != nil {
		return models.Ticket{}, fmt.Errorf("failed to fetch history for ticket %d: %w", id, err)
	}
	ticket.Transactions = parseHistory(history)

	return ticket, nil
}

// AppendCorrespondence posts a correspondence entry on the ticket, visible
// to the requestor. Used for the back-reference comment after migration.
func (c *Client) AppendCorrespondence(id int, message string) error {
	content := fmt.Sprintf("id: %d\nAction: correspond\nText: %s",
		id, strings.ReplaceAll(message, "\n", "\n "))

	form := url.Values{}
	form.Set("content", content)

	if _, err := c.post(fmt.Sprintf("ticket/%d/comment", id), form); err != nil {
		return fmt.Errorf("failed to append correspondence to ticket %d: %w", id, err)
	}

	logging.Debug("appended correspondence", "ticket_id", id)
	return nil
}

// get issues an authenticated GET and returns the response body with the
// RT status line stripped.
func (c *Client) get(path string, params url.Values) (string, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("user", c.username)
	params.Set("pass", c.password)

	endpoint := fmt.Sprintf("%s/REST/1.0/%s?%s", c.baseURL, path, params.Encode())
	resp, err := c.httpClient.Get(endpoint)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	return readBody(resp)
}

// post issues an authenticated form POST and returns the response body with
// the RT status line stripped.
func (c *Client) post(path string, form url.Values) (string, error) {
	form.Set("user", c.username)
	form.Set("pass", c.password)

	endpoint := fmt.Sprintf("%s/REST/1.0/%s", c.baseURL, path)
	resp, err := c.httpClient.PostForm(endpoint, form)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	return readBody(resp)
}

// readBody consumes an RT response, validates the embedded status line, and
// returns the remaining body. RT reports its real status inside the body;
// the HTTP status is 200 even for errors.
func readBody(resp *http.Response) (string, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}

	body := string(raw)
	statusLine, rest, _ := strings.Cut(body, "\n")
	fields := strings.Fields(statusLine)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "RT/") {
		return "", fmt.Errorf("malformed RT response: %q", statusLine)
	}
	if fields[1] != "200" {
		return "", fmt.Errorf("rt error: %s", strings.TrimSpace(statusLine))
	}

	return strings.TrimLeft(rest, "\n"), nil
}

// parseShow fills subject and custom fields from a ticket/<id>/show body.
// Custom fields arrive as "CF.{Name}: value" records.
func parseShow(body string, ticket *models.Ticket) {
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch {
		case key == "Subject":
			ticket.Subject = value
		case strings.HasPrefix(key, "CF.{") && strings.HasSuffix(key, "}"):
			name := key[len("CF.{") : len(key)-1]
			ticket.CustomFields[name] = value
		}
	}
}

// historyContinuation is the margin RT prefixes to continuation lines of
// multiline values in long-format history output.
const historyContinuation = "         "

// parseHistory parses a ticket/<id>/history?format=l body into ordered
// transactions. Entries are separated by lines containing only "--";
// multiline Content values continue on lines indented by nine spaces.
func parseHistory(body string) []models.Transaction {
	var transactions []models.Transaction

	for _, entry := range strings.Split(body, "\n--\n") {
		tx, ok := parseHistoryEntry(entry)
		if ok {
			transactions = append(transactions, tx)
		}
	}

	return transactions
}

func parseHistoryEntry(entry string) (models.Transaction, bool) {
	var tx models.Transaction
	seen := false

	lines := strings.Split(entry, "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}

		switch key {
		case "id":
			seen = true
		case "Creator":
			tx.Creator = value
		case "Created":
			tx.Created = value
		case "Content":
			content := []string{value}
			for i+1 < len(lines) && (strings.HasPrefix(lines[i+1], historyContinuation) || lines[i+1] == "") {
				i++
				content = append(content, strings.TrimPrefix(lines[i], historyContinuation))
			}
			// Blank lines before the next key are separators, not content.
			for len(content) > 0 && content[len(content)-1] == "" {
				content = content[:len(content)-1]
			}
			tx.Content = strings.Join(content, "\n")
		}
	}

	return tx, seen
}
