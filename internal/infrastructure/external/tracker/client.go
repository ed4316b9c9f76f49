package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/teamsync/sprint-scribe/errors"
	"github.com/teamsync/sprint-scribe/pkg/config"
)

// ErrRevisionConflict is returned by UpdateTicket when the ticket was
// modified concurrently and the supplied revision token is stale.
var ErrRevisionConflict = errors.New("tracker: revision token conflict")

// Ticket is the collaborator's view of one ticket.
type Ticket struct {
	Key    string                 `json:"key"`
	Fields map[string]interface{} `json:"fields"`
	// RevisionToken is the tracker's concurrency-control value; it changes
	// on every mutation of the ticket.
	RevisionToken string `json:"revision_token"`
}

// Summary returns the ticket summary field, empty when absent.
func (t *Ticket) Summary() string {
	if s, ok := t.Fields["summary"].(string); ok {
		return s
	}
	return ""
}

// Status returns the ticket status name, empty when absent.
func (t *Ticket) Status() string {
	if s, ok := t.Fields["status"].(string); ok {
		return s
	}
	return ""
}

// ChangeEvent is one entry of a ticket's change history.
type ChangeEvent struct {
	TicketKey string    `json:"ticket_key"`
	Field     string    `json:"field"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	At        time.Time `json:"at"`
}

// Sprint describes one sprint window.
type Sprint struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	State     string    `json:"state"`
}

// Client is a REST client for the ticket-store collaborator.
type Client struct {
	host             string
	token            string
	storyPointsField string
	client           *http.Client
}

// NewClient creates a tracker client from config.
func NewClient(cfg *config.TrackerConfig) *Client {
	c := &Client{
		host:             cfg.Host,
		token:            cfg.Token,
		storyPointsField: cfg.StoryPointsField,
		client:           &http.Client{Timeout: 30 * time.Second},
	}
	if cfg.Timeout > 0 {
		c.client.Timeout = cfg.Timeout
	}
	return c
}

// StoryPointsField exposes the tracker's custom story-points field name.
func (c *Client) StoryPointsField() string {
	return c.storyPointsField
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.host+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return apperrors.ErrExternalTimeout("tracker", err)
		}
		return apperrors.ErrExternalUnavailable("tracker", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return ErrRevisionConflict
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperrors.ErrExternalRateLimited("tracker")
	case resp.StatusCode >= 500:
		return apperrors.ErrExternalUnavailable("tracker", fmt.Errorf("tracker returned status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return fmt.Errorf("tracker returned status %d", resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// CreateTicket creates a new ticket and returns its key.
func (c *Client) CreateTicket(ctx context.Context, fields map[string]interface{}) (string, error) {
	var created struct {
		Key string `json:"key"`
	}
	if err := c.do(ctx, http.MethodPost, "/rest/api/2/issue", map[string]interface{}{"fields": fields}, &created); err != nil {
		return "", err
	}
	if created.Key == "" {
		return "", fmt.Errorf("tracker returned no ticket key")
	}
	return created.Key, nil
}

// GetTicket fetches a ticket with its current revision token.
func (c *Client) GetTicket(ctx context.Context, key string) (*Ticket, error) {
	var t Ticket
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/issue/"+url.PathEscape(key), nil, &t); err != nil {
		return nil, err
	}
	if t.Key == "" {
		t.Key = key
	}
	return &t, nil
}

// UpdateTicket applies field changes guarded by the revision token.
// Returns ErrRevisionConflict when the token is stale.
func (c *Client) UpdateTicket(ctx context.Context, key string, fields map[string]interface{}, revisionToken string) error {
	payload := map[string]interface{}{
		"fields":         fields,
		"revision_token": revisionToken,
	}
	return c.do(ctx, http.MethodPut, "/rest/api/2/issue/"+url.PathEscape(key), payload, nil)
}

// AddComment appends a comment to the ticket.
func (c *Client) AddComment(ctx context.Context, key, text string) error {
	return c.do(ctx, http.MethodPost, "/rest/api/2/issue/"+url.PathEscape(key)+"/comment", map[string]string{"body": text}, nil)
}

// SearchTickets runs a free-text search.
func (c *Client) SearchTickets(ctx context.Context, query string) ([]Ticket, error) {
	var result struct {
		Issues []Ticket `json:"issues"`
	}
	path := "/rest/api/2/search?jql=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Issues, nil
}

// ListOpenTickets returns the team's currently open tickets, used as
// matching context for extraction and reconciliation.
func (c *Client) ListOpenTickets(ctx context.Context, project string) ([]Ticket, error) {
	return c.SearchTickets(ctx, fmt.Sprintf("project = %s AND statusCategory != Done", project))
}

// GetSprint fetches one sprint's window.
func (c *Client) GetSprint(ctx context.Context, sprintID string) (*Sprint, error) {
	var s Sprint
	if err := c.do(ctx, http.MethodGet, "/rest/agile/1.0/sprint/"+url.PathEscape(sprintID), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SprintTickets lists tickets in a sprint.
func (c *Client) SprintTickets(ctx context.Context, sprintID string) ([]Ticket, error) {
	var result struct {
		Issues []Ticket `json:"issues"`
	}
	if err := c.do(ctx, http.MethodGet, "/rest/agile/1.0/sprint/"+url.PathEscape(sprintID)+"/issue", nil, &result); err != nil {
		return nil, err
	}
	return result.Issues, nil
}

// TicketHistory returns the change history of a ticket, oldest first.
func (c *Client) TicketHistory(ctx context.Context, key string) ([]ChangeEvent, error) {
	var result struct {
		Changes []ChangeEvent `json:"changes"`
	}
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/issue/"+url.PathEscape(key)+"/changelog", nil, &result); err != nil {
		return nil, err
	}
	for i := range result.Changes {
		if result.Changes[i].TicketKey == "" {
			result.Changes[i].TicketKey = key
		}
	}
	return result.Changes, nil
}
