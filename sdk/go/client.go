package capworkssdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Capworks HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// AnnualProgram represents the API annual program model.
type AnnualProgram struct {
	ID          string `json:"id"`
	Year        int    `json:"year"`
	ExecutorID  string `json:"executor_id"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
}

// ProgramBook represents the API program book model (partial).
type ProgramBook struct {
	ID                           string   `json:"id"`
	AnnualProgramID              string   `json:"annual_program_id"`
	Name                         string   `json:"name"`
	Status                       string   `json:"status"`
	ProjectTypes                 []string `json:"project_types,omitempty"`
	ProgramTypes                 []string `json:"program_types,omitempty"`
	BoroughIDs                   []string `json:"borough_ids,omitempty"`
	IsAutomaticLoadingInProgress bool     `json:"is_automatic_loading_in_progress"`
}

// OrderedProject is one ranked entry of a priority scenario.
type OrderedProject struct {
	ProjectID string `json:"project_id"`
	Rank      int    `json:"rank"`
}

// PriorityScenario represents the ranked project list of a program book.
type PriorityScenario struct {
	ID              string           `json:"id"`
	ProgramBookID   string           `json:"program_book_id"`
	Name            string           `json:"name"`
	IsOutdated      bool             `json:"is_outdated"`
	OrderedProjects []OrderedProject `json:"ordered_projects,omitempty"`
}

// Project represents the API project model (partial).
type Project struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Status        string `json:"status"`
	ExecutorID    string `json:"executor_id"`
	ProjectTypeID string `json:"project_type_id"`
	BoroughID     string `json:"borough_id"`
	StartYear     int    `json:"start_year"`
	EndYear       int    `json:"end_year"`
}

// LoadAck acknowledges a triggered automatic-loading run.
type LoadAck struct {
	ProgramBookID string `json:"program_book_id"`
	Status        string `json:"status"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateAnnualProgram creates an annual program.
func (c *Client) CreateAnnualProgram(ctx context.Context, year int, executorID string) (AnnualProgram, error) {
	body := map[string]any{
		"year":        year,
		"executor_id": executorID,
	}
	var resp AnnualProgram
	err := c.do(ctx, http.MethodPost, "annual-programs", body, &resp)
	return resp, err
}

// CreateProgramBook creates a program book under an annual program.
func (c *Client) CreateProgramBook(ctx context.Context, annualProgramID, name string, projectTypes, programTypes, boroughIDs []string) (ProgramBook, error) {
	body := map[string]any{
		"name":          name,
		"project_types": projectTypes,
		"program_types": programTypes,
		"borough_ids":   boroughIDs,
	}
	var resp ProgramBook
	endpoint := fmt.Sprintf("annual-programs/%s/program-books", url.PathEscape(annualProgramID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// GetProgramBook fetches a program book by id.
func (c *Client) GetProgramBook(ctx context.Context, id string) (ProgramBook, error) {
	var resp ProgramBook
	endpoint := fmt.Sprintf("program-books/%s", url.PathEscape(id))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// TriggerLoading starts automatic loading for a program book. The server
// acknowledges with 202 and runs the scan in the background; poll
// GetProgramBook or use WaitForLoading to observe completion.
func (c *Client) TriggerLoading(ctx context.Context, programBookID string) (LoadAck, error) {
	var resp LoadAck
	endpoint := fmt.Sprintf("program-books/%s/load", url.PathEscape(programBookID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// ResetLoading clears a stuck loading flag. Admin operation.
func (c *Client) ResetLoading(ctx context.Context, programBookID string) error {
	endpoint := fmt.Sprintf("program-books/%s/load/reset", url.PathEscape(programBookID))
	return c.do(ctx, http.MethodPost, endpoint, nil, nil)
}

// WaitForLoading polls until the program book's loading flag clears or ctx
// expires.
func (c *Client) WaitForLoading(ctx context.Context, programBookID string, interval time.Duration) (ProgramBook, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		pb, err := c.GetProgramBook(ctx, programBookID)
		if err != nil {
			return ProgramBook{}, err
		}
		if !pb.IsAutomaticLoadingInProgress {
			return pb, nil
		}
		select {
		case <-ctx.Done():
			return pb, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Scenario fetches the active priority scenario of a program book.
func (c *Client) Scenario(ctx context.Context, programBookID string) (PriorityScenario, error) {
	var resp PriorityScenario
	endpoint := fmt.Sprintf("program-books/%s/scenario", url.PathEscape(programBookID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// CreateProject creates a project.
func (c *Client) CreateProject(ctx context.Context, p Project) (Project, error) {
	body := map[string]any{
		"name":            p.Name,
		"executor_id":     p.ExecutorID,
		"project_type_id": p.ProjectTypeID,
		"borough_id":      p.BoroughID,
		"start_year":      p.StartYear,
		"end_year":        p.EndYear,
	}
	if p.Status != "" {
		body["status"] = p.Status
	}
	var resp Project
	err := c.do(ctx, http.MethodPost, "projects", body, &resp)
	return resp, err
}

// CompatibleProgramBooks returns the program books a project could join.
func (c *Client) CompatibleProgramBooks(ctx context.Context, projectID string) ([]ProgramBook, error) {
	var resp []ProgramBook
	endpoint := fmt.Sprintf("projects/%s/compatible-program-books", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent events, optionally scoped to one entity.
func (c *Client) Events(ctx context.Context, entityID string, limit int) ([]Event, error) {
	endpoint := "events"
	q := url.Values{}
	if entityID != "" {
		q.Set("entity_id", entityID)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v1/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
