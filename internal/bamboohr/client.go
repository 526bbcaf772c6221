package bamboohr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/christopherklint97/autosheet/internal/timesheet"
)

const defaultBaseURL = "https://api.bamboohr.com/api/gateway.php"

// Tasks maps timesheet categories to BambooHR project and task ids.
type Tasks struct {
	ProjectID   int
	Meeting     int
	OneOnOne    int
	Development int
}

func (t Tasks) TaskID(c timesheet.Category) int {
	switch c {
	case timesheet.CategoryMeeting:
		return t.Meeting
	case timesheet.CategoryOneOnOne:
		return t.OneOnOne
	case timesheet.CategoryDevelopment:
		return t.Development
	}
	return 0
}

// CredentialSource yields the API credentials for the current user, or nil
// when no account is linked.
type CredentialSource interface {
	Credentials(ctx context.Context) (*Credentials, error)
}

// Client talks to the BambooHR time tracking API. Credentials are looked up
// for every request and never kept on the client.
type Client struct {
	baseURL    string
	creds      CredentialSource
	tasks      Tasks
	httpClient *http.Client
	logger     *slog.Logger
	maxRetries int
}

func NewClient(companyDomain, baseURL string, creds CredentialSource, tasks Tasks, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/" + url.PathEscape(companyDomain) + "/v1",
		creds:   creds,
		tasks:   tasks,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:     logger,
		maxRetries: 3,
	}
}

func (c *Client) credentials(ctx context.Context) (*Credentials, error) {
	creds, err := c.creds.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, &timesheet.AccountNotLinkedError{Service: "BambooHR"}
	}
	return creds, nil
}

func (c *Client) doRequest(ctx context.Context, creds *Credentials, method, path string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	c.logger.Debug("bamboohr API request", "method", method, "path", path)

	var resp *http.Response
	requestStart := time.Now()
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.SetBasicAuth(creds.APIKey, "x")
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err = c.httpClient.Do(req)
		if err != nil {
			if attempt == c.maxRetries || ctx.Err() != nil {
				c.logger.Error("API request transport error", "method", method, "path", path, "error", err, "elapsed", time.Since(requestStart))
				return nil, fmt.Errorf("sending request: %w", err)
			}
			c.logger.Debug("API request transport error, retrying", "method", method, "path", path, "attempt", attempt+1, "error", err)
			if err := sleep(ctx, backoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			if attempt == c.maxRetries {
				break
			}
			resp.Body.Close()
			c.logger.Debug("API request retryable error", "method", method, "path", path, "status", resp.StatusCode, "attempt", attempt+1)
			if err := sleep(ctx, backoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	c.logger.Debug("bamboohr API response", "method", method, "path", path, "status", resp.StatusCode, "bytes", len(respBody), "elapsed", time.Since(requestStart))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("API request failed", "method", method, "path", path, "status", resp.StatusCode, "response", truncate(string(respBody), 200))
		return nil, &timesheet.ProviderRequestError{Service: "BambooHR", Status: resp.StatusCode, Body: truncate(string(respBody), 1000)}
	}

	return respBody, nil
}

func backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// IsLinked reports whether API credentials are stored for the current user.
func (c *Client) IsLinked(ctx context.Context) (bool, error) {
	creds, err := c.creds.Credentials(ctx)
	if err != nil {
		return false, err
	}
	return creds != nil, nil
}

// Verify checks creds by fetching the employee record they belong to.
func (c *Client) Verify(ctx context.Context, creds Credentials) (*Employee, error) {
	if creds.APIKey == "" || creds.EmployeeID == "" {
		return nil, fmt.Errorf("API key and employee ID are required")
	}
	path := fmt.Sprintf("/employees/%s?fields=firstName,lastName,displayName,workEmail", url.PathEscape(creds.EmployeeID))
	data, err := c.doRequest(ctx, &creds, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("verifying credentials: %w", err)
	}

	var emp Employee
	if err := json.Unmarshal(data, &emp); err != nil {
		return nil, fmt.Errorf("parsing employee response: %w", err)
	}
	return &emp, nil
}

// Entries lists the employee's timesheet entries between start and end
// inclusive.
func (c *Client) Entries(ctx context.Context, start, end timesheet.Date) ([]timesheet.RemoteEntry, error) {
	creds, err := c.credentials(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"start":       {start.String()},
		"end":         {end.String()},
		"employeeIds": {creds.EmployeeID},
	}
	data, err := c.doRequest(ctx, creds, http.MethodGet, "/time_tracking/timesheet_entries?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("getting timesheet entries: %w", err)
	}

	var raw []timesheetEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing timesheet entries response: %w", err)
	}

	entries := make([]timesheet.RemoteEntry, 0, len(raw))
	for _, r := range raw {
		date, err := timesheet.ParseDate(r.Date)
		if err != nil {
			c.logger.Warn("skipping timesheet entry with unparseable date", "id", r.ID, "date", r.Date)
			continue
		}
		e := timesheet.RemoteEntry{ID: r.ID.String(), Date: date, Approved: r.Approved}
		if r.Hours != nil {
			e.Hours = *r.Hours
		}
		if r.Note != nil {
			e.Note = *r.Note
		}
		if r.ProjectInfo != nil && r.ProjectInfo.Task != nil {
			e.TaskID = r.ProjectInfo.Task.ID
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// CreateEntries stores all entries in a single request.
func (c *Client) CreateEntries(ctx context.Context, entries []timesheet.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	creds, err := c.credentials(ctx)
	if err != nil {
		return err
	}
	employeeID, err := strconv.Atoi(creds.EmployeeID)
	if err != nil {
		return fmt.Errorf("employee ID %q is not numeric: %w", creds.EmployeeID, err)
	}

	req := storeHoursRequest{Hours: make([]hourEntry, 0, len(entries))}
	for _, e := range entries {
		req.Hours = append(req.Hours, hourEntry{
			EmployeeID: employeeID,
			Date:       e.Date.String(),
			Hours:      e.Hours,
			Note:       e.Note,
			ProjectID:  c.tasks.ProjectID,
			TaskID:     c.tasks.TaskID(e.Category),
		})
	}

	if _, err := c.doRequest(ctx, creds, http.MethodPost, "/time_tracking/hour_entries/store", req); err != nil {
		return fmt.Errorf("creating hour entries: %w", err)
	}
	c.logger.Info("created hour entries", "count", len(entries), "date", entries[0].Date.String())
	return nil
}

// DeleteEntries removes hour entries by id.
func (c *Client) DeleteEntries(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	creds, err := c.credentials(ctx)
	if err != nil {
		return err
	}

	req := deleteHoursRequest{HourEntryIDs: make([]int, 0, len(ids))}
	for _, id := range ids {
		n, err := strconv.Atoi(id)
		if err != nil {
			return fmt.Errorf("hour entry id %q is not numeric: %w", id, err)
		}
		req.HourEntryIDs = append(req.HourEntryIDs, n)
	}

	if _, err := c.doRequest(ctx, creds, http.MethodPost, "/time_tracking/hour_entries/delete", req); err != nil {
		return fmt.Errorf("deleting hour entries: %w", err)
	}
	return nil
}
