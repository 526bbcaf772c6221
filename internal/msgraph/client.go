// Package msgraph reads an Outlook calendar through Microsoft Graph.
package msgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/christopherklint97/autosheet/internal/calendar"
	"github.com/christopherklint97/autosheet/internal/timesheet"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// Client is a Microsoft Graph API client for calendar operations.
type Client struct {
	auth       *Auth
	baseURL    string
	timeZone   string
	identity   Identity
	cache      *calendar.CalendarCache
	httpClient *http.Client
	maxRetries int
	logger     *slog.Logger
}

// NewClient creates a new Graph API client. Days are evaluated in timeZone,
// or the local zone when empty.
func NewClient(auth *Auth, timeZone string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Client{
		auth:     auth,
		baseURL:  graphBaseURL,
		timeZone: timeZone,
		cache:    calendar.NewCalendarCache(15 * time.Minute),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
		logger:     logger,
	}
	if auth != nil {
		c.identity = auth.identity
	}
	return c
}

type calendarViewResponse struct {
	Value    []graphEvent `json:"value"`
	NextLink string       `json:"@odata.nextLink"`
}

type graphEvent struct {
	ID             string          `json:"id"`
	Subject        string          `json:"subject"`
	BodyPreview    string          `json:"bodyPreview"`
	Start          graphDateTime   `json:"start"`
	End            graphDateTime   `json:"end"`
	IsCancelled    bool            `json:"isCancelled"`
	IsAllDay       bool            `json:"isAllDay"`
	ShowAs         string          `json:"showAs"`
	ResponseStatus graphResponse   `json:"responseStatus"`
	Organizer      graphRecipient  `json:"organizer"`
	Attendees      []graphAttendee `json:"attendees"`
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphResponse struct {
	Response string `json:"response"`
}

type graphRecipient struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

type graphAttendee struct {
	graphRecipient
	Status graphResponse `json:"status"`
}

type graphUser struct {
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

type graphCalendar struct {
	ID string `json:"id"`
}

// Me returns the email of the account that owns accessToken.
func (c *Client) Me(ctx context.Context, accessToken string) (string, error) {
	var user graphUser
	if err := c.getJSON(ctx, accessToken, c.baseURL+"/me?$select=mail,userPrincipalName", &user); err != nil {
		return "", err
	}
	email := user.Mail
	if email == "" {
		email = user.UserPrincipalName
	}
	if email == "" {
		return "", fmt.Errorf("graph account has no email address")
	}
	return strings.TrimSpace(email), nil
}

func (c *Client) PrimaryCalendar(ctx context.Context) (calendar.Calendar, error) {
	if cal, ok := c.cache.Get(); ok {
		return cal, nil
	}
	token, err := c.auth.EnsureValidToken(ctx)
	if err != nil {
		return calendar.Calendar{}, err
	}

	var gc graphCalendar
	if err := c.getJSON(ctx, token, c.baseURL+"/me/calendar?$select=id", &gc); err != nil {
		return calendar.Calendar{}, err
	}

	loc := calendar.LoadLocation(c.timeZone)
	cal := calendar.Calendar{ID: gc.ID, TimeZone: loc.String(), Location: loc}
	c.cache.Set(cal)
	return cal, nil
}

// Events retrieves events overlapping [start, end) from the calendar view.
func (c *Client) Events(ctx context.Context, calendarID string, start, end time.Time) ([]calendar.Event, error) {
	token, err := c.auth.EnsureValidToken(ctx)
	if err != nil {
		return nil, err
	}
	var self string
	if c.identity != nil {
		if self, err = c.identity.Email(ctx); err != nil {
			return nil, err
		}
	}

	params := url.Values{
		"startDateTime": {start.UTC().Format("2006-01-02T15:04:05")},
		"endDateTime":   {end.UTC().Format("2006-01-02T15:04:05")},
		"$select":       {"subject,bodyPreview,start,end,isCancelled,isAllDay,showAs,responseStatus,organizer,attendees"},
		"$top":          {"100"},
		"$orderby":      {"start/dateTime"},
	}
	requestURL := fmt.Sprintf("%s/me/calendars/%s/calendarView?%s", c.baseURL, url.PathEscape(calendarID), params.Encode())

	loc := start.Location()
	var events []calendar.Event
	for requestURL != "" {
		var page calendarViewResponse
		if err := c.getJSON(ctx, token, requestURL, &page); err != nil {
			return nil, err
		}
		for _, ge := range page.Value {
			ev, err := convertEvent(ge, self, loc)
			if err != nil {
				c.logger.Debug("skipping event", "event", ge.ID, "error", err)
				continue
			}
			events = append(events, ev)
		}
		requestURL = page.NextLink
	}

	c.logger.Debug("graph calendar events fetched", "count", len(events))
	return events, nil
}

func convertEvent(ge graphEvent, self string, loc *time.Location) (calendar.Event, error) {
	if ge.IsAllDay {
		return calendar.Event{}, fmt.Errorf("all-day event")
	}
	start, err := parseGraphDateTime(ge.Start)
	if err != nil {
		return calendar.Event{}, err
	}
	end, err := parseGraphDateTime(ge.End)
	if err != nil {
		return calendar.Event{}, err
	}

	ev := calendar.Event{
		ID:          ge.ID,
		Type:        calendar.EventTypeDefault,
		Status:      calendar.StatusConfirmed,
		Start:       start.In(loc),
		End:         end.In(loc),
		Summary:     ge.Subject,
		Description: ge.BodyPreview,
	}
	if ge.ShowAs == "oof" {
		ev.Type = calendar.EventTypeOutOfOffice
	}
	if ge.IsCancelled {
		ev.Status = calendar.StatusCancelled
	}

	// Graph lists the organizer separately from the invitees.
	if len(ge.Attendees) > 0 {
		organizer := ge.Organizer.EmailAddress.Address
		seen := false
		for _, a := range ge.Attendees {
			if strings.EqualFold(a.EmailAddress.Address, organizer) {
				seen = true
			}
			ev.Attendees = append(ev.Attendees, calendar.Attendee{
				Email:          a.EmailAddress.Address,
				ResponseStatus: responseStatus(a.Status.Response),
			})
		}
		if organizer != "" && !seen {
			ev.Attendees = append(ev.Attendees, calendar.Attendee{
				Email:          organizer,
				ResponseStatus: calendar.ResponseAccepted,
			})
		}
		calendar.MarkSelf(ev.Attendees, self)
		for i := range ev.Attendees {
			if ev.Attendees[i].Self {
				ev.Attendees[i].ResponseStatus = responseStatus(ge.ResponseStatus.Response)
			}
		}
	}
	return ev, nil
}

func responseStatus(graph string) calendar.ResponseStatus {
	switch graph {
	case "accepted", "organizer":
		return calendar.ResponseAccepted
	case "declined":
		return calendar.ResponseDeclined
	case "tentativelyAccepted":
		return calendar.ResponseTentative
	case "notResponded":
		return calendar.ResponseNeedsAction
	default:
		return ""
	}
}

func (c *Client) getJSON(ctx context.Context, token, requestURL string, out any) error {
	body, err := c.doRequest(ctx, token, requestURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing graph response: %w", err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, token, requestURL string) ([]byte, error) {
	var resp *http.Response
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating graph request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Prefer", "outlook.timezone=\"UTC\"")

		resp, err = c.httpClient.Do(req)
		if err != nil {
			if attempt == c.maxRetries {
				return nil, fmt.Errorf("graph API request failed: %w", err)
			}
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
			c.logger.Debug("graph API retrying", "status", resp.StatusCode, "attempt", attempt+1)
			if err := sleep(ctx, backoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading graph response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &timesheet.ProviderRequestError{Service: "Microsoft Graph", Status: resp.StatusCode, Body: truncateStr(string(body), 200)}
	}
	return body, nil
}

func parseGraphDateTime(gdt graphDateTime) (time.Time, error) {
	// With Prefer: outlook.timezone="UTC" times come back in UTC as
	// "2006-01-02T15:04:05.0000000".
	loc := time.UTC
	if gdt.TimeZone != "" && gdt.TimeZone != "UTC" {
		l, err := time.LoadLocation(gdt.TimeZone)
		if err == nil {
			loc = l
		}
	}

	for _, layout := range []string{
		"2006-01-02T15:04:05.0000000",
		"2006-01-02T15:04:05",
	} {
		t, err := time.ParseInLocation(layout, gdt.DateTime, loc)
		if err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("cannot parse datetime %q", gdt.DateTime)
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
