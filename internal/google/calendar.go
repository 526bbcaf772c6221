package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/christopherklint97/autosheet/internal/calendar"
	"github.com/christopherklint97/autosheet/internal/timesheet"
)

// TokenSourcer hands out credentials for API calls.
type TokenSourcer interface {
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
}

// CalendarProvider reads the primary Google calendar.
type CalendarProvider struct {
	tokens  TokenSourcer
	options []option.ClientOption
	cache   *calendar.CalendarCache
	logger  *slog.Logger
}

func NewCalendarProvider(tokens TokenSourcer, logger *slog.Logger, opts ...option.ClientOption) *CalendarProvider {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CalendarProvider{
		tokens:  tokens,
		options: opts,
		cache:   calendar.NewCalendarCache(15 * time.Minute),
		logger:  logger,
	}
}

func (p *CalendarProvider) service(ctx context.Context) (*gcal.Service, error) {
	ts, err := p.tokens.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, p.options...)
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar client: %w", err)
	}
	return svc, nil
}

func (p *CalendarProvider) PrimaryCalendar(ctx context.Context) (calendar.Calendar, error) {
	if cal, ok := p.cache.Get(); ok {
		return cal, nil
	}
	svc, err := p.service(ctx)
	if err != nil {
		return calendar.Calendar{}, err
	}

	var primary *gcal.CalendarListEntry
	err = svc.CalendarList.List().Context(ctx).Pages(ctx, func(page *gcal.CalendarList) error {
		for _, item := range page.Items {
			if item.Primary {
				primary = item
				return errStopPaging
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopPaging) {
		return calendar.Calendar{}, fmt.Errorf("fetching calendar list: %w", convertError(err))
	}
	if primary == nil {
		return calendar.Calendar{}, errors.New("failed to find primary calendar")
	}

	cal := calendar.Calendar{
		ID:       primary.Id,
		TimeZone: primary.TimeZone,
		Location: calendar.LoadLocation(primary.TimeZone),
	}
	p.logger.Debug("got primary calendar", "id", cal.ID, "time_zone", cal.TimeZone)
	p.cache.Set(cal)
	return cal, nil
}

var errStopPaging = errors.New("stop paging")

// Events lists single occurrences overlapping [start, end). Times are
// returned in start's location. All-day events carry no time and are
// left out.
func (p *CalendarProvider) Events(ctx context.Context, calendarID string, start, end time.Time) ([]calendar.Event, error) {
	svc, err := p.service(ctx)
	if err != nil {
		return nil, err
	}

	loc := start.Location()
	var events []calendar.Event
	err = svc.Events.List(calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250).
		Context(ctx).
		Pages(ctx, func(page *gcal.Events) error {
			for _, item := range page.Items {
				ev, ok := convertEvent(item, loc)
				if !ok {
					p.logger.Debug("skipping event without time range", "event", item.Id)
					continue
				}
				events = append(events, ev)
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("fetching events: %w", convertError(err))
	}
	return events, nil
}

func convertEvent(item *gcal.Event, loc *time.Location) (calendar.Event, bool) {
	if item.Start == nil || item.End == nil || item.Start.DateTime == "" || item.End.DateTime == "" {
		return calendar.Event{}, false
	}
	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return calendar.Event{}, false
	}
	end, err := time.Parse(time.RFC3339, item.End.DateTime)
	if err != nil {
		return calendar.Event{}, false
	}

	eventType := calendar.EventType(item.EventType)
	if eventType == "" {
		eventType = calendar.EventTypeDefault
	}

	ev := calendar.Event{
		ID:          item.Id,
		Type:        eventType,
		Status:      calendar.Status(item.Status),
		Start:       start.In(loc),
		End:         end.In(loc),
		Summary:     item.Summary,
		Description: item.Description,
	}
	for _, a := range item.Attendees {
		if a == nil || a.Email == "" {
			continue
		}
		ev.Attendees = append(ev.Attendees, calendar.Attendee{
			Email:          a.Email,
			Self:           a.Self,
			ResponseStatus: calendar.ResponseStatus(a.ResponseStatus),
		})
	}
	return ev, true
}

// convertError turns API status errors into provider request errors.
func convertError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		body := gerr.Message
		if body == "" {
			body = gerr.Body
		}
		return &timesheet.ProviderRequestError{Service: "Google", Status: gerr.Code, Body: body}
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode == http.StatusBadRequest && rerr.ErrorCode == "invalid_grant" {
		return fmt.Errorf("google session expired, run `autosheet google login` again: %w", err)
	}
	return err
}
