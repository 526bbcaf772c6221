package calendar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	ical "github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"github.com/christopherklint97/autosheet/internal/timesheet"
)

const (
	propWRTimezone = "X-WR-TIMEZONE"
	propBusyStatus = "X-MICROSOFT-CDO-BUSYSTATUS"
)

// ICSProvider reads events from an iCalendar feed given as a URL or a file
// path. Feeds carry no notion of "self", so attendees are matched against
// selfEmail.
type ICSProvider struct {
	source     string
	timeZone   string
	selfEmail  string
	httpClient *http.Client
	cache      *CalendarCache
	logger     *slog.Logger
}

func NewICSProvider(source, timeZone, selfEmail string, logger *slog.Logger) *ICSProvider {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ICSProvider{
		source:    source,
		timeZone:  timeZone,
		selfEmail: selfEmail,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache:  NewCalendarCache(15 * time.Minute),
		logger: logger,
	}
}

// PrimaryCalendar returns the feed itself. The zone is the configured one,
// else the feed's X-WR-TIMEZONE, else the local zone.
func (p *ICSProvider) PrimaryCalendar(ctx context.Context) (Calendar, error) {
	if cal, ok := p.cache.Get(); ok {
		return cal, nil
	}

	tz := p.timeZone
	if tz == "" {
		cals, err := p.decode(ctx)
		if err != nil {
			return Calendar{}, err
		}
		for _, c := range cals {
			if v, err := c.Props.Text(propWRTimezone); err == nil && v != "" {
				tz = v
				break
			}
		}
	}

	loc := LoadLocation(tz)
	cal := Calendar{ID: p.source, TimeZone: loc.String(), Location: loc}
	p.cache.Set(cal)
	return cal, nil
}

// Events returns events overlapping [start, end), with recurring events
// expanded to their occurrences.
func (p *ICSProvider) Events(ctx context.Context, calendarID string, start, end time.Time) ([]Event, error) {
	cals, err := p.decode(ctx)
	if err != nil {
		return nil, err
	}

	loc := start.Location()
	var events []Event
	for _, cal := range cals {
		overrides := make(map[string]bool)
		for _, ev := range cal.Events() {
			if ev.Props.Get(ical.PropRecurrenceID) == nil {
				continue
			}
			uid, _ := ev.Props.Text(ical.PropUID)
			rid, err := ev.Props.DateTime(ical.PropRecurrenceID, loc)
			if err != nil {
				continue
			}
			overrides[overrideKey(uid, rid)] = true
		}

		for _, ev := range cal.Events() {
			expanded, err := p.expand(ev, loc, start, end, overrides)
			if err != nil {
				uid, _ := ev.Props.Text(ical.PropUID)
				p.logger.Debug("skipping malformed event", "uid", uid, "error", err)
				continue
			}
			events = append(events, expanded...)
		}
	}

	p.logger.Debug("ics calendar events fetched", "count", len(events))
	return events, nil
}

func (p *ICSProvider) expand(ev ical.Event, loc *time.Location, windowStart, windowEnd time.Time, overrides map[string]bool) ([]Event, error) {
	if dt := ev.Props.Get(ical.PropDateTimeStart); dt != nil && dt.Params.Get(ical.ParamValue) == string(ical.ValueDate) {
		// All-day events never count towards a timesheet.
		return nil, nil
	}

	start, err := ev.DateTimeStart(loc)
	if err != nil {
		return nil, fmt.Errorf("reading DTSTART: %w", err)
	}
	end, err := ev.DateTimeEnd(loc)
	if err != nil {
		return nil, fmt.Errorf("reading DTEND: %w", err)
	}
	base := p.toEvent(ev, start.In(loc), end.In(loc))
	duration := end.Sub(start)

	set, err := ev.RecurrenceSet(loc)
	if err != nil {
		return nil, fmt.Errorf("reading recurrence: %w", err)
	}
	if set == nil || ev.Props.Get(ical.PropRecurrenceID) != nil {
		if overlaps(base.Start, base.End, windowStart, windowEnd) {
			return []Event{base}, nil
		}
		return nil, nil
	}

	var out []Event
	for _, occ := range occurrences(set, loc, duration, windowStart, windowEnd) {
		if overrides[overrideKey(base.ID, occ)] {
			continue
		}
		e := base
		e.ID = base.ID + "_" + occ.UTC().Format("20060102T150405Z")
		e.Start = occ
		e.End = occ.Add(duration)
		out = append(out, e)
	}
	return out, nil
}

func (p *ICSProvider) toEvent(ev ical.Event, start, end time.Time) Event {
	uid, _ := ev.Props.Text(ical.PropUID)
	summary, _ := ev.Props.Text(ical.PropSummary)
	description, _ := ev.Props.Text(ical.PropDescription)

	out := Event{
		ID:          uid,
		Type:        EventTypeDefault,
		Status:      StatusConfirmed,
		Start:       start,
		End:         end,
		Summary:     summary,
		Description: description,
	}

	if status, err := ev.Props.Text(ical.PropStatus); err == nil && status != "" {
		switch strings.ToUpper(status) {
		case "TENTATIVE":
			out.Status = StatusTentative
		case "CANCELLED":
			out.Status = StatusCancelled
		}
	}
	if busy, err := ev.Props.Text(propBusyStatus); err == nil && strings.EqualFold(busy, "OOF") {
		out.Type = EventTypeOutOfOffice
	}

	for _, prop := range ev.Props.Values(ical.PropAttendee) {
		email := strings.TrimPrefix(strings.TrimPrefix(prop.Value, "mailto:"), "MAILTO:")
		out.Attendees = append(out.Attendees, Attendee{
			Email:          email,
			ResponseStatus: partStat(prop.Params.Get(ical.ParamParticipationStatus)),
		})
	}
	MarkSelf(out.Attendees, p.selfEmail)

	return out
}

func partStat(v string) ResponseStatus {
	switch strings.ToUpper(v) {
	case "ACCEPTED":
		return ResponseAccepted
	case "DECLINED":
		return ResponseDeclined
	case "TENTATIVE":
		return ResponseTentative
	case "NEEDS-ACTION":
		return ResponseNeedsAction
	}
	return ""
}

func (p *ICSProvider) decode(ctx context.Context) ([]*ical.Calendar, error) {
	r, err := p.open(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	dec := ical.NewDecoder(r)
	var cals []*ical.Calendar
	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing calendar: %w", err)
		}
		cals = append(cals, cal)
	}
	return cals, nil
}

func (p *ICSProvider) open(ctx context.Context) (io.ReadCloser, error) {
	if !strings.HasPrefix(p.source, "http://") && !strings.HasPrefix(p.source, "https://") {
		f, err := os.Open(p.source)
		if err != nil {
			return nil, fmt.Errorf("opening calendar file: %w", err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.source, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching calendar: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		resp.Body.Close()
		return nil, &timesheet.ProviderRequestError{Service: "ics", Status: resp.StatusCode, Body: string(body)}
	}
	return resp.Body, nil
}

// occurrences returns the starts of every instance of set that overlaps
// [windowStart, windowEnd).
func occurrences(set *rrule.Set, loc *time.Location, duration time.Duration, windowStart, windowEnd time.Time) []time.Time {
	var out []time.Time
	for _, occ := range set.Between(windowStart.Add(-duration), windowEnd, true) {
		occ = occ.In(loc)
		if overlaps(occ, occ.Add(duration), windowStart, windowEnd) {
			out = append(out, occ)
		}
	}
	return out
}

func overrideKey(uid string, t time.Time) string {
	return uid + "|" + t.UTC().Format(time.RFC3339)
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
