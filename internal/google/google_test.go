package google

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/christopherklint97/autosheet/internal/calendar"
	"github.com/christopherklint97/autosheet/internal/keyring"
	"github.com/christopherklint97/autosheet/internal/timesheet"
)

func testLogger() *slog.Logger {
	if testing.Verbose() {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticTokens struct{}

func (staticTokens) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}), nil
}

func TestConvertEvent(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	item := &gcal.Event{
		Id:      "abc",
		Status:  "confirmed",
		Summary: "Planning",
		Start:   &gcal.EventDateTime{DateTime: "2024-01-08T09:00:00Z"},
		End:     &gcal.EventDateTime{DateTime: "2024-01-08T10:30:00Z"},
		Attendees: []*gcal.EventAttendee{
			{Email: "me@example.com", Self: true, ResponseStatus: "accepted"},
			{Email: "", ResponseStatus: "accepted"},
			{Email: "you@example.com", ResponseStatus: "needsAction"},
		},
	}

	ev, ok := convertEvent(item, loc)
	if !ok {
		t.Fatal("convertEvent rejected a timed event")
	}
	if ev.Type != calendar.EventTypeDefault {
		t.Errorf("Type = %q, want default", ev.Type)
	}
	if ev.Status != calendar.StatusConfirmed {
		t.Errorf("Status = %q", ev.Status)
	}
	if ev.Start.Location() != loc || ev.Start.Hour() != 10 {
		t.Errorf("Start = %v, want 10:00 CET", ev.Start)
	}
	if ev.End.Sub(ev.Start) != 90*time.Minute {
		t.Errorf("duration = %v", ev.End.Sub(ev.Start))
	}
	if len(ev.Attendees) != 2 {
		t.Fatalf("attendees = %+v, want 2", ev.Attendees)
	}
	if !ev.Attendees[0].Self || ev.Attendees[1].ResponseStatus != calendar.ResponseNeedsAction {
		t.Errorf("attendees = %+v", ev.Attendees)
	}

	allDay := &gcal.Event{
		Id:    "holiday",
		Start: &gcal.EventDateTime{Date: "2024-01-08"},
		End:   &gcal.EventDateTime{Date: "2024-01-09"},
	}
	if _, ok := convertEvent(allDay, loc); ok {
		t.Error("convertEvent accepted an all-day event")
	}
}

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/users/me/calendarList"):
			io.WriteString(w, `{"items":[
				{"id":"other","timeZone":"UTC"},
				{"id":"primary-id","primary":true,"timeZone":"Europe/Stockholm"}
			]}`)
		case strings.HasSuffix(r.URL.Path, "/calendars/primary-id/events"):
			q := r.URL.Query()
			if q.Get("singleEvents") != "true" {
				t.Errorf("singleEvents = %q", q.Get("singleEvents"))
			}
			if q.Get("timeMin") == "" || q.Get("timeMax") == "" {
				t.Errorf("missing time window: %v", q)
			}
			io.WriteString(w, `{"items":[
				{"id":"e1","eventType":"default","status":"confirmed","summary":"Standup",
				 "start":{"dateTime":"2024-01-08T09:00:00+01:00"},"end":{"dateTime":"2024-01-08T09:15:00+01:00"}},
				{"id":"e2","eventType":"outOfOffice","status":"confirmed",
				 "start":{"dateTime":"2024-01-08T13:00:00+01:00"},"end":{"dateTime":"2024-01-08T17:00:00+01:00"}},
				{"id":"e3","status":"confirmed","start":{"date":"2024-01-08"},"end":{"date":"2024-01-09"}}
			]}`)
		case strings.HasSuffix(r.URL.Path, "/userinfo"):
			io.WriteString(w, `{"id":"1","email":" me@example.com "}`)
		case strings.HasSuffix(r.URL.Path, "/calendars/missing/events"):
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":{"code":404,"message":"Not Found"}}`)
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCalendarProvider(t *testing.T) {
	srv := newTestAPI(t)
	p := NewCalendarProvider(staticTokens{}, testLogger(), option.WithEndpoint(srv.URL+"/"))
	ctx := context.Background()

	primary, err := p.PrimaryCalendar(ctx)
	if err != nil {
		t.Fatalf("PrimaryCalendar: %v", err)
	}
	if primary.ID != "primary-id" || primary.TimeZone != "Europe/Stockholm" {
		t.Errorf("primary = %+v", primary)
	}

	start := time.Date(2024, 1, 8, 0, 0, 0, 0, primary.Location)
	events, err := p.Events(ctx, primary.ID, start, start.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %+v, want 2", events)
	}
	if events[0].Summary != "Standup" || events[0].End.Sub(events[0].Start) != 15*time.Minute {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].Type != calendar.EventTypeOutOfOffice {
		t.Errorf("events[1].Type = %q", events[1].Type)
	}

	_, err = p.Events(ctx, "missing", start, start.AddDate(0, 0, 1))
	var perr *timesheet.ProviderRequestError
	if !errors.As(err, &perr) || perr.Status != http.StatusNotFound {
		t.Errorf("err = %v, want 404 ProviderRequestError", err)
	}
}

func TestConvertError(t *testing.T) {
	err := convertError(&googleapi.Error{Code: 403, Message: "forbidden"})
	var perr *timesheet.ProviderRequestError
	if !errors.As(err, &perr) || perr.Status != 403 || perr.Body != "forbidden" {
		t.Errorf("convertError = %v", err)
	}

	plain := errors.New("network down")
	if convertError(plain) != plain {
		t.Error("convertError changed a non-API error")
	}
}

type memoryIdentity struct{ email string }

func (m *memoryIdentity) Email(ctx context.Context) (string, error) { return m.email, nil }
func (m *memoryIdentity) SetEmail(ctx context.Context, email string) error {
	m.email = email
	return nil
}

func TestTokenStore(t *testing.T) {
	store := NewTokenStore(keyring.NewNamespaced("autosheet", keyring.NewMemoryStore()))

	tok, err := store.Load("me@example.com")
	if err != nil || tok != nil {
		t.Fatalf("Load empty = %v, %v", tok, err)
	}

	expiry := time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)
	if err := store.Save("me@example.com", &oauth2.Token{AccessToken: "a1", RefreshToken: "r1", Expiry: expiry}); err != nil {
		t.Fatal(err)
	}
	// Refresh responses omit the refresh token.
	if err := store.Save("me@example.com", &oauth2.Token{AccessToken: "a2", Expiry: expiry.Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}

	tok, err = store.Load("me@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if tok.AccessToken != "a2" || tok.RefreshToken != "r1" || !tok.Expiry.Equal(expiry.Add(time.Hour)) {
		t.Errorf("Load = %+v", tok)
	}

	if other, _ := store.Load("other@example.com"); other != nil {
		t.Error("tokens leaked across identities")
	}

	if err := store.Delete("me@example.com"); err != nil {
		t.Fatal(err)
	}
	if tok, _ := store.Load("me@example.com"); tok != nil {
		t.Errorf("Load after Delete = %+v", tok)
	}
}

type sequenceSource struct {
	tokens []*oauth2.Token
	i      int
}

func (s *sequenceSource) Token() (*oauth2.Token, error) {
	tok := s.tokens[s.i]
	if s.i < len(s.tokens)-1 {
		s.i++
	}
	return tok, nil
}

func TestPersistingSource(t *testing.T) {
	store := NewTokenStore(keyring.NewNamespaced("autosheet", keyring.NewMemoryStore()))
	current := &oauth2.Token{AccessToken: "old", RefreshToken: "r"}
	store.Save("me@example.com", current)

	base := &sequenceSource{tokens: []*oauth2.Token{current, {AccessToken: "new"}}}
	src := newPersistingSource(base, store, "me@example.com", current, nil)

	for i := 0; i < 2; i++ {
		if _, err := src.Token(); err != nil {
			t.Fatal(err)
		}
	}
	tok, _ := store.Load("me@example.com")
	if tok.AccessToken != "new" || tok.RefreshToken != "r" {
		t.Errorf("stored token = %+v, want refreshed access token", tok)
	}
}

func TestAuth_TokenSourceNotLinked(t *testing.T) {
	store := NewTokenStore(keyring.NewNamespaced("autosheet", keyring.NewMemoryStore()))
	auth := NewAuth("id", "secret", store, &memoryIdentity{}, nil)
	if _, err := auth.TokenSource(context.Background()); !errors.Is(err, timesheet.ErrAccountNotLinked) {
		t.Errorf("TokenSource without identity = %v", err)
	}

	auth = NewAuth("id", "secret", store, &memoryIdentity{email: "me@example.com"}, nil)
	if _, err := auth.TokenSource(context.Background()); !errors.Is(err, timesheet.ErrAccountNotLinked) {
		t.Errorf("TokenSource without tokens = %v", err)
	}
}

func TestAuth_Logout(t *testing.T) {
	store := NewTokenStore(keyring.NewNamespaced("autosheet", keyring.NewMemoryStore()))
	store.Save("me@example.com", &oauth2.Token{AccessToken: "a", RefreshToken: "r"})
	identity := &memoryIdentity{email: "me@example.com"}

	if err := NewAuth("id", "secret", store, identity, nil).Logout(context.Background()); err != nil {
		t.Fatal(err)
	}
	if identity.email != "" {
		t.Error("identity not cleared")
	}
	if tok, _ := store.Load("me@example.com"); tok != nil {
		t.Error("tokens not deleted")
	}
}

func TestCallbackRouter(t *testing.T) {
	results := make(chan callbackResult, 1)
	h := callbackRouter("expected-state", results)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=wrong&code=abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("wrong state status = %d", rec.Code)
	}
	select {
	case res := <-results:
		t.Fatalf("wrong state produced a result: %+v", res)
	default:
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=expected-state&code=abc", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	res := <-results
	if res.err != nil || res.code != "abc" {
		t.Errorf("result = %+v", res)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=expected-state&error=access_denied", nil))
	res = <-results
	if res.err == nil || !strings.Contains(res.err.Error(), "access_denied") {
		t.Errorf("denied result = %+v", res)
	}
}

func TestAuth_FetchEmail(t *testing.T) {
	srv := newTestAPI(t)
	auth := NewAuth("id", "secret", nil, &memoryIdentity{}, nil)
	auth.apiOptions = []option.ClientOption{option.WithEndpoint(srv.URL + "/")}

	ts, _ := staticTokens{}.TokenSource(context.Background())
	email, err := auth.fetchEmail(context.Background(), ts)
	if err != nil {
		t.Fatal(err)
	}
	if email != "me@example.com" {
		t.Errorf("email = %q", email)
	}
}
