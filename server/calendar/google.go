package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	gerrors "github.com/pkg/errors"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// lookupHorizon bounds how far ahead FindAppointments searches.
const lookupHorizon = 90 * 24 * time.Hour

// GoogleConfig holds the Google Calendar gateway configuration.
type GoogleConfig struct {
	CalendarID      string
	CredentialsFile string // service account JSON
	Timezone        string // IANA name, e.g. America/Los_Angeles
}

// GoogleGateway implements Gateway against the Google Calendar API using a
// service account.
type GoogleGateway struct {
	svc        *gcal.Service
	calendarID string
	location   *time.Location
	tzName     string
}

// NewGoogleGateway authenticates with the service account credentials and
// builds the Calendar API client.
func NewGoogleGateway(ctx context.Context, cfg GoogleConfig) (*GoogleGateway, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, gerrors.Wrapf(err, "invalid timezone %q", cfg.Timezone)
	}

	creds, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, gerrors.Wrap(err, "failed to read service account credentials")
	}
	jwtConfig, err := google.JWTConfigFromJSON(creds, gcal.CalendarScope)
	if err != nil {
		return nil, gerrors.Wrap(err, "failed to parse service account credentials")
	}

	svc, err := gcal.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, gerrors.Wrap(err, "failed to build calendar service")
	}

	slog.Info("google calendar gateway initialized", "calendar_id", cfg.CalendarID)
	return &GoogleGateway{
		svc:        svc,
		calendarID: cfg.CalendarID,
		location:   loc,
		tzName:     cfg.Timezone,
	}, nil
}

// CheckAvailability lists the day's events and computes open slots within
// business hours.
func (g *GoogleGateway) CheckAvailability(ctx context.Context, date string, durationMinutes int, stylist string) ([]Slot, error) {
	if durationMinutes <= 0 {
		durationMinutes = 60
	}

	day, err := time.ParseInLocation("2006-01-02", date, g.location)
	if err != nil {
		return nil, gerrors.Wrapf(err, "invalid date %q", date)
	}
	dayStart := day.Add(openHour * time.Hour)
	dayEnd := day.Add(closeHour * time.Hour)

	events, err := g.svc.Events.List(g.calendarID).
		TimeMin(dayStart.Format(time.RFC3339)).
		TimeMax(dayEnd.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).Do()
	if err != nil {
		return nil, mapGoogleError(err, "failed to list events")
	}

	var busy []interval
	for _, ev := range events.Items {
		if stylist != "" && !eventMentions(ev, stylist) {
			continue
		}
		start, end, ok := eventInterval(ev, g.location)
		if !ok {
			continue
		}
		busy = append(busy, interval{start: start, end: end})
	}

	return computeFreeSlots(busy, dayStart, dayEnd, time.Duration(durationMinutes)*time.Minute, date), nil
}

// CreateAppointment inserts a new event. The event description carries the
// customer details so lookups by name or phone can match on it later.
func (g *GoogleGateway) CreateAppointment(ctx context.Context, req CreateRequest) (*Confirmation, error) {
	startDT, err := time.ParseInLocation("2006-01-02T15:04", req.Date+"T"+req.StartTime, g.location)
	if err != nil {
		return nil, gerrors.Wrapf(err, "invalid start %q %q", req.Date, req.StartTime)
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = 60
	}
	endDT := startDT.Add(time.Duration(req.DurationMinutes) * time.Minute)

	summary := fmt.Sprintf("%s - %s", req.Service, req.CustomerName)
	description := fmt.Sprintf("Customer: %s\nPhone: %s\nService: %s\nStylist: %s\nNotes: %s",
		req.CustomerName, req.CustomerPhone, req.Service, req.Stylist, req.Notes)

	event := &gcal.Event{
		Summary:     summary,
		Description: description,
		Start:       &gcal.EventDateTime{DateTime: startDT.Format(time.RFC3339), TimeZone: g.tzName},
		End:         &gcal.EventDateTime{DateTime: endDT.Format(time.RFC3339), TimeZone: g.tzName},
		Reminders: &gcal.EventReminders{
			UseDefault:      false,
			ForceSendFields: []string{"UseDefault"},
			Overrides: []*gcal.EventReminder{
				{Method: "popup", Minutes: 60},
			},
		},
	}

	created, err := g.svc.Events.Insert(g.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, mapGoogleError(err, "failed to create appointment")
	}

	slog.Info("appointment created", "event_id", created.Id, "summary", summary)
	return &Confirmation{
		EventID:         created.Id,
		Summary:         summary,
		Date:            req.Date,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Status:          "confirmed",
	}, nil
}

// UpdateAppointment reschedules an existing event. When no new duration is
// given, the event keeps its current length.
func (g *GoogleGateway) UpdateAppointment(ctx context.Context, eventID, newDate, newStartTime string, newDurationMinutes int) (*Confirmation, error) {
	event, err := g.svc.Events.Get(g.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, mapGoogleError(err, "failed to fetch appointment")
	}

	startDT, err := time.ParseInLocation("2006-01-02T15:04", newDate+"T"+newStartTime, g.location)
	if err != nil {
		return nil, gerrors.Wrapf(err, "invalid start %q %q", newDate, newStartTime)
	}

	if newDurationMinutes <= 0 {
		if oldStart, oldEnd, ok := eventInterval(event, g.location); ok {
			newDurationMinutes = int(oldEnd.Sub(oldStart).Minutes())
		} else {
			newDurationMinutes = 60
		}
	}
	endDT := startDT.Add(time.Duration(newDurationMinutes) * time.Minute)

	event.Start = &gcal.EventDateTime{DateTime: startDT.Format(time.RFC3339), TimeZone: g.tzName}
	event.End = &gcal.EventDateTime{DateTime: endDT.Format(time.RFC3339), TimeZone: g.tzName}

	updated, err := g.svc.Events.Update(g.calendarID, eventID, event).Context(ctx).Do()
	if err != nil {
		return nil, mapGoogleError(err, "failed to update appointment")
	}

	slog.Info("appointment rescheduled", "event_id", eventID, "new_start", startDT)
	return &Confirmation{
		EventID:         eventID,
		Summary:         updated.Summary,
		Date:            newDate,
		StartTime:       newStartTime,
		DurationMinutes: newDurationMinutes,
		Status:          "rescheduled",
	}, nil
}

// CancelAppointment deletes an event. The event is fetched first so the
// confirmation can echo what was cancelled.
func (g *GoogleGateway) CancelAppointment(ctx context.Context, eventID string) (*Confirmation, error) {
	event, err := g.svc.Events.Get(g.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, mapGoogleError(err, "failed to fetch appointment")
	}

	if err := g.svc.Events.Delete(g.calendarID, eventID).Context(ctx).Do(); err != nil {
		return nil, mapGoogleError(err, "failed to cancel appointment")
	}

	slog.Info("appointment cancelled", "event_id", eventID, "summary", event.Summary)
	return &Confirmation{
		EventID: eventID,
		Summary: event.Summary,
		Status:  "cancelled",
	}, nil
}

// FindAppointments searches upcoming events whose summary or description
// mentions the customer name or phone.
func (g *GoogleGateway) FindAppointments(ctx context.Context, customerName, customerPhone string) ([]Appointment, error) {
	searchTerm := strings.ToLower(strings.TrimSpace(customerName))
	if searchTerm == "" {
		searchTerm = strings.ToLower(strings.TrimSpace(customerPhone))
	}
	if searchTerm == "" {
		return nil, nil
	}

	now := time.Now().In(g.location)
	events, err := g.svc.Events.List(g.calendarID).
		TimeMin(now.Format(time.RFC3339)).
		TimeMax(now.Add(lookupHorizon).Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(50).
		Context(ctx).Do()
	if err != nil {
		return nil, mapGoogleError(err, "failed to search appointments")
	}

	var matches []Appointment
	for _, ev := range events.Items {
		if !strings.Contains(strings.ToLower(ev.Description), searchTerm) &&
			!strings.Contains(strings.ToLower(ev.Summary), searchTerm) {
			continue
		}
		matches = append(matches, Appointment{
			EventID:     ev.Id,
			Summary:     ev.Summary,
			Description: ev.Description,
			Start:       eventTime(ev.Start),
			End:         eventTime(ev.End),
		})
	}
	return matches, nil
}

func eventMentions(ev *gcal.Event, name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(strings.ToLower(ev.Description), lower) ||
		strings.Contains(strings.ToLower(ev.Summary), lower)
}

func eventTime(dt *gcal.EventDateTime) string {
	if dt == nil {
		return ""
	}
	if dt.DateTime != "" {
		return dt.DateTime
	}
	return dt.Date
}

func eventInterval(ev *gcal.Event, loc *time.Location) (time.Time, time.Time, bool) {
	start, err := time.Parse(time.RFC3339, eventTime(ev.Start))
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, eventTime(ev.End))
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start.In(loc), end.In(loc), true
}

// mapGoogleError translates googleapi failures into the gateway's error
// taxonomy so the dispatcher can convert them into model-consumable results.
func mapGoogleError(err error, msg string) error {
	if gErr, ok := err.(*googleapi.Error); ok {
		switch gErr.Code {
		case 404, 410:
			return gerrors.Wrap(ErrNotFound, msg)
		case 409:
			return gerrors.Wrap(ErrConflict, msg)
		}
		if gErr.Code >= 500 {
			return gerrors.Wrap(ErrUnavailable, msg)
		}
		return gerrors.Wrap(err, msg)
	}
	// Network-level failures surface as plain errors.
	return gerrors.Wrap(ErrUnavailable, msg+": "+err.Error())
}

var _ Gateway = (*GoogleGateway)(nil)
