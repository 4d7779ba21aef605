package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velora-ai/velora/plugin/ai/rag"
	"github.com/velora-ai/velora/server/calendar"
	"github.com/velora-ai/velora/server/session"
)

// fakeGateway is a scripted calendar backend.
type fakeGateway struct {
	slots       []calendar.Slot
	slotsErr    error
	createErr   error
	updateErr   error
	cancelErr   error
	findResults []calendar.Appointment
	findErr     error

	createReqs []calendar.CreateRequest
}

func (g *fakeGateway) CheckAvailability(_ context.Context, _ string, _ int, _ string) ([]calendar.Slot, error) {
	return g.slots, g.slotsErr
}

func (g *fakeGateway) CreateAppointment(_ context.Context, req calendar.CreateRequest) (*calendar.Confirmation, error) {
	g.createReqs = append(g.createReqs, req)
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &calendar.Confirmation{EventID: "evt_1", Status: "confirmed", Date: req.Date, StartTime: req.StartTime}, nil
}

func (g *fakeGateway) UpdateAppointment(_ context.Context, eventID, newDate, newStartTime string, _ int) (*calendar.Confirmation, error) {
	if g.updateErr != nil {
		return nil, g.updateErr
	}
	return &calendar.Confirmation{EventID: eventID, Status: "rescheduled", Date: newDate, StartTime: newStartTime}, nil
}

func (g *fakeGateway) CancelAppointment(_ context.Context, eventID string) (*calendar.Confirmation, error) {
	if g.cancelErr != nil {
		return nil, g.cancelErr
	}
	return &calendar.Confirmation{EventID: eventID, Status: "cancelled"}, nil
}

func (g *fakeGateway) FindAppointments(_ context.Context, _, _ string) ([]calendar.Appointment, error) {
	return g.findResults, g.findErr
}

var _ calendar.Gateway = (*fakeGateway)(nil)

// fakeKnowledge is a scripted knowledge base.
type fakeKnowledge struct {
	snippets []rag.Snippet
	queryErr error
	services map[string]*rag.Service
}

func (k *fakeKnowledge) Query(_ context.Context, _ string, _ int) ([]rag.Snippet, error) {
	return k.snippets, k.queryErr
}

func (k *fakeKnowledge) ServiceByName(name string) (*rag.Service, bool) {
	svc, ok := k.services[name]
	return svc, ok
}

func invoke(t *testing.T, d *Dispatcher, tool string, args string) map[string]interface{} {
	t.Helper()
	out := d.Dispatch(context.Background(), session.ToolCall{
		ID:        "call_1",
		Name:      tool,
		Arguments: json.RawMessage(args),
	})
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &result), "tool result must be JSON: %s", out)
	return result
}

func TestDispatchCheckAvailability(t *testing.T) {
	gw := &fakeGateway{}
	for i := 0; i < 8; i++ {
		gw.slots = append(gw.slots, calendar.Slot{
			Date:      "2026-09-02",
			StartTime: fmt.Sprintf("%02d:00", 9+i),
			EndTime:   fmt.Sprintf("%02d:00", 10+i),
		})
	}
	d := NewDispatcher(gw, &fakeKnowledge{})

	result := invoke(t, d, ToolCheckAvailability, `{"date":"2026-09-02","service":"Haircut"}`)
	assert.Equal(t, "available", result["status"])
	assert.Len(t, result["slots"], maxSlotsInReply)
	assert.EqualValues(t, 8, result["total_available"])
}

func TestDispatchCheckAvailabilityNoSlots(t *testing.T) {
	d := NewDispatcher(&fakeGateway{}, &fakeKnowledge{})

	result := invoke(t, d, ToolCheckAvailability, `{"date":"2026-09-02","service":"Haircut"}`)
	assert.Equal(t, "no_slots", result["status"])
}

func TestDispatchCheckAvailabilityInvalidDate(t *testing.T) {
	d := NewDispatcher(&fakeGateway{}, &fakeKnowledge{})

	result := invoke(t, d, ToolCheckAvailability, `{"date":"next tuesday","service":"Haircut"}`)
	assert.Equal(t, "invalid_arguments", result["status"])
	assert.Contains(t, result["error"], "invalid date")
}

func TestDispatchBookAppointment(t *testing.T) {
	gw := &fakeGateway{}
	kb := &fakeKnowledge{services: map[string]*rag.Service{
		"Balayage": {Name: "Balayage", DurationMinutes: 180},
	}}
	d := NewDispatcher(gw, kb)

	result := invoke(t, d, ToolBookAppointment,
		`{"service":"Balayage","date":"2026-09-02","time":"10:00","customer_name":"Jess","customer_phone":"+15550001111"}`)
	assert.Equal(t, "confirmed", result["status"])

	require.Len(t, gw.createReqs, 1)
	assert.Equal(t, 180, gw.createReqs[0].DurationMinutes)
}

func TestDispatchBookUnknownServiceUsesDefaultDuration(t *testing.T) {
	gw := &fakeGateway{}
	d := NewDispatcher(gw, &fakeKnowledge{})

	invoke(t, d, ToolBookAppointment,
		`{"service":"Mystery","date":"2026-09-02","time":"10:00","customer_name":"Jess","customer_phone":"+15550001111"}`)
	require.Len(t, gw.createReqs, 1)
	assert.Equal(t, defaultServiceDuration, gw.createReqs[0].DurationMinutes)
}

func TestDispatchBookConflict(t *testing.T) {
	d := NewDispatcher(&fakeGateway{createErr: calendar.ErrConflict}, &fakeKnowledge{})

	result := invoke(t, d, ToolBookAppointment,
		`{"service":"Haircut","date":"2026-09-02","time":"10:00","customer_name":"Jess","customer_phone":"+15550001111"}`)
	assert.Equal(t, "conflict", result["status"])
}

func TestDispatchBookMissingFields(t *testing.T) {
	d := NewDispatcher(&fakeGateway{}, &fakeKnowledge{})

	result := invoke(t, d, ToolBookAppointment, `{"service":"Haircut","date":"2026-09-02","time":"10:00"}`)
	assert.Equal(t, "invalid_arguments", result["status"])
}

func TestDispatchReschedule(t *testing.T) {
	d := NewDispatcher(&fakeGateway{}, &fakeKnowledge{})

	result := invoke(t, d, ToolRescheduleAppointment,
		`{"event_id":"evt_9","new_date":"2026-09-03","new_time":"14:00"}`)
	assert.Equal(t, "rescheduled", result["status"])
}

func TestDispatchRescheduleNotFound(t *testing.T) {
	d := NewDispatcher(&fakeGateway{updateErr: calendar.ErrNotFound}, &fakeKnowledge{})

	result := invoke(t, d, ToolRescheduleAppointment,
		`{"event_id":"evt_9","new_date":"2026-09-03","new_time":"14:00"}`)
	assert.Equal(t, "not_found", result["status"])
}

func TestDispatchCancel(t *testing.T) {
	d := NewDispatcher(&fakeGateway{}, &fakeKnowledge{})

	result := invoke(t, d, ToolCancelAppointment, `{"event_id":"evt_9"}`)
	assert.Equal(t, "cancelled", result["status"])
}

func TestDispatchLookup(t *testing.T) {
	gw := &fakeGateway{findResults: []calendar.Appointment{
		{EventID: "evt_1", Summary: "Haircut - Jess"},
		{EventID: "evt_2", Summary: "Balayage - Jess"},
	}}
	d := NewDispatcher(gw, &fakeKnowledge{})

	result := invoke(t, d, ToolLookupAppointment, `{"customer_name":"Jess"}`)
	assert.Equal(t, "found", result["status"])
	assert.EqualValues(t, 2, result["count"])
}

func TestDispatchLookupRequiresIdentifier(t *testing.T) {
	d := NewDispatcher(&fakeGateway{}, &fakeKnowledge{})

	result := invoke(t, d, ToolLookupAppointment, `{}`)
	assert.Equal(t, "invalid_arguments", result["status"])
}

func TestDispatchKnowledgeSearch(t *testing.T) {
	kb := &fakeKnowledge{snippets: []rag.Snippet{
		{Content: "Policy - Cancellation: 24 hours notice", Source: "policies", RelevanceScore: 0.91},
	}}
	d := NewDispatcher(&fakeGateway{}, kb)

	result := invoke(t, d, ToolSearchKnowledgeBase, `{"query":"cancellation policy"}`)
	assert.Equal(t, "success", result["status"])
	assert.Len(t, result["results"], 1)
}

func TestDispatchKnowledgeSearchNoResults(t *testing.T) {
	d := NewDispatcher(&fakeGateway{}, &fakeKnowledge{})

	result := invoke(t, d, ToolSearchKnowledgeBase, `{"query":"quantum pedicure"}`)
	assert.Equal(t, "no_results", result["status"])
}

func TestDispatchBackendUnavailable(t *testing.T) {
	d := NewDispatcher(&fakeGateway{slotsErr: calendar.ErrUnavailable}, &fakeKnowledge{})

	result := invoke(t, d, ToolCheckAvailability, `{"date":"2026-09-02","service":"Haircut"}`)
	assert.Equal(t, "error", result["status"])
	assert.NotEmpty(t, result["error"])
}

func TestDispatchUnknownTool(t *testing.T) {
	d := NewDispatcher(&fakeGateway{}, &fakeKnowledge{})

	result := invoke(t, d, "transfer_call", `{}`)
	assert.Equal(t, "invalid_arguments", result["status"])
}

func TestDispatchMalformedArguments(t *testing.T) {
	d := NewDispatcher(&fakeGateway{}, &fakeKnowledge{})

	result := invoke(t, d, ToolCheckAvailability, `{"date":`)
	assert.Equal(t, "invalid_arguments", result["status"])
}
