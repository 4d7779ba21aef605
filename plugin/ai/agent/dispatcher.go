package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/velora-ai/velora/plugin/ai/rag"
	"github.com/velora-ai/velora/server/calendar"
	velerrors "github.com/velora-ai/velora/internal/errors"
	"github.com/velora-ai/velora/internal/observability"
	"github.com/velora-ai/velora/server/session"
)

// maxSlotsInReply caps the number of open slots spoken back to the caller.
// The full count is still reported so the model can mention it.
const maxSlotsInReply = 5

// defaultServiceDuration is used when the requested service is not in the
// knowledge base.
const defaultServiceDuration = 60

// Knowledge is the knowledge base surface the dispatcher needs.
type Knowledge interface {
	Query(ctx context.Context, question string, topK int) ([]rag.Snippet, error)
	ServiceByName(name string) (*rag.Service, bool)
}

// Dispatcher routes model-requested tool invocations to their backends and
// renders every outcome as a JSON result string. It never fails a
// conversation turn: validation and backend errors become structured results
// the model can recover from.
type Dispatcher struct {
	calendar  calendar.Gateway
	knowledge Knowledge
}

// NewDispatcher creates a dispatcher over the given backends.
func NewDispatcher(gw calendar.Gateway, knowledge Knowledge) *Dispatcher {
	return &Dispatcher{calendar: gw, knowledge: knowledge}
}

// Dispatch executes one tool invocation and returns the JSON result string to
// fold back into the conversation.
func (d *Dispatcher) Dispatch(ctx context.Context, call session.ToolCall) string {
	start := time.Now()
	result, err := d.dispatch(ctx, call)
	observability.GlobalMetrics().RecordToolInvocation(call.Name, time.Since(start), err != nil)

	if err != nil {
		slog.Warn("tool invocation failed",
			observability.LogFieldToolName, call.Name,
			observability.LogFieldErrorCode, velerrors.GetCodeFromError(err, velerrors.ErrCodeToolBackend),
			"error", err)
		return renderToolError(err)
	}

	slog.Debug("tool invocation completed",
		observability.LogFieldToolName, call.Name,
		observability.LogFieldDuration, time.Since(start).Milliseconds())
	return result
}

func (d *Dispatcher) dispatch(ctx context.Context, call session.ToolCall) (string, error) {
	switch call.Name {
	case ToolCheckAvailability:
		return d.checkAvailability(ctx, call.Arguments)
	case ToolBookAppointment:
		return d.bookAppointment(ctx, call.Arguments)
	case ToolRescheduleAppointment:
		return d.rescheduleAppointment(ctx, call.Arguments)
	case ToolCancelAppointment:
		return d.cancelAppointment(ctx, call.Arguments)
	case ToolLookupAppointment:
		return d.lookupAppointment(ctx, call.Arguments)
	case ToolSearchKnowledgeBase:
		return d.searchKnowledgeBase(ctx, call.Arguments)
	default:
		return "", velerrors.ToolValidation(fmt.Sprintf("unknown tool %q", call.Name))
	}
}

func (d *Dispatcher) checkAvailability(ctx context.Context, raw json.RawMessage) (string, error) {
	var args checkAvailabilityArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if err := args.validate(); err != nil {
		return "", err
	}

	slots, err := d.calendar.CheckAvailability(ctx, args.Date, d.serviceDuration(args.Service), args.Stylist)
	if err != nil {
		return "", velerrors.ToolBackend("availability check failed", err)
	}

	if len(slots) == 0 {
		return renderJSON(map[string]interface{}{
			"status":  "no_slots",
			"date":    args.Date,
			"service": args.Service,
			"message": "No open slots on that date. Try another day.",
		}), nil
	}

	total := len(slots)
	if len(slots) > maxSlotsInReply {
		slots = slots[:maxSlotsInReply]
	}
	return renderJSON(map[string]interface{}{
		"status":          "available",
		"date":            args.Date,
		"service":         args.Service,
		"slots":           slots,
		"total_available": total,
	}), nil
}

func (d *Dispatcher) bookAppointment(ctx context.Context, raw json.RawMessage) (string, error) {
	var args bookAppointmentArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if err := args.validate(); err != nil {
		return "", err
	}

	conf, err := d.calendar.CreateAppointment(ctx, calendar.CreateRequest{
		Service:         args.Service,
		Date:            args.Date,
		StartTime:       args.Time,
		DurationMinutes: d.serviceDuration(args.Service),
		CustomerName:    args.CustomerName,
		CustomerPhone:   args.CustomerPhone,
		Stylist:         args.Stylist,
		Notes:           args.Notes,
	})
	if errors.Is(err, calendar.ErrConflict) {
		return renderJSON(map[string]interface{}{
			"status":  "conflict",
			"message": "That slot was just taken. Offer another time.",
		}), nil
	}
	if err != nil {
		return "", velerrors.ToolBackend("booking failed", err)
	}
	return renderJSON(map[string]interface{}{
		"status":      "confirmed",
		"appointment": conf,
	}), nil
}

func (d *Dispatcher) rescheduleAppointment(ctx context.Context, raw json.RawMessage) (string, error) {
	var args rescheduleAppointmentArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if err := args.validate(); err != nil {
		return "", err
	}

	conf, err := d.calendar.UpdateAppointment(ctx, args.EventID, args.NewDate, args.NewTime, 0)
	if errors.Is(err, calendar.ErrNotFound) {
		return renderJSON(map[string]interface{}{
			"status":  "not_found",
			"message": "No appointment with that ID. Look it up again.",
		}), nil
	}
	if errors.Is(err, calendar.ErrConflict) {
		return renderJSON(map[string]interface{}{
			"status":  "conflict",
			"message": "The new slot is already taken. Offer another time.",
		}), nil
	}
	if err != nil {
		return "", velerrors.ToolBackend("reschedule failed", err)
	}
	return renderJSON(map[string]interface{}{
		"status":      "rescheduled",
		"appointment": conf,
	}), nil
}

func (d *Dispatcher) cancelAppointment(ctx context.Context, raw json.RawMessage) (string, error) {
	var args cancelAppointmentArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if err := args.validate(); err != nil {
		return "", err
	}

	conf, err := d.calendar.CancelAppointment(ctx, args.EventID)
	if errors.Is(err, calendar.ErrNotFound) {
		return renderJSON(map[string]interface{}{
			"status":  "not_found",
			"message": "No appointment with that ID. Look it up again.",
		}), nil
	}
	if err != nil {
		return "", velerrors.ToolBackend("cancellation failed", err)
	}
	return renderJSON(map[string]interface{}{
		"status":      "cancelled",
		"appointment": conf,
	}), nil
}

func (d *Dispatcher) lookupAppointment(ctx context.Context, raw json.RawMessage) (string, error) {
	var args lookupAppointmentArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if err := args.validate(); err != nil {
		return "", err
	}

	appts, err := d.calendar.FindAppointments(ctx, args.CustomerName, args.CustomerPhone)
	if err != nil {
		return "", velerrors.ToolBackend("appointment lookup failed", err)
	}

	if len(appts) == 0 {
		return renderJSON(map[string]interface{}{
			"status":  "not_found",
			"message": "No upcoming appointments match.",
		}), nil
	}
	return renderJSON(map[string]interface{}{
		"status":       "found",
		"count":        len(appts),
		"appointments": appts,
	}), nil
}

func (d *Dispatcher) searchKnowledgeBase(ctx context.Context, raw json.RawMessage) (string, error) {
	var args searchKnowledgeBaseArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if err := args.validate(); err != nil {
		return "", err
	}

	snippets, err := d.knowledge.Query(ctx, args.Query, rag.DefaultTopK)
	if err != nil {
		return "", velerrors.ToolBackend("knowledge search failed", err)
	}

	if len(snippets) == 0 {
		return renderJSON(map[string]interface{}{
			"status":  "no_results",
			"message": "No matching information in the knowledge base.",
		}), nil
	}
	return renderJSON(map[string]interface{}{
		"status":  "success",
		"results": snippets,
	}), nil
}

// serviceDuration resolves a service's booked duration from the knowledge
// base, falling back to a standard slot when the name is unknown.
func (d *Dispatcher) serviceDuration(name string) int {
	if svc, ok := d.knowledge.ServiceByName(name); ok && svc.DurationMinutes > 0 {
		return svc.DurationMinutes
	}
	return defaultServiceDuration
}

func renderJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return `{"status":"error","error":"internal result encoding failure"}`
	}
	return string(data)
}

func renderToolError(err error) string {
	if velerrors.IsCode(err, velerrors.ErrCodeToolValidation) {
		return renderJSON(map[string]interface{}{
			"status": "invalid_arguments",
			"error":  err.(*velerrors.CallError).Message,
		})
	}
	return renderJSON(map[string]interface{}{
		"status": "error",
		"error":  "The scheduling system is temporarily unavailable. Apologize and offer to take a message.",
	})
}
