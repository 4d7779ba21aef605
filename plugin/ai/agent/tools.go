package agent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	velerrors "github.com/velora-ai/velora/internal/errors"
)

// Tool names exposed to the model.
const (
	ToolCheckAvailability     = "check_availability"
	ToolBookAppointment       = "book_appointment"
	ToolRescheduleAppointment = "reschedule_appointment"
	ToolCancelAppointment     = "cancel_appointment"
	ToolLookupAppointment     = "lookup_appointment"
	ToolSearchKnowledgeBase   = "search_knowledge_base"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// checkAvailabilityArgs are the arguments for check_availability.
type checkAvailabilityArgs struct {
	Date    string `json:"date"`
	Service string `json:"service"`
	Stylist string `json:"stylist,omitempty"`
}

// bookAppointmentArgs are the arguments for book_appointment.
type bookAppointmentArgs struct {
	Service       string `json:"service"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	Stylist       string `json:"stylist,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// rescheduleAppointmentArgs are the arguments for reschedule_appointment.
type rescheduleAppointmentArgs struct {
	EventID string `json:"event_id"`
	NewDate string `json:"new_date"`
	NewTime string `json:"new_time"`
}

// cancelAppointmentArgs are the arguments for cancel_appointment.
type cancelAppointmentArgs struct {
	EventID string `json:"event_id"`
}

// lookupAppointmentArgs are the arguments for lookup_appointment. At least one
// of the two fields must be set.
type lookupAppointmentArgs struct {
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`
}

// searchKnowledgeBaseArgs are the arguments for search_knowledge_base.
type searchKnowledgeBaseArgs struct {
	Query string `json:"query"`
}

func (a *checkAvailabilityArgs) validate() error {
	if err := validDate(a.Date); err != nil {
		return err
	}
	if a.Service == "" {
		return velerrors.ToolValidation("service is required")
	}
	return nil
}

func (a *bookAppointmentArgs) validate() error {
	if a.Service == "" {
		return velerrors.ToolValidation("service is required")
	}
	if err := validDate(a.Date); err != nil {
		return err
	}
	if err := validTime(a.Time); err != nil {
		return err
	}
	if a.CustomerName == "" {
		return velerrors.ToolValidation("customer_name is required")
	}
	if a.CustomerPhone == "" {
		return velerrors.ToolValidation("customer_phone is required")
	}
	return nil
}

func (a *rescheduleAppointmentArgs) validate() error {
	if a.EventID == "" {
		return velerrors.ToolValidation("event_id is required")
	}
	if err := validDate(a.NewDate); err != nil {
		return err
	}
	return validTime(a.NewTime)
}

func (a *cancelAppointmentArgs) validate() error {
	if a.EventID == "" {
		return velerrors.ToolValidation("event_id is required")
	}
	return nil
}

func (a *lookupAppointmentArgs) validate() error {
	if a.CustomerName == "" && a.CustomerPhone == "" {
		return velerrors.ToolValidation("customer_name or customer_phone is required")
	}
	return nil
}

func (a *searchKnowledgeBaseArgs) validate() error {
	if a.Query == "" {
		return velerrors.ToolValidation("query is required")
	}
	return nil
}

func validDate(value string) error {
	if value == "" {
		return velerrors.ToolValidation("date is required")
	}
	if _, err := time.Parse(dateLayout, value); err != nil {
		return velerrors.ToolValidation(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", value))
	}
	return nil
}

func validTime(value string) error {
	if value == "" {
		return velerrors.ToolValidation("time is required")
	}
	if _, err := time.Parse(timeLayout, value); err != nil {
		return velerrors.ToolValidation(fmt.Sprintf("invalid time %q, expected HH:MM", value))
	}
	return nil
}

// decodeArgs unmarshals raw model-produced arguments into the typed struct.
func decodeArgs(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return velerrors.ToolValidation(fmt.Sprintf("malformed arguments: %v", err))
	}
	return nil
}

// ToolSpecs declares every tool to the model.
func ToolSpecs() []openai.Tool {
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolCheckAvailability,
				Description: "Check open appointment slots for a service on a given date, optionally with a specific stylist.",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"date":    {Type: jsonschema.String, Description: "Date to check, in YYYY-MM-DD format."},
						"service": {Type: jsonschema.String, Description: "Name of the salon service, e.g. 'Haircut'."},
						"stylist": {Type: jsonschema.String, Description: "Preferred stylist name. Omit for any stylist."},
					},
					Required: []string{"date", "service"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolBookAppointment,
				Description: "Book a new appointment once the customer has confirmed the service, date, time, name, and phone number.",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"service":        {Type: jsonschema.String, Description: "Name of the salon service."},
						"date":           {Type: jsonschema.String, Description: "Appointment date, YYYY-MM-DD."},
						"time":           {Type: jsonschema.String, Description: "Appointment start time, HH:MM 24-hour."},
						"customer_name":  {Type: jsonschema.String, Description: "Customer's full name."},
						"customer_phone": {Type: jsonschema.String, Description: "Customer's phone number."},
						"stylist":        {Type: jsonschema.String, Description: "Preferred stylist name, if any."},
						"notes":          {Type: jsonschema.String, Description: "Special requests or notes."},
					},
					Required: []string{"service", "date", "time", "customer_name", "customer_phone"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolRescheduleAppointment,
				Description: "Move an existing appointment to a new date and time. Look the appointment up first to get its event_id.",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"event_id": {Type: jsonschema.String, Description: "Identifier of the appointment to move."},
						"new_date": {Type: jsonschema.String, Description: "New date, YYYY-MM-DD."},
						"new_time": {Type: jsonschema.String, Description: "New start time, HH:MM 24-hour."},
					},
					Required: []string{"event_id", "new_date", "new_time"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolCancelAppointment,
				Description: "Cancel an existing appointment. Look the appointment up first to get its event_id, and confirm with the customer before cancelling.",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"event_id": {Type: jsonschema.String, Description: "Identifier of the appointment to cancel."},
					},
					Required: []string{"event_id"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolLookupAppointment,
				Description: "Find a customer's upcoming appointments by name or phone number.",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"customer_name":  {Type: jsonschema.String, Description: "Customer's name."},
						"customer_phone": {Type: jsonschema.String, Description: "Customer's phone number."},
					},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolSearchKnowledgeBase,
				Description: "Search salon information: services, prices, stylists, policies, hours, and locations. Use for any question that is not a booking action.",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"query": {Type: jsonschema.String, Description: "The customer's question in natural language."},
					},
					Required: []string{"query"},
				},
			},
		},
	}
}
