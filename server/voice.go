package server

import (
	"encoding/xml"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// TwiML is the instruction document returned to Twilio for an inbound call.
type TwiML struct {
	XMLName xml.Name      `xml:"Response"`
	Say     string        `xml:"Say,omitempty"`
	Connect *twimlConnect `xml:"Connect,omitempty"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Parameters []twimlParameter `xml:"Parameter"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// handleIncomingCall answers the Twilio voice webhook by connecting the call
// to the bidirectional media stream.
func (s *Server) handleIncomingCall(c echo.Context) error {
	callSID := c.FormValue("CallSid")
	caller := c.FormValue("From")
	if callSID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing CallSid")
	}

	host := s.profile.PublicHost
	if host == "" {
		host = c.Request().Host
	}

	doc := TwiML{
		Connect: &twimlConnect{
			Stream: twimlStream{
				URL: fmt.Sprintf("wss://%s/voice/stream", host),
				Parameters: []twimlParameter{
					{Name: "caller", Value: caller},
				},
			},
		},
	}
	body, err := xml.Marshal(doc)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to render response")
	}
	return c.Blob(http.StatusOK, "application/xml", append([]byte(xml.Header), body...))
}
