package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"

	velerrors "github.com/velora-ai/velora/internal/errors"
)

// chatRequest is one text turn against the agent, the development and testing
// counterpart of a phone utterance.
type chatRequest struct {
	CallSID string `json:"call_sid"`
	Caller  string `json:"caller"`
	Message string `json:"message"`
}

type chatResponse struct {
	CallSID  string `json:"call_sid"`
	Greeting string `json:"greeting,omitempty"`
	Reply    string `json:"reply"`
	Error    string `json:"error,omitempty"`
}

// handleChat runs one conversation turn over plain HTTP. Omitting call_sid
// starts a new conversation; reusing one continues it.
func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	ctx := c.Request().Context()
	resp := chatResponse{CallSID: req.CallSID}

	if req.CallSID == "" {
		resp.CallSID = "chat_" + shortuuid.New()
		greeting, err := s.orchestrator.StartCall(ctx, resp.CallSID, req.Caller,
			map[string]string{"channel": "chat"})
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to start conversation")
		}
		resp.Greeting = greeting
	}

	reply, err := s.orchestrator.HandleUtterance(ctx, resp.CallSID, req.Message)
	if err != nil {
		code := velerrors.GetCodeFromError(err, velerrors.ErrCodeServiceUnavailable)
		switch code {
		case velerrors.ErrCodeSessionNotFound:
			return echo.NewHTTPError(http.StatusNotFound, "no such conversation")
		case velerrors.ErrCodeSessionClosed:
			return echo.NewHTTPError(http.StatusGone, "conversation has ended")
		}
		if reply == "" {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "agent unavailable")
		}
		// Degraded turn: the fallback is still a usable reply.
		resp.Error = string(code)
	}

	resp.Reply = reply
	return c.JSON(http.StatusOK, resp)
}

// handleEndChat ends a conversation started over the chat API.
func (s *Server) handleEndChat(c echo.Context) error {
	callSID := c.Param("callSid")
	if err := s.orchestrator.EndCall(c.Request().Context(), callSID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "no such conversation")
	}
	return c.NoContent(http.StatusNoContent)
}
