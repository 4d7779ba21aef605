package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/velora-ai/velora/internal/observability"
)

// responseEndMark is the playback marker Twilio echoes back once the agent's
// audio has finished playing to the caller.
const responseEndMark = "response_end"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Twilio is the only expected client; the webhook URL is the secret.
	CheckOrigin: func(*http.Request) bool { return true },
}

// streamEvent is one message of the Twilio media stream protocol.
type streamEvent struct {
	Event string       `json:"event"`
	Start *streamStart `json:"start,omitempty"`
	Media *streamMedia `json:"media,omitempty"`
	Mark  *streamMark  `json:"mark,omitempty"`
}

type streamStart struct {
	StreamSID        string            `json:"streamSid"`
	CallSID          string            `json:"callSid"`
	CustomParameters map[string]string `json:"customParameters"`
}

type streamMedia struct {
	Payload string `json:"payload"`
}

type streamMark struct {
	Name string `json:"name"`
}

// handleMediaStream runs one call's bidirectional media stream: inbound
// mu-law chunks are segmented into utterances and answered with synthesized
// audio. The conversation for a call is strictly turn-based, so events are
// processed in arrival order on this single goroutine.
func (s *Server) handleMediaStream(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	var (
		callSID   string
		streamSID string
		detector  endpointer
		speaking  bool
	)
	ctx := c.Request().Context()

	defer func() {
		if callSID == "" {
			return
		}
		// Covers dropped connections; a clean stop has already ended the call.
		_ = s.orchestrator.EndCall(context.WithoutCancel(ctx), callSID)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("media stream closed unexpectedly",
					observability.LogFieldCallID, callSID, "error", err)
			}
			return nil
		}

		var event streamEvent
		if err := json.Unmarshal(data, &event); err != nil {
			slog.Warn("unparseable media stream event", "error", err)
			continue
		}

		switch event.Event {
		case "connected":
			// Protocol preamble, nothing to do yet.

		case "start":
			if event.Start == nil {
				continue
			}
			callSID = event.Start.CallSID
			streamSID = event.Start.StreamSID
			caller := event.Start.CustomParameters["caller"]

			greeting, err := s.orchestrator.StartCall(ctx, callSID, caller, event.Start.CustomParameters)
			if err != nil {
				slog.Error("failed to start call",
					observability.LogFieldCallID, callSID, "error", err)
				return nil
			}
			audio, err := s.orchestrator.Speak(ctx, callSID, greeting)
			if err == nil {
				speaking = s.sendReply(conn, streamSID, callSID, audio)
			}

		case "media":
			if event.Media == nil || callSID == "" {
				continue
			}
			if speaking {
				// The caller's line carries our own playback; ignore it
				// until Twilio confirms the reply finished.
				continue
			}
			chunk, err := base64.StdEncoding.DecodeString(event.Media.Payload)
			if err != nil {
				continue
			}
			utterance, ok := detector.Push(chunk)
			if !ok {
				continue
			}

			audio, err := s.orchestrator.HandleAudio(ctx, callSID, utterance)
			if err != nil && len(audio) == 0 {
				slog.Warn("utterance produced no audio",
					observability.LogFieldCallID, callSID, "error", err)
				continue
			}
			speaking = s.sendReply(conn, streamSID, callSID, audio)

		case "mark":
			if event.Mark != nil && event.Mark.Name == responseEndMark {
				speaking = false
			}

		case "stop":
			if callSID != "" {
				_ = s.orchestrator.EndCall(ctx, callSID)
				callSID = ""
			}
			return nil
		}
	}
}

// sendReply streams reply audio to Twilio followed by a playback mark.
// Reports whether the agent is now speaking.
func (s *Server) sendReply(conn *websocket.Conn, streamSID, callSID string, audio []byte) bool {
	if len(audio) == 0 {
		return false
	}

	media := map[string]interface{}{
		"event":     "media",
		"streamSid": streamSID,
		"media": map[string]string{
			"payload": base64.StdEncoding.EncodeToString(audio),
		},
	}
	if err := conn.WriteJSON(media); err != nil {
		slog.Warn("failed to send reply audio",
			observability.LogFieldCallID, callSID, "error", err)
		return false
	}

	mark := map[string]interface{}{
		"event":     "mark",
		"streamSid": streamSID,
		"mark":      map[string]string{"name": responseEndMark},
	}
	if err := conn.WriteJSON(mark); err != nil {
		slog.Warn("failed to send playback mark",
			observability.LogFieldCallID, callSID, "error", err)
	}
	return true
}
