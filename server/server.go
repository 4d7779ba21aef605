// Package server exposes the HTTP surface: the Twilio voice webhook and
// media-stream WebSocket, a text chat API, and operational endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/velora-ai/velora/internal/profile"
	"github.com/velora-ai/velora/internal/observability"
	"github.com/velora-ai/velora/server/orchestrator"
	"github.com/velora-ai/velora/server/session"
)

// Server is the HTTP front of the voice agent.
type Server struct {
	e            *echo.Echo
	profile      *profile.Profile
	orchestrator *orchestrator.Orchestrator
	reaper       *session.Reaper
}

// New creates the server and registers all routes.
func New(p *profile.Profile, orch *orchestrator.Orchestrator, reaper *session.Reaper) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			c.Logger().Debugf("%s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))

	s := &Server{
		e:            e,
		profile:      p,
		orchestrator: orch,
		reaper:       reaper,
	}

	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", s.handleMetrics)

	voiceGroup := e.Group("/voice")
	voiceGroup.POST("/incoming", s.handleIncomingCall)
	voiceGroup.GET("/stream", s.handleMediaStream)

	apiGroup := e.Group("/api/v1")
	apiGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(10))))
	apiGroup.POST("/chat", s.handleChat)
	apiGroup.DELETE("/chat/:callSid", s.handleEndChat)

	return s
}

// Start runs the server until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s.reaper != nil {
		s.reaper.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
		if err := s.e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if s.reaper != nil {
		s.reaper.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.e.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"version":      s.profile.Version,
		"active_calls": s.orchestrator.ActiveCalls(),
	})
}

func (s *Server) handleMetrics(c echo.Context) error {
	snapshot := observability.GlobalMetrics().Snapshot()

	tools := make(map[string]interface{}, len(snapshot.ToolMetrics))
	for name, tm := range snapshot.ToolMetrics {
		tools[name] = map[string]int64{
			"invocations":     tm.InvocationCount,
			"errors":          tm.ErrorCount,
			"avg_duration_ms": tm.AverageDuration,
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"active_calls":      s.orchestrator.ActiveCalls(),
		"calls_started":     snapshot.CallsStarted,
		"calls_ended":       snapshot.CallsEnded,
		"utterances":        snapshot.UtteranceTotal,
		"utterances_failed": snapshot.UtteranceFailed,
		"success_rate":      snapshot.SuccessRate(),
		"avg_utterance_ms":  snapshot.AverageDurationMs,
		"tools":             tools,
	})
}
