// Velora is an AI phone receptionist for salons: it answers calls over
// Twilio media streams, books appointments against Google Calendar, and
// answers questions from a vector-indexed knowledge base.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/velora-ai/velora/internal/auditlog"
	"github.com/velora-ai/velora/internal/profile"
	"github.com/velora-ai/velora/plugin/ai"
	"github.com/velora-ai/velora/plugin/ai/agent"
	"github.com/velora-ai/velora/plugin/ai/rag"
	"github.com/velora-ai/velora/plugin/ai/vector"
	"github.com/velora-ai/velora/server"
	"github.com/velora-ai/velora/server/calendar"
	"github.com/velora-ai/velora/internal/observability"
	"github.com/velora-ai/velora/server/orchestrator"
	"github.com/velora-ai/velora/server/session"
	"github.com/velora-ai/velora/server/voice"
	"github.com/velora-ai/velora/store"
)

const version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:   "velora",
	Short: "Voice receptionist for salons",
	RunE: func(_ *cobra.Command, _ []string) error {
		p := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Data:    viper.GetString("data"),
			Version: version,
		}
		p.FromEnv()
		if err := p.Validate(); err != nil {
			return err
		}
		return run(p)
	},
}

func init() {
	rootCmd.Flags().String("mode", "dev", "server mode: dev or prod")
	rootCmd.Flags().String("addr", "", "binding address")
	rootCmd.Flags().Int("port", 8080, "binding port")
	rootCmd.Flags().String("data", "data", "data directory")

	for _, flag := range []string{"mode", "addr", "port", "data"} {
		if err := viper.BindPFlag(flag, rootCmd.Flags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
	viper.SetEnvPrefix("velora")
	viper.AutomaticEnv()
}

func run(p *profile.Profile) error {
	observability.SetupLogger(p.IsDev())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chatProvider, err := ai.NewProvider(&ai.Config{
		BaseURL:   p.LLMBaseURL,
		APIKey:    p.LLMAPIKey,
		ChatModel: p.LLMModel,
	})
	if err != nil {
		return fmt.Errorf("failed to create chat provider: %w", err)
	}
	embeddingProvider, err := ai.NewProvider(&ai.Config{
		BaseURL:        p.EmbeddingBaseURL,
		APIKey:         p.EmbeddingAPIKey,
		EmbeddingModel: p.EmbeddingModel,
	})
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}

	kb, err := rag.LoadKnowledgeBase(p.KnowledgePath)
	if err != nil {
		return err
	}
	var vectorStore vector.Store
	if p.KnowledgeDSN != "" {
		vectorStore, err = vector.NewPGStore(p.KnowledgeDSN, 1536)
		if err != nil {
			return err
		}
	} else {
		slog.Warn("VELORA_KNOWLEDGE_DSN not set, using in-memory knowledge index")
		vectorStore = vector.NewMockStore()
	}
	retriever := rag.NewRetriever(embeddingProvider, vectorStore, kb)
	if err := retriever.Index(ctx); err != nil {
		return err
	}

	if p.CalendarID == "" {
		return fmt.Errorf("VELORA_CALENDAR_ID is required")
	}
	gateway, err := calendar.NewGoogleGateway(ctx, calendar.GoogleConfig{
		CalendarID:      p.CalendarID,
		CredentialsFile: p.CalendarCredentials,
		Timezone:        p.SalonTimezone,
	})
	if err != nil {
		return err
	}

	location, err := time.LoadLocation(p.SalonTimezone)
	if err != nil {
		return err
	}
	dispatcher := agent.NewDispatcher(gateway, retriever)
	engine := agent.NewEngine(chatProvider, dispatcher, agent.Config{
		SalonName: p.SalonName,
		Location:  location,
	})

	var (
		transcriber voice.Transcriber
		synthesizer voice.Synthesizer
	)
	if p.VoiceAPIKey != "" {
		el, err := voice.NewElevenLabs(voice.ElevenLabsConfig{
			APIKey:   p.VoiceAPIKey,
			VoiceID:  p.VoiceID,
			TTSModel: p.VoiceTTSModel,
			STTModel: p.VoiceSTTModel,
		})
		if err != nil {
			return err
		}
		transcriber, synthesizer = el, el
	} else {
		slog.Warn("VELORA_VOICE_API_KEY not set, phone audio disabled; chat API only")
	}

	audit, err := auditlog.NewLogger(filepath.Join(p.Data, "interactions.jsonl"))
	if err != nil {
		return err
	}
	defer audit.Close()

	records, err := store.New(ctx, p.Data)
	if err != nil {
		return err
	}
	defer records.Close()

	sessions := session.NewStore()
	orch := orchestrator.New(sessions, engine, transcriber, synthesizer, audit, records, orchestrator.Config{})
	reaper := session.NewReaper(sessions, session.ReaperConfig{IdleTimeout: p.SessionIdleTimeout}, orch.FlushEnded)

	slog.Info("velora started",
		"version", version,
		"mode", p.Mode,
		"addr", p.Addr,
		"port", p.Port,
		"salon", p.SalonName)
	return server.New(p, orch, reaper).Start(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
