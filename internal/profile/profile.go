package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory (audit database, interaction log)
	Data string
	// PublicHost is the externally reachable host used when building the
	// media-stream WebSocket URL returned to the telephony provider.
	PublicHost string
	// Version is the current version of server
	Version string

	// LLM configuration (OpenAI-compatible; OpenRouter by default)
	LLMAPIKey  string // VELORA_LLM_API_KEY
	LLMBaseURL string // VELORA_LLM_BASE_URL (default: https://openrouter.ai/api/v1)
	LLMModel   string // VELORA_LLM_MODEL (default: openai/gpt-4o)

	// Embedding configuration
	EmbeddingAPIKey  string // VELORA_EMBEDDING_API_KEY (falls back to LLMAPIKey)
	EmbeddingBaseURL string // VELORA_EMBEDDING_BASE_URL (default: https://api.openai.com/v1)
	EmbeddingModel   string // VELORA_EMBEDDING_MODEL (default: text-embedding-3-small)

	// Voice (ElevenLabs)
	VoiceAPIKey   string // VELORA_VOICE_API_KEY
	VoiceID       string // VELORA_VOICE_ID (default: 21m00Tcm4TlvDq8ikWAM)
	VoiceTTSModel string // VELORA_VOICE_TTS_MODEL (default: eleven_turbo_v2)
	VoiceSTTModel string // VELORA_VOICE_STT_MODEL (default: scribe_v1)

	// Knowledge base
	KnowledgeDSN  string // VELORA_KNOWLEDGE_DSN (postgres, pgvector extension required)
	KnowledgePath string // VELORA_KNOWLEDGE_PATH (default: knowledge_base/salon_data.json)

	// Google Calendar
	CalendarID          string // VELORA_CALENDAR_ID
	CalendarCredentials string // VELORA_CALENDAR_CREDENTIALS (service account JSON path)

	// Salon configuration
	SalonName     string // VELORA_SALON_NAME (default: Luxe Beauty Salon)
	SalonTimezone string // VELORA_SALON_TIMEZONE (default: America/Los_Angeles)

	// Session lifecycle
	SessionIdleTimeout time.Duration // VELORA_SESSION_IDLE_TIMEOUT (default: 10m)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from VELORA_* environment variables.
func (p *Profile) FromEnv() {
	p.LLMAPIKey = os.Getenv("VELORA_LLM_API_KEY")
	p.LLMBaseURL = getEnvOrDefault("VELORA_LLM_BASE_URL", "https://openrouter.ai/api/v1")
	p.LLMModel = getEnvOrDefault("VELORA_LLM_MODEL", "openai/gpt-4o")

	p.EmbeddingAPIKey = getEnvOrDefault("VELORA_EMBEDDING_API_KEY", p.LLMAPIKey)
	p.EmbeddingBaseURL = getEnvOrDefault("VELORA_EMBEDDING_BASE_URL", "https://api.openai.com/v1")
	p.EmbeddingModel = getEnvOrDefault("VELORA_EMBEDDING_MODEL", "text-embedding-3-small")

	p.VoiceAPIKey = os.Getenv("VELORA_VOICE_API_KEY")
	p.VoiceID = getEnvOrDefault("VELORA_VOICE_ID", "21m00Tcm4TlvDq8ikWAM")
	p.VoiceTTSModel = getEnvOrDefault("VELORA_VOICE_TTS_MODEL", "eleven_turbo_v2")
	p.VoiceSTTModel = getEnvOrDefault("VELORA_VOICE_STT_MODEL", "scribe_v1")

	p.KnowledgeDSN = os.Getenv("VELORA_KNOWLEDGE_DSN")
	p.KnowledgePath = getEnvOrDefault("VELORA_KNOWLEDGE_PATH", "knowledge_base/salon_data.json")

	p.CalendarID = os.Getenv("VELORA_CALENDAR_ID")
	p.CalendarCredentials = getEnvOrDefault("VELORA_CALENDAR_CREDENTIALS", "credentials/service_account.json")

	p.SalonName = getEnvOrDefault("VELORA_SALON_NAME", "Luxe Beauty Salon")
	p.SalonTimezone = getEnvOrDefault("VELORA_SALON_TIMEZONE", "America/Los_Angeles")

	p.PublicHost = os.Getenv("VELORA_PUBLIC_HOST")

	if v := os.Getenv("VELORA_SESSION_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			p.SessionIdleTimeout = d
		}
	}
	if p.SessionIdleTimeout <= 0 {
		p.SessionIdleTimeout = 10 * time.Minute
	}

	if v := os.Getenv("VELORA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			p.Port = port
		}
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		if err := os.MkdirAll(dataDir, 0o770); err != nil {
			return "", errors.Wrapf(err, "unable to create data folder %s", dataDir)
		}
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	if p.Data == "" {
		p.Data = "data"
	}
	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return err
	}
	p.Data = dataDir

	if p.LLMAPIKey == "" {
		return errors.New("VELORA_LLM_API_KEY is required")
	}
	if _, err := time.LoadLocation(p.SalonTimezone); err != nil {
		return fmt.Errorf("invalid salon timezone %q: %w", p.SalonTimezone, err)
	}
	return nil
}
