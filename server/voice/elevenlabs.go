package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/velora-ai/velora/internal/mulaw"
)

const defaultBaseURL = "https://api.elevenlabs.io"

// ElevenLabsConfig holds the ElevenLabs API configuration.
type ElevenLabsConfig struct {
	APIKey   string
	VoiceID  string
	TTSModel string
	STTModel string
	BaseURL  string
	Timeout  time.Duration
}

// ElevenLabs implements Transcriber and Synthesizer against the ElevenLabs
// REST API. Synthesis requests ulaw_8000 output so replies can be streamed
// to the telephony provider without transcoding.
type ElevenLabs struct {
	config ElevenLabsConfig
	client *http.Client
}

// NewElevenLabs creates an ElevenLabs voice client.
func NewElevenLabs(cfg ElevenLabsConfig) (*ElevenLabs, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("elevenlabs API key is required")
	}
	if cfg.VoiceID == "" {
		return nil, errors.New("elevenlabs voice ID is required")
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = "eleven_turbo_v2"
	}
	if cfg.STTModel == "" {
		cfg.STTModel = "scribe_v1"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &ElevenLabs{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Synthesize renders text as 8 kHz mu-law audio.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(map[string]interface{}{
		"text":     text,
		"model_id": e.config.TTSModel,
		"voice_settings": map[string]interface{}{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode synthesis request")
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=ulaw_8000", e.config.BaseURL, e.config.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build synthesis request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.config.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "synthesis request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("synthesis returned %d: %s", resp.StatusCode, detail)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read synthesized audio")
	}
	return audio, nil
}

// Transcribe converts an 8 kHz mu-law utterance to text. The audio is
// expanded to linear PCM and wrapped in a WAV container before upload.
func (e *ElevenLabs) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("model_id", e.config.STTModel); err != nil {
		return "", errors.Wrap(err, "failed to build transcription request")
	}
	part, err := form.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", errors.Wrap(err, "failed to build transcription request")
	}
	if _, err := part.Write(wavFromMulaw(audio)); err != nil {
		return "", errors.Wrap(err, "failed to build transcription request")
	}
	if err := form.Close(); err != nil {
		return "", errors.Wrap(err, "failed to build transcription request")
	}

	url := e.config.BaseURL + "/v1/speech-to-text"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", errors.Wrap(err, "failed to build transcription request")
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("xi-api-key", e.config.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "transcription request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", errors.Errorf("transcription returned %d: %s", resp.StatusCode, detail)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", errors.Wrap(err, "failed to decode transcription response")
	}
	return result.Text, nil
}

var (
	_ Transcriber = (*ElevenLabs)(nil)
	_ Synthesizer = (*ElevenLabs)(nil)
)

// wavFromMulaw wraps mu-law audio in a 16-bit PCM mono 8 kHz WAV container.
func wavFromMulaw(audio []byte) []byte {
	pcm := mulaw.DecodeToPCM(audio)

	const (
		sampleRate    = 8000
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	writeUint32(&buf, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	writeUint32(&buf, 16)
	writeUint16(&buf, 1) // PCM
	writeUint16(&buf, channels)
	writeUint32(&buf, sampleRate)
	writeUint32(&buf, uint32(byteRate))
	writeUint16(&buf, uint16(blockAlign))
	writeUint16(&buf, bitsPerSample)

	buf.WriteString("data")
	writeUint32(&buf, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	buf.Write([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	buf.Write([]byte{byte(v), byte(v >> 8)})
}
