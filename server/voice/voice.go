// Package voice converts between caller audio and text: speech-to-text for
// inbound utterances and text-to-speech for agent replies. Audio at this
// boundary is 8 kHz mu-law, the format Twilio media streams carry.
package voice

import "context"

// Transcriber converts caller audio to text.
type Transcriber interface {
	// Transcribe converts an 8 kHz mu-law utterance to text. An empty string
	// with nil error means the audio contained no recognizable speech.
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer converts agent replies to audio.
type Synthesizer interface {
	// Synthesize renders text as 8 kHz mu-law audio.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
