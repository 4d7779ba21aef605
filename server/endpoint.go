package server

import "github.com/velora-ai/velora/internal/mulaw"

// Endpointing parameters for 8 kHz mu-law media chunks. Twilio delivers
// 20 ms frames, so 30 quiet chunks is roughly 600 ms of silence.
const (
	energyThreshold    = 200
	silenceChunksToEnd = 30
	minUtteranceBytes  = 3200
)

// endpointer segments a caller's media stream into utterances by RMS energy:
// speech accumulates into a buffer, and a run of quiet chunks after enough
// speech closes the utterance.
type endpointer struct {
	buffer        []byte
	speechBytes   int
	speechStarted bool
	silentChunks  int
}

// Push feeds one media chunk. When a full utterance has been captured it is
// returned and the detector resets for the next one.
func (e *endpointer) Push(chunk []byte) ([]byte, bool) {
	energy := mulaw.RMS(chunk)

	if energy >= energyThreshold {
		e.speechStarted = true
		e.silentChunks = 0
		e.speechBytes += len(chunk)
		e.buffer = append(e.buffer, chunk...)
		return nil, false
	}

	if !e.speechStarted {
		// Leading silence is discarded.
		return nil, false
	}

	// Trailing silence is kept so the recognizer sees natural word endings.
	e.buffer = append(e.buffer, chunk...)
	e.silentChunks++
	if e.silentChunks < silenceChunksToEnd {
		return nil, false
	}

	utterance := e.buffer
	speechBytes := e.speechBytes
	e.reset()
	if speechBytes < minUtteranceBytes {
		// Too little speech to bother the recognizer; a cough or line noise.
		return nil, false
	}
	return utterance, true
}

func (e *endpointer) reset() {
	e.buffer = nil
	e.speechBytes = 0
	e.speechStarted = false
	e.silentChunks = 0
}
