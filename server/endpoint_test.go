package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 20 ms of 8 kHz mu-law is 160 bytes per chunk.
func speechChunk() []byte {
	chunk := make([]byte, 160)
	for i := range chunk {
		// 0x90 decodes to a loud sample well above the energy threshold.
		chunk[i] = 0x90
	}
	return chunk
}

func silenceChunk() []byte {
	chunk := make([]byte, 160)
	for i := range chunk {
		chunk[i] = 0xFF
	}
	return chunk
}

func TestEndpointerDetectsUtterance(t *testing.T) {
	var e endpointer

	// 25 speech chunks = 4000 bytes, above the minimum.
	for i := 0; i < 25; i++ {
		utterance, ok := e.Push(speechChunk())
		assert.False(t, ok)
		assert.Nil(t, utterance)
	}

	// Silence closes the utterance only after the full hangover.
	for i := 0; i < silenceChunksToEnd-1; i++ {
		_, ok := e.Push(silenceChunk())
		require.False(t, ok, "chunk %d", i)
	}
	utterance, ok := e.Push(silenceChunk())
	require.True(t, ok)
	assert.Equal(t, (25+silenceChunksToEnd)*160, len(utterance))
}

func TestEndpointerIgnoresLeadingSilence(t *testing.T) {
	var e endpointer

	for i := 0; i < 100; i++ {
		utterance, ok := e.Push(silenceChunk())
		assert.False(t, ok)
		assert.Nil(t, utterance)
	}
	assert.Empty(t, e.buffer)
}

func TestEndpointerDiscardsShortBursts(t *testing.T) {
	var e endpointer

	// A few chunks of noise, well under the minimum utterance size.
	for i := 0; i < 3; i++ {
		e.Push(speechChunk())
	}
	for i := 0; i < silenceChunksToEnd; i++ {
		utterance, ok := e.Push(silenceChunk())
		assert.False(t, ok)
		assert.Nil(t, utterance)
	}

	// Detector is reset and a real utterance still comes through.
	for i := 0; i < 25; i++ {
		e.Push(speechChunk())
	}
	var captured []byte
	for i := 0; i < silenceChunksToEnd; i++ {
		if utterance, ok := e.Push(silenceChunk()); ok {
			captured = utterance
		}
	}
	assert.NotEmpty(t, captured)
}

func TestEndpointerSpeechResetsSilenceCount(t *testing.T) {
	var e endpointer

	for i := 0; i < 25; i++ {
		e.Push(speechChunk())
	}
	// A pause shorter than the hangover, then more speech.
	for i := 0; i < silenceChunksToEnd-5; i++ {
		_, ok := e.Push(silenceChunk())
		require.False(t, ok)
	}
	_, ok := e.Push(speechChunk())
	require.False(t, ok)
	assert.Zero(t, e.silentChunks)
}
