// Package tts is the speech-synthesis boundary. The orchestrator attaches
// audio to ack and speech messages through a Synthesizer; the real engine
// lives outside this process.
package tts

import (
	"context"
	"time"
)

// Result is one synthesized utterance.
type Result struct {
	Audio       []byte
	ContentType string
	Duration    time.Duration
}

// Synthesizer converts text into playable audio.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string) (Result, error)
}
