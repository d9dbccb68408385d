package tts

import "context"

// Synthesizer streams mu-law 8kHz audio for a line of text, delivering
// chunks as they arrive from the synthesis service. The audio is already in
// the call's wire format; the gateway only wraps and forwards it.
type Synthesizer interface {
	Stream(ctx context.Context, text string) (<-chan []byte, <-chan error)
}
