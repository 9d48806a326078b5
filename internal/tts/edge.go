package tts

import (
	"context"
	"errors"
	"fmt"

	"github.com/wujunwei928/edge-tts-go/edge_tts"
)

const DefaultEdgeVoice = "en-US-GuyNeural"

// Edge synthesizes MP3 speech with the Microsoft Edge read-aloud service.
type Edge struct {
	voice  string
	stream func(text, voice string) ([]byte, error)
}

func NewEdge(voice string) *Edge {
	if voice == "" {
		voice = DefaultEdgeVoice
	}
	return &Edge{voice: voice, stream: edgeStream}
}

func edgeStream(text, voice string) ([]byte, error) {
	communicate, err := edge_tts.NewCommunicate(text, edge_tts.SetVoice(voice))
	if err != nil {
		return nil, fmt.Errorf("failed to create Edge TTS communicator: %w", err)
	}
	return communicate.Stream()
}

func (e *Edge) Voice() string {
	return "edge/" + e.voice
}

// Synthesize implements Synthesizer. The edge client is not context aware,
// so cancellation only stops waiting for the result.
func (e *Edge) Synthesize(ctx context.Context, text string) ([]byte, error) {
	type result struct {
		audio []byte
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		audio, err := e.stream(text, e.voice)
		switch {
		case err != nil:
			ch <- result{err: fmt.Errorf("Edge TTS synthesis failed: %w", err)}
		case len(audio) == 0:
			ch <- result{err: errors.New("Edge TTS returned no audio")}
		default:
			ch <- result{audio: audio}
		}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.audio, r.err
	}
}
