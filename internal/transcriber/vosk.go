package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/amanullahtanweer/interview-coach/internal/audio"
	"github.com/amanullahtanweer/interview-coach/internal/interview"
)

const (
	DefaultVoskURL  = "ws://localhost:2700"
	voskChunkBytes  = 8000
	voskMaxMessages = 1 << 16
)

// VoskTranscriber sends a recording to a Vosk server over its websocket
// protocol and joins the final results.
type VoskTranscriber struct {
	serverURL string
	dialer    *websocket.Dialer
	logger    *slog.Logger
}

type voskResult struct {
	Text   string `json:"text"`
	Result []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Conf  float64 `json:"conf"`
	} `json:"result"`
	Partial string `json:"partial"`
}

func NewVoskTranscriber(serverURL string, logger *slog.Logger) *VoskTranscriber {
	if serverURL == "" {
		serverURL = DefaultVoskURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VoskTranscriber{
		serverURL: strings.TrimRight(serverURL, "/"),
		dialer:    websocket.DefaultDialer,
		logger:    logger,
	}
}

// Transcribe implements interview.Transcriber. The recording must be WAV;
// Vosk is told its sample rate and gets mono PCM. Vosk returns no topics.
func (vt *VoskTranscriber) Transcribe(ctx context.Context, rec interview.Recording) (interview.Transcription, error) {
	pcm, format, err := audio.DecodeWAV(rec.Data)
	if err != nil {
		return interview.Transcription{}, fmt.Errorf("vosk: %w", err)
	}
	pcm = audio.Downmix(pcm, format.Channels)

	url := fmt.Sprintf("%s/ws?sample_rate=%d", vt.serverURL, format.SampleRate)
	conn, _, err := vt.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return interview.Transcription{}, fmt.Errorf("failed to connect to Vosk server: %w", err)
	}
	defer conn.Close()

	// unblock the reader and writer when ctx ends
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	results := make(chan voskOutcome, 1)
	go vt.readResults(conn, results)

	for off := 0; off < len(pcm); off += voskChunkBytes {
		end := min(off+voskChunkBytes, len(pcm))
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm[off:end]); err != nil {
			return interview.Transcription{}, vt.failure(ctx, "send audio", err)
		}
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"eof": 1}`)); err != nil {
		return interview.Transcription{}, vt.failure(ctx, "send eof", err)
	}

	out := <-results
	if out.err != nil {
		return interview.Transcription{}, vt.failure(ctx, "read results", out.err)
	}
	return interview.Transcription{Text: out.text}, nil
}

type voskOutcome struct {
	text string
	err  error
}

// readResults collects final results until the server closes the socket
// after eof.
func (vt *VoskTranscriber) readResults(conn *websocket.Conn, out chan<- voskOutcome) {
	var full strings.Builder
	for i := 0; i < voskMaxMessages; i++ {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				out <- voskOutcome{text: full.String()}
				return
			}
			out <- voskOutcome{err: err}
			return
		}

		var result voskResult
		if err := json.Unmarshal(message, &result); err != nil {
			vt.logger.Warn("failed to parse Vosk result", "err", err)
			continue
		}
		if result.Text != "" {
			if full.Len() > 0 {
				full.WriteString(" ")
			}
			full.WriteString(result.Text)
		}
	}
	out <- voskOutcome{err: errors.New("too many messages from Vosk server")}
}

func (vt *VoskTranscriber) failure(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("vosk %s: %w", op, ctxErr)
	}
	return fmt.Errorf("vosk %s: %w", op, err)
}
