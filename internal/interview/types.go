package interview

import (
	"context"
	"time"
)

// State is the position of a session in the interview state machine.
type State int

const (
	StateIdle State = iota
	StateDeviceReady
	StateAwaitingOpeningQuestion
	StatePlayingAudio
	StateUserReady
	StateRecording
	StateTranscribing
	StateRequestingFollowUp
	StateClosed
	StateError
)

var stateNames = map[State]string{
	StateIdle:                    "idle",
	StateDeviceReady:             "device_ready",
	StateAwaitingOpeningQuestion: "awaiting_opening_question",
	StatePlayingAudio:            "playing_audio",
	StateUserReady:               "user_ready",
	StateRecording:               "recording",
	StateTranscribing:            "transcribing",
	StateRequestingFollowUp:      "requesting_follow_up",
	StateClosed:                  "closed",
	StateError:                   "error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText renders the state name in JSON event payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateError
}

// Speaker identifies who produced a Turn. The values double as the wire role tags.
type Speaker string

const (
	SpeakerCandidate   Speaker = "user"
	SpeakerInterviewer Speaker = "model"
)

// Valid reports whether s is a known speaker tag.
func (s Speaker) Valid() bool {
	return s == SpeakerCandidate || s == SpeakerInterviewer
}

// Turn is one utterance in the conversation.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Recording is a finished block of captured audio.
type Recording struct {
	Data     []byte
	MIMEType string
}

// Size returns the payload length in bytes.
func (r Recording) Size() int {
	return len(r.Data)
}

// Opening is the first interviewer question. A nil Audio means silent playback.
type Opening struct {
	Text  string
	Audio []byte
}

// FollowUp is the interviewer's answer to the latest history.
type FollowUp struct {
	Text    string
	Audio   []byte
	Closing bool
}

// Transcription is the recognized text of a Recording.
type Transcription struct {
	Text   string
	Topics []string
}

// DeviceHandle is exclusive ownership of one acquired input device.
type DeviceHandle interface {
	DeviceID() string
}

// CaptureManager owns the input device and turns captured audio into Recordings.
type CaptureManager interface {
	Acquire(ctx context.Context) (DeviceHandle, error)
	StartCapture(h DeviceHandle) error
	StopCapture() (Recording, error)
	Release(h DeviceHandle)
}

// Player plays synthesized audio. done is called at most once per Play call:
// with nil when playback finished, with an error on a playback fault, and never
// when the playback was preempted by another Play or by Stop.
type Player interface {
	Play(audio []byte, done func(error))
	Stop()
}

// LevelMonitor reports a bounded activity level while capture is active.
type LevelMonitor interface {
	Start(h DeviceHandle)
	Stop()
	Level() float64
}

// Transcriber turns a Recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, rec Recording) (Transcription, error)
}

// Dialogue produces interviewer questions.
type Dialogue interface {
	Start(ctx context.Context, role string) (Opening, error)
	Next(ctx context.Context, history []Turn, role string) (FollowUp, error)
}

// EventKind classifies session events.
type EventKind string

const (
	EventState    EventKind = "state"
	EventTurn     EventKind = "turn"
	EventNotice   EventKind = "notice"
	EventFault    EventKind = "fault"
	EventFarewell EventKind = "farewell"
	EventTeardown EventKind = "teardown"
)

// Event is emitted by the Controller on every observable change.
type Event struct {
	SessionID string    `json:"session_id"`
	Kind      EventKind `json:"kind"`
	State     State     `json:"state"`
	Turn      *Turn     `json:"turn,omitempty"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

// EventSink receives session events in order. OnEvent is called with the
// controller lock held and must not call back into the Controller.
type EventSink interface {
	OnEvent(e Event)
}

// Sinks fans an event out to several sinks.
type Sinks []EventSink

func (s Sinks) OnEvent(e Event) {
	for _, sink := range s {
		if sink != nil {
			sink.OnEvent(e)
		}
	}
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(Event)

func (f SinkFunc) OnEvent(e Event) { f(e) }
