// Package protocol defines the binary message envelope exchanged between
// clients and the orchestration server, and the codec that moves it over a
// socket. Payloads carry msgpack tags so text and raw audio share one compact
// encoding.
package protocol

import (
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// MessageType identifies the payload shape of an envelope.
type MessageType string

// Client -> server message types.
const (
	TypeConnect       MessageType = "connect"
	TypeInput         MessageType = "input"
	TypeInterrupt     MessageType = "interrupt"
	TypeTaskStatus    MessageType = "task_status"
	TypeContextUpdate MessageType = "context_update"
)

// Server -> client message types.
const (
	TypeConnected MessageType = "connected"
	TypeAck       MessageType = "ack"
	TypeSpeech    MessageType = "speech"
	TypeDocument  MessageType = "document"
	TypeProgress  MessageType = "progress"
	TypeError     MessageType = "error"
	TypeClarify   MessageType = "clarify"
)

// Message is the uniform wire envelope. Payload holds the already-encoded
// type-specific body so the envelope round-trips byte-exactly regardless of
// payload shape.
type Message struct {
	ID      string             `msgpack:"id"`
	Type    MessageType        `msgpack:"type"`
	TS      int64              `msgpack:"ts"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// NewMessage builds an envelope around payload with a fresh id and the
// current epoch-millisecond timestamp. A nil payload produces an empty body.
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	msg := &Message{
		ID:   uuid.NewString(),
		Type: msgType,
		TS:   time.Now().UnixMilli(),
	}
	if payload != nil {
		body, err := msgpack.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = body
	}
	return msg, nil
}

// UnmarshalPayload decodes the envelope body into v.
func (m *Message) UnmarshalPayload(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	return msgpack.Unmarshal(m.Payload, v)
}

// ConnectPayload opens or resumes a client identity.
type ConnectPayload struct {
	ClientID   string `msgpack:"clientId,omitempty"`
	ClientType string `msgpack:"clientType"`
	Version    string `msgpack:"version"`
}

// Client types accepted in ConnectPayload.ClientType.
const (
	ClientTypeCLI    = "cli"
	ClientTypeWeb    = "web"
	ClientTypeMobile = "mobile"
)

// InputPayload carries one free-form user utterance.
type InputPayload struct {
	Text string `msgpack:"text"`
}

// TaskStatusPayload requests the status of a task by id.
type TaskStatusPayload struct {
	TaskID string `msgpack:"taskId"`
}

// ContextUpdatePayload pushes a client-side context change, e.g. the resource
// the user is currently focused on.
type ContextUpdatePayload struct {
	Type string         `msgpack:"type"`
	Data map[string]any `msgpack:"data,omitempty"`
}

// ConnectedPayload acknowledges a connect and reports the effective identity.
type ConnectedPayload struct {
	ClientID    string `msgpack:"clientId"`
	IsReconnect bool   `msgpack:"isReconnect"`
}

// AckPayload is a brief spoken filler sent before slower work completes.
type AckPayload struct {
	Text  string `msgpack:"text"`
	Audio []byte `msgpack:"audio,omitempty"`
}

// SpeechPayload is a spoken result.
type SpeechPayload struct {
	Text  string `msgpack:"text"`
	Audio []byte `msgpack:"audio,omitempty"`
}

// DocumentPayload announces a document written for the client.
type DocumentPayload struct {
	Path string `msgpack:"path"`
	Type string `msgpack:"type"`
}

// ProgressPayload reports partial progress on a running task.
type ProgressPayload struct {
	TaskID  string `msgpack:"taskId"`
	Status  string `msgpack:"status"`
	Message string `msgpack:"message,omitempty"`
}

// ErrorPayload is a user-visible failure with a short speakable code.
type ErrorPayload struct {
	Code    string `msgpack:"code"`
	Message string `msgpack:"message"`
}

// ClarifyPayload asks the user to disambiguate their request.
type ClarifyPayload struct {
	Question string   `msgpack:"question"`
	Options  []string `msgpack:"options,omitempty"`
}
