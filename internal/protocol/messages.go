// Package protocol defines the JSON envelopes exchanged on the streaming
// voice websocket. Audio travels in binary frames between them.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientHello   MessageType = "client_hello"
	TypeClientControl MessageType = "client_control"
	TypeSessionReady  MessageType = "session_ready"
	TypeTurnResult    MessageType = "turn_result"
	TypeError         MessageType = "error"
)

// Control actions a client may send.
const (
	ActionEnd  = "end"
	ActionPing = "ping"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientHello sets the session token and language hint for the following
// audio frames. Sending it again switches them.
type ClientHello struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Language  string      `json:"language,omitempty"`
}

type ClientControl struct {
	Type   MessageType `json:"type"`
	Action string      `json:"action"`
}

// SessionReady is sent once after the upgrade with capability readiness.
type SessionReady struct {
	Type MessageType `json:"type"`
	ASR  bool        `json:"asr"`
	LLM  bool        `json:"llm"`
	TTS  bool        `json:"tts"`
}

// TurnResult precedes the binary frame carrying the spoken answer.
type TurnResult struct {
	Type         MessageType `json:"type"`
	Seq          int         `json:"seq"`
	SessionID    string      `json:"session_id"`
	Intent       string      `json:"intent"`
	Dialect      string      `json:"dialect"`
	Confidence   float64     `json:"confidence"`
	Transcript   string      `json:"transcript"`
	ResponseText string      `json:"response_text"`
	MIME         string      `json:"mime"`
	AudioBytes   int         `json:"audio_bytes"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	Seq       int         `json:"seq,omitempty"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail"`
	Retryable bool        `json:"retryable"`
}

func NewTurnResult(seq int) TurnResult {
	return TurnResult{Type: TypeTurnResult, Seq: seq}
}

func NewError(seq int, code, detail string, retryable bool) ErrorEvent {
	return ErrorEvent{Type: TypeError, Seq: seq, Code: code, Detail: detail, Retryable: retryable}
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientHello:
		var msg ClientHello
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		msg.SessionID = strings.TrimSpace(msg.SessionID)
		msg.Language = strings.ToLower(strings.TrimSpace(msg.Language))
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		switch msg.Action {
		case ActionEnd, ActionPing:
			return msg, nil
		default:
			return nil, fmt.Errorf("invalid client_control action %q", msg.Action)
		}
	default:
		return nil, ErrUnsupportedType
	}
}
