// Package protocol defines the JSON frames exchanged with the remote
// conversational service over the realtime websocket. Every frame carries a
// "type" discriminator; decoding sniffs the envelope first, then unmarshals
// and validates the concrete frame.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	ProtocolVersion1 = "1"

	// MimePCM16k tags outbound microphone frames: linear PCM at the fixed
	// 16 kHz capture rate.
	MimePCM16k = "audio/pcm;rate=16000"
)

// DecodeError describes a frame that could not be decoded or validated.
type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badFrame(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_frame", Message: message, Param: param}
}

// AudioFormat describes the negotiated audio shape for one direction.
type AudioFormat struct {
	Encoding     string `json:"encoding"`
	SampleRateHz int    `json:"sample_rate_hz"`
	Channels     int    `json:"channels"`
}

// ClientHello opens the session. The token is the ephemeral, call-scoped
// credential obtained from the token-issuance endpoint.
type ClientHello struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Token           string      `json:"token"`
	SessionID       string      `json:"session_id,omitempty"`
	CallType        string      `json:"call_type"`
	CoworkerID      string      `json:"coworker_id,omitempty"`
	AudioIn         AudioFormat `json:"audio_in"`
	AudioOut        AudioFormat `json:"audio_out"`
}

// ClientAudioFrame carries one outbound microphone frame. Frames are sent in
// capture order; Seq increases monotonically within a session.
type ClientAudioFrame struct {
	Type    string `json:"type"`
	Seq     int64  `json:"seq"`
	Mime    string `json:"mime"`
	DataB64 string `json:"data_b64"`
}

// ClientText sends a scripted text turn, used to open the conversation
// without waiting on the human to speak first.
type ClientText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ClientControl carries a control operation. The only supported op is
// "hangup".
type ClientControl struct {
	Type string `json:"type"`
	Op   string `json:"op"`
}

// ServerHelloAck confirms the session is open.
type ServerHelloAck struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	AudioOut        AudioFormat `json:"audio_out"`
}

// ServerAudioChunk is one fragment of synthesized agent speech, played in
// arrival order.
type ServerAudioChunk struct {
	Type    string `json:"type"`
	Seq     int64  `json:"seq"`
	DataB64 string `json:"data_b64"`
}

// ServerTranscriptDelta is an incremental recognized-text event for either
// side of the conversation.
type ServerTranscriptDelta struct {
	Type    string `json:"type"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// ServerTurnComplete signals the agent finished its turn; pending playback
// drains to empty.
type ServerTurnComplete struct {
	Type string `json:"type"`
}

// ServerInterrupted signals the agent's in-progress turn was cut off and its
// queued audio should be discarded. Not an error.
type ServerInterrupted struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

// ServerError is a protocol-level failure raised by the remote service.
type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewHello builds a validated hello frame for the fixed PCM formats used by
// the call subsystem (16 kHz mic in, 24 kHz agent speech out).
func NewHello(token, sessionID, callType, coworkerID string) ClientHello {
	return ClientHello{
		Type:            "hello",
		ProtocolVersion: ProtocolVersion1,
		Token:           token,
		SessionID:       sessionID,
		CallType:        callType,
		CoworkerID:      coworkerID,
		AudioIn:         AudioFormat{Encoding: "pcm_s16le", SampleRateHz: 16000, Channels: 1},
		AudioOut:        AudioFormat{Encoding: "pcm_s16le", SampleRateHz: 24000, Channels: 1},
	}
}

// DecodeServerMessage decodes one inbound text frame into its concrete type.
func DecodeServerMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badFrame("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badFrame("missing type", "type")
	}

	switch typ {
	case "hello_ack":
		var msg ServerHelloAck
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid hello_ack", "")
		}
		if strings.TrimSpace(msg.SessionID) == "" {
			return nil, badFrame("hello_ack.session_id is required", "session_id")
		}
		return msg, nil
	case "audio_chunk":
		var msg ServerAudioChunk
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid audio_chunk", "")
		}
		if strings.TrimSpace(msg.DataB64) == "" {
			return nil, badFrame("audio_chunk.data_b64 is required", "data_b64")
		}
		return msg, nil
	case "transcript_delta":
		var msg ServerTranscriptDelta
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid transcript_delta", "")
		}
		switch strings.TrimSpace(msg.Speaker) {
		case "human", "agent":
		default:
			return nil, badFrame("transcript_delta.speaker must be human or agent", "speaker")
		}
		return msg, nil
	case "turn_complete":
		var msg ServerTurnComplete
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid turn_complete", "")
		}
		return msg, nil
	case "interrupted":
		var msg ServerInterrupted
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid interrupted", "")
		}
		return msg, nil
	case "error":
		var msg ServerError
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("invalid error frame", "")
		}
		return msg, nil
	default:
		return nil, badFrame("unsupported message type", "type")
	}
}
