package sdcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"filament-monitor-backend/internal/hw"
)

// Known command opcodes.
const (
	CmdStatus      = 0
	CmdStartPrint  = 128
	CmdPausePrint  = 129
	CmdCancelPrint = 130
	CmdResumePrint = 131
	CmdLight       = 403
)

// FromClient identifies this client role in the envelope.
const FromClient = 1

// KeepAliveFrame is the bare text frame used to keep the socket open.
const KeepAliveFrame = "ping"

// ErrMalformed is returned when an inbound frame is not a JSON object.
var ErrMalformed = errors.New("sdcp: malformed frame")

// Envelope is the outbound command shape expected by the printer.
type Envelope struct {
	ID   string      `json:"Id"`
	Data CommandBody `json:"Data"`
}

// CommandBody carries the opcode and its payload.
type CommandBody struct {
	Cmd         int            `json:"Cmd"`
	Data        map[string]any `json:"Data"`
	RequestID   string         `json:"RequestID"`
	MainboardID string         `json:"MainboardID"`
	TimeStamp   int64          `json:"TimeStamp"`
	From        int            `json:"From"`
}

// Codec builds envelopes stamped with a clock.
type Codec struct {
	clock hw.Clock
}

func NewCodec(clock hw.Clock) *Codec {
	return &Codec{clock: clock}
}

// NewEnvelope builds the envelope for opcode. A nil payload becomes {}.
func (c *Codec) NewEnvelope(opcode int, payload map[string]any) Envelope {
	if payload == nil {
		payload = map[string]any{}
	}
	return Envelope{
		ID: "",
		Data: CommandBody{
			Cmd:         opcode,
			Data:        payload,
			RequestID:   newRequestID(),
			MainboardID: "",
			TimeStamp:   c.clock.NowMs(),
			From:        FromClient,
		},
	}
}

// Encode returns the wire bytes for opcode and payload.
func (c *Codec) Encode(opcode int, payload map[string]any) ([]byte, error) {
	b, err := json.Marshal(c.NewEnvelope(opcode, payload))
	if err != nil {
		return nil, fmt.Errorf("encode command %d: %w", opcode, err)
	}
	return b, nil
}

// Decode turns a frame into a Document without checking its meaning.
func Decode(frame []byte) (Document, error) {
	var doc map[string]any
	if err := json.Unmarshal(frame, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}
	return Document(doc), nil
}

// newRequestID is a random hex token used to tell requests apart in logs.
func newRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
