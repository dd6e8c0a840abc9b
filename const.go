package websocket

import "errors"

const (
	websocketGUID         = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	websocketVersion      = "13"
	DefaultPort           = 8080
	DefaultMaxMessageSize = 16 << 20

	// maxControlPayload is the largest payload a control frame may carry.
	maxControlPayload = 125
	maxPayloadLen     = 1<<32 - 1
)

var (
	ErrClosed          = errors.New("websocket: connection closed")
	ErrInvalidArgument = errors.New("websocket: payload must be string or []byte")
	ErrPayloadTooLarge = errors.New("websocket: payload length exceeds 32 bits")
	ErrReservedBits    = errors.New("websocket: reserved bits set")
)

// Opcode is the 4-bit frame type field.
type Opcode byte

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xa
)

// Valid reports whether op is one of the opcodes defined by RFC 6455.
func (op Opcode) Valid() bool {
	switch op {
	case OpContinuation, OpText, OpBinary, OpClose, OpPing, OpPong:
		return true
	default:
		return false
	}
}

func (op Opcode) IsControl() bool {
	return op&0x8 != 0
}

func (op Opcode) String() string {
	switch op {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return "reserved"
	}
}

// Close codes defined in RFC 6455, section 7.4.1.
const (
	CloseNormalClosure           uint16 = 1000
	CloseGoingAway               uint16 = 1001
	CloseProtocolError           uint16 = 1002
	CloseUnsupportedData         uint16 = 1003
	CloseNoStatusReceived        uint16 = 1005
	CloseAbnormalClosure         uint16 = 1006
	CloseInvalidFramePayloadData uint16 = 1007
	ClosePolicyViolation         uint16 = 1008
	CloseMessageTooBig           uint16 = 1009
	CloseInternalServerErr       uint16 = 1011
)

type State int32

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}
