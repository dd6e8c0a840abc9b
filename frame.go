package websocket

import (
	"encoding/binary"
	"math"
)

type Frame struct {
	Fin        bool
	Rsv        byte
	OpCode     Opcode
	Mask       bool
	PayloadLen uint64
	MaskKey    [4]byte
	Payload    []byte
}

// Decode parses one frame from the front of buf. It returns a nil frame and
// zero consumed bytes when buf does not yet hold a complete frame; the caller
// keeps buf and retries once more bytes have arrived. The payload of a masked
// frame is returned unmasked. Opcodes are not validated here.
func Decode(buf []byte) (*Frame, int, error) {
	frame, idx, err := decodeHeader(buf)
	if frame == nil || err != nil {
		return nil, 0, err
	}
	if uint64(len(buf)-idx) < frame.PayloadLen {
		return nil, 0, nil
	}
	end := idx + int(frame.PayloadLen)
	frame.Payload = make([]byte, frame.PayloadLen)
	copy(frame.Payload, buf[idx:end])
	if frame.Mask {
		MaskBytes(frame.MaskKey, 0, frame.Payload)
	}
	return frame, end, nil
}

// decodeHeader parses the fixed and extended header of the frame at the front
// of buf and returns it without payload, along with the header size. A nil
// frame means the header is still incomplete.
func decodeHeader(buf []byte) (*Frame, int, error) {
	if len(buf) < 2 {
		return nil, 0, nil
	}
	frame := &Frame{
		Fin:    buf[0]&0x80 != 0,
		Rsv:    buf[0] & 0x70,
		OpCode: Opcode(buf[0] & 0x0f),
		Mask:   buf[1]&0x80 != 0,
	}
	if frame.Rsv != 0 {
		return nil, 0, ErrReservedBits
	}

	idx := 2
	payLen := uint64(buf[1] & 0x7f)
	switch payLen {
	case 126:
		if len(buf) < idx+2 {
			return nil, 0, nil
		}
		payLen = uint64(binary.BigEndian.Uint16(buf[idx:]))
		idx += 2
	case 127:
		if len(buf) < idx+8 {
			return nil, 0, nil
		}
		// only 32-bit lengths are supported
		if binary.BigEndian.Uint32(buf[idx:]) != 0 {
			return nil, 0, ErrPayloadTooLarge
		}
		payLen = uint64(binary.BigEndian.Uint32(buf[idx+4:]))
		idx += 8
	}
	frame.PayloadLen = payLen

	if frame.Mask {
		if len(buf) < idx+4 {
			return nil, 0, nil
		}
		copy(frame.MaskKey[:], buf[idx:idx+4])
		idx += 4
	}
	return frame, idx, nil
}

// Encode builds a single unmasked server frame with FIN set.
func Encode(op Opcode, payload []byte) []byte {
	length := len(payload)
	var head []byte
	switch {
	case length < 126:
		head = []byte{0x80 | byte(op), byte(length)}
	case length <= math.MaxUint16:
		head = make([]byte, 4)
		head[0] = 0x80 | byte(op)
		head[1] = 126
		binary.BigEndian.PutUint16(head[2:], uint16(length))
	default:
		head = make([]byte, 10)
		head[0] = 0x80 | byte(op)
		head[1] = 127
		binary.BigEndian.PutUint64(head[2:], uint64(length))
	}
	buf := make([]byte, len(head)+length)
	copy(buf, head)
	copy(buf[len(head):], payload)
	return buf
}

// MaskBytes XORs b in place with key starting at key offset pos and returns
// the offset to continue from. Masking twice with the same key is a no-op.
func MaskBytes(key [4]byte, pos int, b []byte) int {
	for i := range b {
		b[i] ^= key[pos&3]
		pos++
	}
	return pos & 3
}

func FormatCloseMessage(closeCode uint16, text string) []byte {
	if closeCode == CloseNoStatusReceived {
		// 1005 must never be sent on the wire, so send an empty body.
		return []byte{}
	}
	buf := make([]byte, 2+len(text))
	binary.BigEndian.PutUint16(buf, closeCode)
	copy(buf[2:], text)
	return buf
}

func DecodeCloseMessage(payload []byte) (code uint16, msg string) {
	code = CloseNoStatusReceived
	if len(payload) >= 2 {
		code = binary.BigEndian.Uint16(payload)
		msg = string(payload[2:])
	}
	return
}
