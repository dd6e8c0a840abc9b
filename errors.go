package websocket

import (
	"errors"
	"fmt"
)

// HandshakeError is returned when an HTTP request cannot be upgraded.
// Status is the HTTP status written back to the client.
type HandshakeError struct {
	Status int
	Reason string
}

func (e *HandshakeError) Error() string {
	return "websocket: handshake failed: " + e.Reason
}

// CloseError ties a protocol violation to the close code sent to the peer.
type CloseError struct {
	Code uint16
	Text string
}

func newCloseError(code uint16, text string) *CloseError {
	return &CloseError{Code: code, Text: text}
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("websocket: close %d: %s", e.Code, e.Text)
}

var (
	errUnmaskedFrame = newCloseError(
		CloseProtocolError,
		"client frames must be masked",
	)
	errInvalidControlFrame = newCloseError(
		CloseProtocolError,
		"control frames must not be fragmented and carry 125 bytes or less",
	)
	errNonZeroRSVFrame = newCloseError(
		CloseProtocolError,
		"reserved bits must be 0 when no extension is negotiated",
	)
	errUnsupportedOpcode = newCloseError(
		CloseUnsupportedData,
		"unsupported opcode",
	)
	errUnexpectedContinuation = newCloseError(
		CloseProtocolError,
		"continuation frame without a message to continue",
	)
	errInterleavedDataFrame = newCloseError(
		CloseProtocolError,
		"new data frame while a fragmented message is pending",
	)
	errInvalidUtf8Payload = newCloseError(
		CloseInvalidFramePayloadData,
		"invalid UTF-8 text payload",
	)
	errMessageTooBig = newCloseError(
		CloseMessageTooBig,
		"message exceeds size limit",
	)
	errFrameTooBig = newCloseError(
		CloseMessageTooBig,
		"frame length exceeds 32 bits",
	)
)

// closeErrorFor maps a decode error onto the close sent to the peer.
func closeErrorFor(err error) *CloseError {
	var ce *CloseError
	switch {
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, ErrPayloadTooLarge):
		return errFrameTooBig
	case errors.Is(err, ErrReservedBits):
		return errNonZeroRSVFrame
	default:
		return newCloseError(CloseProtocolError, err.Error())
	}
}
