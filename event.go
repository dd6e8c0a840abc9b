package websocket

// EventChannel is what a consumer of a connection sees: two handler slots
// for inbound notifications and the outbound send and close calls.
type EventChannel interface {
	SetMessageHandler(h MessageHandler)
	SetCloseHandler(h CloseHandler)
	Send(payload interface{}) error
	Close(code uint16, reason string) error
}

var _ EventChannel = (*Conn)(nil)

// Message is one complete data message received from the peer.
type Message struct {
	Type Opcode
	Data []byte
}

// Payload returns the message as a string for text messages and as a byte
// slice for binary ones.
func (m Message) Payload() interface{} {
	if m.Type == OpText {
		return string(m.Data)
	}
	return m.Data
}

type CloseEvent struct {
	Code   uint16
	Reason string
}

type (
	MessageHandler func(c *Conn, msg Message)
	CloseHandler   func(c *Conn, ev CloseEvent)
)
