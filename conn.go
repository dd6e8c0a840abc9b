package websocket

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	readChunkSize = 4096
	// maxCloseReason keeps a close payload within the 125-byte control limit.
	maxCloseReason = maxControlPayload - 2
)

type transport interface {
	io.Reader
	io.Writer
	io.Closer
}

// Conn is one upgraded connection. All protocol state is guarded by mu;
// handlers are always invoked with mu released so they may call Send or Close.
type Conn struct {
	id             string
	log            *logrus.Entry
	rwc            transport
	maxMessageSize int

	mu      sync.Mutex
	state   State
	recvBuf []byte

	// fragmented message being assembled
	fragmenting bool
	fragOp      Opcode
	fragBuf     []byte

	messageHandle MessageHandler
	closeHandle   CloseHandler
}

// event is a notification produced under mu and delivered after it is released.
type event struct {
	msg   *Message
	close *CloseEvent
}

func newConn(rwc transport, maxMessageSize int) *Conn {
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	id := uuid.NewString()
	return &Conn{
		id:             id,
		log:            logrus.WithField("conn", id),
		rwc:            rwc,
		maxMessageSize: maxMessageSize,
		state:          StateOpen,
	}
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) SetMessageHandler(h MessageHandler) {
	c.mu.Lock()
	c.messageHandle = h
	c.mu.Unlock()
}

func (c *Conn) SetCloseHandler(h CloseHandler) {
	c.mu.Lock()
	c.closeHandle = h
	c.mu.Unlock()
}

// Serve reads from the transport until it fails or the connection closes,
// delivering notifications in wire order on the calling goroutine.
func (c *Conn) Serve() {
	buf := make([]byte, readChunkSize)
	for {
		n, err := c.rwc.Read(buf)
		if n > 0 {
			c.deliver(c.feed(buf[:n]))
		}
		if err != nil {
			c.deliver(c.transportDone(err))
			return
		}
	}
}

// feed appends chunk to the receive buffer and drains every complete frame.
func (c *Conn) feed(chunk []byte) []event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return nil
	}
	c.recvBuf = append(c.recvBuf, chunk...)

	var events []event
	for c.state == StateOpen {
		head, _, err := decodeHeader(c.recvBuf)
		if err == nil && head != nil && head.PayloadLen > uint64(c.maxMessageSize) {
			err = errMessageTooBig
		}
		if err != nil {
			events = append(events, c.failLocked(closeErrorFor(err)))
			break
		}
		frame, n, _ := Decode(c.recvBuf)
		if frame == nil {
			break
		}
		c.recvBuf = append(c.recvBuf[:0], c.recvBuf[n:]...)
		c.log.Debugf("[feed]: frame opcode = %v, fin = %v, len = %d", frame.OpCode, frame.Fin, frame.PayloadLen)
		if ev := c.dispatchLocked(frame); ev != nil {
			events = append(events, *ev)
		}
	}
	return events
}

func (c *Conn) dispatchLocked(frame *Frame) *event {
	if !frame.Mask {
		return c.failLockedEvent(errUnmaskedFrame)
	}
	if frame.OpCode.Valid() && frame.OpCode.IsControl() && (!frame.Fin || frame.PayloadLen > maxControlPayload) {
		return c.failLockedEvent(errInvalidControlFrame)
	}

	switch frame.OpCode {
	case OpText, OpBinary:
		if c.fragmenting {
			return c.failLockedEvent(errInterleavedDataFrame)
		}
		if !frame.Fin {
			c.fragmenting = true
			c.fragOp = frame.OpCode
			c.fragBuf = append(c.fragBuf[:0], frame.Payload...)
			return nil
		}
		return c.messageLocked(frame.OpCode, frame.Payload)
	case OpContinuation:
		if !c.fragmenting {
			return c.failLockedEvent(errUnexpectedContinuation)
		}
		if len(c.fragBuf)+len(frame.Payload) > c.maxMessageSize {
			return c.failLockedEvent(errMessageTooBig)
		}
		c.fragBuf = append(c.fragBuf, frame.Payload...)
		if !frame.Fin {
			return nil
		}
		data := c.fragBuf
		c.fragmenting, c.fragBuf = false, nil
		return c.messageLocked(c.fragOp, data)
	case OpClose:
		if len(frame.Payload) == 1 {
			return c.failLockedEvent(newCloseError(CloseProtocolError, "invalid close payload"))
		}
		code, reason := DecodeCloseMessage(frame.Payload)
		c.log.Infof("[dispatch]: receive close frame code = %v, msg = %v", code, reason)
		c.state = StateClosing
		c.writeLocked(Encode(OpClose, FormatCloseMessage(code, "")))
		return &event{close: c.terminateLocked(CloseEvent{Code: code, Reason: reason})}
	case OpPing:
		c.writeLocked(Encode(OpPong, frame.Payload))
		return nil
	case OpPong:
		return nil
	default:
		c.log.Errorf("[dispatch]: unsupported opcode %d", frame.OpCode)
		return c.failLockedEvent(errUnsupportedOpcode)
	}
}

func (c *Conn) messageLocked(op Opcode, data []byte) *event {
	if op == OpText && !utf8.Valid(data) {
		return c.failLockedEvent(errInvalidUtf8Payload)
	}
	return &event{msg: &Message{Type: op, Data: data}}
}

func (c *Conn) failLockedEvent(ce *CloseError) *event {
	ev := c.failLocked(ce)
	return &ev
}

// failLocked sends a close frame for a protocol violation and tears down.
func (c *Conn) failLocked(ce *CloseError) event {
	c.log.Errorf("[fail]: %v", ce)
	c.state = StateClosing
	c.writeLocked(Encode(OpClose, FormatCloseMessage(ce.Code, ce.Text)))
	return event{close: c.terminateLocked(CloseEvent{Code: ce.Code, Reason: ce.Text})}
}

// terminateLocked closes the transport and moves to StateClosed. It is the
// only place that produces a CloseEvent, and only runs once per Conn.
func (c *Conn) terminateLocked(ev CloseEvent) *CloseEvent {
	c.state = StateClosing
	if err := c.rwc.Close(); err != nil {
		c.log.Debugf("[terminate]: close transport: %v", err)
	}
	c.state = StateClosed
	c.recvBuf, c.fragBuf = nil, nil
	c.log.Infof("[terminate]: closed code = %d, reason = %s", ev.Code, ev.Reason)
	return &ev
}

func (c *Conn) transportDone(err error) []event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return nil
	}
	reason := "abnormal"
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		reason = "timeout"
	}
	if err != io.EOF {
		c.log.Errorf("[read]: %v", err)
	}
	return []event{{close: c.terminateLocked(CloseEvent{Code: CloseAbnormalClosure, Reason: reason})}}
}

// deliver hands events to the handlers. Messages are dropped once the
// connection was closed by anything other than this batch of events.
func (c *Conn) deliver(events []event) {
	if len(events) == 0 {
		return
	}
	closesHere := events[len(events)-1].close != nil
	for _, ev := range events {
		c.mu.Lock()
		state, onMessage, onClose := c.state, c.messageHandle, c.closeHandle
		c.mu.Unlock()

		switch {
		case ev.msg != nil:
			if state == StateClosed && !closesHere {
				return
			}
			if onMessage != nil {
				onMessage(c, *ev.msg)
			}
		case ev.close != nil:
			if onClose != nil {
				onClose(c, *ev.close)
			}
		}
	}
}

func (c *Conn) writeLocked(b []byte) error {
	if _, err := c.rwc.Write(b); err != nil {
		c.log.Errorf("[write]: %v", err)
		return err
	}
	return nil
}

// Send writes a string as a text message or a []byte as a binary message.
// Any other payload type fails with ErrInvalidArgument and nothing is written.
func (c *Conn) Send(payload interface{}) error {
	switch p := payload.(type) {
	case string:
		return c.SendText(p)
	case []byte:
		return c.SendBinary(p)
	default:
		return fmt.Errorf("%w: got %T", ErrInvalidArgument, payload)
	}
}

func (c *Conn) SendText(s string) error {
	return c.WriteMessage(OpText, []byte(s))
}

func (c *Conn) SendBinary(b []byte) error {
	return c.WriteMessage(OpBinary, b)
}

// WriteMessage writes payload as a single frame of type op.
func (c *Conn) WriteMessage(op Opcode, payload []byte) error {
	if op != OpText && op != OpBinary {
		return fmt.Errorf("%w: opcode %v is not a data opcode", ErrInvalidArgument, op)
	}
	if uint64(len(payload)) > maxPayloadLen {
		return ErrPayloadTooLarge
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return ErrClosed
	}
	return c.writeLocked(Encode(op, payload))
}

// Close ends the connection. A zero code tears the transport down without
// writing anything; any other code first writes a close frame carrying code
// and reason. The close handler is invoked before Close returns.
func (c *Conn) Close(code uint16, reason string) error {
	if len(reason) > maxCloseReason {
		return fmt.Errorf("%w: close reason longer than %d bytes", ErrInvalidArgument, maxCloseReason)
	}
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return ErrClosed
	}
	c.state = StateClosing
	var err error
	ev := CloseEvent{Code: CloseAbnormalClosure, Reason: "abnormal"}
	if code != 0 {
		err = c.writeLocked(Encode(OpClose, FormatCloseMessage(code, reason)))
		ev = CloseEvent{Code: code, Reason: reason}
	}
	closeEv := c.terminateLocked(ev)
	c.mu.Unlock()

	c.deliver([]event{{close: closeEv}})
	return err
}
