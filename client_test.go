package websocket

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleKey = "dGhlIHNhbXBsZSBub25jZQ=="

var testMaskKey = [4]byte{0x37, 0xfa, 0x21, 0x3d}

// clientFrame builds a frame the way a client sends it: masked with
// testMaskKey, any of the three length tiers.
func clientFrame(op Opcode, fin bool, payload []byte) []byte {
	return rawFrame(op, fin, true, payload)
}

func rawFrame(op Opcode, fin, mask bool, payload []byte) []byte {
	b0 := byte(op)
	if fin {
		b0 |= 0x80
	}
	var b1 byte
	if mask {
		b1 = 0x80
	}
	buf := []byte{b0, b1}
	switch l := len(payload); {
	case l < 126:
		buf[1] |= byte(l)
	case l <= 0xffff:
		buf[1] |= 126
		buf = binary.BigEndian.AppendUint16(buf, uint16(l))
	default:
		buf[1] |= 127
		buf = binary.BigEndian.AppendUint64(buf, uint64(l))
	}
	data := append([]byte(nil), payload...)
	if mask {
		buf = append(buf, testMaskKey[:]...)
		MaskBytes(testMaskKey, 0, data)
	}
	return append(buf, data...)
}

// dialRaw opens a TCP connection to addr and performs the opening
// handshake by hand, leaving frame-level control to the test.
func dialRaw(t *testing.T, addr string, pipelined []byte) (net.Conn, *bufio.Reader, *http.Response) {
	t.Helper()
	nc, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { nc.Close() })
	require.NoError(t, nc.SetDeadline(time.Now().Add(5*time.Second)))

	req := fmt.Sprintf("GET / HTTP/1.1\r\nHost: %s\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n"+
		"Sec-WebSocket-Key: %s\r\nSec-WebSocket-Version: 13\r\n\r\n", addr, sampleKey)
	_, err = nc.Write(append([]byte(req), pipelined...))
	require.NoError(t, err)

	br := bufio.NewReader(nc)
	rsp, err := http.ReadResponse(br, nil)
	require.NoError(t, err)
	return nc, br, rsp
}

// readFrame reads exactly one server frame from br.
func readFrame(t *testing.T, br *bufio.Reader) *Frame {
	t.Helper()
	var buf []byte
	one := make([]byte, 1)
	for {
		frame, _, err := Decode(buf)
		require.NoError(t, err)
		if frame != nil {
			return frame
		}
		// one byte at a time so the next frame stays in br
		n, err := br.Read(one)
		if err == io.EOF && n == 0 {
			t.Fatalf("connection closed before a full frame, have %d bytes", len(buf))
		}
		require.NoError(t, err)
		buf = append(buf, one[:n]...)
	}
}

// recorder collects notifications from a Conn.
type recorder struct {
	mu       sync.Mutex
	messages []Message
	closes   []CloseEvent
	closed   chan CloseEvent
}

func newRecorder() *recorder {
	return &recorder{closed: make(chan CloseEvent, 1)}
}

func (r *recorder) attach(c *Conn) {
	c.SetMessageHandler(func(_ *Conn, msg Message) {
		r.mu.Lock()
		r.messages = append(r.messages, msg)
		r.mu.Unlock()
	})
	c.SetCloseHandler(func(_ *Conn, ev CloseEvent) {
		r.mu.Lock()
		r.closes = append(r.closes, ev)
		r.mu.Unlock()
		select {
		case r.closed <- ev:
		default:
		}
	})
}

func (r *recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

func (r *recorder) Closes() []CloseEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CloseEvent(nil), r.closes...)
}
