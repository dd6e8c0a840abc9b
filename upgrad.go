package websocket

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// Upgrader promotes HTTP requests to websocket connections.
type Upgrader struct {
	// MaxMessageSize bounds a reassembled message; zero means DefaultMaxMessageSize.
	MaxMessageSize int
}

// ComputeAcceptKey returns the Sec-WebSocket-Accept value for a client key.
func ComputeAcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Negotiate validates the upgrade request and returns the accept key to send
// back. Failures are *HandshakeError.
func (up *Upgrader) Negotiate(r *http.Request) (string, error) {
	if r.Method != http.MethodGet {
		return "", &HandshakeError{http.StatusMethodNotAllowed, "method must be GET"}
	}
	if !headerContainsToken(r.Header, "Upgrade", "websocket") {
		return "", &HandshakeError{http.StatusBadRequest, "'websocket' token not found in 'Upgrade' header"}
	}
	if !headerContainsToken(r.Header, "Connection", "upgrade") {
		return "", &HandshakeError{http.StatusBadRequest, "'upgrade' token not found in 'Connection' header"}
	}
	if r.Header.Get("Sec-WebSocket-Version") != websocketVersion {
		return "", &HandshakeError{http.StatusUpgradeRequired, "unsupported version"}
	}
	key := r.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		return "", &HandshakeError{http.StatusBadRequest, "missing Sec-WebSocket-Key"}
	}
	if nonce, err := base64.StdEncoding.DecodeString(key); err != nil || len(nonce) != 16 {
		return "", &HandshakeError{http.StatusBadRequest, "Sec-WebSocket-Key is not a base64 16-byte nonce"}
	}
	return ComputeAcceptKey(key), nil
}

func (up *Upgrader) writeShakeSuccessResponse(buf *bufio.ReadWriter, accept string) error {
	_, err := fmt.Fprintf(buf, "HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nConnection: Upgrade\r\nSec-WebSocket-Accept: %s\r\n\r\n", accept)
	if err != nil {
		return err
	}
	return buf.Flush()
}

func (up *Upgrader) writeShakeBadResponse(w http.ResponseWriter, herr *HandshakeError) {
	if herr.Status == http.StatusUpgradeRequired {
		w.Header().Set("Sec-WebSocket-Version", websocketVersion)
	}
	http.Error(w, http.StatusText(herr.Status), herr.Status)
	logrus.Errorf("[Upgrade]: writeShakeBadResponse status = %d, reason = %s", herr.Status, herr.Reason)
}

// Upgrade negotiates the handshake, writes the 101 response and returns an
// open connection. On failure an error status is written and no connection
// is created.
func (up *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	accept, err := up.Negotiate(r)
	if err != nil {
		up.writeShakeBadResponse(w, err.(*HandshakeError))
		return nil, err
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		herr := &HandshakeError{http.StatusInternalServerError, "response does not implement http.Hijacker"}
		up.writeShakeBadResponse(w, herr)
		return nil, herr
	}
	nc, buf, err := hj.Hijack()
	if err != nil {
		logrus.Errorf("[Upgrade]: hijack: %v", err)
		return nil, fmt.Errorf("websocket: hijack: %w", err)
	}

	if err = up.writeShakeSuccessResponse(buf, accept); err != nil {
		logrus.Errorf("[Upgrade]: writeShakeSuccessResponse: %v", err)
		nc.Close()
		return nil, fmt.Errorf("websocket: write handshake: %w", err)
	}

	// Read through buf so frames the client pipelined after the request
	// headers are not lost.
	c := newConn(hijackedTransport{r: buf.Reader, nc: nc}, up.MaxMessageSize)
	c.log.Infof("[Upgrade]: url = %v, remote = %v", r.URL, nc.RemoteAddr())
	return c, nil
}

// hijackedTransport reads through the hijacked bufio.Reader and writes
// straight to the socket.
type hijackedTransport struct {
	r  *bufio.Reader
	nc net.Conn
}

func (t hijackedTransport) Read(p []byte) (int, error)  { return t.r.Read(p) }
func (t hijackedTransport) Write(p []byte) (int, error) { return t.nc.Write(p) }
func (t hijackedTransport) Close() error                { return t.nc.Close() }

// headerContainsToken reports whether a comma separated header value
// contains token, case-insensitively.
func headerContainsToken(h http.Header, name, token string) bool {
	for _, v := range h.Values(name) {
		for _, t := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(t), token) {
				return true
			}
		}
	}
	return false
}
