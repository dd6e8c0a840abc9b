package websocket

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeAcceptKey(t *testing.T) {
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", ComputeAcceptKey(sampleKey))
}

func upgradeRequest() *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Upgrade", "websocket")
	r.Header.Set("Connection", "keep-alive, Upgrade")
	r.Header.Set("Sec-WebSocket-Version", "13")
	r.Header.Set("Sec-WebSocket-Key", sampleKey)
	return r
}

func TestNegotiate(t *testing.T) {
	up := &Upgrader{}
	accept, err := up.Negotiate(upgradeRequest())
	require.NoError(t, err)
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", accept)
}

func TestNegotiateRejects(t *testing.T) {
	tests := []struct {
		name   string
		modify func(r *http.Request)
		status int
	}{
		{"missing key", func(r *http.Request) { r.Header.Del("Sec-WebSocket-Key") }, http.StatusBadRequest},
		{"key not base64", func(r *http.Request) { r.Header.Set("Sec-WebSocket-Key", "not base64!") }, http.StatusBadRequest},
		{"key wrong length", func(r *http.Request) { r.Header.Set("Sec-WebSocket-Key", "AAAAAAAAAAAAAAAAAAAA") }, http.StatusBadRequest},
		{"no upgrade token", func(r *http.Request) { r.Header.Set("Upgrade", "h2c") }, http.StatusBadRequest},
		{"no connection token", func(r *http.Request) { r.Header.Set("Connection", "close") }, http.StatusBadRequest},
		{"bad version", func(r *http.Request) { r.Header.Set("Sec-WebSocket-Version", "8") }, http.StatusUpgradeRequired},
		{"not GET", func(r *http.Request) { r.Method = http.MethodPost }, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := upgradeRequest()
			tt.modify(r)
			_, err := (&Upgrader{}).Negotiate(r)
			var herr *HandshakeError
			require.True(t, errors.As(err, &herr))
			assert.Equal(t, tt.status, herr.Status)
		})
	}
}

func TestUpgradeRejectWritesStatus(t *testing.T) {
	r := upgradeRequest()
	r.Header.Del("Sec-WebSocket-Key")
	w := httptest.NewRecorder()

	c, err := (&Upgrader{}).Upgrade(w, r)
	assert.Nil(t, c)
	assert.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r = upgradeRequest()
	r.Header.Set("Sec-WebSocket-Version", "7")
	w = httptest.NewRecorder()
	_, err = (&Upgrader{}).Upgrade(w, r)
	assert.Error(t, err)
	assert.Equal(t, http.StatusUpgradeRequired, w.Code)
	assert.Equal(t, "13", w.Header().Get("Sec-WebSocket-Version"))
}

func TestUpgradeResponseBytes(t *testing.T) {
	srv := NewServer(Config{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	nc, err := net.Dial("tcp", ts.Listener.Addr().String())
	require.NoError(t, err)
	defer nc.Close()
	require.NoError(t, nc.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = nc.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n" +
		"Sec-WebSocket-Key: " + sampleKey + "\r\nSec-WebSocket-Version: 13\r\n\r\n"))
	require.NoError(t, err)

	br := bufio.NewReader(nc)
	var sb strings.Builder
	for !strings.HasSuffix(sb.String(), "\r\n\r\n") {
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		sb.WriteString(line)
	}
	assert.Equal(t, "HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n"+
		"Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n\r\n", sb.String())
}

func TestUpgradeRejectCreatesNoConn(t *testing.T) {
	srv := NewServer(Config{})
	connected := make(chan struct{}, 1)
	srv.OnConnect(func(*Conn) { connected <- struct{}{} })
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Sec-WebSocket-Version", "13")
	rsp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	rsp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, rsp.StatusCode)
	select {
	case <-connected:
		t.Fatal("connection created for a rejected handshake")
	default:
	}
}
