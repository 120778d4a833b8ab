package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"github.com/zcli/zkernel/backend/funcs"
	"github.com/zcli/zkernel/config"
	"github.com/zcli/zkernel/kernel"
	"github.com/zcli/zkernel/session"
)

func testServer(t *testing.T) (*httptest.Server, *session.Manager) {
	t.Helper()

	registry := funcs.NewRegistry(zap.NewNop())
	require.NoError(t, registry.Register("echo", func(_ context.Context, args map[string]any) (any, error) {
		return args, nil
	}))

	cfg := config.NewInternalConfig()
	cfg.SetUserKey("alice", "test-key")

	sessions := session.NewManager(zap.NewNop())
	dispatcher := kernel.New(kernel.Backends{Functions: registry}, zap.NewNop())

	srv, err := NewServer(cfg, dispatcher, sessions, zap.NewNop())
	require.NoError(t, err)

	mux := http.NewServeMux()
	srv.RegisterHandlers(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, sessions
}

func dialBridge(t *testing.T, ts *httptest.Server, apiKey string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/bridge"
	cfg, err := websocket.NewConfig(wsURL, "http://localhost/")
	require.NoError(t, err)
	if apiKey != "" {
		cfg.Header = http.Header{"Authorization": {"Bearer " + apiKey}}
	}
	conn, err := websocket.DialConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func call(t *testing.T, conn *websocket.Conn, req Request) Response {
	t.Helper()
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	require.NoError(t, websocket.Message.Send(conn, string(payload)))

	var frame []byte
	require.NoError(t, websocket.Message.Receive(conn, &frame))
	var resp Response
	require.NoError(t, json.Unmarshal(frame, &resp))
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Get(ts.URL + "/up")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBridgeRejectsUnauthenticated(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Get(ts.URL + "/bridge")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/bridge?key=wrong")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBridgeRejectsNonGET(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Post(ts.URL+"/bridge", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestBridgeDispatchRoundTrip(t *testing.T) {
	ts, _ := testServer(t)
	conn := dialBridge(t, ts, "test-key")

	resp := call(t, conn, Request{
		ID:      "r1",
		Command: json.RawMessage(`"&echo"`),
		Args:    map[string]any{"greeting": "hello"},
		Path:    "home",
	})
	assert.Equal(t, "r1", resp.ID)
	assert.Equal(t, kernel.StatusOK, resp.Status)
	assert.Equal(t, "function", resp.Route)
	assert.Equal(t, "bridge", resp.Mode)
	assert.Equal(t, map[string]any{"greeting": "hello"}, resp.Payload)
}

func TestBridgeModifierMetadataInEnvelope(t *testing.T) {
	ts, _ := testServer(t)
	conn := dialBridge(t, ts, "test-key")

	resp := call(t, conn, Request{
		ID:      "r2",
		Command: json.RawMessage(`"^&echo"`),
	})
	assert.Equal(t, kernel.StatusOK, resp.Status)
	assert.True(t, resp.Bounce)
	assert.Equal(t, []string{"^"}, resp.ModifiersApplied)
}

func TestBridgeErrorsTravelInEnvelope(t *testing.T) {
	ts, _ := testServer(t)
	conn := dialBridge(t, ts, "test-key")

	resp := call(t, conn, Request{
		ID:      "r3",
		Command: json.RawMessage(`"does_not_exist"`),
	})
	assert.Equal(t, "r3", resp.ID)
	assert.Equal(t, kernel.StatusError, resp.Status)
	assert.Contains(t, resp.Error, "unroutable")
	assert.Nil(t, resp.Payload)
}

func TestBridgeMalformedRequest(t *testing.T) {
	ts, _ := testServer(t)
	conn := dialBridge(t, ts, "test-key")

	require.NoError(t, websocket.Message.Send(conn, "{not json"))
	var frame []byte
	require.NoError(t, websocket.Message.Receive(conn, &frame))

	var resp Response
	require.NoError(t, json.Unmarshal(frame, &resp))
	assert.Equal(t, kernel.StatusError, resp.Status)
	assert.Contains(t, resp.Error, "malformed request")
}

func TestBridgeSessionPerConnection(t *testing.T) {
	ts, sessions := testServer(t)

	conn := dialBridge(t, ts, "test-key")
	// Force the handshake to complete before counting.
	call(t, conn, Request{ID: "r1", Command: json.RawMessage(`"&echo"`)})
	assert.Equal(t, 1, sessions.Count())

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return sessions.Count() == 0 },
		3*time.Second, 50*time.Millisecond)
}

func TestDecodeCommand(t *testing.T) {
	cmd, err := decodeCommand(json.RawMessage(`"&echo"`))
	require.NoError(t, err)
	assert.Equal(t, "&echo", cmd)

	cmd, err = decodeCommand(json.RawMessage(`{"op": "select", "table": "users"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"op": "select", "table": "users"}, cmd)

	_, err = decodeCommand(json.RawMessage(``))
	assert.Error(t, err)
	_, err = decodeCommand(json.RawMessage(`42`))
	assert.Error(t, err)
	_, err = decodeCommand(json.RawMessage(`[1]`))
	assert.Error(t, err)
}

func TestSizeValidator(t *testing.T) {
	v := &SizeValidator{Max: 8}
	assert.NoError(t, v.Validate([]byte("short"), nil))
	assert.Error(t, v.Validate([]byte("way too long frame"), nil))

	unlimited := &SizeValidator{}
	assert.NoError(t, unlimited.Validate(make([]byte, 1<<20), nil))
}

func TestThrottleValidator(t *testing.T) {
	sessions := session.NewManager(zap.NewNop())
	sess := sessions.Create("u1", nil)

	v := &Throttle{RPS: 1}
	assert.NoError(t, v.Validate(nil, sess))
	err := v.Validate(nil, sess)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "per-second")

	// Limiters are per session: a fresh session has its own budget.
	other := sessions.Create("u2", nil)
	assert.NoError(t, v.Validate(nil, other))
}

func TestThrottleValidatorRPM(t *testing.T) {
	sessions := session.NewManager(zap.NewNop())
	sess := sessions.Create("u1", nil)

	v := &Throttle{RPM: 1}
	assert.NoError(t, v.Validate(nil, sess))
	err := v.Validate(nil, sess)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "per-minute")
}
