package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zylisp/calc/history"
	"github.com/zylisp/calc/operations"
	"github.com/zylisp/calc/protocol"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer("127.0.0.1:0", operations.NewHandler(nil))
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return s, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/repl"
}

func TestWebSocketEval(t *testing.T) {
	_, ts := newTestServer(t)

	for _, format := range []string{"json", "msgpack"} {
		t.Run(format, func(t *testing.T) {
			client := NewClient(format)
			require.NoError(t, client.Connect(context.Background(), wsURL(ts)))
			defer client.Close()

			resp, err := client.Eval(context.Background(), "10/4")
			require.NoError(t, err)
			assert.Equal(t, float64(2.5), resp.Value)
			assert.Equal(t, "2.5", resp.Result)
			assert.True(t, resp.HasStatus(protocol.StatusDone))

			resp, err = client.Eval(context.Background(), "2(3)")
			require.NoError(t, err)
			assert.True(t, resp.HasStatus(protocol.StatusEvalError))
			assert.Equal(t, "parse error", resp.ErrorKind)
		})
	}
}

func TestWebSocketSessionAndHistory(t *testing.T) {
	s, ts := newTestServer(t)

	client := NewClient("json")
	require.NoError(t, client.Connect(context.Background(), wsURL(ts)))
	defer client.Close()
	client.SetSession("web")

	ctx := context.Background()
	_, err := client.Send(ctx, &protocol.Message{Op: protocol.OpInsert, Code: "1+1"})
	require.NoError(t, err)
	resp, err := client.Send(ctx, &protocol.Message{Op: protocol.OpCommit})
	require.NoError(t, err)
	assert.Equal(t, "2", resp.Text)
	assert.Equal(t, "web", resp.Session)
	assert.Contains(t, s.Handler().Sessions(), "web")

	httpResp, err := http.Get(ts.URL + "/history")
	require.NoError(t, err)
	defer httpResp.Body.Close()
	assert.Equal(t, http.StatusOK, httpResp.StatusCode)

	var entries []history.Entry
	require.NoError(t, json.NewDecoder(httpResp.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "1+1", entries[0].Expression)
	assert.Equal(t, "2", entries[0].Result)
}

func TestWebSocketMalformedFrame(t *testing.T) {
	_, ts := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	frameType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, frameType)

	var resp protocol.Message
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.NotEmpty(t, resp.ProtocolError)
	assert.True(t, resp.HasStatus(protocol.StatusError))
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestServerStartStop(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case <-s.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}

	client := NewClient("")
	require.NoError(t, client.Connect(context.Background(), s.Addr()))
	resp, err := client.Eval(context.Background(), "3*3")
	require.NoError(t, err)
	assert.Equal(t, float64(9), resp.Value)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, s.Stop(stopCtx))
	cancel()
	<-done

	_, err = client.Eval(context.Background(), "1")
	assert.Error(t, err)
	client.Close()
}

func TestURL(t *testing.T) {
	tests := map[string]string{
		"localhost:8080":            "ws://localhost:8080/repl",
		"ws://localhost:8080":       "ws://localhost:8080/repl",
		"ws://localhost:8080/other": "ws://localhost:8080/other",
		"wss://example.com":         "wss://example.com/repl",
	}
	for in, want := range tests {
		assert.Equal(t, want, URL(in), in)
	}
}

func TestClientUnsupportedCodec(t *testing.T) {
	client := NewClient("xml")
	err := client.Connect(context.Background(), "localhost:1")
	assert.ErrorIs(t, err, protocol.ErrUnsupportedCodec)
}
