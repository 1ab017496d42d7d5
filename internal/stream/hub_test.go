package stream

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litescript/starfield/internal/cluster"
)

type fakeController struct {
	terminated chan struct{}
	acked      chan struct{}
}

func newFakeController() *fakeController {
	return &fakeController{terminated: make(chan struct{}, 1), acked: make(chan struct{}, 1)}
}

func (f *fakeController) Terminate()   { f.terminated <- struct{}{} }
func (f *fakeController) Acknowledge() { f.acked <- struct{}{} }

func dial(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestEncode(t *testing.T) {
	row := cluster.Row{Method: cluster.MethodFractal, Unit: 3}
	row.Count = 2000

	tests := []struct {
		name  string
		event cluster.Event
		want  Message
	}{
		{"progress", cluster.ProgressEvent{Placed: 5, Total: 9}, Message{Type: TypeProgress, Placed: 5, Total: 9}},
		{"unit progress", cluster.UnitProgressEvent{Unit: 1, Placed: 2, Total: 3}, Message{Type: TypeUnitProgress, Unit: 1, Placed: 2, Total: 3}},
		{"unit complete", cluster.UnitCompleteEvent{Row: row}, Message{Type: TypeUnitComplete, Unit: 3, Placed: 2000, Row: &row}},
		{"unit failed", cluster.UnitFailedEvent{Unit: 1, Batch: 4, Err: errors.New("boom")}, Message{Type: TypeUnitFailed, Unit: 1, Batch: 4, Error: "boom"}},
		{"finished", cluster.FinishedEvent{Placed: 3, Total: 9, Terminated: true}, Message{Type: TypeFinished, Placed: 3, Total: 9, Terminated: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Encode(tt.event)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHub_Publish(t *testing.T) {
	h := NewHub(WithProgressInterval(0))
	conn := dial(t, h)

	row := cluster.Row{Method: cluster.MethodHalley, Unit: 0}
	row.Count = 12
	h.Publish(cluster.UnitCompleteEvent{Row: row})

	msg := readMessage(t, conn)
	assert.Equal(t, TypeUnitComplete, msg.Type)
	require.NotNil(t, msg.Row)
	assert.Equal(t, 12, msg.Row.Count)
	assert.Equal(t, cluster.MethodHalley, msg.Row.Method)
}

func TestHub_ThrottlesProgress(t *testing.T) {
	h := NewHub(WithProgressInterval(time.Hour))
	conn := dial(t, h)

	h.Publish(cluster.ProgressEvent{Placed: 1, Total: 10})
	h.Publish(cluster.ProgressEvent{Placed: 2, Total: 10})
	h.Publish(cluster.FinishedEvent{Placed: 10, Total: 10})

	first := readMessage(t, conn)
	assert.Equal(t, TypeProgress, first.Type)
	assert.Equal(t, 1, first.Placed)

	second := readMessage(t, conn)
	assert.Equal(t, TypeFinished, second.Type, "throttled progress must not delay the final frame")
}

func TestHub_Commands(t *testing.T) {
	ctl := newFakeController()
	h := NewHub(WithController(ctl))
	conn := dial(t, h)

	require.NoError(t, conn.WriteJSON(Command{Command: "acknowledge"}))
	select {
	case <-ctl.acked:
	case <-time.After(2 * time.Second):
		t.Fatal("acknowledge not forwarded")
	}

	require.NoError(t, conn.WriteJSON(Command{Command: "terminate"}))
	select {
	case <-ctl.terminated:
	case <-time.After(2 * time.Second):
		t.Fatal("terminate not forwarded")
	}
}

func TestHub_Close(t *testing.T) {
	h := NewHub()
	conn := dial(t, h)

	h.Close()
	assert.Equal(t, 0, h.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestHub_DropsStalledClient(t *testing.T) {
	h := NewHub(WithWriteTimeout(50 * time.Millisecond))
	dial(t, h) // never reads

	big := Message{Type: TypeUnitFailed, Error: strings.Repeat("x", 1<<20)}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 64 && h.Clients() > 0; i++ {
			h.Broadcast(big)
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Broadcast blocked on a client that stopped reading")
	}
	assert.Equal(t, 0, h.Clients())
}
