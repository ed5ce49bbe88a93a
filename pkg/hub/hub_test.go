package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn blocks reads until closed and records writes
type fakeConn struct {
	closeOnce sync.Once
	closed    chan struct{}
	writes    chan written
}

type written struct {
	kind int
	data []byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{}), writes: make(chan written, 16)}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, errors.New("closed")
}

func (c *fakeConn) WriteMessage(kind int, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("closed")
	case c.writes <- written{kind, data}:
		return nil
	}
}

func (c *fakeConn) SetReadLimit(int64)                {}
func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) next(t *testing.T) written {
	t.Helper()
	select {
	case w := <-c.writes:
		return w
	case <-time.After(time.Second):
		t.Fatal("no message written")
		return written{}
	}
}

func TestHub_Broadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := New("test")
	go h.Run(ctx)

	conn := newFakeConn()
	client, err := NewClient(ctx, h, conn)
	require.NoError(t, err)
	go client.Run(ctx)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)
	assert.True(t, h.IsRunning())

	require.NoError(t, h.BroadcastJSON(map[string]string{"state": "faceFound"}))
	w := conn.next(t)
	assert.Equal(t, websocket.TextMessage, w.kind)
	assert.JSONEq(t, `{"state":"faceFound"}`, string(w.data))

	h.BroadcastBinary([]byte{0xff, 0xd8})
	w = conn.next(t)
	assert.Equal(t, websocket.BinaryMessage, w.kind)
	assert.Equal(t, []byte{0xff, 0xd8}, w.data)

	conn.Close()
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, time.Millisecond)
}

func TestHub_StopClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("test")
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	conn := newFakeConn()
	client, err := NewClient(ctx, h, conn)
	require.NoError(t, err)
	go client.Run(ctx)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	cancel()
	<-done
	assert.False(t, h.IsRunning())
	assert.Equal(t, 0, h.ClientCount())

	// The write pump sends a close frame when its queue is closed
	w := conn.next(t)
	assert.Equal(t, websocket.CloseMessage, w.kind)
}

func TestNewClient_HubNotRunning(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := NewClient(ctx, New("idle"), newFakeConn())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMessage_Binary(t *testing.T) {
	assert.False(t, NewJSONMessage([]byte(`{}`)).Binary())
	assert.True(t, NewBinaryMessage([]byte{0xff}).Binary())
}

func TestHub_BroadcastQueueFull(t *testing.T) {
	h := New("idle")
	for i := 0; i < 300; i++ {
		h.Broadcast(NewJSONMessage([]byte(`{}`)))
	}
	assert.Equal(t, uint64(300-256), h.Dropped())
}
