// Package hub fans messages out to websocket clients. One goroutine owns the
// client set; slow clients are dropped instead of blocking the broadcaster.
package hub

import "github.com/gofiber/websocket/v2"

// Message is one websocket frame queued for every client
type Message struct {
	frame int // websocket.TextMessage or websocket.BinaryMessage
	Data  []byte
}

// NewJSONMessage wraps pre-encoded JSON as a text frame
func NewJSONMessage(data []byte) Message {
	return Message{frame: websocket.TextMessage, Data: data}
}

// NewBinaryMessage wraps raw bytes, e.g. a JPEG camera frame
func NewBinaryMessage(data []byte) Message {
	return Message{frame: websocket.BinaryMessage, Data: data}
}

// Binary reports whether m is sent as a binary frame
func (m Message) Binary() bool {
	return m.frame == websocket.BinaryMessage
}
