package wsconn

import (
	"time"

	"github.com/gorilla/websocket"
)

const maxFrameBytes = 10 * 1024 * 1024

// Conn adapts a *websocket.Conn to session.Conn: applies read deadline/pong
// handling and write deadlines, and closes with code 1003 on a non-text
// frame.
type Conn struct {
	raw *websocket.Conn
}

func newConn(raw *websocket.Conn) *Conn {
	raw.SetReadLimit(maxFrameBytes)
	raw.SetReadDeadline(time.Now().Add(pongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &Conn{raw: raw}
}

// ReadMessage returns the next text frame's payload. Binary frames are
// schema-invalid for this protocol and close the connection with code
// 1003.
func (c *Conn) ReadMessage() ([]byte, error) {
	for {
		msgType, data, err := c.raw.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msgType != websocket.TextMessage {
			c.raw.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "text frames only"),
				time.Now().Add(writeWait))
			c.raw.Close()
			return nil, &websocket.CloseError{Code: websocket.CloseUnsupportedData, Text: "text frames only"}
		}
		return data, nil
	}
}

// WriteMessage sends data as a single text frame.
func (c *Conn) WriteMessage(data []byte) error {
	c.raw.SetWriteDeadline(time.Now().Add(writeWait))
	return c.raw.WriteMessage(websocket.TextMessage, data)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// PingLoop sends periodic pings until stop is closed or a ping write
// fails. Kept separate from WriteMessage so the session's single writer
// goroutine still owns text frame writes.
func (c *Conn) PingLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.raw.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.raw.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}
