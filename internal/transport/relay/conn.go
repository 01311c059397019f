package relay

import (
	"fmt"
	"sync"
	"time"

	"github.com/flynn/noise"
	"github.com/gorilla/websocket"

	"github.com/getpaseo/paseod/internal/session"
)

// Conn is an E2EE data socket satisfying session.Conn: every frame written
// is sealed with the handshake's send CipherState and every frame read is
// opened with the recv CipherState, so the session layer above never knows
// it isn't a local socket.
type Conn struct {
	ws   *websocket.Conn
	send *noise.CipherState
	recv *noise.CipherState

	writeMu sync.Mutex
}

func newConn(ws *websocket.Conn, send, recv *noise.CipherState) *Conn {
	return &Conn{ws: ws, send: send, recv: recv}
}

// ReadMessage reads one binary frame and decrypts it.
func (c *Conn) ReadMessage() ([]byte, error) {
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		plain, err := c.recv.Decrypt(nil, nil, data)
		if err != nil {
			c.closeWithCode(websocket.CloseInternalServerErr, "decrypt failure")
			return nil, fmt.Errorf("decrypting relay frame: %w", err)
		}
		return plain, nil
	}
}

// WriteMessage encrypts data and sends it as one binary frame.
func (c *Conn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	cipher := c.send.Encrypt(nil, nil, data)
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.BinaryMessage, cipher)
}

// Close closes the underlying data socket.
func (c *Conn) Close() error {
	return c.ws.Close()
}

func (c *Conn) closeWithCode(code int, reason string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	c.ws.Close()
}

var _ session.Conn = (*Conn)(nil)
