// Package relay implements the relay transport half of C1: an outbound
// control-socket connection to an external rendezvous service, and a
// second E2EE data socket per connected client.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/getpaseo/paseod/internal/config"
	"github.com/getpaseo/paseod/internal/logging"
	"github.com/getpaseo/paseod/internal/pairing"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// controlMessage is the JSON shape exchanged over the control socket.
type controlMessage struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId,omitempty"`
}

// ConnHandler is invoked once per established, handshaken data socket.
type ConnHandler func(ctx context.Context, clientID string, conn *Conn, remoteAddr string)

// Controller owns the outbound relay connection lifecycle.
type Controller struct {
	cfg      config.RelayConfig
	serverID string
	keyPair  pairing.KeyPair
	log      *logging.Logger
	onConn   ConnHandler

	dialer *websocket.Dialer
}

// New constructs a relay Controller. onConn is called for every client data
// socket that completes its E2EE handshake.
func New(cfg config.RelayConfig, serverID string, keyPair pairing.KeyPair, log *logging.Logger, onConn ConnHandler) *Controller {
	return &Controller{
		cfg:      cfg,
		serverID: serverID,
		keyPair:  keyPair,
		log:      log.With(zap.String("component", "relay")),
		onConn:   onConn,
		dialer:   websocket.DefaultDialer,
	}
}

func (c *Controller) maxInterval() time.Duration {
	if c.cfg.ReconnectMaxSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.cfg.ReconnectMaxSec) * time.Second
}

// Run dials the control socket and reconnects with exponential backoff
// (capped at cfg.ReconnectMaxSec) until ctx is canceled. Transport errors
// here are never fatal to the daemon.
func (c *Controller) Run(ctx context.Context) error {
	if !c.cfg.Enabled {
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = c.maxInterval()
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.connectOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			b.Reset()
			continue
		}

		delay := b.NextBackOff()
		c.log.Warn("relay control connection lost, retrying", zap.Error(err), zap.Duration("retry_in", delay))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Controller) controlURL() string {
	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return c.cfg.Endpoint
	}
	q := u.Query()
	q.Set("role", "server")
	q.Set("serverId", c.serverID)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Controller) dataURL(clientID string) string {
	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return c.cfg.Endpoint
	}
	q := u.Query()
	q.Set("role", "server")
	q.Set("serverId", c.serverID)
	q.Set("clientId", clientID)
	q.Set("socket", "data")
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Controller) connectOnce(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.controlURL(), nil)
	if err != nil {
		return fmt.Errorf("dialing relay control socket: %w", err)
	}
	defer conn.Close()
	c.log.Info("relay control socket connected", zap.String("server_id", c.serverID))

	stop := make(chan struct{})
	defer close(stop)
	go pingLoop(conn, stop)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading control message: %w", err)
		}
		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("malformed relay control message", zap.Error(err))
			continue
		}
		switch msg.Type {
		case "sync":
			// no daemon-side action required beyond liveness.
		case "client_connected":
			go c.handleClientConnected(ctx, msg.ClientID)
		case "client_disconnected":
			c.log.Debug("relay client disconnected", zap.String("client_id", msg.ClientID))
		default:
			c.log.Debug("unrecognized relay control message", zap.String("type", msg.Type))
		}
	}
}

func (c *Controller) handleClientConnected(ctx context.Context, clientID string) {
	conn, _, err := c.dialer.DialContext(ctx, c.dataURL(clientID), nil)
	if err != nil {
		c.log.Warn("dialing relay data socket failed", zap.String("client_id", clientID), zap.Error(err))
		return
	}

	send, recv, err := respond(c.keyPair, func() ([]byte, error) {
		_, data, err := conn.ReadMessage()
		return data, err
	}, func(out []byte) error {
		return conn.WriteMessage(websocket.BinaryMessage, out)
	})
	if err != nil {
		c.log.Warn("relay E2EE handshake failed", zap.String("client_id", clientID), zap.Error(err))
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "handshake failed"), time.Now().Add(writeWait))
		conn.Close()
		return
	}

	dataConn := newConn(conn, send, recv)
	if c.onConn != nil {
		c.onConn(ctx, clientID, dataConn, "relay:"+clientID)
	}
}

func pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}
