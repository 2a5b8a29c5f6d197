package client

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketDialer connects to the relay endpoint, carrying the credential in the URI.
type WebSocketDialer struct {
	endpoint     string
	dialer       *websocket.Dialer
	writeTimeout time.Duration
}

func NewWebSocketDialer(endpoint string, handshakeTimeout, writeTimeout time.Duration) *WebSocketDialer {
	return &WebSocketDialer{
		endpoint: endpoint,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		writeTimeout: writeTimeout,
	}
}

func (d *WebSocketDialer) Dial(ctx context.Context, credential domain.Credential) (Transport, error) {
	u, err := url.Parse(d.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid relay endpoint %q: %w", d.endpoint, err)
	}
	query := u.Query()
	query.Set("username", credential.Username)
	query.Set("token", credential.Token)
	u.RawQuery = query.Encode()

	conn, resp, err := d.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %s", errors.ErrHandshakeRejected, resp.Status)
		}
		return nil, fmt.Errorf("%w: %v", errors.ErrTransportLost, err)
	}
	return &wsTransport{conn: conn, writeTimeout: d.writeTimeout}, nil
}

type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	writeMu      sync.Mutex
	closeOnce    sync.Once
}

// ReadMessage must only be called from one goroutine.
func (t *wsTransport) ReadMessage() (domain.OutboundMessage, error) {
	var msg domain.OutboundMessage
	err := t.conn.ReadJSON(&msg)
	return msg, err
}

func (t *wsTransport) WriteText(text string) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.writeTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	return t.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "logout"),
			time.Now().Add(time.Second))
		err = t.conn.Close()
	})
	return err
}
