package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WebsocketDialer dials the printer's websocket endpoint.
type WebsocketDialer struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

func (d WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	c, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &wsConn{c: c, writeTimeout: d.WriteTimeout}, nil
}

type wsConn struct {
	c            *websocket.Conn
	writeTimeout time.Duration
}

// ReadMessage skips binary frames; the printer speaks text only.
func (w *wsConn) ReadMessage() ([]byte, error) {
	for {
		mt, data, err := w.c.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt == websocket.TextMessage {
			return data, nil
		}
	}
}

func (w *wsConn) WriteText(frame []byte) error {
	if w.writeTimeout > 0 {
		if err := w.c.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
			return err
		}
	}
	return w.c.WriteMessage(websocket.TextMessage, frame)
}

func (w *wsConn) Close() error { return w.c.Close() }
