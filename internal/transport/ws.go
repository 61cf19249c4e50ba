package transport

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

const wsReadLimit = 128 << 20

// WebSocket is a multiplexed transport carrying one JSON object per text frame.
type WebSocket struct {
	*multiplexer
	endpoint string
}

var _ Streamer = (*WebSocket)(nil)

type wsCodec struct {
	conn *websocket.Conn
}

func (c *wsCodec) writeJSON(v any) error { return c.conn.WriteJSON(v) }

func (c *wsCodec) readJSON(v any) error { return c.conn.ReadJSON(v) }

func (c *wsCodec) close() error {
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.conn.Close()
}

// DialWebSocket connects to a ws:// or wss:// endpoint and starts its read loop.
func DialWebSocket(ctx context.Context, endpoint string, opts ...Option) (*WebSocket, error) {
	o := buildOptions(opts)
	dialer := websocket.Dialer{
		HandshakeTimeout: o.handshakeTimeout,
		Proxy:            websocket.DefaultDialer.Proxy,
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, o.headers)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, &ConnectionError{Op: "dial " + endpoint, Err: err}
	}
	conn.SetReadLimit(wsReadLimit)

	return &WebSocket{
		multiplexer: newMultiplexer("websocket", &wsCodec{conn: conn}, o),
		endpoint:    endpoint,
	}, nil
}
