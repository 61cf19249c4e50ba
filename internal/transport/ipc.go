package transport

import (
	"context"
	"encoding/json"
	"net"
)

// IPC is a multiplexed transport over a local unix socket, such as the
// geth.ipc file exposed by a node.
type IPC struct {
	*multiplexer
	path string
}

var _ Streamer = (*IPC)(nil)

type ipcCodec struct {
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder
}

func (c *ipcCodec) writeJSON(v any) error { return c.enc.Encode(v) }

func (c *ipcCodec) readJSON(v any) error { return c.dec.Decode(v) }

func (c *ipcCodec) close() error { return c.conn.Close() }

// DialIPC connects to the socket at path and starts its read loop.
func DialIPC(ctx context.Context, path string, opts ...Option) (*IPC, error) {
	o := buildOptions(opts)
	d := net.Dialer{Timeout: o.handshakeTimeout}
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, &ConnectionError{Op: "dial " + path, Err: err}
	}
	c := &ipcCodec{conn: conn, enc: json.NewEncoder(conn), dec: json.NewDecoder(conn)}
	return &IPC{
		multiplexer: newMultiplexer("ipc", c, o),
		path:        path,
	}, nil
}
