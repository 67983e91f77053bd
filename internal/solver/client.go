package solver

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"
)

// Client sends one request per connection and reads the reply until the
// service closes the connection.
type Client struct {
	Addr    string
	Timeout time.Duration // dial and I/O bound; zero means none
}

// Send writes payload, half-closes the connection and returns everything the
// service sent back. The single-shot service sends nothing.
func (c *Client) Send(ctx context.Context, payload []byte) ([]byte, error) {
	d := net.Dialer{Timeout: c.Timeout}
	conn, err := d.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial solver %s: %w", c.Addr, err)
	}
	defer conn.Close()
	defer unblockOnCancel(ctx, conn)()
	if c.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.Timeout))
	}

	if _, err := conn.Write(payload); err != nil {
		return nil, fmt.Errorf("send to solver: %w", err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.CloseWrite(); err != nil {
			return nil, fmt.Errorf("close write: %w", err)
		}
	}
	reply, err := io.ReadAll(conn)
	if err != nil {
		return reply, fmt.Errorf("read solver reply: %w", err)
	}
	return reply, nil
}
