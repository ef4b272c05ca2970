package relay

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/webchat/webchat/internal/message"
)

// Client delivers frames to a relay listener, one short-lived connection
// per message.
type Client struct {
	addr    string
	timeout time.Duration
	dialer  net.Dialer
}

func NewClient(addr string, timeout time.Duration) *Client {
	return &Client{addr: addr, timeout: timeout}
}

func (c *Client) Addr() string { return c.addr }

// Send dials the relay, writes m as a single frame and closes. Connect and
// write are each bounded by the client timeout. A nil error only means the
// bytes left this process.
func (c *Client) Send(ctx context.Context, m message.ChatMessage) error {
	frame, err := message.EncodeFrame(m)
	if err != nil {
		return err
	}

	dctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	conn, err := c.dialer.DialContext(dctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("dial relay %s: %w", c.addr, err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("write frame to %s: %w", c.addr, err)
	}
	return nil
}
