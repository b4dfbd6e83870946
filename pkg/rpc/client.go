package rpc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// RemoteError is an error reported by the server's handler.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rpc %s: %s", e.Method, e.Message)
}

// Client is a binary-over-TCP RPC client. Calls are serialized on one
// connection.
type Client struct {
	addr         string
	timeout      time.Duration
	maxFrameSize int

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// Dial connects to an RPC server at the given address.
func Dial(addr string, timeout time.Duration, maxFrameSize int) (*Client, error) {
	c := &Client{addr: addr, timeout: timeout, maxFrameSize: maxFrameSize}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.addr, err)
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// Call invokes method with payload and returns the reply. A transport failure
// drops the connection; the next Call redials.
func (c *Client) Call(ctx context.Context, method string, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.connect(); err != nil {
			return nil, err
		}
	}
	deadline, ok := ctx.Deadline()
	if !ok && c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, c.drop(fmt.Errorf("setting deadline: %w", err))
	}

	if err := writeFrame(c.conn, []byte(method), payload); err != nil {
		return nil, c.drop(fmt.Errorf("sending request: %w", err))
	}
	head, body, err := readFrame(c.reader, c.maxFrameSize)
	if err != nil {
		return nil, c.drop(fmt.Errorf("reading response: %w", err))
	}
	if len(head) != 1 {
		return nil, c.drop(errors.New("reading response: malformed status"))
	}
	if head[0] == statusError {
		return nil, &RemoteError{Method: method, Message: string(body)}
	}
	return body, nil
}

func (c *Client) drop(err error) error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	return err
}

// Close closes the underlying TCP connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
