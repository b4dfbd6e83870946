// Package rpc provides a lightweight binary-over-TCP RPC framework for
// shipping encoded index messages straight to an index node.
//
// Every request is a frame of uvarint-prefixed method name and payload on a
// persistent connection. Every response is a frame whose head is a one-byte
// status and whose body is either the reply or the error text.
//
// Example server:
//
//	s := rpc.NewServer(16 << 20)
//	s.Register("Index.Apply", func(ctx context.Context, payload []byte) ([]byte, error) {
//	    return nil, node.Handle(ctx, payload)
//	})
//	s.Serve(":7400")
//
// Example client:
//
//	c, _ := rpc.Dial("localhost:7400", 5*time.Second, 16<<20)
//	_, err := c.Call(ctx, "Index.Apply", payload)
package rpc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
)

// HandlerFunc processes an RPC request payload and returns a reply.
type HandlerFunc func(ctx context.Context, payload []byte) ([]byte, error)

// Server is a lightweight binary-over-TCP RPC server.
type Server struct {
	handlers     map[string]HandlerFunc
	maxFrameSize int
	logger       *slog.Logger

	mu       sync.RWMutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	done     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewServer(maxFrameSize int) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		handlers:     make(map[string]HandlerFunc),
		maxFrameSize: maxFrameSize,
		logger:       slog.Default().With("component", "rpc-server"),
		conns:        make(map[net.Conn]struct{}),
		done:         make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Register adds a handler for the given method name.
// Method names follow the "Service.Method" convention.
func (s *Server) Register(method string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
	s.logger.Debug("method registered", "method", method)
}

// Serve listens on addr and blocks until Stop is called.
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.ServeListener(ln)
}

// ServeListener accepts connections on ln until Stop is called.
func (s *Server) ServeListener(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Info("rpc server listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("accept error", "error", err)
			continue
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	r := bufio.NewReader(conn)
	for {
		head, body, err := readFrame(r, s.maxFrameSize)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Warn("dropping connection", "remote", conn.RemoteAddr().String(), "error", err)
			}
			return
		}
		method := string(head)

		s.mu.RLock()
		handler, exists := s.handlers[method]
		s.mu.RUnlock()

		status, reply := statusOK, []byte(nil)
		if !exists {
			status, reply = statusError, []byte(fmt.Sprintf("unknown method: %s", method))
		} else if out, err := handler(s.ctx, body); err != nil {
			status, reply = statusError, []byte(err.Error())
		} else {
			reply = out
		}

		if err := writeFrame(conn, []byte{status}, reply); err != nil {
			s.logger.Error("write error", "method", method, "error", err)
			return
		}
	}
}

// Addr returns the listening address once Serve has started.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) MethodCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}

// Stop closes the listener and every open connection, then waits for
// in-flight handlers to return.
func (s *Server) Stop() {
	close(s.done)
	s.cancel()
	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Info("rpc server stopped")
}
