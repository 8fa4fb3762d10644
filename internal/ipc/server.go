package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
)

// Handler processes one IPC command request.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Serve accepts clients until ctx is cancelled or the listener closes, then
// waits for in-flight requests. Each connection carries one request line and
// one response line echoing the request ID.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	var inflight sync.WaitGroup
	defer inflight.Wait()

	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		inflight.Add(1)
		go func() {
			defer inflight.Done()
			defer conn.Close()
			_ = writeLine(conn, serveOne(ctx, conn, handler))
		}()
	}
}

func serveOne(ctx context.Context, conn net.Conn, handler Handler) Response {
	var req Request
	if err := readLine(conn, "request", &req); err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	resp := handler.Handle(ctx, req)
	resp.ID = req.ID
	return resp
}
