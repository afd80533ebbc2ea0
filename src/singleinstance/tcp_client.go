package singleinstance

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"time"
)

type tcpClient struct{}

func newTcpClient() Client { return &tcpClient{} }

func (c *tcpClient) Send(ctx context.Context, req Request) (bool, string, error) {
	port, ok := DetectResidentPort(ctx)
	if !ok {
		return false, "", nil
	}
	body, err := exchange(ctx, residentAddr(port), boundedBy(ctx, 2*time.Second), req)
	return true, body, err
}

func exchange(ctx context.Context, addr string, dialTimeout time.Duration, req Request) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	// WAIT blocks server-side until an event arrives; only the caller's context bounds it.
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(req.Line()); err != nil {
		return "", err
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	b, err := io.ReadAll(br)
	if err != nil && ctx.Err() != nil {
		return "", ctx.Err()
	}
	switch status {
	case successResponse:
		return string(b), nil
	case errorResponse:
		return "", &RemoteError{Message: string(b)}
	default:
		return "", fmt.Errorf("unexpected response %q", status)
	}
}
