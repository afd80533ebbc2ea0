package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// ErrResidentRunning reports that another resident already answers PING.
var ErrResidentRunning = errors.New("resident already running")

const pingTimeout = 300 * time.Millisecond

// DetectResidentPort scans the port range and returns the first port whose
// listener answers PING.
func DetectResidentPort(ctx context.Context) (int, bool) {
	timeout := boundedBy(ctx, pingTimeout)
	start, end := getPortRange()
	for port := start; port <= end; port++ {
		if ctx.Err() != nil {
			return 0, false
		}
		if ping(ctx, residentAddr(port), timeout) {
			return port, true
		}
	}
	return 0, false
}

// Preflight fails when another resident answers anywhere in the range or when
// the listen port is held by some other process.
func Preflight(ctx context.Context) error {
	if port, ok := DetectResidentPort(ctx); ok {
		return fmt.Errorf("%w on port %d", ErrResidentRunning, port)
	}
	start, _ := getPortRange()
	ln, err := net.Listen("tcp", residentAddr(start))
	if err != nil {
		return fmt.Errorf("resident port %d is already in use: %w", start, err)
	}
	return ln.Close()
}

func residentAddr(port int) string {
	return net.JoinHostPort(residentHost, strconv.Itoa(port))
}

// boundedBy returns d, shortened to whatever remains of ctx's deadline.
func boundedBy(ctx context.Context, d time.Duration) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left > 0 && left < d {
			return left
		}
	}
	return d
}

func ping(ctx context.Context, addr string, timeout time.Duration) bool {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))
	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(pingRequest); err != nil {
		return false
	}
	if err := w.Flush(); err != nil {
		return false
	}
	resp, err := bufio.NewReader(conn).ReadString('\n')
	return err == nil && resp == pongResponse
}
