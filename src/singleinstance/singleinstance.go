package singleinstance

// This file defines the API for the resident snip endpoint and its clients.

import (
	"context"
	"fmt"
	"strings"
)

// Commands understood by the resident.
const (
	CmdPing    = "PING"
	CmdStart   = "START"
	CmdQuery   = "QUERY"
	CmdFinish  = "FINISH"
	CmdCancel  = "CANCEL"
	CmdLog     = "LOG"
	CmdCapture = "CAPTURE"
	CmdStatus  = "STATUS"
	CmdWait    = "WAIT"
)

// Server owns the TCP endpoint and hands accepted requests to the caller.
type Server interface {
	// Start binds the first port of the configured range and begins accepting clients.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted connection as a Conn, or ctx error.
	Next(ctx context.Context) (Conn, error)
	// Close releases ownership and stops accepting clients.
	Close() error
}

// Conn represents one client connection and exposes request + response API.
type Conn interface {
	Request() Request
	// RespondSuccess sends SUCCESS followed by an optional body.
	RespondSuccess(body string) error
	// RespondError sends ERROR followed by a human-readable message.
	RespondError(msg string) error
	Close() error
}

// Request is a single command line sent by a client.
type Request struct {
	Command string
	Args    []string
}

// ParseRequest splits a request line into command and arguments. LOG keeps its
// message verbatim as a single argument.
func ParseRequest(line string) (Request, error) {
	line = strings.TrimRight(line, "\r\n")
	cmd, rest, _ := strings.Cut(line, " ")
	cmd = strings.ToUpper(strings.TrimSpace(cmd))
	if cmd == "" {
		return Request{}, fmt.Errorf("empty request")
	}
	switch cmd {
	case CmdPing, CmdStart, CmdQuery, CmdFinish, CmdCancel, CmdCapture, CmdStatus, CmdWait:
		return Request{Command: cmd, Args: strings.Fields(rest)}, nil
	case CmdLog:
		return Request{Command: cmd, Args: []string{rest}}, nil
	default:
		return Request{}, fmt.Errorf("unknown command %q", cmd)
	}
}

// Line renders the request in wire form, including the trailing newline.
func (r Request) Line() string {
	var b strings.Builder
	b.WriteString(r.Command)
	for _, a := range r.Args {
		b.WriteByte(' ')
		b.WriteString(strings.ReplaceAll(a, "\n", " "))
	}
	b.WriteByte('\n')
	return b.String()
}

// RemoteError is returned by the client when the resident answered ERROR.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// Client delegates requests to a resident server.
type Client interface {
	// Send scans the configured port range, performs the PING handshake and sends req.
	// If no resident is found, returns delegated=false, err=nil.
	Send(ctx context.Context, req Request) (delegated bool, body string, err error)
}

// NewServer returns TCP implementation.
func NewServer() Server { return newTcpServer() }

// NewClient returns TCP implementation.
func NewClient() Client { return newTcpClient() }
