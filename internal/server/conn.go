package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"pix-server/internal/protocol"
	"pix-server/internal/utils"
)

const (
	maxLineBytes = 1 << 20
	writeTimeout = 10 * time.Second
)

type connState int

const (
	stateAwaitingHandshake connState = iota
	stateServing
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateAwaitingHandshake:
		return "awaiting-handshake"
	case stateServing:
		return "serving"
	default:
		return "closed"
	}
}

// Dispatcher answers one decoded message.
type Dispatcher interface {
	Handle(ctx context.Context, msg protocol.Message) protocol.Response
}

type connOptions struct {
	idleTimeout         time.Duration
	malformedDiagnostic bool
}

// connHandler owns one client connection from handshake to close. Requests
// are answered strictly in arrival order.
type connHandler struct {
	conn       net.Conn
	scanner    *bufio.Scanner
	dispatcher Dispatcher
	metrics    *Metrics
	opts       connOptions
	remote     string
	state      connState
}

func newConnHandler(conn net.Conn, dispatcher Dispatcher, metrics *Metrics, opts connOptions) *connHandler {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	return &connHandler{
		conn:       conn,
		scanner:    scanner,
		dispatcher: dispatcher,
		metrics:    metrics,
		opts:       opts,
		remote:     conn.RemoteAddr().String(),
		state:      stateAwaitingHandshake,
	}
}

// serve runs the state machine until the peer leaves, a fatal error occurs
// or ctx is cancelled. The connection is always closed on return.
func (c *connHandler) serve(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()
	defer c.close()

	c.metrics.connectionOpened()
	defer c.metrics.connectionClosed()

	utils.LogInfo("Conn", "%s connected", c.remote)

	for c.state != stateClosed {
		switch c.state {
		case stateAwaitingHandshake:
			c.state = c.handshake()
		case stateServing:
			c.state = c.serveOne(ctx)
		}
	}
}

func (c *connHandler) handshake() connState {
	line, ok := c.readLine()
	if !ok {
		return stateClosed
	}
	start := time.Now()

	msg, err := protocol.Decode(line)
	if err != nil {
		c.metrics.malformedLine()
		utils.LogWarning("Conn", "%s sent a malformed handshake: %s", c.remote, utils.Redact(string(line)))
		c.write(protocol.Failure(protocol.OpConnect, "Protocolo violado: mensagem malformada."))
		return stateClosed
	}

	if _, err := protocol.ValidateHandshake(msg); err != nil {
		var violation *protocol.Violation
		if errors.As(err, &violation) {
			c.write(protocol.Failure(violation.Operation, violation.Info))
		}
		c.metrics.observe(protocol.OpConnect, false, time.Since(start))
		utils.LogWarning("Conn", "%s rejected: first operation was %q", c.remote, msg.Operation)
		return stateClosed
	}

	if !c.write(protocol.Success(protocol.OpConnect, "Conexão estabelecida com sucesso.")) {
		return stateClosed
	}
	c.metrics.observe(protocol.OpConnect, true, time.Since(start))
	utils.LogSuccess("Conn", "%s completed the handshake", c.remote)
	return stateServing
}

func (c *connHandler) serveOne(ctx context.Context) connState {
	line, ok := c.readLine()
	if !ok {
		return stateClosed
	}
	start := time.Now()

	msg, err := protocol.Decode(line)
	if err != nil {
		c.metrics.malformedLine()
		utils.LogWarning("Conn", "%s sent a malformed line, closing: %s", c.remote, utils.Redact(string(line)))
		if c.opts.malformedDiagnostic {
			c.write(protocol.Failure(protocol.OpUnknown, "Mensagem malformada. A conexão será encerrada."))
		}
		return stateClosed
	}

	utils.LogRequest(msg.Operation, c.remote, "")
	utils.LogDebug("Conn", "%s <- %s", c.remote, utils.Redact(string(line)))

	resp := c.dispatcher.Handle(ctx, msg)
	if !c.write(resp) {
		return stateClosed
	}
	c.metrics.observe(resp.Operation, resp.Status, time.Since(start))
	return stateServing
}

// readLine returns the next line, or false once the stream is unusable.
func (c *connHandler) readLine() ([]byte, bool) {
	if c.opts.idleTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.idleTimeout))
	}
	if c.scanner.Scan() {
		return c.scanner.Bytes(), true
	}

	err := c.scanner.Err()
	var netErr net.Error
	switch {
	case err == nil:
		utils.LogInfo("Conn", "%s closed the connection", c.remote)
	case errors.Is(err, bufio.ErrTooLong):
		c.metrics.malformedLine()
		utils.LogWarning("Conn", "%s sent a line over %d bytes", c.remote, maxLineBytes)
	case errors.As(err, &netErr) && netErr.Timeout():
		utils.LogInfo("Conn", "%s idle for %v, closing", c.remote, c.opts.idleTimeout)
	case errors.Is(err, net.ErrClosed):
	default:
		utils.LogWarning("Conn", "%s read failed: %v", c.remote, err)
	}
	return nil, false
}

func (c *connHandler) write(resp protocol.Response) bool {
	line, err := protocol.Encode(resp)
	if err != nil {
		utils.LogError("Conn", fmt.Sprintf("Encode response for %s", c.remote), err)
		return false
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := c.conn.Write(append(line, '\n')); err != nil {
		if !errors.Is(err, net.ErrClosed) {
			utils.LogWarning("Conn", "%s write failed: %v", c.remote, err)
		}
		return false
	}
	return true
}

func (c *connHandler) close() {
	c.state = stateClosed
	_ = c.conn.Close()
	utils.LogDebug("Conn", "%s released", c.remote)
}
