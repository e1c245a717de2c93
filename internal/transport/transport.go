// internal/transport/transport.go
package transport

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// queryAttempts bounds the write+read cycles per transaction, including the
// first attempt.
const queryAttempts = 3

// Transport presents synchronous, failure-tolerant request/response semantics
// over a single Conn. All public operations acquire the same mutex, so
// callers on any number of goroutines get strictly serialized transactions.
type Transport struct {
	conn   Conn
	logger *zap.Logger

	mu       sync.Mutex
	identity string
}

// New creates a Transport over the given connection.
func New(conn Conn, logger *zap.Logger) *Transport {
	return &Transport{
		conn:   conn,
		logger: logger.With(zap.String("component", "transport")),
	}
}

// Start opens the underlying connection. A board that needs a settle delay
// after connecting is handled by the caller before the first transaction.
func (t *Transport) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.conn.Open(); err != nil {
		return fmt.Errorf("%w: %v", ErrBoardNotConnected, err)
	}
	return nil
}

// Stop closes the underlying connection. Idempotent.
func (t *Transport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.Close()
}

// Query writes cmd followed by endl, reads one response line and returns it
// with trailing whitespace trimmed. The full write+read cycle is retried with
// a forced reconnect between attempts; only connection failures are
// considered transient.
func (t *Transport) Query(cmd, endl string) (string, error) {
	if endl != "" && strings.Contains(cmd, endl) {
		return "", fmt.Errorf("command %q must not contain the terminator", cmd)
	}
	if strings.ContainsAny(cmd, "\r\n") {
		return "", fmt.Errorf("command %q must not contain line breaks", cmd)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var response string
	err := withRetry(queryAttempts, IsTransient, func() error {
		resp, err := t.transact(cmd, endl)
		if err != nil {
			return err
		}
		response = resp
		return nil
	})
	if err != nil {
		return "", err
	}
	return response, nil
}

// transact performs one write+read cycle, lazily reconnecting first. A
// failure mid-transaction leaves the connection closed rather than attempting
// partial recovery.
func (t *Transport) transact(cmd, endl string) (string, error) {
	if !t.conn.IsOpen() {
		if err := t.conn.Open(); err != nil {
			t.logger.Warn("Failed to connect to board", zap.Error(err))
			return "", fmt.Errorf("%w: %v", ErrBoardNotConnected, err)
		}
	}

	if err := t.conn.WriteBytes([]byte(cmd + endl)); err != nil {
		t.dropConnection(err)
		return "", fmt.Errorf("%w: %v", ErrBoardDisconnected, err)
	}

	line, err := t.conn.ReadLine()
	if err != nil {
		t.dropConnection(err)
		return "", fmt.Errorf("%w: %v", ErrBoardDisconnected, err)
	}

	return strings.TrimRight(string(line), " \t\r\n"), nil
}

// dropConnection force-closes the handle after a mid-transaction failure so
// the next attempt starts from a clean reconnect.
func (t *Transport) dropConnection(cause error) {
	t.logger.Warn("Transaction failed, dropping connection", zap.Error(cause))
	if err := t.conn.Close(); err != nil {
		t.logger.Warn("Failed to close connection", zap.Error(err))
	}
}

// Write sends a command that returns no data. A response carrying the
// negative-acknowledgement marker is surfaced as a NackError with the
// board-supplied message and is never retried.
func (t *Transport) Write(cmd, endl string) error {
	response, err := t.Query(cmd, endl)
	if err != nil {
		return err
	}

	if msg, ok := strings.CutPrefix(response, "NACK:"); ok {
		return &NackError{Message: msg}
	}
	return nil
}

// SetIdentity attaches a confirmed identity label to this transport for
// diagnostic display. It has no effect on protocol behaviour.
func (t *Transport) SetIdentity(identity string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.identity = identity
}

func (t *Transport) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.identity == "" {
		return "<Transport unidentified>"
	}
	return fmt.Sprintf("<Transport %s>", t.identity)
}
