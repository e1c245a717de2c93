// internal/transport/errors.go
package transport

import (
	"errors"
	"fmt"
)

// Sentinel errors for connection-level failures
var (
	// ErrBoardNotConnected is returned when the port cannot be opened at all,
	// either on the first transaction or when a reconnect attempt fails.
	ErrBoardNotConnected = errors.New("board not connected")

	// ErrBoardDisconnected is returned when a transaction failed on an open
	// port and the retry budget was exhausted without recovering.
	ErrBoardDisconnected = errors.New("board disconnected")

	// ErrReadTimeout is returned when a read did not observe a line
	// terminator within the configured timeout.
	ErrReadTimeout = errors.New("readline timeout")
)

// NackError represents a protocol-level rejection of a command by the board.
// The board answered, so the connection is healthy; the command itself was
// refused with the attached message. Never retried.
type NackError struct {
	Message string
}

func (e *NackError) Error() string {
	return fmt.Sprintf("board rejected command: %s", e.Message)
}

// IsTransient reports whether an error indicates the underlying connection
// became unusable mid-transaction and is worth a reconnect-and-retry.
// Protocol rejections and absent boards are not transient.
func IsTransient(err error) bool {
	return errors.Is(err, ErrBoardDisconnected)
}
