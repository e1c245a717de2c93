// internal/transport/connection.go
package transport

import (
	"bytes"
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// Conn is the raw connection a Transport drives. The real implementation is
// SerialConnection; tests substitute a mock.
type Conn interface {
	Open() error
	Close() error
	IsOpen() bool
	WriteBytes(data []byte) error
	ReadLine() ([]byte, error)
}

// SerialConnection owns exactly one serial handle and its open/close
// lifecycle. It never retries internally; failure handling lives in the
// Transport above it.
type SerialConnection struct {
	portName string
	baud     int
	timeout  time.Duration
	logger   *zap.Logger

	port      serial.Port
	connected bool
}

// NewSerialConnection creates a connection for the given port path. The port
// is not opened until Open is called.
func NewSerialConnection(portName string, baud int, timeout time.Duration, logger *zap.Logger) *SerialConnection {
	return &SerialConnection{
		portName: portName,
		baud:     baud,
		timeout:  timeout,
		logger: logger.With(
			zap.String("component", "serial"),
			zap.String("port", portName),
		),
	}
}

// Open opens the configured port at the configured baud rate and read
// timeout. On failure the connection stays disconnected.
func (sc *SerialConnection) Open() error {
	if sc.connected {
		return nil
	}

	mode := &serial.Mode{
		BaudRate: sc.baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(sc.portName, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", sc.portName, err)
	}

	if err := port.SetReadTimeout(sc.timeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	sc.port = port
	sc.connected = true

	sc.logger.Info("Serial port opened",
		zap.Int("baud_rate", sc.baud),
		zap.Duration("read_timeout", sc.timeout),
	)
	return nil
}

// Close closes the handle if one is open. Safe to call when already
// disconnected.
func (sc *SerialConnection) Close() error {
	if !sc.connected || sc.port == nil {
		return nil
	}

	err := sc.port.Close()
	sc.port = nil
	sc.connected = false

	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	sc.logger.Info("Serial port closed")
	return nil
}

// IsOpen returns whether the connection is open.
func (sc *SerialConnection) IsOpen() bool {
	return sc.connected && sc.port != nil
}

// WriteBytes writes data to the port. A short write is an error.
func (sc *SerialConnection) WriteBytes(data []byte) error {
	if !sc.IsOpen() {
		return ErrBoardNotConnected
	}

	n, err := sc.port.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write to serial port: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}
	return nil
}

// ReadLine reads bytes until a newline is observed. A read that makes no
// progress within the configured timeout returns ErrReadTimeout rather than
// hanging; partial lines at timeout are also a timeout.
func (sc *SerialConnection) ReadLine() ([]byte, error) {
	if !sc.IsOpen() {
		return nil, ErrBoardNotConnected
	}

	var line bytes.Buffer
	buf := make([]byte, 1)
	deadline := time.Now().Add(sc.timeout)

	for {
		n, err := sc.port.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("failed to read from serial port: %w", err)
		}
		if n == 0 {
			// The port-level read timeout expired with no data.
			return nil, ErrReadTimeout
		}

		line.Write(buf[:n])
		if buf[n-1] == '\n' {
			return line.Bytes(), nil
		}
		if time.Now().After(deadline) {
			return nil, ErrReadTimeout
		}
	}
}
