// internal/board/board.go
package board

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"robot-kit/internal/transport"
)

// Board is one live, validated board handle. Command vocabularies beyond the
// identify handshake live in thin encoders above this; a Board only offers
// the locked Query/Write surface and its confirmed identity.
type Board struct {
	family    Family
	transport *transport.Transport
	identity  BoardIdentity
	logger    *zap.Logger
}

// Option adjusts board construction.
type Option func(*options)

type options struct {
	sleep func(time.Duration)
}

// WithSleep replaces the function used for the settle delay. The robot uses
// this to keep simulated time consistent; tests use it to skip the delay.
func WithSleep(fn func(time.Duration)) Option {
	return func(o *options) {
		o.sleep = fn
	}
}

// New constructs a board over an already-built connection: open, settle,
// identify, validate. A candidate that fails any step is closed before the
// error is returned, so a rejected port never leaks an open handle.
func New(family Family, conn transport.Conn, initial BoardIdentity, logger *zap.Logger, opts ...Option) (*Board, error) {
	o := options{sleep: time.Sleep}
	for _, opt := range opts {
		opt(&o)
	}

	tp := transport.New(conn, logger)
	if err := tp.Start(); err != nil {
		return nil, err
	}

	if family.SettleDelay > 0 {
		// The firmware resets when the port opens; transactions issued
		// before the reset finishes are lost.
		o.sleep(family.SettleDelay)
	}

	b := &Board{
		family:    family,
		transport: tp,
		identity:  initial,
		logger:    logger.With(zap.String("board_family", family.Name)),
	}

	if family.IdentifyCommand == "" {
		tp.SetIdentity(initial.String())
		return b, nil
	}

	identity, err := b.Identify()
	if err != nil {
		tp.Stop()
		return nil, err
	}
	if err := family.ValidateType(identity); err != nil {
		tp.Stop()
		return nil, err
	}

	b.identity = identity
	tp.SetIdentity(identity.String())
	b.logger.Info("Board identified",
		zap.String("board_type", identity.BoardType),
		zap.String("asset_tag", identity.AssetTag),
		zap.String("sw_version", identity.SWVersion),
	)
	return b, nil
}

// Connect opens a serial connection to the given port and constructs a board
// of the family over it.
func Connect(family Family, port string, initial BoardIdentity, logger *zap.Logger) (*Board, error) {
	conn := transport.NewSerialConnection(port, family.Baud, family.Timeout, logger)
	return New(family, conn, initial, logger)
}

// Identify issues the family's identify query and returns the parsed,
// confirmed identity.
func (b *Board) Identify() (BoardIdentity, error) {
	if b.family.IdentifyCommand == "" {
		// Raw devices cannot be interrogated; the USB descriptor identity
		// is all there is.
		return b.identity, nil
	}

	response, err := b.transport.Query(b.family.IdentifyCommand, b.family.Endline)
	if err != nil {
		return BoardIdentity{}, fmt.Errorf("identify query failed: %w", err)
	}
	return b.family.ParseIdentity(response, b.identity)
}

// Identity returns the confirmed identity of the board.
func (b *Board) Identity() BoardIdentity {
	return b.identity
}

// Family returns the family configuration the board was built with.
func (b *Board) Family() Family {
	return b.family
}

// Query sends a command using the family's terminator and returns the
// response line. This is the pass-through surface for custom command sets.
func (b *Board) Query(cmd string) (string, error) {
	return b.transport.Query(cmd, b.family.Endline)
}

// Write sends a command that expects an acknowledgement and surfaces NACK
// responses as errors.
func (b *Board) Write(cmd string) error {
	return b.transport.Write(cmd, b.family.Endline)
}

// Close releases the serial handle.
func (b *Board) Close() error {
	return b.transport.Stop()
}

func (b *Board) String() string {
	return fmt.Sprintf("<Board %s %s>", b.family.Name, b.identity)
}
