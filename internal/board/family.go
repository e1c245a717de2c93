// internal/board/family.go
package board

import (
	"time"
)

const (
	defaultBaud    = 115200
	defaultTimeout = 500 * time.Millisecond
)

// VIDPID is a USB vendor/product id pair.
type VIDPID struct {
	VID uint16
	PID uint16
}

// Family carries the per-board-type behaviour differences as plain
// configuration: allowed USB ids, serial parameters, the identify handshake
// and its validation. A single generic construction routine consumes this
// instead of one type per board.
type Family struct {
	// Name is the human-readable family name used in log messages.
	Name string

	// BoardType is the board_type string the firmware is expected to report.
	// Empty for families that are not identifiable (raw serial devices).
	BoardType string

	Baud    int
	Timeout time.Duration

	// SettleDelay is how long to wait after opening the port before the
	// first transaction, for boards whose firmware resets on connect.
	SettleDelay time.Duration

	// Endline terminates outgoing commands. Empty for single-character
	// command sets; responses are always newline-terminated.
	Endline string

	// IdentifyCommand is the family's identify query. Empty disables the
	// handshake and keeps the provisional identity.
	IdentifyCommand string

	// VIDPIDs is the USB allow-list for automatic discovery.
	VIDPIDs map[VIDPID]bool

	// ParseIdentity decodes the identify response, merging in fields the
	// firmware cannot report from the provisional identity.
	ParseIdentity func(response string, initial BoardIdentity) (BoardIdentity, error)

	// ValidateType checks the confirmed identity belongs to this family.
	ValidateType func(identity BoardIdentity) error
}

// exactType validates that the firmware reported exactly the given board type.
func exactType(expected string) func(BoardIdentity) error {
	return func(identity BoardIdentity) error {
		if identity.BoardType != expected {
			return &IncorrectBoardError{Returned: identity.BoardType, Expected: expected}
		}
		return nil
	}
}

// PowerBoard is the family of SR v4 power boards.
func PowerBoard() Family {
	return Family{
		Name:            "power board",
		BoardType:       "PBv4B",
		Baud:            defaultBaud,
		Timeout:         defaultTimeout,
		Endline:         "\n",
		IdentifyCommand: "*IDN?",
		VIDPIDs: map[VIDPID]bool{
			{0x1BDA, 0x0010}: true,
		},
		ParseIdentity: parseIDNResponse,
		ValidateType:  exactType("PBv4B"),
	}
}

// MotorBoard is the family of SR v4 motor boards.
func MotorBoard() Family {
	return Family{
		Name:            "motor board",
		BoardType:       "MCv4B",
		Baud:            defaultBaud,
		Timeout:         defaultTimeout,
		Endline:         "\n",
		IdentifyCommand: "*IDN?",
		VIDPIDs: map[VIDPID]bool{
			{0x0403, 0x6001}: true,
		},
		ParseIdentity: parseIDNResponse,
		ValidateType:  exactType("MCv4B"),
	}
}

// ServoBoard is the family of SR v4 servo boards.
func ServoBoard() Family {
	return Family{
		Name:            "servo board",
		BoardType:       "SBv4B",
		Baud:            defaultBaud,
		Timeout:         defaultTimeout,
		Endline:         "\n",
		IdentifyCommand: "*IDN?",
		VIDPIDs: map[VIDPID]bool{
			{0x1BDA, 0x0011}: true,
		},
		ParseIdentity: parseIDNResponse,
		ValidateType:  exactType("SBv4B"),
	}
}

// Arduino is the family of Arduino Uno compatible boards running the SR
// firmware. The firmware resets when the port opens, so a settle delay is
// required, and commands are single characters sent without a terminator.
// Board type is validated by prefix only to allow custom firmwares.
func Arduino() Family {
	return Family{
		Name:            "arduino",
		BoardType:       "SR*",
		Baud:            defaultBaud,
		Timeout:         defaultTimeout,
		SettleDelay:     2 * time.Second,
		Endline:         "",
		IdentifyCommand: "v",
		VIDPIDs: map[VIDPID]bool{
			{0x2341, 0x0043}: true, // Arduino Uno rev 3
			{0x2A03, 0x0043}: true, // Arduino Uno rev 3
			{0x1A86, 0x7523}: true, // Uno clone
			{0x10C4, 0xEA60}: true, // Ruggeduino
			{0x16D0, 0x0613}: true, // Ruggeduino
		},
		ParseIdentity: parseVersionResponse,
		ValidateType: func(identity BoardIdentity) error {
			if !hasSRPrefix(identity.BoardType) {
				return &IncorrectBoardError{Returned: identity.BoardType, Expected: "SR*"}
			}
			return nil
		},
	}
}

// RawSerial is the passthrough family for custom firmwares and non-standard
// adapters. No identify handshake, no USB allow-list; devices are selected
// explicitly by serial number with a per-device baud rate.
func RawSerial(baud int) Family {
	if baud <= 0 {
		baud = defaultBaud
	}
	return Family{
		Name:        "raw serial",
		Baud:        baud,
		Timeout:     defaultTimeout,
		SettleDelay: 2 * time.Second,
		Endline:     "\n",
	}
}

func hasSRPrefix(boardType string) bool {
	return len(boardType) >= 2 && boardType[:2] == "SR"
}
