// internal/discovery/discovery.go
package discovery

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"robot-kit/internal/board"
	"robot-kit/internal/transport"
)

// PortInfo describes one candidate serial port as reported by the system.
type PortInfo struct {
	Device       string // port path, e.g. /dev/ttyACM0
	IsUSB        bool
	VID          uint16
	PID          uint16
	SerialNumber string
	Product      string
}

// Enumerator lists the system's serial ports. The real implementation wraps
// go.bug.st/serial/enumerator; tests substitute a fixed port list.
type Enumerator interface {
	Ports() ([]PortInfo, error)
}

// Connector builds the raw connection for a candidate port. The default dials
// the serial port with the family's parameters; tests substitute mocks.
type Connector func(family board.Family, port string) transport.Conn

// Discoverer produces the set of live, validated board handles for a family.
// A discovery pass is a one-shot snapshot; it does not watch for hot-plug
// events after returning.
type Discoverer struct {
	enum    Enumerator
	connect Connector
	sleep   func(time.Duration)
	logger  *zap.Logger
}

// New creates a Discoverer backed by the system port list.
func New(logger *zap.Logger) *Discoverer {
	return &Discoverer{
		enum: systemEnumerator{},
		connect: func(family board.Family, port string) transport.Conn {
			return transport.NewSerialConnection(port, family.Baud, family.Timeout, logger)
		},
		sleep:  time.Sleep,
		logger: logger.With(zap.String("component", "discovery")),
	}
}

// GetSupportedBoards scans the system ports for boards of the family,
// matching candidates by the family's USB vendor/product allow-list, then
// processes the explicitly specified manual port paths. The result maps asset
// tags to live boards; manual entries are keyed by their port path. A single
// bad candidate never aborts the overall scan.
func (d *Discoverer) GetSupportedBoards(
	family board.Family,
	manual []string,
	ignored []string,
) (map[string]*board.Board, error) {
	boards := make(map[string]*board.Board)

	ports, err := d.enum.Ports()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	ignoredTags := make(map[string]bool, len(ignored))
	for _, tag := range ignored {
		ignoredTags[tag] = true
	}

	for _, port := range ports {
		if !family.VIDPIDs[board.VIDPID{VID: port.VID, PID: port.PID}] {
			continue
		}

		initial := usbIdentity(port)
		if ignoredTags[initial.AssetTag] {
			continue
		}

		b := d.validBoard(family, port.Device, initial, false)
		if b == nil {
			continue
		}
		if err := insert(boards, b.Identity().AssetTag, b); err != nil {
			return nil, err
		}
	}

	for _, manualPort := range manual {
		initial := board.BoardIdentity{
			BoardType: "manual",
			AssetTag:  manualPort,
		}

		b := d.validBoard(family, manualPort, initial, true)
		if b == nil {
			continue
		}
		// Manual entries keep their port path as the key, whatever the
		// firmware reports.
		if err := insert(boards, manualPort, b); err != nil {
			return nil, err
		}
	}

	d.logger.Info("Board discovery completed",
		zap.String("board_family", family.Name),
		zap.Int("boards_found", len(boards)),
	)
	return boards, nil
}

// validBoard attempts to construct and identify a board on the candidate
// port, returning nil if the candidate should be excluded. Both rejection
// paths are warnings only, and a rejected candidate holds no open handle.
func (d *Discoverer) validBoard(
	family board.Family,
	port string,
	initial board.BoardIdentity,
	isManual bool,
) *board.Board {
	b, err := board.New(family, d.connect(family, port), initial, d.logger, board.WithSleep(d.sleep))
	if err == nil {
		return b
	}

	var incorrect *board.IncorrectBoardError
	if errors.As(err, &incorrect) {
		d.logger.Warn("Board returned unexpected type, ignoring this device",
			zap.String("port", port),
			zap.String("returned_type", incorrect.Returned),
			zap.String("expected_type", incorrect.Expected),
		)
		return nil
	}

	if isManual {
		d.logger.Warn("Manually specified board could not be identified, ignoring this device",
			zap.String("board_family", family.Name),
			zap.String("port", port),
			zap.Error(err),
		)
		return nil
	}

	d.logger.Warn("Found board-like serial port, but it could not be identified, ignoring this device",
		zap.String("board_family", family.Name),
		zap.String("port", port),
		zap.Error(err),
	)
	return nil
}

// insert adds a board to the result map, refusing to overwrite. Two ports
// reporting the same asset tag is a construction bug or a misconfiguration;
// silently keeping either one would hide it. The scan is aborted, so every
// board collected so far is closed along with the duplicate pair.
func insert(boards map[string]*board.Board, key string, b *board.Board) error {
	if _, exists := boards[key]; exists {
		b.Close()
		for _, collected := range boards {
			collected.Close()
		}
		return fmt.Errorf("duplicate asset tag %q reported by two ports", key)
	}
	boards[key] = b
	return nil
}

// usbIdentity derives a provisional identity from the USB descriptor. The
// firmware overrides the type and version once the board answers.
func usbIdentity(port PortInfo) board.BoardIdentity {
	return board.BoardIdentity{
		BoardType: port.Product,
		AssetTag:  port.SerialNumber,
	}
}

// systemEnumerator reads the detailed system port list.
type systemEnumerator struct{}

func (systemEnumerator) Ports() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	ports := make([]PortInfo, 0, len(details))
	for _, detail := range details {
		info := PortInfo{
			Device:       detail.Name,
			IsUSB:        detail.IsUSB,
			SerialNumber: detail.SerialNumber,
			Product:      detail.Product,
		}
		if detail.IsUSB {
			info.VID = parseUSBID(detail.VID)
			info.PID = parseUSBID(detail.PID)
		}
		ports = append(ports, info)
	}
	return ports, nil
}

// parseUSBID parses the hex vendor/product id strings the enumerator
// reports. Malformed ids map to zero, which matches no allow-list.
func parseUSBID(id string) uint16 {
	value, err := strconv.ParseUint(id, 16, 16)
	if err != nil {
		return 0
	}
	return uint16(value)
}
