// internal/discovery/raw.go
package discovery

import (
	"fmt"

	"go.uber.org/zap"

	"robot-kit/internal/board"
)

// RawDevice selects a passthrough serial device by its USB serial number,
// with a per-device baud rate. Used for custom firmwares and boards outside
// the family allow-lists.
type RawDevice struct {
	SerialNumber string
	Baud         int
}

// GetRawDevices matches enumerated ports against the requested serial
// numbers and opens a raw board for each. No identify handshake is performed;
// the identity is taken from the USB descriptor, with the firmware version
// field carrying the vendor:product id pair.
func (d *Discoverer) GetRawDevices(devices []RawDevice) (map[string]*board.Board, error) {
	boards := make(map[string]*board.Board)
	if len(devices) == 0 {
		return boards, nil
	}

	lookup := make(map[string]RawDevice, len(devices))
	for _, device := range devices {
		lookup[device.SerialNumber] = device
	}

	ports, err := d.enum.Ports()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	for _, port := range ports {
		device, wanted := lookup[port.SerialNumber]
		if !wanted {
			continue
		}

		identity := usbIdentity(port)
		identity.SWVersion = fmt.Sprintf("%04x:%04x", port.VID, port.PID)

		family := board.RawSerial(device.Baud)
		b, err := board.New(family, d.connect(family, port.Device), identity, d.logger, board.WithSleep(d.sleep))
		if err != nil {
			d.logger.Warn("Failed to connect to raw serial device",
				zap.String("serial_number", device.SerialNumber),
				zap.String("port", port.Device),
				zap.Error(err),
			)
			continue
		}

		if err := insert(boards, identity.AssetTag, b); err != nil {
			return nil, err
		}
	}

	return boards, nil
}
