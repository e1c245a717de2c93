// internal/discovery/usbreset.go
package discovery

import (
	"fmt"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"robot-kit/internal/board"
)

// ResetUSBDevices issues a USB port reset to every attached device matching
// one of the family's vendor/product ids. Boards occasionally wedge their
// USB-serial interface after a brownout; a reset re-enumerates them so the
// next discovery pass can find them again.
func ResetUSBDevices(family board.Family, logger *zap.Logger) error {
	ctx := gousb.NewContext()
	defer func() {
		if err := ctx.Close(); err != nil {
			logger.Warn("Failed to close USB context", zap.Error(err))
		}
	}()

	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return family.VIDPIDs[board.VIDPID{
			VID: uint16(desc.Vendor),
			PID: uint16(desc.Product),
		}]
	})
	defer func() {
		for _, device := range devices {
			if device != nil {
				device.Close()
			}
		}
	}()
	if err != nil {
		return fmt.Errorf("failed to enumerate USB devices: %w", err)
	}
	if len(devices) == 0 {
		return fmt.Errorf("no %s USB devices attached", family.Name)
	}

	for _, device := range devices {
		if err := device.Reset(); err != nil {
			return fmt.Errorf("failed to reset %s: %w", device.Desc.String(), err)
		}
		logger.Info("USB device reset",
			zap.String("board_family", family.Name),
			zap.String("device", device.Desc.String()),
		)
	}
	return nil
}
