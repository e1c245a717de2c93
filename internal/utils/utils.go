// internal/utils/utils.go
package utils

import (
	"fmt"
	"math"
	"net"
)

// instanceLockPort is bound to claim a host-wide lock; kept compatible with
// the other kit implementations so they exclude each other too.
const instanceLockPort = 10653

// ObtainLock binds a localhost TCP port to guarantee a single robot instance
// per host. The returned listener is the lock; closing it releases the lock.
func ObtainLock() (net.Listener, error) {
	lock, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", instanceLockPort))
	if err != nil {
		return nil, fmt.Errorf(
			"unable to obtain lock, is another robot instance already running: %w", err)
	}
	return lock, nil
}

// MapToInt linearly maps a value from the input range to the output range,
// truncating to an integer. Used to convert user-facing values to the
// integer encodings the boards expect.
func MapToInt(x, inMin, inMax float64, outMin, outMax int) (int, error) {
	if x < inMin || x > inMax {
		return 0, fmt.Errorf(
			"value %v outside of the range %v to %v", x, inMin, inMax)
	}
	value := (x-inMin)*float64(outMax-outMin)/(inMax-inMin) + float64(outMin)
	return int(value), nil
}

// MapToFloat linearly maps an integer from the input range to the output
// range, rounded to the given number of decimal places.
func MapToFloat(x, inMin, inMax int, outMin, outMax float64, precision int) float64 {
	value := float64(x-inMin)*(outMax-outMin)/float64(inMax-inMin) + outMin
	scale := math.Pow10(precision)
	return math.Round(value*scale) / scale
}
