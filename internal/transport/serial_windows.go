//go:build windows

package transport

import (
	"errors"

	"golang.org/x/sys/windows"
)

// deviceGone matches what a read returns once a USB radio is unplugged.
func deviceGone(err error) bool {
	return errors.Is(err, windows.ERROR_DEVICE_NOT_CONNECTED) ||
		errors.Is(err, windows.ERROR_GEN_FAILURE) ||
		errors.Is(err, windows.ERROR_BAD_COMMAND)
}
