//go:build unix

package transport

import (
	"errors"

	"golang.org/x/sys/unix"
)

// deviceGone matches what a read returns once a USB radio is unplugged.
func deviceGone(err error) bool {
	return errors.Is(err, unix.EIO) || errors.Is(err, unix.ENXIO) || errors.Is(err, unix.ENODEV)
}
