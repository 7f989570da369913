package victron

import (
	"io"

	"github.com/tarm/serial"
)

// Open returns an Opener that opens the serial port at path with the
// line parameters the MK2/MK3 interface requires: 2400 baud, 8 data
// bits, no parity, 1 stop bit (spec §6). It is provided as one
// concrete transport; the Session itself only requires an
// io.ReadWriteCloser and does not depend on this function.
func Open(path string) Opener {
	return func() (io.ReadWriteCloser, error) {
		cfg := &serial.Config{
			Name:     path,
			Baud:     2400,
			Size:     8,
			Parity:   serial.ParityNone,
			StopBits: serial.Stop1,
		}
		return serial.OpenPort(cfg)
	}
}
