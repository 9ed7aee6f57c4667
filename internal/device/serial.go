package device

import (
	"fmt"
	"io"

	serial "go.bug.st/serial"
)

// Port is the byte stream behind a Channel.
type Port interface {
	io.ReadWriteCloser
}

// OpenSerial opens a serial device at the given baud rate and discards any
// bytes the board emitted before we connected (boot banners).
func OpenSerial(path string, baud int) (Port, error) {
	p, err := serial.Open(path, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", path, err)
	}
	if err := p.ResetInputBuffer(); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("reset input buffer %s: %w", path, err)
	}
	return p, nil
}
