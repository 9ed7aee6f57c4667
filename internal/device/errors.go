package device

import "errors"

var (
	// ErrUnknownCommand is returned when a command is sent on a link whose
	// vocabulary does not contain it. No bytes are written.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrDecodeFault marks a line that is not valid UTF-8. It is retried
	// once inside ReceiveLine and never returned to callers.
	ErrDecodeFault = errors.New("line decode fault")

	// ErrChannelStall is returned when the context ends before the board
	// acknowledged or produced a numeric value. It wraps the context error.
	ErrChannelStall = errors.New("channel stalled")

	// ErrLinkClosed is returned once the underlying port stopped producing lines.
	ErrLinkClosed = errors.New("link closed")
)
