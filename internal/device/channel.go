package device

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"greencure/internal/logger"
)

// rxBuffer is how many received lines may queue before the reader blocks.
const rxBuffer = 64

// Channel turns a newline-delimited byte stream into an acknowledged
// command channel. A single goroutine owns reads from the port and hands
// complete lines to whichever exchange is waiting, so every wait can be
// abandoned through its context.
type Channel struct {
	link    Link
	port    Port
	log     *logger.Logger
	timeout time.Duration

	// exchange serializes command/response sequences on the link.
	exchange sync.Mutex

	lines chan []byte
	done  chan struct{}

	closeOnce sync.Once
	errMu     sync.Mutex
	rxErr     error
}

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// WithResponseTimeout bounds each exchange (send plus any value read) to d.
// Without it an exchange waits for as long as the caller's context allows.
func WithResponseTimeout(d time.Duration) ChannelOption {
	return func(c *Channel) { c.timeout = d }
}

// NewChannel starts reading from port and returns a channel for the link.
func NewChannel(link Link, port Port, log *logger.Logger, opts ...ChannelOption) *Channel {
	c := &Channel{
		link:  link,
		port:  port,
		log:   log.Named(link.Name),
		lines: make(chan []byte, rxBuffer),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.pump()
	return c
}

func (c *Channel) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Name returns the link identifier.
func (c *Channel) Name() string { return c.link.Name }

// Close stops the reader and closes the port.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.port.Close()
	})
	return err
}

func (c *Channel) pump() {
	defer close(c.lines)
	r := bufio.NewReader(c.port)
	for {
		raw, err := r.ReadBytes('\n')
		if len(raw) > 0 {
			select {
			case c.lines <- raw:
			case <-c.done:
				return
			}
		}
		if err != nil {
			c.errMu.Lock()
			c.rxErr = err
			c.errMu.Unlock()
			return
		}
	}
}

func (c *Channel) readError() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.rxErr
}

func (c *Channel) receiveRaw(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", ErrChannelStall, c.link.Name, ctx.Err())
	case raw, ok := <-c.lines:
		if !ok {
			return nil, fmt.Errorf("%w: %s: %v", ErrLinkClosed, c.link.Name, c.readError())
		}
		return raw, nil
	}
}

// decodeLine strips the line terminator and trailing whitespace. The text
// is returned even when the bytes are not valid UTF-8.
func decodeLine(raw []byte) (string, error) {
	line := strings.TrimRight(string(raw), " \t\r\n")
	if !utf8.Valid(raw) {
		return line, ErrDecodeFault
	}
	return line, nil
}

// ReceiveLine returns the next line from the board. A line that fails to
// decode is replaced by the following one, once; the second line is
// returned as-is whether or not it decodes.
func (c *Channel) ReceiveLine(ctx context.Context) (string, error) {
	raw, err := c.receiveRaw(ctx)
	if err != nil {
		return "", err
	}
	line, err := decodeLine(raw)
	if err != nil {
		c.log.Debugw("line_decode_retry", "link", c.link.Name, "err", err)
		raw, err = c.receiveRaw(ctx)
		if err != nil {
			return "", err
		}
		line, _ = decodeLine(raw)
	}
	c.log.Debugw("line_received", "link", c.link.Name, "line", line)
	return line, nil
}

// drain discards lines that arrived outside any exchange, such as a late
// acknowledgement for a command whose wait was cancelled.
func (c *Channel) drain() {
	for {
		select {
		case raw, ok := <-c.lines:
			if !ok {
				return
			}
			c.log.Debugw("stale_line_discarded", "link", c.link.Name, "line", strings.TrimSpace(string(raw)))
		default:
			return
		}
	}
}

func (c *Channel) checkCommand(cmd int) error {
	if !c.link.Commands.Contains(cmd) {
		return fmt.Errorf("%w: %d on %s", ErrUnknownCommand, cmd, c.link.Name)
	}
	return nil
}

// Send writes cmd and blocks until the board acknowledges it or ctx ends.
// Lines other than the acknowledgement are discarded.
func (c *Channel) Send(ctx context.Context, cmd int) error {
	if err := c.checkCommand(cmd); err != nil {
		return err
	}
	c.exchange.Lock()
	defer c.exchange.Unlock()

	ctx, cancel := c.bound(ctx)
	defer cancel()
	return c.send(ctx, cmd)
}

func (c *Channel) send(ctx context.Context, cmd int) error {
	c.drain()
	c.log.Infow("command_sent", "link", c.link.Name, "command", cmd)
	if _, err := c.port.Write([]byte(strconv.Itoa(cmd) + "\n")); err != nil {
		return fmt.Errorf("write command %d on %s: %w", cmd, c.link.Name, err)
	}
	for {
		line, err := c.ReceiveLine(ctx)
		if err != nil {
			return fmt.Errorf("await ack for %d: %w", cmd, err)
		}
		if line == AckToken {
			return nil
		}
	}
}

// ReadNumeric sends cmd and returns the first line after the acknowledgement
// that parses as a float. Non-numeric lines are skipped.
func (c *Channel) ReadNumeric(ctx context.Context, cmd int) (float64, error) {
	if err := c.checkCommand(cmd); err != nil {
		return 0, err
	}
	c.exchange.Lock()
	defer c.exchange.Unlock()

	ctx, cancel := c.bound(ctx)
	defer cancel()
	if err := c.send(ctx, cmd); err != nil {
		return 0, err
	}
	for {
		line, err := c.ReceiveLine(ctx)
		if err != nil {
			return 0, fmt.Errorf("await value for %d: %w", cmd, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
		if err == nil {
			return v, nil
		}
		c.log.Debugw("non_numeric_discarded", "link", c.link.Name, "command", cmd, "line", line)
	}
}

// Identify asks the board for its identifier and returns the first
// non-empty line after the acknowledgement.
func (c *Channel) Identify(ctx context.Context) (string, error) {
	c.exchange.Lock()
	defer c.exchange.Unlock()

	ctx, cancel := c.bound(ctx)
	defer cancel()
	if err := c.send(ctx, CmdIdentify); err != nil {
		return "", err
	}
	for {
		line, err := c.ReceiveLine(ctx)
		if err != nil {
			return "", fmt.Errorf("await identifier: %w", err)
		}
		if line != "" {
			return line, nil
		}
	}
}

// Reset returns the board to its power-on state (all actuators off).
func (c *Channel) Reset(ctx context.Context) error {
	return c.Send(ctx, CmdReset)
}
