// Package button watches the power toggle button on a GPIO character device.
package button

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"greencure/internal/config"
	"greencure/internal/logger"
)

// lineDebounce filters contact bounce in the kernel before edges reach the
// software window.
const lineDebounce = 10 * time.Millisecond

// Debouncer accepts at most one edge per window, measured from the last
// accepted edge.
type Debouncer struct {
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	last     time.Time
	accepted bool
}

func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window, now: time.Now}
}

// Accept reports whether an edge arriving now should be acted on.
func (d *Debouncer) Accept() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if d.accepted && now.Sub(d.last) < d.window {
		return false
	}
	d.last = now
	d.accepted = true
	return true
}

// Button delivers debounced rising edges of one input line to a callback.
type Button struct {
	log      *logger.Logger
	debounce *Debouncer
	onPress  func()
	line     *gpiocdev.Line
}

func newButton(log *logger.Logger, window time.Duration, onPress func()) *Button {
	return &Button{
		log:      log.Named("button"),
		debounce: NewDebouncer(window),
		onPress:  onPress,
	}
}

// Watch requests the configured line as an edge-detecting input and calls
// onPress from the line's event goroutine for each accepted press.
func Watch(log *logger.Logger, cfg config.ButtonConfig, onPress func()) (*Button, error) {
	b := newButton(log, cfg.Debounce, onPress)
	line, err := gpiocdev.RequestLine(cfg.Chip, cfg.Line,
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithDebounce(lineDebounce),
		gpiocdev.WithConsumer("greencure-power"),
		gpiocdev.WithEventHandler(b.handleEvent),
	)
	if err != nil {
		return nil, fmt.Errorf("request %s line %d: %w", cfg.Chip, cfg.Line, err)
	}
	b.line = line
	b.log.Infow("button_watching", "chip", cfg.Chip, "line", cfg.Line, "debounce", cfg.Debounce)
	return b, nil
}

func (b *Button) handleEvent(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventRisingEdge {
		return
	}
	if !b.debounce.Accept() {
		b.log.Debugw("button_edge_debounced", "offset", evt.Offset, "seqno", evt.Seqno)
		return
	}
	b.log.Infow("button_pressed", "offset", evt.Offset)
	b.onPress()
}

// Close releases the line.
func (b *Button) Close() error {
	if b.line == nil {
		return nil
	}
	return b.line.Close()
}
