package device

import (
	"io"
	"strings"
	"sync"
)

// fakePort is an in-memory board. Lines scripted for a command are queued
// for reading when that command is written.
type fakePort struct {
	mu      sync.Mutex
	writes  []string
	replies map[string][][]byte

	rx        chan []byte
	buf       []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakePort() *fakePort {
	return &fakePort{
		replies: map[string][][]byte{},
		rx:      make(chan []byte, 256),
		closed:  make(chan struct{}),
	}
}

// script queues lines to be emitted when cmd is written.
func (p *fakePort) script(cmd string, lines ...string) {
	raws := make([][]byte, 0, len(lines))
	for _, l := range lines {
		raws = append(raws, []byte(l+"\n"))
	}
	p.scriptRaw(cmd, raws...)
}

func (p *fakePort) scriptRaw(cmd string, raws ...[]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies[cmd] = append(p.replies[cmd], raws...)
}

// emit makes a line readable immediately.
func (p *fakePort) emit(line string) {
	p.rx <- []byte(line + "\n")
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.buf) == 0 {
		select {
		case chunk := <-p.rx:
			p.buf = chunk
		case <-p.closed:
			return 0, io.EOF
		}
	}
	n := copy(b, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	cmd := strings.TrimSpace(string(b))
	p.mu.Lock()
	p.writes = append(p.writes, cmd)
	replies := p.replies[cmd]
	delete(p.replies, cmd)
	p.mu.Unlock()

	for _, r := range replies {
		p.rx <- r
	}
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *fakePort) written() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.writes...)
}
