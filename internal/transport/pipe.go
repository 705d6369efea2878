package transport

import "sync"

// Pipe is an in-memory Line transport. The "device" side registers a send
// handler and pushes response lines; tests and the mock device sit on that
// side while the downloader drives the host side.
type Pipe struct {
	mu      sync.Mutex
	handler func(line string)
	sent    []string
	closed  bool
	pushers sync.WaitGroup

	lines chan string
	done  chan struct{}
}

// NewPipe returns a pipe with the given receive buffer.
func NewPipe(buffer int) *Pipe {
	if buffer <= 0 {
		buffer = 64
	}
	return &Pipe{
		lines: make(chan string, buffer),
		done:  make(chan struct{}),
	}
}

// OnSend registers the device-side handler invoked for every host line.
func (p *Pipe) OnSend(fn func(line string)) {
	p.mu.Lock()
	p.handler = fn
	p.mu.Unlock()
}

// Sent returns a copy of every line the host has sent.
func (p *Pipe) Sent() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.sent))
	copy(out, p.sent)
	return out
}

func (p *Pipe) SendLine(text string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.sent = append(p.sent, text)
	fn := p.handler
	p.mu.Unlock()
	if fn != nil {
		fn(text)
	}
	return nil
}

// Push delivers a device line to the host side, blocking once the receive
// buffer fills until the host drains it. Closing the pipe unblocks any
// waiting push; lines pushed at or after close are dropped.
func (p *Pipe) Push(line string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.pushers.Add(1)
	p.mu.Unlock()
	defer p.pushers.Done()

	select {
	case p.lines <- line:
	case <-p.done:
	}
}

func (p *Pipe) Lines() <-chan string {
	return p.lines
}

// Close marks the pipe closed, wakes any blocked Push, and closes the line
// channel once no push is in flight.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()

	p.pushers.Wait()
	close(p.lines)
	return nil
}
