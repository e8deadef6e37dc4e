package canbus

import "sync"

const loopbackQueueDepth = 512

// Loopback is one end of an in-memory CAN segment. Frames written on one
// end become readable on the other, in order. Used by tests and by the
// in-process demo workflows.
type Loopback struct {
	tx chan Frame
	rx chan Frame

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewLoopbackPair returns two connected bus endpoints.
func NewLoopbackPair() (*Loopback, *Loopback) {
	ab := make(chan Frame, loopbackQueueDepth)
	ba := make(chan Frame, loopbackQueueDepth)
	done := make(chan struct{})
	a := &Loopback{tx: ab, rx: ba, done: done}
	b := &Loopback{tx: ba, rx: ab, done: done}
	return a, b
}

func (l *Loopback) WriteFrame(f Frame) error {
	if len(f.Data) > MaxDataLen {
		return ErrFrameTooLong
	}
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrBusClosed
	}

	out := Frame{ID: f.ID, Extended: f.Extended, Data: append([]byte(nil), f.Data...)}
	select {
	case l.tx <- out:
		return nil
	case <-l.done:
		return ErrBusClosed
	}
}

func (l *Loopback) ReadFrame() (Frame, bool, error) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return Frame{}, false, ErrBusClosed
	}

	select {
	case f := <-l.rx:
		return f, true, nil
	default:
		return Frame{}, false, nil
	}
}

// Close tears down both directions; the peer sees ErrBusClosed on its
// next write.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	return nil
}
