package otaclient

import "sync"

// BufferSink accumulates the received payload in memory. Handy for
// tests and for the echo workflow; a real device would flash the bytes
// instead.
type BufferSink struct {
	mu  sync.Mutex
	buf []byte
}

func NewBufferSink(sizeHint int) *BufferSink {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &BufferSink{buf: make([]byte, 0, sizeHint)}
}

func (b *BufferSink) Callbacks() TransferCallbacks {
	return TransferCallbacks{OnChunk: b.onChunk}
}

func (b *BufferSink) onChunk(offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	end := offset + uint64(len(data))
	if end > uint64(len(b.buf)) {
		grown := make([]byte, end)
		copy(grown, b.buf)
		b.buf = grown
	}
	copy(b.buf[offset:end], data)
	return nil
}

func (b *BufferSink) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf...)
}
