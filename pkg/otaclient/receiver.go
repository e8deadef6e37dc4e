package otaclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eternal-echo/canota/internal"
	"github.com/eternal-echo/canota/pkg/otawire"
)

// Receiver consumes the chunk stream from a segmentation transport:
// it validates the header on the first chunk, tracks the announced
// total size, and hands payload bytes to the registered callbacks in
// order. What the callbacks do with the bytes (buffer, flash, discard)
// is the caller's business.
type Receiver struct {
	transport    ReceiveTransport
	pollInterval time.Duration
	cb           TransferCallbacks

	mu        sync.Mutex
	started   bool
	expected  uint64
	received  uint64
	completed bool
	done      chan struct{}
}

func NewReceiver(transport ReceiveTransport, cb TransferCallbacks) (*Receiver, error) {
	if transport == nil {
		return nil, errors.New("otaclient: transport is required")
	}
	if cb.OnChunk == nil {
		return nil, errors.New("otaclient: OnChunk callback required")
	}
	return &Receiver{
		transport:    transport,
		pollInterval: DefaultPollInterval,
		cb:           cb,
		done:         make(chan struct{}),
	}, nil
}

// Run polls the transport until the announced payload has fully
// arrived or ctx is cancelled.
func (r *Receiver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := r.transport.Process(); err != nil {
			return fmt.Errorf("transport step: %w", err)
		}

		for {
			msg, ok := r.transport.Receive()
			if !ok {
				break
			}
			done, err := r.handleChunk(msg)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}

		time.Sleep(r.pollInterval)
	}
}

func (r *Receiver) handleChunk(msg []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		var hdr otawire.Header
		n, err := hdr.Decode(msg)
		if err != nil {
			return false, fmt.Errorf("first chunk: %w", err)
		}
		r.started = true
		r.expected = uint64(hdr.Size)
		msg = msg[n:]
		internal.Debug("transfer announced", internal.Fields{
			internal.FieldBytes: r.expected,
		})
	}

	// Trim anything beyond the announced size rather than overrun the
	// callback's idea of the payload.
	if remain := r.expected - r.received; uint64(len(msg)) > remain {
		msg = msg[:remain]
	}

	if len(msg) > 0 {
		if err := r.cb.OnChunk(r.received, append([]byte(nil), msg...)); err != nil {
			return false, fmt.Errorf("chunk handler: %w", err)
		}
		r.received += uint64(len(msg))
	}

	if r.received >= r.expected && !r.completed {
		r.completed = true
		close(r.done)
		if r.cb.OnComplete != nil {
			r.cb.OnComplete()
		}
		return true, nil
	}
	return false, nil
}

// Wait blocks until the transfer completes or ctx is cancelled. Useful
// when Run is driven from another goroutine.
func (r *Receiver) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
