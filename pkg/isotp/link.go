package isotp

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eternal-echo/canota/pkg/canbus"
)

const (
	defaultBufferSize         = maxMessageLen
	defaultFlowControlTimeout = 1 * time.Second
	defaultReceiveTimeout     = 1 * time.Second
)

// Config describes one ISO-TP link over a raw CAN bus.
type Config struct {
	// TxID and RxID are the CAN arbitration IDs used for outgoing and
	// incoming frames. They must differ.
	TxID uint32
	RxID uint32

	// ExtendedID selects 29-bit arbitration IDs.
	ExtendedID bool

	// TxBufferSize and RxBufferSize bound the largest message the link
	// will send or accept. Default and ceiling is 4095 bytes.
	TxBufferSize int
	RxBufferSize int

	// Flow holds the flow-control values advertised to the peer when
	// this link receives, and the local wait-frame tolerance when it
	// sends.
	Flow FlowParams

	// FlowControlTimeout is how long a sender waits for the peer's
	// flow-control answer after a first frame or block boundary.
	FlowControlTimeout time.Duration

	// ReceiveTimeout is the longest gap tolerated between consecutive
	// frames of an incoming message before the partial message is
	// discarded.
	ReceiveTimeout time.Duration
}

type txState int

const (
	txIdle txState = iota
	txWaitFlowControl
	txSending
)

// Link is a single ISO-TP connection. Send queues one message;
// Process must be called repeatedly (at least as often as the
// negotiated separation time requires) to advance frame transmission,
// consume flow control, and reassemble incoming messages. All methods
// are safe for concurrent use.
type Link struct {
	bus canbus.Bus
	cfg Config

	mu sync.Mutex

	// outgoing message state
	txStat        txState
	txBuf         []byte
	txOffset      int
	txSN          byte
	txBlocksLeft  int // CFs allowed before the next flow control; -1 unlimited
	txSTmin       time.Duration
	txNextFrameAt time.Time
	txFCDeadline  time.Time
	txWaits       int

	// incoming message state
	rxActive   bool
	rxBuf      []byte
	rxExpected int
	rxSN       byte
	rxSinceFC  uint8
	rxDeadline time.Time

	inbox [][]byte
}

// NewLink wires a link onto bus. The bus stays owned by the caller.
func NewLink(bus canbus.Bus, cfg Config) (*Link, error) {
	if bus == nil {
		return nil, errors.New("isotp: bus is required")
	}
	if cfg.TxID == cfg.RxID {
		return nil, errors.New("isotp: tx and rx arbitration IDs must differ")
	}
	if cfg.TxBufferSize <= 0 || cfg.TxBufferSize > maxMessageLen {
		cfg.TxBufferSize = defaultBufferSize
	}
	if cfg.RxBufferSize <= 0 || cfg.RxBufferSize > maxMessageLen {
		cfg.RxBufferSize = defaultBufferSize
	}
	if cfg.FlowControlTimeout <= 0 {
		cfg.FlowControlTimeout = defaultFlowControlTimeout
	}
	if cfg.ReceiveTimeout <= 0 {
		cfg.ReceiveTimeout = defaultReceiveTimeout
	}
	return &Link{bus: bus, cfg: cfg}, nil
}

// Send queues one complete message for transmission. Messages of up to
// 7 bytes go out immediately as a single frame; larger ones start a
// multi-frame exchange driven by Process. Send fails with
// ErrInProgress while the previous message still has outstanding
// frames.
func (l *Link) Send(data []byte) error {
	if len(data) == 0 {
		return ErrEmptyPayload
	}
	if len(data) > l.cfg.TxBufferSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrTooLong, len(data), l.cfg.TxBufferSize)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.txStat != txIdle {
		return ErrInProgress
	}

	if len(data) <= singleFrameMaxLen {
		f := encodeSingle(l.cfg.TxID, l.cfg.ExtendedID, data)
		if err := l.bus.WriteFrame(f); err != nil {
			return fmt.Errorf("send single frame: %w", err)
		}
		return nil
	}

	l.txBuf = append(l.txBuf[:0], data...)
	f := encodeFirst(l.cfg.TxID, l.cfg.ExtendedID, len(data), l.txBuf[:firstFrameDataLen])
	if err := l.bus.WriteFrame(f); err != nil {
		return fmt.Errorf("send first frame: %w", err)
	}
	l.txOffset = firstFrameDataLen
	l.txSN = 0
	l.txBlocksLeft = -1
	l.txWaits = 0
	l.txStat = txWaitFlowControl
	l.txFCDeadline = time.Now().Add(l.cfg.FlowControlTimeout)
	return nil
}

// Transmitting reports whether the most recent Send still has frames
// not yet released by the flow-control window.
func (l *Link) Transmitting() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.txStat != txIdle
}

// Receive pops the oldest fully reassembled incoming message, if any.
func (l *Link) Receive() ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.inbox) == 0 {
		return nil, false
	}
	msg := l.inbox[0]
	l.inbox = l.inbox[1:]
	return msg, true
}

// Process performs one non-blocking protocol step: it drains pending
// bus frames, answers first frames and block boundaries with flow
// control, sends due consecutive frames under the negotiated separation
// time, and enforces protocol timeouts. An error aborts the outgoing
// message, leaving the link idle.
func (l *Link) Process() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		f, ok, err := l.bus.ReadFrame()
		if err != nil {
			l.txStat = txIdle
			return fmt.Errorf("read frame: %w", err)
		}
		if !ok {
			break
		}
		if f.ID != l.cfg.RxID {
			continue
		}
		if err := l.handleFrame(f); err != nil {
			return err
		}
	}

	if err := l.advanceSend(); err != nil {
		return err
	}

	now := time.Now()
	if l.txStat == txWaitFlowControl && now.After(l.txFCDeadline) {
		l.txStat = txIdle
		return ErrFlowControlTimeout
	}
	if l.rxActive && now.After(l.rxDeadline) {
		l.resetReceive()
	}
	return nil
}

func (l *Link) handleFrame(f canbus.Frame) error {
	typ, ok := frameType(f)
	if !ok {
		return nil
	}

	switch typ {
	case pciSingle:
		n := int(f.Data[0] & 0x0F)
		if n == 0 || n > len(f.Data)-1 || n > l.cfg.RxBufferSize {
			return nil
		}
		l.resetReceive()
		l.deliver(f.Data[1 : 1+n])

	case pciFirst:
		if len(f.Data) < 2 {
			return nil
		}
		size := int(f.Data[0]&0x0F)<<8 | int(f.Data[1])
		if size <= singleFrameMaxLen {
			return nil
		}
		if size > l.cfg.RxBufferSize {
			l.writeFlowControl(fcOverflow)
			return nil
		}
		l.rxActive = true
		l.rxExpected = size
		l.rxBuf = append(l.rxBuf[:0], f.Data[2:]...)
		l.rxSN = 0
		l.rxSinceFC = 0
		l.rxDeadline = time.Now().Add(l.cfg.ReceiveTimeout)
		l.writeFlowControl(fcContinue)

	case pciConsecutive:
		if !l.rxActive {
			return nil
		}
		sn := f.Data[0] & 0x0F
		if want := (l.rxSN + 1) & 0x0F; sn != want {
			l.resetReceive()
			return ErrWrongSequence
		}
		l.rxSN = sn
		remain := l.rxExpected - len(l.rxBuf)
		take := len(f.Data) - 1
		if take > remain {
			take = remain
		}
		l.rxBuf = append(l.rxBuf, f.Data[1:1+take]...)
		l.rxDeadline = time.Now().Add(l.cfg.ReceiveTimeout)

		if len(l.rxBuf) >= l.rxExpected {
			l.deliver(l.rxBuf)
			l.resetReceive()
			return nil
		}
		if bs := l.cfg.Flow.BlockSize; bs > 0 {
			l.rxSinceFC++
			if l.rxSinceFC >= bs {
				l.rxSinceFC = 0
				l.writeFlowControl(fcContinue)
			}
		}

	case pciFlowControl:
		return l.handleFlowControl(f)
	}
	return nil
}

func (l *Link) handleFlowControl(f canbus.Frame) error {
	if l.txStat == txIdle || len(f.Data) < 3 {
		return nil
	}

	switch f.Data[0] & 0x0F {
	case fcContinue:
		if bs := f.Data[1]; bs == 0 {
			l.txBlocksLeft = -1
		} else {
			l.txBlocksLeft = int(bs)
		}
		l.txSTmin = decodeSTmin(f.Data[2])
		l.txNextFrameAt = time.Now()
		l.txWaits = 0
		l.txStat = txSending

	case fcWait:
		l.txWaits++
		if l.cfg.Flow.WftMax == 0 || l.txWaits > int(l.cfg.Flow.WftMax) {
			l.txStat = txIdle
			return ErrWaitLimit
		}
		l.txFCDeadline = time.Now().Add(l.cfg.FlowControlTimeout)

	case fcOverflow:
		l.txStat = txIdle
		return ErrPeerOverflow
	}
	return nil
}

func (l *Link) advanceSend() error {
	for l.txStat == txSending {
		now := time.Now()
		if now.Before(l.txNextFrameAt) {
			return nil
		}

		n := len(l.txBuf) - l.txOffset
		if n > consecutiveDataLen {
			n = consecutiveDataLen
		}
		l.txSN = (l.txSN + 1) & 0x0F
		f := encodeConsecutive(l.cfg.TxID, l.cfg.ExtendedID, l.txSN, l.txBuf[l.txOffset:l.txOffset+n])
		if err := l.bus.WriteFrame(f); err != nil {
			l.txStat = txIdle
			return fmt.Errorf("send consecutive frame: %w", err)
		}
		l.txOffset += n
		l.txNextFrameAt = now.Add(l.txSTmin)

		if l.txOffset >= len(l.txBuf) {
			l.txStat = txIdle
			return nil
		}
		if l.txBlocksLeft > 0 {
			l.txBlocksLeft--
			if l.txBlocksLeft == 0 {
				l.txStat = txWaitFlowControl
				l.txFCDeadline = time.Now().Add(l.cfg.FlowControlTimeout)
				return nil
			}
		}
	}
	return nil
}

func (l *Link) writeFlowControl(status byte) {
	f := encodeFlowControl(l.cfg.TxID, l.cfg.ExtendedID, status, l.cfg.Flow.BlockSize, l.cfg.Flow.STmin)
	// Flow control failures surface as a peer-side timeout; nothing
	// useful to do with the error here.
	_ = l.bus.WriteFrame(f)
}

func (l *Link) deliver(msg []byte) {
	l.inbox = append(l.inbox, append([]byte(nil), msg...))
}

func (l *Link) resetReceive() {
	l.rxActive = false
	l.rxExpected = 0
	l.rxSN = 0
	l.rxSinceFC = 0
}
