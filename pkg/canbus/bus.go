package canbus

import (
	"errors"
	"fmt"
)

// MaxDataLen is the payload capacity of a classic CAN data frame.
const MaxDataLen = 8

var (
	ErrBusClosed    = errors.New("canbus: bus is closed")
	ErrFrameTooLong = errors.New("canbus: frame data exceeds 8 bytes")
)

// Frame is a single classic CAN data frame.
type Frame struct {
	ID       uint32
	Extended bool
	Data     []byte
}

func (f Frame) String() string {
	return fmt.Sprintf("can frame id=0x%X len=%d", f.ID, len(f.Data))
}

// Bus is a raw CAN endpoint. Implementations must make WriteFrame and
// ReadFrame safe to call from different goroutines.
type Bus interface {
	// WriteFrame queues one frame for transmission.
	WriteFrame(Frame) error
	// ReadFrame polls for one received frame. It never blocks; ok is
	// false when no frame is pending.
	ReadFrame() (frame Frame, ok bool, err error)
	Close() error
}
