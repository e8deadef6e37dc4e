//go:build !linux

package canbus

import "errors"

// SocketCAN needs the Linux SocketCAN stack; on other platforms opening
// always fails and the methods are never reachable.
type SocketCAN struct{}

func OpenSocketCAN(iface string) (*SocketCAN, error) {
	return nil, errors.New("canbus: socketcan is only available on linux")
}

func (s *SocketCAN) WriteFrame(Frame) error          { return ErrBusClosed }
func (s *SocketCAN) ReadFrame() (Frame, bool, error) { return Frame{}, false, ErrBusClosed }
func (s *SocketCAN) Close() error                    { return nil }
