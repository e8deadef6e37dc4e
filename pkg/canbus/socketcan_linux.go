//go:build linux

package canbus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"

	"golang.org/x/sys/unix"
)

const canFrameSize = 16 // struct can_frame: id(4) dlc(1) pad(3) data(8)

// SocketCAN is a Bus backed by a non-blocking raw SocketCAN socket.
type SocketCAN struct {
	fd    int
	iface string

	mu     sync.Mutex
	closed bool
}

// OpenSocketCAN binds a raw CAN socket to the named interface (e.g.
// "can0", "vcan0") and puts it in non-blocking mode so ReadFrame can be
// polled from the transport's Process step.
func OpenSocketCAN(iface string) (*SocketCAN, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("lookup interface %q: %w", iface, err)
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("open can socket: %w", err)
	}

	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: ifi.Index}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %q: %w", iface, err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set nonblock: %w", err)
	}

	return &SocketCAN{fd: fd, iface: iface}, nil
}

func (s *SocketCAN) WriteFrame(f Frame) error {
	if len(f.Data) > MaxDataLen {
		return ErrFrameTooLong
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrBusClosed
	}

	var buf [canFrameSize]byte
	id := f.ID
	if f.Extended {
		id = (id & unix.CAN_EFF_MASK) | unix.CAN_EFF_FLAG
	} else {
		id &= unix.CAN_SFF_MASK
	}
	binary.LittleEndian.PutUint32(buf[0:4], id)
	buf[4] = byte(len(f.Data))
	copy(buf[8:], f.Data)

	if _, err := unix.Write(s.fd, buf[:]); err != nil {
		return fmt.Errorf("write can frame on %s: %w", s.iface, err)
	}
	return nil
}

func (s *SocketCAN) ReadFrame() (Frame, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Frame{}, false, ErrBusClosed
	}

	var buf [canFrameSize]byte
	n, err := unix.Read(s.fd, buf[:])
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return Frame{}, false, nil
		}
		return Frame{}, false, fmt.Errorf("read can frame on %s: %w", s.iface, err)
	}
	if n < canFrameSize {
		return Frame{}, false, fmt.Errorf("short can frame: %d bytes", n)
	}

	rawID := binary.LittleEndian.Uint32(buf[0:4])
	dlc := int(buf[4])
	if dlc > MaxDataLen {
		dlc = MaxDataLen
	}

	f := Frame{
		Extended: rawID&unix.CAN_EFF_FLAG != 0,
		Data:     append([]byte(nil), buf[8:8+dlc]...),
	}
	if f.Extended {
		f.ID = rawID & unix.CAN_EFF_MASK
	} else {
		f.ID = rawID & unix.CAN_SFF_MASK
	}
	return f, true, nil
}

func (s *SocketCAN) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return unix.Close(s.fd)
}
