package isotp

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/eternal-echo/canota/pkg/canbus"
)

func newLinkPair(t *testing.T, flowA, flowB FlowParams) (*Link, *Link) {
	t.Helper()
	busA, busB := canbus.NewLoopbackPair()
	t.Cleanup(func() {
		busA.Close()
		busB.Close()
	})

	a, err := NewLink(busA, Config{TxID: 0x7E0, RxID: 0x7E8, Flow: flowA})
	if err != nil {
		t.Fatalf("link a: %v", err)
	}
	b, err := NewLink(busB, Config{TxID: 0x7E8, RxID: 0x7E0, Flow: flowB})
	if err != nil {
		t.Fatalf("link b: %v", err)
	}
	return a, b
}

// pump drives both links until the condition holds or the deadline hits.
func pump(t *testing.T, links []*Link, deadline time.Duration, cond func() bool) {
	t.Helper()
	stop := time.Now().Add(deadline)
	for !cond() {
		if time.Now().After(stop) {
			t.Fatal("condition not reached before deadline")
		}
		for _, l := range links {
			if err := l.Process(); err != nil {
				t.Fatalf("process: %v", err)
			}
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSingleFrameRoundTrip(t *testing.T) {
	a, b := newLinkPair(t, FlowParams{}, FlowParams{BlockSize: 8})

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if err := a.Send(payload); err != nil {
		t.Fatalf("send: %v", err)
	}
	if a.Transmitting() {
		t.Fatal("single frame should not leave the link transmitting")
	}

	var got []byte
	pump(t, []*Link{a, b}, time.Second, func() bool {
		msg, ok := b.Receive()
		if ok {
			got = msg
		}
		return ok
	})
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: got %x want %x", got, payload)
	}
}

func TestMultiFrameRoundTrip(t *testing.T) {
	a, b := newLinkPair(t, FlowParams{}, FlowParams{BlockSize: 4})

	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}
	if err := a.Send(payload); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !a.Transmitting() {
		t.Fatal("multi frame send should leave the link transmitting")
	}

	var got []byte
	pump(t, []*Link{a, b}, 2*time.Second, func() bool {
		msg, ok := b.Receive()
		if ok {
			got = msg
		}
		return ok
	})
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch after reassembly")
	}
	if a.Transmitting() {
		t.Fatal("link should be drained after full reassembly")
	}
}

func TestSendRejections(t *testing.T) {
	a, _ := newLinkPair(t, FlowParams{}, FlowParams{})

	if err := a.Send(nil); !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("empty payload: got %v", err)
	}
	if err := a.Send(make([]byte, maxMessageLen+1)); !errors.Is(err, ErrTooLong) {
		t.Fatalf("oversize payload: got %v", err)
	}

	if err := a.Send(make([]byte, 64)); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := a.Send(make([]byte, 64)); !errors.Is(err, ErrInProgress) {
		t.Fatalf("second send: got %v", err)
	}
}

func TestFlowControlTimeoutAbortsSend(t *testing.T) {
	busA, busB := canbus.NewLoopbackPair()
	defer busA.Close()
	defer busB.Close()

	a, err := NewLink(busA, Config{
		TxID:               0x7E0,
		RxID:               0x7E8,
		FlowControlTimeout: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("link: %v", err)
	}

	if err := a.Send(make([]byte, 64)); err != nil {
		t.Fatalf("send: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		err := a.Process()
		if errors.Is(err, ErrFlowControlTimeout) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected process error: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("flow control timeout never fired")
		}
		time.Sleep(time.Millisecond)
	}
	if a.Transmitting() {
		t.Fatal("link should be idle after flow control timeout")
	}
}

func TestPeerOverflowAbortsSend(t *testing.T) {
	busA, busB := canbus.NewLoopbackPair()
	defer busA.Close()
	defer busB.Close()

	a, err := NewLink(busA, Config{TxID: 0x7E0, RxID: 0x7E8})
	if err != nil {
		t.Fatalf("link a: %v", err)
	}
	b, err := NewLink(busB, Config{TxID: 0x7E8, RxID: 0x7E0, RxBufferSize: 32})
	if err != nil {
		t.Fatalf("link b: %v", err)
	}

	if err := a.Send(make([]byte, 64)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := b.Process(); err != nil {
		t.Fatalf("peer process: %v", err)
	}

	if err := a.Process(); !errors.Is(err, ErrPeerOverflow) {
		t.Fatalf("expected ErrPeerOverflow, got %v", err)
	}
	if a.Transmitting() {
		t.Fatal("link should be idle after peer overflow")
	}
}

func TestWaitFramesRejectedWhenDisabled(t *testing.T) {
	busA, raw := canbus.NewLoopbackPair()
	defer busA.Close()
	defer raw.Close()

	// WftMax 0 disables wait-frame extensions entirely.
	a, err := NewLink(busA, Config{TxID: 0x7E0, RxID: 0x7E8, Flow: FlowParams{WftMax: 0}})
	if err != nil {
		t.Fatalf("link: %v", err)
	}

	if err := a.Send(make([]byte, 64)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, ok, _ := raw.ReadFrame(); !ok {
		t.Fatal("expected a first frame on the wire")
	}

	wait := canbus.Frame{ID: 0x7E8, Data: []byte{0x31, 0x00, 0x00}}
	if err := raw.WriteFrame(wait); err != nil {
		t.Fatalf("write wait frame: %v", err)
	}

	if err := a.Process(); !errors.Is(err, ErrWaitLimit) {
		t.Fatalf("expected ErrWaitLimit, got %v", err)
	}
	if a.Transmitting() {
		t.Fatal("link should be idle after wait limit")
	}
}

func TestBlockSizePacing(t *testing.T) {
	busA, raw := canbus.NewLoopbackPair()
	defer busA.Close()
	defer raw.Close()

	a, err := NewLink(busA, Config{TxID: 0x7E0, RxID: 0x7E8})
	if err != nil {
		t.Fatalf("link: %v", err)
	}

	// 6 bytes ride the first frame, 24 remain: four consecutive frames.
	if err := a.Send(make([]byte, 30)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, ok, _ := raw.ReadFrame(); !ok {
		t.Fatal("expected a first frame")
	}

	cts := canbus.Frame{ID: 0x7E8, Data: []byte{0x30, 0x02, 0x00}}
	if err := raw.WriteFrame(cts); err != nil {
		t.Fatalf("write cts: %v", err)
	}
	if err := a.Process(); err != nil {
		t.Fatalf("process: %v", err)
	}

	count := 0
	for {
		f, ok, err := raw.ReadFrame()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !ok {
			break
		}
		if f.Data[0]>>4 != 0x2 {
			t.Fatalf("expected consecutive frame, got pci 0x%X", f.Data[0]>>4)
		}
		count++
	}
	if count != 2 {
		t.Fatalf("block size 2 should release exactly 2 consecutive frames, got %d", count)
	}
	if !a.Transmitting() {
		t.Fatal("sender should be waiting for the next flow control frame")
	}

	if err := raw.WriteFrame(cts); err != nil {
		t.Fatalf("write second cts: %v", err)
	}
	if err := a.Process(); err != nil {
		t.Fatalf("process: %v", err)
	}
	count = 0
	for {
		_, ok, err := raw.ReadFrame()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected the final 2 consecutive frames, got %d", count)
	}
	if a.Transmitting() {
		t.Fatal("sender should be drained")
	}
}

func TestSTminDecode(t *testing.T) {
	cases := []struct {
		raw  uint8
		want time.Duration
	}{
		{0x00, 0},
		{0x01, time.Millisecond},
		{0x7F, 127 * time.Millisecond},
		{0xF1, 100 * time.Microsecond},
		{0xF9, 900 * time.Microsecond},
		{0x80, 127 * time.Millisecond}, // reserved
		{0xFA, 127 * time.Millisecond}, // reserved
	}
	for _, tc := range cases {
		if got := decodeSTmin(tc.raw); got != tc.want {
			t.Fatalf("decodeSTmin(0x%02X) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
