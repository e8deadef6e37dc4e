package canbus

import (
	"bytes"
	"testing"
)

func TestLoopbackPairDelivery(t *testing.T) {
	a, b := NewLoopbackPair()
	defer a.Close()
	defer b.Close()

	want := Frame{ID: 0x7E0, Data: []byte{0x01, 0x02, 0x03}}
	if err := a.WriteFrame(want); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, ok, err := b.ReadFrame()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !ok {
		t.Fatal("expected a pending frame")
	}
	if got.ID != want.ID || !bytes.Equal(got.Data, want.Data) {
		t.Fatalf("frame mismatch: got %v want %v", got, want)
	}

	if _, ok, err := b.ReadFrame(); err != nil || ok {
		t.Fatalf("expected empty queue, got ok=%v err=%v", ok, err)
	}
}

func TestLoopbackPreservesOrder(t *testing.T) {
	a, b := NewLoopbackPair()
	defer a.Close()
	defer b.Close()

	for i := 0; i < 16; i++ {
		if err := a.WriteFrame(Frame{ID: 0x100, Data: []byte{byte(i)}}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	for i := 0; i < 16; i++ {
		f, ok, err := b.ReadFrame()
		if err != nil || !ok {
			t.Fatalf("read %d: ok=%v err=%v", i, ok, err)
		}
		if f.Data[0] != byte(i) {
			t.Fatalf("out of order: got %d want %d", f.Data[0], i)
		}
	}
}

func TestLoopbackRejectsOversizeAndClosed(t *testing.T) {
	a, b := NewLoopbackPair()
	defer b.Close()

	if err := a.WriteFrame(Frame{ID: 1, Data: make([]byte, 9)}); err != ErrFrameTooLong {
		t.Fatalf("expected ErrFrameTooLong, got %v", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := a.WriteFrame(Frame{ID: 1}); err != ErrBusClosed {
		t.Fatalf("expected ErrBusClosed, got %v", err)
	}
	if _, _, err := a.ReadFrame(); err != ErrBusClosed {
		t.Fatalf("expected ErrBusClosed, got %v", err)
	}
}
