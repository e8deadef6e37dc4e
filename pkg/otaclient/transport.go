package otaclient

// Transport is the segmentation transport the sender drives. It splits
// each chunk into link-layer frames under a windowed flow-control
// handshake; the sender only submits chunks and polls.
//
// The caller must invoke Process at least as often as the negotiated
// separation time requires; the transport does no background
// scheduling of its own.
type Transport interface {
	// Send enqueues one complete chunk for framing and transmission.
	// It may fail synchronously when the transport is not ready or the
	// chunk is invalid for it.
	Send(data []byte) error

	// Process performs one non-blocking protocol step: frame
	// transmission, flow-control handling, separation-time enforcement.
	Process() error

	// Transmitting reports whether the most recent Send still has
	// frames not yet released by the flow-control window.
	Transmitting() bool
}

// ReceiveTransport is the receiving half used by Receiver.
type ReceiveTransport interface {
	Process() error
	Receive() (msg []byte, ok bool)
}
