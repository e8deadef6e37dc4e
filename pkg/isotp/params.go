package isotp

import "time"

// FlowParams are the flow-control values a receiver advertises to the
// sending peer. They are forwarded verbatim onto the wire.
type FlowParams struct {
	// BlockSize is the number of consecutive frames the peer may send
	// before waiting for the next flow-control frame. 0 means the whole
	// message may be sent without further flow control.
	BlockSize uint8

	// STmin is the raw separation-time byte: 0x00-0x7F milliseconds,
	// 0xF1-0xF9 for 100-900 microseconds. Other values are reserved and
	// treated as the 127 ms maximum, per ISO 15765-2.
	STmin uint8

	// WftMax bounds how many consecutive WAIT flow-control frames the
	// sending side tolerates before aborting. 0 disables wait-frame
	// extensions entirely.
	WftMax uint8
}

// decodeSTmin maps the raw STmin byte to a delay.
func decodeSTmin(raw uint8) time.Duration {
	switch {
	case raw <= 0x7F:
		return time.Duration(raw) * time.Millisecond
	case raw >= 0xF1 && raw <= 0xF9:
		return time.Duration(raw-0xF0) * 100 * time.Microsecond
	default:
		return 127 * time.Millisecond
	}
}
