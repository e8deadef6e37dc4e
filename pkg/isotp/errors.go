package isotp

import "errors"

var (
	// ErrInProgress means Send was called while a previous message still
	// has frames outstanding.
	ErrInProgress = errors.New("isotp: transmission already in progress")

	// ErrTooLong means the payload exceeds the link's send buffer or the
	// 4095-byte first-frame length field.
	ErrTooLong = errors.New("isotp: payload too long for link")

	// ErrEmptyPayload means Send was called with no data.
	ErrEmptyPayload = errors.New("isotp: empty payload")

	// ErrFlowControlTimeout means the peer did not answer a first frame
	// or block boundary with a flow-control frame in time.
	ErrFlowControlTimeout = errors.New("isotp: flow control timeout")

	// ErrWaitLimit means the peer sent more WAIT flow-control frames than
	// the configured maximum allows.
	ErrWaitLimit = errors.New("isotp: peer exceeded wait frame limit")

	// ErrPeerOverflow means the peer reported it cannot buffer the
	// announced message size.
	ErrPeerOverflow = errors.New("isotp: peer buffer overflow")

	// ErrWrongSequence means a consecutive frame arrived out of order;
	// the partial message is discarded.
	ErrWrongSequence = errors.New("isotp: unexpected consecutive frame sequence number")
)
