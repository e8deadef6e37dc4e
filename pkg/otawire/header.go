// Package otawire implements the chunked OTA application protocol: an
// 8-byte header prepended to the first transport chunk, and the rules
// for splitting a firmware payload across fixed-size chunks.
package otawire

import (
	"encoding/binary"
	"errors"
)

const (
	Magic0 byte = 0x4F // 'O'
	Magic1 byte = 0x54 // 'T'

	// HeaderLen is the fixed length of the transfer header:
	// magic(2) + size(4, little endian) + reserved(2).
	HeaderLen = 8
)

var (
	ErrShortBuffer = errors.New("otawire: buffer too small")
	ErrBadMagic    = errors.New("otawire: bad header magic")
)

// Header announces the total payload size to the receiver. Sizes beyond
// 32 bits are not representable in this protocol version.
type Header struct {
	Size uint32
}

// Encode writes the 8-byte header into dst.
func (h Header) Encode(dst []byte) (int, error) {
	if len(dst) < HeaderLen {
		return 0, ErrShortBuffer
	}
	dst[0] = Magic0
	dst[1] = Magic1
	binary.LittleEndian.PutUint32(dst[2:6], h.Size)
	dst[6] = 0
	dst[7] = 0
	return HeaderLen, nil
}

// Decode parses a header from the start of src. The reserved field is
// not enforced so future protocol revisions can use it.
func (h *Header) Decode(src []byte) (int, error) {
	if len(src) < HeaderLen {
		return 0, ErrShortBuffer
	}
	if src[0] != Magic0 || src[1] != Magic1 {
		return 0, ErrBadMagic
	}
	h.Size = binary.LittleEndian.Uint32(src[2:6])
	return HeaderLen, nil
}
