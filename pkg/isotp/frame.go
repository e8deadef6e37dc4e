package isotp

import (
	"github.com/eternal-echo/canota/pkg/canbus"
)

// Protocol control information types, high nibble of the first payload
// byte of every ISO-TP frame.
const (
	pciSingle      byte = 0x0
	pciFirst       byte = 0x1
	pciConsecutive byte = 0x2
	pciFlowControl byte = 0x3
)

// Flow control status values.
const (
	fcContinue byte = 0x0
	fcWait     byte = 0x1
	fcOverflow byte = 0x2
)

const (
	singleFrameMaxLen  = 7
	firstFrameDataLen  = 6
	consecutiveDataLen = 7

	// maxMessageLen is the 12-bit length ceiling of a classic first frame.
	maxMessageLen = 0xFFF
)

func encodeSingle(id uint32, extended bool, payload []byte) canbus.Frame {
	data := make([]byte, 1+len(payload))
	data[0] = pciSingle<<4 | byte(len(payload))
	copy(data[1:], payload)
	return canbus.Frame{ID: id, Extended: extended, Data: data}
}

func encodeFirst(id uint32, extended bool, total int, payload []byte) canbus.Frame {
	data := make([]byte, 2+len(payload))
	data[0] = pciFirst<<4 | byte(total>>8)&0x0F
	data[1] = byte(total)
	copy(data[2:], payload)
	return canbus.Frame{ID: id, Extended: extended, Data: data}
}

func encodeConsecutive(id uint32, extended bool, sn byte, payload []byte) canbus.Frame {
	data := make([]byte, 1+len(payload))
	data[0] = pciConsecutive<<4 | sn&0x0F
	copy(data[1:], payload)
	return canbus.Frame{ID: id, Extended: extended, Data: data}
}

func encodeFlowControl(id uint32, extended bool, status, blockSize, stmin byte) canbus.Frame {
	return canbus.Frame{
		ID:       id,
		Extended: extended,
		Data:     []byte{pciFlowControl<<4 | status&0x0F, blockSize, stmin},
	}
}

func frameType(f canbus.Frame) (byte, bool) {
	if len(f.Data) == 0 {
		return 0, false
	}
	return f.Data[0] >> 4, true
}
