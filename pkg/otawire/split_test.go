package otawire

import (
	"bytes"
	"testing"
)

func TestFirstChunkSplit(t *testing.T) {
	cases := []struct {
		maxChunk int
		want     int
	}{
		{2048, 2040},
		{HeaderLen, 0},
		{HeaderLen + 1, 1},
		{4, 0}, // smaller than the header still clamps to zero
	}
	for _, tc := range cases {
		if got := FirstChunkSplit(HeaderLen, tc.maxChunk); got != tc.want {
			t.Fatalf("FirstChunkSplit(%d, %d) = %d, want %d", HeaderLen, tc.maxChunk, got, tc.want)
		}
	}
}

func TestChunkCountBoundaries(t *testing.T) {
	const maxChunk = 2048
	cases := []struct {
		payloadLen int
		want       int
	}{
		{0, 1},                        // header only
		{maxChunk - HeaderLen, 1},     // exactly fills the first chunk
		{maxChunk - HeaderLen + 1, 2}, // one byte spills into a second chunk
		{64, 1},
		{5000, 3},
	}
	for _, tc := range cases {
		if got := ChunkCount(maxChunk, tc.payloadLen); got != tc.want {
			t.Fatalf("ChunkCount(%d, %d) = %d, want %d", maxChunk, tc.payloadLen, got, tc.want)
		}
	}
}

// The concatenation of the first chunk's payload portion and every
// following chunk must reproduce the payload exactly, for any chunk
// size that can carry the header.
func TestSplitRoundTripLaw(t *testing.T) {
	payload := make([]byte, 733)
	for i := range payload {
		payload[i] = byte(i * 31)
	}

	for maxChunk := HeaderLen + 1; maxChunk <= 256; maxChunk++ {
		n0 := FirstChunkSplit(HeaderLen, maxChunk)
		if n0 > len(payload) {
			n0 = len(payload)
		}
		if HeaderLen+n0 > maxChunk {
			t.Fatalf("maxChunk %d: first unit %d exceeds limit", maxChunk, HeaderLen+n0)
		}

		var rebuilt []byte
		rebuilt = append(rebuilt, payload[:n0]...)
		chunks := 1
		for off := n0; off < len(payload); off += maxChunk {
			end := off + maxChunk
			if end > len(payload) {
				end = len(payload)
			}
			rebuilt = append(rebuilt, payload[off:end]...)
			chunks++
		}

		if !bytes.Equal(rebuilt, payload) {
			t.Fatalf("maxChunk %d: reassembled payload differs", maxChunk)
		}
		if want := ChunkCount(maxChunk, len(payload)); chunks != want {
			t.Fatalf("maxChunk %d: walked %d chunks, ChunkCount says %d", maxChunk, chunks, want)
		}
	}
}
