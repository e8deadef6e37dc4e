package otawire

// FirstChunkSplit returns how many payload bytes ride along with the
// header in the first chunk, so that header plus payload never exceeds
// maxChunkSize. The result is clamped by the payload length when
// slicing.
func FirstChunkSplit(headerLen, maxChunkSize int) int {
	n := maxChunkSize - headerLen
	if n < 0 {
		return 0
	}
	return n
}

// ChunkCount is the total number of transport chunks a payload of
// payloadLen bytes produces, counting the header chunk. It is at least
// one: a zero-length payload still sends the bare header.
func ChunkCount(maxChunkSize, payloadLen int) int {
	if maxChunkSize <= 0 {
		return 0
	}
	n0 := FirstChunkSplit(HeaderLen, maxChunkSize)
	if n0 > payloadLen {
		n0 = payloadLen
	}
	rest := payloadLen - n0
	return 1 + (rest+maxChunkSize-1)/maxChunkSize
}
