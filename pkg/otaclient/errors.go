package otaclient

import (
	"fmt"
	"time"
)

// ChunkTimeoutError reports a chunk whose frames did not drain the
// transport's transmit queue within the configured timeout. The
// transfer is aborted; the transport is left as-is for the caller to
// reset or close.
type ChunkTimeoutError struct {
	Chunk   int
	Elapsed time.Duration
	Timeout time.Duration
}

func (e *ChunkTimeoutError) Error() string {
	return fmt.Sprintf("chunk %d did not drain within %s (elapsed %s)",
		e.Chunk, e.Timeout, e.Elapsed.Round(time.Millisecond))
}
