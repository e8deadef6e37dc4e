package otaclient

import (
	"time"

	"github.com/eternal-echo/canota/pkg/metrics"
)

const (
	// DefaultChunkSize matches the receiver-side reassembly buffer of
	// the reference firmware.
	DefaultChunkSize = 2048

	// DefaultChunkTimeout bounds how long one chunk may take to drain
	// the transport's transmit queue.
	DefaultChunkTimeout = 15 * time.Second

	// DefaultPollInterval is the sleep between drain polls; short
	// enough to honor tight separation-time values.
	DefaultPollInterval = time.Millisecond
)

// TransferParams configures one firmware transfer session.
type TransferParams struct {
	// ID tags log lines and metrics for this session. Assigned a random
	// UUID by NewSender when empty.
	ID string

	// ChunkSize is the largest unit handed to the transport per Send.
	// It must exceed the 8-byte header and must not exceed the
	// transport's own message limit.
	ChunkSize int

	// ChunkTimeout aborts the transfer when a single chunk does not
	// drain in time. There is no retry: the caller restarts the whole
	// transfer from offset zero if it wants another attempt.
	ChunkTimeout time.Duration

	// PollInterval is the sleep between transport polls while waiting
	// for a chunk to drain.
	PollInterval time.Duration

	// Metrics optionally records per-chunk counters and timings.
	Metrics *metrics.TransferCollector

	// Callbacks reports per-chunk progress. Optional.
	Callbacks SenderCallbacks
}

// SenderCallbacks observes transfer progress.
type SenderCallbacks struct {
	// OnChunkSent fires after each chunk fully drains. chunk starts at
	// 1 for the header chunk; sentBytes counts payload bytes only.
	OnChunkSent func(chunk int, chunkBytes int, sentBytes int, totalBytes int)
}

// Result summarizes a finished or aborted transfer. On failure the
// counters stay frozen at the point of failure.
type Result struct {
	ChunksSent int
	BytesSent  int
}
