package otaclient

import (
	"errors"
	"fmt"
	"time"

	"github.com/eternal-echo/canota/internal"
	"github.com/eternal-echo/canota/pkg/otawire"
	"github.com/google/uuid"
)

// Sender drives one firmware payload through the segmentation
// transport: the 8-byte header rides the first chunk, the rest of the
// payload follows in ChunkSize slices, strictly one chunk in flight at
// a time.
type Sender struct {
	transport Transport
	params    TransferParams
}

func NewSender(transport Transport, params TransferParams) (*Sender, error) {
	if transport == nil {
		return nil, errors.New("otaclient: transport is required")
	}
	if params.ChunkSize == 0 {
		params.ChunkSize = DefaultChunkSize
	}
	if params.ChunkSize <= otawire.HeaderLen {
		return nil, fmt.Errorf("otaclient: chunk size %d cannot carry the %d-byte header",
			params.ChunkSize, otawire.HeaderLen)
	}
	if params.ChunkTimeout <= 0 {
		params.ChunkTimeout = DefaultChunkTimeout
	}
	if params.PollInterval <= 0 {
		params.PollInterval = DefaultPollInterval
	}
	if params.ID == "" {
		params.ID = uuid.New().String()
	}
	return &Sender{transport: transport, params: params}, nil
}

// Transfer sends the whole payload and blocks until it is drained or a
// chunk fails. On failure the Result counters stay frozen where the
// transfer stopped; there is no retry and no partial resumption.
func (s *Sender) Transfer(payload []byte) (Result, error) {
	var res Result

	var hdr [otawire.HeaderLen]byte
	if _, err := (otawire.Header{Size: uint32(len(payload))}).Encode(hdr[:]); err != nil {
		return res, err
	}

	n0 := otawire.FirstChunkSplit(otawire.HeaderLen, s.params.ChunkSize)
	if n0 > len(payload) {
		n0 = len(payload)
	}
	first := make([]byte, 0, otawire.HeaderLen+n0)
	first = append(first, hdr[:]...)
	first = append(first, payload[:n0]...)

	internal.Debug("sending first chunk", internal.Fields{
		internal.FieldSession: s.params.ID,
		internal.FieldBytes:   len(first),
	})
	if err := s.sendChunk(1, first); err != nil {
		return res, err
	}
	res.ChunksSent = 1
	res.BytesSent = n0
	s.reportChunk(1, len(first), res.BytesSent, len(payload))

	off := n0
	for off < len(payload) {
		end := off + s.params.ChunkSize
		if end > len(payload) {
			end = len(payload)
		}
		chunk := res.ChunksSent + 1

		internal.Debug("sending chunk", internal.Fields{
			internal.FieldSession: s.params.ID,
			internal.FieldChunk:   chunk,
			internal.FieldBytes:   end - off,
		})
		if err := s.sendChunk(chunk, payload[off:end]); err != nil {
			return res, err
		}
		res.BytesSent += end - off
		res.ChunksSent++
		s.reportChunk(chunk, end-off, res.BytesSent, len(payload))

		// One extra step drains residual flow-control bookkeeping
		// before the next chunk is queued.
		if err := s.transport.Process(); err != nil {
			return res, fmt.Errorf("transport step after chunk %d: %w", chunk, err)
		}
		off = end
	}

	internal.Info("transfer complete", internal.Fields{
		internal.FieldSession: s.params.ID,
		internal.FieldChunk:   res.ChunksSent,
		internal.FieldBytes:   res.BytesSent,
	})
	return res, nil
}

// sendChunk hands one chunk to the transport and polls it until every
// frame has been released by the flow-control window. The wait is
// deliberately a blocking submit/poll/sleep loop with a wall-clock
// timeout; a timed-out chunk aborts the transfer with no abort
// handshake toward the receiver.
func (s *Sender) sendChunk(chunk int, data []byte) error {
	start := time.Now()
	if err := s.transport.Send(data); err != nil {
		return fmt.Errorf("submit chunk %d: %w", chunk, err)
	}

	for s.transport.Transmitting() {
		if err := s.transport.Process(); err != nil {
			return fmt.Errorf("transport error on chunk %d: %w", chunk, err)
		}
		if elapsed := time.Since(start); elapsed > s.params.ChunkTimeout {
			return &ChunkTimeoutError{Chunk: chunk, Elapsed: elapsed, Timeout: s.params.ChunkTimeout}
		}
		time.Sleep(s.params.PollInterval)
	}

	if s.params.Metrics != nil {
		s.params.Metrics.ObserveChunk(len(data), time.Since(start))
	}
	return nil
}

func (s *Sender) reportChunk(chunk, chunkBytes, sentBytes, totalBytes int) {
	if s.params.Callbacks.OnChunkSent != nil {
		s.params.Callbacks.OnChunkSent(chunk, chunkBytes, sentBytes, totalBytes)
	}
}
