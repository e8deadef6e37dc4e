package output

import (
	"math"
	"strings"
	"sync"

	"github.com/pterm/pterm"
)

// TransferProgress renders a single progress bar tracking payload bytes
// handed to the transport.
type TransferProgress struct {
	mu      sync.Mutex
	bar     *pterm.ProgressbarPrinter
	started bool
}

func NewTransferProgress(title string, totalBytes int) *TransferProgress {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "firmware"
	}
	bar, err := pterm.DefaultProgressbar.
		WithTitle(title).
		WithTotal(clampToInt(totalBytes)).
		WithShowElapsedTime(true).
		WithShowCount(false).
		WithRemoveWhenDone(false).
		Start()
	if err != nil {
		return &TransferProgress{}
	}
	return &TransferProgress{bar: bar, started: true}
}

// Add advances the bar by n payload bytes.
func (p *TransferProgress) Add(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started && p.bar != nil {
		p.bar.Add(n)
	}
}

func (p *TransferProgress) Stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started && p.bar != nil {
		_, _ = p.bar.Stop()
	}
	p.started = false
}

func clampToInt(v int) int {
	if v <= 0 {
		return 1
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return v
}
