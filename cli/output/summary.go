package output

import (
	"fmt"
	"time"

	"github.com/eternal-echo/canota/pkg/metrics"
	"github.com/pterm/pterm"
)

// RenderTransferSummary prints the final transfer statistics as a table.
func RenderTransferSummary(title string, snap metrics.TransferSnapshot) {
	data := pterm.TableData{
		{"Metric", "Value"},
		{"Bytes Sent", formatBytes(snap.BytesSent)},
		{"Chunks Sent", fmt.Sprintf("%d", snap.ChunksSent)},
		{"Throughput", formatMbps(snap.ThroughputMbps)},
		{"Last Chunk Drain", formatMillis(snap.LastDrainMs)},
		{"Avg Chunk Drain", formatMillis(snap.AvgDrainMs)},
		{"Elapsed", formatDuration(snap.Elapsed)},
	}

	pterm.Println()
	pterm.DefaultSection.Println(title)
	if table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender(); err == nil {
		fmt.Println(table)
	}
}

func formatMbps(mbps float64) string {
	if mbps <= 0 {
		return "--"
	}
	return fmt.Sprintf("%.3f Mb/s", mbps)
}

func formatMillis(ms float64) string {
	if ms <= 0 {
		return "--"
	}
	return fmt.Sprintf("%.2f ms", ms)
}

func formatBytes(b uint64) string {
	const kb = 1024
	const mb = kb * 1024
	switch {
	case b >= mb:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(kb))
	case b > 0:
		return fmt.Sprintf("%d B", b)
	default:
		return "0 B"
	}
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "--"
	}
	if d < time.Second {
		return fmt.Sprintf("%d ms", d.Milliseconds())
	}
	return d.Truncate(100 * time.Millisecond).String()
}
