package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/go-units"
	"github.com/eternal-echo/canota/cli/output"
	"github.com/eternal-echo/canota/internal"
	"github.com/eternal-echo/canota/pkg/metrics"
	"github.com/eternal-echo/canota/pkg/otaclient"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

type SendCommandOpts struct {
	LinkOpts
	ChunkSizeRaw   string
	TimeoutSeconds float64
	ExpectEcho     bool
	EchoTimeout    time.Duration
	ShowProgress   bool
}

func SendCommand() *cobra.Command {
	opts := SendCommandOpts{ShowProgress: true, EchoTimeout: 60 * time.Second}

	cmd := &cobra.Command{
		Use:   "send <firmware-file>",
		Short: "Send a firmware image to the device",
		Long:  "Send streams the firmware image over the ISO-TP link in fixed-size chunks, waiting for each chunk to drain before queueing the next.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runtimeOpts := opts
			return runSendCommand(cmd, args[0], &runtimeOpts)
		},
	}

	bindLinkFlags(cmd, &opts.LinkOpts)
	cmd.Flags().StringVar(&opts.ChunkSizeRaw, "chunk-size", opts.ChunkSizeRaw, "Chunk size (e.g. 2048, 2kb); must exceed the 8-byte header")
	cmd.Flags().Float64Var(&opts.TimeoutSeconds, "timeout", opts.TimeoutSeconds, "Per-chunk drain timeout in seconds")
	cmd.Flags().BoolVar(&opts.ExpectEcho, "expect-echo", opts.ExpectEcho, "Wait for the device to echo the image back and verify it")
	cmd.Flags().DurationVar(&opts.EchoTimeout, "echo-timeout", opts.EchoTimeout, "How long to wait for the echoed image")
	cmd.Flags().BoolVar(&opts.ShowProgress, "progress", opts.ShowProgress, "Render a progress bar")

	return cmd
}

func runSendCommand(cmd *cobra.Command, firmwarePath string, opts *SendCommandOpts) error {
	appCfg := GetAppConfig(cmd)
	if appCfg == nil {
		return errors.New("app config not found; did PersistentPreRun execute?")
	}

	payload, err := os.ReadFile(firmwarePath)
	if err != nil {
		return fmt.Errorf("read firmware image: %w", err)
	}

	params, err := resolveTransferParams(cmd, appCfg, opts)
	if err != nil {
		return err
	}

	iface, linkCfg, err := resolveLinkConfig(cmd, appCfg, &opts.LinkOpts)
	if err != nil {
		return err
	}

	link, bus, err := openLink(iface, linkCfg)
	if err != nil {
		return err
	}
	defer closeBus(bus, iface)

	internal.Info("starting firmware transfer", internal.Fields{
		internal.FieldSession:   params.ID,
		internal.FieldInterface: iface,
		internal.FieldTxID:      fmt.Sprintf("0x%X", linkCfg.TxID),
		internal.FieldRxID:      fmt.Sprintf("0x%X", linkCfg.RxID),
		internal.FieldBytes:     len(payload),
	})

	var bar *output.TransferProgress
	if opts.ShowProgress {
		bar = output.NewTransferProgress(filepath.Base(firmwarePath), len(payload))
		prev := params.Callbacks.OnChunkSent
		params.Callbacks.OnChunkSent = func(chunk, chunkBytes, sentBytes, totalBytes int) {
			bar.Add(chunkBytes)
			if prev != nil {
				prev(chunk, chunkBytes, sentBytes, totalBytes)
			}
		}
	}

	sender, err := otaclient.NewSender(link, params)
	if err != nil {
		if bar != nil {
			bar.Stop()
		}
		return err
	}

	res, err := sender.Transfer(payload)
	if bar != nil {
		bar.Stop()
	}
	if err != nil {
		internal.Error("firmware transfer failed", internal.Fields{
			internal.FieldSession: params.ID,
			internal.FieldChunk:   res.ChunksSent,
			internal.FieldBytes:   res.BytesSent,
			internal.FieldError:   err.Error(),
		})
		return err
	}

	pterm.Success.Printfln("sent %d bytes in %d chunks", res.BytesSent, res.ChunksSent)
	if params.Metrics != nil {
		output.RenderTransferSummary("Transfer Metrics", params.Metrics.Snapshot())
	}

	if opts.ExpectEcho {
		return verifyEcho(cmd.Context(), link, payload, opts.EchoTimeout)
	}
	return nil
}

func resolveTransferParams(cmd *cobra.Command, cfg *internal.AppConfig, opts *SendCommandOpts) (otaclient.TransferParams, error) {
	params := otaclient.TransferParams{
		ID:        cfg.ClientUuid,
		ChunkSize: cfg.ChunkSize,
		Metrics:   metrics.NewTransferCollector(""),
	}
	if cfg.TimeoutSeconds > 0 {
		params.ChunkTimeout = time.Duration(cfg.TimeoutSeconds * float64(time.Second))
	}

	if cmd.Flags().Changed("chunk-size") {
		size, err := units.RAMInBytes(opts.ChunkSizeRaw)
		if err != nil {
			return params, fmt.Errorf("--chunk-size: %w", err)
		}
		params.ChunkSize = int(size)
	}
	if cmd.Flags().Changed("timeout") {
		if opts.TimeoutSeconds <= 0 {
			return params, errors.New("--timeout must be > 0")
		}
		params.ChunkTimeout = time.Duration(opts.TimeoutSeconds * float64(time.Second))
	}
	return params, nil
}

// verifyEcho receives the image the device sends back and compares it
// byte for byte against what went out.
func verifyEcho(ctx context.Context, transport otaclient.ReceiveTransport, sent []byte, timeout time.Duration) error {
	internal.Info("waiting for echoed image", internal.Fields{
		internal.FieldBytes: len(sent),
	})

	sink := otaclient.NewBufferSink(len(sent))
	recv, err := otaclient.NewReceiver(transport, sink.Callbacks())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := recv.Run(ctx); err != nil {
		return fmt.Errorf("receive echo: %w", err)
	}

	if !bytes.Equal(sink.Bytes(), sent) {
		return errors.New("echoed image differs from the sent firmware")
	}
	pterm.Success.Println("echoed image matches the sent firmware")
	return nil
}
