package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/eternal-echo/canota/internal"
	"github.com/eternal-echo/canota/pkg/otaclient"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

type EchoCommandOpts struct {
	LinkOpts
	Loop           bool
	TimeoutSeconds float64
}

// EchoCommand runs the device side of the echo workflow: it receives a
// firmware image over the link and immediately sends it back. Useful as
// a bench peer when the real device firmware is not on the bus yet.
func EchoCommand() *cobra.Command {
	opts := EchoCommandOpts{}

	cmd := &cobra.Command{
		Use:   "echo",
		Short: "Receive an image and send it back (bench peer)",
		RunE: func(cmd *cobra.Command, args []string) error {
			runtimeOpts := opts
			return runEchoCommand(cmd, &runtimeOpts)
		},
	}

	bindLinkFlags(cmd, &opts.LinkOpts)
	cmd.Flags().BoolVar(&opts.Loop, "loop", opts.Loop, "Keep serving echo rounds until interrupted")
	cmd.Flags().Float64Var(&opts.TimeoutSeconds, "timeout", opts.TimeoutSeconds, "Per-chunk drain timeout in seconds when echoing back")

	return cmd
}

func runEchoCommand(cmd *cobra.Command, opts *EchoCommandOpts) error {
	appCfg := GetAppConfig(cmd)
	if appCfg == nil {
		return errors.New("app config not found; did PersistentPreRun execute?")
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

	chunkTimeout := otaclient.DefaultChunkTimeout
	if cmd.Flags().Changed("timeout") {
		if opts.TimeoutSeconds <= 0 {
			return errors.New("--timeout must be > 0")
		}
		chunkTimeout = time.Duration(opts.TimeoutSeconds * float64(time.Second))
	} else if appCfg.TimeoutSeconds > 0 {
		chunkTimeout = time.Duration(appCfg.TimeoutSeconds * float64(time.Second))
	}

	internal.Info("echo peer listening", internal.Fields{
		internal.FieldInterface: iface,
		internal.FieldTxID:      fmt.Sprintf("0x%X", linkCfg.TxID),
		internal.FieldRxID:      fmt.Sprintf("0x%X", linkCfg.RxID),
	})

	for {
		sink := otaclient.NewBufferSink(0)
		recv, err := otaclient.NewReceiver(link, sink.Callbacks())
		if err != nil {
			return err
		}
		if err := recv.Run(cmd.Context()); err != nil {
			return fmt.Errorf("receive image: %w", err)
		}

		image := sink.Bytes()
		internal.Info("image received, echoing back", internal.Fields{
			internal.FieldBytes: len(image),
		})

		sender, err := otaclient.NewSender(link, otaclient.TransferParams{
			ChunkSize:    appCfg.ChunkSize,
			ChunkTimeout: chunkTimeout,
		})
		if err != nil {
			return err
		}
		res, err := sender.Transfer(image)
		if err != nil {
			return fmt.Errorf("echo back: %w", err)
		}
		pterm.Success.Printfln("echoed %d bytes in %d chunks", res.BytesSent, res.ChunksSent)

		if !opts.Loop {
			return nil
		}
	}
}
