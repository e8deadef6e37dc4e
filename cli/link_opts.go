package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eternal-echo/canota/internal"
	"github.com/eternal-echo/canota/pkg/canbus"
	"github.com/eternal-echo/canota/pkg/isotp"
	"github.com/spf13/cobra"
)

// LinkOpts carries the per-command overrides for the CAN interface and
// the ISO-TP addressing. Empty values fall back to the app config.
type LinkOpts struct {
	Interface  string
	TxIDRaw    string
	RxIDRaw    string
	ExtendedID bool
	BlockSize  uint8
	STmin      uint8
	WftMax     uint8
}

func bindLinkFlags(cmd *cobra.Command, opts *LinkOpts) {
	cmd.Flags().StringVar(&opts.Interface, "interface", opts.Interface, "CAN interface name (e.g. can0, vcan0)")
	cmd.Flags().StringVar(&opts.TxIDRaw, "tx-id", opts.TxIDRaw, "Arbitration ID for outgoing frames (e.g. 0x7E0)")
	cmd.Flags().StringVar(&opts.RxIDRaw, "rx-id", opts.RxIDRaw, "Arbitration ID for incoming frames (e.g. 0x7E8)")
	cmd.Flags().BoolVar(&opts.ExtendedID, "extended-id", opts.ExtendedID, "Use 29-bit arbitration IDs")
	cmd.Flags().Uint8Var(&opts.BlockSize, "block-size", opts.BlockSize, "Flow control block size advertised when receiving (0 = unlimited)")
	cmd.Flags().Uint8Var(&opts.STmin, "stmin", opts.STmin, "Minimum separation time advertised when receiving (raw ISO-TP encoding)")
	cmd.Flags().Uint8Var(&opts.WftMax, "wft-max", opts.WftMax, "Wait frames tolerated while sending (0 disables)")
}

// resolveLinkConfig merges changed flags over the app config.
func resolveLinkConfig(cmd *cobra.Command, cfg *internal.AppConfig, opts *LinkOpts) (string, isotp.Config, error) {
	iface := cfg.Interface
	if cmd.Flags().Changed("interface") {
		iface = opts.Interface
	}
	if strings.TrimSpace(iface) == "" {
		return "", isotp.Config{}, fmt.Errorf("no CAN interface configured")
	}

	linkCfg := isotp.Config{
		TxID:       cfg.TxID,
		RxID:       cfg.RxID,
		ExtendedID: cfg.ExtendedID,
		Flow: isotp.FlowParams{
			BlockSize: cfg.BlockSize,
			STmin:     cfg.STmin,
			WftMax:    cfg.WftMax,
		},
	}

	if cmd.Flags().Changed("tx-id") {
		id, err := parseCANID(opts.TxIDRaw)
		if err != nil {
			return "", isotp.Config{}, fmt.Errorf("--tx-id: %w", err)
		}
		linkCfg.TxID = id
	}
	if cmd.Flags().Changed("rx-id") {
		id, err := parseCANID(opts.RxIDRaw)
		if err != nil {
			return "", isotp.Config{}, fmt.Errorf("--rx-id: %w", err)
		}
		linkCfg.RxID = id
	}
	if cmd.Flags().Changed("extended-id") {
		linkCfg.ExtendedID = opts.ExtendedID
	}
	if cmd.Flags().Changed("block-size") {
		linkCfg.Flow.BlockSize = opts.BlockSize
	}
	if cmd.Flags().Changed("stmin") {
		linkCfg.Flow.STmin = opts.STmin
	}
	if cmd.Flags().Changed("wft-max") {
		linkCfg.Flow.WftMax = opts.WftMax
	}

	return iface, linkCfg, nil
}

// parseCANID accepts decimal or 0x-prefixed hexadecimal IDs.
func parseCANID(raw string) (uint32, error) {
	raw = strings.TrimSpace(raw)
	id, err := strconv.ParseUint(raw, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid arbitration ID %q", raw)
	}
	return uint32(id), nil
}

// openLink binds the CAN socket and wires an ISO-TP link onto it. The
// caller owns the returned bus and must close it.
func openLink(iface string, cfg isotp.Config) (*isotp.Link, *canbus.SocketCAN, error) {
	bus, err := canbus.OpenSocketCAN(iface)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", iface, err)
	}
	link, err := isotp.NewLink(bus, cfg)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	return link, bus, nil
}

// closeBus tears the socket down; failures are logged, never fatal.
func closeBus(bus *canbus.SocketCAN, iface string) {
	if err := bus.Close(); err != nil {
		internal.Warn("failed to close CAN socket", internal.Fields{
			internal.FieldInterface: iface,
			internal.FieldError:     err.Error(),
		})
	}
}
