package cli

import (
	"errors"
	"fmt"

	"github.com/eternal-echo/canota/internal"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func ConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View or update canota configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(configShowCommand())
	cmd.AddCommand(configSetCommand())
	return cmd
}

func configShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := GetAppConfig(cmd)
			if cfg == nil {
				return errors.New("config unavailable")
			}

			data := pterm.TableData{
				{"Key", "Value"},
				{"interface", cfg.Interface},
				{"tx_id", fmt.Sprintf("0x%X", cfg.TxID)},
				{"rx_id", fmt.Sprintf("0x%X", cfg.RxID)},
				{"extended_id", fmt.Sprintf("%t", cfg.ExtendedID)},
				{"chunk_size", fmt.Sprintf("%d", cfg.ChunkSize)},
				{"block_size", fmt.Sprintf("%d", cfg.BlockSize)},
				{"stmin", fmt.Sprintf("%d", cfg.STmin)},
				{"wft_max", fmt.Sprintf("%d", cfg.WftMax)},
				{"timeout_seconds", fmt.Sprintf("%g", cfg.TimeoutSeconds)},
				{"client_uuid", cfg.ClientUuid},
				{"log_level", cfg.LogLevel},
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}
}

func configSetCommand() *cobra.Command {
	var (
		iface          string
		txIDRaw        string
		rxIDRaw        string
		chunkSize      int
		blockSize      int
		stmin          int
		wftMax         int
		timeoutSeconds float64
		logLevel       string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update the persisted configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := GetAppConfig(cmd)
			if cfg == nil {
				return errors.New("config unavailable")
			}

			changed := false
			flags := cmd.Flags()

			if flags.Changed("interface") {
				cfg.Interface = iface
				changed = true
			}
			if flags.Changed("tx-id") {
				id, err := parseCANID(txIDRaw)
				if err != nil {
					return fmt.Errorf("--tx-id: %w", err)
				}
				cfg.TxID = id
				changed = true
			}
			if flags.Changed("rx-id") {
				id, err := parseCANID(rxIDRaw)
				if err != nil {
					return fmt.Errorf("--rx-id: %w", err)
				}
				cfg.RxID = id
				changed = true
			}
			if flags.Changed("chunk-size") {
				if chunkSize <= 8 {
					return errors.New("chunk size must exceed the 8-byte header")
				}
				cfg.ChunkSize = chunkSize
				changed = true
			}
			if flags.Changed("block-size") {
				if blockSize < 0 || blockSize > 255 {
					return errors.New("block size must fit in a byte")
				}
				cfg.BlockSize = uint8(blockSize)
				changed = true
			}
			if flags.Changed("stmin") {
				if stmin < 0 || stmin > 255 {
					return errors.New("stmin must fit in a byte")
				}
				cfg.STmin = uint8(stmin)
				changed = true
			}
			if flags.Changed("wft-max") {
				if wftMax < 0 || wftMax > 255 {
					return errors.New("wft-max must fit in a byte")
				}
				cfg.WftMax = uint8(wftMax)
				changed = true
			}
			if flags.Changed("timeout") {
				if timeoutSeconds <= 0 {
					return errors.New("timeout must be > 0")
				}
				cfg.TimeoutSeconds = timeoutSeconds
				changed = true
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
				changed = true
			}

			if !changed {
				return errors.New("nothing to update; pass at least one flag")
			}

			path := getAppConfigPath(cmd)
			written, err := cfg.Save(path)
			if err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			internal.Info("configuration updated", internal.Fields{
				internal.ConfigPath: written,
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&iface, "interface", "", "CAN interface name")
	cmd.Flags().StringVar(&txIDRaw, "tx-id", "", "Arbitration ID for outgoing frames")
	cmd.Flags().StringVar(&rxIDRaw, "rx-id", "", "Arbitration ID for incoming frames")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Chunk size in bytes")
	cmd.Flags().IntVar(&blockSize, "block-size", 0, "Flow control block size")
	cmd.Flags().IntVar(&stmin, "stmin", 0, "Minimum separation time (raw ISO-TP encoding)")
	cmd.Flags().IntVar(&wftMax, "wft-max", 0, "Wait frames tolerated while sending")
	cmd.Flags().Float64Var(&timeoutSeconds, "timeout", 0, "Per-chunk drain timeout in seconds")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")

	return cmd
}
