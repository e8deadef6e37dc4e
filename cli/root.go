package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eternal-echo/canota/internal"
	"github.com/spf13/cobra"
)

type ctxKey string

const appCtxKey ctxKey = "appData"
const appConfigPathKey ctxKey = "appConfigPath"

func NewRootCommand() *cobra.Command {
	var appConfigPath string
	var logLevelFlag string

	rootCmd := &cobra.Command{
		Use:   "canota",
		Short: "canota pushes firmware images to CAN devices over ISO-TP",
		Long:  `canota is a CLI tool that streams firmware images over a CAN bus using ISO-TP segmentation. It frames the image with a small size header, sends it in fixed-size chunks, and can verify the device by having it echo the image back.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := internal.LoadAppConfig(appConfigPath)
			if err != nil {
				return fmt.Errorf("failed to load app config: %w", err)
			}

			if logLevelFlag != "" {
				cfg.LogLevel = logLevelFlag
			}
			if err := internal.ConfigureLogger(cfg.LogLevel); err != nil {
				internal.Warn("invalid log level, defaulting to info", internal.Fields{
					internal.FieldError: err.Error(),
				})
			}

			cfgPath := appConfigPath
			if strings.TrimSpace(cfgPath) == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				cfgPath = filepath.Join(home, ".canota", "cli_config.toml")
			}

			ctx := context.WithValue(cmd.Context(), appCtxKey, cfg)
			ctx = context.WithValue(ctx, appConfigPathKey, cfgPath)
			cmd.SetContext(ctx)

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&appConfigPath, "app-config", "", "Path to app config file (TOML)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override the configured log level")

	// Subcommands pull the loaded config from cmd.Context().
	rootCmd.AddCommand(SendCommand())
	rootCmd.AddCommand(EchoCommand())
	rootCmd.AddCommand(ConfigCommand())

	return rootCmd
}

// Helper function for subcommands to get the loaded config
func GetAppConfig(cmd *cobra.Command) *internal.AppConfig {
	if v := cmd.Context().Value(appCtxKey); v != nil {
		if data, ok := v.(*internal.AppConfig); ok {
			return data
		}
	}
	return nil
}

func getAppConfigPath(cmd *cobra.Command) string {
	if v := cmd.Context().Value(appConfigPathKey); v != nil {
		if path, ok := v.(string); ok {
			return path
		}
	}
	return ""
}
