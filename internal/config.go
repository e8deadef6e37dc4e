package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// AppConfig carries the CLI defaults for CAN access and the OTA
// transfer parameters. Flow-control values (block size, STmin, wait
// frame max) are forwarded to the ISO-TP link untouched.
type AppConfig struct {
	Interface      string  `mapstructure:"interface"`
	TxID           uint32  `mapstructure:"tx_id"`
	RxID           uint32  `mapstructure:"rx_id"`
	ExtendedID     bool    `mapstructure:"extended_id"`
	ChunkSize      int     `mapstructure:"chunk_size"`
	BlockSize      uint8   `mapstructure:"block_size"`
	STmin          uint8   `mapstructure:"stmin"`
	WftMax         uint8   `mapstructure:"wft_max"`
	TimeoutSeconds float64 `mapstructure:"timeout_seconds"`
	ClientUuid     string  `mapstructure:"client_uuid"`
	LogLevel       string  `mapstructure:"log_level"`
}

func LoadAppConfig(configPath string) (*AppConfig, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	v, err := initViper(configPath, filepath.Join(home, ".canota"), "cli_config", "toml", "CANOTA")
	if err != nil {
		return nil, err
	}

	// Defaults mirror the reference firmware example: PC transmits on
	// 0x7E0 and listens on 0x7E8.
	v.SetDefault("interface", "vcan0")
	v.SetDefault("tx_id", 0x7E0)
	v.SetDefault("rx_id", 0x7E8)
	v.SetDefault("extended_id", false)
	v.SetDefault("chunk_size", 2048)
	v.SetDefault("block_size", 8)
	v.SetDefault("stmin", 0)
	v.SetDefault("wft_max", 0)
	v.SetDefault("timeout_seconds", 15.0)
	v.SetDefault("client_uuid", uuid.New().String())
	v.SetDefault("log_level", "info")

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Create-on-first-run ONLY: if viper found no file, pick a path and
	// write the defaults there.
	if v.ConfigFileUsed() == "" {
		writePath := configPath
		if writePath == "" {
			writePath = filepath.Join(home, ".canota", "cli_config.toml")
		}
		if _, statErr := os.Stat(writePath); errors.Is(statErr, os.ErrNotExist) {
			if _, err := cfg.Save(writePath); err != nil {
				return nil, fmt.Errorf("persist default app config: %w", err)
			}
			Info("default config written", Fields{
				ConfigPath: writePath,
			})
		}
	}

	return &cfg, nil
}

func (cfg *AppConfig) Save(path string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if path == "" {
		path = filepath.Join(home, ".canota", "cli_config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("interface", cfg.Interface)
	v.Set("tx_id", cfg.TxID)
	v.Set("rx_id", cfg.RxID)
	v.Set("extended_id", cfg.ExtendedID)
	v.Set("chunk_size", cfg.ChunkSize)
	v.Set("block_size", cfg.BlockSize)
	v.Set("stmin", cfg.STmin)
	v.Set("wft_max", cfg.WftMax)
	v.Set("timeout_seconds", cfg.TimeoutSeconds)
	v.Set("client_uuid", cfg.ClientUuid)
	v.Set("log_level", cfg.LogLevel)

	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("write app config: %w", err)
	}
	_ = os.Chmod(path, 0o600)
	return path, nil
}

func initViper(configPath, defaultDir, defaultName, defaultType, envPrefix string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType(defaultType)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(defaultDir)
		v.AddConfigPath(".")
		v.SetConfigName(defaultName)
	}

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound {
			Error("config file not readable", Fields{
				ConfigPath: configPath,
			})
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}
