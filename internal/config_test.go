package internal

import (
	"path/filepath"
	"testing"
)

func TestAppConfigSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli_config.toml")

	want := &AppConfig{
		Interface:      "can1",
		TxID:           0x18DA00F1,
		RxID:           0x18DAF100,
		ExtendedID:     true,
		ChunkSize:      1024,
		BlockSize:      4,
		STmin:          5,
		WftMax:         2,
		TimeoutSeconds: 3.5,
		ClientUuid:     "4dfe463a-9f1b-4f4e-a568-8d1f3e440b5a",
		LogLevel:       "debug",
	}
	if _, err := want.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := LoadAppConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *got != *want {
		t.Fatalf("config round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestConfigureLoggerLevels(t *testing.T) {
	defer SetLogLevel(LevelInfo)

	if err := ConfigureLogger("debug"); err != nil {
		t.Fatalf("debug: %v", err)
	}
	if got := getLevel(); got != LevelDebug {
		t.Fatalf("level = %v, want debug", got)
	}

	if err := ConfigureLogger("nope"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if got := getLevel(); got != LevelInfo {
		t.Fatalf("unknown level should fall back to info, got %v", got)
	}
}
