package cli

import (
	"testing"

	"github.com/eternal-echo/canota/internal"
	"github.com/spf13/cobra"
)

func TestParseCANID(t *testing.T) {
	cases := []struct {
		raw     string
		want    uint32
		wantErr bool
	}{
		{"0x7E0", 0x7E0, false},
		{"2016", 2016, false},
		{" 0x18DA00F1 ", 0x18DA00F1, false},
		{"", 0, true},
		{"0xZZ", 0, true},
	}
	for _, tc := range cases {
		got, err := parseCANID(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseCANID(%q) should fail", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseCANID(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("parseCANID(%q) = 0x%X, want 0x%X", tc.raw, got, tc.want)
		}
	}
}

func TestResolveLinkConfigFlagOverrides(t *testing.T) {
	cfg := &internal.AppConfig{
		Interface: "vcan0",
		TxID:      0x7E0,
		RxID:      0x7E8,
		BlockSize: 8,
	}

	opts := LinkOpts{}
	cmd := &cobra.Command{}
	bindLinkFlags(cmd, &opts)
	if err := cmd.Flags().Parse([]string{"--tx-id", "0x600", "--block-size", "4", "--interface", "can1"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	iface, linkCfg, err := resolveLinkConfig(cmd, cfg, &opts)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if iface != "can1" {
		t.Fatalf("interface = %q, want can1", iface)
	}
	if linkCfg.TxID != 0x600 {
		t.Fatalf("tx id = 0x%X, want 0x600", linkCfg.TxID)
	}
	if linkCfg.RxID != 0x7E8 {
		t.Fatalf("rx id should come from config, got 0x%X", linkCfg.RxID)
	}
	if linkCfg.Flow.BlockSize != 4 {
		t.Fatalf("block size = %d, want 4", linkCfg.Flow.BlockSize)
	}
}

func TestResolveLinkConfigRejectsBadID(t *testing.T) {
	cfg := &internal.AppConfig{Interface: "vcan0", TxID: 0x7E0, RxID: 0x7E8}

	opts := LinkOpts{}
	cmd := &cobra.Command{}
	bindLinkFlags(cmd, &opts)
	if err := cmd.Flags().Parse([]string{"--rx-id", "garbage"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	if _, _, err := resolveLinkConfig(cmd, cfg, &opts); err == nil {
		t.Fatal("expected invalid arbitration ID to fail")
	}
}
