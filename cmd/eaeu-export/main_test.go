package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/eaeu-tools/odata-export/pkg/config"
)

func TestSecondsToDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    time.Duration
	}{
		{0, 0},
		{1, time.Second},
		{0.5, 500 * time.Millisecond},
		{2.5, 2500 * time.Millisecond},
	}

	for _, tt := range tests {
		if got := secondsToDuration(tt.seconds); got != tt.want {
			t.Errorf("secondsToDuration(%v) = %v, want %v", tt.seconds, got, tt.want)
		}
	}
}

func TestBuildStoreFile(t *testing.T) {
	flags := &exportFlags{stateBackend: "file", stateFile: t.TempDir() + "/state.json"}

	store, closeStore, err := buildStore(context.Background(), flags, zerolog.Nop())
	if err != nil {
		t.Fatalf("buildStore() error = %v", err)
	}
	defer closeStore()
	if store == nil {
		t.Fatal("store should not be nil")
	}
}

func TestBuildStoreUnknownBackend(t *testing.T) {
	flags := &exportFlags{stateBackend: "etcd"}

	_, _, err := buildStore(context.Background(), flags, zerolog.Nop())
	if err == nil {
		t.Fatal("unknown backend must be rejected")
	}
}

func TestExportCommandFlagDefaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	cmd := newExportCmd(cfg)

	for flag, want := range map[string]string{
		"countries":        "ALL",
		"limit":            "30",
		"slice-by":         "year",
		"date-filter-mode": "auto",
		"state-backend":    "file",
	} {
		got, err := cmd.Flags().GetString(flag)
		if flag == "limit" {
			n, nerr := cmd.Flags().GetInt(flag)
			if nerr != nil {
				t.Fatalf("GetInt(%s) error = %v", flag, nerr)
			}
			if n != 30 {
				t.Errorf("flag %s = %d, want 30", flag, n)
			}
			continue
		}
		if err != nil {
			t.Fatalf("GetString(%s) error = %v", flag, err)
		}
		if got != want {
			t.Errorf("flag %s = %q, want %q", flag, got, want)
		}
	}
}
