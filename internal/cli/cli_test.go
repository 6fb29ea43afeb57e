package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func resetConfig(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Setenv("HOME", t.TempDir())
	cfgFile = ""
	t.Cleanup(func() {
		viper.Reset()
		cfgFile = ""
	})
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetConfig(t)
	initConfig()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scoring.PartialCredit != 0.5 || cfg.Extraction.MemoTTL != 10*time.Minute {
		t.Errorf("unexpected defaults %+v %+v", cfg.Scoring, cfg.Extraction)
	}
	if len(cfg.Dataset.Splits) != 3 {
		t.Errorf("expected three default splits, got %v", cfg.Dataset.Splits)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	resetConfig(t)
	t.Setenv("CALLREWARD_SCORING_PARTIAL_CREDIT", "0.25")
	t.Setenv("CALLREWARD_SERVER_ADDR", "127.0.0.1:9999")
	initConfig()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scoring.PartialCredit != 0.25 {
		t.Errorf("expected env partial credit, got %v", cfg.Scoring.PartialCredit)
	}
	if cfg.Server.Addr != "127.0.0.1:9999" {
		t.Errorf("expected env addr, got %q", cfg.Server.Addr)
	}
}

func TestLoadConfig_File(t *testing.T) {
	resetConfig(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "scoring:\n  partial_credit: 0.75\nextraction:\n  block_policy: last\n  memo_ttl: 1m\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgFile = path
	initConfig()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scoring.PartialCredit != 0.75 || cfg.Extraction.BlockPolicy != "last" || cfg.Extraction.MemoTTL != time.Minute {
		t.Errorf("config file not applied: %+v %+v", cfg.Scoring, cfg.Extraction)
	}
	if cfg.Scoring.NumericTolerance != 1e-5 {
		t.Errorf("expected default tolerance kept, got %v", cfg.Scoring.NumericTolerance)
	}
}

func TestLoadGroundTruth(t *testing.T) {
	inline := `{"expected_calls": [{"function": "f", "arguments": {"x": 1, "y": 1.5}}]}`

	gt, err := loadGroundTruth(inline)
	if err != nil {
		t.Fatal(err)
	}
	if len(gt.ExpectedCalls) != 1 || gt.ExpectedCalls[0].Function != "f" {
		t.Fatalf("unexpected ground truth %+v", gt)
	}
	if _, ok := gt.ExpectedCalls[0].Arguments["x"].(int64); !ok {
		t.Errorf("expected integer argument, got %T", gt.ExpectedCalls[0].Arguments["x"])
	}

	path := filepath.Join(t.TempDir(), "truth.json")
	if err := os.WriteFile(path, []byte(inline), 0o644); err != nil {
		t.Fatal(err)
	}
	fromFile, err := loadGroundTruth("@" + path)
	if err != nil {
		t.Fatal(err)
	}
	if len(fromFile.ExpectedCalls) != 1 {
		t.Errorf("unexpected ground truth from file %+v", fromFile)
	}

	if _, err := loadGroundTruth("@" + filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := loadGroundTruth("{broken"); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
