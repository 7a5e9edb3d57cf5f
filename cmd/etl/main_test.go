package main

import (
	"os"
	"path/filepath"
	"testing"

	"lakeload/internal/config"
)

func TestLoadConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "pipeline.json")
	body := `{
		"job": "nightly",
		"mode": "local",
		"raw_dir": "data/raw",
		"processed_dir": "data/processed",
		"warehouse": {"kind": "sqlite", "dsn": "file:wh.db"},
		"parser": {"sample_bytes": 4096}
	}`
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	got, err := loadConfig(p)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if got.Job != "nightly" || got.Mode != "local" || got.Warehouse.Kind != "sqlite" {
		t.Errorf("config = %+v", got)
	}
	if got.Parser.Int("sample_bytes", 0) != 4096 {
		t.Errorf("parser options not decoded: %+v", got.Parser)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatalf("missing config must fail")
	}
}

func TestWarehouseConfigByMode(t *testing.T) {
	gcp := &config.Pipeline{
		Mode: "gcp",
		GCP:  config.GCPConfig{ProjectID: "proj", DatasetID: "ds", CredentialsFile: "cred.json"},
	}
	cfg := warehouseConfig(gcp)
	if cfg.Kind != "bigquery" || cfg.ProjectID != "proj" || cfg.DatasetID != "ds" {
		t.Errorf("gcp config = %+v", cfg)
	}

	t.Setenv("WH_PASS", "secret")
	local := &config.Pipeline{
		Mode:      "local",
		Warehouse: config.WarehouseConfig{Kind: "postgres", DSN: "postgres://u:${WH_PASS}@h/db"},
	}
	cfg = warehouseConfig(local)
	if cfg.Kind != "postgres" || cfg.DSN != "postgres://u:secret@h/db" {
		t.Errorf("local config = %+v", cfg)
	}
}
