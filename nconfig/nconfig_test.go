package nconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/speedy-lex/neonucleus/nconfig"
)

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "neonucleus.toml")
	contents := `
[Universe]
ComponentCap = 64

[[Computers]]
Address = "cpu-main"
MemoryLimit = 1048576
ComponentCap = 32
CallBudget = 512
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := nconfig.Default()
	if err := nconfig.Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Universe.ComponentCap != 64 {
		t.Errorf("Universe.ComponentCap = %d, want 64", cfg.Universe.ComponentCap)
	}
	if len(cfg.Computers) != 1 || cfg.Computers[0].Address != "cpu-main" {
		t.Fatalf("Computers = %+v, want one entry named cpu-main", cfg.Computers)
	}
	if cfg.Computers[0].CallBudget != 512 {
		t.Errorf("CallBudget = %v, want 512", cfg.Computers[0].CallBudget)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(path, []byte("[Universe]\nTypo = 1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg := nconfig.Default()
	if err := nconfig.Load(path, &cfg); err == nil {
		t.Fatal("expected an error decoding an unknown field")
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg := nconfig.Default()
	if err := nconfig.Load(filepath.Join(t.TempDir(), "missing.toml"), &cfg); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
