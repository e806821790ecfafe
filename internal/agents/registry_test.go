package agents

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLookupKnownModes(t *testing.T) {
	r := NewRegistry("default-model")

	for _, mode := range []string{ModeAccounts, ModePhysics, ModeComputer, ModeStandard} {
		resolved, cfg := r.Lookup(mode)
		if resolved != mode {
			t.Errorf("Lookup(%q) resolved to %q", mode, resolved)
		}
		if cfg.Model != "default-model" {
			t.Errorf("Lookup(%q).Model = %q", mode, cfg.Model)
		}
		if cfg.SystemInstruction == "" {
			t.Errorf("Lookup(%q) has no system instruction", mode)
		}
	}
}

func TestLookupUnknownModeFallsBackToAccounts(t *testing.T) {
	r := NewRegistry("m")
	resolved, cfg := r.Lookup("isc_biology")
	if resolved != ModeAccounts {
		t.Errorf("resolved = %q", resolved)
	}
	if cfg.SystemInstruction == "" {
		t.Error("fallback config is empty")
	}
}

func TestPhysicsModeUsesPlainTextMath(t *testing.T) {
	r := NewRegistry("m")
	_, cfg := r.Lookup(ModePhysics)
	if !cfg.PlainTextMath {
		t.Error("physics mode must request plain-text math")
	}
}

func TestLoadOverridesMergesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	doc := `
isc_physics:
  model: pinned-model
  search_cx_id: cx-physics
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry("default-model")
	if err := r.LoadOverrides(path); err != nil {
		t.Fatalf("LoadOverrides: %v", err)
	}

	_, cfg := r.Lookup(ModePhysics)
	if cfg.Model != "pinned-model" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.SearchCXID != "cx-physics" {
		t.Errorf("SearchCXID = %q", cfg.SearchCXID)
	}
	if cfg.SystemInstruction == "" {
		t.Error("override cleared the built-in system instruction")
	}
	if !cfg.PlainTextMath {
		t.Error("override cleared the plain-text math flag")
	}
}
