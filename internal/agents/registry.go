package agents

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Mode names accepted on the academic endpoint.
const (
	ModeAccounts = "isc_accounts"
	ModePhysics  = "isc_physics"
	ModeComputer = "isc_computer"
	ModeStandard = "standard"
)

// AgentConfig describes how one tutoring mode talks to the model.
type AgentConfig struct {
	Model             string   `yaml:"model"`
	Temperature       *float64 `yaml:"temperature"`
	SystemInstruction string   `yaml:"system_instruction"`
	GroundingEnabled  bool     `yaml:"grounding_enabled"`
	SearchCXID        string   `yaml:"search_cx_id"`
	// PlainTextMath strips TeX delimiters from outgoing text so math
	// renders readably in clients without a TeX renderer.
	PlainTextMath bool `yaml:"plain_text_math"`
}

// Registry resolves a requested mode to its agent configuration.
type Registry struct {
	modes        map[string]AgentConfig
	defaultModel string
}

func temp(v float64) *float64 { return &v }

// NewRegistry builds the registry with built-in mode definitions.
// defaultModel backs any mode that does not pin its own.
func NewRegistry(defaultModel string) *Registry {
	return &Registry{
		defaultModel: defaultModel,
		modes: map[string]AgentConfig{
			ModeAccounts: {
				Temperature:      temp(0.3),
				GroundingEnabled: true,
				SystemInstruction: "You are an accountancy tutor for senior secondary students. " +
					"Work through journal entries, ledgers and final accounts step by step, " +
					"following the double-entry conventions used in the Indian school curriculum. " +
					"Show working notes in tables.",
			},
			ModePhysics: {
				Temperature:      temp(0.2),
				GroundingEnabled: true,
				PlainTextMath:    true,
				SystemInstruction: "You are a physics tutor for senior secondary students. " +
					"Derive results from first principles, state the formula before substituting " +
					"values, and write all mathematics in plain text without TeX delimiters.",
			},
			ModeComputer: {
				Temperature:      temp(0.3),
				GroundingEnabled: true,
				SystemInstruction: "You are a computer science tutor for senior secondary students. " +
					"Explain concepts with short, runnable examples and trace program state line by line.",
			},
			ModeStandard: {
				Temperature:      temp(0.7),
				GroundingEnabled: true,
				SystemInstruction: "You are a helpful study assistant. Answer clearly and cite " +
					"sources when the question is factual.",
			},
		},
	}
}

// Lookup resolves mode to its configuration. Unknown modes resolve to
// the accounts tutor, matching what deployed clients already rely on.
func (r *Registry) Lookup(mode string) (string, AgentConfig) {
	cfg, ok := r.modes[mode]
	if !ok {
		mode = ModeAccounts
		cfg = r.modes[ModeAccounts]
	}
	if cfg.Model == "" {
		cfg.Model = r.defaultModel
	}
	return mode, cfg
}

// Modes lists the registered mode names.
func (r *Registry) Modes() []string {
	names := make([]string, 0, len(r.modes))
	for name := range r.modes {
		names = append(names, name)
	}
	return names
}

// LoadOverrides merges per-mode overrides from a YAML file. Only the
// fields present for a mode replace the built-in values.
func (r *Registry) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read agent overrides: %w", err)
	}

	var overrides map[string]AgentConfig
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("failed to parse agent overrides: %w", err)
	}

	for name, o := range overrides {
		base := r.modes[name]
		if o.Model != "" {
			base.Model = o.Model
		}
		if o.Temperature != nil {
			base.Temperature = o.Temperature
		}
		if o.SystemInstruction != "" {
			base.SystemInstruction = o.SystemInstruction
		}
		if o.SearchCXID != "" {
			base.SearchCXID = o.SearchCXID
		}
		if o.GroundingEnabled {
			base.GroundingEnabled = true
		}
		if o.PlainTextMath {
			base.PlainTextMath = true
		}
		r.modes[name] = base
	}
	return nil
}
