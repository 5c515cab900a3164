package prompt

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/catalyst/backend/internal/model/chat"
)

//go:embed profiles.yaml
var defaultProfiles []byte

// Profile captures the prompt material and UI hints for one interaction mode.
type Profile struct {
	Mode              chat.Mode `yaml:"mode" json:"mode"`
	Name              string    `yaml:"name" json:"name"`
	Greeting          string    `yaml:"greeting,omitempty" json:"greeting,omitempty"`
	Placeholder       string    `yaml:"placeholder" json:"placeholder"`
	SystemInstruction string    `yaml:"systemInstruction" json:"-"`
	Suggestions       []string  `yaml:"suggestions" json:"suggestions"`
}

// Seed returns the built-in profiles.
func Seed() []Profile {
	profiles, err := Parse(defaultProfiles)
	if err != nil {
		panic(fmt.Sprintf("prompt: embedded profiles are invalid: %v", err))
	}
	return profiles
}

// Parse decodes and validates a YAML profile list.
func Parse(data []byte) ([]Profile, error) {
	var profiles []Profile
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}

	seen := make(map[chat.Mode]bool, len(profiles))
	for _, p := range profiles {
		if !p.Mode.Valid() {
			return nil, fmt.Errorf("profile %q: unknown mode %q", p.Name, p.Mode)
		}
		if seen[p.Mode] {
			return nil, fmt.Errorf("duplicate profile for mode %q", p.Mode)
		}
		if p.SystemInstruction == "" {
			return nil, fmt.Errorf("profile %q: systemInstruction is required", p.Name)
		}
		seen[p.Mode] = true
	}
	if !seen[chat.ModeChat] || !seen[chat.ModeAnalyze] {
		return nil, fmt.Errorf("profiles for both %q and %q are required", chat.ModeChat, chat.ModeAnalyze)
	}
	for _, p := range profiles {
		if p.Mode == chat.ModeChat && p.Greeting == "" {
			return nil, fmt.Errorf("chat profile requires a greeting")
		}
	}
	return profiles, nil
}

// LoadFile reads profiles from path, falling back to the built-in set when
// path is empty.
func LoadFile(path string) ([]Profile, error) {
	if path == "" {
		return Seed(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles %s: %w", path, err)
	}
	return Parse(data)
}
