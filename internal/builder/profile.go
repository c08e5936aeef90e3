package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	toml "github.com/pelletier/go-toml/v2"
)

// Weighting function names accepted in profiles and on the command line.
const (
	FuncRatio       = "ratio"
	FuncExponential = "exponential"
	FuncConstant    = "constant"
)

// FunctionSpec names a weighting function and its parameters.
type FunctionSpec struct {
	Function string  `toml:"function"`
	Rate     float64 `toml:"rate,omitempty"` // exponential
	P        float64 `toml:"p,omitempty"`    // constant
}

// Profile maps interaction channels to weighting functions. It is stored as
// TOML:
//
//	[default]
//	function = "ratio"
//
//	[channels.mention]
//	function = "exponential"
//	rate = 2.0
type Profile struct {
	Default  FunctionSpec            `toml:"default"`
	Channels map[string]FunctionSpec `toml:"channels,omitempty"`
}

// DefaultProfile weights every channel with Ratio.
func DefaultProfile() *Profile {
	return &Profile{Default: FunctionSpec{Function: FuncRatio}}
}

// LoadProfile reads a weighting profile from path.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading weighting profile: %w", err)
	}
	var p Profile
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing weighting profile %s: %w", path, err)
	}
	if p.Default.Function == "" {
		p.Default.Function = FuncRatio
	}
	return &p, nil
}

// SaveProfile writes a weighting profile to path, creating parent
// directories as needed.
func SaveProfile(path string, p *Profile) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	data, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling weighting profile: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing weighting profile: %w", err)
	}
	return nil
}

// Options converts the profile into Builder options. Channel names go
// through ParseInteractionType, so aliases such as "retweet" work.
func (p *Profile) Options() ([]Option, error) {
	fallback, err := p.Default.Func()
	if err != nil {
		return nil, fmt.Errorf("default: %w", err)
	}
	opts := []Option{WithWeighting(fallback)}

	names := make([]string, 0, len(p.Channels))
	for name := range p.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t, err := ParseInteractionType(name)
		if err != nil {
			return nil, fmt.Errorf("channels.%s: %w", name, err)
		}
		f, err := p.Channels[name].Func()
		if err != nil {
			return nil, fmt.Errorf("channels.%s: %w", name, err)
		}
		opts = append(opts, WithTypeWeighting(t, f))
	}
	return opts, nil
}

// Func resolves s into a WeightingFunc, validating its parameters.
func (s FunctionSpec) Func() (WeightingFunc, error) {
	switch s.Function {
	case "", FuncRatio:
		return Ratio, nil
	case FuncExponential:
		if s.Rate <= 0 {
			return nil, fmt.Errorf("exponential weighting needs rate > 0, got %v", s.Rate)
		}
		return Exponential(s.Rate), nil
	case FuncConstant:
		if s.P < 0 || s.P > 1 {
			return nil, fmt.Errorf("constant weighting needs p in [0,1], got %v", s.P)
		}
		return Constant(s.P), nil
	}
	return nil, fmt.Errorf("unknown weighting function %q", s.Function)
}
