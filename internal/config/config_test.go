package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
)

// resetViper clears all viper state between tests to avoid cross-contamination.
func resetViper() {
	viper.Reset()
}

func TestLoad_Defaults(t *testing.T) {
	resetViper()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"Order", cfg.Order, 5},
		{"Beta", cfg.Beta, 1.0},
		{"Tolerance", cfg.Tolerance, 0.0},
		{"Workers", cfg.Workers, 0},
		{"Weighting", cfg.Weighting, "ratio"},
		{"Rate", cfg.Rate, 1.0},
		{"Probability", cfg.Probability, 0.5},
		{"MinActivity", cfg.MinActivity, 0},
		{"Profile", cfg.Profile, ""},
		{"DBPath", cfg.DBPath, ".contagion/contagion.db"},
		{"Verbose", cfg.Verbose, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tests := []struct {
		name   string
		envKey string
		envVal string
		field  func(Config) any
		want   any
	}{
		{
			name:   "order",
			envKey: "CONTAGION_ORDER",
			envVal: "8",
			field:  func(c Config) any { return c.Order },
			want:   8,
		},
		{
			name:   "beta",
			envKey: "CONTAGION_BETA",
			envVal: "0.5",
			field:  func(c Config) any { return c.Beta },
			want:   0.5,
		},
		{
			name:   "tolerance",
			envKey: "CONTAGION_TOLERANCE",
			envVal: "0.001",
			field:  func(c Config) any { return c.Tolerance },
			want:   0.001,
		},
		{
			name:   "weighting",
			envKey: "CONTAGION_WEIGHTING",
			envVal: "exponential",
			field:  func(c Config) any { return c.Weighting },
			want:   "exponential",
		},
		{
			name:   "db_path",
			envKey: "CONTAGION_DB_PATH",
			envVal: "/tmp/scores.db",
			field:  func(c Config) any { return c.DBPath },
			want:   "/tmp/scores.db",
		},
		{
			name:   "verbose",
			envKey: "CONTAGION_VERBOSE",
			envVal: "true",
			field:  func(c Config) any { return c.Verbose },
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper()
			viper.SetEnvPrefix("CONTAGION")
			viper.AutomaticEnv()
			t.Setenv(tt.envKey, tt.envVal)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() returned unexpected error: %v", err)
			}
			got := tt.field(cfg)
			if got != tt.want {
				t.Errorf("%s: got %v (%T), want %v (%T)", tt.name, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key     string
		value   any
		wantMsg string
	}{
		{"order", 0, "order must be at least 1"},
		{"beta", -1.0, "beta must be greater than 0"},
		{"tolerance", -0.5, "tolerance must be at least 0"},
		{"workers", -2, "workers must be at least 0"},
		{"weighting", "sigmoid", "weighting must be one of"},
		{"probability", 1.5, "probability must be at most 1"},
		{"db_path", "", "db_path is required"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			resetViper()
			viper.Set(tt.key, tt.value)

			_, err := Load()
			if err == nil {
				t.Fatalf("Load() with %s=%v should fail", tt.key, tt.value)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	resetViper()
	viper.SetConfigType("yaml")
	yaml := `
order: 3
beta: 0.8
weighting: constant
probability: 0.2
min_activity: 4
`
	if err := viper.ReadConfig(strings.NewReader(yaml)); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.Order != 3 || cfg.Beta != 0.8 || cfg.Weighting != "constant" || cfg.Probability != 0.2 || cfg.MinActivity != 4 {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.DBPath == "" {
		t.Error("defaults should fill keys absent from the file")
	}
}
