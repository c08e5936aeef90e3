// Package config resolves runtime settings from .contagion.yaml, CONTAGION_*
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration for a contagion invocation.
// Values are populated from .contagion.yaml, CONTAGION_* env vars, and CLI flags.
type Config struct {
	Order       int     `mapstructure:"order" validate:"min=1"`
	Beta        float64 `mapstructure:"beta" validate:"gt=0"`
	Tolerance   float64 `mapstructure:"tolerance" validate:"gte=0"`
	Workers     int     `mapstructure:"workers" validate:"gte=0"`
	Weighting   string  `mapstructure:"weighting" validate:"oneof=ratio exponential constant"`
	Rate        float64 `mapstructure:"rate" validate:"gt=0"`
	Probability float64 `mapstructure:"probability" validate:"gte=0,lte=1"`
	MinActivity int     `mapstructure:"min_activity" validate:"gte=0"`
	Profile     string  `mapstructure:"profile"`
	DBPath      string  `mapstructure:"db_path" validate:"required"`
	MetricsAddr string  `mapstructure:"metrics_addr"`
	Verbose     bool    `mapstructure:"verbose"`
}

var validate = newValidator()

// newValidator reports fields by their config key rather than Go name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("mapstructure")
	})
	return v
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags, and validates the
// result.
func Load() (Config, error) {
	viper.SetDefault("order", 5)
	viper.SetDefault("beta", 1.0)
	viper.SetDefault("tolerance", 0.0)
	viper.SetDefault("workers", 0)
	viper.SetDefault("weighting", "ratio")
	viper.SetDefault("rate", 1.0)
	viper.SetDefault("probability", 0.5)
	viper.SetDefault("min_activity", 0)
	viper.SetDefault("profile", "")
	viper.SetDefault("db_path", ".contagion/contagion.db")
	viper.SetDefault("metrics_addr", "")
	viper.SetDefault("verbose", false)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, formatValidationError(err)
	}
	return cfg, nil
}

func formatValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s (got %v)", field, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s (got %v)", field, fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("%s must be at most %s (got %v)", field, fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s (got %v)", field, fe.Param(), fe.Value())
	}
	return field + " is invalid"
}
