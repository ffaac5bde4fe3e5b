package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report errors with the config file's key names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks struct tag constraints plus the rules that span fields.
// All violations are reported together.
func Validate(cfg *Config) error {
	var problems []string

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	t := cfg.Server.Timeouts
	if t.IdleSweep > 0 && t.Idle > 0 && t.IdleSweep >= t.Idle {
		problems = append(problems, fmt.Sprintf(
			"server.timeouts.idle_sweep (%s) must be shorter than server.timeouts.idle (%s)",
			t.IdleSweep, t.Idle))
	}

	if cfg.Server.MaxFileSize != 0 && cfg.Server.MaxFileSize < cfg.Server.ChunkSize {
		problems = append(problems, fmt.Sprintf(
			"server.max_file_size (%s) must be at least server.chunk_size (%s)",
			cfg.Server.MaxFileSize, cfg.Server.ChunkSize))
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port == cfg.Server.Port {
		problems = append(problems, fmt.Sprintf(
			"metrics.port and server.port must differ (both %d)", cfg.Server.Port))
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New(strings.Join(problems, "; "))
}

// describe renders one validator failure as "<key>: <reason>".
func describe(fe validator.FieldError) string {
	key := fe.Namespace()
	if _, rest, ok := strings.Cut(key, "."); ok {
		key = rest
	}

	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s: is required", key)
	case "oneof":
		return fmt.Sprintf("%s: must be one of [%s], got %v", key, fe.Param(), fe.Value())
	case "min", "gte":
		return fmt.Sprintf("%s: must be at least %s, got %v", key, fe.Param(), fe.Value())
	case "max", "lte":
		return fmt.Sprintf("%s: must be at most %s, got %v", key, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s: must be greater than %s, got %v", key, fe.Param(), fe.Value())
	case "ip|hostname":
		return fmt.Sprintf("%s: %q is not an IP address or host name", key, fe.Value())
	default:
		return fmt.Sprintf("%s: failed %q validation", key, fe.Tag())
	}
}
