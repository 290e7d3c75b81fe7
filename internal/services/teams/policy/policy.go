// Package policy supplies the configured team size limits.
package policy

import (
	"context"
	"fmt"

	"github.com/improperboy/Hackmate-sub002/internal/platform/config"
)

// Limits holds the configured minimum and maximum team size.
type Limits struct {
	Min int
	Max int
}

// Provider supplies the current team size limits. The formation engine only
// reads limits; managing them belongs to system configuration.
type Provider interface {
	TeamSizeLimits(ctx context.Context) (Limits, error)
}

// Static is a fixed-limits provider, used in tests and as the env-backed default.
type Static struct {
	Limits Limits
}

// TeamSizeLimits returns the fixed limits.
func (s Static) TeamSizeLimits(ctx context.Context) (Limits, error) {
	if err := ctx.Err(); err != nil {
		return Limits{}, err
	}
	return s.Limits, nil
}

type limitsEnv struct {
	Min int `env:"HACKMATE_TEAM_SIZE_MIN" envDefault:"1"`
	Max int `env:"HACKMATE_TEAM_SIZE_MAX" envDefault:"4"`
}

// FromEnv builds a provider from HACKMATE_TEAM_SIZE_MIN/MAX.
func FromEnv() (Provider, error) {
	var cfg limitsEnv
	if err := config.ParseEnv(&cfg); err != nil {
		return nil, err
	}
	limits := Limits{Min: cfg.Min, Max: cfg.Max}
	if err := Validate(limits); err != nil {
		return nil, err
	}
	return Static{Limits: limits}, nil
}

// Validate reports whether the limits are usable.
func Validate(limits Limits) error {
	if limits.Min < 1 {
		return fmt.Errorf("team size min must be at least 1, got %d", limits.Min)
	}
	if limits.Max < limits.Min {
		return fmt.Errorf("team size max %d must not be below min %d", limits.Max, limits.Min)
	}
	return nil
}
