// Package teams parses formation service flags and launches the service.
package teams

import (
	"context"
	"flag"

	entrypoint "github.com/improperboy/Hackmate-sub002/internal/platform/cmd"
	server "github.com/improperboy/Hackmate-sub002/internal/services/teams/app"
)

// Config holds teams command configuration.
type Config struct {
	Addr string `env:"HACKMATE_TEAMS_ADDR" envDefault:":8080"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The teams HTTP server address")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the teams HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceTeams, func(context.Context) error {
		return server.Run(ctx, cfg.Addr)
	})
}
