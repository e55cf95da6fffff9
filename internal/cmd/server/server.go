// Package server parses breathing command flags and launches the service
// runtime.
package server

import (
	"context"
	"flag"
	"net/http"

	entrypoint "github.com/stillpond/breathe/internal/platform/cmd"
	"github.com/stillpond/breathe/internal/platform/identity"
	"github.com/stillpond/breathe/internal/services/breathing/api/rest"
	breathingapp "github.com/stillpond/breathe/internal/services/breathing/app"
)

// Config holds breathing command configuration.
type Config struct {
	Port       int    `env:"BREATHE_PORT" envDefault:"8094"`
	HealthPort int    `env:"BREATHE_HEALTH_PORT" envDefault:"8095"`
	Driver     string `env:"BREATHE_DB_DRIVER" envDefault:"sqlite"`
	DBPath     string `env:"BREATHE_DB_PATH" envDefault:"data/breathing.db"`
	Strategy   string `env:"BREATHE_ADAPTATION_STRATEGY"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The breathing HTTP API port")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "The gRPC health server port")
	fs.StringVar(&cfg.Driver, "db-driver", cfg.Driver, "Storage driver: sqlite or bolt")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The storage file path")
	fs.StringVar(&cfg.Strategy, "strategy", cfg.Strategy, "Adaptation strategy: trend or immediate (defaults per driver)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the breathing runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceBreathing, func(context.Context) error {
		return breathingapp.Run(ctx, breathingapp.RuntimeConfig{
			Port:       cfg.Port,
			HealthPort: cfg.HealthPort,
			Driver:     cfg.Driver,
			DBPath:     cfg.DBPath,
			Strategy:   cfg.Strategy,
			Routes: func(mux *http.ServeMux, service *breathingapp.Service, verifier identity.Verifier) {
				rest.New(service, verifier).Routes(mux)
			},
		})
	})
}
