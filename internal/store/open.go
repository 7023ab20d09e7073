package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexisbeaulieu97/genflow/internal/ports"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config selects the single backend for a process.
type Config struct {
	Driver string `mapstructure:"driver" validate:"omitempty,oneof=memory sqlite"`
	Path   string `mapstructure:"path" validate:"required_if=Driver sqlite"`
}

// Open returns the backend named by cfg.Driver (memory when empty).
func Open(ctx context.Context, cfg Config) (ports.KVStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return OpenSQLite(ctx, cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
