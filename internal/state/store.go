package state

import (
	"context"
	"fmt"

	"marketmaker/internal/errors"
	"marketmaker/pkg/conn"
	"marketmaker/pkg/exception"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPebble   = "pebble"
	BackendPostgres = "postgres"
)

// Config selects and locates the latch backend.
type Config struct {
	Backend string `json:"backend"`
	// Path is the marker file for the file backend and the data dir for pebble.
	Path string `json:"path"`
	DSN  string `json:"dsn"`
}

// Open builds the configured latch store for symbol.
func Open(ctx context.Context, cfg Config, symbol string) (LatchStore, error) {
	switch cfg.Backend {
	case "", BackendFile:
		path := cfg.Path
		if path == "" {
			path = ".stop_profit"
		}
		return NewFileLatchStore(path, symbol), nil
	case BackendMemory:
		return NewMemoryLatchStore(), nil
	case BackendPebble:
		return NewPebbleLatchStore(cfg.Path, symbol, nil)
	case BackendPostgres:
		client, err := conn.New(conn.Option{ConnString: cfg.DSN})
		if err != nil {
			return nil, wrapStore(err, "connect postgres")
		}
		store, err := NewPostgresLatchStore(ctx, client, symbol)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, errors.Wrap(exception.ErrLatchBackend, fmt.Sprintf("backend: %q", cfg.Backend))
	}
}

func wrapStore(err error, text string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(fmt.Errorf("%w: %w", exception.ErrLatchStore, err), text)
}
