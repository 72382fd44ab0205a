package commands

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dcshock/speechpipe/config"
	"github.com/dcshock/speechpipe/marker"
)

const (
	backendFile   = "file"
	backendBadger = "badger"
)

// openMarkers opens the marker store selected by backend under data. The
// returned close function is never nil.
func openMarkers(backend, data string, logger *slog.Logger) (marker.Store, func() error, error) {
	noop := func() error { return nil }
	switch backend {
	case backendFile, "":
		s, err := marker.NewFileStore(data)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case backendBadger:
		s, err := marker.NewBadgerStore(marker.BadgerOptions{Dir: badgerDir(data), Logger: logger})
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	default:
		return nil, noop, &config.ConfigError{Message: "unknown marker backend " + backend + " (expected file or badger)"}
	}
}

func badgerDir(data string) string { return filepath.Join(data, ".markers") }

// dryRunMarkers returns an in-memory copy of the markers already recorded,
// so a dry run skips finished stages without writing anything.
func dryRunMarkers(ctx context.Context, backend, data string, logger *slog.Logger) (marker.Store, error) {
	if backend == backendBadger {
		if _, err := os.Stat(badgerDir(data)); errors.Is(err, fs.ErrNotExist) {
			return marker.NewMemoryStore(), nil
		}
	}
	store, closeFn, err := openMarkers(backend, data, logger)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	keys, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	return marker.NewMemoryStore(keys...), nil
}
