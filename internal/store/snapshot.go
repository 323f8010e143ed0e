package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	apperrors "SafeYatra/pkg/errors"
	"SafeYatra/pkg/logger"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Snapshotter mirrors a Store to a single JSON file and restores it on start.
type Snapshotter struct {
	store Store
	path  string
	mu    sync.Mutex
}

func NewSnapshotter(s Store, path string) *Snapshotter {
	return &Snapshotter{store: s, path: path}
}

func (sn *Snapshotter) Path() string { return sn.path }

// Flush writes the current contents to a temp file and renames it over the
// snapshot, so readers never observe a partial file.
func (sn *Snapshotter) Flush(ctx context.Context) error {
	const op = "store.Snapshotter.Flush"
	sn.mu.Lock()
	defer sn.mu.Unlock()

	snap, err := sn.store.Export(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return apperrors.StoreFailure(op, err)
	}
	if dir := filepath.Dir(sn.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperrors.StoreFailure(op, err)
		}
	}
	tmp := sn.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperrors.StoreFailure(op, err)
	}
	if err := os.Rename(tmp, sn.path); err != nil {
		_ = os.Remove(tmp)
		return apperrors.StoreFailure(op, err)
	}
	logger.Debug("snapshot flushed",
		zap.String("path", sn.path),
		zap.Int("alerts", len(snap.Alerts)),
		zap.Int("locations", len(snap.Locations)))
	return nil
}

// Restore loads the snapshot file into an empty store. It reports whether
// anything was loaded; a missing file is not an error.
func (sn *Snapshotter) Restore(ctx context.Context) (bool, error) {
	const op = "store.Snapshotter.Restore"
	sn.mu.Lock()
	defer sn.mu.Unlock()

	data, err := os.ReadFile(sn.path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.StoreFailure(op, err)
	}

	empty, err := sn.store.IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	if !empty {
		logger.Info("store not empty, skipping snapshot restore", zap.String("path", sn.path))
		return false, nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return false, apperrors.StoreFailure(op, err)
	}
	if err := sn.store.Import(ctx, &snap); err != nil {
		return false, err
	}
	logger.Info("snapshot restored",
		zap.String("path", sn.path),
		zap.Int("zones", len(snap.Zones)),
		zap.Int("alerts", len(snap.Alerts)))
	return true, nil
}
