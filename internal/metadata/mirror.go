package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoStoredMetadata is returned by a Store that has never saved a snapshot.
var ErrNoStoredMetadata = errors.New("no stored metadata")

// Store persists snapshots and loads the last persisted one.
type Store interface {
	Loader
	Save(ctx context.Context, s *Snapshot) error
}

// MirrorLoader loads from a primary loader and mirrors every fresh snapshot
// into a store. When the primary fails, the last mirrored snapshot is used.
type MirrorLoader struct {
	primary Loader
	store   Store
	logger  *slog.Logger
}

func NewMirrorLoader(primary Loader, store Store, logger *slog.Logger) *MirrorLoader {
	return &MirrorLoader{primary: primary, store: store, logger: logger}
}

func (m *MirrorLoader) Load(ctx context.Context) (*Snapshot, error) {
	s, err := m.primary.Load(ctx)
	if err != nil {
		m.logger.Warn("primary metadata unavailable, using stored copy", "error", err)
		stored, serr := m.store.Load(ctx)
		if serr == nil && (stored == nil || stored.LoadedAt().IsZero()) {
			serr = ErrNoStoredMetadata
		}
		if serr != nil {
			return nil, fmt.Errorf("load stored metadata: %w (primary: %v)", serr, err)
		}
		return stored, nil
	}
	if err := m.store.Save(ctx, s); err != nil {
		m.logger.Error("failed to mirror metadata", "error", err)
	}
	return s, nil
}
