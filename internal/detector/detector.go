// Package detector decides whether a file needs (re)processing by comparing
// its content fingerprint with the last committed one.
package detector

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/qaforge/internal/storage"
	"github.com/dshills/qaforge/pkg/types"
)

// FingerprintReader is the read side of the fingerprint store
type FingerprintReader interface {
	GetFingerprint(ctx context.Context, path string) (*types.FingerprintRecord, error)
}

// Detector classifies FileUnits as unchanged, new or modified. It has no side
// effects; records change only when the caller commits a result.
type Detector struct {
	store FingerprintReader
}

// New creates a Detector backed by store
func New(store FingerprintReader) *Detector {
	return &Detector{store: store}
}

// Detect returns the change verdict for unit. A record whose Sample has been
// deleted is reported as new so the file heals on the next run.
func (d *Detector) Detect(ctx context.Context, unit types.FileUnit) (types.ChangeKind, error) {
	if unit.Path == "" {
		return "", types.ErrEmptyPath
	}

	rec, err := d.store.GetFingerprint(ctx, unit.Path)
	if errors.Is(err, storage.ErrNotFound) {
		return types.ChangeNew, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read fingerprint for %s: %w", unit.Path, err)
	}

	switch {
	case rec.SampleID == "" || !rec.SampleExists:
		return types.ChangeNew, nil
	case rec.Fingerprint != unit.Fingerprint:
		return types.ChangeModified, nil
	default:
		return types.ChangeUnchanged, nil
	}
}

// Partition splits units into those needing work and those to skip,
// preserving input order.
func (d *Detector) Partition(ctx context.Context, units []types.FileUnit) (eligible []types.FileUnit, skipped []types.FileUnit, err error) {
	for _, unit := range units {
		kind, err := d.Detect(ctx, unit)
		if err != nil {
			return nil, nil, err
		}
		if kind == types.ChangeUnchanged {
			skipped = append(skipped, unit)
			continue
		}
		eligible = append(eligible, unit)
	}
	return eligible, skipped, nil
}
