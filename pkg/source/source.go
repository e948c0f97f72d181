// Package source fetches raw snapshots from the inverter dongle.
package source

import (
	"context"

	"github.com/solarstation/livedash/pkg/snapshot"
)

// Source returns the latest snapshot. Implementations must return either a
// fully decoded snapshot or an error, never partial data.
type Source interface {
	Fetch(ctx context.Context) (*snapshot.Snapshot, error)
}

// Func adapts a function to Source.
type Func func(ctx context.Context) (*snapshot.Snapshot, error)

func (f Func) Fetch(ctx context.Context) (*snapshot.Snapshot, error) { return f(ctx) }
