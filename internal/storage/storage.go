// Package storage lists, fetches and publishes read files for a batch.
package storage

import (
	"context"

	"github.com/tendant/simple-trimmer/internal/reads"
)

// Source lists the read files of a location and makes them available locally.
type Source interface {
	// List returns the file names at location.
	List(ctx context.Context, location string) ([]string, error)
	// Locate turns a listed name into a ReadFile reference.
	Locate(location, name string) reads.ReadFile
	// Fetch returns a local path for rf, downloading into workspace if needed.
	Fetch(ctx context.Context, rf reads.ReadFile, workspace string) (string, error)
}

// Publisher copies a produced file to a destination and returns its reference there.
type Publisher interface {
	Publish(ctx context.Context, localPath, destination string) (string, error)
}
