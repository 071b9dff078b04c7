package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tendant/simple-trimmer/internal/reads"
)

// LocalDir reads from and publishes to directories on the local filesystem.
type LocalDir struct{}

// List returns the regular, non-hidden files directly inside dir.
func (LocalDir) List(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || !e.Type().IsRegular() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, ctx.Err()
}

func (LocalDir) Locate(dir, name string) reads.ReadFile {
	return reads.ReadFile{Name: name, Path: filepath.Join(dir, name)}
}

// Fetch checks the file exists and returns its path unchanged.
func (LocalDir) Fetch(ctx context.Context, rf reads.ReadFile, workspace string) (string, error) {
	if _, err := os.Stat(rf.Path); err != nil {
		return "", fmt.Errorf("fetch %s: %w", rf.Name, err)
	}
	return rf.Path, nil
}

// Publish copies localPath into the destination directory under the same
// base name. The copy is written to a temp file and renamed into place so a
// re-run never leaves a truncated file behind.
func (LocalDir) Publish(ctx context.Context, localPath, destination string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(destination, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", destination, err)
	}

	target := filepath.Join(destination, filepath.Base(localPath))
	if same, _ := sameFile(localPath, target); same {
		return target, nil
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(destination, ".publish-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("copy %s: %w", localPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename into %s: %w", target, err)
	}
	return target, nil
}

func sameFile(a, b string) (bool, error) {
	ai, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	return os.SameFile(ai, bi), nil
}
