package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	simplecontent "github.com/tendant/simple-content/pkg/simplecontent"

	"github.com/tendant/simple-trimmer/internal/reads"
)

// DerivationType tags published outputs in the content service.
const DerivationType = "trimmed_reads"

// contentService is the part of simplecontent.Service the batch needs.
type contentService interface {
	GetContent(ctx context.Context, id uuid.UUID) (*simplecontent.Content, error)
	DownloadContent(ctx context.Context, id uuid.UUID) (io.ReadCloser, error)
	UploadDerivedContent(ctx context.Context, req simplecontent.UploadDerivedContentRequest) (*simplecontent.Content, error)
}

// ContentSource serves reads stored in simple-content. The manifest maps
// file names to content ids; the location argument is ignored.
type ContentSource struct {
	svc      contentService
	manifest map[string]uuid.UUID
}

// NewContentSource parses manifest values as content ids.
func NewContentSource(svc contentService, manifest map[string]string) (*ContentSource, error) {
	ids := make(map[string]uuid.UUID, len(manifest))
	for name, raw := range manifest {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("manifest entry %s: parse content id: %w", name, err)
		}
		ids[name] = id
	}
	return &ContentSource{svc: svc, manifest: ids}, nil
}

func (s *ContentSource) List(ctx context.Context, _ string) ([]string, error) {
	names := make([]string, 0, len(s.manifest))
	for name := range s.manifest {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, ctx.Err()
}

func (s *ContentSource) Locate(_, name string) reads.ReadFile {
	rf := reads.ReadFile{Name: name, Path: name}
	if id, ok := s.manifest[name]; ok {
		rf.Origin = id.String()
	}
	return rf
}

// Fetch downloads rf into workspace under its own name.
func (s *ContentSource) Fetch(ctx context.Context, rf reads.ReadFile, workspace string) (string, error) {
	id, err := uuid.Parse(rf.Origin)
	if err != nil {
		return "", fmt.Errorf("fetch %s: no content id: %w", rf.Name, err)
	}

	reader, err := s.svc.DownloadContent(ctx, id)
	if err != nil {
		return "", fmt.Errorf("download content %s: %w", id, err)
	}
	defer reader.Close()

	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", workspace, err)
	}
	local := filepath.Join(workspace, filepath.Base(rf.Name))
	file, err := os.Create(local)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", local, err)
	}
	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		os.Remove(local)
		return "", fmt.Errorf("copy content to disk: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(local)
		return "", fmt.Errorf("close %s: %w", local, err)
	}
	return local, nil
}

// ContentPublisher uploads outputs as derived content of the destination,
// which must be a parent content id.
type ContentPublisher struct {
	svc     contentService
	backend string
}

// NewContentPublisher wraps svc with the storage backend uploads go to.
func NewContentPublisher(svc contentService, backend string) *ContentPublisher {
	return &ContentPublisher{svc: svc, backend: backend}
}

func (p *ContentPublisher) Publish(ctx context.Context, localPath, destination string) (string, error) {
	parentID, err := uuid.Parse(destination)
	if err != nil {
		return "", fmt.Errorf("destination %q is not a content id: %w", destination, err)
	}
	parent, err := p.svc.GetContent(ctx, parentID)
	if err != nil {
		return "", fmt.Errorf("get parent content: %w", err)
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return "", fmt.Errorf("stat output: %w", err)
	}
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open output: %w", err)
	}
	defer file.Close()

	name := filepath.Base(localPath)
	derived, err := p.svc.UploadDerivedContent(ctx, simplecontent.UploadDerivedContentRequest{
		ParentID:           parent.ID,
		OwnerID:            parent.OwnerID,
		TenantID:           parent.TenantID,
		DerivationType:     DerivationType,
		Variant:            outputVariant(name),
		StorageBackendName: p.backend,
		Reader:             file,
		FileName:           name,
		FileSize:           info.Size(),
		Tags:               []string{DerivationType},
		Metadata: map[string]interface{}{
			"file_name": name,
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload derived content: %w", err)
	}
	return derived.ID.String(), nil
}

func outputVariant(name string) string {
	switch {
	case strings.HasPrefix(name, reads.UntrimmedPrefix):
		return "untrimmed"
	case strings.HasPrefix(name, reads.TrimmedPrefix):
		return "trimmed"
	default:
		return "output"
	}
}
