package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"
	sc "github.com/tendant/simple-content/pkg/simplecontent"
)

func TestLocalDirListSkipsDirsAndHidden(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b_r1.fq", "a_r1.fq", ".DS_Store"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	names, err := LocalDir{}.List(context.Background(), dir)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"a_r1.fq", "b_r1.fq"}) {
		t.Fatalf("unexpected listing: %v", names)
	}
}

func TestLocalDirListMissingDir(t *testing.T) {
	if _, err := (LocalDir{}).List(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestLocalDirPublishCopies(t *testing.T) {
	src := filepath.Join(t.TempDir(), "trimmed_a_r1.fq")
	if err := os.WriteFile(src, []byte("@r\nACGT\n+\nIIII\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	dest := filepath.Join(t.TempDir(), "out", "nested")

	ref, err := LocalDir{}.Publish(context.Background(), src, dest)
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if ref != filepath.Join(dest, "trimmed_a_r1.fq") {
		t.Fatalf("unexpected ref %s", ref)
	}
	data, err := os.ReadFile(ref)
	if err != nil || string(data) != "@r\nACGT\n+\nIIII\n" {
		t.Fatalf("published content mismatch: %q %v", data, err)
	}

	// publishing again overwrites in place
	if _, err := (LocalDir{}).Publish(context.Background(), src, dest); err != nil {
		t.Fatalf("second Publish returned error: %v", err)
	}
	entries, _ := os.ReadDir(dest)
	if len(entries) != 1 {
		t.Fatalf("expected a single published file, got %d", len(entries))
	}
}

func TestLocalDirPublishMissingSource(t *testing.T) {
	if _, err := (LocalDir{}).Publish(context.Background(), "/not/exist.fq", t.TempDir()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

type fakeContent struct {
	parent   *sc.Content
	data     map[uuid.UUID]string
	uploaded []sc.UploadDerivedContentRequest
	err      error
}

func (f *fakeContent) GetContent(ctx context.Context, id uuid.UUID) (*sc.Content, error) {
	if f.parent == nil || f.parent.ID != id {
		return nil, errors.New("content not found")
	}
	return f.parent, nil
}

func (f *fakeContent) DownloadContent(ctx context.Context, id uuid.UUID) (io.ReadCloser, error) {
	body, ok := f.data[id]
	if !ok {
		return nil, errors.New("content not found")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *fakeContent) UploadDerivedContent(ctx context.Context, req sc.UploadDerivedContentRequest) (*sc.Content, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, err := io.ReadAll(req.Reader); err != nil {
		return nil, err
	}
	f.uploaded = append(f.uploaded, req)
	return &sc.Content{ID: uuid.New()}, nil
}

func TestContentSourceFetch(t *testing.T) {
	id := uuid.New()
	fake := &fakeContent{data: map[uuid.UUID]string{id: "@r\nACGT\n+\nIIII\n"}}

	src, err := NewContentSource(fake, map[string]string{"s_r1.fq": id.String()})
	if err != nil {
		t.Fatalf("NewContentSource returned error: %v", err)
	}
	names, _ := src.List(context.Background(), "")
	if !reflect.DeepEqual(names, []string{"s_r1.fq"}) {
		t.Fatalf("unexpected listing %v", names)
	}

	rf := src.Locate("", "s_r1.fq")
	if rf.Origin != id.String() {
		t.Fatalf("origin not set: %+v", rf)
	}
	ws := t.TempDir()
	local, err := src.Fetch(context.Background(), rf, ws)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if local != filepath.Join(ws, "s_r1.fq") {
		t.Fatalf("unexpected local path %s", local)
	}
	if data, _ := os.ReadFile(local); string(data) != "@r\nACGT\n+\nIIII\n" {
		t.Fatalf("downloaded content mismatch: %q", data)
	}
}

func TestNewContentSourceRejectsBadID(t *testing.T) {
	if _, err := NewContentSource(&fakeContent{}, map[string]string{"a.fq": "nope"}); err == nil {
		t.Fatal("expected error for invalid content id")
	}
}

func TestContentPublisherUploadsDerived(t *testing.T) {
	parent := &sc.Content{ID: uuid.New(), OwnerID: uuid.New(), TenantID: uuid.New()}
	fake := &fakeContent{parent: parent}
	pub := NewContentPublisher(fake, "s3")

	path := filepath.Join(t.TempDir(), "untrimmed_s_r2.fq")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	ref, err := pub.Publish(context.Background(), path, parent.ID.String())
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if _, err := uuid.Parse(ref); err != nil {
		t.Fatalf("ref is not a content id: %q", ref)
	}
	if len(fake.uploaded) != 1 {
		t.Fatalf("expected one upload, got %d", len(fake.uploaded))
	}
	req := fake.uploaded[0]
	if req.ParentID != parent.ID || req.OwnerID != parent.OwnerID || req.TenantID != parent.TenantID {
		t.Fatalf("parent identity not propagated: %+v", req)
	}
	if req.Variant != "untrimmed" || req.DerivationType != DerivationType || req.FileName != "untrimmed_s_r2.fq" || req.FileSize != 4 {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestContentPublisherErrors(t *testing.T) {
	parent := &sc.Content{ID: uuid.New()}
	path := filepath.Join(t.TempDir(), "trimmed_s.fq")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, err := NewContentPublisher(&fakeContent{parent: parent}, "s3").Publish(context.Background(), path, "not-a-uuid"); err == nil {
		t.Fatal("expected error for invalid destination")
	}

	expected := errors.New("upload failed")
	_, err := NewContentPublisher(&fakeContent{parent: parent, err: expected}, "s3").Publish(context.Background(), path, parent.ID.String())
	if !errors.Is(err, expected) {
		t.Fatalf("expected upload error, got %v", err)
	}
}
