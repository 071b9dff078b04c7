package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-trimmer/internal/reads"
	"github.com/tendant/simple-trimmer/internal/trim/trimtest"
	"github.com/tendant/simple-trimmer/pkg/schema"
)

func TestLoadConfigDefaultsToDryRun(t *testing.T) {
	t.Setenv("ENQUEUE_ROOT", "")
	t.Setenv("ENQUEUE_OUT_ROOT", "")

	opts, err := loadConfig([]string{"-root", "/runs", "-out-root", "/trimmed"})
	require.NoError(t, err)
	assert.True(t, opts.DryRun)
	assert.True(t, opts.OnlyMissing)

	opts, err = loadConfig([]string{"-root", "/runs", "-out-root", "/trimmed", "-execute", "-limit", "3"})
	require.NoError(t, err)
	assert.False(t, opts.DryRun)
	assert.Equal(t, 3, opts.Limit)

	_, err = loadConfig([]string{"-out-root", "/trimmed"})
	assert.Error(t, err)
	_, err = loadConfig([]string{"-root", "/runs", "-out-root", "/trimmed", "-read-type", "XX"})
	assert.Error(t, err)
}

func sampleTree(t *testing.T) (root, outRoot string) {
	t.Helper()
	base := t.TempDir()
	root = filepath.Join(base, "runs")
	outRoot = filepath.Join(base, "trimmed")

	for dir, names := range map[string][]string{
		"s2":    {"s2_r1.fq", "s2_r2.fq"},
		"s1":    {"s1_r1.fq", "s1_r2.fq"},
		"notes": {"readme.txt"},
		"done":  {"done_r1.fq", "done_r2.fq"},
	} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
		trimtest.WriteReads(t, filepath.Join(root, dir), names...)
	}
	require.NoError(t, os.MkdirAll(filepath.Join(outRoot, "done"), 0o755))
	trimtest.WriteReads(t, filepath.Join(outRoot, "done"), "trimmed_done_r1.fq")
	return root, outRoot
}

func TestScanSamples(t *testing.T) {
	root, outRoot := sampleTree(t)
	opts := options{Root: root, OutRoot: outRoot, OnlyMissing: true}

	requests, skipped, err := scanSamples(context.Background(), opts, reads.DefaultMatcher())
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, requests, 2)
	assert.Equal(t, filepath.Join(root, "s1"), requests[0].InputDir)
	assert.Equal(t, filepath.Join(outRoot, "s1"), requests[0].Destination)
	assert.Equal(t, filepath.Join(root, "s2"), requests[1].InputDir)
	assert.NotEqual(t, requests[0].ID, requests[1].ID)

	opts.OnlyMissing = false
	opts.Limit = 2
	requests, _, err = scanSamples(context.Background(), opts, reads.DefaultMatcher())
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, filepath.Join(root, "done"), requests[0].InputDir)
}

func TestScanSamplesSingleEndAcceptsUnmarkedReads(t *testing.T) {
	root, outRoot := sampleTree(t)
	opts := options{Root: root, OutRoot: outRoot, ReadType: "se", OnlyMissing: true}

	requests, _, err := scanSamples(context.Background(), opts, reads.DefaultMatcher())
	require.NoError(t, err)
	require.Len(t, requests, 3)
	assert.Equal(t, filepath.Join(root, "notes"), requests[0].InputDir)
	assert.Equal(t, "se", requests[0].ReadType)
}

type recordingPublisher struct {
	subjects []string
	requests []schema.BatchRequest
	failOn   string
}

func (p *recordingPublisher) PublishJSON(subject string, v any) error {
	req := v.(schema.BatchRequest)
	if req.InputDir == p.failOn {
		return errors.New("nats: connection closed")
	}
	p.subjects = append(p.subjects, subject)
	p.requests = append(p.requests, req)
	return nil
}

func TestEnqueue(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	requests := []schema.BatchRequest{{ID: "a", InputDir: "/runs/a"}, {ID: "b", InputDir: "/runs/b"}, {ID: "c", InputDir: "/runs/c"}}

	published, failed := enqueue(logger, nil, "trim.batch.requests", requests)
	assert.Zero(t, published)
	assert.Zero(t, failed)

	pub := &recordingPublisher{failOn: "/runs/b"}
	published, failed = enqueue(logger, pub, "trim.batch.requests", requests)
	assert.Equal(t, 2, published)
	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"trim.batch.requests", "trim.batch.requests"}, pub.subjects)
	assert.Equal(t, "c", pub.requests[1].ID)
}
