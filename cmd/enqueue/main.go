// cmd/enqueue/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/tendant/simple-trimmer/internal/bus"
	"github.com/tendant/simple-trimmer/internal/config"
	"github.com/tendant/simple-trimmer/internal/reads"
	"github.com/tendant/simple-trimmer/internal/storage"
	"github.com/tendant/simple-trimmer/pkg/schema"
)

type options struct {
	NATSURL        string
	RequestSubject string
	Root           string
	OutRoot        string
	AdapterSeq     string
	ReadType       string
	ForwardMarker  string
	ReverseMarker  string
	Limit          int
	DryRun         bool
	OnlyMissing    bool
}

func loadConfig(args []string) (options, error) {
	opts := options{
		NATSURL:        config.Getenv("NATS_URL", "nats://127.0.0.1:4222"),
		RequestSubject: config.Getenv("TRIM_REQUEST_SUBJECT", bus.SubjectBatchRequests),
		Root:           config.Getenv("ENQUEUE_ROOT", ""),
		OutRoot:        config.Getenv("ENQUEUE_OUT_ROOT", ""),
		ForwardMarker:  config.Getenv("TRIM_FORWARD_MARKER", reads.DefaultForwardMarker),
		ReverseMarker:  config.Getenv("TRIM_REVERSE_MARKER", reads.DefaultReverseMarker),
		DryRun:         true,
		OnlyMissing:    true,
	}

	fs := flag.NewFlagSet("enqueue", flag.ContinueOnError)
	fs.StringVar(&opts.Root, "root", opts.Root, "Directory whose sample subdirectories are enqueued")
	fs.StringVar(&opts.OutRoot, "out-root", opts.OutRoot, "Destination root; each batch publishes to <out-root>/<sample>")
	fs.StringVar(&opts.AdapterSeq, "adapter-seq", "", "Adapter file override (empty = worker default)")
	fs.StringVar(&opts.ReadType, "read-type", "", "PE or SE override (empty = worker default)")
	fs.StringVar(&opts.ForwardMarker, "forward-marker", opts.ForwardMarker, "Forward read marker used to spot sample directories")
	fs.StringVar(&opts.ReverseMarker, "reverse-marker", opts.ReverseMarker, "Reverse read marker used to spot sample directories")
	fs.StringVar(&opts.RequestSubject, "subject", opts.RequestSubject, "NATS subject for batch requests")
	fs.IntVar(&opts.Limit, "limit", 0, "Maximum number of batches to enqueue (0 = unlimited)")
	fs.BoolVar(&opts.OnlyMissing, "only-missing", true, "Skip samples whose destination already holds files")

	var execute bool
	fs.BoolVar(&execute, "execute", false, "Actually publish requests (disables dry-run)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if execute {
		opts.DryRun = false
	}

	if opts.Root == "" {
		return options{}, fmt.Errorf("-root is required")
	}
	if opts.OutRoot == "" {
		return options{}, fmt.Errorf("-out-root is required")
	}
	if opts.ReadType != "" {
		if _, err := reads.ParseMode(opts.ReadType); err != nil {
			return options{}, err
		}
	}
	if opts.Limit < 0 {
		return options{}, fmt.Errorf("-limit must not be negative")
	}
	return opts, nil
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	opts, err := loadConfig(os.Args[1:])
	if err != nil {
		fatal(logger, "load config", err)
	}
	logger.Info("enqueue starting",
		"root", opts.Root,
		"out_root", opts.OutRoot,
		"subject", opts.RequestSubject,
		"limit", opts.Limit,
		"dry_run", opts.DryRun,
		"only_missing", opts.OnlyMissing,
	)

	matcher, err := reads.NewMatcher(opts.ForwardMarker, opts.ReverseMarker)
	if err != nil {
		fatal(logger, "build matcher", err)
	}

	ctx := context.Background()
	requests, skipped, err := scanSamples(ctx, opts, matcher)
	if err != nil {
		fatal(logger, "scan samples", err, "root", opts.Root)
	}
	logger.Info("scan complete", "batches", len(requests), "skipped", skipped)

	var sink publisher
	if !opts.DryRun {
		nc, err := bus.Connect(opts.NATSURL, "trim-enqueue", logger)
		if err != nil {
			fatal(logger, "connect to NATS", err, "nats_url", opts.NATSURL)
		}
		defer nc.Close()
		logger.Info("connected to NATS", "nats_url", opts.NATSURL)
		sink = nc
	}

	published, failed := enqueue(logger, sink, opts.RequestSubject, requests)
	logger.Info("enqueue complete",
		"total_found", len(requests),
		"published", published,
		"failed", failed,
		"skipped", skipped,
		"dry_run", opts.DryRun,
	)
	if failed > 0 {
		os.Exit(1)
	}
}

type publisher interface {
	PublishJSON(subject string, v any) error
}

// scanSamples builds one request per subdirectory of opts.Root that holds
// reads. Unless single-end is requested a subdirectory needs at least one
// marked read. Subdirectories are visited in name order.
func scanSamples(ctx context.Context, opts options, matcher reads.Matcher) ([]schema.BatchRequest, int, error) {
	entries, err := os.ReadDir(opts.Root)
	if err != nil {
		return nil, 0, err
	}
	single := false
	if opts.ReadType != "" {
		mode, _ := reads.ParseMode(opts.ReadType)
		single = mode == reads.ModeSingle
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var (
		requests []schema.BatchRequest
		skipped  int
		local    storage.LocalDir
	)
	for _, e := range entries {
		if !e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		if opts.Limit > 0 && len(requests) >= opts.Limit {
			break
		}

		dir := filepath.Join(opts.Root, e.Name())
		names, err := local.List(ctx, dir)
		if err != nil {
			return nil, skipped, err
		}
		if len(names) == 0 || (!single && !hasMarkedRead(matcher, names)) {
			skipped++
			continue
		}

		dest := filepath.Join(opts.OutRoot, e.Name())
		if opts.OnlyMissing && hasFiles(dest) {
			skipped++
			continue
		}

		requests = append(requests, schema.BatchRequest{
			ID:          uuid.New().String(),
			InputDir:    dir,
			Destination: dest,
			AdapterSeq:  opts.AdapterSeq,
			ReadType:    opts.ReadType,
			HappenedAt:  time.Now().Unix(),
		})
	}
	return requests, skipped, nil
}

func hasMarkedRead(m reads.Matcher, names []string) bool {
	for _, name := range names {
		if role, _, err := m.Match(name); err == nil && role != reads.RoleNone {
			return true
		}
	}
	return false
}

func hasFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

// enqueue publishes each request, or only logs it when sink is nil.
func enqueue(logger *slog.Logger, sink publisher, subject string, requests []schema.BatchRequest) (published, failed int) {
	for _, req := range requests {
		if sink == nil {
			logger.Info("would publish batch request", "id", req.ID, "input_dir", req.InputDir, "destination", req.Destination)
			continue
		}
		if err := sink.PublishJSON(subject, req); err != nil {
			failed++
			logger.Error("publish batch request failed", "id", req.ID, "input_dir", req.InputDir, "err", err)
			continue
		}
		published++
		logger.Info("published batch request", "id", req.ID, "input_dir", req.InputDir, "destination", req.Destination)
	}
	return published, failed
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}
