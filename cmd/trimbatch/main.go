// cmd/trimbatch runs one trimming batch over a directory of read files.
//
// Usage:
//
//	trimbatch -input-dir ./reads -out-dir ./trimmed -adapter-seq TruSeq3-PE.fa
//	trimbatch -input-dir ./reads -out-dir ./trimmed -adapter-seq a.fa -read-type SE -policy best-effort
//	trimbatch -ledger runs.db -history 10
//	trimbatch -ledger runs.db -show 7f9c1b1e-8f5e-4c55-9a57-0a3c4b7f1d11
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/tendant/simple-trimmer/internal/batch"
	"github.com/tendant/simple-trimmer/internal/bus"
	"github.com/tendant/simple-trimmer/internal/config"
	"github.com/tendant/simple-trimmer/internal/ledger"
	"github.com/tendant/simple-trimmer/internal/storage"
	"github.com/tendant/simple-trimmer/internal/telemetry"
	"github.com/tendant/simple-trimmer/internal/trim"
)

var version = "dev"

// Exit statuses.
const (
	exitOK       = 0
	exitFailed   = 1
	exitUsage    = 2
	exitRejected = 3
)

type options struct {
	Trim          config.Trim
	Config        trim.Config
	Policy        batch.Policy
	BatchID       string
	ResultSubject string
	History       int
	Show          string
	LogLevel      string
}

// LoadConfig reads the environment, then lets flags in args override it.
func LoadConfig(args []string) (options, error) {
	t, err := config.LoadTrim()
	if err != nil {
		return options{}, err
	}
	opts := options{
		Trim:          t,
		ResultSubject: config.Getenv("TRIM_RESULT_SUBJECT", bus.SubjectBatchDone),
		LogLevel:      config.Getenv("LOG_LEVEL", "info"),
	}

	fs := flag.NewFlagSet("trimbatch", flag.ContinueOnError)
	fs.StringVar(&opts.Trim.InputDir, "input-dir", t.InputDir, "Directory holding the read files")
	fs.StringVar(&opts.Trim.OutDir, "out-dir", t.OutDir, "Destination for produced files (parent content id with -publish content)")
	fs.StringVar(&opts.Trim.AdapterSeq, "adapter-seq", t.AdapterSeq, "Adapter sequence FASTA file")
	fs.StringVar(&opts.Trim.SlidingWindow, "sliding-window", t.SlidingWindow, "SLIDINGWINDOW parameter (W:Q)")
	fs.IntVar(&opts.Trim.MinLen, "min-len", t.MinLen, "Minimum read length kept")
	fs.IntVar(&opts.Trim.Threads, "threads", t.Threads, "Engine threads per job")
	fs.StringVar(&opts.Trim.ReadType, "read-type", t.ReadType, "PE (paired) or SE (single)")
	fs.StringVar(&opts.Trim.Phred, "phred", t.Phred, "Quality encoding: 33 or 64")
	fs.StringVar(&opts.Trim.ClipParams, "clip-params", t.ClipParams, "ILLUMINACLIP parameters after the adapter file")
	fs.StringVar(&opts.Trim.ForwardMarker, "forward-marker", t.ForwardMarker, "File name marker of forward reads")
	fs.StringVar(&opts.Trim.ReverseMarker, "reverse-marker", t.ReverseMarker, "File name marker of reverse reads")
	fs.StringVar(&opts.Trim.Engine, "engine", t.Engine, "Engine command prefix")
	fs.StringVar(&opts.Trim.Workspace, "workspace", t.Workspace, "Scratch directory for engine outputs")
	fs.IntVar(&opts.Trim.Workers, "workers", t.Workers, "Concurrent engine processes (0 = CPUs / threads)")
	fs.StringVar(&opts.Trim.Policy, "policy", t.Policy, "strict or best-effort")
	fs.BoolVar(&opts.Trim.CountReads, "count-reads", t.CountReads, "Count FASTQ records of produced files")
	fs.StringVar(&opts.Trim.PublishBackend, "publish", t.PublishBackend, "local or content")
	fs.StringVar(&opts.Trim.LedgerPath, "ledger", t.LedgerPath, "SQLite file recording batch history")
	fs.StringVar(&opts.BatchID, "id", "", "Batch id (default: random uuid)")
	fs.IntVar(&opts.History, "history", 0, "Print the last N recorded batches and exit")
	fs.StringVar(&opts.Show, "show", "", "Print one recorded batch with its jobs and exit")
	fs.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if opts.Trim.Workers < 0 {
		return options{}, fmt.Errorf("-workers must not be negative (got %d)", opts.Trim.Workers)
	}
	if opts.History > 0 || opts.Show != "" {
		if opts.Trim.LedgerPath == "" {
			return options{}, errors.New("-history and -show need -ledger or LEDGER_PATH")
		}
		return opts, nil
	}
	if opts.BatchID != "" {
		if err := batch.ValidateID(opts.BatchID); err != nil {
			return options{}, err
		}
	}
	if opts.Trim.InputDir == "" {
		return options{}, errors.New("-input-dir (TRIM_INPUT_DIR) is required")
	}
	if opts.Trim.OutDir == "" {
		return options{}, errors.New("-out-dir (TRIM_OUT_DIR) is required")
	}
	if err := opts.Trim.Validate(); err != nil {
		return options{}, err
	}
	if opts.Config, err = opts.Trim.TrimConfig(); err != nil {
		return options{}, err
	}
	if opts.Policy, err = batch.ParsePolicy(opts.Trim.Policy); err != nil {
		return options{}, err
	}
	return opts, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	_ = godotenv.Load()

	opts, err := LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(exitOK)
		}
		fmt.Fprintln(os.Stderr, "trimbatch:", err)
		os.Exit(exitUsage)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(opts.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, opts, logger, os.Stdout)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, opts options, logger *slog.Logger, out io.Writer) int {
	shutdown, err := telemetry.Init(ctx, opts.Trim.OTLPEndpoint, "trimbatch", version, true)
	if err != nil {
		logger.Warn("telemetry disabled", "err", err)
	} else {
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				logger.Warn("telemetry shutdown", "err", err)
			}
		}()
	}

	var runs *ledger.Ledger
	if opts.Trim.LedgerPath != "" {
		runs, err = ledger.Open(ctx, opts.Trim.LedgerPath)
		if err != nil {
			logger.Error("open ledger", "path", opts.Trim.LedgerPath, "err", err)
			return exitFailed
		}
		defer runs.Close()
	}

	if opts.History > 0 {
		records, err := runs.Recent(ctx, opts.History)
		if err != nil {
			logger.Error("load history", "err", err)
			return exitFailed
		}
		printHistory(out, records)
		return exitOK
	}
	if opts.Show != "" {
		record, err := runs.Get(ctx, opts.Show)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Fprintf(out, "no batch %s in %s\n", opts.Show, opts.Trim.LedgerPath)
			return exitFailed
		}
		if err != nil {
			logger.Error("load batch", "batch_id", opts.Show, "err", err)
			return exitFailed
		}
		printBatch(out, record)
		return exitOK
	}

	orch, cleanup, err := buildOrchestrator(opts, logger)
	if err != nil {
		logger.Error("setup", "err", err)
		return exitFailed
	}
	defer cleanup()

	cfg, policy := opts.Config, opts.Policy
	req := batch.Request{
		ID:          opts.BatchID,
		InputDir:    opts.Trim.InputDir,
		Destination: opts.Trim.OutDir,
		Config:      cfg,
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	logger.Info("batch starting",
		"batch_id", req.ID,
		"input_dir", req.InputDir,
		"out_dir", req.Destination,
		"mode", cfg.Mode,
		"threads", cfg.Threads,
		"policy", policy,
		"publish", opts.Trim.PublishBackend,
	)

	res, err := orch.Execute(ctx, req)
	if err != nil {
		publishDone(orch, opts.ResultSubject, batch.FailedDone(req.ID, req.InputDir, req.Destination, err), logger)
		if runs != nil {
			if lerr := runs.RecordRejected(context.WithoutCancel(ctx), req.ID, req.InputDir, req.Destination, err); lerr != nil {
				logger.Warn("record rejected batch", "err", lerr)
			}
		}
		printRejected(out, err)
		return exitRejected
	}

	publishDone(orch, opts.ResultSubject, res.Done(), logger)
	if runs != nil {
		if err := runs.RecordResult(context.WithoutCancel(ctx), res, policy); err != nil {
			logger.Warn("record batch", "err", err)
		}
	}
	printReport(out, res, policy)

	if !res.OK(policy) {
		return exitFailed
	}
	return exitOK
}

// buildOrchestrator wires storage, events and the engine from opts.
func buildOrchestrator(opts options, logger *slog.Logger) (*batch.Orchestrator, func(), error) {
	matcher, err := opts.Trim.Matcher()
	if err != nil {
		return nil, nil, err
	}

	orch := &batch.Orchestrator{
		Source:     storage.LocalDir{},
		Publisher:  storage.LocalDir{},
		Builder:    trim.NewBuilder(opts.Trim.EngineArgs()),
		Runner:     trim.Runner{},
		Matcher:    matcher,
		Workspace:  opts.Trim.Workspace,
		Workers:    opts.Trim.Workers,
		CountReads: opts.Trim.CountReads,
		Logger:     logger,
	}
	cleanup := func() {}

	if opts.Trim.PublishBackend == config.PublishContent {
		contentCfg, err := config.LoadSimpleContentConfig()
		if err != nil {
			return nil, nil, fmt.Errorf("load simplecontent config: %w", err)
		}
		contentSvc, err := contentCfg.BuildService()
		if err != nil {
			return nil, nil, fmt.Errorf("build simplecontent service: %w", err)
		}
		orch.Publisher = storage.NewContentPublisher(contentSvc, contentCfg.DefaultStorageBackend)
		logger.Info("publishing to content service", "backend", contentCfg.DefaultStorageBackend)
	}

	if opts.Trim.NATSURL != "" {
		nc, err := bus.Connect(opts.Trim.NATSURL, "trimbatch", logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to NATS %s: %w", opts.Trim.NATSURL, err)
		}
		orch.Events = nc
		orch.Subject = bus.LifecycleSubject(opts.ResultSubject)
		cleanup = nc.Close
		logger.Info("connected to NATS", "nats_url", opts.Trim.NATSURL)
	}
	return orch, cleanup, nil
}

func publishDone(orch *batch.Orchestrator, subject string, done any, logger *slog.Logger) {
	if orch.Events == nil {
		return
	}
	if err := orch.Events.PublishJSON(subject, done); err != nil {
		logger.Error("publish batch result failed", "subject", subject, "err", err)
	}
}
