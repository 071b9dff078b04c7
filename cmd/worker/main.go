// cmd/worker/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	simplecontent "github.com/tendant/simple-content/pkg/simplecontent"

	"github.com/tendant/simple-trimmer/internal/batch"
	"github.com/tendant/simple-trimmer/internal/bus"
	"github.com/tendant/simple-trimmer/internal/config"
	"github.com/tendant/simple-trimmer/internal/ledger"
	"github.com/tendant/simple-trimmer/internal/reads"
	"github.com/tendant/simple-trimmer/internal/storage"
	"github.com/tendant/simple-trimmer/internal/telemetry"
	"github.com/tendant/simple-trimmer/internal/trim"
	"github.com/tendant/simple-trimmer/pkg/schema"
)

var version = "dev"

type workerConfig struct {
	Trim           config.Trim
	NATSURL        string
	RequestSubject string
	WorkerQueue    string
	ResultSubject  string
	BatchTimeout   time.Duration
}

func LoadConfig() (workerConfig, error) {
	t, err := config.LoadTrim()
	if err != nil {
		return workerConfig{}, err
	}
	cfg := workerConfig{
		Trim:           t,
		NATSURL:        config.Getenv("NATS_URL", "nats://127.0.0.1:4222"),
		RequestSubject: config.Getenv("TRIM_REQUEST_SUBJECT", bus.SubjectBatchRequests),
		WorkerQueue:    config.Getenv("TRIM_QUEUE", bus.QueueWorkers),
		ResultSubject:  config.Getenv("TRIM_RESULT_SUBJECT", bus.SubjectBatchDone),
	}

	minutes, err := config.ParsePositiveInt(config.Getenv("TRIM_BATCH_TIMEOUT_MINUTES", "720"), "TRIM_BATCH_TIMEOUT_MINUTES")
	if err != nil {
		return workerConfig{}, err
	}
	cfg.BatchTimeout = time.Duration(minutes) * time.Minute

	if _, err := batch.ParsePolicy(t.Policy); err != nil {
		return workerConfig{}, err
	}
	if len(t.EngineArgs()) == 0 {
		return workerConfig{}, errors.New("TRIMMOMATIC_CMD must not be empty")
	}
	return cfg, nil
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := LoadConfig()
	if err != nil {
		fatal(logger, "load config", err)
	}
	logger.Info("worker starting",
		"nats_url", cfg.NATSURL,
		"request_subject", cfg.RequestSubject,
		"queue", cfg.WorkerQueue,
		"result_subject", cfg.ResultSubject,
		"workspace", cfg.Trim.Workspace,
		"engine", cfg.Trim.Engine,
		"publish", cfg.Trim.PublishBackend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Init(ctx, cfg.Trim.OTLPEndpoint, "trim-worker", version, true)
	if err != nil {
		fatal(logger, "init telemetry", err)
	}
	defer shutdown(context.Background())

	w := &worker{cfg: cfg, logger: logger}

	if cfg.Trim.PublishBackend == config.PublishContent {
		contentCfg, err := config.LoadSimpleContentConfig()
		if err != nil {
			fatal(logger, "load simplecontent config", err)
		}
		logger.Info("loaded simplecontent config", "default_backend", contentCfg.DefaultStorageBackend, "database_type", contentCfg.DatabaseType)
		w.content, err = contentCfg.BuildService()
		if err != nil {
			fatal(logger, "build simplecontent service", err)
		}
		w.backend = contentCfg.DefaultStorageBackend
		logger.Info("simplecontent service ready", "backend", w.backend)
	}

	if cfg.Trim.LedgerPath != "" {
		w.ledger, err = ledger.Open(ctx, cfg.Trim.LedgerPath)
		if err != nil {
			fatal(logger, "open ledger", err, "path", cfg.Trim.LedgerPath)
		}
		defer w.ledger.Close()
	}

	if err := os.MkdirAll(cfg.Trim.Workspace, 0o755); err != nil {
		fatal(logger, "ensure workspace", err, "workspace", cfg.Trim.Workspace)
	}

	nc, err := bus.Connect(cfg.NATSURL, "trim-worker", logger)
	if err != nil {
		fatal(logger, "connect to NATS", err, "nats_url", cfg.NATSURL)
	}
	logger.Info("connected to NATS", "nats_url", cfg.NATSURL)
	defer nc.Close()
	w.events = nc

	_, err = nc.QueueSubscribeJSON(cfg.RequestSubject, cfg.WorkerQueue, cfg.BatchTimeout, func(jobCtx context.Context, data []byte) {
		w.handle(jobCtx, data)
	})
	if err != nil {
		fatal(logger, "subscribe", err, "subject", cfg.RequestSubject, "queue", cfg.WorkerQueue)
	}
	logger.Info("listening for batch requests", "subject", cfg.RequestSubject, "queue", cfg.WorkerQueue)

	<-ctx.Done()
	logger.Info("worker stopping")
}

type worker struct {
	cfg     workerConfig
	logger  *slog.Logger
	events  batch.EventSink
	content simplecontent.Service
	backend string
	ledger  *ledger.Ledger
}

func (w *worker) handle(ctx context.Context, data []byte) {
	var req schema.BatchRequest
	var done schema.BatchDone
	if err := json.Unmarshal(data, &req); err != nil {
		w.logger.Warn("invalid batch request", "err", err)
		done = batch.FailedDone("", "", "", fmt.Errorf("decode batch request: %w", err))
		done.FailureType = schema.FailureTypeValidation
	} else {
		done = w.process(ctx, req)
	}

	if w.events == nil {
		return
	}
	if err := w.events.PublishJSON(w.cfg.ResultSubject, done); err != nil {
		w.logger.Error("publish result failed", "subject", w.cfg.ResultSubject, "id", done.ID, "err", err)
	}
}

// process runs one request and always returns a result event.
func (w *worker) process(ctx context.Context, req schema.BatchRequest) schema.BatchDone {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	logger := w.logger.With("batch_id", req.ID)
	logger.Info("received batch request", "input_dir", req.InputDir, "destination", req.Destination, "manifest_files", len(req.Manifest))

	reject := func(err error, failureType schema.FailureType) schema.BatchDone {
		logger.Error("batch rejected", "err", err, "failure_type", failureType)
		done := batch.FailedDone(req.ID, req.InputDir, req.Destination, err)
		done.FailureType = failureType
		if w.ledger != nil {
			if lerr := w.ledger.RecordRejected(context.WithoutCancel(ctx), req.ID, req.InputDir, req.Destination, err); lerr != nil {
				logger.Warn("record rejected batch", "err", lerr)
			}
		}
		return done
	}

	if err := batch.ValidateID(req.ID); err != nil {
		return reject(err, schema.FailureTypeValidation)
	}
	trimCfg, err := requestConfig(w.cfg.Trim, req)
	if err != nil {
		return reject(err, schema.FailureTypeValidation)
	}
	orch, err := w.orchestrator(req, trimCfg)
	if err != nil {
		return reject(err, schema.FailureTypeValidation)
	}

	res, err := orch.Execute(ctx, batch.Request{
		ID:          req.ID,
		InputDir:    req.InputDir,
		Destination: req.Destination,
		Config:      trimCfg,
	})
	if err != nil {
		return reject(err, batch.ClassifyFailure(err))
	}

	policy, _ := batch.ParsePolicy(w.cfg.Trim.Policy)
	done := res.Done()
	if !res.OK(policy) {
		done.Error = fmt.Sprintf("%d of %d jobs failed", res.Failed(), len(res.Outcomes))
		for _, o := range res.Outcomes {
			if o.Err != nil {
				done.FailureType = batch.ClassifyFailure(o.Err)
				break
			}
		}
	}
	if w.ledger != nil {
		if err := w.ledger.RecordResult(context.WithoutCancel(ctx), res, policy); err != nil {
			logger.Warn("record batch", "err", err)
		}
	}
	logger.Info("completed batch", "succeeded", done.TotalSucceeded, "failed", done.TotalFailed, "processing_time_ms", done.ProcessingTimeMs)
	return done
}

func (w *worker) orchestrator(req schema.BatchRequest, trimCfg trim.Config) (*batch.Orchestrator, error) {
	matcher, err := w.cfg.Trim.Matcher()
	if err != nil {
		return nil, err
	}
	orch := &batch.Orchestrator{
		Source:     storage.LocalDir{},
		Publisher:  storage.LocalDir{},
		Builder:    trim.NewBuilder(w.cfg.Trim.EngineArgs()),
		Runner:     trim.Runner{},
		Matcher:    matcher,
		Workspace:  w.cfg.Trim.Workspace,
		Workers:    w.cfg.Trim.Workers,
		CountReads: w.cfg.Trim.CountReads,
		Events:     w.events,
		Subject:    bus.LifecycleSubject(w.cfg.ResultSubject),
		Logger:     w.logger,
	}

	if len(req.Manifest) > 0 {
		if w.content == nil {
			return nil, errors.New("request has a manifest but no content service is configured (PUBLISH_BACKEND=content)")
		}
		manifest := make(map[string]string, len(req.Manifest))
		for name, id := range req.Manifest {
			if trimCfg.Adapter.Origin != "" && name == trimCfg.Adapter.Name {
				continue
			}
			manifest[name] = id
		}
		src, err := storage.NewContentSource(w.content, manifest)
		if err != nil {
			return nil, err
		}
		orch.Source = src
	}
	if w.content != nil && w.cfg.Trim.PublishBackend == config.PublishContent {
		orch.Publisher = storage.NewContentPublisher(w.content, w.backend)
	}
	return orch, nil
}

// requestConfig overlays the request's trimming parameters on the worker defaults.
func requestConfig(base config.Trim, req schema.BatchRequest) (trim.Config, error) {
	t := base
	if req.AdapterSeq != "" {
		t.AdapterSeq = req.AdapterSeq
	}
	if req.SlidingWindow != "" {
		t.SlidingWindow = req.SlidingWindow
	}
	if req.MinLen > 0 {
		t.MinLen = req.MinLen
	}
	if req.Threads > 0 {
		t.Threads = req.Threads
	}
	if req.ReadType != "" {
		t.ReadType = req.ReadType
	}
	if req.Phred != "" {
		t.Phred = req.Phred
	}
	if req.InputDir == "" && len(req.Manifest) == 0 {
		return trim.Config{}, errors.New("request needs an input_dir or a manifest")
	}

	cfg, err := t.TrimConfig()
	if err != nil {
		return trim.Config{}, err
	}
	// an adapter listed in the manifest is fetched alongside the reads
	if id, ok := req.Manifest[cfg.Adapter.Name]; ok {
		cfg.Adapter = reads.ReadFile{Name: cfg.Adapter.Name, Path: cfg.Adapter.Name, Origin: id}
	}
	return cfg, nil
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}
