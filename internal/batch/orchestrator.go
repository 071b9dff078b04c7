package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tendant/simple-trimmer/internal/fastq"
	"github.com/tendant/simple-trimmer/internal/process"
	"github.com/tendant/simple-trimmer/internal/reads"
	"github.com/tendant/simple-trimmer/internal/storage"
	"github.com/tendant/simple-trimmer/internal/trim"
	"github.com/tendant/simple-trimmer/pkg/schema"
)

// JobRunner executes one engine command line. trim.Runner satisfies it.
type JobRunner interface {
	Run(ctx context.Context, argv []string, outputs []string) trim.RunResult
}

// EventSink receives lifecycle events. bus.Client satisfies it.
type EventSink interface {
	PublishJSON(subject string, v any) error
}

// Request describes one batch.
type Request struct {
	// ID identifies the batch; a new uuid is assigned when empty.
	ID       string
	InputDir string
	// Destination receives every produced file. Empty keeps outputs in the workspace.
	Destination string
	Config      trim.Config
}

// Orchestrator runs PAIRING, RUNNING, AGGREGATING and DONE for a batch.
// The zero value is not usable; Source, Builder and Runner are required.
type Orchestrator struct {
	Source    storage.Source
	Publisher storage.Publisher
	Builder   trim.Builder
	Runner    JobRunner
	Matcher   reads.Matcher
	// Workspace is the root under which each batch gets its own directory.
	Workspace string
	// Workers caps concurrent engine processes. Zero derives it from NumCPU and threads.
	Workers    int
	CountReads bool
	Events     EventSink
	// Subject is where lifecycle events are published.
	Subject string
	Logger  *slog.Logger
}

// DefaultWorkers keeps total engine threads close to the CPU count.
func DefaultWorkers(threads int) int {
	if threads < 1 {
		threads = 1
	}
	n := runtime.NumCPU() / threads
	if n < 1 {
		n = 1
	}
	return n
}

// Execute pairs the reads of req.InputDir, runs one engine process per unit
// and publishes the outputs of every successful job. A pairing defect is
// returned as an error before any process starts. Job failures never abort
// their siblings; they are reported in the Result.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Result, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	logger := o.logger().With("batch_id", req.ID, "input_dir", req.InputDir)
	if err := ValidateID(req.ID); err != nil {
		o.emitStage(req.ID, schema.StageFailed, 0, err)
		logger.Error("batch rejected", "stage", StagePairing, "err", err)
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "batch.execute", trace.WithAttributes(
		attribute.String("batch.id", req.ID),
		attribute.String("batch.mode", string(req.Config.Mode)),
	))
	defer span.End()

	res := &Result{
		ID:          req.ID,
		Mode:        req.Config.Mode,
		InputDir:    req.InputDir,
		Destination: req.Destination,
		Workspace:   filepath.Join(o.Workspace, req.ID),
		StartedAt:   time.Now(),
	}

	units, err := o.pair(ctx, logger, req, res)
	if err != nil {
		o.emitStage(req.ID, schema.StageFailed, 0, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "pairing failed")
		batchCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "rejected")))
		logger.Error("batch rejected", "stage", StagePairing, "err", err)
		return nil, err
	}

	cfg := req.Config
	if cfg.Adapter.Origin != "" && len(units) > 0 {
		local, err := o.Source.Fetch(ctx, cfg.Adapter, res.Workspace)
		if err != nil {
			err = &FetchError{Name: cfg.Adapter.Name, Err: err}
			o.emitStage(req.ID, schema.StageFailed, 0, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "adapter fetch failed")
			return nil, err
		}
		cfg.Adapter.Path = local
	}

	o.emitStage(req.ID, schema.StageRunning, len(units), nil)
	logger.Info("batch running", "stage", StageRunning, "jobs", len(units), "workers", o.workers(cfg.Threads))
	res.Outcomes = o.run(ctx, logger, req.ID, res.Workspace, cfg, units)

	o.emitStage(req.ID, schema.StageAggregating, len(units), nil)
	o.aggregate(ctx, logger, req.Destination, res)

	res.FinishedAt = time.Now()
	o.emitStage(req.ID, schema.StageDone, len(units), nil)

	span.SetAttributes(
		attribute.Int("batch.jobs", len(res.Outcomes)),
		attribute.Int("batch.failed", res.Failed()),
	)
	status := "ok"
	if res.Failed() > 0 {
		status = "partial"
		span.SetStatus(codes.Error, fmt.Sprintf("%d jobs failed", res.Failed()))
	}
	batchCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))

	logger.Info("batch done",
		"stage", StageDone,
		"jobs", len(res.Outcomes),
		"succeeded", res.Succeeded(),
		"failed", res.Failed(),
		"unmatched", len(res.Unmatched),
		"duration_ms", res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
	)
	return res, nil
}

func (o *Orchestrator) pair(ctx context.Context, logger *slog.Logger, req Request, res *Result) ([]reads.Unit, error) {
	if err := req.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid trim config: %w", err)
	}
	if o.Source == nil || o.Runner == nil {
		return nil, errors.New("orchestrator needs a source and a runner")
	}
	o.emitStage(req.ID, schema.StagePairing, 0, nil)

	names, err := o.Source.List(ctx, req.InputDir)
	if err != nil {
		return nil, fmt.Errorf("list inputs: %w", err)
	}

	resolver := reads.Resolver{
		Matcher:   o.Matcher,
		Dir:       req.InputDir,
		Workspace: res.Workspace,
		Locate: func(name string) reads.ReadFile {
			return o.Source.Locate(req.InputDir, name)
		},
	}
	resolution, err := resolver.Resolve(names, req.Config.Mode)
	if err != nil {
		return nil, fmt.Errorf("pair reads in %s: %w", req.InputDir, err)
	}
	res.Unmatched = resolution.Unmatched
	res.Warnings = resolution.Warnings
	for _, w := range resolution.Warnings {
		logger.Warn("pairing warning", "warning", w)
	}
	if len(resolution.Unmatched) > 0 {
		logger.Info("unmatched files skipped", "count", len(resolution.Unmatched), "files", resolution.Unmatched)
	}

	if len(resolution.Units) > 0 {
		if err := os.MkdirAll(res.Workspace, 0o755); err != nil {
			return nil, fmt.Errorf("create workspace: %w", err)
		}
	}
	logger.Info("pairing complete", "stage", StagePairing, "units", len(resolution.Units))
	return resolution.Units, nil
}

// run dispatches one job per unit onto a bounded pool. Outcomes keep unit order.
func (o *Orchestrator) run(ctx context.Context, logger *slog.Logger, batchID, workspace string, cfg trim.Config, units []reads.Unit) []JobOutcome {
	outcomes := make([]JobOutcome, len(units))

	var g errgroup.Group
	g.SetLimit(o.workers(cfg.Threads))
	for i, unit := range units {
		if err := ctx.Err(); err != nil {
			outcomes[i] = notDispatched(unit, err)
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = notDispatched(unit, err)
				return nil
			}
			outcomes[i] = o.runJob(ctx, logger, batchID, workspace, cfg, unit)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func notDispatched(unit reads.Unit, cause error) JobOutcome {
	return JobOutcome{
		Input:    unit.Input,
		Outputs:  unit.Outputs,
		Status:   trim.StatusFailure,
		ExitCode: -1,
		Err:      fmt.Errorf("%w: %w", ErrNotDispatched, cause),
	}
}

func (o *Orchestrator) runJob(ctx context.Context, logger *slog.Logger, batchID, workspace string, cfg trim.Config, unit reads.Unit) JobOutcome {
	job := process.NewJob(batchID, unit.Input.PairKey())
	logger = logger.With("job_id", job.ID, "pair_key", job.PairKey)

	ctx, span := tracer.Start(ctx, "batch.job", trace.WithAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.pair_key", job.PairKey),
	))
	defer span.End()

	outcome := JobOutcome{
		JobID:    job.ID,
		Input:    unit.Input,
		Outputs:  unit.Outputs,
		Status:   trim.StatusFailure,
		ExitCode: -1,
	}
	fail := func(err error) JobOutcome {
		process.MarkFailed(job, err)
		outcome.Err = err
		outcome.Duration = job.Duration()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		jobCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(trim.StatusFailure))))
		o.emitJob(job, outcome)
		logger.Error("job failed", "exit_code", outcome.ExitCode, "err", err, "failure_type", ClassifyFailure(err))
		return outcome
	}

	process.MarkRunning(job)
	o.emitJob(job, outcome)

	input := unit.Input
	locals := make([]string, 0, 2)
	for _, rf := range input.Reads() {
		path, err := o.Source.Fetch(ctx, rf, workspace)
		if err != nil {
			return fail(&FetchError{Name: rf.Name, Err: err})
		}
		locals = append(locals, path)
	}
	input, err := reads.WithPaths(input, locals)
	if err != nil {
		return fail(err)
	}
	outcome.Input = input

	argv, err := o.Builder.Build(input, cfg, unit.Outputs)
	if err != nil {
		return fail(err)
	}
	// stale outputs from an earlier run must not satisfy the existence check
	for _, p := range unit.Outputs.Paths() {
		_ = os.Remove(p)
	}

	logger.Info("job started", "argv", argv)
	rr := o.Runner.Run(ctx, argv, unit.Outputs.Paths())
	outcome.ExitCode = rr.ExitCode
	outcome.EngineOutput = rr.Output
	jobDuration.Record(ctx, rr.Duration.Seconds())
	if rr.Status != trim.StatusSuccess {
		if rr.Err == nil {
			rr.Err = fmt.Errorf("engine reported %s", rr.Status)
		}
		return fail(rr.Err)
	}

	process.MarkSucceeded(job)
	outcome.Status = trim.StatusSuccess
	outcome.Duration = job.Duration()
	jobCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(trim.StatusSuccess))))
	o.emitJob(job, outcome)
	logger.Info("job succeeded", "duration_ms", outcome.Duration.Milliseconds())
	return outcome
}

// aggregate counts and publishes the outputs of successful jobs. A publish
// failure is recorded on the file and leaves the job's status untouched.
func (o *Orchestrator) aggregate(ctx context.Context, logger *slog.Logger, destination string, res *Result) {
	publisher := o.Publisher
	if publisher == nil {
		publisher = storage.LocalDir{}
	}

	for i := range res.Outcomes {
		outcome := &res.Outcomes[i]
		if outcome.Status != trim.StatusSuccess {
			continue
		}
		roles := outcome.Outputs.Roles()
		for j, path := range outcome.Outputs.Paths() {
			file := PublishedFile{Role: roles[j], Path: path, Reads: -1}
			if o.CountReads {
				n, err := fastq.CountFile(path)
				if err != nil {
					logger.Warn("count reads failed", "path", path, "err", err)
				} else {
					file.Reads = n
				}
			}

			if destination == "" {
				file.Ref = path
			} else if ref, err := publisher.Publish(ctx, path, destination); err != nil {
				file.Err = &PublishError{Path: path, Destination: destination, Err: err}
				publishFailures.Add(ctx, 1)
				logger.Error("publish failed", "job_id", outcome.JobID, "path", path, "destination", destination, "err", err)
			} else {
				file.Ref = ref
				logger.Debug("published", "job_id", outcome.JobID, "path", path, "ref", ref)
			}
			outcome.Published = append(outcome.Published, file)
		}
	}
}

func (o *Orchestrator) emitStage(batchID string, stage schema.BatchStage, total int, err error) {
	evt := schema.BatchLifecycleEvent{
		BatchID:    batchID,
		Stage:      stage,
		TotalJobs:  total,
		HappenedAt: time.Now().Unix(),
	}
	if err != nil {
		evt.Error = err.Error()
		evt.FailureType = ClassifyFailure(err)
	}
	o.emit(evt)
}

func (o *Orchestrator) emitJob(job *process.Job, outcome JobOutcome) {
	evt := schema.JobLifecycleEvent{
		BatchID:    job.BatchID,
		JobID:      job.ID,
		PairKey:    job.PairKey,
		Status:     string(job.Status),
		HappenedAt: time.Now().Unix(),
	}
	if !job.StartedAt.IsZero() {
		evt.ProcessingStart = job.StartedAt.Unix()
	}
	if job.Terminal() {
		evt.ProcessingEnd = job.FinishedAt.Unix()
		code := outcome.ExitCode
		evt.ExitCode = &code
	}
	if outcome.Err != nil {
		evt.Error = outcome.Err.Error()
		evt.FailureType = ClassifyFailure(outcome.Err)
	}
	o.emit(evt)
}

func (o *Orchestrator) emit(v any) {
	if o.Events == nil || o.Subject == "" {
		return
	}
	if err := o.Events.PublishJSON(o.Subject, v); err != nil {
		o.logger().Warn("publish lifecycle event failed", "subject", o.Subject, "err", err)
	}
}

func (o *Orchestrator) workers(threads int) int {
	if o.Workers > 0 {
		return o.Workers
	}
	return DefaultWorkers(threads)
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
