package trim

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tendant/simple-trimmer/internal/reads"
	"github.com/tendant/simple-trimmer/internal/trim/trimtest"
)

func buildFakeJob(t *testing.T, sample string) ([]string, reads.OutputSpec) {
	t.Helper()
	engine := trimtest.Engine(t)
	in := t.TempDir()
	ws := t.TempDir()
	trimtest.WriteReads(t, in, sample+"_r1.fq", sample+"_r2.fq")

	pair := reads.ReadPair{
		Key:     sample + ".fq",
		Forward: reads.ReadFile{Name: sample + "_r1.fq", Path: filepath.Join(in, sample+"_r1.fq")},
		Reverse: reads.ReadFile{Name: sample + "_r2.fq", Path: filepath.Join(in, sample+"_r2.fq")},
	}
	out := reads.OutputsFor(pair, ws)
	cfg := DefaultConfig(reads.ReadFile{Name: "adapters.fa", Path: filepath.Join(in, "adapters.fa")})

	argv, err := NewBuilder(engine).Build(pair, cfg, out)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	return argv, out
}

func TestRunSuccess(t *testing.T) {
	argv, out := buildFakeJob(t, "good")

	res := Runner{}.Run(context.Background(), argv, out.Paths())
	if res.Status != StatusSuccess {
		t.Fatalf("expected success, got %s: %v", res.Status, res.Err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("unexpected exit code %d", res.ExitCode)
	}
	for _, p := range out.Paths() {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("output %s not written: %v", p, err)
		}
	}
}

func TestRunNonZeroExit(t *testing.T) {
	argv, out := buildFakeJob(t, "fail")

	res := Runner{}.Run(context.Background(), argv, out.Paths())
	if res.Status != StatusFailure {
		t.Fatalf("expected failure, got %s", res.Status)
	}
	var nz *NonZeroExitError
	if !errors.As(res.Err, &nz) {
		t.Fatalf("expected NonZeroExitError, got %v", res.Err)
	}
	if res.ExitCode != 2 || nz.ExitCode != 2 {
		t.Fatalf("exit code not captured: result=%d err=%d", res.ExitCode, nz.ExitCode)
	}
	if !strings.Contains(res.Output, "simulated engine failure") {
		t.Fatalf("engine output not captured: %q", res.Output)
	}
}

func TestRunMissingOutputs(t *testing.T) {
	argv, out := buildFakeJob(t, "nooutput")

	res := Runner{}.Run(context.Background(), argv, out.Paths())
	var missing *MissingOutputError
	if !errors.As(res.Err, &missing) {
		t.Fatalf("expected MissingOutputError, got %v", res.Err)
	}
	if res.Status != StatusFailure || res.ExitCode != 0 {
		t.Fatalf("unexpected result: status=%s exit=%d", res.Status, res.ExitCode)
	}
	if len(missing.Paths) != 4 {
		t.Fatalf("expected 4 missing outputs, got %v", missing.Paths)
	}
}

func TestRunLaunchFailure(t *testing.T) {
	res := Runner{}.Run(context.Background(), []string{filepath.Join(t.TempDir(), "no-such-engine"), "PE"}, nil)
	var launch *ProcessLaunchError
	if !errors.As(res.Err, &launch) {
		t.Fatalf("expected ProcessLaunchError, got %v", res.Err)
	}
	if res.ExitCode != -1 || res.Status != StatusFailure {
		t.Fatalf("unexpected result: %+v", res)
	}

	res = Runner{}.Run(context.Background(), nil, nil)
	if !errors.As(res.Err, &launch) {
		t.Fatalf("expected ProcessLaunchError for empty argv, got %v", res.Err)
	}
}

func TestRunCancelledKillsEngine(t *testing.T) {
	argv, out := buildFakeJob(t, "slow")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := Runner{WaitDelay: 200 * time.Millisecond}.Run(ctx, argv, out.Paths())
	if time.Since(start) > 4*time.Second {
		t.Fatalf("runner did not stop the engine promptly")
	}
	if res.Status != StatusFailure {
		t.Fatalf("expected failure, got %s", res.Status)
	}
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline cause, got %v", res.Err)
	}
}

func TestTailKeepsEnd(t *testing.T) {
	if got := tail([]byte("abcdef"), 3); got != "def" {
		t.Fatalf("tail = %q", got)
	}
	if got := tail([]byte("ab"), 3); got != "ab" {
		t.Fatalf("tail = %q", got)
	}
}
