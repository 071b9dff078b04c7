package trim

import (
	"fmt"
	"strconv"

	"github.com/tendant/simple-trimmer/internal/reads"
)

// Builder assembles engine argument vectors. It performs no I/O.
type Builder struct {
	// Engine is the launcher prefix, e.g. ["java", "-jar", "trimmomatic-0.39.jar"].
	Engine []string
}

// NewBuilder copies engine so later edits by the caller have no effect.
func NewBuilder(engine []string) Builder {
	if len(engine) == 0 {
		engine = DefaultEngine
	}
	return Builder{Engine: append([]string(nil), engine...)}
}

// Build returns the full command line for one job:
//
//	<engine> PE|SE -threads N -phredXX <inputs...> <outputs...> ILLUMINACLIP:<adapter>:<clip> SLIDINGWINDOW:<w> MINLEN:<n>
//
// Paired outputs are ordered trimmed_fwd, untrimmed_fwd, trimmed_rev, untrimmed_rev.
func (b Builder) Build(in reads.Input, cfg Config, out reads.OutputSpec) ([]string, error) {
	if len(b.Engine) == 0 {
		return nil, fmt.Errorf("build command: no engine configured")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("build command: %w", err)
	}
	if in.Mode() != cfg.Mode {
		return nil, fmt.Errorf("build command: %s input %s in %s batch", in.Mode(), in.PairKey(), cfg.Mode)
	}

	inputs := in.Reads()
	outputs := out.Paths()
	if len(outputs) != 2*len(inputs) {
		return nil, fmt.Errorf("build command: %s needs %d outputs, got %d", in.PairKey(), 2*len(inputs), len(outputs))
	}

	seen := make(map[string]struct{}, len(inputs)+len(outputs))
	for _, rf := range inputs {
		if rf.Path == "" {
			return nil, fmt.Errorf("build command: input %s has no path", rf.Name)
		}
		seen[rf.Path] = struct{}{}
	}
	for _, p := range outputs {
		if p == "" {
			return nil, fmt.Errorf("build command: empty output path for %s", in.PairKey())
		}
		if _, dup := seen[p]; dup {
			return nil, fmt.Errorf("build command: path %s used twice for %s", p, in.PairKey())
		}
		seen[p] = struct{}{}
	}

	argv := make([]string, 0, len(b.Engine)+7+len(inputs)+len(outputs))
	argv = append(argv, b.Engine...)
	argv = append(argv,
		string(cfg.Mode),
		"-threads", strconv.Itoa(cfg.Threads),
		cfg.Phred.Flag(),
	)
	for _, rf := range inputs {
		argv = append(argv, rf.Path)
	}
	argv = append(argv, outputs...)
	argv = append(argv,
		"ILLUMINACLIP:"+cfg.Adapter.Path+":"+cfg.ClipParams,
		"SLIDINGWINDOW:"+cfg.SlidingWindow,
		"MINLEN:"+strconv.Itoa(cfg.MinLen),
	)
	return argv, nil
}
