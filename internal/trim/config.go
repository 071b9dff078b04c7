// Package trim builds and runs command lines for the external read-trimming
// engine (Trimmomatic or a compatible wrapper).
package trim

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tendant/simple-trimmer/internal/reads"
)

const (
	DefaultSlidingWindow = "4:30:10"
	DefaultMinLen        = 30
	DefaultThreads       = 4
	DefaultPhred         = Phred64
	DefaultClipParams    = "2:30:10"
)

// DefaultEngine launches the Trimmomatic jar through java.
var DefaultEngine = []string{"java", "-jar", "trimmomatic-0.39.jar"}

// Phred is the quality score encoding offset.
type Phred int

const (
	Phred33 Phred = 33
	Phred64 Phred = 64
)

// ParsePhred accepts "33", "64", "phred33" or "-phred64".
func ParsePhred(s string) (Phred, error) {
	v := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "-")
	v = strings.TrimPrefix(v, "phred")
	switch v {
	case "33":
		return Phred33, nil
	case "64":
		return Phred64, nil
	default:
		return 0, fmt.Errorf("invalid phred encoding %q (want 33 or 64)", s)
	}
}

// Flag returns the engine flag for the encoding.
func (p Phred) Flag() string {
	return fmt.Sprintf("-phred%d", int(p))
}

// Config holds the trimming parameters shared read-only by every job of a batch.
type Config struct {
	// SlidingWindow is "W:Q"; extra numeric fields are passed through to the engine.
	SlidingWindow string
	MinLen        int
	Threads       int
	Phred         Phred
	Adapter       reads.ReadFile
	// ClipParams follows the adapter file in ILLUMINACLIP (seed mismatches:palindrome:simple).
	ClipParams string
	Mode       reads.Mode
}

// DefaultConfig returns the documented defaults for paired-end data.
func DefaultConfig(adapter reads.ReadFile) Config {
	return Config{
		SlidingWindow: DefaultSlidingWindow,
		MinLen:        DefaultMinLen,
		Threads:       DefaultThreads,
		Phred:         DefaultPhred,
		Adapter:       adapter,
		ClipParams:    DefaultClipParams,
		Mode:          reads.ModePaired,
	}
}

// Validate checks every field the command line depends on.
func (c Config) Validate() error {
	if err := validateColonInts("sliding window", c.SlidingWindow, 2); err != nil {
		return err
	}
	if err := validateColonInts("clip params", c.ClipParams, 3); err != nil {
		return err
	}
	if c.MinLen <= 0 {
		return fmt.Errorf("min length must be greater than zero (got %d)", c.MinLen)
	}
	if c.Threads < 1 {
		return fmt.Errorf("threads must be at least 1 (got %d)", c.Threads)
	}
	if c.Phred != Phred33 && c.Phred != Phred64 {
		return fmt.Errorf("invalid phred encoding %d", c.Phred)
	}
	if c.Adapter.Path == "" {
		return fmt.Errorf("adapter reference is required")
	}
	if c.Mode != reads.ModePaired && c.Mode != reads.ModeSingle {
		return fmt.Errorf("invalid mode %q", c.Mode)
	}
	return nil
}

// validateColonInts requires at least min colon-separated positive integers.
func validateColonInts(what, value string, min int) error {
	parts := strings.Split(value, ":")
	if value == "" || len(parts) < min {
		return fmt.Errorf("invalid %s %q: want at least %d colon-separated values", what, value, min)
	}
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid %s %q: %q is not a positive integer", what, value, p)
		}
	}
	return nil
}
