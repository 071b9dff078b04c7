// Package config reads trimming settings from the environment. Binaries
// load .env with godotenv first and may override values with flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tendant/simple-trimmer/internal/batch"
	"github.com/tendant/simple-trimmer/internal/reads"
	"github.com/tendant/simple-trimmer/internal/trim"
)

const (
	PublishLocal   = "local"
	PublishContent = "content"
)

// Trim holds the settings shared by every binary that runs batches.
type Trim struct {
	InputDir       string
	OutDir         string
	AdapterSeq     string
	SlidingWindow  string
	MinLen         int
	Threads        int
	ReadType       string
	Phred          string
	ClipParams     string
	ForwardMarker  string
	ReverseMarker  string
	Engine         string
	Workspace      string
	Workers        int
	Policy         string
	CountReads     bool
	PublishBackend string
	NATSURL        string
	LedgerPath     string
	OTLPEndpoint   string
}

// LoadTrim reads TRIM_* and related variables, applying defaults.
func LoadTrim() (Trim, error) {
	t := Trim{
		InputDir:       Getenv("TRIM_INPUT_DIR", ""),
		OutDir:         Getenv("TRIM_OUT_DIR", ""),
		AdapterSeq:     Getenv("TRIM_ADAPTER_SEQ", ""),
		SlidingWindow:  Getenv("TRIM_SLIDING_WINDOW", trim.DefaultSlidingWindow),
		ReadType:       Getenv("TRIM_READ_TYPE", string(reads.ModePaired)),
		Phred:          Getenv("TRIM_PHRED", strconv.Itoa(int(trim.DefaultPhred))),
		ClipParams:     Getenv("TRIM_CLIP_PARAMS", trim.DefaultClipParams),
		ForwardMarker:  Getenv("TRIM_FORWARD_MARKER", reads.DefaultForwardMarker),
		ReverseMarker:  Getenv("TRIM_REVERSE_MARKER", reads.DefaultReverseMarker),
		Engine:         Getenv("TRIMMOMATIC_CMD", strings.Join(trim.DefaultEngine, " ")),
		Workspace:      Getenv("TRIM_WORKSPACE", "./data/workspace"),
		Policy:         Getenv("TRIM_POLICY", string(batch.PolicyStrict)),
		CountReads:     GetenvBool("TRIM_COUNT_READS", false),
		PublishBackend: Getenv("PUBLISH_BACKEND", PublishLocal),
		NATSURL:        Getenv("NATS_URL", ""),
		LedgerPath:     Getenv("LEDGER_PATH", ""),
		OTLPEndpoint:   Getenv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	var err error
	if t.MinLen, err = ParsePositiveInt(Getenv("TRIM_MIN_LEN", strconv.Itoa(trim.DefaultMinLen)), "TRIM_MIN_LEN"); err != nil {
		return Trim{}, err
	}
	if t.Threads, err = ParsePositiveInt(Getenv("TRIM_THREADS", strconv.Itoa(trim.DefaultThreads)), "TRIM_THREADS"); err != nil {
		return Trim{}, err
	}
	if v := Getenv("TRIM_WORKERS", ""); v != "" {
		if t.Workers, err = ParsePositiveInt(v, "TRIM_WORKERS"); err != nil {
			return Trim{}, err
		}
	}
	return t, nil
}

// Validate checks the values that can be judged without touching the filesystem.
func (t Trim) Validate() error {
	if _, err := t.TrimConfig(); err != nil {
		return err
	}
	if _, err := t.Matcher(); err != nil {
		return err
	}
	if _, err := batch.ParsePolicy(t.Policy); err != nil {
		return err
	}
	if len(t.EngineArgs()) == 0 {
		return fmt.Errorf("TRIMMOMATIC_CMD must not be empty")
	}
	switch t.PublishBackend {
	case PublishLocal, PublishContent:
	default:
		return fmt.Errorf("unknown publish backend %q (want %s or %s)", t.PublishBackend, PublishLocal, PublishContent)
	}
	return nil
}

// TrimConfig converts the settings into the engine parameters of a batch.
func (t Trim) TrimConfig() (trim.Config, error) {
	mode, err := reads.ParseMode(t.ReadType)
	if err != nil {
		return trim.Config{}, err
	}
	phred, err := trim.ParsePhred(t.Phred)
	if err != nil {
		return trim.Config{}, err
	}
	if t.AdapterSeq == "" {
		return trim.Config{}, fmt.Errorf("adapter sequence file is required (TRIM_ADAPTER_SEQ)")
	}

	cfg := trim.Config{
		SlidingWindow: t.SlidingWindow,
		MinLen:        t.MinLen,
		Threads:       t.Threads,
		Phred:         phred,
		Adapter:       reads.ReadFile{Name: filepath.Base(t.AdapterSeq), Path: t.AdapterSeq},
		ClipParams:    t.ClipParams,
		Mode:          mode,
	}
	if err := cfg.Validate(); err != nil {
		return trim.Config{}, err
	}
	return cfg, nil
}

func (t Trim) Matcher() (reads.Matcher, error) {
	return reads.NewMatcher(t.ForwardMarker, t.ReverseMarker)
}

// EngineArgs splits the engine command on whitespace.
func (t Trim) EngineArgs() []string {
	return strings.Fields(t.Engine)
}

func Getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func GetenvBool(key string, defaultValue bool) bool {
	val := Getenv(key, "")
	if val == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return b
}

func ParsePositiveInt(value string, name string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero (got %d)", name, v)
	}
	return v, nil
}
