package trim

import (
	"reflect"
	"strings"
	"testing"

	"github.com/tendant/simple-trimmer/internal/reads"
)

func testPair() (reads.ReadPair, reads.OutputSpec) {
	pair := reads.ReadPair{
		Key:     "sampleA.fastq",
		Forward: reads.ReadFile{Name: "sampleA_r1.fastq", Path: "/in/sampleA_r1.fastq"},
		Reverse: reads.ReadFile{Name: "sampleA_r2.fastq", Path: "/in/sampleA_r2.fastq"},
	}
	return pair, reads.OutputsFor(pair, "/ws")
}

func testConfig() Config {
	cfg := DefaultConfig(reads.ReadFile{Name: "TruSeq3-PE.fa", Path: "/ref/TruSeq3-PE.fa"})
	cfg.Threads = 2
	return cfg
}

func TestBuildPaired(t *testing.T) {
	pair, out := testPair()
	b := NewBuilder(nil)

	got, err := b.Build(pair, testConfig(), out)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	want := []string{
		"java", "-jar", "trimmomatic-0.39.jar",
		"PE", "-threads", "2", "-phred64",
		"/in/sampleA_r1.fastq", "/in/sampleA_r2.fastq",
		"/ws/trimmed_sampleA_r1.fastq", "/ws/untrimmed_sampleA_r1.fastq",
		"/ws/trimmed_sampleA_r2.fastq", "/ws/untrimmed_sampleA_r2.fastq",
		"ILLUMINACLIP:/ref/TruSeq3-PE.fa:2:30:10",
		"SLIDINGWINDOW:4:30:10",
		"MINLEN:30",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("argv mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestBuildIsPure(t *testing.T) {
	pair, out := testPair()
	b := NewBuilder([]string{"trimmomatic"})
	cfg := testConfig()

	first, err := b.Build(pair, cfg, out)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := b.Build(pair, cfg, out)
		if err != nil {
			t.Fatalf("Build returned error: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Build not deterministic: %q vs %q", first, again)
		}
	}
}

func TestBuildSingle(t *testing.T) {
	single := reads.ReadSingle{Key: "s.fq", Read: reads.ReadFile{Name: "s.fq", Path: "/in/s.fq"}}
	cfg := testConfig()
	cfg.Mode = reads.ModeSingle
	cfg.Phred = Phred33

	got, err := NewBuilder([]string{"trimmomatic"}).Build(single, cfg, reads.OutputsFor(single, "/ws"))
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	want := []string{
		"trimmomatic", "SE", "-threads", "2", "-phred33",
		"/in/s.fq", "/ws/trimmed_s.fq", "/ws/untrimmed_s.fq",
		"ILLUMINACLIP:/ref/TruSeq3-PE.fa:2:30:10", "SLIDINGWINDOW:4:30:10", "MINLEN:30",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("argv mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestBuildRejectsInvalidInput(t *testing.T) {
	pair, out := testPair()
	b := NewBuilder(nil)

	tests := []struct {
		name   string
		mutate func(*Config, *reads.OutputSpec)
		want   string
	}{
		{"mode mismatch", func(c *Config, _ *reads.OutputSpec) { c.Mode = reads.ModeSingle }, "batch"},
		{"missing reverse outputs", func(_ *Config, o *reads.OutputSpec) { o.TrimmedReverse, o.UntrimmedReverse = "", "" }, "needs 4 outputs"},
		{"empty output", func(_ *Config, o *reads.OutputSpec) { o.UntrimmedReverse = "" }, "empty output"},
		{"output overwrites input", func(_ *Config, o *reads.OutputSpec) { o.TrimmedForward = "/in/sampleA_r1.fastq" }, "used twice"},
		{"bad window", func(c *Config, _ *reads.OutputSpec) { c.SlidingWindow = "4" }, "sliding window"},
		{"zero min len", func(c *Config, _ *reads.OutputSpec) { c.MinLen = 0 }, "min length"},
		{"no adapter", func(c *Config, _ *reads.OutputSpec) { c.Adapter = reads.ReadFile{} }, "adapter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			o := out
			tt.mutate(&cfg, &o)
			_, err := b.Build(pair, cfg, o)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestParsePhred(t *testing.T) {
	for in, want := range map[string]Phred{"33": Phred33, "64": Phred64, "-phred33": Phred33, "phred64": Phred64} {
		got, err := ParsePhred(in)
		if err != nil || got != want {
			t.Errorf("ParsePhred(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
	if _, err := ParsePhred("42"); err == nil {
		t.Error("expected error for unsupported encoding")
	}
}

func TestConfigValidateSlidingWindow(t *testing.T) {
	cfg := testConfig()
	for _, ok := range []string{"4:30", "4:30:10"} {
		cfg.SlidingWindow = ok
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate(%q) returned error: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "4", "4:x", "0:30", "4:-1"} {
		cfg.SlidingWindow = bad
		if err := cfg.Validate(); err == nil {
			t.Errorf("Validate(%q) expected error", bad)
		}
	}
}
