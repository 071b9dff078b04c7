package fastq

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoRecords = "@read1\nACGTACGT\n+\nIIIIIIII\n@read2\nACGT\n+read2\nIIII\n"

func TestCount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr string
	}{
		{name: "Empty", input: "", want: 0},
		{name: "TwoRecords", input: twoRecords, want: 2},
		{name: "TrailingBlankLine", input: twoRecords + "\n", want: 2},
		{name: "MissingHeader", input: "read1\nACGT\n+\nIIII\n", wantErr: "expected '@'"},
		{name: "MissingSeparator", input: "@r\nACGT\n-\nIIII\n", wantErr: "expected '+'"},
		{name: "QualityLengthMismatch", input: "@r\nACGT\n+\nIII\n", wantErr: "does not match"},
		{name: "Truncated", input: "@r\nACGT\n+\n", wantErr: "truncated"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Count(strings.NewReader(tc.input))
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCountFilePlainAndGzip(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "reads.fastq")
	require.NoError(t, os.WriteFile(plain, []byte(twoRecords), 0o644))

	gz := filepath.Join(dir, "reads.fastq.gz")
	f, err := os.Create(gz)
	require.NoError(t, err)
	w := pgzip.NewWriter(f)
	_, err = w.Write([]byte(twoRecords + twoRecords))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	n, err := CountFile(plain)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = CountFile(gz)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestCountFileMissing(t *testing.T) {
	_, err := CountFile(filepath.Join(t.TempDir(), "missing.fq"))
	assert.Error(t, err)
}
