// Package fastq counts records in plain or gzip-compressed FASTQ files.
package fastq

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
)

var gzipMagic = []byte{0x1f, 0x8b}

// CountFile opens path, transparently decompressing gzip, and counts records.
func CountFile(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	var r io.Reader = br
	if bytes.Equal(head, gzipMagic) {
		gr, err := pgzip.NewReader(br)
		if err != nil {
			return 0, fmt.Errorf("open gzip %s: %w", path, err)
		}
		defer gr.Close()
		r = gr
	}

	n, err := Count(r)
	if err != nil {
		return n, fmt.Errorf("count %s: %w", path, err)
	}
	return n, nil
}

// Count reads four-line FASTQ records from r and returns how many it saw.
// A malformed record stops the count with an error.
func Count(r io.Reader) (int64, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var records int64
	var line int64
	var seqLen int
	for scanner.Scan() {
		text := scanner.Text()
		line++
		switch line % 4 {
		case 1:
			if text == "" {
				// tolerate trailing blank lines
				line--
				continue
			}
			if !strings.HasPrefix(text, "@") {
				return records, fmt.Errorf("line %d: expected '@' header, got %q", line, text)
			}
		case 2:
			seqLen = len(text)
		case 3:
			if !strings.HasPrefix(text, "+") {
				return records, fmt.Errorf("line %d: expected '+' separator, got %q", line, text)
			}
		case 0:
			if len(text) != seqLen {
				return records, fmt.Errorf("line %d: quality length %d does not match sequence length %d", line, len(text), seqLen)
			}
			records++
		}
	}
	if err := scanner.Err(); err != nil {
		return records, err
	}
	if line%4 != 0 {
		return records, fmt.Errorf("truncated record after line %d", line)
	}
	return records, nil
}
