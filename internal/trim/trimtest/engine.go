// Package trimtest provides a fake trimming engine for tests.
package trimtest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// The script takes the same positional arguments the builder emits.
// The base name of the first input selects the behaviour:
//
//	*fail*      exit 2 with a message on stderr
//	*nooutput*  exit 0 without writing outputs
//	*slow*      sleep before writing outputs
//
// Every other input gets each declared output written as a two-record FASTQ file.
const script = `#!/bin/sh
mode="$1"
shift 4
case "$(basename "$1")" in
  *fail*) echo "simulated engine failure on $1" >&2; exit 2 ;;
  *nooutput*) exit 0 ;;
  *slow*) sleep 5 ;;
esac
if [ "$mode" = "PE" ]; then shift 2; n=4; else shift 1; n=2; fi
i=0
for f in "$@"; do
  [ "$i" -ge "$n" ] && break
  printf '@read1\nACGTACGT\n+\nIIIIIIII\n@read2\nACGT\n+\nIIII\n' > "$f" || exit 1
  i=$((i+1))
done
exit 0
`

// Engine writes the fake engine into a temp dir and returns it as an engine
// prefix for trim.NewBuilder. Tests are skipped where /bin/sh is unavailable.
func Engine(t testing.TB) []string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engine needs /bin/sh")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("fake engine needs /bin/sh")
	}

	path := filepath.Join(t.TempDir(), "fake-trimmomatic")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake engine: %v", err)
	}
	return []string{path}
}

// WriteReads creates empty placeholder read files named names inside dir.
func WriteReads(t testing.TB, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("@r\nA\n+\nI\n"), 0o644); err != nil {
			t.Fatalf("write read %s: %v", name, err)
		}
	}
}
