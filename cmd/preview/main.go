// cmd/preview shows how a directory of reads would be paired and trimmed
// without starting the engine.
//
// Usage:
//
//	./preview -input ./runs/s1 -adapter-seq TruSeq3-PE.fa
//	./preview -input ./runs/s1 -read-type SE -v   # also print engine command lines
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/tendant/simple-trimmer/internal/config"
	"github.com/tendant/simple-trimmer/internal/reads"
	"github.com/tendant/simple-trimmer/internal/storage"
	"github.com/tendant/simple-trimmer/internal/trim"
)

func main() {
	_ = godotenv.Load()

	base, err := config.LoadTrim()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	input := flag.String("input", base.InputDir, "Directory of reads to preview (required)")
	workspace := flag.String("workspace", filepath.Join(base.Workspace, "preview"), "Directory outputs would be written to")
	flag.StringVar(&base.AdapterSeq, "adapter-seq", base.AdapterSeq, "Adapter FASTA file")
	flag.StringVar(&base.ReadType, "read-type", base.ReadType, "PE or SE")
	flag.StringVar(&base.ForwardMarker, "forward-marker", base.ForwardMarker, "Forward read marker")
	flag.StringVar(&base.ReverseMarker, "reverse-marker", base.ReverseMarker, "Reverse read marker")
	flag.StringVar(&base.Engine, "engine", base.Engine, "Engine command prefix")
	verbose := flag.Bool("v", false, "Print the engine command line of every job")

	flag.Parse()

	if *input == "" {
		fmt.Println("Error: -input flag is required")
		flag.Usage()
		os.Exit(1)
	}
	if base.AdapterSeq == "" {
		// pairing can be previewed without an adapter file
		base.AdapterSeq = "adapters.fa"
	}

	if err := preview(context.Background(), os.Stdout, base, *input, *workspace, *verbose); err != nil {
		log.Fatalf("preview %s: %v", *input, err)
	}
}

func preview(ctx context.Context, w io.Writer, t config.Trim, input, workspace string, verbose bool) error {
	cfg, err := t.TrimConfig()
	if err != nil {
		return err
	}
	matcher, err := t.Matcher()
	if err != nil {
		return err
	}

	names, err := storage.LocalDir{}.List(ctx, input)
	if err != nil {
		return err
	}
	resolver := reads.Resolver{Matcher: matcher, Dir: input, Workspace: workspace}
	res, err := resolver.Resolve(names, cfg.Mode)
	if err != nil {
		fmt.Fprintf(w, "Batch would be rejected, no jobs would start:\n  %v\n", err)
		return nil
	}

	fmt.Fprintf(w, "Input: %s (%s, %d files)\n", input, cfg.Mode, len(names))
	fmt.Fprintln(w, strings.Repeat("-", 40))
	builder := trim.NewBuilder(t.EngineArgs())
	for _, u := range res.Units {
		var in []string
		for _, rf := range u.Input.Reads() {
			in = append(in, rf.Name)
		}
		fmt.Fprintf(w, "%s: %s\n", u.Input.PairKey(), strings.Join(in, " + "))
		for i, p := range u.Outputs.Paths() {
			fmt.Fprintf(w, "  %-18s %s\n", u.Outputs.Roles()[i], p)
		}
		if verbose {
			argv, err := builder.Build(u.Input, cfg, u.Outputs)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "  $ %s\n", strings.Join(argv, " "))
		}
	}

	for _, name := range res.Unmatched {
		fmt.Fprintf(w, "unmatched: %s\n", name)
	}
	for _, msg := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
	fmt.Fprintf(w, "%d jobs, %d unmatched\n", len(res.Units), len(res.Unmatched))
	return nil
}
