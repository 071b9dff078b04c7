package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/tendant/simple-trimmer/internal/batch"
	"github.com/tendant/simple-trimmer/internal/ledger"
	"github.com/tendant/simple-trimmer/internal/trim"
)

var (
	okColor   = color.New(color.FgHiGreen)
	failColor = color.New(color.FgHiRed)
	warnColor = color.New(color.FgHiYellow)
	infoColor = color.New(color.FgHiMagenta)
)

func printReport(w io.Writer, res *batch.Result, policy batch.Policy) {
	infoColor.Fprintf(w, "\nBatch %s (%s) %s\n", res.ID, res.Mode, res.InputDir)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PAIR\tSTATUS\tEXIT\tDURATION\tOUTPUTS\tERROR")
	for _, o := range res.Outcomes {
		status := okColor.Sprint(o.Status)
		if o.Status != trim.StatusSuccess {
			status = failColor.Sprint(o.Status)
		}
		published := len(o.Published) - len(o.PublishFailures())
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d/%d\t%s\n",
			o.Input.PairKey(),
			status,
			o.ExitCode,
			o.Duration.Round(time.Millisecond),
			published, len(o.Published),
			firstLine(o.ErrorMessage()),
		)
	}
	tw.Flush()

	for _, o := range res.Outcomes {
		for _, p := range o.PublishFailures() {
			warnColor.Fprintf(w, "publish failed: %v\n", p.Err)
		}
		for _, p := range o.Published {
			if p.Reads >= 0 && p.Err == nil {
				fmt.Fprintf(w, "%s: %d reads\n", p.Ref, p.Reads)
			}
		}
	}
	for _, name := range res.Unmatched {
		warnColor.Fprintf(w, "unmatched: %s\n", name)
	}
	for _, msg := range res.Warnings {
		warnColor.Fprintf(w, "warning: %s\n", msg)
	}

	summary := fmt.Sprintf("%d jobs, %d succeeded, %d failed in %s (policy %s)\n",
		len(res.Outcomes), res.Succeeded(), res.Failed(),
		res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond), policy)
	if res.OK(policy) {
		okColor.Fprint(w, summary)
	} else {
		failColor.Fprint(w, summary)
	}
}

func printRejected(w io.Writer, err error) {
	failColor.Fprintf(w, "batch rejected, no jobs were started: %v\n", err)
}

func printHistory(w io.Writer, records []ledger.BatchRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BATCH\tSTARTED\tSTATUS\tJOBS\tOK\tFAILED\tINPUT")
	for _, r := range records {
		status := okColor.Sprint(r.Status)
		if r.Status != ledger.StatusSucceeded {
			status = failColor.Sprint(r.Status)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Format(time.RFC3339), status, r.TotalJobs, r.Succeeded, r.Failed, r.InputDir)
	}
	tw.Flush()
}

func printBatch(w io.Writer, r *ledger.BatchRecord) {
	infoColor.Fprintf(w, "\nBatch %s (%s) %s\n", r.ID, r.Mode, r.InputDir)
	fmt.Fprintf(w, "status %s, %d jobs, %d succeeded, %d failed, %d unmatched (policy %s)\n",
		r.Status, r.TotalJobs, r.Succeeded, r.Failed, r.Unmatched, r.Policy)
	if r.Error != "" {
		failColor.Fprintf(w, "error: %s\n", r.Error)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PAIR\tSTATUS\tEXIT\tDURATION\tERROR")
	for _, j := range r.Jobs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			j.PairKey, j.Status, j.ExitCode, time.Duration(j.DurationMs)*time.Millisecond, firstLine(j.Error))
	}
	tw.Flush()

	for _, j := range r.Jobs {
		if j.Outputs == "" {
			continue
		}
		for _, ref := range strings.Split(j.Outputs, "\n") {
			fmt.Fprintf(w, "%s: %s\n", j.PairKey, ref)
		}
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
