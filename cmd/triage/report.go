package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/kiranshivaraju/triage/pkg/models"
)

const (
	reportTopClusters = 10
	reportTextWidth   = 72
)

// printReport writes a short human summary of a run: totals, then the
// largest clusters with their owner and first line of text.
func printReport(w io.Writer, out *models.Output, failures int, elapsed time.Duration) {
	bold := color.New(color.Bold)
	count := color.New(color.FgRed, color.Bold)
	owner := color.New(color.FgCyan)
	dim := color.New(color.Faint)

	fmt.Fprintf(w, "%s %s failures in %s clusters (%s)\n",
		bold.Sprint("triage:"),
		humanize.Comma(int64(failures)),
		humanize.Comma(int64(len(out.Clustered))),
		elapsed.Round(time.Millisecond))

	n := min(len(out.Clustered), reportTopClusters)
	for _, c := range out.Clustered[:n] {
		fmt.Fprintf(w, "  %s %s %s %s\n",
			count.Sprintf("%6s", humanize.Comma(int64(c.FailureCount()))),
			dim.Sprint(c.ID[:8]),
			owner.Sprintf("%-12s", c.Owner),
			firstLine(c.Text, reportTextWidth))
	}
	if rest := len(out.Clustered) - n; rest > 0 {
		fmt.Fprintf(w, "  %s\n", dim.Sprintf("... and %s more", humanize.Comma(int64(rest))))
	}
}

func firstLine(s string, width int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(s)
	if len(r) > width {
		return string(r[:width-3]) + "..."
	}
	return s
}
