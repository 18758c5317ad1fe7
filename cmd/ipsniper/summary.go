package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/lc/ipsniper/internal/engine"
	"github.com/lc/ipsniper/pkg/api"
)

var headerColor = tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor}

// renderSummary prints the end-of-run report: the match line followed by the
// per-resolver timeout table.
func renderSummary(w io.Writer, st engine.Stats) {
	fmt.Fprintln(w)
	color.New(color.FgGreen, color.Bold).Fprint(w, "Found ")
	color.New(color.FgHiGreen, color.Bold).Fprintf(w, "%d", st.Matched)
	color.New(color.FgGreen, color.Bold).Fprintf(w, " matching domains out of %d in %s (%.2f/sec)\n",
		st.Total, st.Elapsed.Round(time.Millisecond), st.OverallRate)
	if uint64(st.Total) != st.Processed {
		color.New(color.FgYellow).Fprintf(w, "Sweep stopped early: %d of %d domains processed\n", st.Processed, st.Total)
	}
	if st.Pending > 0 {
		color.New(color.FgHiRed, color.Bold).Fprintf(w, "%d matches could not be written to the output\n", st.Pending)
	}
	if st.TimeoutTotal > 0 {
		color.New(color.FgYellow).Fprintf(w, "%d queries timed out across %d resolvers\n", st.TimeoutTotal, len(st.Timeouts))
	}
	fmt.Fprintln(w)
	renderTimeouts(w, st.Timeouts)
}

// renderStatus prints a live status report fetched from a running sweep.
func renderStatus(w io.Writer, st api.StatusResponse) {
	state := color.New(color.FgYellow, color.Bold).Sprint("running")
	if st.Done {
		state = color.New(color.FgGreen, color.Bold).Sprint("finished")
	}
	color.New(color.Bold).Fprintln(w, "SWEEP STATUS:")

	key := color.New(color.FgHiWhite).SprintFunc()
	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	for _, row := range [][2]string{
		{"Run", st.RunID},
		{"State", state},
		{"Progress", fmt.Sprintf("%d / %d", st.Processed, st.Total)},
		{"Matched", strconv.FormatInt(st.Matched, 10)},
		{"Pending", strconv.Itoa(st.Pending)},
		{"Elapsed", st.Elapsed.Round(time.Second).String()},
		{"Rate", fmt.Sprintf("%d/sec now, %.2f/sec overall", st.CurrentRate, st.OverallRate)},
		{"Flushes", fmt.Sprintf("%d ok, %d failed", st.Flushes, st.FlushFailures)},
		{"Timeouts", strconv.FormatUint(st.TimeoutTotal, 10)},
		{"Version", fmt.Sprintf("%s (%s)", st.Version, st.Commit)},
	} {
		table.Append([]string{key(row[0]), row[1]})
	}
	table.Render()

	if len(st.Outcomes) > 0 {
		fmt.Fprintln(w)
		outcomes := tablewriter.NewWriter(w)
		outcomes.SetHeader([]string{"Outcome", "Domains"})
		outcomes.SetHeaderColor(headerColor, headerColor)
		outcomes.SetBorder(false)
		names := make([]string, 0, len(st.Outcomes))
		for name := range st.Outcomes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			outcomes.Append([]string{name, strconv.FormatUint(st.Outcomes[name], 10)})
		}
		outcomes.Render()
	}

	fmt.Fprintln(w)
	renderTimeouts(w, st.Timeouts)
}

func renderTimeouts(w io.Writer, timeouts []engine.ResolverTimeouts) {
	if len(timeouts) == 0 {
		return
	}
	color.New(color.Bold).Fprintln(w, "TIMEOUTS PER RESOLVER:")
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Resolver", "Timeouts"})
	table.SetHeaderColor(headerColor, headerColor)
	table.SetBorder(false)
	table.SetColumnColor(
		tablewriter.Colors{tablewriter.FgHiWhiteColor},
		tablewriter.Colors{tablewriter.FgYellowColor},
	)
	for _, t := range timeouts {
		table.Append([]string{t.Server, strconv.FormatUint(t.Count, 10)})
	}
	table.Render()
}
