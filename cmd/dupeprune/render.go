package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	dupeprune "github.com/mattkeenan/dupeprune/pkg"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// renderReport writes the report in the requested format
func renderReport(w io.Writer, format string, report *dupeprune.Report) error {
	switch strings.ToLower(format) {
	case "", dupeprune.FormatHuman:
		return renderHuman(w, report)
	case dupeprune.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case dupeprune.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case dupeprune.FormatMsgpack:
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		return enc.Encode(report)
	case dupeprune.FormatFdupes:
		return renderFdupes(w, report)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// renderFdupes prints each group's paths one per line, survivor first,
// groups separated by a blank line
func renderFdupes(w io.Writer, report *dupeprune.Report) error {
	bw := bufio.NewWriter(w)
	for i, plan := range report.Groups {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		fmt.Fprintln(bw, plan.Survivor.Path)
		for _, record := range plan.Group.Records {
			if record.Path != plan.Survivor.Path {
				fmt.Fprintln(bw, record.Path)
			}
		}
	}
	return bw.Flush()
}

func renderHuman(w io.Writer, report *dupeprune.Report) error {
	bold := color.New(color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	deleteVerb := "delete"
	if report.Mode != dupeprune.Live {
		deleteVerb = "would delete"
	}

	bw := bufio.NewWriter(w)
	for _, plan := range report.Groups {
		fmt.Fprintf(bw, "%s %s x %d  %s\n",
			bold(dupeprune.FormatSize(plan.Group.Size)), gray("each"), len(plan.Group.Records), gray(shortFingerprint(plan.Group.Fingerprint)))

		victims := make(map[string]bool, len(plan.Victims))
		for _, victim := range plan.Victims {
			victims[victim.Path] = true
		}
		for _, record := range plan.Group.Records {
			if victims[record.Path] {
				fmt.Fprintf(bw, "  %s %s\n", red(deleteVerb), record.Path)
			} else {
				fmt.Fprintf(bw, "  %s %s%s\n", green("keep"), record.Path, referenceTag(record, cyan))
			}
		}
		fmt.Fprintln(bw)
	}

	if len(report.Skipped) > 0 {
		fmt.Fprintf(bw, "%s\n", yellow("Skipped:"))
		for _, s := range report.Skipped {
			fmt.Fprintf(bw, "  %s (%s: %s)\n", s.Path, s.Stage, s.Reason)
		}
		fmt.Fprintln(bw)
	}

	summary := report.Summary
	if len(summary.Failures) > 0 {
		fmt.Fprintf(bw, "%s\n", red("Failed:"))
		for _, f := range summary.Failures {
			fmt.Fprintf(bw, "  %s (%s)\n", f.Path, f.Reason)
		}
		fmt.Fprintln(bw)
	}

	fmt.Fprintf(bw, "%s %d files scanned, %d duplicate groups, %s reclaimable\n",
		bold("Summary:"), report.FilesScanned, summary.GroupsProcessed, dupeprune.FormatSize(summary.BytesReclaimable))
	if report.Mode == dupeprune.Live {
		fmt.Fprintf(bw, "%s %d files deleted, %s reclaimed, %d failures\n",
			bold("Deleted:"), summary.FilesDeleted, dupeprune.FormatSize(summary.BytesReclaimed), len(summary.Failures))
	} else {
		fmt.Fprintf(bw, "%s\n", gray("Dry run: nothing was deleted"))
	}

	return bw.Flush()
}

func referenceTag(record dupeprune.FileRecord, cyan func(a ...interface{}) string) string {
	if record.IsReference() {
		return " " + cyan("[reference]")
	}
	return ""
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
