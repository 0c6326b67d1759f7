// Package format renders request journal entries for the terminal.
package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/berrythewa/rfs/internal/storage"
)

// FormatEntry renders one journal entry.
func FormatEntry(e *storage.Entry, opts Options, now time.Time) string {
	status := ColorizeIf("ok", Green, opts.UseColors)
	switch {
	case e.Error != "":
		status = ColorizeIf("dropped", Red, opts.UseColors)
	case !e.OK:
		status = ColorizeIf("failed", Yellow, opts.UseColors)
	}

	command := e.Command
	if command == "" {
		command = "-"
	}
	args := TruncateText(strings.Join(e.Args, " "), opts.MaxWidth)

	if opts.Compact {
		line := fmt.Sprintf("%s  %-4s %s  %s",
			DimIf(e.Time.Format("2006-01-02 15:04:05"), opts.UseColors),
			command, status, args)
		return strings.TrimRight(line, " ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s  %s\n",
		BoldIf(command, opts.UseColors), args, status)
	fmt.Fprintf(&b, "  %s  from %s  %s  %s\n",
		DimIf(FormatRelativeTime(e.Time, now), opts.UseColors),
		e.Peer, FormatSize(e.Bytes), e.Duration.Round(time.Microsecond))
	if e.Message != "" {
		fmt.Fprintf(&b, "  %s\n", TruncateText(e.Message, opts.MaxWidth))
	}
	if e.Error != "" {
		fmt.Fprintf(&b, "  %s\n", ColorizeIf(TruncateText(e.Error, opts.MaxWidth), Red, opts.UseColors))
	}
	if opts.ShowIDs {
		fmt.Fprintf(&b, "  %s\n", DimIf(e.ID, opts.UseColors))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatEntries renders entries in order, with a header giving the count.
func FormatEntries(entries []*storage.Entry, total int, opts Options, now time.Time) string {
	if len(entries) == 0 {
		return "No requests recorded."
	}

	parts := []string{
		ColorizeIf(fmt.Sprintf("Showing %d of %d requests", len(entries), total), Cyan, opts.UseColors),
	}
	sep := "\n"
	if !opts.Compact {
		sep = "\n\n"
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, FormatEntry(e, opts, now))
	}
	parts = append(parts, strings.Join(lines, sep))
	return strings.Join(parts, sep)
}
