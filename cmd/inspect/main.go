// Command inspect loads a station status CSV offline, renders it into an
// in-memory map layer, and prints a report of what the map would show: marker
// counts per status and per style, the viewport, rows skipped for missing
// coordinates, and statuses that did not normalize to a known value.
//
// Usage:
//
//	go run ./cmd/inspect -feed data/status_latest_slim.csv
//	go run ./cmd/inspect -feed feed.csv -hide "Unreachable,Needs Service" -strict
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/couchcryptid/fleet-map/internal/adapter/feed"
	"github.com/couchcryptid/fleet-map/internal/domain"
	"github.com/couchcryptid/fleet-map/internal/mapview"
)

// phase tracks pass/fail for one check.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	feedPath := flag.String("feed", "", "path to the station status CSV")
	hide := flag.String("hide", "", "comma-separated statuses to filter out, e.g. \"In Use,Unreachable\"")
	strict := flag.Bool("strict", false, "exit non-zero when rows are skipped or statuses are unrecognized")
	flag.Parse()

	if *feedPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	if code := run(os.Stdout, *feedPath, *hide, *strict); code != 0 {
		os.Exit(code)
	}
}

func run(out io.Writer, feedPath, hide string, strict bool) int {
	filters, err := parseHidden(hide)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 2
	}

	snap, err := feed.NewFileSource(feedPath).Load(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	layer := mapview.NewLayer()
	result := domain.Render(context.Background(), snap.Rows, filters, layer)

	fmt.Fprintf(out, "=== Fleet Map Inspection: %s ===\n", feedPath)
	if snap.DataAsOf != "" {
		fmt.Fprintf(out, "Data as of: %s\n", snap.DataAsOf)
	}
	fmt.Fprintf(out, "Rows: %d  Placed: %d  Skipped (coordinates): %d  Skipped (filtered): %d\n\n",
		result.Rows, result.Placed, result.SkippedNoCoordinates, result.SkippedFiltered)

	printCounts(out, "Status", statusCounts(result))
	printCounts(out, "Style", styleCounts(result))

	if result.Bounds != nil {
		b := result.Bounds
		fmt.Fprintf(out, "Viewport: south=%.5f west=%.5f north=%.5f east=%.5f\n\n", b.South, b.West, b.North, b.East)
	} else {
		fmt.Fprintln(out, "Viewport: none (no markers placed)")
		fmt.Fprintln(out)
	}

	phases := []*phase{
		checkCoordinates(snap.Rows),
		checkStatuses(snap.Rows),
	}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("WARN (%d)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-30s %s\n", p.name, status)
	}
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if strict && !allPassed {
		fmt.Fprintln(out, "\nInspection FAILED.")
		return 1
	}
	return 0
}

func parseHidden(hide string) (domain.FilterState, error) {
	updates := map[string]bool{}
	for s := range strings.SplitSeq(hide, ",") {
		if s = strings.TrimSpace(s); s != "" {
			updates[s] = false
		}
	}
	return domain.NewFilterState().Apply(updates)
}

// checkCoordinates lists rows the renderer skips for missing or non-finite
// coordinates. Row numbers are 1-based data rows (header excluded).
func checkCoordinates(rows []domain.Row) *phase {
	p := &phase{name: "Coordinates"}
	for i, row := range rows {
		_, latOK := domain.PickFloat(row, domain.LatKeys...)
		_, lonOK := domain.PickFloat(row, domain.LonKeys...)
		if latOK && lonOK {
			continue
		}
		lat, _ := domain.Pick(row, domain.LatKeys...)
		lon, _ := domain.Pick(row, domain.LonKeys...)
		p.errorf("row %d %q: lat=%q lon=%q", i+1, label(row), lat, lon)
	}
	return p
}

// checkStatuses lists raw status texts that pass through normalization
// unchanged. They are always shown and cannot be filtered.
func checkStatuses(rows []domain.Row) *phase {
	p := &phase{name: "Status normalization"}
	seen := map[domain.Status]int{}
	for _, row := range rows {
		s := domain.StatusOf(row)
		if s.IsKnown() || s == domain.StatusUnknown {
			continue
		}
		seen[s]++
	}
	keys := make([]domain.Status, 0, len(seen))
	for s := range seen {
		keys = append(keys, s)
	}
	slices.Sort(keys)
	for _, s := range keys {
		p.errorf("unrecognized status %q on %d row(s)", s, seen[s])
	}
	return p
}

func label(row domain.Row) string {
	if v, ok := domain.Pick(row, domain.NameKeys...); ok {
		return v
	}
	if v, ok := domain.Pick(row, domain.IDKeys...); ok {
		return v
	}
	return domain.DefaultSiteName
}

type count struct {
	name string
	n    int
}

func statusCounts(r domain.RenderResult) []count {
	out := make([]count, 0, len(r.ByStatus))
	for s, n := range r.ByStatus {
		out = append(out, count{name: string(s), n: n})
	}
	slices.SortFunc(out, func(a, b count) int { return strings.Compare(a.name, b.name) })
	return out
}

func styleCounts(r domain.RenderResult) []count {
	out := make([]count, 0, len(domain.Styles))
	for _, st := range domain.Styles {
		if n := r.ByStyle[st]; n > 0 {
			out = append(out, count{name: st.Label(), n: n})
		}
	}
	return out
}

func printCounts(out io.Writer, heading string, counts []count) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tMarkers\n", heading)
	for _, c := range counts {
		fmt.Fprintf(tw, "%s\t%d\n", c.name, c.n)
	}
	tw.Flush()
	fmt.Fprintln(out)
}
