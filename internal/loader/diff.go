package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Diff compares the cached copy of a location with a fresh fetch.
type Diff struct {
	ID       string
	Location string
	Cached   bool
	Lines    []DiffLine
}

// DiffLine is one line of a line-level diff.
type DiffLine struct {
	Op   diffmatchpatch.Operation
	Text string
}

// Changed reports whether the fresh source differs from the cached one.
func (d *Diff) Changed() bool {
	for _, line := range d.Lines {
		if line.Op != diffmatchpatch.DiffEqual {
			return true
		}
	}
	return false
}

// String renders the diff with "-", "+" and " " line prefixes.
func (d *Diff) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- cached %s\n+++ fresh %s\n", d.Location, d.Location)
	for _, line := range d.Lines {
		switch line.Op {
		case diffmatchpatch.DiffDelete:
			b.WriteString("-")
		case diffmatchpatch.DiffInsert:
			b.WriteString("+")
		default:
			b.WriteString(" ")
		}
		b.WriteString(line.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// Diff fetches id fresh, bypassing every cache, and compares it with the
// persistently cached copy. A location that is not cached diffs against
// the empty text.
func (l *Loader) Diff(ctx context.Context, id string) (*Diff, error) {
	location := l.Resolve(id)

	var cached string
	var found bool
	if store := l.Cache(); store != nil {
		record, err := store.Retrieve(location)
		if err != nil {
			return nil, err
		}
		if record != nil {
			cached, found = record.String(), true
		}
	}

	fresh, err := l.fetcher.Fetch(ctx, location)
	if err != nil {
		return nil, err
	}

	return &Diff{
		ID:       id,
		Location: location,
		Cached:   found,
		Lines:    lineDiff(cached, fresh),
	}, nil
}

func lineDiff(before, after string) []DiffLine {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out []DiffLine
	for _, d := range diffs {
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out = append(out, DiffLine{Op: d.Type, Text: strings.TrimSuffix(line, "\n")})
		}
	}
	return out
}
