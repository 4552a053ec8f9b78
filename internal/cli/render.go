package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/roach88/thinglink/internal/clock"
	"github.com/roach88/thinglink/internal/graph"
	"github.com/roach88/thinglink/internal/ir"
)

func formatTime(ts ir.Timestamp) string {
	return clock.ToTime(ts).UTC().Format(time.RFC3339Nano)
}

// printEntity writes one entity as aligned key/value lines.
func printEntity(w io.Writer, e *ir.Entity) {
	if e == nil {
		fmt.Fprintln(w, "(missing)")
		return
	}
	fmt.Fprintf(w, "id:       %s\n", e.ID)
	if e.RecordID != e.ID {
		fmt.Fprintf(w, "record:   %s\n", e.RecordID)
	}
	fmt.Fprintf(w, "creator:  %s\n", e.Creator)
	fmt.Fprintf(w, "created:  %s\n", formatTime(e.CreatedAt))
	if e.UpdatedAt != nil {
		fmt.Fprintf(w, "updated:  %s\n", formatTime(*e.UpdatedAt))
	}
	fmt.Fprintf(w, "content:  %s\n", e.Content)
}

// printEntities writes entities separated by blank lines.
func printEntities(w io.Writer, entities []*ir.Entity) {
	for i, e := range entities {
		if i > 0 {
			fmt.Fprintln(w)
		}
		printEntity(w, e)
	}
}

// printEdges writes a count line and one line per edge.
func printEdges(w io.Writer, verb string, edges []ir.Edge) {
	fmt.Fprintf(w, "%s %d edge(s)\n", verb, len(edges))
	for _, e := range edges {
		fmt.Fprintf(w, "  %s -> %s%s\n", e.Src, e.Dst, tagSuffix(e.Tag))
	}
}

// printLinked writes one line per linked node.
func printLinked(w io.Writer, linked []ir.LinkedNode) {
	if len(linked) == 0 {
		fmt.Fprintln(w, "(no links)")
		return
	}
	for _, l := range linked {
		fmt.Fprintf(w, "%s%s\n", l.Node, tagSuffix(l.Tag))
	}
}

// printNodes writes resolved linked nodes, with entity content inline.
func printNodes(w io.Writer, nodes []graph.Node) {
	if len(nodes) == 0 {
		fmt.Fprintln(w, "(no links)")
		return
	}
	for _, n := range nodes {
		if n.Entity != nil {
			fmt.Fprintf(w, "%s  %q\n", n.Ref, n.Entity.Content)
			continue
		}
		fmt.Fprintln(w, n.Ref)
	}
}

func tagSuffix(p ir.TagPayload) string {
	s := ""
	if p.UserTag != nil {
		s += fmt.Sprintf(" tag=%q", p.UserTag)
	}
	if p.Backlink != "" {
		s += " (backlink)"
	}
	return s
}
