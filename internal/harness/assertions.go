package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/thinglink/internal/signal"
)

// Assertion types.
const (
	// AssertSignalOrder checks that signal kinds were published in the
	// given order. Other signals may come in between.
	AssertSignalOrder = "signal_order"

	// AssertSignalCount checks how many signals of one kind were published.
	AssertSignalCount = "signal_count"

	// AssertLinked checks the final listing of what a node links to.
	AssertLinked = "linked"

	// AssertLatest checks the final latest revision of an entity.
	AssertLatest = "latest"
)

// Assertion is a check evaluated after every step ran.
type Assertion struct {
	Type string `yaml:"type"`

	// signal_order, signal_count
	Kinds []string `yaml:"kinds,omitempty"`
	Kind  string   `yaml:"kind,omitempty"`
	Count int      `yaml:"count,omitempty"`

	// linked: Node and Kind as in a linked step; Expect lists the
	// rendered neighbours in any order.
	Node   string   `yaml:"node,omitempty"`
	Expect []string `yaml:"expect,omitempty"`

	// latest
	Entity  string  `yaml:"entity,omitempty"`
	Content *string `yaml:"content,omitempty"`
	Missing bool    `yaml:"missing,omitempty"`
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s as %s %v\n", event.Step, event.Op, event.Agent, event.Signals)
		}
	}
	return buf.String()
}

// validateAssertion checks the fields an assertion type requires.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertSignalOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for signal_order", index)
		}
	case AssertSignalCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for signal_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for signal_count", index)
		}
	case AssertLinked:
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for linked", index)
		}
	case AssertLatest:
		if a.Entity == "" {
			return fmt.Errorf("assertions[%d]: entity is required for latest", index)
		}
		if a.Content == nil && !a.Missing {
			return fmt.Errorf("assertions[%d]: content or missing is required for latest", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// assertSignalOrder checks that kinds occur in order. Each kind is
// matched at or after the previous match.
func assertSignalOrder(kinds []signal.Kind, trace []TraceEvent, a Assertion) error {
	pos := 0
	for _, want := range a.Kinds {
		i := slices.Index(kinds[pos:], signal.Kind(want))
		if i < 0 {
			return &AssertionError{
				Type:     AssertSignalOrder,
				Expected: fmt.Sprintf("signals in order: %v", a.Kinds),
				Actual:   fmt.Sprintf("no %s after position %d in %v", want, pos, kinds),
				Trace:    trace,
			}
		}
		pos += i + 1
	}
	return nil
}

// assertSignalCount checks the number of signals of one kind.
func assertSignalCount(kinds []signal.Kind, trace []TraceEvent, a Assertion) error {
	count := 0
	for _, k := range kinds {
		if k == signal.Kind(a.Kind) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertSignalCount,
			Expected: fmt.Sprintf("%d %s signals", a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d signals", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertLinked lists the node's neighbours and compares them as a set.
func assertLinked(ctx context.Context, h *Harness, a Assertion) error {
	g, err := h.graphFor(ctx, DefaultAgent)
	if err != nil {
		return err
	}
	node, err := h.syms.node(a.Node)
	if err != nil {
		return err
	}
	out, err := h.linked(ctx, g, node, a.Kind)
	if err != nil {
		return err
	}
	if out.err != nil {
		return fmt.Errorf("linked %s: %w", a.Node, out.err)
	}

	var got []string
	for _, v := range out.result.([]any) {
		got = append(got, fmt.Sprint(v))
	}
	want := slices.Clone(a.Expect)
	slices.Sort(got)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertLinked,
			Expected: fmt.Sprintf("%s links to %v", a.Node, want),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

// assertLatest reads the entity's latest revision.
func assertLatest(ctx context.Context, h *Harness, a Assertion) error {
	g, err := h.graphFor(ctx, DefaultAgent)
	if err != nil {
		return err
	}
	id, err := h.syms.entity(a.Entity)
	if err != nil {
		return err
	}
	e, err := g.GetLatest(ctx, id)
	if err != nil {
		return fmt.Errorf("latest %s: %w", a.Entity, err)
	}

	switch {
	case a.Missing && e != nil:
		return &AssertionError{
			Type:     AssertLatest,
			Expected: fmt.Sprintf("%s to be gone", a.Entity),
			Actual:   fmt.Sprintf("content %q", e.Content),
		}
	case a.Content != nil && e == nil:
		return &AssertionError{
			Type:     AssertLatest,
			Expected: fmt.Sprintf("%s content %q", a.Entity, *a.Content),
			Actual:   "entity is gone",
		}
	case a.Content != nil && e.Content != *a.Content:
		return &AssertionError{
			Type:     AssertLatest,
			Expected: fmt.Sprintf("%s content %q", a.Entity, *a.Content),
			Actual:   fmt.Sprintf("content %q", e.Content),
		}
	}
	return nil
}

// AssertionContext provides the graph state assertions read.
type AssertionContext struct {
	Ctx     context.Context
	Harness *Harness
}

// EvaluateAssertions evaluates all assertions against the result and
// returns a message for each failure. State assertions need actx.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string
	var kinds []signal.Kind
	if actx != nil && actx.Harness != nil {
		kinds = actx.Harness.rec.Kinds()
	}

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertSignalOrder:
			err = assertSignalOrder(kinds, result.Trace, assertion)
		case AssertSignalCount:
			err = assertSignalCount(kinds, result.Trace, assertion)
		case AssertLinked, AssertLatest:
			if actx == nil || actx.Harness == nil {
				err = fmt.Errorf("assertion[%d]: %s requires graph context", i, assertion.Type)
			} else if assertion.Type == AssertLinked {
				err = assertLinked(actx.Ctx, actx.Harness, assertion)
			} else {
				err = assertLatest(actx.Ctx, actx.Harness, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
