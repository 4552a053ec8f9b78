package cli

import (
	"fmt"
	"strings"

	"github.com/roach88/thinglink/internal/ir"
)

// parseNodes parses node arguments written kind:id.
func parseNodes(args []string) ([]ir.NodeRef, error) {
	nodes := make([]ir.NodeRef, len(args))
	for i, arg := range args {
		n, err := ir.ParseNodeRef(arg)
		if err != nil {
			return nil, err
		}
		if _, err := ir.Resolve(n); err != nil {
			return nil, fmt.Errorf("node %q: %w", arg, err)
		}
		nodes[i] = n
	}
	return nodes, nil
}

// parseLinkSpec parses direction:kind:id[:tag]. The tag is everything
// after the third colon, so anchor labels in link specs cannot contain
// colons while tags can.
func parseLinkSpec(s string) (ir.LinkSpec, error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) < 3 || parts[2] == "" {
		return ir.LinkSpec{}, fmt.Errorf("link %q: expected direction:kind:id[:tag]", s)
	}
	dir, err := ir.ParseLinkDirection(parts[0])
	if err != nil {
		return ir.LinkSpec{}, fmt.Errorf("link %q: %w", s, err)
	}
	kind, err := ir.ParseNodeKind(parts[1])
	if err != nil {
		return ir.LinkSpec{}, fmt.Errorf("link %q: %w", s, err)
	}

	spec := ir.LinkSpec{Direction: dir, Target: ir.NodeRef{Kind: kind, ID: parts[2]}}
	if _, err := ir.Resolve(spec.Target); err != nil {
		return ir.LinkSpec{}, fmt.Errorf("link %q: %w", s, err)
	}
	if len(parts) == 4 {
		spec.Tag = []byte(parts[3])
	}
	return spec, nil
}

// parseLinkSpecs parses every spec in args.
func parseLinkSpecs(args []string) ([]ir.LinkSpec, error) {
	specs := make([]ir.LinkSpec, 0, len(args))
	for _, arg := range args {
		spec, err := parseLinkSpec(arg)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// entityIDs converts id arguments, accepting an optional entity: prefix.
func entityIDs(args []string) []ir.Hash {
	ids := make([]ir.Hash, len(args))
	for i, arg := range args {
		ids[i] = ir.Hash(strings.TrimPrefix(arg, "entity:"))
	}
	return ids
}
