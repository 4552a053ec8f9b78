package cli

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/thinglink/internal/graph"
	"github.com/roach88/thinglink/internal/ir"
)

// NewLinkCommand creates the link command.
func NewLinkCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "link <node> <spec>...",
		Short: "Create relations from a node",
		Long: `Create one relation per spec from node. Specs are
direction:kind:id[:tag]; "bi" writes the relation both ways.

Example:
  thinglink link anchor:inbox to:entity:9f2c...:pinned`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLinks(rootOpts, args, cmd, true)
		},
	}
}

// NewUnlinkCommand creates the unlink command.
func NewUnlinkCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <node> <spec>...",
		Short: "Remove relations from a node",
		Long: `Remove the relations each spec names, together with their
bidirectional halves. The tag must match: a spec without a tag removes
only untagged relations.`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLinks(rootOpts, args, cmd, false)
		},
	}
}

func runLinks(opts *RootOptions, args []string, cmd *cobra.Command, create bool) error {
	out := newFormatter(cmd, opts)
	nodes, err := parseNodes(args[:1])
	if err != nil {
		return out.Fail(ExitCommandError, "invalid node", err)
	}
	specs, err := parseLinkSpecs(args[1:])
	if err != nil {
		return out.Fail(ExitCommandError, "invalid link", err)
	}

	return withSession(cmd, opts, func(ctx context.Context, s *session) error {
		if create {
			created, err := s.graph.CreateLinks(ctx, nodes[0], specs)
			if err != nil {
				return s.out.Fail(ExitFailure, "failed to create links", err)
			}
			return s.out.Render(map[string]any{"created": created}, func(w io.Writer) {
				printEdges(w, "created", created)
			})
		}

		removed, err := s.graph.DeleteLinks(ctx, nodes[0], specs)
		if err != nil {
			return s.out.Fail(ExitFailure, "failed to remove links", err)
		}
		return s.out.Render(map[string]any{"removed": removed}, func(w io.Writer) {
			printEdges(w, "removed", removed)
		})
	})
}

// LinkedOptions holds flags for the linked command.
type LinkedOptions struct {
	*RootOptions
	Kind    string
	Resolve bool
}

// linkedKinds are the values accepted by --kind.
var linkedKinds = []string{"all", "identity", "anchor", "entity"}

// NewLinkedCommand creates the linked command.
func NewLinkedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LinkedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "linked <node>",
		Short: "List the nodes a node links to",
		Long: `List the nodes node links to, optionally of one kind. --resolve reads
linked entities at their latest revision and skips deleted ones.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLinked(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Kind, "kind", "k", "all", "node kind (all|identity|anchor|entity)")
	cmd.Flags().BoolVar(&opts.Resolve, "resolve", false, "resolve linked entities")

	return cmd
}

func runLinked(opts *LinkedOptions, arg string, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)
	nodes, err := parseNodes([]string{arg})
	if err != nil {
		return out.Fail(ExitCommandError, "invalid node", err)
	}
	node := nodes[0]
	if !slices.Contains(linkedKinds, opts.Kind) {
		return out.Fail(ExitCommandError, "invalid kind",
			fmt.Errorf("%q: must be one of %v", opts.Kind, linkedKinds))
	}

	var list func(context.Context, ir.NodeRef) ([]ir.LinkedNode, error)
	return withSession(cmd, opts.RootOptions, func(ctx context.Context, s *session) error {
		switch opts.Kind {
		case "identity":
			list = s.graph.GetLinkedIdentities
		case "anchor":
			list = s.graph.GetLinkedAnchors
		case "entity":
			if opts.Resolve {
				entities, err := s.graph.GetLinkedEntities(ctx, node)
				if err != nil {
					return s.out.Fail(ExitFailure, "failed to list links", err)
				}
				return s.out.Render(entities, func(w io.Writer) {
					resolved := make([]graph.Node, len(entities))
					for i := range entities {
						resolved[i] = graph.Node{Ref: ir.EntityNode(entities[i].ID), Entity: &entities[i]}
					}
					printNodes(w, resolved)
				})
			}
			list = s.graph.GetLinkedEntityIDs
		default:
			if opts.Resolve {
				resolved, err := s.graph.GetAllLinkedNodes(ctx, node)
				if err != nil {
					return s.out.Fail(ExitFailure, "failed to list links", err)
				}
				return s.out.Render(resolved, func(w io.Writer) {
					printNodes(w, resolved)
				})
			}
			list = s.graph.GetAllLinkedNodeIDs
		}

		linked, err := list(ctx, node)
		if err != nil {
			return s.out.Fail(ExitFailure, "failed to list links", err)
		}
		return s.out.Render(linked, func(w io.Writer) {
			printLinked(w, linked)
		})
	})
}

// NewNodeCommand creates the node command.
func NewNodeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "node <node>...",
		Short: "Show nodes with their content and links",
		Long: `Show each node with the nodes it links to. Entities also show their
latest content; a deleted entity is reported as missing.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(rootOpts, args, cmd)
		},
	}
}

func runNode(opts *RootOptions, args []string, cmd *cobra.Command) error {
	nodes, err := parseNodes(args)
	if err != nil {
		return newFormatter(cmd, opts).Fail(ExitCommandError, "invalid node", err)
	}
	return withSession(cmd, opts, func(ctx context.Context, s *session) error {
		views, err := s.graph.GetNodeAndLinkedIDsBatch(ctx, nodes)
		if err != nil {
			return s.out.Fail(ExitFailure, "failed to read nodes", err)
		}
		return s.out.Render(views, func(w io.Writer) {
			for i, v := range views {
				if i > 0 {
					fmt.Fprintln(w)
				}
				fmt.Fprintln(w, nodes[i])
				if v == nil {
					fmt.Fprintln(w, "  (missing)")
					continue
				}
				if v.Content != nil {
					fmt.Fprintf(w, "  content: %s\n", *v.Content)
				}
				for _, l := range v.Linked {
					fmt.Fprintf(w, "  -> %s%s\n", l.Node, tagSuffix(l.Tag))
				}
			}
		})
	})
}

// NewIdentitiesCommand creates the identities command.
func NewIdentitiesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "identities",
		Short:         "List registered agent identities",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				keys, err := s.graph.AllIdentities(ctx)
				if err != nil {
					return s.out.Fail(ExitFailure, "failed to list identities", err)
				}
				return s.out.Render(keys, func(w io.Writer) {
					for _, k := range keys {
						marker := " "
						if k == s.agent.Key() {
							marker = "*"
						}
						fmt.Fprintf(w, "%s %s\n", marker, k)
					}
				})
			})
		},
	}
}
