package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/thinglink/internal/graph"
	"github.com/roach88/thinglink/internal/ir"
	"github.com/roach88/thinglink/internal/thing"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Links []string
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <content>",
		Short: "Create an entity",
		Long: `Create an entity authored by the agent. Each --link adds a relation
from the new entity. If a link fails the entity still exists and the
error lists what was written.

Example:
  thinglink create "buy milk" --link bi:anchor:inbox --link to:anchor:todo:urgent`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Links, "link", "l", nil, "relation direction:kind:id[:tag] (repeatable)")

	return cmd
}

func runCreate(opts *CreateOptions, content string, cmd *cobra.Command) error {
	links, err := parseLinkSpecs(opts.Links)
	if err != nil {
		return newFormatter(cmd, opts.RootOptions).Fail(ExitCommandError, "invalid link", err)
	}
	return withSession(cmd, opts.RootOptions, func(ctx context.Context, s *session) error {
		e, err := s.graph.CreateEntity(ctx, content, links)
		if err != nil {
			return s.out.Fail(ExitFailure, "failed to create entity", err)
		}
		return s.out.Render(e, func(w io.Writer) {
			printEntity(w, &e)
		})
	})
}

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	Original  bool
	Revisions bool
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <id>...",
		Short: "Read entities",
		Long: `Read the latest revision of each entity. --original reads the creation
record instead and --revisions lists every revision, oldest first.

Entities that do not exist or were deleted are reported as missing; they
are not an error.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Original, "original", false, "read the original record")
	cmd.Flags().BoolVar(&opts.Revisions, "revisions", false, "list every revision")
	cmd.MarkFlagsMutuallyExclusive("original", "revisions")

	return cmd
}

func runGet(opts *GetOptions, args []string, cmd *cobra.Command) error {
	ids := entityIDs(args)
	return withSession(cmd, opts.RootOptions, func(ctx context.Context, s *session) error {
		if opts.Revisions {
			revs, err := s.graph.GetAllRevisionsBatch(ctx, ids)
			if err != nil {
				return s.out.Fail(ExitFailure, "failed to read revisions", err)
			}
			return s.out.Render(revs, func(w io.Writer) {
				for i, chain := range revs {
					if i > 0 {
						fmt.Fprintln(w)
					}
					fmt.Fprintf(w, "%s: %d revision(s)\n", ids[i], len(chain))
					for _, e := range chain {
						fmt.Fprintf(w, "  %s  %s  %q\n", e.RecordID, formatTime(revisedAt(e)), e.Content)
					}
				}
			})
		}

		get := s.graph.GetLatestBatch
		if opts.Original {
			get = s.graph.GetOriginalBatch
		}
		entities, err := get(ctx, ids)
		if err != nil {
			return s.out.Fail(ExitFailure, "failed to read entities", err)
		}
		return s.out.Render(entities, func(w io.Writer) {
			printEntities(w, entities)
		})
	})
}

func revisedAt(e ir.Entity) ir.Timestamp {
	if e.UpdatedAt != nil {
		return *e.UpdatedAt
	}
	return e.CreatedAt
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <id> <content>",
		Short: "Revise an entity",
		Long: `Write a new revision of an entity. The entity keeps its creator and
creation time; a deleted entity cannot be revised.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runUpdate(opts *RootOptions, id, content string, cmd *cobra.Command) error {
	return withSession(cmd, opts, func(ctx context.Context, s *session) error {
		u, err := s.graph.UpdateEntity(ctx, entityIDs([]string{id})[0], content)
		if err != nil {
			return s.out.Fail(ExitFailure, "failed to update entity", err)
		}
		return s.out.Render(u, func(w io.Writer) {
			printUpdate(w, u)
		})
	})
}

func printUpdate(w io.Writer, u thing.Update) {
	printEntity(w, &u.Entity)
	fmt.Fprintf(w, "edge:     %s\n", u.UpdateEdgeRef)
}

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	Backlinks    bool
	CreatorLinks bool
	Unlink       []string
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entity",
		Long: `Tombstone an entity. Its records stay in the store but every read
reports it missing.

--backlinks removes the reverse half of bidirectional relations created
from the entity, --creator-links removes links from the creator to it, and
each --unlink removes one more relation relative to the entity.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Backlinks, "backlinks", false, "remove backlinks to the entity")
	cmd.Flags().BoolVar(&opts.CreatorLinks, "creator-links", false, "remove links from the creator")
	cmd.Flags().StringArrayVar(&opts.Unlink, "unlink", nil, "relation direction:kind:id[:tag] to remove (repeatable)")

	return cmd
}

func runDelete(opts *DeleteOptions, id string, cmd *cobra.Command) error {
	explicit, err := parseLinkSpecs(opts.Unlink)
	if err != nil {
		return newFormatter(cmd, opts.RootOptions).Fail(ExitCommandError, "invalid unlink", err)
	}
	return withSession(cmd, opts.RootOptions, func(ctx context.Context, s *session) error {
		removed, err := s.graph.DeleteEntity(ctx, entityIDs([]string{id})[0], graph.DeleteOptions{
			DeleteBacklinks:        opts.Backlinks,
			DeleteLinksFromCreator: opts.CreatorLinks,
			Explicit:               explicit,
		})
		if err != nil {
			msg := "failed to delete entity"
			if _, partial := ir.AsPartial(err); partial {
				msg = "entity deleted, but removing its edges failed"
			} else if errors.Is(err, context.Canceled) {
				msg = "delete cancelled"
			}
			return s.out.Fail(ExitFailure, msg, err)
		}
		return s.out.Render(map[string]any{"removed": removed}, func(w io.Writer) {
			fmt.Fprintf(w, "deleted %s\n", id)
			printEdges(w, "removed", removed)
		})
	})
}
