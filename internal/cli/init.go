package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/thinglink/internal/config"
	"github.com/roach88/thinglink/internal/ir"
)

// InitResult reports what init set up.
type InitResult struct {
	Agent         ir.IdentityKey `json:"agent"`
	KeyFile       string         `json:"key_file"`
	KeyCreated    bool           `json:"key_created"`
	ConfigFile    string         `json:"config_file"`
	ConfigWritten bool           `json:"config_written"`
	Created       []ir.Edge      `json:"created"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the agent key and register it on the agents anchor",
		Long: `Create the data directory, the agent key and a default config file
if they do not exist, then link the agent identity to the agents anchor.

Running init again is harmless: existing files are kept and an agent that
is already registered is not linked twice.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	return withSession(cmd, opts, func(ctx context.Context, s *session) error {
		path := opts.Config
		if path == "" {
			path = filepath.Join(s.cfg.DataDir, config.FileExt)
		}
		written, err := s.cfg.WriteDefault(path)
		if err != nil {
			return s.out.Fail(ExitCommandError, "failed to write config", err)
		}

		created, err := s.graph.Init(ctx)
		if err != nil {
			return s.out.Fail(ExitFailure, "failed to register agent", err)
		}
		if created == nil {
			created = []ir.Edge{}
		}

		result := InitResult{
			Agent:         s.agent.Key(),
			KeyFile:       s.cfg.KeyFile,
			KeyCreated:    s.keyCreated,
			ConfigFile:    path,
			ConfigWritten: written,
			Created:       created,
		}
		return s.out.Render(result, func(w io.Writer) {
			fmt.Fprintf(w, "agent: %s\n", result.Agent)
			if result.KeyCreated {
				fmt.Fprintf(w, "wrote key %s\n", result.KeyFile)
			}
			if result.ConfigWritten {
				fmt.Fprintf(w, "wrote config %s\n", result.ConfigFile)
			}
			if len(created) == 0 {
				fmt.Fprintln(w, "already registered")
				return
			}
			printEdges(w, "created", created)
		})
	})
}
