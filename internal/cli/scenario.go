package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/thinglink/internal/harness"
	"github.com/roach88/thinglink/internal/integrity"
	"github.com/roach88/thinglink/internal/store"
	"github.com/roach88/thinglink/internal/store/kvstore"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Backend string
	Schema  string
	Golden  string
	Update  bool
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	File   string   `json:"file"`
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "mismatch", "written" or "missing"
	Errors []string `json:"errors,omitempty"`
	Trace  string   `json:"trace"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <file>...",
		Short: "Run scenario files against a fresh store",
		Long: `Run each scenario against its own empty store with a deterministic clock
and print its trace, one JSON line per step.

With --golden, each trace is compared against <dir>/<name>.golden, where
name is the scenario file name without its extension. --update rewrites
the golden files instead.

The configured store is never touched.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Backend, "backend", "badger", "store backend (sqlite|badger)")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE content schema file")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "directory of golden trace files")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files")

	return cmd
}

func runScenarios(opts *ScenarioOptions, files []string, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)
	if opts.Backend != "sqlite" && opts.Backend != "badger" {
		return out.Fail(ExitCommandError, "invalid backend", fmt.Errorf("%q: must be sqlite or badger", opts.Backend))
	}
	if opts.Update && opts.Golden == "" {
		return out.Fail(ExitCommandError, "invalid flags", fmt.Errorf("--update requires --golden"))
	}

	var hopts []harness.Option
	if opts.Schema != "" {
		schema, err := integrity.LoadSchema(opts.Schema)
		if err != nil {
			return out.Fail(ExitCommandError, "failed to load content schema", err)
		}
		hopts = append(hopts, harness.WithRules(integrity.New(schema)))
	}
	if opts.Verbose {
		hopts = append(hopts, harness.WithLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	results := make([]ScenarioResult, 0, len(files))
	failed := 0
	for _, file := range files {
		out.VerboseLog("running %s on %s", file, opts.Backend)
		r, err := runScenario(ctx, opts, file, hopts)
		if err != nil {
			return out.Fail(ExitCommandError, fmt.Sprintf("scenario %s", file), err)
		}
		if !r.Pass || r.Golden == "mismatch" || r.Golden == "missing" {
			failed++
		}
		results = append(results, r)
	}

	if err := out.Render(results, func(w io.Writer) {
		for _, r := range results {
			printScenario(w, r)
		}
	}); err != nil {
		return err
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", failed, len(results)))
	}
	return nil
}

func runScenario(ctx context.Context, opts *ScenarioOptions, file string, hopts []harness.Option) (ScenarioResult, error) {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{}, err
	}

	sub, cleanup, err := scratchSubstrate(opts.Backend)
	if err != nil {
		return ScenarioResult{}, err
	}
	defer cleanup()

	result, err := harness.Run(ctx, sub, scenario, hopts...)
	if err != nil {
		return ScenarioResult{}, err
	}
	trace, err := harness.MarshalTrace(result.Trace)
	if err != nil {
		return ScenarioResult{}, err
	}

	r := ScenarioResult{
		File:   file,
		Name:   scenario.Name,
		Pass:   result.Pass,
		Errors: result.Errors,
		Trace:  string(trace),
	}
	if opts.Golden != "" {
		r.Golden, err = checkGolden(opts.Golden, file, trace, opts.Update)
		if err != nil {
			return ScenarioResult{}, err
		}
	}
	return r, nil
}

// scratchSubstrate opens an empty store that cleanup discards.
func scratchSubstrate(backend string) (store.Substrate, func(), error) {
	if backend == "badger" {
		s, err := kvstore.Open(kvstore.InMemoryConfig())
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}

	dir, err := os.MkdirTemp("", "thinglink-scenario-")
	if err != nil {
		return nil, nil, fmt.Errorf("create scratch dir: %w", err)
	}
	s, err := store.Open(filepath.Join(dir, "scenario.db"))
	if err != nil {
		os.RemoveAll(dir)
		return nil, nil, err
	}
	return s, func() {
		s.Close()
		os.RemoveAll(dir)
	}, nil
}

// checkGolden compares trace with the golden file of scenario file, or
// writes it when update is set.
func checkGolden(dir, file string, trace []byte, update bool) (string, error) {
	name := filepath.Base(file)
	name = name[:len(name)-len(filepath.Ext(name))]
	path := filepath.Join(dir, name+".golden")

	if update {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create golden dir: %w", err)
		}
		if err := os.WriteFile(path, trace, 0o644); err != nil {
			return "", fmt.Errorf("write golden file: %w", err)
		}
		return "written", nil
	}

	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "missing", nil
	}
	if err != nil {
		return "", fmt.Errorf("read golden file: %w", err)
	}
	if bytes.Equal(want, trace) {
		return "match", nil
	}
	return "mismatch", nil
}

func printScenario(w io.Writer, r ScenarioResult) {
	status := "PASS"
	if !r.Pass {
		status = "FAIL"
	}
	fmt.Fprintf(w, "%s %s (%s)", status, r.Name, r.File)
	if r.Golden != "" {
		fmt.Fprintf(w, " golden=%s", r.Golden)
	}
	fmt.Fprintln(w)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	fmt.Fprint(w, r.Trace)
}
