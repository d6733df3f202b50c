package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/molplace/pkg/errors"
	"github.com/matzehuels/molplace/pkg/pipeline"
	"github.com/matzehuels/molplace/pkg/placement"
)

// placeOpts holds the flags of the place command.
type placeOpts struct {
	output          string
	formats         string
	seed            uint64
	maxTrials       int
	skipUnplaceable bool
	refresh         bool
	tui             bool
	backend         backendOpts
}

// placeCommand creates the place command.
func (c *CLI) placeCommand() *cobra.Command {
	var p placeOpts

	cmd := &cobra.Command{
		Use:   "place [composition.toml]",
		Short: "Place the molecules of a composition",
		Long: `Place every molecule of a composition into its simulation box.

Proteins are placed first, then chains row by row. Results are cached
locally, keyed by the composition content and seed, so re-running an
unchanged composition is instant. Use --refresh to force a new placement.

Press Ctrl+C to stop a running placement.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPlace(cmd.Context(), args[0], p)
		},
	}

	cmd.Flags().StringVarP(&p.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&p.formats, "format", "f", "", "output format(s): json (default), xyz (comma-separated)")
	cmd.Flags().Uint64Var(&p.seed, "seed", 0, "override the composition's random seed")
	cmd.Flags().IntVar(&p.maxTrials, "max-trials", 0, "override attempts per particle")
	cmd.Flags().BoolVar(&p.skipUnplaceable, "skip-unplaceable", false, "skip molecules that cannot be placed instead of failing")
	cmd.Flags().BoolVar(&p.refresh, "refresh", false, "ignore cached results")
	cmd.Flags().BoolVar(&p.tui, "tui", false, "show a live progress view")
	addBackendFlags(cmd, &p.backend)

	return cmd
}

// runPlace loads, places and writes one composition.
func (c *CLI) runPlace(ctx context.Context, input string, p placeOpts) error {
	formats := pipeline.ParseFormats(p.formats)
	if len(formats) == 0 {
		formats = []string{pipeline.DefaultFormat}
	}
	if err := pipeline.ValidateFormats(formats); err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, p.backend)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts := pipeline.Options{
		Path:            input,
		Seed:            p.seed,
		MaxTrials:       p.maxTrials,
		SkipUnplaceable: p.skipUnplaceable,
		Formats:         formats,
		Refresh:         p.refresh,
		Logger:          c.Logger,
	}

	var res *pipeline.Result
	if p.tui {
		res, err = c.placeWithTUI(ctx, runner, opts)
	} else {
		res, err = c.placeWithSpinner(ctx, runner, opts)
	}
	if err != nil {
		if errors.Is(err, errors.ErrCodeCancelled) {
			printWarning("Placement stopped")
		}
		return err
	}

	printSuccess("Placed %s", StyleValue.Render(res.Composition.Name))
	printPlacementStats(res.Placement.Stats, res.Placement.Molecules(), res.CacheInfo.PlacementHit)
	if err := writeArtifacts(res.Artifacts, formats, input, p.output); err != nil {
		return err
	}
	printDetail("run %s", res.Run.ID)
	return nil
}

func (c *CLI) placeWithSpinner(ctx context.Context, runner *pipeline.Runner, opts pipeline.Options) (*pipeline.Result, error) {
	spinner := newSpinnerWithContext(ctx, "Placing...")
	opts.Observer = placement.ObserverFuncs{
		Progress: func(p int) { spinner.SetMessage("Placing... %d%%", p) },
	}
	spinner.Start()
	defer spinner.Stop()

	done := timed(c.Logger)
	res, err := runner.Execute(ctx, opts)
	if err != nil {
		if !spinner.Cancelled() && !errors.Is(err, errors.ErrCodeCancelled) {
			spinner.StopWithError("Placement failed")
		}
		return nil, err
	}
	spinner.Stop()
	done("placement finished", "particles", len(res.Placement.Positions))
	return res, nil
}

// placeWithTUI runs the placement while a bubbletea program shows progress.
// Quitting the program stops the placement.
func (c *CLI) placeWithTUI(ctx context.Context, runner *pipeline.Runner, opts pipeline.Options) (*pipeline.Result, error) {
	var prog *tea.Program
	opts.Observer = tuiObserver{send: func(m tea.Msg) { prog.Send(m) }}

	job, err := runner.Prepare(ctx, opts)
	if err != nil {
		return nil, err
	}

	comp := job.Composition()
	model := NewPlaceModel(comp.Name, comp.TotalParticles(), job.Stop)
	prog = tea.NewProgram(model, tea.WithContext(ctx), tea.WithOutput(os.Stderr))

	type outcome struct {
		res *pipeline.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := job.Run(ctx)
		prog.Send(doneMsg{err})
		done <- outcome{res, err}
	}()

	if _, err := prog.Run(); err != nil {
		job.Stop()
		c.Logger.Debug("progress view exited", "err", err)
	}
	out := <-done
	return out.res, out.err
}

// writeArtifacts writes each encoded format next to the input or to output.
func writeArtifacts(artifacts map[string][]byte, formats []string, input, output string) error {
	if len(formats) == 1 && output != "" {
		return writeArtifact(output, artifacts[formats[0]])
	}
	base := basePath(output, input)
	for _, format := range formats {
		if err := writeArtifact(base+"."+format, artifacts[format]); err != nil {
			return err
		}
	}
	return nil
}

func writeArtifact(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	printFile(path)
	return nil
}

// basePath derives the output base path. Without output, the input's
// extension is replaced; a known format extension on output is stripped.
func basePath(output, input string) string {
	if output == "" {
		return strings.TrimSuffix(input, filepath.Ext(input)) + ".placed"
	}
	ext := filepath.Ext(output)
	if pipeline.ValidFormats[strings.TrimPrefix(ext, ".")] {
		return strings.TrimSuffix(output, ext)
	}
	return output
}
