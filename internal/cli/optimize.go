package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/matzehuels/keyforge/pkg/errors"
	"github.com/matzehuels/keyforge/pkg/layout"
	"github.com/matzehuels/keyforge/pkg/optimize"
	"github.com/matzehuels/keyforge/pkg/pipeline"
	"github.com/matzehuels/keyforge/pkg/stats"
)

// defaultProgressEvery is the report interval of the progress view when
// the config does not set one.
const defaultProgressEvery = 250

// inputFlags select a layout and the triads to evaluate it with.
type inputFlags struct {
	keyboard    string
	layout      string
	triads      string
	parallelism int
	noCache     bool
	refresh     bool
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.keyboard, "keyboard", "k", pipeline.DefaultKeyboard, "keyboard: built-in name or TOML file")
	cmd.Flags().StringVarP(&f.layout, "layout", "l", defaultLayout, "layout: built-in name or TOML file")
	cmd.Flags().StringVarP(&f.triads, "triads", "t", "", "triad file written by 'keyforge stats' (instead of corpus files)")
	cmd.Flags().IntVarP(&f.parallelism, "jobs", "j", 0, "corpus files read concurrently (default: number of CPUs)")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "recompute cached results")
}

// loadInput loads the layout and its triad counts, from a triad file or by
// counting the corpus files.
func (c *CLI) loadInput(ctx context.Context, runner *pipeline.Runner, f inputFlags, corpus []string) (*layout.Layout, *stats.Counter, bool, error) {
	l, err := pipeline.LoadLayout(f.keyboard, f.layout)
	if err != nil {
		return nil, nil, false, err
	}

	switch {
	case f.triads != "" && len(corpus) > 0:
		return nil, nil, false, errors.New(errors.ErrCodeInvalidInput, "give either --triads or corpus files, not both")
	case f.triads != "":
		file, err := os.Open(f.triads)
		if err != nil {
			return nil, nil, false, errors.Wrap(errors.ErrCodeInvalidPath, err, "open triads")
		}
		defer file.Close()
		counts, meta, err := stats.Decode(file, l.Keyboard)
		if err != nil {
			return nil, nil, false, fmt.Errorf("read %s: %w", f.triads, err)
		}
		if meta.Layout != "" && meta.Layout != l.Name {
			c.Logger.Warn("triads were counted on another layout", "triads", meta.Layout, "layout", l.Name)
		}
		return l, counts, false, nil
	case len(corpus) == 0:
		return nil, nil, false, errors.New(errors.ErrCodeInvalidInput, "no corpus files or --triads given")
	}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Counting triads in %d files...", len(corpus)))
	spinner.Start()
	counts, hit, err := runner.StatsWithCacheInfo(ctx, l, corpus, pipeline.StatsOptions{
		Parallelism: f.parallelism,
		Refresh:     f.refresh,
	})
	if err != nil {
		spinner.StopWithError("Counting failed")
		return nil, nil, false, err
	}
	spinner.Stop()
	return l, counts, hit, nil
}

// optimizeCommand creates the optimize command.
func (c *CLI) optimizeCommand() *cobra.Command {
	var (
		in            inputFlags
		opts          pipeline.Options
		modelFile     string
		output        string
		noRecord      bool
		showProgress  bool
		progressEvery int
	)

	cmd := &cobra.Command{
		Use:   "optimize [corpus files...]",
		Short: "Optimize a layout for a text corpus",
		Long: `Optimize a layout for a text corpus.

The corpus is typed on the layout and its triads (three consecutive key
combinations) are counted. Simulated annealing then swaps the texts of
buttons to minimize the carpalx effort of those triads. The optimized layout
is written as a TOML layout definition.

Pins keep layers or single buttons in place, e.g. --pins '1;0,Dl1' pins the
whole shift layer and the button Dl1 of the base layer.

Pressing Ctrl+C stops the search early; the best layout found so far is
still written and the command exits with status 130.

Counts and results are cached, and every run is recorded (see 'keyforge runs').`,
		RunE: func(cmd *cobra.Command, args []string) error {
			o := c.cfg.Optimize.PipelineOptions()
			flags := cmd.Flags()
			override(flags.Changed("keyboard"), &o.Keyboard, in.keyboard)
			override(flags.Changed("model"), &o.Model, opts.Model)
			override(flags.Changed("model-file"), &o.Model, modelFile)
			override(flags.Changed("steps"), &o.Steps, opts.Steps)
			override(flags.Changed("cooling"), &o.Cooling, opts.Cooling)
			override(flags.Changed("seed"), &o.Seed, opts.Seed)
			override(flags.Changed("triad-limit"), &o.TriadLimit, opts.TriadLimit)
			override(flags.Changed("randomize"), &o.Randomize, opts.Randomize)
			override(flags.Changed("pins"), &o.Pins, opts.Pins)
			override(flags.Changed("restarts"), &o.Restarts, opts.Restarts)
			override(flags.Changed("progress-every"), &o.ProgressEvery, progressEvery)
			o.Parallelism = in.parallelism
			o.Refresh = in.refresh
			in.keyboard = o.Keyboard
			return c.runOptimize(cmd.Context(), in, args, o, output, noRecord, showProgress)
		},
	}

	in.register(cmd)
	cmd.Flags().StringVarP(&opts.Model, "model", "m", pipeline.DefaultModel, "effort model: built-in name or TOML file")
	cmd.Flags().StringVar(&modelFile, "model-file", "", "effort model TOML file (same as --model)")
	cmd.Flags().IntVarP(&opts.Steps, "steps", "n", pipeline.DefaultSteps, "annealing steps")
	cmd.Flags().Float64Var(&opts.Cooling, "cooling", optimize.DefaultCooling, "cooling rate of the acceptance threshold")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", pipeline.DefaultSeed, "random seed")
	cmd.Flags().IntVar(&opts.TriadLimit, "triad-limit", 0, "optimize for the N most frequent triads only (0: all)")
	cmd.Flags().BoolVar(&opts.Randomize, "randomize", false, "shuffle the layout before optimizing")
	cmd.Flags().StringVarP(&opts.Pins, "pins", "p", "", "pinned layers and buttons, e.g. '1;0,Dl1'")
	cmd.Flags().IntVarP(&opts.Restarts, "restarts", "r", pipeline.DefaultRestarts, "independent annealing runs, the best is kept")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "do not record the run")
	cmd.Flags().BoolVar(&showProgress, "progress", false, "show a live progress view (terminal only)")
	cmd.Flags().IntVar(&progressEvery, "progress-every", defaultProgressEvery, "steps between progress reports")
	cmd.MarkFlagsMutuallyExclusive("model", "model-file")

	return cmd
}

// override sets *dst to v when the flag was given on the command line.
func override[T any](changed bool, dst *T, v T) {
	if changed {
		*dst = v
	}
}

// runOptimize counts the corpus, optimizes, writes the layout and records
// the run.
func (c *CLI) runOptimize(ctx context.Context, in inputFlags, corpus []string, opts pipeline.Options, output string, noRecord, showProgress bool) error {
	opts.Logger = c.Logger
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, in.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	l, counts, statsHit, err := c.loadInput(ctx, runner, in, corpus)
	if err != nil {
		return err
	}

	title := fmt.Sprintf("Optimizing %s on %s", l.Name, l.Keyboard.Name)
	if opts.ProgressEvery == 0 {
		opts.ProgressEvery = defaultProgressEvery
	}
	var res *pipeline.Result
	if showProgress && isatty.IsTerminal(os.Stderr.Fd()) {
		// log lines would tear the view
		quiet := c.Logger.With()
		quiet.SetLevel(log.WarnLevel)
		opts.Logger = quiet
		res, err = runWithProgressView(ctx, title, opts.Steps, func(ctx context.Context, report func(optimize.Progress)) (*pipeline.Result, error) {
			opts.Progress = report
			return runner.Optimize(ctx, l, counts.Triads, opts)
		})
	} else {
		if showProgress {
			c.Logger.Debug("stderr is not a terminal, progress view disabled")
		}
		spinner := newSpinnerWithContext(ctx, title+"...")
		opts.Progress = func(p optimize.Progress) {
			spinner.SetMessage("%s... step %d/%d, best %.6f", title, p.Step, p.Steps, p.Best)
		}
		spinner.Start()
		res, err = runner.Optimize(ctx, l, counts.Triads, opts)
		spinner.Stop()
	}
	if err != nil {
		printError("Optimization failed")
		return err
	}
	res.CacheInfo.StatsHit = statsHit

	if err := writeResult(res, output); err != nil {
		return err
	}
	if !noRecord {
		c.recordRun(ctx, res)
	}

	printSummary(res, output)
	if res.Interrupted {
		c.Logger.Warn("optimization interrupted, best layout so far written", "steps", res.Steps)
		return fmt.Errorf("optimization interrupted after %d steps: %w", res.Steps, context.Canceled)
	}
	return nil
}

func writeResult(res *pipeline.Result, output string) error {
	if output == "" {
		return writeLayout(res, os.Stdout)
	}
	f, err := os.Create(output)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", output)
	}
	return writeLayoutFile(res, f, output)
}

// writeLayoutFile writes the layout to f and closes it. A failed close
// fails the write.
func writeLayoutFile(res *pipeline.Result, f io.WriteCloser, name string) (err error) {
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(errors.ErrCodeInvalidPath, cerr, "close %s", name)
		}
	}()
	return writeLayout(res, f)
}

func writeLayout(res *pipeline.Result, w io.Writer) error {
	if err := res.WriteLayout(w); err != nil {
		return fmt.Errorf("write layout: %w", err)
	}
	return nil
}

// recordRun saves the run. Failures only warn: the layout is already written.
func (c *CLI) recordRun(ctx context.Context, res *pipeline.Result) {
	// an interrupted run is recorded too
	ctx = context.WithoutCancel(ctx)

	store, err := c.newStore(ctx)
	if err != nil {
		c.Logger.Warn("open run store", "err", err)
		return
	}
	if store == nil {
		return
	}
	defer store.Close()

	rec, err := res.Record()
	if err == nil {
		err = store.Save(ctx, rec)
	}
	if err != nil {
		c.Logger.Warn("record run", "err", err)
		return
	}
	c.Logger.Debug("recorded run", "id", rec.ID)
}

// printSummary prints the outcome when the layout went to a file. Without
// one, stdout carries only the layout.
func printSummary(res *pipeline.Result, output string) {
	if output == "" {
		return
	}
	if res.Interrupted {
		printWarning("Optimization interrupted after %d steps", res.Steps)
	} else {
		printSuccess("Optimization complete")
	}
	printFile(output)
	improvement := 0.0
	if res.Initial != 0 {
		improvement = (res.Initial - res.Effort) / res.Initial * 100
	}
	printStats(res.CacheInfo.ResultHit,
		fmt.Sprintf("%d triads", res.Triads),
		fmt.Sprintf("effort %.4f → %.4f (%.1f%%)", res.Initial, res.Effort, improvement),
		fmt.Sprintf("%d/%d accepted", res.Accepted, res.Steps),
	)
	printNewline()
	printNextStep("Evaluate", fmt.Sprintf("%s effort -l %s <corpus files>", appName, output))
}
