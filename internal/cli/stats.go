package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/keyforge/pkg/errors"
	"github.com/matzehuels/keyforge/pkg/stats"
)

// statsCommand creates the stats command.
func (c *CLI) statsCommand() *cobra.Command {
	var (
		in     inputFlags
		output string
		top    int
	)

	cmd := &cobra.Command{
		Use:   "stats <corpus files...>",
		Short: "Count the triads of a text corpus",
		Long: `Count the triads of a text corpus typed on a layout.

The counts are written as JSON and can be passed to 'optimize' and 'effort'
with --triads, which skips reading the corpus again.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("keyboard") {
				in.keyboard = c.cfg.Optimize.Keyboard
			}
			return c.runStats(cmd.Context(), in, args, output, top)
		},
	}

	in.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().IntVar(&top, "top", 10, "show the N most frequent triads (with -o)")

	return cmd
}

func (c *CLI) runStats(ctx context.Context, in inputFlags, corpus []string, output string, top int) error {
	if in.triads != "" {
		return errors.New(errors.ErrCodeInvalidInput, "--triads cannot be used with stats")
	}
	runner, err := c.newRunner(ctx, in.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	l, counts, hit, err := c.loadInput(ctx, runner, in, corpus)
	if err != nil {
		return err
	}
	prog.done("Counted triads", "files", len(corpus), "triads", len(counts.Triads))

	if output == "" {
		return stats.Encode(os.Stdout, counts, l.Keyboard, l.Name)
	}

	f, err := os.Create(output)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", output)
	}
	if err := stats.Encode(f, counts, l.Keyboard, l.Name); err != nil {
		f.Close()
		return fmt.Errorf("write triads: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	printSuccess("Triads counted")
	printFile(output)
	printStats(hit,
		fmt.Sprintf("%d files", len(corpus)),
		fmt.Sprintf("%d presses", counts.Presses),
		fmt.Sprintf("%d triads", len(counts.Triads)),
	)
	if n := len(counts.Unknown); n > 0 {
		printWarning("%d characters have no key combination on %s", n, l.Name)
	}
	if top > 0 && len(counts.Triads) > 0 {
		printNewline()
		fmt.Println(triadsTable(counts.ToFile(l.Keyboard, l.Name), top))
	}
	printNewline()
	printNextStep("Optimize", fmt.Sprintf("%s optimize -l %s -t %s", appName, in.layout, output))
	return nil
}
