package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/keyforge/pkg/pipeline"
)

// effortCommand creates the effort command.
func (c *CLI) effortCommand() *cobra.Command {
	var (
		in     inputFlags
		models []string
	)

	cmd := &cobra.Command{
		Use:   "effort [corpus files...]",
		Short: "Report the typing effort of a layout",
		Long: `Report the carpalx typing effort of a layout for a text corpus or a
triad file. Lower is better. Several models can be compared at once:

  keyforge effort -l qwerty -m mod01,salvo corpus.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("keyboard") {
				in.keyboard = c.cfg.Optimize.Keyboard
			}
			if !cmd.Flags().Changed("model") {
				models = []string{c.cfg.Optimize.Model}
			}
			return c.runEffort(cmd.Context(), in, args, models)
		},
	}

	in.register(cmd)
	cmd.Flags().StringSliceVarP(&models, "model", "m", []string{pipeline.DefaultModel}, "effort models: built-in names or TOML files")

	return cmd
}

func (c *CLI) runEffort(ctx context.Context, in inputFlags, corpus []string, models []string) error {
	runner, err := c.newRunner(ctx, in.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	l, counts, hit, err := c.loadInput(ctx, runner, in, corpus)
	if err != nil {
		return err
	}

	printKeyValue("layout", l.Name)
	printKeyValue("keyboard", l.Keyboard.Name)
	for _, m := range models {
		e, err := pipeline.Effort(l.Keyboard, m, counts.Triads)
		if err != nil {
			return fmt.Errorf("model %s: %w", m, err)
		}
		printEffort(m, e)
	}
	printStats(hit,
		fmt.Sprintf("%d triads", len(counts.Triads)),
		fmt.Sprintf("%d presses", counts.Presses),
	)
	return nil
}
