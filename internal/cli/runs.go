package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/keyforge/pkg/errors"
	"github.com/matzehuels/keyforge/pkg/runstore"
)

// runsCommand creates the runs command for browsing recorded optimizations.
func (c *CLI) runsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Browse recorded optimization runs",
	}

	cmd.AddCommand(c.runsListCommand())
	cmd.AddCommand(c.runsShowCommand())
	cmd.AddCommand(c.runsDeleteCommand())

	return cmd
}

func (c *CLI) runsListCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(ctx context.Context, s runstore.Store) error {
				records, err := s.List(ctx, limit)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					printInfo("No runs recorded")
					return nil
				}
				fmt.Println(runsTable(records))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list (0: all)")
	return cmd
}

func (c *CLI) runsShowCommand() *cobra.Command {
	var layoutOnly bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a recorded run",
		Long: `Show a recorded run. The ID may be shortened to any unique prefix,
as printed by 'keyforge runs list'. With --layout only the optimized layout
is printed, ready to be saved as a TOML file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(ctx context.Context, s runstore.Store) error {
				rec, err := findRun(ctx, s, args[0])
				if err != nil {
					return err
				}
				if layoutOnly {
					_, err := io.WriteString(os.Stdout, rec.Result)
					return err
				}
				printRun(rec)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&layoutOnly, "layout", false, "print only the optimized layout")
	return cmd
}

func (c *CLI) runsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(ctx context.Context, s runstore.Store) error {
				rec, err := findRun(ctx, s, args[0])
				if err != nil {
					return err
				}
				if err := s.Delete(ctx, rec.ID); err != nil {
					return err
				}
				printSuccess("Deleted run %s", rec.ID)
				return nil
			})
		},
	}
}

func (c *CLI) withStore(ctx context.Context, fn func(context.Context, runstore.Store) error) error {
	s, err := c.newStore(ctx)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	if s == nil {
		return errors.New(errors.ErrCodeUnsupported, "run store is disabled in the config")
	}
	defer s.Close()
	return fn(ctx, s)
}

// findRun resolves a full run ID or a unique prefix of one.
func findRun(ctx context.Context, s runstore.Store, id string) (*runstore.Record, error) {
	if rec, err := s.Get(ctx, id); err == nil {
		return rec, nil
	} else if !errors.Is(err, errors.ErrCodeNotFound) && !errors.Is(err, errors.ErrCodeInvalidInput) {
		return nil, err
	}

	records, err := s.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	var found *runstore.Record
	for _, r := range records {
		if !strings.HasPrefix(r.ID, id) {
			continue
		}
		if found != nil {
			return nil, errors.New(errors.ErrCodeInvalidInput, "run ID prefix %q is ambiguous", id)
		}
		found = r
	}
	if found == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "run %q not found", id)
	}
	return found, nil
}

func printRun(r *runstore.Record) {
	printKeyValue("id", r.ID)
	printKeyValue("created", r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	printKeyValue("layout", r.Layout)
	printKeyValue("keyboard", r.Keyboard)
	printKeyValue("model", r.Model)
	steps := fmt.Sprintf("%d (%d accepted)", r.Steps, r.Accepted)
	if r.Interrupted {
		steps += ", interrupted"
	}
	printKeyValue("steps", steps)
	printKeyValue("seed", fmt.Sprint(r.Seed))
	printKeyValue("cooling", fmt.Sprint(r.Cooling))
	printKeyValue("restarts", fmt.Sprint(r.Restarts))
	if r.TriadLimit > 0 {
		printKeyValue("triad limit", fmt.Sprint(r.TriadLimit))
	}
	if r.Pins != "" {
		printKeyValue("pins", r.Pins)
	}
	printKeyValue("randomize", fmt.Sprint(r.Randomize))
	printKeyValue("triads", fmt.Sprint(r.Triads))
	printKeyValue("effort", fmt.Sprintf("%.6f → %.6f (%.1f%%)", r.Initial, r.Effort, r.Improvement()*100))
	printKeyValue("duration", r.Duration.Round(1e6).String())
	printNewline()
	printNextStep("Save layout", fmt.Sprintf("%s runs show --layout %s > layout.toml", appName, shortID(r.ID)))
}
