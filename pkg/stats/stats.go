package stats

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/keyforge/pkg/errors"
	"github.com/matzehuels/keyforge/pkg/keyboard"
	"github.com/matzehuels/keyforge/pkg/layout"
	"github.com/matzehuels/keyforge/pkg/writer"
)

// Ignored lists the whitespace buttons left out of triads.
var Ignored = []string{"Fl_space", "Fr_space", "CD_ret", "Cl_tab"}

// Counter counts triads of consecutive presses, advancing one press at a
// time. Presses of ignored buttons do not enter triads; a skipped rune
// starts a new sequence.
type Counter struct {
	Triads map[layout.Triad]float64
	// Presses counts all presses, including ignored ones.
	Presses int
	Unknown map[rune]int

	ignored keyboard.ButtonSet
	window  [3]layout.Combination
	n       int
}

// NewCounter returns an empty counter for layouts on kb.
func NewCounter(kb *keyboard.Keyboard) *Counter {
	c := &Counter{
		Triads:  make(map[layout.Triad]float64),
		Unknown: make(map[rune]int),
	}
	for _, name := range Ignored {
		if b, err := kb.Find(name); err == nil {
			c.ignored = c.ignored.With(b)
		}
	}
	return c
}

// Process adds a single event.
func (c *Counter) Process(ev writer.Event) {
	switch ev := ev.(type) {
	case writer.Skip:
		c.Unknown[ev.Char]++
		c.n = 0
	case writer.Press:
		c.Presses++
		if ev.Combination.Buttons.Intersects(c.ignored) {
			return
		}
		if c.n == len(c.window) {
			c.window[0], c.window[1] = c.window[1], c.window[2]
			c.n--
		}
		c.window[c.n] = ev.Combination
		c.n++
		if c.n == len(c.window) {
			c.Triads[layout.Triad(c.window)]++
		}
	}
}

// Flush ends the current sequence, as at the end of a document.
func (c *Counter) Flush() {
	c.n = 0
}

// Merge adds the counts of o to c.
func (c *Counter) Merge(o *Counter) {
	for t, n := range o.Triads {
		c.Triads[t] += n
	}
	for r, n := range o.Unknown {
		c.Unknown[r] += n
	}
	c.Presses += o.Presses
}

// Total returns the sum of all triad counts.
func (c *Counter) Total() float64 {
	var sum float64
	for _, n := range c.Triads {
		sum += n
	}
	return sum
}

// Count types r on w's layout and adds all events to c.
func (c *Counter) Count(ctx context.Context, w *writer.Writer, r io.Reader) error {
	err := w.Type(ctx, r, func(ev writer.Event) error {
		c.Process(ev)
		return nil
	})
	c.Flush()
	return err
}

// CountFiles counts the triads of several text files typed on l. Files are
// processed concurrently, at most parallelism at a time (zero means
// GOMAXPROCS), and merged in the order given.
func CountFiles(ctx context.Context, l *layout.Layout, paths []string, parallelism int) (*Counter, error) {
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	counters := make([]*Counter, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, path := range paths {
		g.Go(func() error {
			f, err := os.Open(path)
			if err != nil {
				return errors.Wrap(errors.ErrCodeInvalidPath, err, "open %s", path)
			}
			defer f.Close()

			c := NewCounter(l.Keyboard)
			if err := c.Count(gctx, writer.New(l), f); err != nil {
				return fmt.Errorf("count %s: %w", path, err)
			}
			counters[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := NewCounter(l.Keyboard)
	for _, c := range counters {
		total.Merge(c)
	}
	return total, nil
}
