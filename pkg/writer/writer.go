// Package writer types text on a layout the way a ten-finger typist would.
//
// [Writer.Type] splits text into the longest strings single combinations
// produce and reports each as a [Press]. Text the layout cannot produce is
// reported one rune at a time as a [Skip]. When several combinations produce
// the same text, the writer prefers fewer keys, then both hands sharing the
// work, then switching hands relative to the previous press.
package writer

import (
	"bufio"
	"context"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/matzehuels/keyforge/pkg/errors"
	"github.com/matzehuels/keyforge/pkg/keyboard"
	"github.com/matzehuels/keyforge/pkg/layout"
)

// Event is either a [Press] or a [Skip].
type Event interface {
	event()
}

// Press types Text with Combination.
type Press struct {
	Text        string
	Combination layout.Combination
}

// Skip is a rune the layout cannot type.
type Skip struct {
	Char rune
}

func (Press) event() {}
func (Skip) event()  {}

// Writer types text on a layout. It remembers the previous combination, so
// a Writer must not be shared between goroutines.
type Writer struct {
	layout  *layout.Layout
	last    layout.Combination
	hasLast bool
}

// New returns a writer for l.
func New(l *layout.Layout) *Writer {
	return &Writer{layout: l}
}

// Layout returns the layout the writer types on.
func (w *Writer) Layout() *layout.Layout {
	return w.layout
}

// Reset forgets the previous combination.
func (w *Writer) Reset() {
	w.last, w.hasLast = layout.Combination{}, false
}

// Pressed records c as the previous combination.
func (w *Writer) Pressed(c layout.Combination) {
	w.last, w.hasLast = c, true
}

func (w *Writer) side(b keyboard.Button) int {
	h, _ := w.layout.Keyboard.HandFinger(b)
	if h == keyboard.Left {
		return 1
	}
	return -1
}

func (w *Writer) balance(s keyboard.ButtonSet) int {
	n := 0
	for _, b := range s.Buttons() {
		n += w.side(b)
	}
	return n
}

func (w *Writer) score(c layout.Combination) int {
	// without history the left side wins ties
	prev := -1
	if w.hasLast {
		from := w.last.Modifier
		if from.Empty() {
			from = w.last.Buttons
		}
		prev = w.balance(from) + w.balance(c.Buttons)
	}
	return c.Len()<<16 | abs(w.balance(c.All()))<<8 | abs(prev)
}

// ChooseCombination picks the combination a typist would use out of
// several producing the same text. The first of equally good candidates
// wins. combs must not be empty.
func (w *Writer) ChooseCombination(combs []layout.Combination) layout.Combination {
	if len(combs) == 1 {
		return combs[0]
	}
	best, bestScore := combs[0], w.score(combs[0])
	for _, c := range combs[1:] {
		if s := w.score(c); s < bestScore {
			best, bestScore = c, s
		}
	}
	return best
}

// Type reads text from r and calls emit for every event. It stops at the
// end of r, on the first error emit returns, or when ctx is cancelled.
func (w *Writer) Type(ctx context.Context, r io.Reader, emit func(Event) error) error {
	br := bufio.NewReader(r)
	lookahead := max(w.layout.BufferLen(), 1)
	buf := make([]rune, 0, lookahead)
	eof := false

	for n := 0; ; n++ {
		if n%4096 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		for !eof && len(buf) < lookahead {
			c, _, err := br.ReadRune()
			if err == io.EOF {
				eof = true
				break
			}
			if err != nil {
				return errors.Wrap(errors.ErrCodeInvalidInput, err, "reading text")
			}
			buf = append(buf, c)
		}
		if len(buf) == 0 {
			return nil
		}

		var ev Event
		match, combs, ok := w.layout.Lookup(string(buf))
		if ok {
			c := w.ChooseCombination(combs)
			w.Pressed(c)
			ev = Press{Text: match, Combination: c}
			buf = buf[:copy(buf, buf[utf8.RuneCountInString(match):])]
		} else {
			ev = Skip{Char: buf[0]}
			buf = buf[:copy(buf, buf[1:])]
		}
		if err := emit(ev); err != nil {
			return err
		}
	}
}

// TypeString is a convenience wrapper collecting the events for s.
func (w *Writer) TypeString(s string) []Event {
	var events []Event
	_ = w.Type(context.Background(), strings.NewReader(s), func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	return events
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
