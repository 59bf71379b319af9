package carpalx

import (
	"github.com/matzehuels/keyforge/pkg/errors"
	"github.com/matzehuels/keyforge/pkg/keyboard"
)

// Hand transition classes.
const (
	handBoth        = 0 // both hands, not alternating
	handAlternating = 1
	handSame        = 2
)

func strokePathHand(h [3]keyboard.Hand) int {
	switch {
	case h[0] == h[2] && h[0] != h[1]:
		return handAlternating
	case h[0] == h[1] && h[1] == h[2]:
		return handSame
	default:
		return handBoth
	}
}

// strokePathRow classifies row changes. Rows grow downwards, so positive
// deltas are upward moves. The order of the cases matters: an upward
// progression must win over the large jump classes.
func strokePathRow(r [3]int) int {
	d := [3]int{r[0] - r[1], r[1] - r[2], r[0] - r[2]}
	switch {
	case d[0] == 0 && d[1] == 0:
		// same row
		return 0
	case (r[0] == r[1] && r[2] > r[1]) || (r[1] > r[0] && r[1] == r[2]):
		// downward, with repetition
		return 1
	case (r[0] == r[1] && r[2] < r[1]) || (r[1] < r[0] && r[1] == r[2]):
		// upward, with repetition
		return 2
	case max(abs(d[0]), abs(d[1]), abs(d[2])) <= 1:
		// not monotonic, at most one row apart
		return 3
	case d[0] < 0 && d[1] < 0:
		return 4
	case d[0] > 0 && d[1] > 0:
		return 6
	case min(d[0], d[1]) < -1:
		// not monotonic, large downward jump
		return 5
	case max(d[0], d[1]) > 1:
		// not monotonic, large upward jump
		return 7
	}
	errors.Integrity("unclassified row transition %v", r)
	return -1
}

// fingerOrdinal places all ten fingers on one scale, from the left little
// finger (1) over both thumbs to the right little finger (10).
func fingerOrdinal(h keyboard.Hand, f keyboard.Finger) int {
	if h == keyboard.Left {
		return int(f)
	}
	return 6 + (5 - int(f))
}

func strokePathFinger(h [3]keyboard.Hand, f [3]keyboard.Finger, t [3]keyboard.Button) int {
	var o [3]int
	for i := range o {
		o[i] = fingerOrdinal(h[i], f[i])
	}
	same := o[0] == o[1] && o[1] == o[2]
	allDifferent := o[0] != o[1] && o[1] != o[2] && o[0] != o[2]
	keyRepeat := t[0] == t[1] || t[1] == t[2] || t[0] == t[2]
	monotonic := (o[0] <= o[1] && o[1] <= o[2]) || (o[0] >= o[1] && o[1] >= o[2])

	switch {
	case same:
		if keyRepeat {
			return 5
		}
		return 7
	case (o[0] > o[2] && o[2] > o[1]) || (o[0] < o[2] && o[2] < o[1]):
		// rolling
		return 2
	case allDifferent:
		if monotonic {
			return 0
		}
		return 3
	default:
		// two fingers shared
		if !monotonic {
			return 4
		}
		if keyRepeat {
			return 1
		}
		return 6
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
