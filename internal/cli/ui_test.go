package cli

import (
	"io"
	"os"
	"strings"
	"testing"
)

// captureStdout returns what fn prints to standard output.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()
	w.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(out)
}

func TestPrintStats(t *testing.T) {
	tests := []struct {
		name   string
		cached bool
		parts  []string
		want   []string
	}{
		{"fresh", false, []string{"12 triads", "40 presses"}, []string{"12 triads", "40 presses", "fresh"}},
		{"cached", true, []string{"12 triads"}, []string{"12 triads", "cached"}},
		{"origin only", true, nil, []string{"cached"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureStdout(t, func() { printStats(tt.cached, tt.parts...) })
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output %q missing %q", out, w)
				}
			}
			if strings.Count(out, "\n") != 1 {
				t.Errorf("output %q should be a single line", out)
			}
		})
	}
}

func TestPrintEffort(t *testing.T) {
	out := captureStdout(t, func() { printEffort("mod01", 1.23456789) })
	if !strings.HasPrefix(out, "mod01") || !strings.Contains(out, "1.234568") {
		t.Errorf("printEffort output = %q", out)
	}
}
