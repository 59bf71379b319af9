package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/keyforge/pkg/optimize"
	"github.com/matzehuels/keyforge/pkg/runstore"
	"github.com/matzehuels/keyforge/pkg/stats"
)

const progressBarWidth = 40

// =============================================================================
// OptimizeModel - Annealing progress view
// =============================================================================

type progressMsg optimize.Progress

type optimizeDoneMsg struct{}

// OptimizeModel is the bubbletea model showing a running optimization.
type OptimizeModel struct {
	Title  string
	Steps  int
	Latest optimize.Progress
	Start  time.Time
	// Cancel stops the optimization when the user quits.
	Cancel    context.CancelFunc
	Cancelled bool
	Done      bool
}

// NewOptimizeModel creates a progress view for an optimization of steps steps.
func NewOptimizeModel(title string, steps int, cancel context.CancelFunc) OptimizeModel {
	return OptimizeModel{
		Title:  title,
		Steps:  steps,
		Start:  time.Now(),
		Cancel: cancel,
	}
}

func (m OptimizeModel) Init() tea.Cmd {
	return nil
}

func (m OptimizeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			// the optimizer returns its best state, then optimizeDoneMsg quits
			m.Cancelled = true
			if m.Cancel != nil {
				m.Cancel()
			}
		}
	case progressMsg:
		m.Latest = optimize.Progress(msg)
	case optimizeDoneMsg:
		m.Done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m OptimizeModel) View() string {
	var b strings.Builder

	b.WriteString(styleTitle.Render(m.Title))
	b.WriteString("\n")
	if m.Cancelled {
		b.WriteString(styleWarning.Render("stopping, keeping the best layout so far..."))
	} else {
		b.WriteString(styleMuted.Render("q stop and keep the best layout"))
	}
	b.WriteString("\n\n")

	frac := 0.0
	if m.Steps > 0 {
		frac = float64(m.Latest.Step) / float64(m.Steps)
	}
	frac = min(max(frac, 0), 1)
	filled := int(frac * progressBarWidth)
	b.WriteString(styleBarFilled.Render(strings.Repeat("█", filled)))
	b.WriteString(styleBarEmpty.Render(strings.Repeat("░", progressBarWidth-filled)))
	b.WriteString(styleNumber.Render(fmt.Sprintf(" %3.0f%%", frac*100)))
	b.WriteString("\n\n")

	elapsed := time.Since(m.Start)
	eta := "—"
	if frac > 0 && frac < 1 {
		eta = (time.Duration(float64(elapsed)/frac) - elapsed).Round(time.Second).String()
	}
	p := m.Latest
	rows := [][2]string{
		{"step", fmt.Sprintf("%d/%d", p.Step, m.Steps)},
		{"energy", fmt.Sprintf("%.6f", p.Energy)},
		{"best", fmt.Sprintf("%.6f", p.Best)},
		{"delta", fmt.Sprintf("%+.3g (rel %.3g)", p.Delta, p.RelDelta)},
		{"threshold", fmt.Sprintf("%.3g", p.Threshold)},
		{"accepted", strconv.Itoa(p.Accepted)},
		{"elapsed", elapsed.Round(time.Second).String()},
		{"eta", eta},
	}
	for _, r := range rows {
		b.WriteString(styleLabel.Render(r[0]))
		b.WriteString(styleValue.Render(r[1]))
		b.WriteString("\n")
	}
	return b.String()
}

// runWithProgressView runs fn while showing its progress reports on stderr.
// Quitting the view cancels the context passed to fn; fn is expected to
// return promptly with a partial result.
func runWithProgressView[T any](ctx context.Context, title string, steps int, fn func(ctx context.Context, report func(optimize.Progress)) (T, error)) (T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewOptimizeModel(title, steps, cancel), tea.WithOutput(os.Stderr))

	var (
		res    T
		runErr error
	)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		res, runErr = fn(ctx, func(pr optimize.Progress) { p.Send(progressMsg(pr)) })
		p.Send(optimizeDoneMsg{})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-finished
		var zero T
		return zero, fmt.Errorf("progress view: %w", err)
	}
	<-finished
	return res, runErr
}

// =============================================================================
// Tables
// =============================================================================

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleTableBorder).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleTableHeader
			}
			if col == 0 {
				return styleNumber
			}
			return styleValue
		})
}

// runsTable renders run records, one row per run.
func runsTable(records []*runstore.Record) string {
	t := newTable("ID", "Created", "Layout", "Model", "Steps", "Effort", "Improvement")
	for _, r := range records {
		steps := strconv.Itoa(r.Steps)
		if r.Interrupted {
			steps += "*"
		}
		t.Row(
			shortID(r.ID),
			formatRelativeTime(r.CreatedAt),
			r.Layout,
			r.Model,
			steps,
			fmt.Sprintf("%.4f", r.Effort),
			fmt.Sprintf("%.1f%%", r.Improvement()*100),
		)
	}
	return t.Render()
}

// triadsTable renders the n most frequent triads of f.
func triadsTable(f stats.File, n int) string {
	t := newTable("#", "Triad", "Count")
	for i, tc := range f.Triads {
		if i == n {
			break
		}
		parts := make([]string, len(tc.Triad))
		for j, c := range tc.Triad {
			parts[j] = strings.Join(append(append([]string{}, c.Modifier...), c.Buttons...), "+")
		}
		t.Row(strconv.Itoa(i+1), strings.Join(parts, " "), strconv.FormatFloat(tc.Count, 'f', -1, 64))
	}
	return t.Render()
}

// =============================================================================
// Helpers
// =============================================================================

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatRelativeTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Local().Format("Jan 2, 2006")
	}
}
