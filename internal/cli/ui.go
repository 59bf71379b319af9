package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Terminal palette. Effort figures and progress share the accent colour;
// everything secondary is drawn in one of the two grays.
var (
	colorAccent = lipgloss.Color("36")  // teal
	colorGood   = lipgloss.Color("35")  // green
	colorWarn   = lipgloss.Color("220") // amber
	colorBad    = lipgloss.Color("167") // soft red
	colorLink   = lipgloss.Color("75")  // light blue
	colorText   = lipgloss.Color("255")
	colorLabel  = lipgloss.Color("245")
	colorMuted  = lipgloss.Color("240")
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	styleNumber  = lipgloss.NewStyle().Foreground(colorAccent)
	styleValue   = lipgloss.NewStyle().Foreground(colorText)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	styleWarning = lipgloss.NewStyle().Foreground(colorWarn)
	styleCommand = lipgloss.NewStyle().Foreground(colorLink)

	// labels line up key/value output and the progress view
	styleLabel = lipgloss.NewStyle().Foreground(colorLabel).Width(12)

	styleBarFilled = styleNumber
	styleBarEmpty  = styleMuted

	styleTableHeader = lipgloss.NewStyle().Foreground(colorLabel).Bold(true)
	styleTableBorder = styleMuted
)

// status marks the kind of a one-line message.
type status struct {
	icon  string
	style lipgloss.Style
}

var (
	statusSuccess = status{"✓", lipgloss.NewStyle().Foreground(colorGood)}
	statusError   = status{"✗", lipgloss.NewStyle().Foreground(colorBad)}
	statusWarning = status{"!", styleWarning}
	statusInfo    = status{"›", lipgloss.NewStyle().Foreground(colorLabel)}
)

func (s status) println(msg string) {
	fmt.Println(s.style.Render(s.icon) + " " + msg)
}

func printSuccess(format string, args ...any) {
	statusSuccess.println(fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	statusError.println(fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	statusWarning.println(styleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	statusInfo.println(fmt.Sprintf(format, args...))
}

// printDetail prints an indented, muted line below a status message.
func printDetail(format string, args ...any) {
	fmt.Println("  " + styleMuted.Render(fmt.Sprintf(format, args...)))
}

// printFile prints the path of a written file.
func printFile(path string) {
	fmt.Println("  " + styleMuted.Render("→") + " " + styleValue.Render(path))
}

func printKeyValue(key, value string) {
	fmt.Println(styleLabel.Render(key) + " " + styleValue.Render(value))
}

// printEffort prints an effort figure under label.
func printEffort(label string, effort float64) {
	fmt.Println(styleLabel.Render(label) + " " + styleNumber.Render(fmt.Sprintf("%.6f", effort)))
}

// printStats prints summary figures on one line, ending with whether the
// result was cached or freshly computed.
func printStats(cached bool, parts ...string) {
	origin := lipgloss.NewStyle().Foreground(colorLabel).Render("fresh")
	if cached {
		origin = lipgloss.NewStyle().Foreground(colorGood).Render("cached")
	}
	sep := styleMuted.Render(" · ")
	rendered := make([]string, 0, len(parts)+1)
	for _, p := range parts {
		rendered = append(rendered, styleMuted.Render(p))
	}
	rendered = append(rendered, origin)
	fmt.Println("  " + strings.Join(rendered, sep))
}

// printNextStep suggests a follow-up command.
func printNextStep(description, cmd string) {
	fmt.Println(styleMuted.Render(description+":") + " " + styleCommand.Render(cmd))
}

func printNewline() {
	fmt.Println()
}
