package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	slidepreview "github.com/VantageDataChat/SlidePreview"
)

var (
	colorCyan   = lipgloss.Color("36")  // primary
	colorGreen  = lipgloss.Color("35")  // success
	colorYellow = lipgloss.Color("220") // warnings
	colorDim    = lipgloss.Color("240") // muted
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleNumber  = lipgloss.NewStyle().Foreground(colorCyan)
	styleDim     = lipgloss.NewStyle().Foreground(colorDim)
	styleSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

const (
	iconSuccess = "✓"
	iconWarning = "!"
	iconInfo    = "›"
)

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func printKeyValue(w io.Writer, key string, value any) {
	fmt.Fprintf(w, "  %s %s\n", styleDim.Render(fmt.Sprintf("%-12s", key)), fmt.Sprint(value))
}

// printWarnings lists the warnings of every slide that has any.
func printWarnings(w io.Writer, slides []*slidepreview.RenderedSlide) {
	total := 0
	for _, s := range slides {
		total += len(s.Warnings)
	}
	if total == 0 {
		return
	}
	fmt.Fprintln(w, styleWarning.Render(fmt.Sprintf("%s %d warning(s)", iconWarning, total)))
	for _, s := range slides {
		if len(s.Warnings) == 0 {
			continue
		}
		fmt.Fprintf(w, "  %s\n", styleTitle.Render(s.ID))
		for _, msg := range s.Warnings {
			fmt.Fprintf(w, "    %s %s\n", styleDim.Render(iconInfo), msg)
		}
	}
}
