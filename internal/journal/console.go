package journal

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/temirov/toolbump/internal/utils"
)

const (
	consoleLineTemplateConstant  = "%s %s\n"
	consoleLabelTemplateConstant = "[%s]"
	infoColorConstant            = "12"
	warnColorConstant            = "11"
	errorColorConstant           = "9"
	successColorConstant         = "10"
)

type consolePrinter struct {
	writer io.Writer
	styles map[Level]lipgloss.Style
}

func newConsolePrinter(console io.Writer) *consolePrinter {
	if console == nil {
		return nil
	}
	renderer := lipgloss.NewRenderer(console)
	return &consolePrinter{
		writer: utils.NewFlushingWriter(console),
		styles: map[Level]lipgloss.Style{
			LevelInfo:    renderer.NewStyle().Foreground(lipgloss.Color(infoColorConstant)),
			LevelWarn:    renderer.NewStyle().Foreground(lipgloss.Color(warnColorConstant)).Bold(true),
			LevelError:   renderer.NewStyle().Foreground(lipgloss.Color(errorColorConstant)).Bold(true),
			LevelSuccess: renderer.NewStyle().Foreground(lipgloss.Color(successColorConstant)).Bold(true),
		},
	}
}

func (printer *consolePrinter) print(entry Entry) {
	if printer == nil {
		return
	}
	label := fmt.Sprintf(consoleLabelTemplateConstant, entry.Level)
	if style, styled := printer.styles[entry.Level]; styled {
		label = style.Render(label)
	}
	_, _ = fmt.Fprintf(printer.writer, consoleLineTemplateConstant, label, entry.Message)
}
