package ui

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"shade/internal/buildpipeline"
)

// RunProgress draws the progress view on out until events is closed.
func RunProgress(out io.Writer, title string, files []string, events <-chan buildpipeline.Event) error {
	prog := tea.NewProgram(NewProgressModel(title, files, events), tea.WithOutput(out), tea.WithInput(nil))
	_, err := prog.Run()
	return err
}
