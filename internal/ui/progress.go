// Package ui renders batch compilation progress in the terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"shade/internal/buildpipeline"
)

// weight is how far through the pipeline a file inside each stage is.
var weight = map[buildpipeline.Stage]float64{
	buildpipeline.StageLoad:  0.1,
	buildpipeline.StagePlace: 0.3,
	buildpipeline.StageLower: 0.7,
	buildpipeline.StageWrite: 0.9,
}

var verb = map[buildpipeline.Stage]string{
	buildpipeline.StageLoad:  "loading",
	buildpipeline.StagePlace: "placing",
	buildpipeline.StageLower: "lowering",
	buildpipeline.StageWrite: "writing",
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	busyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	waitStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Faint(true)
)

const statusWidth = 10

type row struct {
	file   string
	status buildpipeline.Status
	stage  buildpipeline.Stage
	err    string
}

func (r *row) label() string {
	switch r.status {
	case buildpipeline.StatusWorking:
		return verb[r.stage]
	case "":
		return string(buildpipeline.StatusQueued)
	default:
		return string(r.status)
	}
}

func (r *row) finished() bool {
	return r.status == buildpipeline.StatusDone || r.status == buildpipeline.StatusError
}

type progressModel struct {
	title   string
	events  <-chan buildpipeline.Event
	spinner spinner.Model
	bar     progress.Model
	rows    []row
	byFile  map[string]*row
	width   int
	closed  bool
}

type eventMsg buildpipeline.Event
type closedMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders one line per
// program file and an overall bar. The model quits when events is closed.
func NewProgressModel(title string, files []string, events <-chan buildpipeline.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = busyStyle

	m := &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(76)),
		rows:    make([]row, len(files)),
		byFile:  make(map[string]*row, len(files)),
		width:   80,
	}
	for i, f := range files {
		m.rows[i] = row{file: f, status: buildpipeline.StatusQueued}
		m.byFile[f] = &m.rows[i]
	}
	return m
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.next())
}

func (m *progressModel) next() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return m, tea.Batch(m.apply(buildpipeline.Event(msg)), m.next())
	case closedMsg:
		m.closed = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.bar.Width = max(msg.Width-4, 10)
		}
		return m, nil
	case spinner.TickMsg:
		if m.closed {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

// apply records ev and animates the bar toward the new completion ratio.
// Events for files outside the batch are ignored.
func (m *progressModel) apply(ev buildpipeline.Event) tea.Cmd {
	r, ok := m.byFile[ev.File]
	if !ok {
		return nil
	}
	r.status, r.stage = ev.Status, ev.Stage
	if ev.Err != nil {
		msg := ev.Err.Error()
		if i := strings.IndexByte(msg, '\n'); i >= 0 {
			msg = msg[:i]
		}
		r.err = msg
	}
	return m.bar.SetPercent(m.percent())
}

func (m *progressModel) percent() float64 {
	if len(m.rows) == 0 {
		return 0
	}
	sum := 0.0
	for i := range m.rows {
		if m.rows[i].finished() {
			sum++
			continue
		}
		if m.rows[i].status == buildpipeline.StatusWorking {
			sum += weight[m.rows[i].stage]
		}
	}
	return sum / float64(len(m.rows))
}

func (m *progressModel) counts() (done, failed int) {
	for i := range m.rows {
		switch m.rows[i].status {
		case buildpipeline.StatusDone:
			done++
		case buildpipeline.StatusError:
			failed++
		}
	}
	return done, failed
}

func (m *progressModel) View() string {
	if len(m.rows) == 0 {
		return ""
	}
	done, failed := m.counts()
	head := fmt.Sprintf("%s  %d/%d", m.title, done+failed, len(m.rows))
	if failed > 0 {
		head += fmt.Sprintf(", %d failed", failed)
	}
	if !m.closed {
		head = m.spinner.View() + " " + head
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(head))
	b.WriteString("\n\n")
	nameWidth := max(m.width-statusWidth-4, 20)
	for i := range m.rows {
		r := &m.rows[i]
		label := runewidth.FillLeft(r.label(), statusWidth)
		fmt.Fprintf(&b, "  %s %s\n", styleFor(r).Render(label), clip(r.file, nameWidth))
		if r.err != "" {
			b.WriteString(strings.Repeat(" ", statusWidth+3))
			b.WriteString(errTextStyle.Render(clip(r.err, nameWidth)))
			b.WriteByte('\n')
		}
	}
	b.WriteByte('\n')
	if m.closed {
		b.WriteString(m.bar.ViewAs(1))
	} else {
		b.WriteString(m.bar.View())
	}
	b.WriteByte('\n')
	return b.String()
}

func styleFor(r *row) lipgloss.Style {
	switch r.status {
	case buildpipeline.StatusDone:
		return doneStyle
	case buildpipeline.StatusError:
		return failStyle
	case buildpipeline.StatusWorking:
		return busyStyle
	default:
		return waitStyle
	}
}

// clip shortens s to width display cells, marking the cut with "...".
func clip(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}
