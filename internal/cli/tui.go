package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	barFullStyle  = lipgloss.NewStyle().Foreground(colorCyan)
	barEmptyStyle = lipgloss.NewStyle().Foreground(colorDim)
	rowDoneStyle  = lipgloss.NewStyle().Foreground(colorGreen)
)

const (
	barWidth    = 40
	visibleRows = 8
)

// =============================================================================
// Messages
// =============================================================================

type progressMsg int

type rowMsg struct {
	molecule string
	placed   int
}

type doneMsg struct{ err error }

// tuiObserver forwards placement notifications to a running program.
type tuiObserver struct {
	send func(tea.Msg)
}

func (o tuiObserver) OnProgress(p int) { o.send(progressMsg(p)) }
func (o tuiObserver) OnError(error) {}
func (o tuiObserver) OnCancelled() {}
func (o tuiObserver) OnRowComplete(molecule string, placed int) { o.send(rowMsg{molecule, placed}) }

// =============================================================================
// PlaceModel - live placement progress
// =============================================================================

// PlaceModel is the bubbletea model showing a running placement.
type PlaceModel struct {
	Title    string
	Total    int
	Percent  int
	Rows     []rowMsg
	Started  time.Time
	Stopping bool
	Done     bool
	Err      error

	stop func()
}

// NewPlaceModel creates a model for a placement of total particles. stop is
// called when the user interrupts.
func NewPlaceModel(title string, total int, stop func()) PlaceModel {
	return PlaceModel{Title: title, Total: total, Started: time.Now(), stop: stop}
}

func (m PlaceModel) Init() tea.Cmd {
	return nil
}

func (m PlaceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.Stopping && m.stop != nil {
				m.stop()
			}
			m.Stopping = true
		}
	case progressMsg:
		if int(msg) > m.Percent {
			m.Percent = int(msg)
		}
	case rowMsg:
		m.Rows = append(m.Rows, msg)
	case doneMsg:
		m.Done = true
		m.Err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m PlaceModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.Title))
	b.WriteString("  ")
	b.WriteString(StyleDim.Render(fmt.Sprintf("%d particles", m.Total)))
	b.WriteString("\n\n")
	b.WriteString(renderBar(m.Percent, barWidth))
	b.WriteString(StyleNumber.Render(fmt.Sprintf(" %3d%%", m.Percent)))
	b.WriteString(StyleDim.Render(fmt.Sprintf("  %s", time.Since(m.Started).Round(100*time.Millisecond))))
	b.WriteString("\n\n")

	start := max(0, len(m.Rows)-visibleRows)
	for _, r := range m.Rows[start:] {
		b.WriteString(rowDoneStyle.Render(iconSuccess))
		b.WriteString(fmt.Sprintf(" %-16s %s\n", r.molecule, StyleDim.Render(fmt.Sprintf("%d particles", r.placed))))
	}

	b.WriteString("\n")
	switch {
	case m.Done && m.Err != nil:
		b.WriteString(styleIconError.Render(iconError) + " " + m.Err.Error() + "\n")
	case m.Stopping:
		b.WriteString(StyleWarning.Render("stopping...") + "\n")
	default:
		b.WriteString(StyleDim.Render("q stop") + "\n")
	}
	return b.String()
}

// renderBar draws a percent bar of the given width.
func renderBar(percent, width int) string {
	filled := min(width, max(0, percent*width/100))
	return barFullStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", width-filled))
}
