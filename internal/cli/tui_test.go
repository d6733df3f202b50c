package cli

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestPlaceModelProgress(t *testing.T) {
	m := NewPlaceModel("vesicle", 120, nil)

	var model tea.Model = m
	model, _ = model.Update(progressMsg(40))
	model, _ = model.Update(progressMsg(20)) // stale updates are ignored
	model, _ = model.Update(rowMsg{"LIP", 60})

	pm := model.(PlaceModel)
	if pm.Percent != 40 {
		t.Errorf("Percent = %d, want 40", pm.Percent)
	}
	view := pm.View()
	for _, want := range []string{"vesicle", "120 particles", "40%", "LIP", "60 particles"} {
		if !strings.Contains(view, want) {
			t.Errorf("view should contain %q:\n%s", want, view)
		}
	}
}

func TestPlaceModelStop(t *testing.T) {
	stops := 0
	var model tea.Model = NewPlaceModel("x", 1, func() { stops++ })

	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd != nil {
		t.Error("interrupt should wait for the run to end, not quit")
	}
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if stops != 1 {
		t.Errorf("stop called %d times, want 1", stops)
	}
	if !strings.Contains(model.View(), "stopping") {
		t.Error("view should show the stop in progress")
	}

	model, cmd = model.Update(doneMsg{errors.New("placement cancelled")})
	if cmd == nil {
		t.Fatal("done should quit the program")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("done should return tea.Quit")
	}
	if !strings.Contains(model.View(), "placement cancelled") {
		t.Error("view should show the error")
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		percent, full int
	}{
		{0, 0},
		{50, 5},
		{100, 10},
		{150, 10},
		{-5, 0},
	}
	for _, tt := range tests {
		bar := renderBar(tt.percent, 10)
		if got := strings.Count(bar, "█"); got != tt.full {
			t.Errorf("renderBar(%d) has %d full cells, want %d", tt.percent, got, tt.full)
		}
		if got := strings.Count(bar, "█") + strings.Count(bar, "░"); got != 10 {
			t.Errorf("renderBar(%d) width = %d, want 10", tt.percent, got)
		}
	}
}
