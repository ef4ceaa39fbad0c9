package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/peerbeam/internal/utils"
)

// ProgressItem tracks one file's transfer progress as a percentage.
type ProgressItem struct {
	Name       string
	Percent    int
	IsComplete bool
	HasError   bool
	ErrorMsg   string
}

// ProgressModel renders one bar per file in flight.
type ProgressModel struct {
	mu    sync.RWMutex
	items []*ProgressItem
	bars  []progress.Model
}

func NewProgressModel(fileNames []string) *ProgressModel {
	items := make([]*ProgressItem, len(fileNames))
	bars := make([]progress.Model, len(fileNames))
	for i, name := range fileNames {
		items[i] = &ProgressItem{Name: name}
		bars[i] = progress.New(
			progress.WithGradient("#22d3ee", "#0ea5e9"),
			progress.WithWidth(30),
			progress.WithoutPercentage(),
		)
	}
	return &ProgressModel{items: items, bars: bars}
}

func (m *ProgressModel) Init() tea.Cmd {
	return tickCmd()
}

// TickMsg is sent periodically to update the progress display.
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// SetPercent updates a file's progress; values never move backwards.
func (m *ProgressModel) SetPercent(index, pct int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.items) {
		return
	}
	if pct > m.items[index].Percent {
		m.items[index].Percent = pct
	}
	if m.items[index].Percent >= 100 {
		m.items[index].IsComplete = true
	}
}

func (m *ProgressModel) MarkComplete(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index >= 0 && index < len(m.items) {
		m.items[index].Percent = 100
		m.items[index].IsComplete = true
	}
}

func (m *ProgressModel) MarkError(index int, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index >= 0 && index < len(m.items) {
		m.items[index].HasError = true
		m.items[index].ErrorMsg = msg
	}
}

// View renders one line per file.
func (m *ProgressModel) View() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder
	for i, item := range m.items {
		name := utils.TruncateString(item.Name, 28)
		switch {
		case item.HasError:
			fmt.Fprintf(&b, "%s %s %s\n", ErrorStyle.Render(IconError), name, MutedStyle.Render(item.ErrorMsg))
		case item.IsComplete:
			fmt.Fprintf(&b, "%s %s %s\n", SuccessStyle.Render(IconSuccess), name, m.bars[i].ViewAs(1.0))
		default:
			fmt.Fprintf(&b, "  %s %s %3d%%\n", name, m.bars[i].ViewAs(float64(item.Percent)/100), item.Percent)
		}
	}
	return b.String()
}

// RunProgressLoop repaints the model until done closes, then paints the
// final state once more.
func RunProgressLoop(done <-chan struct{}, numLines int, view func() string) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	firstPrint := true
	for {
		select {
		case <-done:
			if !firstPrint {
				ClearProgressLines(numLines)
			}
			fmt.Print(view())
			return
		case <-ticker.C:
			if !firstPrint {
				ClearProgressLines(numLines)
			}
			firstPrint = false
			fmt.Print(view())
		}
	}
}

func ClearProgressLines(count int) {
	for range count {
		fmt.Print("\033[A\033[2K")
	}
}
