package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/hive/internal/events"
)

// taskView is the display state of one task: its lifecycle plus the lines of
// activity shown in the viewport when selected.
type taskView struct {
	ID        string
	AgentRole string
	Status    string // "pending", "running", "completed", "failed", "skipped"
	Lines     []string
	StartTime time.Time
	Duration  time.Duration
}

// TaskPaneModel shows the task list alongside a scrollable activity log for
// the selected task.
type TaskPaneModel struct {
	tasks       map[string]*taskView
	taskOrder   []string // first-seen order
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
}

// NewTaskPaneModel creates an empty task pane.
func NewTaskPaneModel() TaskPaneModel {
	return TaskPaneModel{
		tasks:    make(map[string]*taskView),
		viewport: viewport.New(0, 0),
	}
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()

	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.taskOrder)-1 {
				m.selectedIdx++
				m.refreshViewport()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.refreshViewport()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.TaskQueued:
		t := m.ensure(msg.ID)
		t.Status = "pending"
		m.appendLine(msg.ID, fmt.Sprintf("queued (%s, priority %d)", msg.Type, msg.Priority))

	case events.TaskStarted:
		t := m.ensure(msg.ID)
		t.Status = "running"
		t.AgentRole = msg.AgentRole
		t.StartTime = msg.Timestamp
		m.appendLine(msg.ID, fmt.Sprintf("attempt %d started (%s)", msg.Attempt, msg.AgentRole))

	case events.TaskRetried:
		t := m.ensure(msg.ID)
		t.Status = "pending"
		m.appendLine(msg.ID, fmt.Sprintf("attempt %d failed, will retry: %v", msg.Attempt, msg.Err))

	case events.TaskCompleted:
		t := m.ensure(msg.ID)
		t.Status = "completed"
		t.Duration = msg.Duration
		m.appendLine(msg.ID, fmt.Sprintf("completed in %v", msg.Duration.Round(time.Millisecond)))

	case events.TaskFailed:
		t := m.ensure(msg.ID)
		t.Status = "failed"
		m.appendLine(msg.ID, fmt.Sprintf("failed after %d attempts: %v", msg.Attempts, msg.Err))

	case events.TaskSkipped:
		t := m.ensure(msg.ID)
		t.Status = "skipped"
		m.appendLine(msg.ID, fmt.Sprintf("skipped: dependency %s failed", msg.DepID))

	case events.NegotiationDecided:
		mode := "bidding"
		if msg.Simulated {
			mode = "simulated"
		}
		m.appendLine(msg.ID, fmt.Sprintf("assigned to %s (%s, score %.1f)", msg.Winner, mode, msg.Score))

	case events.WorkflowStep:
		if msg.ID != "" {
			m.appendLine(msg.ID, fmt.Sprintf("sop %s / %s: %s", msg.SOP, msg.Step, msg.Status))
		}
	}

	return m, cmd
}

func (m *TaskPaneModel) ensure(id string) *taskView {
	if t, exists := m.tasks[id]; exists {
		return t
	}
	t := &taskView{ID: id, Status: "pending"}
	m.tasks[id] = t
	m.taskOrder = append(m.taskOrder, id)
	if len(m.taskOrder) == 1 {
		m.selectedIdx = 0
	}
	return t
}

func (m *TaskPaneModel) appendLine(id, line string) {
	t, exists := m.tasks[id]
	if !exists {
		return
	}
	t.Lines = append(t.Lines, line)
	if m.selectedTaskID() == id {
		m.refreshViewport()
	}
}

// View renders the task pane.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	listWidth := 25
	viewportWidth := m.width - listWidth - 4

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderTaskList(listWidth),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m TaskPaneModel) renderTaskList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.taskOrder) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting..."))
	} else {
		for i, id := range m.taskOrder {
			t := m.tasks[id]
			name := t.ID
			if len(name) > width-6 {
				name = name[:width-9] + "..."
			}

			line := fmt.Sprintf("%s %s", statusIcon(t.Status), name)
			if i == m.selectedIdx {
				line = lipgloss.NewStyle().
					Background(lipgloss.Color("62")).
					Foreground(lipgloss.Color("0")).
					Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

func statusIcon(status string) string {
	switch status {
	case "running":
		return StyleStatusRunning.Render("●")
	case "completed":
		return StyleStatusComplete.Render("✓")
	case "failed":
		return StyleStatusFailed.Render("✗")
	case "skipped":
		return StyleStatusFailed.Render("⊘")
	default:
		return StyleStatusPending.Render("○")
	}
}

func (m TaskPaneModel) selectedTaskID() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.taskOrder) {
		return m.taskOrder[m.selectedIdx]
	}
	return ""
}

func (m *TaskPaneModel) refreshViewport() {
	id := m.selectedTaskID()
	t, exists := m.tasks[id]
	if !exists {
		m.viewport.SetContent("Waiting for tasks...")
		return
	}

	header := fmt.Sprintf("%s  [%s]", t.ID, t.Status)
	if t.AgentRole != "" {
		header += "  " + t.AgentRole
	}
	m.viewport.SetContent(header + "\n\n" + strings.Join(t.Lines, "\n"))
	m.viewport.GotoBottom()
}

func (m *TaskPaneModel) resizeViewport() {
	listWidth := 25
	viewportWidth := m.width - listWidth - 4
	viewportHeight := m.height - 4

	if viewportWidth < 10 {
		viewportWidth = 10
	}
	if viewportHeight < 5 {
		viewportHeight = 5
	}
	m.viewport.Width = viewportWidth
	m.viewport.Height = viewportHeight
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
