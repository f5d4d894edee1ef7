package tui

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/hive/internal/config"
)

// SettingsPaneModel manages the settings form overlay.
type SettingsPaneModel struct {
	form        *huh.Form
	config      *config.Config
	globalPath  string
	projectPath string
	width       int
	height      int
	visible     bool
	saved       bool
	err         error

	// Form field bindings (strings for Huh)
	saveTarget        string
	developerProvider string
	developerModel    string
	reviewerProvider  string
	reviewerModel     string
	concurrency       string
	negotiationMode   string
}

// NewSettingsPaneModel creates a new settings pane.
func NewSettingsPaneModel(cfg *config.Config, globalPath, projectPath string) SettingsPaneModel {
	m := SettingsPaneModel{
		config:      cfg,
		globalPath:  globalPath,
		projectPath: projectPath,

		saveTarget:        "global",
		developerProvider: cfg.Agents["developer"].Provider,
		developerModel:    cfg.Agents["developer"].Model,
		reviewerProvider:  cfg.Agents["reviewer"].Provider,
		reviewerModel:     cfg.Agents["reviewer"].Model,
		concurrency:       strconv.Itoa(cfg.Runner.Concurrency),
		negotiationMode:   cfg.Negotiation.Mode,
	}

	m.buildForm()
	return m
}

// buildForm constructs the Huh form with all settings fields.
func (m *SettingsPaneModel) buildForm() {
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Save To").
				Options(
					huh.NewOption("Global (~/.hive/config.json)", "global"),
					huh.NewOption("Project (.hive/config.json)", "project"),
				).
				Value(&m.saveTarget),
		).Title("Save Target"),

		huh.NewGroup(
			huh.NewInput().
				Key("developerProvider").
				Title("Developer Provider").
				Value(&m.developerProvider).
				Placeholder("claude"),

			huh.NewInput().
				Key("developerModel").
				Title("Developer Model").
				Value(&m.developerModel).
				Placeholder("sonnet"),

			huh.NewInput().
				Key("reviewerProvider").
				Title("Reviewer Provider").
				Value(&m.reviewerProvider).
				Placeholder("claude"),

			huh.NewInput().
				Key("reviewerModel").
				Title("Reviewer Model").
				Value(&m.reviewerModel).
				Placeholder("sonnet"),
		).Title("Agent Settings"),

		huh.NewGroup(
			huh.NewInput().
				Key("concurrency").
				Title("Concurrency").
				Value(&m.concurrency).
				Placeholder("2").
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 1 {
						return fmt.Errorf("must be a positive integer")
					}
					return nil
				}),

			huh.NewSelect[string]().
				Key("negotiationMode").
				Title("Negotiation Mode").
				Options(
					huh.NewOption("Simulate (single deliberation call)", "simulate"),
					huh.NewOption("Bidding (one call per candidate)", "bidding"),
				).
				Value(&m.negotiationMode),
		).Title("Runner Settings"),
	)
}

// Init initializes the settings pane.
func (m SettingsPaneModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the settings pane.
func (m SettingsPaneModel) Update(msg tea.Msg) (SettingsPaneModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "esc" {
			m.visible = false
			m.saved = false
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.applyFormToConfig()

		targetPath := m.globalPath
		if m.saveTarget == "project" {
			targetPath = m.projectPath
		}

		if err := config.Save(m.config, targetPath); err != nil {
			m.err = err
			m.saved = false
		} else {
			m.saved = true
			m.err = nil
			m.visible = false
		}
	}

	return m, cmd
}

// applyFormToConfig copies form field values back to the config struct.
func (m *SettingsPaneModel) applyFormToConfig() {
	if developer, ok := m.config.Agents["developer"]; ok {
		developer.Provider = m.developerProvider
		developer.Model = m.developerModel
		m.config.Agents["developer"] = developer
	}

	if reviewer, ok := m.config.Agents["reviewer"]; ok {
		reviewer.Provider = m.reviewerProvider
		reviewer.Model = m.reviewerModel
		m.config.Agents["reviewer"] = reviewer
	}

	if n, err := strconv.Atoi(m.concurrency); err == nil && n > 0 {
		m.config.Runner.Concurrency = n
	}

	if m.negotiationMode == "simulate" || m.negotiationMode == "bidding" {
		m.config.Negotiation.Mode = m.negotiationMode
	}
}

// View renders the settings pane.
func (m SettingsPaneModel) View() string {
	if !m.visible {
		return ""
	}

	var content string

	if m.saved && m.form.State == huh.StateCompleted {
		content = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true).
			Render("✓ Settings saved successfully!")
	} else if m.err != nil {
		content = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true).
			Render(fmt.Sprintf("✗ Error saving: %v", m.err))
	} else {
		content = m.form.View()
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(m.width - 4).
		Height(m.height - 4)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render("⚙ Settings")

	return lipgloss.JoinVertical(lipgloss.Left, title, style.Render(content))
}

// SetSize updates the dimensions of the settings pane.
func (m *SettingsPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.form != nil {
		m.form.WithWidth(w - 8).WithHeight(h - 8)
	}
}

// SetVisible shows or hides the settings pane.
func (m *SettingsPaneModel) SetVisible(v bool) {
	m.visible = v
	m.saved = false
	m.err = nil

	// Rebuild so a reopened form starts fresh
	if v {
		m.buildForm()
	}
}

// IsVisible returns whether the settings pane is currently visible.
func (m SettingsPaneModel) IsVisible() bool {
	return m.visible
}
