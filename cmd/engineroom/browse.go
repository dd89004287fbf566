package main

import (
	"errors"
	"fmt"
	"strings"

	"engineroom/internal/compose"
	"engineroom/internal/engine"
	"engineroom/internal/store"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Interactively browse engines and preview their composed prompts",
	Long: `Opens a terminal browser over the engine library. The left pane lists
engines; the right pane shows the composed prompt for the selected
engine. Press 's' to cycle stages, 'a' to cycle audiences, tab to move
focus to the preview for scrolling, and 'q' to quit.`,
	RunE: runBrowse,
}

// engineItem adapts an engine to list.Item.
type engineItem struct {
	engine *engine.Engine
}

func (i engineItem) Title() string { return i.engine.EngineKey }
func (i engineItem) Description() string {
	mode := "legacy"
	if i.engine.HasStageContext() {
		mode = "composed"
	}
	return fmt.Sprintf("[%s] v%d %s", mode, i.engine.Version, truncate(i.engine.EngineName, 40))
}
func (i engineItem) FilterValue() string {
	return i.engine.EngineKey + " " + i.engine.EngineName + " " + i.engine.Category
}

// browseModel is the split-pane engine browser: engine list on the left,
// composed prompt preview on the right.
type browseModel struct {
	width  int
	height int

	list     list.Model
	viewport viewport.Model

	adapter  *compose.Adapter
	selected *engine.Engine
	stage    engine.Stage
	audience engine.Audience

	focusViewport bool
}

func newBrowseModel(engines []*engine.Engine, adapter *compose.Adapter, defaultAudience engine.Audience) browseModel {
	items := make([]list.Item, 0, len(engines))
	for _, e := range engines {
		items = append(items, engineItem{engine: e})
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Engines"
	l.SetShowHelp(false)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))

	vp := viewport.New(0, 0)
	vp.SetContent("Select an engine to preview its prompt.")

	return browseModel{
		list:     l,
		viewport: vp,
		adapter:  adapter,
		stage:    engine.StageExtraction,
		audience: defaultAudience,
	}
}

func (m browseModel) Init() tea.Cmd {
	return nil
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)

	case tea.KeyMsg:
		if m.list.FilterState() != list.Filtering {
			switch msg.String() {
			case "q", "ctrl+c", "esc":
				return m, tea.Quit
			case "tab":
				m.focusViewport = !m.focusViewport
				return m, nil
			case "s":
				m.stage = nextStage(m.stage)
				m.refreshPreview()
				return m, nil
			case "a":
				m.audience = nextAudience(m.audience)
				m.refreshPreview()
				return m, nil
			}
		}
	}

	_, isKey := msg.(tea.KeyMsg)
	updateList := !isKey || !m.focusViewport || m.list.FilterState() == list.Filtering
	updateViewport := !isKey || (m.focusViewport && m.list.FilterState() != list.Filtering)

	if updateList {
		m.list, cmd = m.list.Update(msg)
		cmds = append(cmds, cmd)
	}
	if updateViewport {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	if sel := m.list.SelectedItem(); sel != nil {
		item := sel.(engineItem)
		if m.selected == nil || m.selected.EngineKey != item.engine.EngineKey {
			m.selected = item.engine
			m.refreshPreview()
		}
	}

	return m, tea.Batch(cmds...)
}

// refreshPreview recomposes the selected engine's prompt for the current
// stage and audience.
func (m *browseModel) refreshPreview() {
	if m.selected == nil {
		return
	}

	res, err := m.adapter.GetPrompt(m.selected, m.stage, m.audience)
	switch {
	case errors.Is(err, compose.ErrNotAvailable):
		m.viewport.SetContent(dimStyle.Render(fmt.Sprintf(
			"Engine %s has no %s prompt for this configuration.", m.selected.EngineKey, m.stage)))
		return
	case err != nil:
		m.viewport.SetContent(errorStyle.Render("Composition failed: " + err.Error()))
		return
	}

	var sb strings.Builder
	source := "composed"
	if !res.Composed {
		source = "legacy prompt"
	}
	sb.WriteString(headerStyle.Render(fmt.Sprintf("%s / %s / %s (%s)",
		m.selected.EngineKey, m.stage, m.audience, source)))
	sb.WriteString("\n")
	if res.FrameworkUsed != "" {
		sb.WriteString(dimStyle.Render("framework: " + res.FrameworkUsed))
		sb.WriteString("\n")
	}
	for _, note := range res.Notes {
		sb.WriteString(warnStyle.Render("note: " + note))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	switch {
	case res.Skipped:
		sb.WriteString(dimStyle.Render("Concretization is skipped for this engine."))
	case res.Error != "":
		sb.WriteString(errorStyle.Render(res.Error))
	default:
		sb.WriteString(renderMarkdown(res.Prompt))
	}

	m.viewport.SetContent(sb.String())
	m.viewport.GotoTop()
}

func (m *browseModel) setSize(w, h int) {
	m.width = w
	m.height = h

	listWidth := int(float64(w) * 0.35)
	viewWidth := w - listWidth - 4
	contentHeight := h - 4

	m.list.SetSize(listWidth, contentHeight)
	m.viewport.Width = viewWidth
	m.viewport.Height = contentHeight
	m.refreshPreview()
}

func (m browseModel) View() string {
	listWidth := int(float64(m.width) * 0.35)

	base := lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder())
	focused := lipgloss.Color("205")
	blurred := lipgloss.Color("240")

	listStyle := base.BorderForeground(focused)
	viewStyle := base.BorderForeground(blurred)
	if m.focusViewport {
		listStyle, viewStyle = viewStyle, listStyle
	}

	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		listStyle.Width(listWidth).Render(m.list.View()),
		viewStyle.Width(m.width-listWidth-4).Render(m.viewport.View()),
	)

	help := dimStyle.Render("s: stage  a: audience  tab: focus  /: filter  q: quit")
	return lipgloss.JoinVertical(lipgloss.Left, panes, help)
}

func nextStage(s engine.Stage) engine.Stage {
	for i, stage := range engine.Stages {
		if stage == s {
			return engine.Stages[(i+1)%len(engine.Stages)]
		}
	}
	return engine.StageExtraction
}

func nextAudience(a engine.Audience) engine.Audience {
	for i, audience := range engine.Audiences {
		if audience == a {
			return engine.Audiences[(i+1)%len(engine.Audiences)]
		}
	}
	return engine.AudienceAnalyst
}

func runBrowse(cmd *cobra.Command, args []string) error {
	c, err := openConsole()
	if err != nil {
		return err
	}
	defer c.Close()

	engines, err := c.store.ListEngines(store.EngineFilter{})
	if err != nil {
		return err
	}
	if len(engines) == 0 {
		fmt.Println(dimStyle.Render("No engines in the library. Import some with `engineroom engines import`."))
		return nil
	}

	model := newBrowseModel(engines, c.adapter, engine.Audience(c.cfg.Compose.DefaultAudience))
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
