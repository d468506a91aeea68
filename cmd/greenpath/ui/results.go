package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

// RenderMarkdown renders md for a terminal of the given width. Rendering
// failures fall back to the raw markdown.
func RenderMarkdown(md string, width int, theme Theme) string {
	if width <= 0 {
		width = 80
	}
	style := "light"
	if theme.IsDark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// ResultsModel is a scrollable view of the rendered results page.
type ResultsModel struct {
	viewport viewport.Model
	styles   Styles
	keys     ViewerKeys
	help     help.Model
	title    string
	markdown string
}

// NewResultsModel shows markdown under title.
func NewResultsModel(title, markdown string, styles Styles) ResultsModel {
	m := ResultsModel{
		viewport: viewport.New(80, 20),
		styles:   styles,
		keys:     DefaultViewerKeys(),
		help:     help.New(),
		title:    title,
		markdown: markdown,
	}
	m.viewport.SetContent(RenderMarkdown(markdown, 80, styles.Theme))
	return m
}

func (m ResultsModel) Init() tea.Cmd { return nil }

// SetSize resizes the viewport and re-wraps the content.
func (m *ResultsModel) SetSize(w, h int) {
	m.viewport.Width = w
	m.viewport.Height = max(h-4, 1)
	m.help.Width = w
	m.viewport.SetContent(RenderMarkdown(m.markdown, w, m.styles.Theme))
}

func (m ResultsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			m.viewport.LineUp(1)
			return m, nil
		case key.Matches(msg, m.keys.Down):
			m.viewport.LineDown(1)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m ResultsModel) View() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Header.Render(m.title))
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(m.styles.Footer.Render(m.help.View(m.keys)))
	return sb.String()
}

// YOffset is the current scroll position.
func (m ResultsModel) YOffset() int { return m.viewport.YOffset }
