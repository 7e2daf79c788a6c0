package tui

import (
	"context"
	"fmt"
	"strings"

	"time-to-sell/internal/domain"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// targetSelectedMsg reports the end of the cycle started by a target switch.
type targetSelectedMsg struct {
	target domain.IndexType
	err    error
}

// TargetListModel lists the supported indices and switches the primary
// target on Enter.
type TargetListModel struct {
	services Services
	cursor   int
	pending  domain.IndexType
	err      error
	width    int
	height   int
}

// NewTargetListModel creates a target list with the cursor on the current primary.
func NewTargetListModel(svc Services) TargetListModel {
	m := TargetListModel{services: svc}
	if svc.Session != nil {
		primary := svc.Session.Snapshot().Primary
		for i, t := range domain.SupportedTargets {
			if t == primary {
				m.cursor = i
			}
		}
	}
	return m
}

func (m TargetListModel) Init() tea.Cmd { return nil }

// Update handles incoming messages.
func (m TargetListModel) Update(msg tea.Msg) (TargetListModel, tea.Cmd) {
	switch msg := msg.(type) {
	case targetSelectedMsg:
		if msg.target == m.pending {
			m.pending = ""
		}
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.Up):
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil

		case key.Matches(msg, DefaultKeyMap.Down):
			if m.cursor < len(domain.SupportedTargets)-1 {
				m.cursor++
			}
			return m, nil

		case key.Matches(msg, DefaultKeyMap.Select):
			if m.services.Session == nil {
				m.err = fmt.Errorf("session not available")
				return m, nil
			}
			target := domain.SupportedTargets[m.cursor]
			m.pending = target
			m.err = nil
			return m, selectTargetCmd(m.services.Session, target)
		}
	}
	return m, nil
}

// View renders the target list.
func (m TargetListModel) View() string {
	var sections []string
	sections = append(sections, HeaderStyle.Render("  Indices"), "")

	var primary domain.IndexType
	if m.services.Session != nil {
		primary = m.services.Session.Snapshot().Primary
	}

	for i, t := range domain.SupportedTargets {
		cursor := "  "
		if i == m.cursor {
			cursor = SelectStyle.Render("> ")
		}
		name := fmt.Sprintf("%-22s", t.DisplayName())
		if i == m.cursor {
			name = SelectStyle.Render(name)
		}
		var tags []string
		if t == primary {
			tags = append(tags, "active")
		}
		if pair, ok := domain.PairOf(t); ok {
			tags = append(tags, "pair "+string(pair))
		}
		if t == m.pending {
			tags = append(tags, "loading")
		}
		line := cursor + name + SubtextStyle.Render(fmt.Sprintf("%-10s", string(t)))
		if len(tags) > 0 {
			line += "  " + SubtextStyle.Render(strings.Join(tags, ", "))
		}
		sections = append(sections, line)
	}

	if m.err != nil {
		sections = append(sections, "", ErrorStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
	}

	sections = append(sections, "", SubtextStyle.Render("  [j/k] move  [enter] select index"))
	return strings.Join(sections, "\n")
}

// SetSize updates the model dimensions.
func (m *TargetListModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Cursor returns the highlighted row (for testing).
func (m TargetListModel) Cursor() int { return m.cursor }

func selectTargetCmd(sess SessionAPI, target domain.IndexType) tea.Cmd {
	return func() tea.Msg {
		return targetSelectedMsg{target: target, err: sess.OnTargetChanged(context.Background(), target)}
	}
}
