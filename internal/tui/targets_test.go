package tui

import (
	"strings"
	"testing"

	"time-to-sell/internal/domain"

	tea "github.com/charmbracelet/bubbletea"
)

func TestTargetListStartsOnPrimary(t *testing.T) {
	stub := newStubSession()
	stub.snap.Primary = domain.IndexTOPIX
	m := NewTargetListModel(Services{Session: stub})
	if domain.SupportedTargets[m.Cursor()] != domain.IndexTOPIX {
		t.Fatalf("expected cursor on TOPIX, got %s", domain.SupportedTargets[m.Cursor()])
	}
}

func TestTargetListCursorBounds(t *testing.T) {
	m := NewTargetListModel(Services{Session: newStubSession()})

	updated, _ := m.Update(runes("k"))
	if updated.Cursor() != 0 {
		t.Fatalf("expected cursor to stay at 0, got %d", updated.Cursor())
	}
	for range domain.SupportedTargets {
		updated, _ = updated.Update(tea.KeyMsg{Type: tea.KeyDown})
	}
	if updated.Cursor() != len(domain.SupportedTargets)-1 {
		t.Fatalf("expected cursor at last row, got %d", updated.Cursor())
	}
}

func TestTargetListSelect(t *testing.T) {
	stub := newStubSession()
	m := NewTargetListModel(Services{Session: stub})
	m.SetSize(120, 40)

	updated, _ := m.Update(runes("j"))
	want := domain.SupportedTargets[updated.Cursor()]
	updated, cmd := updated.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected select command")
	}
	if !strings.Contains(updated.View(), "loading") {
		t.Fatal("expected pending marker while switching")
	}

	msg := cmd().(targetSelectedMsg)
	if msg.target != want || msg.err != nil {
		t.Fatalf("unexpected selection msg: %#v", msg)
	}
	if len(stub.selected) != 1 || stub.selected[0] != want {
		t.Fatalf("expected OnTargetChanged(%s), got %v", want, stub.selected)
	}

	updated, _ = updated.Update(msg)
	view := updated.View()
	if strings.Contains(view, "loading") {
		t.Fatal("expected pending marker cleared")
	}
	if !strings.Contains(view, "active") {
		t.Fatal("expected active marker on new primary")
	}
}

func TestTargetListWithoutSession(t *testing.T) {
	m := NewTargetListModel(Services{})
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatal("expected no command without session")
	}
	if !strings.Contains(updated.View(), "session not available") {
		t.Fatal("expected error in view")
	}
}
