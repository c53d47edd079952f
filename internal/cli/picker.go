package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/tripdraw/tripdraw/pkg/store"
)

// List styles
var (
	listSelectedStyle = StyleSuccess.Bold(true)
	listDimStyle      = StyleDim
)

// =============================================================================
// TripListModel - Interactive trip selection
// =============================================================================

// tripPickerItem is one selectable trip with its current occupancy.
type tripPickerItem struct {
	Trip    store.Trip
	Placed  int
	Signups int
}

// TripListModel is the bubbletea model for interactive trip selection.
type TripListModel struct {
	Items    []tripPickerItem
	Cursor   int
	Selected *store.Trip
	Height   int
	Offset   int
}

// NewTripListModel creates a new trip list model.
func NewTripListModel(items []tripPickerItem) TripListModel {
	return TripListModel{
		Items:  items,
		Cursor: 0,
		Height: 15,
		Offset: 0,
	}
}

func (m TripListModel) Init() tea.Cmd {
	return nil
}

func (m TripListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Items)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			trip := m.Items[m.Cursor].Trip
			m.Selected = &trip
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m TripListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Trip"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > len(m.Items) {
		end = len(m.Items)
	}

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		item := m.Items[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}

		rows = append(rows, []string{
			cursor,
			fmt.Sprintf("#%d", item.Trip.ID),
			item.Trip.Name,
			formatTripDate(item.Trip.TripDate),
			fmt.Sprintf("%d/%d", item.Placed, item.Trip.MaxParticipants),
			fmt.Sprintf("%d", item.Signups),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "ID", "Trip", "Date", "Placed", "Signups").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if m.Offset+row == m.Cursor {
				return listSelectedStyle
			}
			return lipgloss.NewStyle()
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Items))))

	return b.String()
}

// =============================================================================
// Helpers
// =============================================================================

// formatTripDate renders a trip date compactly, with how far out it is
// when the trip is within the next week.
func formatTripDate(t time.Time) string {
	if t.IsZero() {
		return "TBD"
	}

	until := time.Until(t)
	switch {
	case until < 0:
		return t.Format("Jan 2") + " (past)"
	case until < 24*time.Hour:
		return t.Format("Jan 2") + " (today)"
	case until < 7*24*time.Hour:
		return fmt.Sprintf("%s (in %dd)", t.Format("Jan 2"), int(until.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}
