package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"udpfetch/backend/app/events"
	"udpfetch/backend/app/models"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Source lists ledger rows, newest first.
type Source interface {
	Recent(limit int) ([]models.TransferRecord, error)
}

type transfersMsg struct {
	records []models.TransferRecord
	err     error
}

type eventMsg events.Event

type tickMsg time.Time

type DashboardModel struct {
	Table   table.Model
	Records []models.TransferRecord
	Last    *events.Event
	Err     error

	src     Source
	events  <-chan events.Event
	limit   int
	refresh time.Duration
}

// NewDashboardModel shows the latest limit transfers. When evs is nil the
// table is polled every refresh instead of following live events.
func NewDashboardModel(src Source, evs <-chan events.Event, limit int, refresh time.Duration) DashboardModel {
	columns := []table.Column{
		{Title: "Started", Width: 8},
		{Title: "File", Width: 24},
		{Title: "Client", Width: 21},
		{Title: "Port", Width: 5},
		{Title: "Status", Width: 10},
		{Title: "Sent", Width: 17},
		{Title: "Chunks", Width: 6},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(limit),
	)

	sStyle := table.DefaultStyles()
	sStyle.Header = sStyle.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	sStyle.Selected = sStyle.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(sStyle)

	if refresh <= 0 {
		refresh = 2 * time.Second
	}
	return DashboardModel{Table: t, src: src, events: evs, limit: limit, refresh: refresh}
}

func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.load, m.waitEvent, m.tick())
}

func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Table.SetHeight(max(msg.Height-8, 3))
	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			return m, m.load
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case transfersMsg:
		m.Err = msg.err
		if msg.err == nil {
			m.Records = msg.records
			m.Table.SetRows(rows(msg.records))
		}
		return m, nil
	case eventMsg:
		ev := events.Event(msg)
		m.Last = &ev
		return m, tea.Batch(m.load, m.waitEvent)
	case tickMsg:
		return m, tea.Batch(m.load, m.tick())
	}

	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m DashboardModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("udpfetch - Transfers") + "\n\n")
	b.WriteString(m.Table.View())
	b.WriteString("\n\n")
	if m.Last != nil {
		b.WriteString(eventStyle(fmt.Sprintf("%s %s %s (%s)", m.Last.At.Format("15:04:05"), m.Last.Type, m.Last.FileName, m.Last.Client)) + "\n")
	}
	b.WriteString(blurredStyle.Render("Press 'r' to refresh, 'q' to quit, up/down to navigate"))
	if m.Err != nil {
		b.WriteString("\n" + errorMessageStyle(m.Err.Error()))
	}
	return b.String()
}

func (m DashboardModel) load() tea.Msg {
	records, err := m.src.Recent(m.limit)
	return transfersMsg{records: records, err: err}
}

func (m DashboardModel) waitEvent() tea.Msg {
	if m.events == nil {
		return nil
	}
	ev, ok := <-m.events
	if !ok {
		return nil
	}
	return eventMsg(ev)
}

func (m DashboardModel) tick() tea.Cmd {
	if m.events != nil {
		return nil
	}
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func rows(records []models.TransferRecord) []table.Row {
	out := make([]table.Row, 0, len(records))
	for _, r := range records {
		port := "-"
		if r.DataPort > 0 {
			port = strconv.Itoa(r.DataPort)
		}
		out = append(out, table.Row{
			r.StartedAt.Format("15:04:05"),
			r.FileName,
			r.ClientAddr,
			port,
			r.Status,
			fmt.Sprintf("%d/%d", r.BytesSent, r.FileSize),
			strconv.Itoa(r.Chunks),
		})
	}
	return out
}
