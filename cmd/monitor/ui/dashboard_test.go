package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"udpfetch/backend/app/events"
	"udpfetch/backend/app/models"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeSource struct {
	records []models.TransferRecord
	err     error
	calls   int
}

func (f *fakeSource) Recent(limit int) ([]models.TransferRecord, error) {
	f.calls++
	if len(f.records) > limit {
		return f.records[:limit], f.err
	}
	return f.records, f.err
}

func sampleRecords() []models.TransferRecord {
	at := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	return []models.TransferRecord{
		{SessionID: "s2", FileName: "b.bin", ClientAddr: "127.0.0.1:4000", DataPort: 50123, FileSize: 2500, BytesSent: 2500, Chunks: 3, Status: models.StatusClosed, StartedAt: at},
		{SessionID: "s1", FileName: "missing.txt", ClientAddr: "127.0.0.1:4000", Status: models.StatusNotFound, StartedAt: at},
	}
}

func TestDashboardLoadsRows(t *testing.T) {
	src := &fakeSource{records: sampleRecords()}
	m := NewDashboardModel(src, nil, 10, time.Second)

	next, _ := m.Update(m.load())
	dm := next.(DashboardModel)
	if src.calls != 1 {
		t.Fatalf("expected one ledger query, got %d", src.calls)
	}
	got := dm.Table.Rows()
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0][1] != "b.bin" || got[0][3] != "50123" || got[0][5] != "2500/2500" {
		t.Errorf("unexpected first row %v", got[0])
	}
	if got[1][3] != "-" || got[1][4] != models.StatusNotFound {
		t.Errorf("unexpected second row %v", got[1])
	}
	if !strings.Contains(dm.View(), "udpfetch - Transfers") {
		t.Error("view is missing the title")
	}
}

func TestDashboardKeepsRowsOnError(t *testing.T) {
	src := &fakeSource{records: sampleRecords()}
	m := NewDashboardModel(src, nil, 10, time.Second)
	next, _ := m.Update(m.load())

	src.err = errors.New("database is locked")
	dm := next.(DashboardModel)
	next, _ = dm.Update(dm.load())
	dm = next.(DashboardModel)
	if len(dm.Table.Rows()) != 2 {
		t.Errorf("rows dropped after a failed refresh")
	}
	if !strings.Contains(dm.View(), "database is locked") {
		t.Error("view does not show the error")
	}
}

func TestDashboardFollowsEvents(t *testing.T) {
	ch := make(chan events.Event, 1)
	ch <- events.Event{Type: events.SessionClosed, FileName: "b.bin", Client: "127.0.0.1:4000", At: time.Now()}
	m := NewDashboardModel(&fakeSource{}, ch, 10, time.Second)

	msg := m.waitEvent()
	if _, ok := msg.(eventMsg); !ok {
		t.Fatalf("expected an eventMsg, got %T", msg)
	}
	next, cmd := m.Update(msg)
	dm := next.(DashboardModel)
	if dm.Last == nil || dm.Last.FileName != "b.bin" {
		t.Fatalf("last event not recorded: %+v", dm.Last)
	}
	if cmd == nil {
		t.Error("expected a reload after an event")
	}
	if !strings.Contains(dm.View(), events.SessionClosed) {
		t.Error("view does not show the last event")
	}
	if m.tick() != nil {
		t.Error("no polling expected while following events")
	}
}

func TestDashboardQuit(t *testing.T) {
	m := NewDashboardModel(&fakeSource{}, nil, 5, time.Second)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}
