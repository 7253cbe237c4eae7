package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{999, "999 B"},
		{1024, "1.00 KB"},
		{2500, "2.44 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.input); got != tt.expected {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{125 * time.Second, "2m 5s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.input); got != tt.expected {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestReporterTracksBytes(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(Options{Output: &out, Width: 20})

	r.Begin("report.pdf", 2500)
	if p := r.Percent(); p != 0 {
		t.Errorf("expected 0 before any chunk, got %v", p)
	}
	r.Add(1000)
	r.Add(1000)
	r.Add(500)
	if p := r.Percent(); p != 1 {
		t.Errorf("expected 1 after all bytes, got %v", p)
	}
	r.End(nil)

	s := out.String()
	if !strings.Contains(s, "report.pdf") {
		t.Errorf("output does not name the file: %q", s)
	}
	if !strings.Contains(s, "2.44 KB / 2.44 KB") {
		t.Errorf("output does not show final byte count: %q", s)
	}
	if !strings.Contains(s, "done in") {
		t.Errorf("output does not report completion: %q", s)
	}
}

func TestReporterEmptyFileIsComplete(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(Options{Output: &out})
	r.Begin("empty.txt", 0)
	if p := r.Percent(); p != 1 {
		t.Errorf("expected empty file to be complete, got %v", p)
	}
}

func TestReporterFailure(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(Options{Output: &out})
	r.Begin("broken.bin", 100)
	r.Add(40)
	r.End(errors.New("decode failed"))
	if !strings.Contains(out.String(), "failed: decode failed") {
		t.Errorf("output does not report failure: %q", out.String())
	}
}
