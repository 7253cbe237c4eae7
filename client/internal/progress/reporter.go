// Package progress draws a per-file progress line for the downloader.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

var (
	nameStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type Options struct {
	// Output defaults to os.Stdout.
	Output io.Writer
	Width  int
}

// Reporter redraws one line per file as chunks arrive.
type Reporter struct {
	out io.Writer
	bar progress.Model

	mu      sync.Mutex
	name    string
	total   int64
	done    int64
	started time.Time
}

func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Width <= 0 {
		opts.Width = 40
	}
	return &Reporter{
		out: opts.Output,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(opts.Width)),
	}
}

func (r *Reporter) Begin(name string, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.name, r.total, r.done = name, total, 0
	r.started = time.Now()
	r.render()
}

func (r *Reporter) Add(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done += n
	r.render()
}

func (r *Reporter) End(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.render()
	took := time.Since(r.started)
	if err != nil {
		fmt.Fprintf(r.out, "  %s\n", errorStyle.Render("failed: "+err.Error()))
		return
	}
	fmt.Fprintf(r.out, "  %s\n", doneStyle.Render("done in "+formatDuration(took)))
}

// Percent is the completed fraction in [0, 1]. An empty file is complete.
func (r *Reporter) Percent() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.percent()
}

func (r *Reporter) percent() float64 {
	if r.total <= 0 {
		return 1
	}
	p := float64(r.done) / float64(r.total)
	return min(max(p, 0), 1)
}

func (r *Reporter) render() {
	fmt.Fprintf(r.out, "\r%s %s %s",
		nameStyle.Render(r.name),
		r.bar.ViewAs(r.percent()),
		dimStyle.Render(FormatBytes(r.done)+" / "+FormatBytes(r.total)),
	)
}

// FormatBytes formats b with binary units.
func FormatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}
