package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"photosync/pkg/syncer"
)

// ProgressDisplay prints a single self-overwriting progress line driven by
// sync events. In verbose mode every item gets its own line instead.
type ProgressDisplay struct {
	mu         sync.Mutex
	out        io.Writer
	album      string
	total      int
	downloaded int
	skipped    int
	failed     int
	bytes      int64
	current    string
	startTime  time.Time
	verbose    bool
	lineWidth  int
}

// NewProgressDisplay creates a progress display. total is the expected item
// count, or 0 when the listing size is unknown.
func NewProgressDisplay(out io.Writer, album string, total int, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:       out,
		album:     album,
		total:     total,
		startTime: time.Now(),
		verbose:   verbose,
	}
}

// OnEvent records one sync event; it is meant for syncer.Options.OnEvent
func (p *ProgressDisplay) OnEvent(ev syncer.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	name := ev.Item.Filename()
	switch ev.Kind {
	case syncer.EventSkipped:
		p.skipped++
		if p.verbose {
			fmt.Fprintf(p.out, "%s %s\n", Dim("·"), Dim(name))
		}
	case syncer.EventDownloaded:
		p.downloaded++
		if ev.File != nil {
			p.bytes += ev.File.Size
			name = ev.File.Name
		}
		if p.verbose {
			fmt.Fprintf(p.out, "%s %s • %s\n", Green("✓"), name, FormatBytes(sizeOf(ev)))
		}
	case syncer.EventFailed:
		p.failed++
		if p.verbose {
			fmt.Fprintf(p.out, "%s %s • %v\n", Red("✗"), name, ev.Err)
		}
	}
	p.current = name

	if !p.verbose {
		p.printLine()
	}
}

func sizeOf(ev syncer.Event) int64 {
	if ev.File == nil {
		return 0
	}
	return ev.File.Size
}

func (p *ProgressDisplay) processed() int {
	return p.downloaded + p.skipped + p.failed
}

// Line renders the current progress line without printing it
func (p *ProgressDisplay) Line() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.line()
}

func (p *ProgressDisplay) line() string {
	elapsed := time.Since(p.startTime)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.downloaded) / elapsed.Minutes()
	}

	parts := []string{Cyan(p.album)}
	if p.total > 0 {
		parts = append(parts, fmt.Sprintf("[%s] %d/%d", Bar(p.processed(), p.total, 20), p.processed(), p.total))
	}
	parts = append(parts,
		fmt.Sprintf("%d new", p.downloaded),
		fmt.Sprintf("%d skipped", p.skipped),
		fmt.Sprintf("%.1f/min", rate),
		FormatBytes(p.bytes),
	)
	if p.failed > 0 {
		parts = append(parts, Red(fmt.Sprintf("%d failed", p.failed)))
	}
	if p.current != "" {
		parts = append(parts, Dim(p.current))
	}
	return strings.Join(parts, " • ")
}

func (p *ProgressDisplay) printLine() {
	line := p.line()
	pad := ""
	if w := len(line); w < p.lineWidth {
		pad = strings.Repeat(" ", p.lineWidth-w)
	}
	p.lineWidth = len(line)
	fmt.Fprintf(p.out, "\r%s%s", line, pad)
}

// Finish ends the progress line
func (p *ProgressDisplay) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.verbose && p.lineWidth > 0 {
		fmt.Fprintln(p.out)
	}
}
