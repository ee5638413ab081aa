// Package report accumulates per-attempt outcomes and prints the final
// execution summary.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrorEntry records one failed attempt.
type ErrorEntry struct {
	Timestamp time.Time
	URL       string
	Message   string
}

// Stats holds all statistics collected during a run.
type Stats struct {
	StartTime   time.Time
	EndTime     time.Time
	Succeeded   int
	Skipped     int
	Failed      int
	TimedOut    int
	TotalSize   int64 // bytes in the download directory after the run
	DownloadDir string
	Errors      []ErrorEntry
}

// New creates a Stats instance with StartTime set to now.
func New(downloadDir string) *Stats {
	return &Stats{
		StartTime:   time.Now(),
		DownloadDir: downloadDir,
		Errors:      make([]ErrorEntry, 0),
	}
}

// AddError records an error that occurred while processing a target.
func (s *Stats) AddError(url, message string) {
	s.Errors = append(s.Errors, ErrorEntry{
		Timestamp: time.Now(),
		URL:       url,
		Message:   message,
	})
}

// Total returns the number of targets processed so far.
func (s *Stats) Total() int {
	return s.Succeeded + s.Skipped + s.Failed + s.TimedOut
}

// Finish marks the end time and computes the download directory size.
func (s *Stats) Finish() {
	s.EndTime = time.Now()
	if s.DownloadDir != "" {
		s.TotalSize = dirSize(s.DownloadDir)
	}
}

// Duration returns the total execution duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

func dirSize(dir string) int64 {
	var size int64
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}

func formatBytes(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.2f GB", float64(bytes)/gb)
	case bytes >= mb:
		return fmt.Sprintf("%.2f MB", float64(bytes)/mb)
	case bytes >= kb:
		return fmt.Sprintf("%.2f KB", float64(bytes)/kb)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, sec)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// Print outputs the final report to the console with colors.
func (s *Stats) Print() {
	s.Finish()

	const width = 52
	line := func() {
		fmt.Printf("%s%s%s\n", colorCyan, strings.Repeat("=", width), colorReset)
	}
	sep := func() {
		fmt.Printf("%s%s%s\n", colorCyan, strings.Repeat("-", width), colorReset)
	}
	row := func(label, value, color string) {
		if color == "" {
			fmt.Printf("  %-22s %s\n", label, value)
			return
		}
		fmt.Printf("  %-22s %s%s%s\n", label, color, value, colorReset)
	}

	fmt.Println()
	line()
	fmt.Printf("%s%s%s\n", colorBold, centered("DOWNLOAD SUMMARY", width), colorReset)
	sep()

	row("Duration", formatDuration(s.Duration()), "")
	row("Targets", fmt.Sprintf("%d", s.Total()), "")
	row("Downloaded", fmt.Sprintf("%d", s.Succeeded), colorGreen)
	row("Skipped (exist)", fmt.Sprintf("%d", s.Skipped), colorYellow)
	row("Timed out", fmt.Sprintf("%d", s.TimedOut), colorRed)
	row("Failed", fmt.Sprintf("%d", s.Failed), colorRed)
	if s.TotalSize > 0 {
		row("On disk", formatBytes(s.TotalSize), "")
	}

	sep()
	if len(s.Errors) > 0 {
		row("Errors", fmt.Sprintf("%d", len(s.Errors)), colorRed)
		const maxShown = 5
		for i, e := range s.Errors {
			if i >= maxShown {
				fmt.Printf("    ... and %d more\n", len(s.Errors)-maxShown)
				break
			}
			fmt.Printf("    - %s (%s)\n", e.Message, e.URL)
		}
	} else {
		row("No errors occurred", "", colorGreen)
	}
	line()
	fmt.Printf("  Download location: %s\n\n", s.DownloadDir)
}

func centered(s string, width int) string {
	pad := (width - len(s)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + s
}
