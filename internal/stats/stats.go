// Package stats renders the stored result log.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/verte-zerg/reflex/internal/model"
)

const sparkChars = " .:-=+*#%@"

const (
	shortIDLen   = 8
	sparkLabel   = "Totals "
	recordLayout = "2006-01-02 15:04:05"
)

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderHistory prints stored results as a table followed by a sparkline
// of totals fitted to width. A width of zero disables fitting.
func RenderHistory(w io.Writer, results []model.ResultRecord, width int) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No results found.")
		return err
	}
	headers := []string{"Session", "Round", "Diff", "Wait", "Visual", "Tactile", "Total", "Best", "Recorded"}
	rows := make([][]string, 0, len(results))
	totals := make([]float64, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			shortID(r.SessionID),
			fmt.Sprintf("%d", r.RoundIndex),
			fmt.Sprintf("%d", r.Difficulty),
			fmt.Sprintf("%d", r.WaitMs),
			fmt.Sprintf("%d", r.VisualMs),
			fmt.Sprintf("%d", r.TactileMs),
			fmt.Sprintf("%d", r.TotalMs),
			fmt.Sprintf("%d", r.BestMs),
			r.RecordedAt.Local().Format(recordLayout),
		})
		totals = append(totals, float64(r.TotalMs))
	}
	rightAlign := map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true, 6: true, 7: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if width > 0 {
		if room := width - displayWidth(sparkLabel); room > 0 && len(totals) > room {
			totals = totals[len(totals)-room:]
		}
	}
	if _, err := fmt.Fprintf(w, "\n%s%s\n", sparkLabel, Sparkline(totals)); err != nil {
		return err
	}
	return nil
}

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}
