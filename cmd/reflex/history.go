package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/reflex/internal/config"
	"github.com/verte-zerg/reflex/internal/model"
	"github.com/verte-zerg/reflex/internal/stats"
	"github.com/verte-zerg/reflex/internal/statsui"
	"github.com/verte-zerg/reflex/internal/store"
)

const (
	terminalWidthBackup = 80
	historyPlotHeight   = 10
)

var (
	historySession string
	historySince   string
	historyLast    int
	historyDB      string
	historyPlot    bool
	historyTUI     bool
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show stored results",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historySession, "session", "", "session id filter")
	cmd.Flags().StringVar(&historySince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to last N results")
	cmd.Flags().StringVar(&historyDB, "db", "", "result log path (default: XDG data dir)")
	cmd.Flags().BoolVar(&historyPlot, "plot", false, "plot visual, tactile and total latencies")
	cmd.Flags().BoolVar(&historyTUI, "tui", false, "browse results interactively")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	var sinceTime *time.Time
	if historySince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", historySince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if historyLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}

	dbPath := historyDB
	if dbPath == "" {
		dbPath = config.DefaultDBPath()
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	cfg := model.HistoryConfig{
		SessionID: historySession,
		Since:     sinceTime,
		Last:      historyLast,
	}
	if historyTUI {
		program := tea.NewProgram(statsui.NewModel(st, cfg), tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run history TUI: %w", err)
		}
		return nil
	}

	results, err := st.ListResults(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to list results: %w", err)
	}

	width := terminalWidth()
	out := cmd.OutOrStdout()
	if err := stats.RenderHistory(out, results, width); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if historyPlot && len(results) > 0 {
		curves := stats.HistoryCurves(results)
		if _, err := fmt.Fprintln(out); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		if err := stats.PlotCurves(out, curves, stats.PlotWidthFor(width, curves), historyPlotHeight, useColor()); err != nil {
			return fmt.Errorf("failed to write plot: %w", err)
		}
	}
	return nil
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func useColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}
