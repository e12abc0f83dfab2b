package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stuartleeks/nyc-co2-sim/sim-api/sim"
)

var (
	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Width(22)
	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE"))
	goodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4CAF50"))
	badStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

func runSimulate(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	svc, _, err := newService(ctx, logger)
	if err != nil {
		return err
	}

	prompt := strings.Join(args, " ")
	result, err := svc.Simulate(ctx, prompt)
	if err != nil {
		return err
	}

	if pngPath, _ := cmd.Flags().GetString("png"); pngPath != "" {
		dc, err := drawHeatmap(result.Field, svc.ScaleMax(), heatmapTitle, result.Intervention.Description)
		if err != nil {
			return err
		}
		if err := dc.SavePNG(pngPath); err != nil {
			return fmt.Errorf("failed to write %s: %w", pngPath, err)
		}
		logger.Info("wrote heatmap", zap.String("path", pngPath))
	}

	return renderResult(cmd.OutOrStdout(), prompt, result)
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}

func renderResult(w io.Writer, prompt string, result sim.Result) error {
	iv := result.Intervention
	st := result.Statistics
	imp := result.Impact

	change := "n/a"
	if c := st.Comparison; c != nil {
		if c.PercentReduction >= 0 {
			change = goodStyle.Render(fmt.Sprintf("-%.1f%%", c.PercentReduction))
		} else {
			change = badStyle.Render(fmt.Sprintf("+%.1f%%", -c.PercentReduction))
		}
	}

	lines := []string{
		headingStyle.Render(prompt),
		"",
		row("Simulation", result.ID),
		row("Parsed by", iv.Source),
		row("Sector", iv.Sector),
		row("Borough", iv.Borough),
		row("Reduction", fmt.Sprintf("%.1f%% (%s)", iv.ReductionPercent, iv.Direction)),
		row("Description", iv.Description),
		"",
		row("Grid total", result.Formatted["total_emissions"]),
		row("Change vs baseline", change),
		row("Carbon grade", st.CarbonFootprintScore),
		row("Air quality", st.AirQualityIndex),
		"",
		row("Annual baseline", humanize.FormatFloat("#,###.", imp.BaselineTons)+" t CO₂"),
		row("Annual savings", humanize.FormatFloat("#,###.", imp.AnnualSavingsTons)+" t CO₂"),
	}
	if summary := iv.Analysis["summary"]; summary != "" {
		lines = append(lines, "", row("Analysis", summary))
	}

	_, err := fmt.Fprintln(w, boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
	return err
}
