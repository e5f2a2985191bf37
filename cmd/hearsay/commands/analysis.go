package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hearsaylabs/hearsay/pkg/analysis"
	"github.com/hearsaylabs/hearsay/pkg/cli"
	"github.com/hearsaylabs/hearsay/pkg/hearsay"
)

var analysisCmd = &cobra.Command{
	Use:   "analysis <session-id>",
	Short: "Show the analysis of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()
		return printAnalysis(cmd.Context(), app, args[0])
	},
}

func init() {
	rootCmd.AddCommand(analysisCmd)
}

// printAnalysis fetches and prints a session analysis in the selected
// output format.
func printAnalysis(ctx context.Context, app *app, sessionID string) error {
	result, err := app.core.GetAnalysis(ctx, sessionID)
	if err != nil {
		return err
	}
	if cli.OutputFormat(outputFormat) != cli.FormatReport {
		return output(result)
	}
	fmt.Println(renderAnalysis(result))
	return nil
}

// renderAnalysis builds the styled terminal report for a session.
func renderAnalysis(a *hearsay.Analysis) string {
	styles := cli.NewStyles(cli.DefaultTheme)
	report := cli.Report{
		Styles: styles,
		Title:  "Session " + a.SessionID,
	}
	if a.Summary == nil {
		report.Sections = []cli.Section{
			{Title: "Overview", Rows: []cli.Row{{Value: "no segments recorded"}}},
		}
		return report.Render()
	}

	s := a.Summary
	overview := cli.Section{Title: "Overview", Rows: []cli.Row{
		{Label: "Segments", Value: fmt.Sprintf("%d", s.TotalSegments)},
		{Label: "Confidence", Value: cli.Percent(s.AverageConfidence)},
	}}
	report.Sections = append(report.Sections, overview)

	if len(s.Sentiments) > 0 {
		var rows []cli.Row
		for _, label := range []string{"positive", "neutral", "negative"} {
			if n, ok := s.Sentiments[label]; ok {
				rows = append(rows, cli.Row{Label: label, Value: fmt.Sprintf("%d", n)})
			}
		}
		for label, n := range s.Sentiments {
			switch label {
			case "positive", "neutral", "negative":
			default:
				rows = append(rows, cli.Row{Label: label, Value: fmt.Sprintf("%d", n)})
			}
		}
		report.Sections = append(report.Sections, cli.Section{Title: "Sentiment", Rows: rows})
	}

	if len(s.Speakers) > 0 {
		var rows []cli.Row
		for _, sp := range s.Speakers {
			name := sp.Name
			if name == "" {
				name = sp.ID
			}
			rows = append(rows, cli.Row{
				Label: name,
				Value: fmt.Sprintf("%d segments (%s)", sp.Segments, cli.Percent(sp.Share)),
			})
		}
		report.Sections = append(report.Sections, cli.Section{Title: "Speakers", Rows: rows})
	}

	if len(s.TopTopics) > 0 {
		report.Sections = append(report.Sections, countSection("Topics", s.TopTopics))
	}
	if len(s.TopKeywords) > 0 {
		report.Sections = append(report.Sections, countSection("Keywords", s.TopKeywords))
	}
	return report.Render()
}

// countSection renders ranked label counts as one line per label.
func countSection(title string, counts []analysis.Count) cli.Section {
	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = fmt.Sprintf("%s (%d)", c.Label, c.Count)
	}
	return cli.Section{Title: title, Rows: []cli.Row{{Value: strings.Join(parts, ", ")}}}
}
