package main

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/aluiziolira/extract-books/models"
)

func printSummary(w io.Writer, result *models.ScraperResult) {
	output := result.OutputFile
	if output == "" {
		output = "(nothing written)"
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Scrape complete")
	t.AppendRows([]table.Row{
		{"Run ID", result.RunID},
		{"Books", result.TotalCount},
		{"Pages", result.PageCount},
		{"Requests", result.RequestCount},
		{"Stop reason", string(result.StopReason)},
		{"Duration", result.EndTime.Sub(result.StartTime).Round(time.Millisecond).String()},
		{"Output file", output},
	})
	if result.FailedURL != "" {
		t.AppendRow(table.Row{"Failed URL", result.FailedURL})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}
