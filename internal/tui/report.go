// Package tui renders pipeline results for terminals.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xenking/invoicer/internal/domain/pipeline"
)

var (
	accent  = lipgloss.Color("#2563EB")
	dim     = lipgloss.Color("#6B7280")
	success = lipgloss.Color("#22C55E")
	danger  = lipgloss.Color("#EF4444")
	warning = lipgloss.Color("#F59E0B")
)

var (
	titleStyle         = lipgloss.NewStyle().Bold(true).Foreground(accent)
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true)
	dimStyle           = lipgloss.NewStyle().Foreground(dim)
	passStyle          = lipgloss.NewStyle().Foreground(success)
	failStyle          = lipgloss.NewStyle().Foreground(danger)
	warnStyle          = lipgloss.NewStyle().Foreground(warning)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 2)
)

// RenderReport renders a batch report as a styled summary followed by one
// section per outcome.
func RenderReport(r *pipeline.Report) string {
	var b strings.Builder

	summary := titleStyle.Render("Invoice batch") + "\n" + fmt.Sprintf("%s  %s  %s  %s",
		dimStyle.Render(fmt.Sprintf("%d orders", r.TotalOrders)),
		passStyle.Render(fmt.Sprintf("%d confirmed", r.ConfirmedOrders)),
		passStyle.Render(fmt.Sprintf("%d invoiced", len(r.Invoices))),
		failStyle.Render(fmt.Sprintf("%d failed", len(r.FailedOrders))),
	)
	b.WriteString(boxStyle.Render(summary))
	b.WriteString("\n")

	if len(r.Invoices) > 0 {
		writeHeader(&b, "Invoices", len(r.Invoices))
		for _, inv := range r.Invoices {
			line := passStyle.Render("✓") + " " + inv.OrderID
			if inv.InvoiceURL != "" {
				line += "  " + dimStyle.Render(inv.InvoiceURL)
			}
			b.WriteString("    " + line + "\n")
		}
	}

	writeIssues(&b, "Skipped", r.SkippedOrders, dimStyle.Render("-"))
	writeIssues(&b, "Failed", r.FailedOrders, failStyle.Render("✗"))
	writeIssues(&b, "Warnings", r.Warnings, warnStyle.Render("!"))

	if r.TotalOrders == 0 {
		b.WriteString("\n  " + dimStyle.Render("No orders waiting for an invoice.") + "\n")
	}
	return b.String()
}

func writeHeader(b *strings.Builder, title string, n int) {
	fmt.Fprintf(b, "\n  %s %s\n",
		sectionHeaderStyle.Render(title),
		dimStyle.Render(fmt.Sprintf("(%d)", n)),
	)
}

func writeIssues(b *strings.Builder, title string, issues []pipeline.OrderIssue, mark string) {
	if len(issues) == 0 {
		return
	}
	writeHeader(b, title, len(issues))
	for _, is := range issues {
		fmt.Fprintf(b, "    %s %s  %s\n", mark, is.OrderID, dimStyle.Render(is.Reason))
	}
}
