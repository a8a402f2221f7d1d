package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/vk/buildgrid/internal/dag"
)

var (
	releaseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true)
	nameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	statusStyles = map[dag.Status]lipgloss.Style{
		dag.Done:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		dag.Failed:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		dag.Skipped: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	}
)

func releaseBanner() string {
	return releaseStyle.Render("--release=true: Building release version (minified, debugs stripped)...")
}

func printTasks(w io.Writer, tasks []*dag.Task) {
	fmt.Fprintln(w, headerStyle.Render("Tasks:"))
	width := 0
	for _, t := range tasks {
		width = max(width, len(t.Name))
	}
	for _, t := range tasks {
		line := "  " + nameStyle.Render(t.Name+strings.Repeat(" ", width-len(t.Name)))
		if t.Description != "" {
			line += "  " + t.Description
		}
		if len(t.Deps) > 0 {
			line += "  " + dimStyle.Render("["+strings.Join(t.Deps, ", ")+"]")
		}
		fmt.Fprintln(w, line)
	}
}

func printPlan(w io.Writer, plan *dag.Plan, graph *dag.Graph) {
	fmt.Fprintln(w, headerStyle.Render("Plan for "+strings.Join(plan.Requested, ", ")+":"))
	for i, name := range plan.Order {
		line := fmt.Sprintf("  %2d. %s", i+1, nameStyle.Render(name))
		if t, ok := graph.Lookup(name); ok && t.IsResource() {
			line += " " + dimStyle.Render("(resource)")
		}
		fmt.Fprintln(w, line)
	}
}

func printSummary(w io.Writer, result *dag.Result) {
	fmt.Fprintln(w, headerStyle.Render("Summary:"))
	for _, status := range []dag.Status{dag.Done, dag.Failed, dag.Skipped} {
		names := result.Tasks(status)
		if len(names) == 0 {
			continue
		}
		fmt.Fprintf(w, "  %s %s\n", statusStyles[status].Render(fmt.Sprintf("%-8s", status)), strings.Join(names, ", "))
	}
}
