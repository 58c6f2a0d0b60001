package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bsinger98/MHBench/pkg/topology"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF"))

	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FF00"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF0000"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FFFF")).
			Padding(0, 2)
)

func printSuccess(format string, args ...any) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// renderSummary boxes the headline numbers of one topology.
func renderSummary(topo *topology.Topology) string {
	hosts := topo.AllHosts(false)
	users := 0
	vulns := 0
	for _, h := range hosts {
		users += len(h.Users)
		vulns += len(h.Vulnerabilities)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(topo.Name) + "\n")
	row := func(label string, value int) {
		b.WriteString(fmt.Sprintf("%s %d\n", labelStyle.Render(fmt.Sprintf("%-14s", label)), value))
	}
	row("subnets", len(topo.AllSubnets()))
	row("hosts", len(hosts))
	row("users", users)
	row("vulnerabilities", vulns)
	row("goals", len(topo.Goals))
	row("attack paths", len(topo.AttackPaths))
	if topo.AttackGraph != nil {
		row("graph nodes", len(topo.AttackGraph.Nodes))
		row("graph edges", len(topo.AttackGraph.Edges))
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}
