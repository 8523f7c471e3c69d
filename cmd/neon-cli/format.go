package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/neonviz/neon/client"
)

var stdout io.Writer = os.Stdout

func formatJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func formatTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	printRow(headers)
	seps := make([]string, len(headers))
	for i, width := range widths {
		seps[i] = strings.Repeat("-", width)
	}
	printRow(seps)
	for _, row := range rows {
		printRow(row)
	}
}

// output writes v as JSON, or quietVal alone in quiet mode. Table output is
// rendered by the caller.
func output(v any, quietVal string) error {
	if flagFmt == "quiet" {
		fmt.Fprintln(stdout, quietVal)
		return nil
	}
	return formatJSON(stdout, v)
}

func checkbox(n client.TaxonomyNode) string {
	switch {
	case n.Indeterminate:
		return "[-]"
	case n.Checked:
		return "[x]"
	default:
		return "[ ]"
	}
}

// formatTree prints one line per node, indented by depth.
func formatTree(w io.Writer, nodes []client.TaxonomyNode) {
	var walk func(nodes []client.TaxonomyNode, depth int)
	walk = func(nodes []client.TaxonomyNode, depth int) {
		for _, n := range nodes {
			label := n.Name
			if n.DuplicateLabel && n.ExternalID != "" {
				label += " <" + n.ExternalID + ">"
			}
			fmt.Fprintf(w, "%s%s %s (%d)\n", strings.Repeat("  ", depth), checkbox(n), label, n.NodeCount)
			walk(n.Children, depth+1)
		}
	}
	walk(nodes, 0)
}

func designRows(designs []client.FilterDesign, action string) [][]string {
	rows := make([][]string, 0, len(designs))
	for _, d := range designs {
		vals := make([]string, len(d.Values))
		for i, v := range d.Values {
			if v == nil {
				vals[i] = "*"
				continue
			}
			vals[i] = *v
		}
		rows = append(rows, []string{action, d.Field.Table + "." + d.Field.Column, d.Operator, strings.Join(vals, ", ")})
	}
	return rows
}

func formatDesigns(w io.Writer, set, del []client.FilterDesign) {
	rows := append(designRows(set, "set"), designRows(del, "delete")...)
	formatTable(w, []string{"ACTION", "FIELD", "OP", "VALUES"}, rows)
}
