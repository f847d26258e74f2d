// Package tableprint renders query results the way the MariaDB client
// does: a bordered table for interactive use, alongside a plain JSON
// encoder for scripted/batch use.
package tableprint

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Table writes rows as a MariaDB-client-style bordered table to w. Column
// order is the sorted union of every row's keys, so heterogeneous result
// sets (e.g. an aggregate pipeline whose shape varies by branch) still
// render predictably.
func Table(w io.Writer, rows []map[string]any) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "Empty set")
		return
	}
	cols := columnsOf(rows)
	widths := make([]int, len(cols))
	cells := make([][]string, len(rows))
	for i, col := range cols {
		widths[i] = len(col)
	}
	for i, row := range rows {
		cells[i] = make([]string, len(cols))
		for j, col := range cols {
			s := cellString(row[col])
			cells[i][j] = s
			if len(s) > widths[j] {
				widths[j] = len(s)
			}
		}
	}

	border := borderLine(widths)
	fmt.Fprintln(w, border)
	fmt.Fprintln(w, rowLine(cols, widths))
	fmt.Fprintln(w, border)
	for _, row := range cells {
		fmt.Fprintln(w, rowLine(row, widths))
	}
	fmt.Fprintln(w, border)
	fmt.Fprintf(w, "%d row(s) in set\n", len(rows))
}

// JSON writes rows as a single JSON array, for --batch / scripted output.
func JSON(w io.Writer, rows []map[string]any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func columnsOf(rows []map[string]any) []string {
	seen := map[string]bool{}
	var cols []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func cellString(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func borderLine(widths []int) string {
	var b strings.Builder
	b.WriteByte('+')
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+2))
		b.WriteByte('+')
	}
	return b.String()
}

func rowLine(cells []string, widths []int) string {
	var b strings.Builder
	b.WriteByte('|')
	for i, c := range cells {
		fmt.Fprintf(&b, " %-*s |", widths[i], c)
	}
	return b.String()
}
