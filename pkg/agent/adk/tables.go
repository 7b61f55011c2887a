package adk

import (
	"regexp"
	"strings"
)

var tableBorderRe = regexp.MustCompile(`^\s*\+(?:-+\+)+\s*$`)

// ReflowTables rewrites a fixed-width bordered ASCII table such as
//
//	+------+-------+
//	| Name | State |
//	+------+-------+
//	| i-1  | runni |
//	+------+-------+
//
// into a markdown pipe table, preserving the text around it. The
// transform is cosmetic and best-effort: anything that does not parse
// cleanly comes back unchanged.
func ReflowTables(text string) string {
	lines := strings.Split(text, "\n")

	first, last := -1, -1
	for i, line := range lines {
		if tableBorderRe.MatchString(line) {
			if first == -1 {
				first = i
			}
			last = i
		}
	}
	if first == -1 || last <= first+1 {
		return text
	}

	var header []string
	var rows [][]string
	for _, line := range lines[first+1 : last] {
		if tableBorderRe.MatchString(line) {
			continue
		}
		cells := splitTableRow(line)
		if cells == nil {
			return text
		}
		if header == nil {
			header = cells
		} else {
			rows = append(rows, cells)
		}
	}
	if header == nil {
		return text
	}

	var out []string
	out = append(out, lines[:first]...)
	out = append(out, pipeRow(header))
	separator := make([]string, len(header))
	for i := range separator {
		separator[i] = "---"
	}
	out = append(out, pipeRow(separator))
	for _, row := range rows {
		out = append(out, pipeRow(row))
	}
	out = append(out, lines[last+1:]...)
	return strings.Join(out, "\n")
}

// splitTableRow parses "| a | b |" into cells, or nil when the line is
// not a table row.
func splitTableRow(line string) []string {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < 2 || !strings.HasPrefix(trimmed, "|") || !strings.HasSuffix(trimmed, "|") {
		return nil
	}
	parts := strings.Split(trimmed[1:len(trimmed)-1], "|")
	cells := make([]string, len(parts))
	for i, part := range parts {
		cells[i] = strings.TrimSpace(part)
	}
	return cells
}

func pipeRow(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |"
}
