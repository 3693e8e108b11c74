package ui

import (
	"fmt"
	"strings"
)

const (
	reset      = "\033[0m"
	bold       = "\033[1m"
	dim        = "\033[2m"
	ember      = "\033[38;5;202m"
	flame      = "\033[38;5;208m"
	honey      = "\033[38;5;214m"
	straw      = "\033[38;5;220m"
	ash        = "\033[38;5;250m"
	slate      = "\033[38;5;244m"
	reaperGrey = "\033[38;5;240m"
)

var letters = map[rune][]string{
	'L': {"██╗     ", "██║     ", "██║     ", "██║     ", "███████╗", "╚══════╝"},
	'O': {" ██████╗ ", "██╔═══██╗", "██║   ██║", "██║   ██║", "╚██████╔╝", " ╚═════╝ "},
	'A': {" █████╗ ", "██╔══██╗", "███████║", "██╔══██║", "██║  ██║", "╚═╝  ╚═╝"},
	'D': {"██████╗ ", "██╔══██╗", "██║  ██║", "██║  ██║", "██████╔╝", "╚═════╝ "},
	'R': {"██████╗ ", "██╔══██╗", "██████╔╝", "██╔══██╗", "██║  ██║", "╚═╝  ╚═╝"},
	'E': {"███████╗", "██╔════╝", "█████╗  ", "██╔══╝  ", "███████╗", "╚══════╝"},
	'P': {"██████╗ ", "██╔══██╗", "██████╔╝", "██╔═══╝ ", "██║     ", "╚═╝     "},
}

// load is painted hot, reaper fades to grey.
var gradient = []string{ember, flame, honey, straw, ash, ash, slate, slate, reaperGrey, reaperGrey}

// Banner renders the colored loadreaper wordmark with the active settings
// underneath.
func Banner(threshold float64, window int, limit int) string {
	var b strings.Builder

	word := "LOADREAPER"
	rows := make([]string, len(letters['L']))
	for i, r := range word {
		glyph := letters[r]
		color := gradient[i%len(gradient)]
		for row := range glyph {
			rows[row] += color + glyph[row] + " "
		}
	}
	for _, line := range rows {
		b.WriteString(bold + line + reset + "\n")
	}

	b.WriteString("\n")
	b.WriteString(bold + flame + "loadreaper" + reset + "  •  load-reduce daemon\n")
	b.WriteString(dim + fmt.Sprintf("threshold %.2f on the %dm load average, up to %d terminations per cycle", threshold, window, limit) + reset + "\n\n")

	return b.String()
}
