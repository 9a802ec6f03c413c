package uihelpers

import (
	"unicode/utf8"
)

// ComputeChartDimensions applies width/height clamp rules used for charts.
// Input: desired raw width (e.g., canvas width). Returns clamped width & height.
func ComputeChartDimensions(rawW int) (int, int) {
	w := rawW
	if w < 640 {
		w = 640
	}
	h := int(float32(w) * 0.45)
	if h < 300 {
		h = 300
	}
	if h > 560 {
		h = 560
	}
	return w, h
}

// ComputeTableColumnWidths spreads the window width over n dataset columns.
// Narrow windows get a fixed compact width per column and rely on horizontal scroll.
func ComputeTableColumnWidths(winW float32, n int) []int {
	if n <= 0 {
		return nil
	}
	const (
		compactBreakpoint = 700
		minCol            = 90
		maxCol            = 260
	)
	out := make([]int, n)
	per := minCol
	if winW >= compactBreakpoint {
		per = int(winW*0.9) / n
		if per < minCol {
			per = minCol
		}
		if per > maxCol {
			per = maxCol
		}
	}
	for i := range out {
		out[i] = per
	}
	return out
}

// ComputeCardColumns returns how many metric cards fit on one row, at least 1 and at
// most the number of cards.
func ComputeCardColumns(winW float32, cards int) int {
	const cardW = 180
	if cards <= 0 {
		return 1
	}
	n := int(winW) / cardW
	if n < 1 {
		n = 1
	}
	if n > cards {
		n = cards
	}
	return n
}

// TruncateMiddle shortens s to at most n runes by replacing its middle with "…",
// keeping the scheme/host and the tail of a URL visible.
func TruncateMiddle(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n == 1 {
		return "…"
	}
	left := (n - 1) / 2
	right := n - 1 - left
	return string(r[:left]) + "…" + string(r[len(r)-right:])
}
