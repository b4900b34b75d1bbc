// Package ui holds the non-interactive CLI rendering helpers (markdown
// patch rendering for `patch --html`) and, in program.go, the Bubble Tea
// model that drives the `tui` command.
package ui

import (
	"os"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
	"golang.org/x/text/width"
)

// Renderer turns a raw mbox patch body into the text shown for `patch
// --html`: glamour markdown styling over the whole body, diff included,
// word-wrapped to the terminal width. The commit message and the diff are
// not rendered separately. App applies it to `patch` output only when
// --html is requested, and the TUI's patch screen uses it while its render
// toggle is on.
type Renderer interface {
	Render(body []byte) string
}

type glamourRenderer struct{}

// NewRenderer returns the default Renderer, backed by glamour.
func NewRenderer() Renderer {
	return glamourRenderer{}
}

func (glamourRenderer) Render(body []byte) string {
	text := string(body)
	wrapWidth := getTerminalWidth()

	if !shouldUseColor() {
		return WrapText(text, wrapWidth)
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrapWidth),
	)
	if err != nil {
		return text
	}

	rendered, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return rendered
}

// WrapText wraps text at word boundaries to fit within maxWidth,
// preserving existing line breaks.
func WrapText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		maxWidth = 80
	}

	var result strings.Builder
	lines := strings.Split(text, "\n")

	for i, line := range lines {
		if i > 0 {
			result.WriteString("\n")
		}
		result.WriteString(wrapLine(line, maxWidth))
	}

	return result.String()
}

func wrapLine(line string, maxWidth int) string {
	if utf8.RuneCountInString(line) <= maxWidth {
		return line
	}

	var result strings.Builder
	words := strings.Fields(line)
	currentLen := 0

	for _, word := range words {
		wordLen := utf8.RuneCountInString(word)

		if currentLen == 0 {
			result.WriteString(word)
			currentLen = wordLen
			continue
		}

		if currentLen+1+wordLen <= maxWidth {
			result.WriteString(" ")
			result.WriteString(word)
			currentLen += 1 + wordLen
		} else {
			result.WriteString("\n")
			result.WriteString(word)
			currentLen = wordLen
		}
	}

	return result.String()
}

// runeWidth returns the terminal column width of r: 2 for characters x/text
// classifies as East Asian wide/fullwidth, 1 otherwise.
func runeWidth(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	default:
		return 1
	}
}

// TruncateColumn truncates s to at most maxCols display columns, honouring
// double-width East Asian characters so mailing-list/patch titles don't blow
// out the TUI's list and feed rows. A truncated
// string ends in "…" (counted against maxCols).
func TruncateColumn(s string, maxCols int) string {
	if maxCols <= 0 {
		return ""
	}

	total := 0
	for _, r := range s {
		total += runeWidth(r)
	}
	if total <= maxCols {
		return s
	}

	const ellipsis = "…"
	budget := maxCols - runeWidth([]rune(ellipsis)[0])
	if budget <= 0 {
		return ellipsis
	}

	var b strings.Builder
	col := 0
	for _, r := range s {
		w := runeWidth(r)
		if col+w > budget {
			break
		}
		b.WriteRune(r)
		col += w
	}
	b.WriteString(ellipsis)
	return b.String()
}

func shouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return termenv.NewOutput(os.Stdout).Profile != termenv.Ascii
}

func getTerminalWidth() int {
	const (
		defaultWidth = 80
		maxWidth     = 100
	)

	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}

	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return defaultWidth
	}
	if width > maxWidth {
		return maxWidth
	}
	return width
}
