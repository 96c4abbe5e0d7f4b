package segments

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/template"

	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
)

// Tag bytes understood by the window manager's status click patch. Colors
// occupy 0x10..0x1f, segment markers 0x01..0x0e and 0x0f closes a segment.
const (
	colorBase   = 0x10
	markerBase  = 0x01
	terminator  = 0x0f
	MaxSegments = terminator - markerBase
)

// Tag wraps text as [bg][fg][index marker] text [terminator]. Background is
// emitted before foreground when both are set.
func Tag(index int, fg, bg *int, text string) string {
	var sb strings.Builder
	sb.Grow(len(text) + 4)
	if bg != nil {
		sb.WriteByte(byte(colorBase + *bg))
	}
	if fg != nil {
		sb.WriteByte(byte(colorBase + *fg))
	}
	sb.WriteByte(byte(markerBase + index))
	sb.WriteString(text)
	sb.WriteByte(terminator)
	return sb.String()
}

// StripTags removes every tag byte, leaving the plain status text.
func StripTags(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 {
			return -1
		}
		return r
	}, s)
}

// Sanitize removes ANSI escape sequences and control characters so the only
// tag bytes in a fragment are the ones Tag inserts.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, ansi.Strip(s))
}

func (b Base) execute(index int, v Values) (string, error) {
	data := make(map[string]any, len(v)+2)
	for k, val := range v {
		data[k] = val
	}
	data["index"] = index + 1
	data["icons"] = b.opts.Icons

	var sb strings.Builder
	if err := b.tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("%s: render: %w", b.name, err)
	}
	return Sanitize(sb.String()), nil
}

func templateFuncs(icons [][]string) template.FuncMap {
	return template.FuncMap{
		"icon": func(v any, group ...int) string {
			return pickIcon(icons, ToFloat(v), group...)
		},
		"pct": func(v any) string { return strconv.FormatFloat(ToFloat(v), 'f', 0, 64) },
		"f1":  func(v any) string { return strconv.FormatFloat(ToFloat(v), 'f', 1, 64) },
		"bytes": func(v any) string {
			f := ToFloat(v)
			if f < 0 {
				f = 0
			}
			return humanize.IBytes(uint64(f))
		},
		"dur": func(v any) string { return FormatHours(ToFloat(v)) },
	}
}

// pickIcon selects the glyph of an icon group proportional to perc (0-100).
func pickIcon(icons [][]string, perc float64, group ...int) string {
	g := 0
	if len(group) > 0 {
		g = group[0]
	}
	if g < 0 || g >= len(icons) || len(icons[g]) == 0 {
		return ""
	}
	set := icons[g]
	i := int(math.Floor(perc / 100 * float64(len(set))))
	if i < 0 {
		i = 0
	}
	if i >= len(set) {
		i = len(set) - 1
	}
	return set[i]
}

// FormatHours renders a fractional hour count as H:MM.
func FormatHours(h float64) string {
	if h <= 0 || math.IsNaN(h) || math.IsInf(h, 0) {
		return "0:00"
	}
	mins := int(math.Round(h * 60))
	return fmt.Sprintf("%d:%02d", mins/60, mins%60)
}

// ToFloat converts a poll value to float64. Unknown types yield 0.
func ToFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case uint:
		return float64(n)
	case uint64:
		return float64(n)
	case uint32:
		return float64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
