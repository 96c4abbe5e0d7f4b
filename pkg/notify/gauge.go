package notify

import (
	"fmt"
	"math"
	"strings"
)

// DefaultGaugeWidth is the number of cells in a notification gauge.
const DefaultGaugeWidth = 20

// Gauge renders value (0-100) as "[#####-----] 50%". Notification servers
// differ in which glyphs they can draw, so the bar is plain ASCII.
func Gauge(value float64, width int) string {
	if width <= 0 {
		width = DefaultGaugeWidth
	}

	// Clamp ratio to [0, 1].
	ratio := value / 100
	if math.IsNaN(ratio) || ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	filled := int(math.Round(ratio * float64(width)))

	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(strings.Repeat("#", filled))
	b.WriteString(strings.Repeat("-", width-filled))
	b.WriteByte(']')
	fmt.Fprintf(&b, " %d%%", int(math.Round(ratio*100)))
	return b.String()
}
