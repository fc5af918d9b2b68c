package format

import (
	"fmt"
	"time"

	"regent/internal/detrand"
)

// PPM renders a parts-per-million value as a percentage with two decimals,
// using integer arithmetic only: 665702 -> "66.57%".
func PPM(v uint32) string {
	hundredths := uint64(v) * 10000 / detrand.PPMScale
	return fmt.Sprintf("%d.%02d%%", hundredths/100, hundredths%100)
}

// Duration formats a duration as "Xm Ys", "Ys" or "Nms".
func Duration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	s := int(d.Seconds())
	if s >= 60 {
		return fmt.Sprintf("%dm %ds", s/60, s%60)
	}
	return fmt.Sprintf("%ds", s)
}

// Truncate shortens s to maxLen bytes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
