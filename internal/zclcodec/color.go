package zclcodec

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatColor renders CIE-1931 chromaticity coordinates as the six-decimal
// "x,y" string form the resource schema requires (§3).
func FormatColor(x, y float64) string {
	return fmt.Sprintf("%.6f,%.6f", x, y)
}

// ParseColor is the inverse of FormatColor.
func ParseColor(s string) (x, y float64, err error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("zclcodec: invalid color %q", s)
	}
	x, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("zclcodec: invalid color x %q: %w", s, err)
	}
	y, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("zclcodec: invalid color y %q: %w", s, err)
	}
	return x, y, nil
}

// EncodeColorXY16 converts CIE x/y in [0,1) into the ZCL MoveToColor
// 16-bit fixed-point representation (value * 0x10000, rounded to nearest).
func EncodeColorXY16(v float64) uint16 {
	return uint16(v*65536.0 + 0.5)
}
