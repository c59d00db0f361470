package canvas

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidColor = errors.New("invalid color")

// Color is one RGBA pixel as stored in the raster.
type Color struct {
	R, G, B, A uint8
}

// ParseColor accepts "rrggbb" or "rrggbbaa", optionally prefixed with '#'.
// A missing alpha channel means fully opaque.
func ParseColor(s string) (Color, error) {
	digits := strings.TrimPrefix(s, "#")
	if len(digits) != 6 && len(digits) != 8 {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}

	raw, err := hex.DecodeString(digits)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}

	c := Color{R: raw[0], G: raw[1], B: raw[2], A: 0xff}
	if len(raw) == 4 {
		c.A = raw[3]
	}
	return c, nil
}

// Hex formats the color as "#rrggbbaa".
func (c Color) Hex() string {
	return "#" + hex.EncodeToString([]byte{c.R, c.G, c.B, c.A})
}
