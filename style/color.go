package style

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is a premultiplied RGBA color as consumed by the GPU feature-style
// buffer (spec.md §6: "vec4<f32>").
type Color [4]float32

// ParseColor parses a CSS color string: "#rgb", "#rgba", "#rrggbb",
// "#rrggbbaa", "rgb(r,g,b)", or "rgba(r,g,b,a)". r/g/b are 0-255 integers
// and a is a 0-1 float, matching ordinary CSS syntax.
//
// Adapted from gg's Hex() hex-color parser, extended with the functional
// rgb()/rgba() notation the style JSON schema also allows.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "#"):
		return parseHexColor(s)
	case strings.HasPrefix(s, "rgba("):
		return parseFuncColor(s, "rgba(", true)
	case strings.HasPrefix(s, "rgb("):
		return parseFuncColor(s, "rgb(", false)
	default:
		return Color{}, fmt.Errorf("style: unrecognized color %q", s)
	}
}

func parseHexColor(s string) (Color, error) {
	hex := strings.TrimPrefix(s, "#")

	var r, g, b, a uint32
	a = 255

	switch len(hex) {
	case 3: // RGB
		if err := parseHexDigits(hex[0:1], &r); err != nil {
			return Color{}, err
		}
		if err := parseHexDigits(hex[1:2], &g); err != nil {
			return Color{}, err
		}
		if err := parseHexDigits(hex[2:3], &b); err != nil {
			return Color{}, err
		}
		r, g, b = r*17, g*17, b*17
	case 4: // RGBA
		if err := parseHexDigits(hex[0:1], &r); err != nil {
			return Color{}, err
		}
		if err := parseHexDigits(hex[1:2], &g); err != nil {
			return Color{}, err
		}
		if err := parseHexDigits(hex[2:3], &b); err != nil {
			return Color{}, err
		}
		if err := parseHexDigits(hex[3:4], &a); err != nil {
			return Color{}, err
		}
		r, g, b, a = r*17, g*17, b*17, a*17
	case 6: // RRGGBB
		if err := parseHexDigits(hex[0:2], &r); err != nil {
			return Color{}, err
		}
		if err := parseHexDigits(hex[2:4], &g); err != nil {
			return Color{}, err
		}
		if err := parseHexDigits(hex[4:6], &b); err != nil {
			return Color{}, err
		}
	case 8: // RRGGBBAA
		if err := parseHexDigits(hex[0:2], &r); err != nil {
			return Color{}, err
		}
		if err := parseHexDigits(hex[2:4], &g); err != nil {
			return Color{}, err
		}
		if err := parseHexDigits(hex[4:6], &b); err != nil {
			return Color{}, err
		}
		if err := parseHexDigits(hex[6:8], &a); err != nil {
			return Color{}, err
		}
	default:
		return Color{}, fmt.Errorf("style: invalid hex color %q", s)
	}

	return premultiply(float32(r)/255, float32(g)/255, float32(b)/255, float32(a)/255), nil
}

func parseHexDigits(s string, out *uint32) error {
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fmt.Errorf("style: invalid hex digits %q: %w", s, err)
	}
	*out = uint32(v)
	return nil
}

func parseFuncColor(s, prefix string, hasAlpha bool) (Color, error) {
	if !strings.HasSuffix(s, ")") {
		return Color{}, fmt.Errorf("style: malformed color %q", s)
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(s, prefix), ")")
	parts := strings.Split(inner, ",")
	want := 3
	if hasAlpha {
		want = 4
	}
	if len(parts) != want {
		return Color{}, fmt.Errorf("style: expected %d components in %q, got %d", want, s, len(parts))
	}

	comp := func(i int) (float64, error) {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return 0, fmt.Errorf("style: invalid component %q in %q: %w", parts[i], s, err)
		}
		return v, nil
	}

	r, err := comp(0)
	if err != nil {
		return Color{}, err
	}
	g, err := comp(1)
	if err != nil {
		return Color{}, err
	}
	b, err := comp(2)
	if err != nil {
		return Color{}, err
	}
	a := 1.0
	if hasAlpha {
		a, err = comp(3)
		if err != nil {
			return Color{}, err
		}
	}

	return premultiply(float32(r)/255, float32(g)/255, float32(b)/255, float32(a)), nil
}

// premultiply returns the color with RGB channels pre-multiplied by
// alpha, the premultiplied-alpha convention Color documents.
func premultiply(r, g, b, a float32) Color {
	return Color{r * a, g * a, b * a, a}
}
