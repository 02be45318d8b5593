package xtid

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

var stripDotDash = regexp.MustCompile(`[.-]`)

// animate derives the animation key from one row of frame integers: an RGB
// interpolation, a rotation matrix, and a custom hex serialization of both.
func animate(frames []int, targetTime float64) (string, error) {
	fromColor := []float64{float64(frames[0]), float64(frames[1]), float64(frames[2]), 1}
	toColor := []float64{float64(frames[3]), float64(frames[4]), float64(frames[5]), 1}
	fromRotation := []float64{0.0}
	toRotation := []float64{solve(float64(frames[6]), 60.0, 360.0, true)}

	easing := make([]float64, 0, len(frames)-7)
	for i, v := range frames[7:] {
		easing = append(easing, solve(float64(v), oddFloor(i), 1.0, false))
	}
	if len(easing) < 4 {
		return "", fmt.Errorf("animation easing values are incomplete: %d", len(easing))
	}

	progress := cubic{curves: easing[:4]}.value(targetTime)

	color := interpolate(fromColor, toColor, progress)
	for i := range color {
		color[i] = math.Max(0, math.Min(255, color[i]))
	}
	rotation := interpolate(fromRotation, toRotation, progress)
	matrix := rotationToMatrix(rotation[0])

	parts := make([]string, 0, 9)
	for i := 0; i < 3; i++ {
		parts = append(parts, fmt.Sprintf("%x", int(math.Round(color[i]))))
	}
	for _, v := range matrix {
		rounded := math.Abs(math.Round(v*100) / 100)
		hexValue := strings.ToLower(floatToHex(rounded))
		switch {
		case strings.HasPrefix(hexValue, "."):
			parts = append(parts, "0"+hexValue)
		case hexValue == "":
			parts = append(parts, "0")
		default:
			parts = append(parts, hexValue)
		}
	}
	parts = append(parts, "0", "0")

	return stripDotDash.ReplaceAllString(strings.Join(parts, ""), ""), nil
}

// solve maps a byte-range value into [min, max]; rounding selects floor
// (rotation seed) versus 2-decimal rounding (easing values).
func solve(value, minVal, maxVal float64, rounding bool) float64 {
	scaled := value*(maxVal-minVal)/255 + minVal
	if rounding {
		return math.Floor(scaled)
	}
	return math.Round(scaled*100) / 100
}

func oddFloor(index int) float64 {
	if index%2 != 0 {
		return -1.0
	}
	return 0.0
}

func interpolate(from, to []float64, ratio float64) []float64 {
	out := make([]float64, len(from))
	for i := range from {
		out[i] = from[i]*(1-ratio) + to[i]*ratio
	}
	return out
}

func rotationToMatrix(degrees float64) []float64 {
	rad := degrees * math.Pi / 180
	return []float64{math.Cos(rad), -math.Sin(rad), math.Sin(rad), math.Cos(rad)}
}

// floatToHex renders a non-negative float as base-16 with a fractional part
// produced by repeated multiply-by-16, capped at 24 digits. Returns "" for 0.
func floatToHex(x float64) string {
	var result []string
	quotient := int(x)
	fraction := x - float64(quotient)

	for quotient > 0 {
		quotient = int(x / 16)
		remainder := int(x - float64(quotient)*16)
		if remainder > 9 {
			result = append([]string{string(rune(remainder + 55))}, result...)
		} else {
			result = append([]string{fmt.Sprintf("%d", remainder)}, result...)
		}
		x = float64(quotient)
	}

	if fraction == 0 {
		return strings.Join(result, "")
	}

	result = append(result, ".")
	for digits := 0; fraction > 0 && digits < 24; digits++ {
		fraction *= 16
		integer := int(fraction)
		fraction -= float64(integer)
		if integer > 9 {
			result = append(result, string(rune(integer+55)))
		} else {
			result = append(result, fmt.Sprintf("%d", integer))
		}
	}
	return strings.Join(result, "")
}
