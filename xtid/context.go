// Package xtid reconstructs the x-client-transaction-id header X expects on
// its internal API endpoints. The algorithm is reverse-engineered from the
// web bundle; it mixes the site verification key, a value derived from the
// home page loading animation, and a SHA-256 over method/path/time.
package xtid

import (
	"encoding/base64"
	"fmt"
	"math"
)

const totalAnimationTime = 4096.0

// Context holds the signing material derived from one snapshot of the home
// page and the ondemand script. It is immutable once built; the protocol
// client replaces it wholesale on a forced rebuild.
type Context struct {
	keyBytes       []byte
	animationKey   string
	rowIndex       int
	keyByteIndices []int
	randomKeyword  string
	randomNumber   byte
}

// NewContext derives a Context from the raw home page HTML and the ondemand
// script body. Any missing artifact is an unrecoverable build failure.
func NewContext(homePageHTML, ondemandJS string) (*Context, error) {
	rowIndex, keyIndices, err := extractKeyIndices(ondemandJS)
	if err != nil {
		return nil, err
	}

	key := extractVerificationKey(homePageHTML)
	if key == "" {
		return nil, fmt.Errorf("twitter-site-verification meta tag not found")
	}
	keyBytes, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("decode verification key: %w", err)
	}

	ctx := &Context{
		keyBytes:       keyBytes,
		rowIndex:       rowIndex,
		keyByteIndices: keyIndices,
		randomKeyword:  defaultKeyword,
		randomNumber:   additionalRandomNumber,
	}
	animKey, err := ctx.buildAnimationKey(homePageHTML)
	if err != nil {
		return nil, fmt.Errorf("build animation key: %w", err)
	}
	ctx.animationKey = animKey
	return ctx, nil
}

// AnimationKey returns the derived animation key.
func (c *Context) AnimationKey() string { return c.animationKey }

func (c *Context) buildAnimationKey(homePageHTML string) (string, error) {
	if c.rowIndex >= len(c.keyBytes) {
		return "", fmt.Errorf("row index %d out of key range %d", c.rowIndex, len(c.keyBytes))
	}
	rowIndex := int(c.keyBytes[c.rowIndex]) % 16

	seed := 1
	for _, idx := range c.keyByteIndices {
		if idx >= len(c.keyBytes) {
			return "", fmt.Errorf("key byte index %d out of key range %d", idx, len(c.keyBytes))
		}
		seed *= int(c.keyBytes[idx]) % 16
	}
	frameTime := jsRound(float64(seed)/10) * 10

	frames, err := extractFrames(homePageHTML)
	if err != nil {
		return "", err
	}
	if len(c.keyBytes) < 6 {
		return "", fmt.Errorf("verification key too short: %d bytes", len(c.keyBytes))
	}
	frameIndex := int(c.keyBytes[5]) % 4
	if frameIndex >= len(frames) {
		return "", fmt.Errorf("frame index %d out of range (%d frames)", frameIndex, len(frames))
	}
	rows, err := extractFrameRows(frames[frameIndex])
	if err != nil {
		return "", err
	}
	if rowIndex >= len(rows) {
		return "", fmt.Errorf("animation row index %d out of range (%d rows)", rowIndex, len(rows))
	}
	row := rows[rowIndex]
	if len(row) < 11 {
		return "", fmt.Errorf("animation row has %d values, need 11", len(row))
	}

	targetTime := frameTime / totalAnimationTime
	return animate(row, targetTime)
}

// jsRound mirrors JavaScript Math.round: half-up, sign preserved.
func jsRound(num float64) float64 {
	x := math.Floor(num)
	if num-x >= 0.5 {
		x = math.Ceil(num)
	}
	return math.Copysign(x, num)
}
