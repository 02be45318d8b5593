package xtid

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

const (
	// Both constants are lifted from X's own bundle; treat as opaque.
	defaultKeyword         = "obfiowerehiring"
	additionalRandomNumber = 3

	// epochOffsetMillis is the platform epoch the per-request timestamp
	// counts from (seconds since 2023-05-01T07:00:00Z, roughly).
	epochOffsetMillis = 1682924400000
)

// Generate returns a fresh x-client-transaction-id for method+path using the
// current time and a random obfuscation byte.
func (c *Context) Generate(method, path string) string {
	timeNow := (time.Now().UnixMilli() - epochOffsetMillis) / 1000
	return c.GenerateAt(method, path, timeNow, byte(rand.Intn(256)))
}

// GenerateAt is the deterministic core of Generate: with a fixed timestamp
// and obfuscation byte it is a pure function of (method, path).
func (c *Context) GenerateAt(method, path string, timeNow int64, randomByte byte) string {
	// Only the path participates in the digest.
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}

	timeBytes := make([]byte, 4)
	for i := 0; i < 4; i++ {
		timeBytes[i] = byte((timeNow >> (i * 8)) & 0xFF)
	}

	digest := sha256.Sum256([]byte(fmt.Sprintf("%s!%s!%d%s%s", method, path, timeNow, c.randomKeyword, c.animationKey)))

	payload := make([]byte, 0, len(c.keyBytes)+4+16+1)
	payload = append(payload, c.keyBytes...)
	payload = append(payload, timeBytes...)
	payload = append(payload, digest[:16]...)
	payload = append(payload, c.randomNumber)

	out := make([]byte, len(payload)+1)
	out[0] = randomByte
	for i, b := range payload {
		out[i+1] = b ^ randomByte
	}
	return strings.TrimRight(base64.StdEncoding.EncodeToString(out), "=")
}
