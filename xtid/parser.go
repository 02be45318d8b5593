package xtid

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	onDemandFileRegex = regexp.MustCompile(`['|"]{1}ondemand\.s['|"]{1}:\s*['|"]{1}([\w]*)['|"]{1}`)
	indicesRegex      = regexp.MustCompile(`\(\w{1}\[(\d{1,2})\],\s*16\)`)

	metaKeyRegex  = regexp.MustCompile(`<meta[^>]+name=["']twitter-site-verification["'][^>]+content=["']([^"']+)["']`)
	metaKeyRegex2 = regexp.MustCompile(`<meta[^>]+content=["']([^"']+)["'][^>]+name=["']twitter-site-verification["']`)

	frameRegex    = regexp.MustCompile(`<(?:svg|g)[^>]*\bid=["'](loading-x-anim-?\d*)["'][\s\S]*?</(?:svg|g)>`)
	pathDataRegex = regexp.MustCompile(`<path[^>]*\bd=["']([^"']+)["']`)
	digitsRegex   = regexp.MustCompile(`\d+`)
)

// OnDemandFileURL extracts the ondemand.s script URL from the home page, or
// "" when the JSON-embedded filename is missing.
func OnDemandFileURL(html string) string {
	m := onDemandFileRegex.FindStringSubmatch(html)
	if len(m) < 2 {
		return ""
	}
	return "https://abs.twimg.com/responsive-web/client-web/ondemand.s." + m[1] + "a.js"
}

// extractKeyIndices collects every (x[NN], 16) capture from the ondemand
// script. The first index addresses the animation row, the rest select the
// key bytes whose product seeds the frame time.
func extractKeyIndices(js string) (int, []int, error) {
	matches := indicesRegex.FindAllStringSubmatch(js, -1)
	var indices []int
	for _, m := range matches {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		indices = append(indices, idx)
	}
	if len(indices) == 0 {
		return 0, nil, fmt.Errorf("no key byte indices in ondemand script")
	}
	return indices[0], indices[1:], nil
}

func extractVerificationKey(html string) string {
	if m := metaKeyRegex.FindStringSubmatch(html); len(m) > 1 {
		return m[1]
	}
	if m := metaKeyRegex2.FindStringSubmatch(html); len(m) > 1 {
		return m[1]
	}
	return ""
}

// extractFrames returns the loading-x-anim elements in id order.
func extractFrames(html string) ([]string, error) {
	matches := frameRegex.FindAllStringSubmatch(html, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no loading-x-anim frames in home page")
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i][1] < matches[j][1] })
	frames := make([]string, len(matches))
	for i, m := range matches {
		frames[i] = m[0]
	}
	return frames, nil
}

// extractFrameRows parses the animation path of one frame into integer rows.
// The target path is the frame's second path element; the first 9 characters
// (the M prefix) are stripped and the remainder split on the Bezier "C"
// commands. Rows keep digits only.
func extractFrameRows(frame string) ([][]int, error) {
	paths := pathDataRegex.FindAllStringSubmatch(frame, -1)
	if len(paths) < 2 {
		return nil, fmt.Errorf("loading-x-anim frame is missing expected path nodes")
	}
	data := paths[1][1]
	if len(data) <= 9 {
		return nil, fmt.Errorf("loading-x-anim path data is empty")
	}

	var rows [][]int
	for _, segment := range strings.Split(data[9:], "C") {
		nums := digitsRegex.FindAllString(segment, -1)
		if len(nums) == 0 {
			continue
		}
		row := make([]int, 0, len(nums))
		for _, n := range nums {
			v, err := strconv.Atoi(n)
			if err != nil {
				continue
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("could not parse animation frame rows")
	}
	return rows, nil
}
