package reranker

import (
	"regexp"
	"strconv"
)

// MaxRawScore is the top of the scale the model is asked to answer on
const MaxRawScore = 10.0

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParseScore extracts the first decimal number from a model reply.
func ParseScore(text string) (float64, bool) {
	m := numberPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Normalize maps a raw 0-10 answer onto [0,1], clamping out-of-range replies.
func Normalize(raw float64) float64 {
	v := raw / MaxRawScore
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// numberComplete reports whether text already holds a first number that no
// further streamed characters could extend.
func numberComplete(text string) bool {
	loc := numberPattern.FindStringIndex(text)
	if loc == nil {
		return false
	}
	end := loc[1]
	if end >= len(text) {
		return false
	}
	if text[end] != '.' {
		return true
	}
	// "7." may still become "7.5"
	return end+1 < len(text) && !isDigit(text[end+1])
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
