package ingest

import (
	"math"
	"strings"
)

const sniffSampleSize = 4096

// candidateDelimiters is also the preference order when several candidates
// are equally consistent, and the order of the explicit fallback attempts.
var candidateDelimiters = []rune{',', ';', '\t', '|'}

// sniffPreference breaks ties between equally consistent delimiters.
var sniffPreference = []rune{',', '\t', ';', '|'}

// minConsistency is the share of sample lines that must agree on the
// per-line delimiter count.
const minConsistency = 0.9

// sniffDelimiter inspects the first sniffSampleSize characters of text and
// returns the delimiter whose per-line occurrence count is the most
// consistent. Characters inside double quotes are ignored. It reports false
// when no candidate appears consistently.
func sniffDelimiter(text string) (rune, bool) {
	sample, truncated := headRunes(text, sniffSampleSize)
	lines := strings.Split(sample, "\n")
	if truncated && len(lines) > 1 {
		lines = lines[:len(lines)-1] // partial last line
	}
	lines = nonEmpty(lines)
	if len(lines) == 0 {
		return 0, false
	}

	bestLevel := -1
	scores := make(map[rune]int, len(candidateDelimiters))
	for _, d := range candidateDelimiters {
		consistency, ok := delimiterConsistency(lines, d)
		if !ok || consistency < minConsistency {
			continue
		}
		// Compare at two decimal places so near-equal candidates fall back
		// to the preference order.
		level := int(math.Floor(consistency*100 + 1e-9))
		scores[d] = level
		if level > bestLevel {
			bestLevel = level
		}
	}
	if bestLevel < 0 {
		return 0, false
	}
	for _, d := range sniffPreference {
		if level, ok := scores[d]; ok && level == bestLevel {
			return d, true
		}
	}
	return 0, false
}

// delimiterConsistency returns the share of lines whose count of d equals
// the modal count. It reports false when the modal count is zero.
func delimiterConsistency(lines []string, d rune) (float64, bool) {
	freq := make(map[int]int)
	for _, line := range lines {
		freq[countOutsideQuotes(line, d)]++
	}
	modeCount, modeLines := 0, 0
	for count, n := range freq {
		if n > modeLines || (n == modeLines && count > modeCount) {
			modeCount, modeLines = count, n
		}
	}
	if modeCount == 0 {
		return 0, false
	}
	return float64(modeLines) / float64(len(lines)), true
}

func countOutsideQuotes(line string, d rune) int {
	n := 0
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == d && !inQuotes:
			n++
		}
	}
	return n
}

func headRunes(s string, n int) (string, bool) {
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}

func nonEmpty(lines []string) []string {
	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
