// Package sniffer provides automatic detection of CSV file dialects.
// It guesses the field delimiter from a raw text sample and computes the
// header signature used to recognize files with a known column layout.
package sniffer

import (
	"sort"
	"strings"
)

// DefaultDelimiter is used when detection has nothing to go on.
const DefaultDelimiter = ','

// delimiterCandidates is the fixed priority list for detection.
// On a tie the earlier candidate wins, so comma stays the default.
var delimiterCandidates = []rune{',', ';', '\t'}

// DetectDelimiter guesses the field delimiter for a raw text sample.
//
// The first line is presumed to be the header, so the second line is
// examined: the candidate with the most occurrences wins. Files with fewer
// than two lines, ties, and all-zero counts all fall back to comma. This is
// a heuristic to seed the tokenizer; callers may override the result.
func DetectDelimiter(text string) rune {
	lines := splitSampleLines(text)
	if len(lines) < 2 {
		return DefaultDelimiter
	}

	sample := lines[1]
	best := DefaultDelimiter
	bestCount := 0
	for _, candidate := range delimiterCandidates {
		count := strings.Count(sample, string(candidate))
		if count > bestCount {
			bestCount = count
			best = candidate
		}
	}
	return best
}

// Signature returns the header signature for a parsed header set: the
// sorted, pipe-joined header names. Files that produce the same signature
// are treated as having the same shape for template auto-application.
func Signature(headers []string) string {
	sorted := make([]string, len(headers))
	copy(sorted, headers)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}

// StripBOM removes a UTF-8 byte order mark, which several banks prepend to
// their exports.
func StripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// splitSampleLines splits on newlines, dropping trailing carriage returns
// and skipping leading empty lines so that blank prologue does not defeat
// detection.
func splitSampleLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimRight(line, "\r")
		if len(lines) == 0 && strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
