package memory

import (
	"strings"
	"unicode/utf8"
)

// ChunkTranscript splits a transcript into excerpts of roughly chunkChars
// characters, breaking on line boundaries where possible. Every excerpt is
// capped at maxChars: truncated, never rejected.
func ChunkTranscript(transcript string, chunkChars, maxChars int) []string {
	if chunkChars <= 0 {
		chunkChars = 800
	}
	if maxChars <= 0 {
		maxChars = 1200
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		text := strings.TrimSpace(current.String())
		if text != "" {
			chunks = append(chunks, Truncate(text, maxChars))
		}
		current.Reset()
	}

	for _, line := range strings.Split(transcript, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// A single line longer than the chunk size is split hard.
		for len(line) > chunkChars {
			if current.Len() > 0 {
				flush()
			}
			cut := runeBoundary(line, chunkChars)
			if cut == 0 {
				// chunkChars smaller than the first rune; take it whole.
				_, cut = utf8.DecodeRuneInString(line)
			}
			current.WriteString(line[:cut])
			flush()
			line = line[cut:]
		}

		if current.Len() > 0 && current.Len()+len(line)+1 > chunkChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	flush()

	return chunks
}

// Truncate caps a string at max bytes without splitting a UTF-8 rune.
func Truncate(s string, max int) string {
	if max > 0 && len(s) > max {
		return s[:runeBoundary(s, max)]
	}
	return s
}

// runeBoundary backs max off to the nearest rune start so s[:boundary]
// stays valid UTF-8.
func runeBoundary(s string, max int) int {
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return max
}
