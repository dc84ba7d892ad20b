package playback

import "strings"

// SplitSentences breaks text into sentence-sized chunks at '.', '!' and '?',
// keeping the terminator with its sentence. Trailing text without a
// terminator becomes a final chunk. Whitespace-only chunks are dropped.
//
// Chunks are the units of synthesis and of barge-in: a stop request takes
// effect at the next chunk boundary, so shorter chunks mean snappier
// interruption at the cost of more synthesis calls.
func SplitSentences(text string) []string {
	var chunks []string
	var b strings.Builder

	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			chunks = append(chunks, s)
		}
		b.Reset()
	}

	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			flush()
		}
	}
	flush()
	return chunks
}
