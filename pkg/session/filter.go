package session

import "strings"

// FilterConfig is the transcript noise filter data. Whisper hallucinates
// captions on near-silent audio; the defaults catch the common artifacts.
type FilterConfig struct {
	// Markers reject a transcript when any of them appears anywhere in it.
	Markers []string

	// IgnoredPhrases reject a transcript that equals one of them exactly
	// (after lowercasing and trimming).
	IgnoredPhrases []string

	// MinLength rejects transcripts shorter than this many characters.
	MinLength int
}

// DefaultFilterConfig returns the stock hallucination list.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		Markers: []string{"*sizzling*", "*audio*", "*video*"},
		IgnoredPhrases: []string{
			"you", "thank you", "thank you.",
			"subtitles", "watching", "subscribe", "like and subscribe",
		},
		MinLength: 2,
	}
}

// TranscriptFilter screens raw transcripts before they reach the generator.
type TranscriptFilter struct {
	markers   []string
	ignored   map[string]bool
	minLength int
}

// NewTranscriptFilter builds a filter from config, falling back to the
// defaults for zero values.
func NewTranscriptFilter(cfg FilterConfig) *TranscriptFilter {
	def := DefaultFilterConfig()
	if cfg.Markers == nil {
		cfg.Markers = def.Markers
	}
	if cfg.IgnoredPhrases == nil {
		cfg.IgnoredPhrases = def.IgnoredPhrases
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = def.MinLength
	}
	ignored := make(map[string]bool, len(cfg.IgnoredPhrases))
	for _, p := range cfg.IgnoredPhrases {
		ignored[strings.ToLower(strings.TrimSpace(p))] = true
	}
	return &TranscriptFilter{
		markers:   cfg.Markers,
		ignored:   ignored,
		minLength: cfg.MinLength,
	}
}

// Accept returns the trimmed transcript and whether it is usable speech.
func (f *TranscriptFilter) Accept(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	clean := strings.ToLower(trimmed)
	if len(clean) < f.minLength {
		return "", false
	}
	for _, m := range f.markers {
		if strings.Contains(clean, m) {
			return "", false
		}
	}
	if f.ignored[clean] {
		return "", false
	}
	return trimmed, true
}
