package session

import (
	"testing"

	"github.com/matryer/is"
)

func TestTranscriptFilter(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		accept bool
	}{
		{"normal speech passes", "What's the weather like?", "What's the weather like?", true},
		{"surrounding whitespace trimmed", "  hello there  ", "hello there", true},
		{"caption marker rejected", "*sizzling* something", "", false},
		{"audio marker rejected", "some *audio* artifact", "", false},
		{"exact hallucination rejected", "Thank you.", "", false},
		{"hallucination case-insensitive", "SUBSCRIBE", "", false},
		{"hallucination inside sentence passes", "thank you for the help today", "thank you for the help today", true},
		{"single character rejected", "a", "", false},
		{"empty rejected", "   ", "", false},
		{"two characters pass", "no", "no", true},
	}

	f := NewTranscriptFilter(DefaultFilterConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			got, ok := f.Accept(tt.text)
			is.Equal(ok, tt.accept)
			is.Equal(got, tt.want)
		})
	}
}

func TestTranscriptFilter_CustomConfig(t *testing.T) {
	is := is.New(t)

	f := NewTranscriptFilter(FilterConfig{
		Markers:        []string{"[noise]"},
		IgnoredPhrases: []string{"hmm"},
		MinLength:      5,
	})

	_, ok := f.Accept("[noise] detected")
	is.True(!ok)
	_, ok = f.Accept("hmm")
	is.True(!ok)
	_, ok = f.Accept("four") // under the custom minimum length
	is.True(!ok)
	got, ok := f.Accept("hello world")
	is.True(ok)
	is.Equal(got, "hello world")
}
