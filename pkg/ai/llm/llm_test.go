package llm

import (
	"testing"

	"github.com/matryer/is"
)

func TestHistory_NoteInterrupted(t *testing.T) {
	full := "One. Two. Three."

	tests := []struct {
		name   string
		full   string
		spoken string
		want   string
	}{
		{
			name:   "records the spoken prefix",
			full:   full,
			spoken: "One. ",
			want:   full + ` [delivery interrupted by the user after: "One."; the rest was not heard]`,
		},
		{
			name:   "nothing spoken yet",
			full:   full,
			spoken: "  ",
			want:   full + " [delivery interrupted by the user; the rest was not heard]",
		},
		{
			name:   "unknown reply leaves the history alone",
			full:   "never said",
			spoken: "One. ",
			want:   full,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			h := NewHistory("persona", 10)
			h.AddUser("count for me")
			h.AddAssistant(full)

			h.NoteInterrupted(tt.full, tt.spoken)

			msgs := h.Messages()
			is.Equal(msgs[len(msgs)-1].Content, tt.want)
		})
	}
}

func TestHistory_NoteInterruptedSkipsUserMessages(t *testing.T) {
	is := is.New(t)

	h := NewHistory("persona", 10)
	h.AddUser("echo")
	h.AddAssistant("echo")

	h.NoteInterrupted("echo", "e")

	msgs := h.Messages()
	is.Equal(msgs[1].Content, "echo") // user turn untouched
	is.True(msgs[2].Content != "echo")
}
