package slug

import "testing"

func TestMake(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple title", input: "Live at Leeds", want: "live-at-leeds"},
		{name: "already lowercase", input: "ok computer", want: "ok-computer"},
		{name: "diacritics folded", input: "Motörhead", want: "motorhead"},
		{name: "punctuation collapsed", input: "What's the Story? (Morning Glory)", want: "what-s-the-story-morning-glory"},
		{name: "leading and trailing separators", input: "  ...Endtroducing  ", want: "endtroducing"},
		{name: "consecutive separators", input: "Mezzanine -- Deluxe", want: "mezzanine-deluxe"},
		{name: "digits kept", input: "4:44", want: "4-44"},
		{name: "empty input", input: "", want: ""},
		{name: "no alphanumerics", input: "!!! ???", want: ""},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := Make(tc.input); got != tc.want {
				t.Fatalf("Make(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
