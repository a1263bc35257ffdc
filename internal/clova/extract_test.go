package clova

import "testing"

func TestExtractJSON(t *testing.T) {
	want := `{"recommendations": []}`
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"pure object", want, want},
		{"fenced", "Here you go:\n```json\n" + want + "\n```", want},
		{"fence no lang", "```\n" + want + "\n```", want},
		{"embedded braces", "Sure! The answer is " + want + " hope that helps.", want},
		{"pure array", `["korean", "bbq"]`, `["korean", "bbq"]`},
		{"embedded array", `The keywords are ["korean", "bbq"] as requested.`, `["korean", "bbq"]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := string(ExtractJSON(tc.in)); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
