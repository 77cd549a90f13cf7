package domain

import "testing"

func TestParseWinner(t *testing.T) {
	cases := []struct {
		in   string
		want Winner
	}{
		{"evaluator", WinnerEvaluator},
		{"challenger", WinnerChallenger},
		{"tie", WinnerTie},
	}
	for _, c := range cases {
		got, err := ParseWinner(c.in)
		if err != nil {
			t.Fatalf("ParseWinner(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseWinner(%q) = %v, want %v", c.in, got, c.want)
		}
		if got.String() != c.in {
			t.Fatalf("String() = %q, want %q", got.String(), c.in)
		}
	}

	for _, in := range []string{"", "Evaluator", "draw", "both"} {
		if _, err := ParseWinner(in); err == nil {
			t.Fatalf("ParseWinner(%q): expected error", in)
		}
	}
}

func TestValidateSources(t *testing.T) {
	ok := []Source{{Title: "a", URL: "https://example.org"}}
	if err := ValidateSources(ok); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	if err := ValidateSources(nil); err != ErrNoSources {
		t.Fatalf("expected ErrNoSources, got %v", err)
	}

	many := make([]Source, MaxSources+1)
	for i := range many {
		many[i] = Source{Title: "a", URL: "u"}
	}
	if err := ValidateSources(many); err != ErrTooManySources {
		t.Fatalf("expected ErrTooManySources, got %v", err)
	}

	if err := ValidateSources([]Source{{Title: "", URL: "u"}}); err != ErrSourceTitleEmpty {
		t.Fatalf("expected ErrSourceTitleEmpty, got %v", err)
	}

	long := make([]byte, MaxURLLength+1)
	for i := range long {
		long[i] = 'x'
	}
	if err := ValidateSources([]Source{{Title: "a", URL: string(long)}}); err != ErrSourceURLTooLong {
		t.Fatalf("expected ErrSourceURLTooLong, got %v", err)
	}
}
