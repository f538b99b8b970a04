package policy

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestRedactPII(t *testing.T) {
	input := "Email me at sam@example.com or +254 712 345 678 and use 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
}

func TestRedactPIIWalletAddress(t *testing.T) {
	out, changed := RedactPII("tuma kwa 0x52908400098527886E0F7030069857D2E4169EE7 sasa")
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	if out != "tuma kwa [REDACTED_WALLET] sasa" {
		t.Fatalf("out = %q", out)
	}
}

func TestRedactPIILeavesPlainSwahili(t *testing.T) {
	in := "Nataka kujua salio la chama changu"
	out, changed := RedactPII(in)
	if changed || out != in {
		t.Fatalf("RedactPII(%q) = %q, %v; want unchanged", in, out, changed)
	}
}

func TestForLogTruncates(t *testing.T) {
	out := ForLog(strings.Repeat("a", 500))
	if got := utf8.RuneCountInString(out); got != maxLoggedRunes+1 {
		t.Fatalf("rune count = %d, want %d", got, maxLoggedRunes+1)
	}
	if ForLog("habari") != "habari" {
		t.Fatalf("short text should pass through")
	}
}
