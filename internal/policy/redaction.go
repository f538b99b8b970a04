package policy

import (
	"regexp"
	"unicode/utf8"
)

var (
	emailPattern  = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	walletPattern = regexp.MustCompile(`\b0x[0-9a-fA-F]{40}\b`)
	phonePattern  = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern   = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
)

// maxLoggedRunes bounds utterances copied into log lines.
const maxLoggedRunes = 160

// RedactPII masks common high-risk PII patterns.
func RedactPII(input string) (redacted string, changed bool) {
	out := input

	next := emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	// Wallet addresses are hex and would otherwise be split up by the digit patterns.
	next = walletPattern.ReplaceAllString(out, "[REDACTED_WALLET]")
	changed = changed || next != out
	out = next

	// Run card redaction before phone to avoid card numbers being classified as phone.
	next = cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}

// ForLog redacts and truncates user or model text before it is logged.
func ForLog(input string) string {
	out, _ := RedactPII(input)
	if utf8.RuneCountInString(out) <= maxLoggedRunes {
		return out
	}
	runes := []rune(out)
	return string(runes[:maxLoggedRunes]) + "…"
}
