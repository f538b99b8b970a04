package voice

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	speechURLRe      = regexp.MustCompile(`https?://\S+`)
	speechCodeRe     = regexp.MustCompile("(?s)```.*?```|`[^`]*`")
	speechLinkRe     = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
	speechWalletRe   = regexp.MustCompile(`\b0x[0-9a-fA-F]{6,}\b`)
	speechCurrencyRe = regexp.MustCompile(`(?i)\b(?:ksh|kes)\.?\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)
	speechETHRe      = regexp.MustCompile(`([0-9])\s*ETH\b`)
)

// sanitizeSpeechText rewrites reply text into something a synthesizer can
// read aloud: markup and links go, amounts become words the voice knows.
func sanitizeSpeechText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	raw = speechCodeRe.ReplaceAllString(raw, " ")
	raw = speechLinkRe.ReplaceAllString(raw, "$1")
	raw = speechURLRe.ReplaceAllString(raw, " ")
	raw = speechWalletRe.ReplaceAllString(raw, "anwani ya pochi")
	raw = speechCurrencyRe.ReplaceAllString(raw, "shilingi $1")
	raw = speechETHRe.ReplaceAllString(raw, "$1 ether")
	raw = strings.ReplaceAll(raw, "%", " asilimia")

	var b strings.Builder
	b.Grow(len(raw))
	prevSpace := true
	space := func() {
		if !prevSpace {
			b.WriteByte(' ')
			prevSpace = true
		}
	}

	for _, r := range raw {
		switch {
		case r == '\u200d' || r == '\ufe0f' || r == '\u20e3':
		case unicode.IsSpace(r):
			space()
		case unicode.IsControl(r):
		case unicode.In(r, unicode.So, unicode.Sm, unicode.Sk):
			// Emoji and math symbols.
		case speakablePunct(r):
			b.WriteRune(r)
			prevSpace = false
		case unicode.IsPunct(r):
			space()
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

func speakablePunct(r rune) bool {
	return strings.ContainsRune(".,!?:;'\"-()", r)
}
