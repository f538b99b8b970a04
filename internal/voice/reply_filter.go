package voice

import (
	"regexp"
	"strings"
)

var (
	// Models echo the transcript speaker labels used in the prompt.
	replySpeakerLabelRe = regexp.MustCompile(`(?i)^\s*(?:ai|msaidizi|assistant)\s*:\s*`)
	replyLeadAckRe      = regexp.MustCompile(`(?is)^\s*(?:sawa|haya|naam|ndiyo|bila shaka|sure|okay|ok|alright|of course|certainly)(?:(?:\s*[\p{P}]+\s*)+|\s+$|$)`)
	replyLeadFillerRe   = regexp.MustCompile(`(?is)^\s*(?:ngoja kidogo|subiri kidogo|nipe (?:sekunde|dakika) moja|hebu nifikirie|acha nifikirie|give me(?: just)? a (?:second|sec|moment)|just a (?:second|sec|moment)|let me think(?: for a (?:second|moment))?)(?:(?:\s*[\p{P}]+\s*)+|\s+$|$)`)
)

// cleanReply removes speaker labels and stalling preambles a model puts in
// front of the answer. A reply that is nothing but preamble is kept as is.
func cleanReply(raw string) string {
	out := replySpeakerLabelRe.ReplaceAllString(raw, "")
	for i := 0; i < 4; i++ {
		next := stripLeadFiller(out)
		if stripped, ok := stripAckThenFiller(next); ok {
			next = stripped
		}
		if next == out {
			break
		}
		out = next
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return strings.TrimSpace(raw)
	}
	return out
}

func stripLeadFiller(raw string) string {
	return replyLeadFillerRe.ReplaceAllString(raw, "")
}

// stripAckThenFiller drops an acknowledgement only when a filler follows it,
// so "Sawa, chama chako..." keeps its opening word.
func stripAckThenFiller(raw string) (string, bool) {
	m := replyLeadAckRe.FindStringIndex(raw)
	if len(m) != 2 || m[0] != 0 {
		return raw, false
	}
	rest := raw[m[1]:]
	stripped := stripLeadFiller(rest)
	if stripped == rest {
		return raw, false
	}
	return stripped, true
}
