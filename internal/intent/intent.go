// Package intent classifies transcribed utterances into chama intents and
// spoken dialects using ordered keyword tables.
package intent

import "strings"

// Label is a classified user intent.
type Label string

const (
	JoinChama    Label = "join_chama"
	Contribute   Label = "contribute"
	CheckBalance Label = "check_balance"
	GeneralQuery Label = "general_query"
)

// DefaultConfidence is recorded with every rule-based classification.
const DefaultConfidence = 0.85

type rule struct {
	label    Label
	keywords []string
}

// Order is priority: the first table with any match wins.
var intentRules = []rule{
	{label: JoinChama, keywords: []string{"jiunge", "join"}},
	{label: Contribute, keywords: []string{"mchango", "contribute", "changia"}},
	{label: CheckBalance, keywords: []string{"akiba", "balance", "salio"}},
}

// Classify returns the intent of text, or GeneralQuery when no table matches.
func Classify(text string) Label {
	lowered := strings.ToLower(text)
	for _, r := range intentRules {
		if containsAny(lowered, r.keywords) {
			return r.label
		}
	}
	return GeneralQuery
}

// RequiresDomainData reports whether answering label needs a chama record.
func RequiresDomainData(label Label) bool {
	return label == CheckBalance
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
