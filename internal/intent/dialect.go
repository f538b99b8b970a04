package intent

import "strings"

// Dialect is the regional or register variant used to steer replies.
type Dialect string

const (
	Sheng           Dialect = "sheng"
	Kiamu           Dialect = "kiamu"
	KiswahiliSanifu Dialect = "kiswahili_sanifu"
	English         Dialect = "english"
)

type dialectRule struct {
	dialect  Dialect
	keywords []string
}

var dialectRules = []dialectRule{
	{dialect: Sheng, keywords: []string{"msee", "safi", "ganji", "mambo", "kitu", "kuomoka", "ndege"}},
	{dialect: Kiamu, keywords: []string{"wawu", "mwenyewe", "pwapwa"}},
}

// DetectDialect returns the first dialect whose keywords appear in text. With
// no match it returns fallback, or KiswahiliSanifu when fallback is empty.
func DetectDialect(text string, fallback Dialect) Dialect {
	lowered := strings.ToLower(text)
	for _, r := range dialectRules {
		if containsAny(lowered, r.keywords) {
			return r.dialect
		}
	}
	if fallback != "" {
		return fallback
	}
	return KiswahiliSanifu
}

// FallbackForLanguage maps a request language hint to a dialect fallback.
func FallbackForLanguage(language string) Dialect {
	if strings.EqualFold(strings.TrimSpace(language), "en") {
		return English
	}
	return KiswahiliSanifu
}
