package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		text string
		want Label
	}{
		{"Nataka kujiunge na chama", JoinChama},
		{"Ningependa kutoa MCHANGO wangu", Contribute},
		{"nataka kuchangia leo", Contribute},
		{"Salio la chama ni ngapi?", CheckBalance},
		{"what is my balance", CheckBalance},
		{"Habari ya asubuhi", GeneralQuery},
		{"", GeneralQuery},
		// join wins over balance
		{"nataka jiunge kisha nione salio", JoinChama},
		// contribute wins over balance
		{"changia then show akiba", Contribute},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.text), tc.text)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	text := "Msee, nataka jiunge na salio"
	first := Classify(text)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Classify(text))
	}
}

func TestRequiresDomainData(t *testing.T) {
	assert.True(t, RequiresDomainData(CheckBalance))
	assert.False(t, RequiresDomainData(JoinChama))
	assert.False(t, RequiresDomainData(GeneralQuery))
}

func TestDetectDialect(t *testing.T) {
	cases := []struct {
		text     string
		fallback Dialect
		want     Dialect
	}{
		{"Mambo msee, niko na ganji", "", Sheng},
		{"Wawu, ni mimi mwenyewe", "", Kiamu},
		// sheng table is checked first
		{"mwenyewe ni msee", "", Sheng},
		{"Habari za leo", "", KiswahiliSanifu},
		{"Good morning", English, English},
		{"Habari za leo", Kiamu, Kiamu},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DetectDialect(tc.text, tc.fallback), tc.text)
	}
}

func TestFallbackForLanguage(t *testing.T) {
	assert.Equal(t, English, FallbackForLanguage("EN"))
	assert.Equal(t, KiswahiliSanifu, FallbackForLanguage("sw"))
	assert.Equal(t, KiswahiliSanifu, FallbackForLanguage(""))
}
