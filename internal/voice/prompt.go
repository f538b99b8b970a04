package voice

import (
	"strings"

	"github.com/antoniostano/sauti/internal/intent"
)

// SystemPrompt frames every generation.
const SystemPrompt = "Wewe ni Sauti Chama, msaidizi wa kidigital kwa vikundi vya akiba. " +
	"Tumia Kiswahili sanifu isipokuwa mtumiaji anapotumia Sheng. " +
	"Toa majibu mafupi, yenye hatua wazi na yanayowasaidia wanachama kuelewa fedha zao."

// Sampling limits shared by hosted and local generators.
const (
	MaxNewTokens = 180
	Temperature  = 0.7
	TopP         = 0.9
)

var dialectInstructions = map[intent.Dialect]string{
	intent.Sheng:           "Tumia Sheng safi na maneno ya vijana, lakini baki na ujumbe wa kifedha.",
	intent.Kiamu:           "Tumia Kiswahili sanifu kilicho rahisi kueleweka na maneno ya pwani inapohitajika.",
	intent.KiswahiliSanifu: "Tumia Kiswahili fasaha kinachofaa kwa mazungumzo ya kifedha.",
	intent.English:         "Reply in clear, simple English suitable for a savings group member.",
}

const defaultDialectInstruction = "Tumia Kiswahili fasaha."

// DialectInstruction returns the style line for d.
func DialectInstruction(d intent.Dialect) string {
	if s, ok := dialectInstructions[d]; ok {
		return s
	}
	return defaultDialectInstruction
}

// BuildPrompt renders the single-string prompt used by completion-style
// backends. Chat backends send SystemPrompt separately and use UserPrompt.
func BuildPrompt(req GenerateRequest) string {
	return SystemPrompt + "\n\n" + UserPrompt(req)
}

// UserPrompt renders everything after the system prompt.
func UserPrompt(req GenerateRequest) string {
	parts := []string{DialectInstruction(req.Dialect)}
	if ctx := strings.TrimSpace(req.Context); ctx != "" {
		parts = append(parts, "Historia fupi ya mazungumzo:\n"+ctx)
	}
	parts = append(parts,
		"Swali la mtumiaji: "+strings.TrimSpace(req.Text),
		"Toa jibu linaloeleweka na hatua zinazofuatwa.",
	)
	return strings.Join(parts, "\n\n")
}
