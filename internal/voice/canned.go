package voice

import (
	"strings"
	"time"

	"github.com/antoniostano/sauti/internal/audio"
)

const (
	cannedEmptyUtterance = "Samahani, sikupata swali lako. Tafadhali rudia tena."
	cannedUnavailable    = "Samahani, mfumo wa akili bandia haupo tayari kwa sasa. Tafadhali jaribu tena baada ya muda mfupi."
)

// CannedReply is the generation fallback.
func CannedReply(req GenerateRequest) string {
	if strings.TrimSpace(req.Text) == "" {
		return cannedEmptyUtterance
	}
	return cannedUnavailable
}

var cannedSilence = audio.Silence(300*time.Millisecond, 16000)

// CannedSpeech is the synthesis fallback: a short silent WAV so clients
// still receive a playable body alongside the text headers.
func CannedSpeech(SynthesizeRequest) Synthesis {
	return Synthesis{Audio: cannedSilence, MIME: audio.FormatWAV.MIME}
}
