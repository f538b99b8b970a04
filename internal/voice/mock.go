package voice

import (
	"context"
	"strings"
	"time"

	"github.com/antoniostano/sauti/internal/audio"
)

// MockTranscriber answers every request with a fixed utterance. It is only
// resolved when VOICE_MOCK is set, for demos and end-to-end checks.
type MockTranscriber struct {
	Text       string
	Confidence float64
}

func NewMockTranscriber() *MockTranscriber {
	return &MockTranscriber{Text: "Habari, nataka kujua salio la chama changu", Confidence: 0.9}
}

func (m *MockTranscriber) Transcribe(_ context.Context, req TranscribeRequest) (Transcription, error) {
	if len(req.Audio) == 0 && req.AudioPath == "" {
		return Transcription{Confidence: DefaultConfidence}, nil
	}
	return Transcription{Text: m.Text, Confidence: m.Confidence, Raw: "mock"}, nil
}

// MockGenerator echoes the question back inside a short Swahili reply.
type MockGenerator struct{}

func (MockGenerator) Generate(_ context.Context, req GenerateRequest) (string, error) {
	q := strings.TrimSpace(req.Text)
	return "Nimesikia: " + q + ". Chama chako kinaendelea vizuri.", nil
}

// MockSynthesizer returns a tone whose length follows the text length.
type MockSynthesizer struct{}

func (MockSynthesizer) Synthesize(_ context.Context, req SynthesizeRequest) (Synthesis, error) {
	d := time.Duration(len([]rune(req.Text))) * 40 * time.Millisecond
	d = min(max(d, 200*time.Millisecond), 3*time.Second)
	return Synthesis{Audio: audio.Tone(440, d, 16000), MIME: audio.FormatWAV.MIME}, nil
}
