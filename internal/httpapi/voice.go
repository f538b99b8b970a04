package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/antoniostano/sauti/internal/observability"
	"github.com/antoniostano/sauti/internal/reliability"
	"github.com/antoniostano/sauti/internal/voice"
)

// uploadOverhead covers multipart framing on top of the audio ceiling.
const uploadOverhead = 1 << 20

const detailMissingFile = "Missing audio file"

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	// Refuse before buffering the upload when a capability has no backend.
	if err := s.pipeline.CheckReady(); err != nil {
		s.metrics.ObserveOutcome(observability.OutcomeNotReady)
		s.respondPipelineError(w, err)
		return
	}

	payload, err := s.readUpload(w, r)
	if err != nil {
		s.metrics.ObserveOutcome(observability.OutcomeInvalid)
		s.respondPipelineError(w, err)
		return
	}

	res, err := s.pipeline.Process(r.Context(), voice.Request{
		Audio:           payload,
		ContentEncoding: r.Header.Get("Content-Encoding"),
		SessionToken:    sessionToken(r),
		Language:        formOrQuery(r, "language"),
	})
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", res.MIME)
	h.Set("Content-Length", strconv.Itoa(len(res.Audio)))
	h.Set(HeaderSessionID, res.SessionToken)
	h.Set(HeaderIntent, string(res.Intent))
	h.Set(HeaderDialect, string(res.Dialect))
	h.Set(HeaderConfidence, fmt.Sprintf("%.2f", res.Confidence))
	h.Set(HeaderResponseText, url.QueryEscape(res.ResponseText))
	h.Set(HeaderTranscript, url.QueryEscape(res.Transcript))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Audio)
}

// readUpload accepts either a multipart "file" field or the raw request body.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxAudioBytes+uploadOverhead)

	if strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data") {
		if err := r.ParseMultipartForm(s.cfg.MaxAudioBytes + uploadOverhead); err != nil {
			return nil, uploadError(err)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, reliability.New(reliability.InvalidInput, detailMissingFile)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, uploadError(err)
		}
		return data, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, uploadError(err)
	}
	return data, nil
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return reliability.Wrap(reliability.InvalidInput, voice.DetailTooLarge, err)
	}
	return reliability.Wrap(reliability.InvalidInput, voice.DetailInvalidFormat, err)
}

func (s *Server) handleSessionIntents(w http.ResponseWriter, r *http.Request) {
	intents, err := s.pipeline.SessionIntents(r.Context(), sessionToken(r))
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"intents": intents})
}

func (s *Server) respondPipelineError(w http.ResponseWriter, err error) {
	status := reliability.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Int("status", status).Msg("voice request failed")
	}
	respondError(w, status, string(reliability.CategoryOf(err)), reliability.DetailOf(err))
}

// sessionToken reads session_id from the form, the query or X-Session-ID.
func sessionToken(r *http.Request) string {
	if v := formOrQuery(r, "session_id"); v != "" {
		return v
	}
	return strings.TrimSpace(r.Header.Get(HeaderSessionID))
}

func formOrQuery(r *http.Request, key string) string {
	if r.MultipartForm != nil {
		if vals := r.MultipartForm.Value[key]; len(vals) > 0 {
			if v := strings.TrimSpace(vals[0]); v != "" {
				return v
			}
		}
	}
	return strings.TrimSpace(r.URL.Query().Get(key))
}
