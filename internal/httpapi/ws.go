package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antoniostano/sauti/internal/protocol"
	"github.com/antoniostano/sauti/internal/reliability"
	"github.com/antoniostano/sauti/internal/voice"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadTimeout  = 120 * time.Second
	wsOutboundSize = 32
)

// outFrame is one queued websocket write: JSON when audio is nil.
type outFrame struct {
	msg   any
	kind  protocol.MessageType
	audio []byte
}

// handleVoiceWS runs one streaming conversation. Each binary frame is a full
// utterance; the reply is a turn_result message followed by a binary audio frame.
func (s *Server) handleVoiceWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	stream := s.streams.Open(clientIP(r), func() {
		cancel()
		_ = conn.SetReadDeadline(time.Now())
	})
	defer func() { _, _ = s.streams.Close(stream.ID) }()
	log := s.logger.With().Str("stream_id", stream.ID).Logger()
	log.Info().Msg("voice stream opened")

	outbound := make(chan outFrame, wsOutboundSize)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		failed := false
		for f := range outbound {
			if failed {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			var err error
			if f.audio != nil {
				err = conn.WriteMessage(websocket.BinaryMessage, f.audio)
			} else {
				err = conn.WriteJSON(f.msg)
			}
			if err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				failed = true
				cancel()
				continue
			}
			s.countWS("outbound", string(f.kind))
		}
	}()

	send := func(f outFrame) bool {
		select {
		case <-ctx.Done():
			return false
		case outbound <- f:
			return true
		}
	}

	ready := s.pipeline.Readiness()
	send(outFrame{
		kind: protocol.TypeSessionReady,
		msg:  protocol.SessionReady{Type: protocol.TypeSessionReady, ASR: ready.ASR, LLM: ready.LLM, TTS: ready.TTS},
	})

	conn.SetReadLimit(s.cfg.MaxAudioBytes + uploadOverhead)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	var (
		token    string
		language string
		seq      int
	)

readLoop:
	for ctx.Err() == nil {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_ = s.streams.Touch(stream.ID)

		if msgType == websocket.BinaryMessage {
			seq++
			s.countWS("inbound", "audio")
			if !s.allow(r) {
				limited := reliability.New(reliability.RateLimited, reliability.RateLimitDetail)
				if !send(errorFrame(seq, limited)) {
					break
				}
				continue
			}

			_ = s.streams.BeginTurn(stream.ID)
			res, err := s.pipeline.Process(ctx, voice.Request{
				Audio:        data,
				SessionToken: token,
				Language:     language,
			})
			if err != nil {
				_, _ = s.streams.FinishTurn(stream.ID, "")
				if !send(errorFrame(seq, err)) {
					break
				}
				continue
			}
			token = res.SessionToken
			if st, err := s.streams.FinishTurn(stream.ID, res.SessionID); err == nil {
				log.Debug().Int("turns", st.Turns).Str("session_id", res.SessionID).Msg("stream turn finished")
			}

			turn := protocol.NewTurnResult(seq)
			turn.SessionID = res.SessionToken
			turn.Intent = string(res.Intent)
			turn.Dialect = string(res.Dialect)
			turn.Confidence = res.Confidence
			turn.Transcript = res.Transcript
			turn.ResponseText = res.ResponseText
			turn.MIME = res.MIME
			turn.AudioBytes = len(res.Audio)
			if !send(outFrame{kind: protocol.TypeTurnResult, msg: turn}) {
				break
			}
			if !send(outFrame{kind: "audio", audio: res.Audio}) {
				break
			}
			continue
		}

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.countWS("inbound", "invalid")
			if !send(outFrame{
				kind: protocol.TypeError,
				msg:  protocol.NewError(seq, "invalid_client_message", err.Error(), false),
			}) {
				break
			}
			continue
		}
		switch m := parsed.(type) {
		case protocol.ClientHello:
			s.countWS("inbound", string(m.Type))
			token = m.SessionID
			language = m.Language
		case protocol.ClientControl:
			s.countWS("inbound", string(m.Type))
			switch m.Action {
			case protocol.ActionEnd:
				break readLoop
			case protocol.ActionPing:
				ready := s.pipeline.Readiness()
				send(outFrame{
					kind: protocol.TypeSessionReady,
					msg:  protocol.SessionReady{Type: protocol.TypeSessionReady, ASR: ready.ASR, LLM: ready.LLM, TTS: ready.TTS},
				})
			}
		}
	}

	// The read loop is the only sender, so closing here lets the writer drain.
	close(outbound)
	<-writerDone
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	log.Info().Int("turns", seq).Msg("voice stream closed")
}

func errorFrame(seq int, err error) outFrame {
	status := reliability.HTTPStatus(err)
	retryable := status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
	return outFrame{
		kind: protocol.TypeError,
		msg:  protocol.NewError(seq, string(reliability.CategoryOf(err)), reliability.DetailOf(err), retryable),
	}
}

func (s *Server) countWS(direction, kind string) {
	if s.metrics == nil {
		return
	}
	s.metrics.WSMessages.WithLabelValues(direction, kind).Inc()
}
