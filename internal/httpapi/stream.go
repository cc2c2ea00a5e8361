package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5/middleware"

	"voxd/internal/audio"
	"voxd/internal/pipeline"
	"voxd/pkg/types"
)

// wsSink sends each PCM chunk as one binary message.
type wsSink struct {
	ctx  context.Context
	conn *websocket.Conn
	rate int
}

func (s *wsSink) Begin(h pipeline.Header) error {
	s.rate = h.SampleRate
	return nil
}

func (s *wsSink) Write(p []byte) error {
	ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
	defer cancel()
	return s.conn.Write(ctx, websocket.MessageBinary, p)
}

// speechStream godoc
// @Summary      Stream speech over a websocket
// @Description  The client sends one SpeechRequest as a text message. The server replies with binary 16-bit little-endian PCM frames followed by a StreamDone text message. response_format is forced to pcm.
// @Tags         audio
// @Router       /v1/audio/speech/stream [get]
func (s *server) speechStream(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: corsAllowedOrigins})
	if err != nil {
		logEnd(r, http.StatusBadRequest, start, err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxBodyBytes)

	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()

	typ, data, err := conn.Read(ctx)
	if err != nil {
		return
	}
	var body types.SpeechRequest
	if typ != websocket.MessageText || json.Unmarshal(data, &body) != nil {
		finishStream(ctx, conn, types.StreamDone{Done: true, Error: "first message must be a JSON speech request"})
		conn.Close(websocket.StatusUnsupportedData, "invalid request")
		return
	}
	body.ResponseFormat = string(audio.PCM)
	req, err := speechRequest(middleware.GetReqID(r.Context()), body)
	if err != nil {
		finishStream(ctx, conn, types.StreamDone{Done: true, Error: err.Error()})
		conn.Close(websocket.StatusPolicyViolation, "invalid request")
		return
	}
	logStart(r, map[string]any{"voice": req.Voice, "format": "ws-pcm", "chars": len(req.Params.Text)})

	sink := &wsSink{ctx: ctx, conn: conn}
	res, err := s.Synth.Run(ctx, req, sink)
	done := types.StreamDone{
		Done:       true,
		Fallback:   res.Voice.Fallback,
		Samples:    res.Samples,
		SampleRate: sink.rate,
	}
	if res.Voice.Fallback {
		voiceFallbackTotal.Inc()
	}
	if err != nil {
		_, kind := classify(err)
		done.Error = kind + ": " + err.Error()
		logEnd(r, http.StatusOK, start, err)
		finishStream(ctx, conn, done)
		conn.Close(websocket.StatusInternalError, kind)
		return
	}
	logEnd(r, http.StatusOK, start, nil)
	finishStream(ctx, conn, done)
	conn.Close(websocket.StatusNormalClosure, "")
}

func finishStream(ctx context.Context, conn *websocket.Conn, done types.StreamDone) {
	b, _ := json.Marshal(done)
	_ = conn.Write(ctx, websocket.MessageText, b)
}
