package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"voxd/internal/audio"
	"voxd/internal/manager"
	"voxd/internal/synth"
	"voxd/internal/voice"
)

const tracerName = "voxd/internal/pipeline"

// Config wires a Pipeline.
type Config struct {
	Models  Models
	Voices  Voices
	Encoder audio.Encoder
	Metrics *Metrics
	Logger  zerolog.Logger
	// Base bounds every generation call. Request contexts only bound the
	// wait for the model; once generation starts it runs to completion
	// unless Base is cancelled (server shutdown). Defaults to Background.
	Base context.Context
	// Tracer defaults to the global otel tracer provider.
	Tracer trace.Tracer
	// StallTimeout bounds how long a streaming client may stop reading
	// before it is dropped. Defaults to DefaultStallTimeout.
	StallTimeout time.Duration
}

// Pipeline executes synthesis requests. It is safe for concurrent use; the
// manager serializes the model calls.
type Pipeline struct {
	models  Models
	voices  Voices
	encoder audio.Encoder
	metrics *Metrics
	log     zerolog.Logger
	base    context.Context
	tracer  trace.Tracer
	stall   time.Duration
}

// New constructs a Pipeline.
func New(cfg Config) *Pipeline {
	p := &Pipeline{
		models:  cfg.Models,
		voices:  cfg.Voices,
		encoder: cfg.Encoder,
		metrics: cfg.Metrics,
		log:     cfg.Logger,
		base:    cfg.Base,
		tracer:  cfg.Tracer,
		stall:   cfg.StallTimeout,
	}
	if p.base == nil {
		p.base = context.Background()
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer(tracerName)
	}
	return p
}

// run carries per-request bookkeeping.
type run struct {
	req   Request
	span  trace.Span
	log   zerolog.Logger
	state State
	start time.Time
}

func (r *run) enter(s State) {
	r.state = s
	r.log.Debug().Str("state", string(s)).Msg("pipeline state")
	r.span.AddEvent(string(s))
}

func (r *run) fail(err error) error {
	r.span.RecordError(err)
	r.span.SetStatus(codes.Error, err.Error())
	r.log.Debug().Err(err).Str("from", string(r.state)).Msg("pipeline failed")
	r.enter(StateFailed)
	return err
}

func (p *Pipeline) begin(ctx context.Context, name string, req Request) (context.Context, *run) {
	ctx, span := p.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("voxd.request_id", req.ID),
		attribute.String("voxd.voice", req.Voice),
		attribute.String("voxd.format", string(req.Format)),
		attribute.Int("voxd.text_len", len(req.Params.Text)),
	))
	r := &run{
		req:   req,
		span:  span,
		log:   p.log.With().Str("request_id", req.ID).Logger(),
		start: time.Now(),
	}
	return ctx, r
}

// detach derives the generation context: it keeps ctx's values (trace span,
// request id) but not its cancellation, and ends only with the base context.
func (p *Pipeline) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	gctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(p.base, cancel)
	return gctx, func() {
		stop()
		cancel()
	}
}

// resolve fills the prompt fields of params from the request's voice.
func (p *Pipeline) resolve(ctx context.Context, r *run) (voice.Resolution, synth.Params, error) {
	r.enter(StateResolving)
	params := r.req.Params
	if params.PromptWavPath != "" {
		res, err := voice.Adhoc(params.PromptWavPath, params.PromptText)
		return res, params, err
	}
	if p.voices == nil {
		return voice.Resolution{Requested: r.req.Voice}, params, nil
	}
	res, err := p.voices.Resolve(ctx, r.req.Voice)
	if err != nil {
		return res, params, err
	}
	if res.Fallback {
		r.span.SetAttributes(attribute.Bool("voxd.voice_fallback", true))
	}
	params.PromptWavPath = res.Identity.ReferenceAudioPath
	params.PromptText = res.Identity.ReferenceTranscript
	return res, params, nil
}

func (p *Pipeline) acquire(ctx context.Context, r *run) (*manager.Lease, error) {
	r.enter(StateAcquiring)
	if p.models == nil {
		return nil, manager.ErrModelLoadFailure(fmt.Errorf("no model manager configured"))
	}
	return p.models.Acquire(ctx)
}

// Run executes req and writes the encoded audio to sink. Errors returned
// before sink.Begin mean nothing was written; after Begin, Result.Partial
// is set and the stream is incomplete.
func (p *Pipeline) Run(ctx context.Context, req Request, sink Sink) (Result, error) {
	ctx, r := p.begin(ctx, "pipeline.Run", req)
	defer r.span.End()
	format := string(req.Format)

	res, err := p.execute(ctx, r, sink)
	switch {
	case err != nil:
		p.metrics.observeRequest(format, "error")
		return res, r.fail(err)
	case res.Partial:
		p.metrics.observeRequest(format, "client_gone")
	default:
		p.metrics.observeRequest(format, "ok")
	}
	r.enter(StateDone)
	r.log.Debug().
		Int("samples", res.Samples).
		Int("bytes", res.Bytes).
		Dur("took", time.Since(r.start)).
		Msg("synthesis complete")
	return res, nil
}

func (p *Pipeline) execute(ctx context.Context, r *run, sink Sink) (Result, error) {
	var out Result
	if err := r.req.Params.Validate(); err != nil {
		return out, err
	}
	vres, params, err := p.resolve(ctx, r)
	out.Voice = vres
	if err != nil {
		return out, err
	}
	lease, err := p.acquire(ctx, r)
	if err != nil {
		return out, err
	}
	gctx, cancel := p.detach(ctx)
	defer cancel()

	model := lease.Model()
	out.Header = Header{
		Format:        r.req.Format,
		MediaType:     r.req.Format.MediaType(),
		SampleRate:    model.SampleRate(),
		VoiceFallback: vres.Fallback,
	}
	if r.req.Format.Streaming() {
		return p.stream(gctx, r, lease, params, sink, out)
	}
	return p.buffered(gctx, r, lease, params, sink, out)
}

// stream writes PCM16 as each chunk arrives. Delivery runs beside the model
// call; a failing or stalled sink stops delivery but not generation, and
// the lease is released before waiting on the client.
func (p *Pipeline) stream(ctx context.Context, r *run, lease *manager.Lease, params synth.Params, sink Sink, out Result) (Result, error) {
	r.enter(StateGenerating)
	cond := audio.NewConditioner()
	w := startSinkWriter(sink, out.Header, p.stall)
	first := true
	emit := func(b []byte) {
		if first {
			first = false
			r.enter(StateStreaming)
			p.metrics.observeTTFB(string(r.req.Format), time.Since(r.start))
		}
		w.send(b)
	}
	err := lease.Model().GenerateStream(ctx, params, func(chunk []float32) error {
		cond.Process(chunk)
		out.Samples += len(chunk)
		emit(audio.PCM16(chunk))
		return nil
	})
	if err != nil {
		lease.Evict(manager.ReasonGeneration)
		begun, n, _ := w.close()
		out.Bytes, out.Partial = n, begun
		return out, manager.ErrGenerationFailure(err)
	}
	lease.Release()
	p.metrics.observeAudio(out.Samples, out.Header.SampleRate)
	emit(nil)
	_, n, sinkErr := w.close()
	out.Bytes = n
	if sinkErr != nil {
		r.log.Debug().Err(sinkErr).Msg("client stopped reading; generation finished without it")
		out.Partial = true
	}
	return out, nil
}

// buffered generates the whole utterance, releases the model and encodes.
func (p *Pipeline) buffered(ctx context.Context, r *run, lease *manager.Lease, params synth.Params, sink Sink, out Result) (Result, error) {
	r.enter(StateGenerating)
	cond := audio.NewConditioner()
	var all []float32
	err := lease.Model().GenerateStream(ctx, params, func(chunk []float32) error {
		all = append(all, cond.Process(chunk)...)
		return nil
	})
	if err != nil {
		lease.Evict(manager.ReasonGeneration)
		return out, manager.ErrGenerationFailure(err)
	}
	lease.Release()
	out.Samples = len(all)
	p.metrics.observeAudio(out.Samples, out.Header.SampleRate)

	r.enter(StateEncoding)
	wav := audio.EncodeWAV(all, out.Header.SampleRate)
	enc := audio.EncodeOrFallback(ctx, p.encoder, wav, r.req.Format)
	if enc.FellBack {
		r.log.Warn().Err(enc.Err).Str("format", string(r.req.Format)).Msg("encoding failed, sending wav")
		r.span.SetAttributes(attribute.Bool("voxd.audio_fallback", true))
		p.metrics.observeFallback(string(r.req.Format))
	}
	out.Header.Format = enc.Format
	out.Header.MediaType = enc.Format.MediaType()
	out.Header.AudioFallback = enc.FellBack

	r.enter(StateStreaming)
	p.metrics.observeTTFB(string(r.req.Format), time.Since(r.start))
	if err := sink.Begin(out.Header); err != nil {
		out.Partial = true
		r.log.Debug().Err(err).Msg("client gone before audio was sent")
		return out, nil
	}
	if err := sink.Write(enc.Data); err != nil {
		out.Partial = true
		r.log.Debug().Err(err).Msg("client gone while sending audio")
		return out, nil
	}
	out.Bytes = len(enc.Data)
	return out, nil
}

// Synthesize runs a single non-streaming generation and returns a WAV. It
// serves the form endpoint and the MCP tools.
func (p *Pipeline) Synthesize(ctx context.Context, req Request) (Output, error) {
	req.Format = audio.WAV
	ctx, r := p.begin(ctx, "pipeline.Synthesize", req)
	defer r.span.End()

	out, err := p.synthesize(ctx, r)
	if err != nil {
		p.metrics.observeRequest(string(audio.WAV), "error")
		return out, r.fail(err)
	}
	p.metrics.observeRequest(string(audio.WAV), "ok")
	r.enter(StateDone)
	return out, nil
}

func (p *Pipeline) synthesize(ctx context.Context, r *run) (Output, error) {
	var out Output
	if err := r.req.Params.Validate(); err != nil {
		return out, err
	}
	vres, params, err := p.resolve(ctx, r)
	out.Voice = vres
	if err != nil {
		return out, err
	}
	lease, err := p.acquire(ctx, r)
	if err != nil {
		return out, err
	}
	gctx, cancel := p.detach(ctx)
	defer cancel()

	r.enter(StateGenerating)
	model := lease.Model()
	samples, err := model.Generate(gctx, params)
	if err != nil {
		lease.Evict(manager.ReasonGeneration)
		return out, manager.ErrGenerationFailure(err)
	}
	out.SampleRate = model.SampleRate()
	lease.Release()

	r.enter(StateEncoding)
	audio.NewConditioner().Process(samples)
	out.WAV = audio.EncodeWAV(samples, out.SampleRate)
	out.Samples = len(samples)
	p.metrics.observeAudio(out.Samples, out.SampleRate)
	return out, nil
}
