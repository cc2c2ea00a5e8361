package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"voxd/internal/audio"
	"voxd/internal/common/fsutil"
	"voxd/internal/config"
	"voxd/internal/manager"
	"voxd/internal/pipeline"
	"voxd/internal/registry"
	"voxd/internal/store"
	"voxd/internal/synth"
	"voxd/internal/transcribe"
	"voxd/internal/voice"
)

// transcribeTimeout bounds one transcription call.
const transcribeTimeout = 2 * time.Minute

// app holds the wired service graph.
type app struct {
	cfg      config.Config
	log      zerolog.Logger
	store    *store.Store
	encoder  *audio.FFmpeg
	voices   *voice.Resolver
	mgr      *manager.Manager
	pipeline *pipeline.Pipeline
}

// buildVoices wires the pieces that work without the model: the cache
// store, the encoder and the voice resolver.
func buildVoices(cfg config.Config, log zerolog.Logger) (*app, error) {
	st, err := store.New(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("cache store: %w", err)
	}
	enc := audio.NewFFmpeg(cfg.FFmpegBin, log)

	var tr transcribe.Transcriber
	if cfg.Transcription.URL != "" {
		opts := []transcribe.Option{
			transcribe.WithAPIKey(cfg.Transcription.APIKey),
			transcribe.WithTimeout(transcribeTimeout),
		}
		if cfg.Transcription.Model != "" {
			opts = append(opts, transcribe.WithModel(cfg.Transcription.Model))
		}
		if cfg.Transcription.Language != "" {
			opts = append(opts, transcribe.WithLanguage(cfg.Transcription.Language))
		}
		client, err := transcribe.New(cfg.Transcription.URL, opts...)
		if err != nil {
			return nil, err
		}
		tr = &transcribe.Cached{Inner: client, Store: st, Logger: log}
	}

	var presets []registry.Preset
	if cfg.PresetsDir != "" {
		dir, err := fsutil.ExpandHome(cfg.PresetsDir)
		if err != nil {
			return nil, err
		}
		if presets, err = registry.LoadDir(dir); err != nil {
			return nil, fmt.Errorf("load presets: %w", err)
		}
	}
	defaultAudio, err := fsutil.ExpandHome(cfg.DefaultVoiceAudio)
	if err != nil {
		return nil, err
	}
	if defaultAudio != "" && !fsutil.IsRegularFile(defaultAudio) {
		log.Warn().Str("path", defaultAudio).Msg("default voice audio missing; default voice falls back to the model voice")
	}

	vr, err := voice.New(voice.Config{
		VoicesDir:         cfg.VoicesDir,
		DefaultAudioPath:  defaultAudio,
		DefaultTranscript: cfg.DefaultVoiceText,
		Presets:           presets,
		SampleRate:        cfg.SampleRate,
		Encoder:           enc,
		Transcriber:       tr,
		Store:             st,
		Logger:            log,
	})
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, store: st, encoder: enc, voices: vr}, nil
}

// buildApp wires the full graph. base bounds every generation and is
// cancelled at shutdown.
func buildApp(base context.Context, cfg config.Config, log zerolog.Logger, reg prometheus.Registerer) (*app, error) {
	a, err := buildVoices(cfg, log)
	if err != nil {
		return nil, err
	}
	command, err := fsutil.ExpandHome(cfg.Sidecar.Command)
	if err != nil {
		return nil, err
	}
	loader := synth.NewSidecarLoader(synth.SidecarConfig{
		URL:          cfg.Sidecar.URL,
		Command:      command,
		Args:         cfg.Sidecar.Args,
		Model:        cfg.ModelRepo,
		Host:         cfg.Sidecar.Host,
		PortStart:    cfg.Sidecar.PortStart,
		PortEnd:      cfg.Sidecar.PortEnd,
		ReadyTimeout: cfg.Sidecar.ReadyTimeout.Duration,
		Logger:       log.With().Str("component", "sidecar").Logger(),
	})
	sidecarCmd := command
	if cfg.Sidecar.URL != "" {
		sidecarCmd = ""
	}
	a.mgr = manager.NewWithConfig(manager.ManagerConfig{
		Loader:        loader,
		IdleTimeout:   cfg.Idle(),
		WatchInterval: cfg.WatchInterval.Duration,
		Publisher: manager.MultiPublisher{
			manager.LogPublisher{Logger: log},
			manager.NewMetricsPublisher(reg),
		},
		EncoderBin:     cfg.FFmpegBin,
		SidecarCommand: sidecarCmd,
		Logger:         log.With().Str("component", "manager").Logger(),
	})
	a.pipeline = pipeline.New(pipeline.Config{
		Models:       a.mgr,
		Voices:       a.voices,
		Encoder:      a.encoder,
		Metrics:      pipeline.NewMetrics(reg),
		Logger:       log.With().Str("component", "pipeline").Logger(),
		Base:         base,
		StallTimeout: cfg.StreamWriteTimeout.Duration,
	})
	return a, nil
}

// logSanity reports missing external binaries without failing startup.
func (a *app) logSanity() {
	rep := a.mgr.SanityCheck()
	ev := a.log.Info()
	if rep.Error != "" {
		ev = a.log.Warn().Str("problem", rep.Error)
	}
	ev.Bool("encoder_found", rep.EncoderFound).
		Str("encoder", rep.EncoderPath).
		Bool("sidecar_attach", rep.SidecarAttach).
		Str("sidecar", rep.SidecarPath).
		Msg("sanity check")
}
