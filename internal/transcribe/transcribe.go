// Package transcribe obtains transcripts for reference audio from a
// Whisper-compatible HTTP endpoint, caching results by content hash.
package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"voxd/internal/store"
)

// DefaultModel is the transcription model requested when none is configured.
const DefaultModel = string(oai.AudioModelWhisper1)

// Transcriber turns recorded speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Client implements Transcriber with the OpenAI audio transcription API.
type Client struct {
	client   oai.Client
	model    string
	language string
}

var _ Transcriber = (*Client)(nil)

type config struct {
	apiKey     string
	model      string
	language   string
	timeout    time.Duration
	maxRetries int
}

// Option is a functional option for Client.
type Option func(*config)

// WithAPIKey sets the bearer token. Local Whisper servers usually ignore it.
func WithAPIKey(key string) Option { return func(c *config) { c.apiKey = key } }

// WithModel overrides DefaultModel.
func WithModel(m string) Option { return func(c *config) { c.model = m } }

// WithLanguage sets an ISO-639-1 language hint.
func WithLanguage(lang string) Option { return func(c *config) { c.language = lang } }

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option { return func(c *config) { c.timeout = d } }

// WithMaxRetries sets the client retry budget.
func WithMaxRetries(n int) Option { return func(c *config) { c.maxRetries = n } }

// New constructs a Client for the endpoint at baseURL (for example
// http://localhost:9000/v1).
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("transcribe: base URL must not be empty")
	}
	cfg := &config{model: DefaultModel, apiKey: "none", maxRetries: 2}
	for _, o := range opts {
		o(cfg)
	}
	reqOpts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(cfg.apiKey),
		option.WithMaxRetries(cfg.maxRetries),
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}
	return &Client{
		client:   oai.NewClient(reqOpts...),
		model:    cfg.model,
		language: cfg.language,
	}, nil
}

// Transcribe implements Transcriber.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if filename == "" {
		filename = "audio.wav"
	}
	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(audio), filename, "application/octet-stream"),
		Model: oai.AudioModel(c.model),
	}
	if c.language != "" {
		params.Language = oai.String(c.language)
	}
	resp, err := c.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Cached wraps a Transcriber with the content-addressed store so each
// distinct recording is transcribed once.
type Cached struct {
	Inner  Transcriber
	Store  *store.Store
	Logger zerolog.Logger
}

var _ Transcriber = (*Cached)(nil)

// Transcribe implements Transcriber.
func (c *Cached) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	key := store.HashBytes(audio)
	if b, ok, err := c.Store.Get(store.NamespaceTranscriptions, key); err != nil {
		c.Logger.Warn().Err(err).Str("key", key.Short(12)).Msg("transcription cache read failed")
	} else if ok {
		c.Logger.Debug().Str("key", key.Short(12)).Msg("transcription cache hit")
		return string(b), nil
	}
	text, err := c.Inner.Transcribe(ctx, audio, filename)
	if err != nil {
		return "", err
	}
	if err := c.Store.Put(store.NamespaceTranscriptions, key, []byte(text)); err != nil {
		c.Logger.Warn().Err(err).Str("key", key.Short(12)).Msg("transcription cache write failed")
	}
	return text, nil
}
