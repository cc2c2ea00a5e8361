package voice

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voxd/internal/audio"
	"voxd/internal/common/fsutil"
	"voxd/internal/registry"
	"voxd/internal/store"
	"voxd/internal/transcribe"
)

// DefaultSampleRate is the canonical rate of stored reference audio.
const DefaultSampleRate = 44100

// Config configures a Resolver.
type Config struct {
	// VoicesDir holds custom voice audio and voices.json.
	VoicesDir string
	// DefaultAudioPath and DefaultTranscript define the built-in voice. An
	// empty path means the model's own voice with no reference audio.
	DefaultAudioPath  string
	DefaultTranscript string
	// Presets are additional shipped voices, usually from registry.LoadDir.
	Presets []registry.Preset
	// SampleRate of normalized uploads; defaults to DefaultSampleRate.
	SampleRate int
	Encoder    audio.Encoder
	// Transcriber fills in missing transcripts on Create. Optional.
	Transcriber transcribe.Transcriber
	// Store records audio metadata of custom voices. Optional.
	Store  *store.Store
	Logger zerolog.Logger
	Now    func() time.Time
}

// Resolver maps voice ids to identities and owns the custom registry.
type Resolver struct {
	voicesDir   string
	rate        int
	encoder     audio.Encoder
	transcriber transcribe.Transcriber
	store       *store.Store
	log         zerolog.Logger
	now         func() time.Time

	presets map[string]Identity
	aliases map[string]string

	// mu serializes read-modify-write cycles of voices.json.
	mu sync.Mutex
}

// New builds a Resolver and creates VoicesDir if needed.
func New(cfg Config) (*Resolver, error) {
	dir, err := fsutil.ExpandHome(cfg.VoicesDir)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("voice: voices dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("voice: create voices dir: %w", err)
	}
	r := &Resolver{
		voicesDir:   dir,
		rate:        cfg.SampleRate,
		encoder:     cfg.Encoder,
		transcriber: cfg.Transcriber,
		store:       cfg.Store,
		log:         cfg.Logger,
		now:         cfg.Now,
		presets:     map[string]Identity{},
		aliases:     map[string]string{},
	}
	if r.rate <= 0 {
		r.rate = DefaultSampleRate
	}
	if r.now == nil {
		r.now = time.Now
	}
	r.presets[DefaultID] = Identity{
		ID:                  DefaultID,
		Kind:                KindPreset,
		DisplayName:         "Default",
		ReferenceAudioPath:  cfg.DefaultAudioPath,
		ReferenceTranscript: cfg.DefaultTranscript,
	}
	for _, p := range cfg.Presets {
		if p.ID == "" {
			continue
		}
		r.presets[p.ID] = Identity{
			ID:                  p.ID,
			Kind:                KindPreset,
			DisplayName:         p.Name,
			ReferenceAudioPath:  p.Path,
			ReferenceTranscript: p.Transcript,
		}
	}
	for _, name := range OpenAIVoices {
		if _, shadowed := r.presets[name]; !shadowed {
			r.aliases[name] = DefaultID
		}
	}
	return r, nil
}

// VoicesDir is where custom voice audio is stored.
func (r *Resolver) VoicesDir() string { return r.voicesDir }

// IsPreset reports whether id names a preset or an alias of one.
func (r *Resolver) IsPreset(id string) bool {
	id = normalizeID(id)
	_, ok := r.presets[id]
	_, alias := r.aliases[id]
	return ok || alias
}

func normalizeID(id string) string { return strings.ToLower(strings.TrimSpace(id)) }

// lookup finds id without falling back.
func (r *Resolver) lookup(id string) (Identity, bool, error) {
	key := normalizeID(id)
	if target, ok := r.aliases[key]; ok {
		key = target
	}
	if p, ok := r.presets[key]; ok {
		return p, true, nil
	}
	custom, err := r.loadCustom()
	if err != nil {
		return Identity{}, false, err
	}
	if e, ok := custom[key]; ok {
		return customIdentity(key, e), true, nil
	}
	return Identity{}, false, nil
}

// Resolve maps id to a voice: preset aliases and presets first, then custom
// voices, then the default voice with Fallback set. An empty id selects the
// default voice without a fallback. The result fails with a voice-not-found
// error only when its reference audio is missing on disk.
func (r *Resolver) Resolve(ctx context.Context, id string) (Resolution, error) {
	res := Resolution{Requested: id}
	ident, ok, err := r.lookup(id)
	if err != nil {
		return res, err
	}
	if !ok {
		if strings.TrimSpace(id) != "" {
			res.Fallback = true
			r.log.Warn().Str("voice", id).Msg("unknown voice, using default")
		}
		ident = r.presets[DefaultID]
	}
	res.Identity = ident
	if p := ident.ReferenceAudioPath; p != "" && !fsutil.IsRegularFile(p) {
		return res, missingAudioError{ID: ident.ID, Path: p}
	}
	return res, nil
}

// Get returns the identity registered under id, without fallback.
func (r *Resolver) Get(id string) (Identity, error) {
	ident, ok, err := r.lookup(id)
	if err != nil {
		return Identity{}, err
	}
	if !ok {
		return Identity{}, notFoundError{ID: id}
	}
	return ident, nil
}

// List returns the preset voice names clients may request: the OpenAI
// aliases followed by the shipped presets, sorted within each group.
func (r *Resolver) List() []Identity {
	out := make([]Identity, 0, len(r.aliases)+len(r.presets))
	for _, name := range OpenAIVoices {
		if target, ok := r.aliases[name]; ok {
			p := r.presets[target]
			p.ID, p.DisplayName = name, name
			out = append(out, p)
		}
	}
	ids := make([]string, 0, len(r.presets))
	for id := range r.presets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		out = append(out, r.presets[id])
	}
	return out
}

// ListCustom returns the custom voices ordered by creation time.
func (r *Resolver) ListCustom() ([]Identity, error) {
	custom, err := r.loadCustom()
	if err != nil {
		return nil, err
	}
	out := make([]Identity, 0, len(custom))
	for id, e := range custom {
		out = append(out, customIdentity(id, e))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func customIdentity(id string, e entry) Identity {
	return Identity{
		ID:                  id,
		Kind:                KindCustom,
		DisplayName:         e.Name,
		ReferenceAudioPath:  e.Path,
		ReferenceTranscript: e.Text,
		CreatedAt:           time.Unix(e.CreatedAt, 0),
	}
}

func (r *Resolver) audioPath(id string) string {
	return filepath.Join(r.voicesDir, id+".wav")
}

// Adhoc builds a resolution for reference audio supplied with a request
// rather than registered, such as a one-off upload.
func Adhoc(path, transcript string) (Resolution, error) {
	res := Resolution{
		Requested: path,
		Identity: Identity{
			ID:                  "adhoc",
			Kind:                KindCustom,
			DisplayName:         filepath.Base(path),
			ReferenceAudioPath:  path,
			ReferenceTranscript: transcript,
		},
	}
	if !fsutil.IsRegularFile(path) {
		return res, missingAudioError{ID: "adhoc", Path: path}
	}
	return res, nil
}
