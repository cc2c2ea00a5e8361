package voice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"voxd/internal/audio"
	"voxd/internal/common/fsutil"
	"voxd/internal/store"
)

// Create registers uploaded audio as a custom voice. The id is the content
// hash of the upload, so identical bytes always map to the same voice and a
// repeated upload only refreshes the name and transcript.
func (r *Resolver) Create(ctx context.Context, data []byte, filename, name, transcript string) (Identity, error) {
	if len(data) == 0 {
		return Identity{}, invalidInputError{msg: "audio is empty"}
	}
	id := store.HashBytes(data).String()
	name = strings.TrimSpace(name)
	if name == "" {
		name = id[:12]
	}

	wav, err := r.normalize(ctx, data)
	if err != nil {
		return Identity{}, err
	}
	info, err := audio.ParseWAV(wav)
	if err != nil {
		return Identity{}, fmt.Errorf("normalized audio: %w", err)
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" && r.transcriber != nil {
		text, err := r.transcriber.Transcribe(ctx, data, filename)
		if err != nil {
			return Identity{}, fmt.Errorf("transcript not provided and transcription failed: %w", err)
		}
		transcript = text
	}
	if transcript == "" {
		return Identity{}, invalidInputError{msg: "transcript is required"}
	}

	path := r.audioPath(id)
	if err := fsutil.WriteFileAtomic(path, wav, 0o644); err != nil {
		return Identity{}, fmt.Errorf("store voice audio: %w", err)
	}
	if r.store != nil {
		meta := AudioMeta{
			SampleRate:      info.SampleRate,
			Channels:        info.Channels,
			DurationSeconds: info.Duration.Seconds(),
			Bytes:           len(wav),
			OriginalBytes:   len(data),
			Filename:        filename,
		}
		if err := r.store.PutJSON(store.NamespaceAudioMeta, store.Key(id), meta); err != nil {
			r.log.Warn().Err(err).Str("voice", id).Msg("audio metadata not cached")
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	custom, err := r.loadCustom()
	if err != nil {
		return Identity{}, err
	}
	e := entry{Path: path, Text: transcript, Name: name, CreatedAt: r.now().Unix()}
	if prev, ok := custom[id]; ok {
		e.CreatedAt = prev.CreatedAt
	}
	custom[id] = e
	if err := r.saveCustom(custom); err != nil {
		return Identity{}, err
	}
	r.log.Info().Str("voice", id).Str("name", name).Dur("duration", info.Duration).Msg("custom voice stored")
	return customIdentity(id, e), nil
}

// normalize converts the upload to mono PCM16 WAV at the canonical rate.
// Without an encoder only WAV uploads already in that shape are accepted.
func (r *Resolver) normalize(ctx context.Context, data []byte) ([]byte, error) {
	if r.encoder != nil {
		wav, err := r.encoder.Normalize(ctx, data, r.rate)
		if err != nil {
			return nil, invalidInputError{msg: "could not decode audio: " + err.Error()}
		}
		return wav, nil
	}
	info, err := audio.ParseWAV(data)
	if err != nil {
		return nil, invalidInputError{msg: "no encoder configured and upload is not a PCM WAV"}
	}
	if info.Channels != 1 || info.BitsPerSample != 16 || info.SampleRate != r.rate {
		return nil, invalidInputError{msg: fmt.Sprintf("no encoder configured; upload must be mono 16-bit %d Hz WAV", r.rate)}
	}
	return audio.FrameWAV(data[info.DataOffset:info.DataOffset+info.DataBytes], r.rate, 1), nil
}

// Delete removes a custom voice: its audio, cached metadata and registry
// entry. Presets cannot be deleted.
func (r *Resolver) Delete(id string) error {
	key := normalizeID(id)
	if r.IsPreset(key) {
		return forbiddenError{ID: id}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	custom, err := r.loadCustom()
	if err != nil {
		return err
	}
	e, ok := custom[key]
	if !ok {
		return notFoundError{ID: id}
	}
	path := e.Path
	if path == "" {
		path = r.audioPath(key)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove voice audio: %w", err)
	}
	if r.store != nil {
		if err := r.store.Delete(store.NamespaceAudioMeta, store.Key(key)); err != nil {
			r.log.Warn().Err(err).Str("voice", key).Msg("audio metadata not removed")
		}
	}
	delete(custom, key)
	if err := r.saveCustom(custom); err != nil {
		return err
	}
	r.log.Info().Str("voice", key).Msg("custom voice deleted")
	return nil
}
