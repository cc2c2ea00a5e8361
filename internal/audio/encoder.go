package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Encoder converts audio between representations.
type Encoder interface {
	// Encode converts a PCM16 WAV into f.
	Encode(ctx context.Context, wav []byte, f Format) ([]byte, error)
	// Normalize converts arbitrary input audio into mono 16-bit PCM WAV at
	// sampleRate.
	Normalize(ctx context.Context, input []byte, sampleRate int) ([]byte, error)
}

// FFmpeg drives an ffmpeg binary over stdin/stdout pipes.
type FFmpeg struct {
	// Bin is the ffmpeg executable; defaults to "ffmpeg" on PATH.
	Bin    string
	Logger zerolog.Logger
}

var _ Encoder = (*FFmpeg)(nil)

// NewFFmpeg returns an encoder using bin.
func NewFFmpeg(bin string, logger zerolog.Logger) *FFmpeg {
	return &FFmpeg{Bin: bin, Logger: logger}
}

func codecArgs(f Format) ([]string, error) {
	switch f {
	case MP3:
		return []string{"-c:a", "libmp3lame", "-b:a", "128k", "-f", "mp3"}, nil
	case Opus:
		return []string{"-c:a", "libopus", "-b:a", "128k", "-f", "ogg"}, nil
	case AAC:
		return []string{"-c:a", "aac", "-b:a", "128k", "-f", "adts"}, nil
	case FLAC:
		return []string{"-c:a", "flac", "-f", "flac"}, nil
	}
	return nil, fmt.Errorf("format %q is not encoded by ffmpeg", f)
}

// Encode implements Encoder.
func (e *FFmpeg) Encode(ctx context.Context, wav []byte, f Format) ([]byte, error) {
	codec, err := codecArgs(f)
	if err != nil {
		return nil, err
	}
	args := append([]string{"-f", "wav", "-i", "pipe:0"}, codec...)
	args = append(args, "pipe:1")
	out, err := e.run(ctx, wav, args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", f, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("encode %s: encoder produced no output", f)
	}
	return out, nil
}

// Normalize implements Encoder. ffmpeg emits raw s16le so the WAV header can
// carry exact sizes, which a piped ffmpeg WAV muxer cannot.
func (e *FFmpeg) Normalize(ctx context.Context, input []byte, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("normalize: invalid sample rate %d", sampleRate)
	}
	pcm, err := e.run(ctx, input,
		"-i", "pipe:0",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		"-f", "s16le",
		"pipe:1",
	)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	if len(pcm) < 2 {
		return nil, errors.New("normalize: no audio decoded")
	}
	return FrameWAV(pcm[:len(pcm)&^1], sampleRate, 1), nil
}

func (e *FFmpeg) bin() string {
	if strings.TrimSpace(e.Bin) == "" {
		return "ffmpeg"
	}
	return e.Bin
}

// run feeds input to ffmpeg and collects its output. Writing and reading
// happen concurrently; otherwise a large input deadlocks against a full
// stdout pipe.
func (e *FFmpeg) run(ctx context.Context, input []byte, args ...string) ([]byte, error) {
	full := append([]string{"-hide_banner", "-loglevel", "error"}, args...)
	cmd := exec.CommandContext(ctx, e.bin(), full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var out []byte
	var g errgroup.Group
	g.Go(func() error {
		_, err := stdin.Write(input)
		if cerr := stdin.Close(); err == nil {
			err = cerr
		}
		return err
	})
	g.Go(func() error {
		var err error
		out, err = io.ReadAll(stdout)
		return err
	})
	ioErr := g.Wait()
	waitErr := cmd.Wait()
	if waitErr != nil {
		msg := strings.TrimSpace(stderr.String())
		e.Logger.Debug().Err(waitErr).Str("stderr", msg).Strs("args", args).Msg("ffmpeg failed")
		if msg != "" {
			return nil, fmt.Errorf("%w: %s", waitErr, lastLine(msg))
		}
		return nil, waitErr
	}
	if ioErr != nil {
		return nil, ioErr
	}
	return out, nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
