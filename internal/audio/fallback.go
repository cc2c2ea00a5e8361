package audio

import (
	"context"
	"errors"
)

// Encoded is the outcome of EncodeOrFallback.
type Encoded struct {
	Data []byte
	// Format of Data. Differs from the requested format when FellBack is set.
	Format Format
	// FellBack reports that encoding failed and Data is the original WAV.
	FellBack bool
	// Err is the encoder failure that caused the fallback.
	Err error
}

var errNoEncoder = errors.New("no encoder configured")

// EncodeOrFallback converts wav into f. When f needs the encoder and the
// encoder fails, the WAV bytes are returned unchanged with FellBack set.
func EncodeOrFallback(ctx context.Context, enc Encoder, wav []byte, f Format) Encoded {
	if !f.NeedsEncoder() {
		return Encoded{Data: wav, Format: WAV}
	}
	if enc == nil {
		return Encoded{Data: wav, Format: WAV, FellBack: true, Err: errNoEncoder}
	}
	out, err := enc.Encode(ctx, wav, f)
	if err != nil {
		return Encoded{Data: wav, Format: WAV, FellBack: true, Err: err}
	}
	return Encoded{Data: out, Format: f}
}
