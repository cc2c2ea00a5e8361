// Package pipeline turns a synthesis request into framed audio bytes.
//
// A request moves through resolving, acquiring, generating, encoding and
// streaming, ending in done or failed. Raw PCM is written chunk by chunk as
// the model produces it; container formats are generated in full, framed as
// WAV and handed to the external encoder, falling back to the WAV when the
// encoder fails. The model's use-slot is held for the whole generation call
// and a generation error evicts the model.
package pipeline
