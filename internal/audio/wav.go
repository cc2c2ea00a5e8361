package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const wavHeaderLen = 44

// ErrNotWAV is returned by ParseWAV for input that is not RIFF/WAVE.
var ErrNotWAV = errors.New("not a RIFF/WAVE stream")

// WAVInfo describes a PCM WAV stream.
type WAVInfo struct {
	SampleRate    int           `json:"sample_rate"`
	Channels      int           `json:"channels"`
	BitsPerSample int           `json:"bits_per_sample"`
	DataBytes     int           `json:"data_bytes"`
	Duration      time.Duration `json:"duration"`
	// Offset of the data chunk payload.
	DataOffset int `json:"-"`
}

// Frames is the number of sample frames in the data chunk.
func (w WAVInfo) Frames() int {
	bps := w.Channels * w.BitsPerSample / 8
	if bps == 0 {
		return 0
	}
	return w.DataBytes / bps
}

// FrameWAV wraps PCM16 data in a canonical 44-byte WAV header.
func FrameWAV(pcm []byte, sampleRate, channels int) []byte {
	out := make([]byte, 0, wavHeaderLen+len(pcm))
	le := binary.LittleEndian
	blockAlign := channels * 2
	out = append(out, "RIFF"...)
	out = le.AppendUint32(out, uint32(36+len(pcm)))
	out = append(out, "WAVE"...)
	out = append(out, "fmt "...)
	out = le.AppendUint32(out, 16)
	out = le.AppendUint16(out, 1) // PCM
	out = le.AppendUint16(out, uint16(channels))
	out = le.AppendUint32(out, uint32(sampleRate))
	out = le.AppendUint32(out, uint32(sampleRate*blockAlign))
	out = le.AppendUint16(out, uint16(blockAlign))
	out = le.AppendUint16(out, 16)
	out = append(out, "data"...)
	out = le.AppendUint32(out, uint32(len(pcm)))
	return append(out, pcm...)
}

// EncodeWAV frames mono float32 samples as a 16-bit PCM WAV.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	return FrameWAV(PCM16(samples), sampleRate, 1)
}

// ParseWAV walks the RIFF chunks of data and reports the format and data
// chunk location. Only integer PCM (format 1) is accepted.
func ParseWAV(data []byte) (WAVInfo, error) {
	le := binary.LittleEndian
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return WAVInfo{}, ErrNotWAV
	}
	var info WAVInfo
	haveFmt := false
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(le.Uint32(data[off+4:]))
		body := off + 8
		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return WAVInfo{}, fmt.Errorf("wav: short fmt chunk")
			}
			if tag := le.Uint16(data[body:]); tag != 1 {
				return WAVInfo{}, fmt.Errorf("wav: unsupported format tag %d", tag)
			}
			info.Channels = int(le.Uint16(data[body+2:]))
			info.SampleRate = int(le.Uint32(data[body+4:]))
			info.BitsPerSample = int(le.Uint16(data[body+14:]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return WAVInfo{}, fmt.Errorf("wav: data chunk before fmt chunk")
			}
			info.DataOffset = body
			info.DataBytes = min(size, len(data)-body)
			if info.SampleRate > 0 {
				info.Duration = time.Duration(float64(info.Frames()) / float64(info.SampleRate) * float64(time.Second))
			}
			return info, nil
		}
		off = body + size + size%2
	}
	return WAVInfo{}, fmt.Errorf("wav: missing data chunk")
}
