package manager

import (
	"os"
	"os/exec"
)

// SanityReport describes runtime checks for external dependencies.
type SanityReport struct {
	EncoderFound  bool   `json:"encoder_found"`
	EncoderPath   string `json:"encoder_path,omitempty"`
	SidecarFound  bool   `json:"sidecar_found"`
	SidecarPath   string `json:"sidecar_path,omitempty"`
	SidecarAttach bool   `json:"sidecar_attach"`
	Error         string `json:"error,omitempty"`
}

// SanityCheck validates that required external binaries are available.
// It does not mutate state and is safe to call at any time. An empty
// sidecar command means the model runs in attach mode and is not checked.
func (m *Manager) SanityCheck() SanityReport {
	var r SanityReport
	bin := m.encoderBin
	if bin == "" {
		bin = "ffmpeg"
	}
	if p, err := resolveBin(bin); err == nil {
		r.EncoderFound, r.EncoderPath = true, p
	} else {
		r.EncoderPath = bin
		r.Error = "encoder: " + err.Error()
	}
	if m.sidecarCmd == "" {
		r.SidecarAttach = true
		r.SidecarFound = true
		return r
	}
	if p, err := resolveBin(m.sidecarCmd); err == nil {
		r.SidecarFound, r.SidecarPath = true, p
	} else {
		r.SidecarPath = m.sidecarCmd
		if r.Error != "" {
			r.Error += "; "
		}
		r.Error += "sidecar: " + err.Error()
	}
	return r
}

// resolveBin finds bin on PATH, or checks it directly when it contains a
// path separator.
func resolveBin(bin string) (string, error) {
	p, err := exec.LookPath(bin)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(p)
	if err != nil {
		return "", err
	}
	if fi.IsDir() {
		return "", &os.PathError{Op: "stat", Path: p, Err: os.ErrInvalid}
	}
	return p, nil
}
