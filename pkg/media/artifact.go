package media

import (
	"fmt"
	"os"
	"time"
)

// Kind distinguishes what produced an artifact.
type Kind string

const (
	KindGreeting  Kind = "greeting"
	KindRecording Kind = "recording"
)

// Artifact is an audio file on disk produced by synthesis or capture.
type Artifact struct {
	Path     string        `json:"path"`
	Kind     Kind          `json:"kind"`
	Expected time.Duration `json:"expected,omitempty"`
	Actual   time.Duration `json:"actual,omitempty"`
	Size     int64         `json:"size"`
}

// NewArtifact stats path and fills Size. WAV files also get Actual filled in;
// a header that cannot be parsed leaves Actual at zero.
func NewArtifact(path string, kind Kind) (*Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	a := &Artifact{
		Path: path,
		Kind: kind,
		Size: info.Size(),
	}
	if d, err := WAVDuration(path); err == nil {
		a.Actual = d
	}
	return a, nil
}

// Exists reports whether the artifact file is still present and non-empty.
func (a *Artifact) Exists() bool {
	if a == nil || a.Path == "" {
		return false
	}
	info, err := os.Stat(a.Path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

func (a *Artifact) String() string {
	if a == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s(%s, %d bytes, %s)", a.Kind, a.Path, a.Size, a.Actual)
}
