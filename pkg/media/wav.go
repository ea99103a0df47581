package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/youpy/go-wav"
)

// Telephony transport format: G.711 runs at 8 kHz mono, captured as 16-bit PCM.
const (
	TelephonySampleRate = 8000
	TelephonyChannels   = 1
	TelephonyBitDepth   = 16
)

// StreamFormat describes raw PCM layout.
type StreamFormat struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
	BitDepth   int `json:"bit_depth"`
}

// TelephonyFormat is the format recordings are captured in.
func TelephonyFormat() StreamFormat {
	return StreamFormat{
		SampleRate: TelephonySampleRate,
		Channels:   TelephonyChannels,
		BitDepth:   TelephonyBitDepth,
	}
}

// WAVFormat reads the fmt chunk of a WAV file.
func WAVFormat(path string) (StreamFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return StreamFormat{}, err
	}
	defer f.Close()

	format, err := wav.NewReader(f).Format()
	if err != nil {
		return StreamFormat{}, fmt.Errorf("parse wav header: %w", err)
	}
	return StreamFormat{
		SampleRate: int(format.SampleRate),
		Channels:   int(format.NumChannels),
		BitDepth:   int(format.BitsPerSample),
	}, nil
}

// WAVDuration counts the samples of a WAV file.
func WAVDuration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	reader := wav.NewReader(f)
	format, err := reader.Format()
	if err != nil {
		return 0, fmt.Errorf("parse wav header: %w", err)
	}
	if format.SampleRate == 0 {
		return 0, errors.New("wav header has zero sample rate")
	}

	var samples int64
	for {
		chunk, err := reader.ReadSamples(4096)
		samples += int64(len(chunk))
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if samples > 0 {
				// truncated data chunk, e.g. a capture killed mid-write
				break
			}
			return 0, fmt.Errorf("read wav samples: %w", err)
		}
	}
	return time.Duration(samples) * time.Second / time.Duration(format.SampleRate), nil
}

// WriteWAV writes mono 16-bit PCM samples as a WAV file.
func WriteWAV(path string, pcm []int16, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := wav.NewWriter(f, uint32(len(pcm)), 1, uint32(sampleRate), 16)
	samples := make([]wav.Sample, len(pcm))
	for i, v := range pcm {
		samples[i].Values[0] = int(v)
	}
	if err := w.WriteSamples(samples); err != nil {
		return fmt.Errorf("write wav samples: %w", err)
	}
	return nil
}

// Silence returns d worth of zero samples at sampleRate.
func Silence(d time.Duration, sampleRate int) []int16 {
	return make([]int16, int(d.Seconds()*float64(sampleRate)))
}
