// Package sonify exports a single EEG channel as audio for auditory
// quality control. Audification catches rhythmic artifacts (line noise,
// cable sway, chewing) that are easy to miss visually. The channel is
// normalized and written as 16-bit PCM WAV at a playback rate well above
// the acquisition rate so the signal lands in the audible range.
package sonify

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/JVHannila/MoBI-project/internal/eeg"
)

// DefaultPlaybackRate speeds a 250 Hz recording up by a factor of 44,
// moving a 50 Hz hum to an audible 2.2 kHz tone.
const DefaultPlaybackRate = 11025

const bitDepth = 16

// Channel writes one channel of the recording as a mono 16-bit PCM WAV at
// the given playback rate (DefaultPlaybackRate when zero). The signal is
// peak-normalized to 90% full scale so quiet channels stay audible.
func Channel(rec *eeg.Recording, channel, outPath string, playbackRate int) error {
	samples, err := rec.Channel(channel)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("channel %q is empty", channel)
	}
	if playbackRate <= 0 {
		playbackRate = DefaultPlaybackRate
	}

	peak := eeg.MaxAbs(samples)
	scale := 0.0
	if peak > 0 {
		scale = 0.9 * float64(math.MaxInt16) / peak
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  playbackRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: bitDepth,
	}
	for i, v := range samples {
		buf.Data[i] = int(math.Round(v * scale))
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating WAV file: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, playbackRate, bitDepth, 1, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encoding WAV: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing WAV: %w", err)
	}
	return nil
}
