package eeg

import (
	"errors"
	"fmt"
	"math"
)

// DefaultSampleRate is the nominal acquisition rate of the study hardware.
const DefaultSampleRate = 250.0

// unitHeuristicThreshold decides whether raw samples are volts or microvolts:
// scalp EEG never reaches a millivolt, so anything above it must be µV.
const unitHeuristicThreshold = 1e-3

// motionChannelNames are the IMU channels the headset interleaves with EEG.
var motionChannelNames = map[string]bool{
	"AccX": true, "AccY": true, "AccZ": true,
	"GyroX": true, "GyroY": true, "GyroZ": true,
	"QuatW": true, "QuatX": true, "QuatY": true, "QuatZ": true,
}

// IsMotionChannel reports whether a channel label belongs to the IMU.
func IsMotionChannel(name string) bool {
	return motionChannelNames[name]
}

// Recording is a fixed-rate multichannel time series in volts, channel-major,
// plus the marker events and annotations that ride on its timeline.
// StartTime is in seconds on the capture clock, not wall time.
type Recording struct {
	ChannelNames []string
	Data         [][]float64
	SampleRate   float64
	StartTime    float64
	Annotations  []Annotation
	Events       []Event
}

// ErrChannelMismatch is returned when channel names and data rows disagree.
var ErrChannelMismatch = errors.New("channel names and data rows do not match")

// New builds a Recording and checks the channel/data shape once, so the
// rest of the pipeline can index freely.
func New(names []string, data [][]float64, sampleRate float64) (*Recording, error) {
	if len(names) != len(data) {
		return nil, fmt.Errorf("%w: %d names, %d rows", ErrChannelMismatch, len(names), len(data))
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %g", sampleRate)
	}
	n := -1
	for i, row := range data {
		if n == -1 {
			n = len(row)
		} else if len(row) != n {
			return nil, fmt.Errorf("%w: channel %s has %d samples, expected %d", ErrChannelMismatch, names[i], len(row), n)
		}
	}
	return &Recording{ChannelNames: names, Data: data, SampleRate: sampleRate}, nil
}

// NSamples returns the per-channel sample count.
func (r *Recording) NSamples() int {
	if len(r.Data) == 0 {
		return 0
	}
	return len(r.Data[0])
}

// NChannels returns the channel count.
func (r *Recording) NChannels() int { return len(r.ChannelNames) }

// Duration returns the recording length in seconds.
func (r *Recording) Duration() float64 {
	if r.SampleRate <= 0 {
		return 0
	}
	return float64(r.NSamples()) / r.SampleRate
}

// ChannelIndex returns the row index for a channel label.
func (r *Recording) ChannelIndex(name string) (int, bool) {
	for i, n := range r.ChannelNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// Channel returns the samples for a channel label.
func (r *Recording) Channel(name string) ([]float64, error) {
	i, ok := r.ChannelIndex(name)
	if !ok {
		return nil, fmt.Errorf("no such channel %q", name)
	}
	return r.Data[i], nil
}

// SplitMotion separates IMU channels from EEG channels. Either result may be
// nil when the recording has no channels of that kind.
func (r *Recording) SplitMotion() (eegRec, motionRec *Recording) {
	var eegNames, motionNames []string
	var eegData, motionData [][]float64

	for i, name := range r.ChannelNames {
		if IsMotionChannel(name) {
			motionNames = append(motionNames, name)
			motionData = append(motionData, r.Data[i])
		} else {
			eegNames = append(eegNames, name)
			eegData = append(eegData, r.Data[i])
		}
	}

	if len(eegNames) > 0 {
		eegRec = &Recording{
			ChannelNames: eegNames, Data: eegData,
			SampleRate: r.SampleRate, StartTime: r.StartTime,
			Annotations: r.Annotations, Events: r.Events,
		}
	}
	if len(motionNames) > 0 {
		motionRec = &Recording{
			ChannelNames: motionNames, Data: motionData,
			SampleRate: r.SampleRate, StartTime: r.StartTime,
		}
	}
	return eegRec, motionRec
}

// ScaleToVolts applies the unit heuristic from the acquisition software:
// when any sample exceeds 1 mV the data must be in µV and is scaled down.
// Reports whether scaling happened.
func (r *Recording) ScaleToVolts() bool {
	peak := 0.0
	for _, row := range r.Data {
		if m := MaxAbs(row); m > peak {
			peak = m
		}
	}
	if peak <= unitHeuristicThreshold {
		return false
	}
	for _, row := range r.Data {
		for i := range row {
			row[i] *= 1e-6
		}
	}
	return true
}

// Segment copies samples [from, to) of every channel, clamping the bounds.
// Used by the review server to page through a recording.
func (r *Recording) Segment(from, to int) [][]float64 {
	n := r.NSamples()
	if from < 0 {
		from = 0
	}
	if to > n {
		to = n
	}
	if from >= to {
		return make([][]float64, r.NChannels())
	}
	out := make([][]float64, r.NChannels())
	for i, row := range r.Data {
		seg := make([]float64, to-from)
		copy(seg, row[from:to])
		out[i] = seg
	}
	return out
}

// SampleAt converts a time offset in seconds to the nearest sample index.
func (r *Recording) SampleAt(t float64) int {
	return int(math.Round(t * r.SampleRate))
}
