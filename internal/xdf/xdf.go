package xdf

import (
	"errors"
	"strconv"
	"strings"
)

// Chunk tags defined by the XDF 1.0 container format.
const (
	tagFileHeader   = 1
	tagStreamHeader = 2
	tagSamples      = 3
	tagClockOffset  = 4
	tagBoundary     = 5
	tagStreamFooter = 6
)

// SampleFormat is the per-channel value encoding declared by a stream.
type SampleFormat string

const (
	FormatFloat32 SampleFormat = "float32"
	FormatDouble  SampleFormat = "double64"
	FormatInt8    SampleFormat = "int8"
	FormatInt16   SampleFormat = "int16"
	FormatInt32   SampleFormat = "int32"
	FormatInt64   SampleFormat = "int64"
	FormatString  SampleFormat = "string"
)

var (
	ErrNotXDF          = errors.New("not an XDF file")
	ErrNoEEGStream     = errors.New("no EEG stream found")
	ErrNoMarkerStream  = errors.New("no marker stream found")
	ErrUnknownFormat   = errors.New("unknown channel format")
	ErrMalformedHeader = errors.New("malformed stream header")
)

// ChannelMeta is the per-channel metadata a stream header may carry.
// Location coordinates are kept as raw strings; the montage layer decides
// how to interpret them.
type ChannelMeta struct {
	Label            string
	Type             string
	Unit             string
	HasLocation      bool
	LocX, LocY, LocZ string
}

// ClockOffset is one clock-synchronization measurement for a stream.
type ClockOffset struct {
	CollectionTime float64
	Offset         float64
}

// Stream is one sub-stream of an XDF recording: metadata from its header
// plus the collected sample data. Numeric streams fill Series
// (channel-major); string streams fill Values (one string per sample).
type Stream struct {
	ID           uint32
	Name         string
	Type         string
	ChannelCount int
	NominalRate  float64
	Format       SampleFormat
	Channels     []ChannelMeta

	Series       [][]float64
	Values       []string
	Timestamps   []float64
	ClockOffsets []ClockOffset
}

// NSamples returns the number of samples collected for the stream.
func (s *Stream) NSamples() int { return len(s.Timestamps) }

// EffectiveRate estimates the realized sampling rate from the collected
// timestamps, falling back to the nominal rate when there are too few
// samples to tell.
func (s *Stream) EffectiveRate() float64 {
	n := len(s.Timestamps)
	if n < 2 {
		return s.NominalRate
	}
	span := s.Timestamps[n-1] - s.Timestamps[0]
	if span <= 0 {
		return s.NominalRate
	}
	return float64(n-1) / span
}

// ChannelLabels returns the labels from the stream metadata, generating
// Ch1..ChN placeholders when the header omitted them.
func (s *Stream) ChannelLabels() []string {
	labels := make([]string, s.ChannelCount)
	for i := range labels {
		if i < len(s.Channels) && s.Channels[i].Label != "" {
			labels[i] = s.Channels[i].Label
		} else {
			labels[i] = defaultLabel(i)
		}
	}
	return labels
}

// matches reports whether the stream's type, or failing that its name,
// contains the given tag case-insensitively. Stream order in the file is
// deliberately never consulted: capture software does not guarantee it.
func (s *Stream) matches(tag string) bool {
	if strings.Contains(strings.ToLower(s.Type), tag) {
		return true
	}
	return strings.Contains(strings.ToLower(s.Name), tag)
}

// File is a fully read XDF recording.
type File struct {
	Version string
	Streams []*Stream
}

// EEGStream selects the EEG sub-stream by metadata tag inspection.
func (f *File) EEGStream() (*Stream, error) {
	for _, s := range f.Streams {
		if s.matches("eeg") {
			return s, nil
		}
	}
	return nil, ErrNoEEGStream
}

// MarkerStream selects the marker sub-stream by metadata tag inspection.
func (f *File) MarkerStream() (*Stream, error) {
	for _, s := range f.Streams {
		if s.matches("marker") {
			return s, nil
		}
	}
	return nil, ErrNoMarkerStream
}

func defaultLabel(i int) string {
	return "Ch" + strconv.Itoa(i+1)
}
