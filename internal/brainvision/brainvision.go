// Package brainvision reads and writes the subset of the BrainVision
// Core Data Format 1.0 that the conversion pipeline produces: an
// IEEE_FLOAT_32 MULTIPLEXED data file, a text header, and a marker file
// carrying stimulus events and bad-interval annotations.
package brainvision

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Marker types used by the pipeline. Stimulus markers carry experiment
// events; Bad Interval markers carry artifact annotations.
const (
	MarkerStimulus    = "Stimulus"
	MarkerBadInterval = "Bad Interval"
	MarkerNewSegment  = "New Segment"
)

var (
	ErrNotBrainVision = errors.New("not a BrainVision header file")
	ErrUnsupported    = errors.New("unsupported BrainVision variant")
)

// Marker is one entry of the .vmrk file. Position and Length are in data
// points; Position is 1-based per the format.
type Marker struct {
	Type        string
	Description string
	Position    int
	Length      int
	Channel     int
}

// Recording is the in-memory form of a BrainVision triple. Data is
// channel-major in microvolts, the unit the files are written in.
type Recording struct {
	ChannelNames []string
	Data         [][]float64
	SampleRate   float64
	Markers      []Marker
}

// Write produces the .vhdr/.vmrk/.eeg triple for basePath (path without
// extension). The data file is multiplexed float32 little-endian at
// resolution 1 µV.
func Write(basePath string, rec *Recording) error {
	if len(rec.ChannelNames) != len(rec.Data) {
		return fmt.Errorf("channel names and data rows do not match: %d vs %d", len(rec.ChannelNames), len(rec.Data))
	}
	if rec.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %g", rec.SampleRate)
	}

	base := filepath.Base(basePath)
	if err := writeHeader(basePath+".vhdr", base, rec); err != nil {
		return err
	}
	if err := writeMarkers(basePath+".vmrk", base, rec.Markers); err != nil {
		return err
	}
	return writeData(basePath+".eeg", rec)
}

func writeHeader(path, base string, rec *Recording) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating header file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "Brain Vision Data Exchange Header File Version 1.0")
	fmt.Fprintln(w, "; Written by the MoBI conversion pipeline")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[Common Infos]")
	fmt.Fprintln(w, "Codepage=UTF-8")
	fmt.Fprintf(w, "DataFile=%s.eeg\n", base)
	fmt.Fprintf(w, "MarkerFile=%s.vmrk\n", base)
	fmt.Fprintln(w, "DataFormat=BINARY")
	fmt.Fprintln(w, "DataOrientation=MULTIPLEXED")
	fmt.Fprintf(w, "NumberOfChannels=%d\n", len(rec.ChannelNames))
	// SamplingInterval is in microseconds.
	fmt.Fprintf(w, "SamplingInterval=%g\n", 1e6/rec.SampleRate)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[Binary Infos]")
	fmt.Fprintln(w, "BinaryFormat=IEEE_FLOAT_32")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[Channel Infos]")
	for i, name := range rec.ChannelNames {
		// Ch<n>=<name>,<reference>,<resolution>,<unit>
		fmt.Fprintf(w, "Ch%d=%s,,1,µV\n", i+1, escapeChannelName(name))
	}
	return w.Flush()
}

func writeMarkers(path, base string, markers []Marker) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating marker file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "Brain Vision Data Exchange Marker File, Version 1.0")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[Common Infos]")
	fmt.Fprintln(w, "Codepage=UTF-8")
	fmt.Fprintf(w, "DataFile=%s.eeg\n", base)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[Marker Infos]")
	fmt.Fprintln(w, "Mk1=New Segment,,1,1,0")
	for i, m := range markers {
		fmt.Fprintf(w, "Mk%d=%s,%s,%d,%d,%d\n",
			i+2, m.Type, escapeMarkerDescription(m.Description), m.Position, m.Length, m.Channel)
	}
	return w.Flush()
}

func writeData(path string, rec *Recording) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating data file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, 1<<16)
	n := 0
	if len(rec.Data) > 0 {
		n = len(rec.Data[0])
	}
	var buf [4]byte
	for s := 0; s < n; s++ {
		for c := range rec.Data {
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(float32(rec.Data[c][s])))
			if _, err := w.Write(buf[:]); err != nil {
				return fmt.Errorf("writing sample %d: %w", s, err)
			}
		}
	}
	return w.Flush()
}

// Read loads a BrainVision triple from basePath (path without extension).
// Only the variant this package writes is supported: binary multiplexed
// IEEE float32.
func Read(basePath string) (*Recording, error) {
	hdr, err := readHeader(basePath + ".vhdr")
	if err != nil {
		return nil, err
	}

	rec := &Recording{ChannelNames: hdr.channelNames, SampleRate: hdr.sampleRate}

	if err := readData(filepath.Join(filepath.Dir(basePath), hdr.dataFile), rec); err != nil {
		return nil, err
	}

	markers, err := readMarkers(filepath.Join(filepath.Dir(basePath), hdr.markerFile))
	if err != nil {
		return nil, err
	}
	rec.Markers = markers
	return rec, nil
}

type headerInfo struct {
	dataFile     string
	markerFile   string
	channelNames []string
	sampleRate   float64
}

func readHeader(path string) (*headerInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening header file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() || !strings.HasPrefix(sc.Text(), "Brain Vision Data Exchange Header File") {
		return nil, fmt.Errorf("%w: %s", ErrNotBrainVision, path)
	}

	hdr := &headerInfo{}
	channels := map[int]string{}
	nChannels := 0
	section := ""
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			section = line
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch section {
		case "[Common Infos]":
			switch key {
			case "DataFile":
				hdr.dataFile = value
			case "MarkerFile":
				hdr.markerFile = value
			case "DataFormat":
				if value != "BINARY" {
					return nil, fmt.Errorf("%w: DataFormat=%s", ErrUnsupported, value)
				}
			case "DataOrientation":
				if value != "MULTIPLEXED" {
					return nil, fmt.Errorf("%w: DataOrientation=%s", ErrUnsupported, value)
				}
			case "NumberOfChannels":
				nChannels, err = strconv.Atoi(value)
				if err != nil {
					return nil, fmt.Errorf("parsing NumberOfChannels: %w", err)
				}
			case "SamplingInterval":
				interval, err := strconv.ParseFloat(value, 64)
				if err != nil || interval <= 0 {
					return nil, fmt.Errorf("invalid SamplingInterval %q", value)
				}
				hdr.sampleRate = 1e6 / interval
			}
		case "[Binary Infos]":
			if key == "BinaryFormat" && value != "IEEE_FLOAT_32" {
				return nil, fmt.Errorf("%w: BinaryFormat=%s", ErrUnsupported, value)
			}
		case "[Channel Infos]":
			if !strings.HasPrefix(key, "Ch") {
				continue
			}
			idx, err := strconv.Atoi(key[2:])
			if err != nil {
				continue
			}
			fields := strings.Split(value, ",")
			channels[idx] = unescapeChannelName(fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading header file: %w", err)
	}

	if nChannels == 0 || hdr.sampleRate == 0 || hdr.dataFile == "" {
		return nil, fmt.Errorf("%w: incomplete header %s", ErrNotBrainVision, path)
	}
	hdr.channelNames = make([]string, nChannels)
	for i := 1; i <= nChannels; i++ {
		name, ok := channels[i]
		if !ok {
			return nil, fmt.Errorf("header %s is missing Ch%d", path, i)
		}
		hdr.channelNames[i-1] = name
	}
	return hdr, nil
}

func readData(path string, rec *Recording) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading data file: %w", err)
	}
	nCh := len(rec.ChannelNames)
	if nCh == 0 {
		return nil
	}
	if len(raw)%(4*nCh) != 0 {
		return fmt.Errorf("data file %s is not a whole number of %d-channel float32 samples", path, nCh)
	}
	nSamples := len(raw) / (4 * nCh)

	rec.Data = make([][]float64, nCh)
	for c := range rec.Data {
		rec.Data[c] = make([]float64, nSamples)
	}
	for s := 0; s < nSamples; s++ {
		for c := 0; c < nCh; c++ {
			bits := binary.LittleEndian.Uint32(raw[4*(s*nCh+c):])
			rec.Data[c][s] = float64(math.Float32frombits(bits))
		}
	}
	return nil
}

func readMarkers(path string) ([]Marker, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening marker file: %w", err)
	}
	defer f.Close()

	var markers []Marker
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "Mk") {
			continue
		}
		_, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		fields := splitMarkerFields(value)
		if len(fields) < 5 {
			continue
		}
		if fields[0] == MarkerNewSegment {
			continue
		}
		pos, err1 := strconv.Atoi(fields[2])
		length, err2 := strconv.Atoi(fields[3])
		channel, err3 := strconv.Atoi(fields[4])
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("malformed marker line %q in %s", line, path)
		}
		markers = append(markers, Marker{
			Type:        fields[0],
			Description: unescapeMarkerDescription(fields[1]),
			Position:    pos,
			Length:      length,
			Channel:     channel,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading marker file: %w", err)
	}
	return markers, nil
}

// Commas inside descriptions are escaped as \1 per the format spec.
func escapeMarkerDescription(s string) string { return strings.ReplaceAll(s, ",", `\1`) }

func unescapeMarkerDescription(s string) string { return strings.ReplaceAll(s, `\1`, ",") }

func escapeChannelName(s string) string { return strings.ReplaceAll(s, ",", `\1`) }

func unescapeChannelName(s string) string { return strings.ReplaceAll(s, `\1`, ",") }

func splitMarkerFields(s string) []string {
	// Descriptions escape their commas, so a plain split is safe.
	return strings.Split(s, ",")
}
