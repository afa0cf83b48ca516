// Package montage maps electrode labels to 3D head positions. A montage
// comes from one of three places, tried in order by the conversion
// pipeline: per-channel locations embedded in the XDF metadata, an external
// TSV layout file, or the built-in PROX-64 cap table.
package montage

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JVHannila/MoBI-project/internal/xdf"
)

// ErrNoOverlap is returned when a montage shares no electrode labels with
// the recording it is applied to.
var ErrNoOverlap = errors.New("montage channels do not intersect recording channels")

// Position is an electrode location in meters, head coordinate frame:
// +X right, +Y anterior, +Z superior.
type Position struct {
	X, Y, Z float64
}

// Montage is a named electrode layout with idealized fiducial points.
type Montage struct {
	Name      string
	Positions map[string]Position
	LPA       Position
	RPA       Position
	Nasion    Position
}

// Electrode pairs a label with its resolved position, for the sidecar table.
type Electrode struct {
	Name     string
	Position Position
}

// Apply resolves the montage against a recording's channel names. The
// montage may cover extra electrodes (reference, ground) but must share at
// least one label with the recording or the layout does not belong to this
// hardware. The result is sorted in recording channel order.
func (m *Montage) Apply(channelNames []string) ([]Electrode, error) {
	var out []Electrode
	for _, name := range channelNames {
		if pos, ok := m.Positions[name]; ok {
			out = append(out, Electrode{Name: name, Position: pos})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: montage %q has %d electrodes, recording has %d channels",
			ErrNoOverlap, m.Name, len(m.Positions), len(channelNames))
	}
	return out, nil
}

// Labels returns the electrode labels in sorted order.
func (m *Montage) Labels() []string {
	labels := make([]string, 0, len(m.Positions))
	for name := range m.Positions {
		labels = append(labels, name)
	}
	sort.Strings(labels)
	return labels
}

// FromXDF builds a montage from the per-channel <location> metadata of an
// EEG stream, restricted to the channels that will actually become EEG
// channels. XDF locations are in millimeters. Channels with unparseable
// coordinates are skipped with a warning; an empty result means the file
// carries no usable layout and the caller should fall back.
func FromXDF(stream *xdf.Stream, eegChannels []string, log *zap.Logger) *Montage {
	wanted := make(map[string]bool, len(eegChannels))
	for _, name := range eegChannels {
		wanted[name] = true
	}

	positions := map[string]Position{}
	for _, ch := range stream.Channels {
		if !wanted[ch.Label] || !ch.HasLocation {
			continue
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(ch.LocX), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(ch.LocY), 64)
		z, errZ := strconv.ParseFloat(strings.TrimSpace(ch.LocZ), 64)
		if errX != nil || errY != nil || errZ != nil {
			log.Warn("could not parse electrode coordinates from XDF metadata",
				zap.String("channel", ch.Label))
			continue
		}
		positions[ch.Label] = Position{X: x / 1000, Y: y / 1000, Z: z / 1000}
	}
	if len(positions) == 0 {
		return nil
	}
	return &Montage{
		Name:      stream.Name + " (embedded)",
		Positions: positions,
		LPA:       Position{X: -HeadRadius},
		RPA:       Position{X: HeadRadius},
		Nasion:    Position{Y: HeadRadius},
	}
}

// Save writes the montage as a TSV layout file: one electrode per row,
// name and X/Y/Z in meters, with the fiducials as LPA/RPA/Nasion rows.
func (m *Montage) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating montage file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "name\tx\ty\tz")
	writeRow := func(name string, p Position) {
		fmt.Fprintf(w, "%s\t%g\t%g\t%g\n", name, p.X, p.Y, p.Z)
	}
	writeRow("LPA", m.LPA)
	writeRow("RPA", m.RPA)
	writeRow("Nasion", m.Nasion)
	for _, name := range m.Labels() {
		writeRow(name, m.Positions[name])
	}
	return w.Flush()
}

// Load reads a TSV layout file written by Save (or supplied externally in
// the same shape).
func Load(path string) (*Montage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening montage file: %w", err)
	}
	defer f.Close()

	m := &Montage{
		Name:      strings.TrimSuffix(strings.TrimSuffix(path, ".tsv"), ".txt"),
		Positions: map[string]Position{},
	}

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || (lineNo == 1 && strings.HasPrefix(line, "name\t")) {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 4 {
			return nil, fmt.Errorf("montage file %s line %d: expected 4 columns, got %d", path, lineNo, len(fields))
		}
		x, errX := strconv.ParseFloat(fields[1], 64)
		y, errY := strconv.ParseFloat(fields[2], 64)
		z, errZ := strconv.ParseFloat(fields[3], 64)
		if errX != nil || errY != nil || errZ != nil {
			return nil, fmt.Errorf("montage file %s line %d: bad coordinates", path, lineNo)
		}
		p := Position{X: x, Y: y, Z: z}
		switch fields[0] {
		case "LPA":
			m.LPA = p
		case "RPA":
			m.RPA = p
		case "Nasion":
			m.Nasion = p
		default:
			m.Positions[fields[0]] = p
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading montage file: %w", err)
	}
	if len(m.Positions) == 0 {
		return nil, fmt.Errorf("montage file %s contains no electrodes", path)
	}
	return m, nil
}
