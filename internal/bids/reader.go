package bids

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/JVHannila/MoBI-project/internal/brainvision"
	"github.com/JVHannila/MoBI-project/internal/eeg"
)

// ErrEntryMissing is returned when a standardized entry is not on disk.
var ErrEntryMissing = errors.New("standardized entry missing")

var eventCodePattern = regexp.MustCompile(`^Event_(\d+)$`)

// LoadEntry reads one standardized entry back into a Recording, in volts,
// with its stimulus markers as events and bad-interval markers as
// annotations. This is the preprocessing stage's input path.
func LoadEntry(root, subject, session, task string) (*eeg.Recording, error) {
	base := filepath.Join(EEGDir(root, subject, session),
		fmt.Sprintf("sub-%s_ses-%s_task-%s_eeg", subject, session, task))
	if _, err := os.Stat(base + ".vhdr"); err != nil {
		return nil, fmt.Errorf("%w: sub-%s ses-%s task-%s under %s", ErrEntryMissing, subject, session, task, root)
	}

	bv, err := brainvision.Read(base)
	if err != nil {
		return nil, fmt.Errorf("reading entry sub-%s ses-%s task-%s: %w", subject, session, task, err)
	}

	// Files store microvolts; the in-memory convention is volts.
	data := make([][]float64, len(bv.Data))
	for i, row := range bv.Data {
		v := make([]float64, len(row))
		for j, x := range row {
			v[j] = x * 1e-6
		}
		data[i] = v
	}
	rec, err := eeg.New(bv.ChannelNames, data, bv.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("entry sub-%s ses-%s task-%s: %w", subject, session, task, err)
	}

	for _, m := range bv.Markers {
		onset := float64(m.Position-1) / bv.SampleRate
		switch m.Type {
		case brainvision.MarkerStimulus:
			code := -1
			if g := eventCodePattern.FindStringSubmatch(m.Description); g != nil {
				if c, err := strconv.Atoi(g[1]); err == nil {
					code = c
				}
			}
			rec.Events = append(rec.Events, eeg.Event{
				Onset:       onset,
				Code:        code,
				Description: m.Description,
			})
		case brainvision.MarkerBadInterval:
			rec.Annotations = append(rec.Annotations, eeg.Annotation{
				Onset:    onset,
				Duration: float64(m.Length) / bv.SampleRate,
				Label:    m.Description,
				Source:   "detector",
			})
		}
	}
	return rec, nil
}
