package bids

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/JVHannila/MoBI-project/internal/brainvision"
	"github.com/JVHannila/MoBI-project/internal/eeg"
	"github.com/JVHannila/MoBI-project/internal/montage"
)

// ErrEntryExists is returned when writing an entry that is already on disk
// and the overwrite flag was not given.
var ErrEntryExists = errors.New("standardized entry already exists")

// Entry is everything needed to write one standardized dataset entry.
// Recording data is in volts; the files are written in microvolts.
type Entry struct {
	Subject string
	Session string
	Task    string // PascalCase BIDS task label

	Recording  *eeg.Recording
	Motion     *eeg.Recording
	Electrodes []montage.Electrode
	LineFreq   float64

	Overwrite bool
	Anonymize bool
}

func (e *Entry) prefix() string {
	return fmt.Sprintf("sub-%s_ses-%s_task-%s", e.Subject, e.Session, e.Task)
}

// EEGDir returns the directory holding an entry's EEG files.
func EEGDir(root, subject, session string) string {
	return filepath.Join(root, "sub-"+subject, "ses-"+session, "eeg")
}

// MotionDir returns the directory holding an entry's motion files.
func MotionDir(root, subject, session string) string {
	return filepath.Join(root, "sub-"+subject, "ses-"+session, "motion")
}

// WriteEntry writes one standardized entry under root. All files are staged
// into a temporary directory first and moved into place only once every one
// of them has been written, so a failed write never leaves a presentable
// entry behind. Callers register the entry as complete only after this
// returns nil.
func WriteEntry(root string, e *Entry) error {
	if e.Recording == nil || e.Recording.NChannels() == 0 {
		return fmt.Errorf("entry %s has no EEG data", e.prefix())
	}

	eegDir := EEGDir(root, e.Subject, e.Session)
	headerPath := filepath.Join(eegDir, e.prefix()+"_eeg.vhdr")
	if _, err := os.Stat(headerPath); err == nil && !e.Overwrite {
		return fmt.Errorf("%w: %s", ErrEntryExists, e.prefix())
	}

	staging, err := os.MkdirTemp(root, ".staging-"+e.prefix()+"-")
	if err != nil {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return fmt.Errorf("creating dataset root: %w", err)
		}
		staging, err = os.MkdirTemp(root, ".staging-"+e.prefix()+"-")
		if err != nil {
			return fmt.Errorf("creating staging dir: %w", err)
		}
	}
	defer os.RemoveAll(staging)

	if err := stageEntry(staging, e); err != nil {
		return err
	}

	// Everything staged; land the files.
	if err := os.MkdirAll(eegDir, 0o755); err != nil {
		return fmt.Errorf("creating entry dir: %w", err)
	}
	if e.Motion != nil {
		if err := os.MkdirAll(MotionDir(root, e.Subject, e.Session), 0o755); err != nil {
			return fmt.Errorf("creating motion dir: %w", err)
		}
	}
	if err := installStaged(staging, root, e); err != nil {
		return err
	}

	return writeDatasetFiles(root, e)
}

func stageEntry(staging string, e *Entry) error {
	base := filepath.Join(staging, e.prefix())
	rec := e.Recording

	bv := &brainvision.Recording{
		ChannelNames: rec.ChannelNames,
		SampleRate:   rec.SampleRate,
		Data:         make([][]float64, rec.NChannels()),
	}
	for i, row := range rec.Data {
		uv := make([]float64, len(row))
		for j, v := range row {
			uv[j] = v * 1e6
		}
		bv.Data[i] = uv
	}
	for _, ev := range rec.Events {
		bv.Markers = append(bv.Markers, brainvision.Marker{
			Type:        brainvision.MarkerStimulus,
			Description: ev.Description,
			Position:    sampleIndex(ev.Onset, rec.SampleRate) + 1,
			Length:      1,
		})
	}
	for _, ann := range rec.Annotations {
		if !ann.IsBad() {
			continue
		}
		length := sampleIndex(ann.Duration, rec.SampleRate)
		if length < 1 {
			length = 1
		}
		bv.Markers = append(bv.Markers, brainvision.Marker{
			Type:        brainvision.MarkerBadInterval,
			Description: ann.Label,
			Position:    sampleIndex(ann.Onset, rec.SampleRate) + 1,
			Length:      length,
		})
	}
	if err := brainvision.Write(base+"_eeg", bv); err != nil {
		return fmt.Errorf("writing BrainVision files: %w", err)
	}

	if err := writeEEGSidecar(base+"_eeg.json", e); err != nil {
		return err
	}
	if err := writeChannelsTSV(base+"_channels.tsv", rec); err != nil {
		return err
	}
	if err := writeEventsTSV(base+"_events.tsv", rec); err != nil {
		return err
	}
	if len(e.Electrodes) > 0 {
		if err := writeElectrodesTSV(base+"_electrodes.tsv", e.Electrodes); err != nil {
			return err
		}
		if err := writeCoordSystemJSON(base + "_coordsystem.json"); err != nil {
			return err
		}
	}
	if e.Motion != nil {
		if err := writeMotionTSV(base+"_tracksys-imu_motion.tsv", e.Motion); err != nil {
			return err
		}
		if err := writeMotionSidecar(base+"_tracksys-imu_motion.json", e.Motion); err != nil {
			return err
		}
	}
	return nil
}

// installStaged moves every staged file into its final directory.
func installStaged(staging, root string, e *Entry) error {
	names, err := os.ReadDir(staging)
	if err != nil {
		return fmt.Errorf("listing staged files: %w", err)
	}
	eegDir := EEGDir(root, e.Subject, e.Session)
	motionDir := MotionDir(root, e.Subject, e.Session)
	for _, entry := range names {
		dst := filepath.Join(eegDir, entry.Name())
		if isMotionFile(entry.Name()) {
			dst = filepath.Join(motionDir, entry.Name())
		}
		if err := os.Rename(filepath.Join(staging, entry.Name()), dst); err != nil {
			return fmt.Errorf("installing %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func isMotionFile(name string) bool {
	return strings.HasSuffix(name, "_motion.tsv") || strings.HasSuffix(name, "_motion.json")
}

func sampleIndex(t, rate float64) int {
	return int(math.Round(t * rate))
}
