package bids

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/JVHannila/MoBI-project/internal/eeg"
	"github.com/JVHannila/MoBI-project/internal/montage"
)

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func writeEEGSidecar(path string, e *Entry) error {
	rec := e.Recording
	return writeJSON(path, map[string]any{
		"TaskName":             e.Task,
		"SamplingFrequency":    rec.SampleRate,
		"PowerLineFrequency":   e.LineFreq,
		"EEGChannelCount":      rec.NChannels(),
		"EEGReference":         "n/a",
		"RecordingType":        "continuous",
		"RecordingDuration":    rec.Duration(),
		"SoftwareFilters":      "n/a",
		"Manufacturer":         "n/a",
		"EEGPlacementScheme":   "10-10 (PROX-64 cap)",
		"InstitutionName":      "n/a",
	})
}

func writeChannelsTSV(path string, rec *eeg.Recording) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating channels table: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "name\ttype\tunits\tlow_cutoff\thigh_cutoff\tstatus\tstatus_description")
	for _, name := range rec.ChannelNames {
		fmt.Fprintf(w, "%s\tEEG\tµV\tn/a\tn/a\tgood\tn/a\n", name)
	}
	return w.Flush()
}

func writeEventsTSV(path string, rec *eeg.Recording) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating events table: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "onset\tduration\ttrial_type\tvalue\tsample")
	for _, ev := range rec.Events {
		value := "n/a"
		if ev.Code >= 0 {
			value = fmt.Sprintf("%d", ev.Code)
		}
		// Onsets keep full precision; the sample column is derived and
		// rounded, never the other way around.
		fmt.Fprintf(w, "%.6f\t%g\t%s\t%s\t%d\n",
			ev.Onset, ev.Duration, ev.Description, value, int(math.Round(ev.Onset*rec.SampleRate)))
	}
	return w.Flush()
}

func writeElectrodesTSV(path string, electrodes []montage.Electrode) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating electrodes table: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "name\tx\ty\tz")
	for _, el := range electrodes {
		fmt.Fprintf(w, "%s\t%g\t%g\t%g\n", el.Name, el.Position.X, el.Position.Y, el.Position.Z)
	}
	return w.Flush()
}

func writeCoordSystemJSON(path string) error {
	return writeJSON(path, map[string]any{
		"EEGCoordinateSystem":            "Other",
		"EEGCoordinateUnits":             "m",
		"EEGCoordinateSystemDescription": "Head frame: +X right, +Y anterior, +Z superior, idealized spherical head",
	})
}

func writeMotionTSV(path string, motion *eeg.Recording) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating motion table: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, 1<<16)
	for i, name := range motion.ChannelNames {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, name)
	}
	fmt.Fprintln(w)
	for s := 0; s < motion.NSamples(); s++ {
		for c := range motion.Data {
			if c > 0 {
				fmt.Fprint(w, "\t")
			}
			fmt.Fprintf(w, "%g", motion.Data[c][s])
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func writeMotionSidecar(path string, motion *eeg.Recording) error {
	return writeJSON(path, map[string]any{
		"SamplingFrequency":  motion.SampleRate,
		"TrackingSystemName": "imu",
		"MotionChannelCount": motion.NChannels(),
		"RecordingDuration":  motion.Duration(),
	})
}
