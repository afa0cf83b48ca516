package bids

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// writeDatasetFiles maintains the dataset-level metadata after an entry
// lands: dataset_description.json, participants.tsv, and the per-session
// scans table. All three are rebuilt idempotently from what is on disk.
func writeDatasetFiles(root string, e *Entry) error {
	descPath := filepath.Join(root, "dataset_description.json")
	if _, err := os.Stat(descPath); os.IsNotExist(err) {
		if err := writeJSON(descPath, map[string]any{
			"Name":        "MoBI pilot EEG dataset",
			"BIDSVersion": "1.8.0",
			"DatasetType": "raw",
		}); err != nil {
			return err
		}
	}

	if err := writeParticipants(root); err != nil {
		return err
	}
	return appendScan(root, e)
}

// writeParticipants rebuilds participants.tsv from the sub-* directories.
func writeParticipants(root string) error {
	dirEntries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("listing dataset root: %w", err)
	}
	var subjects []string
	for _, d := range dirEntries {
		if d.IsDir() && strings.HasPrefix(d.Name(), "sub-") {
			subjects = append(subjects, d.Name())
		}
	}
	sort.Strings(subjects)

	f, err := os.Create(filepath.Join(root, "participants.tsv"))
	if err != nil {
		return fmt.Errorf("creating participants table: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "participant_id")
	for _, s := range subjects {
		fmt.Fprintln(w, s)
	}
	return w.Flush()
}

// appendScan records the entry in the session's scans table. The capture
// clock is monotonic, not wall time, so there is no acquisition date to
// leak; with anonymization requested the acq_time column is left out
// entirely, otherwise it is written as n/a.
func appendScan(root string, e *Entry) error {
	sessionDir := filepath.Join(root, "sub-"+e.Subject, "ses-"+e.Session)
	path := filepath.Join(sessionDir, fmt.Sprintf("sub-%s_ses-%s_scans.tsv", e.Subject, e.Session))

	scans := map[string]bool{}
	if data, err := os.ReadFile(path); err == nil {
		for i, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
			if i == 0 {
				continue
			}
			if fields := strings.Split(line, "\t"); fields[0] != "" {
				scans[fields[0]] = true
			}
		}
	}
	scans[filepath.ToSlash(filepath.Join("eeg", e.prefix()+"_eeg.vhdr"))] = true
	if e.Motion != nil {
		scans[filepath.ToSlash(filepath.Join("motion", e.prefix()+"_tracksys-imu_motion.tsv"))] = true
	}

	ordered := make([]string, 0, len(scans))
	for s := range scans {
		ordered = append(ordered, s)
	}
	sort.Strings(ordered)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating scans table: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if e.Anonymize {
		fmt.Fprintln(w, "filename")
		for _, s := range ordered {
			fmt.Fprintln(w, s)
		}
	} else {
		fmt.Fprintln(w, "filename\tacq_time")
		for _, s := range ordered {
			fmt.Fprintf(w, "%s\tn/a\n", s)
		}
	}
	return w.Flush()
}
