package bids

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JVHannila/MoBI-project/internal/eeg"
	"github.com/JVHannila/MoBI-project/internal/montage"
)

func testEntry(t *testing.T) *Entry {
	t.Helper()
	n := 500
	data := make([][]float64, 3)
	for c := range data {
		row := make([]float64, n)
		for i := range row {
			row[i] = 20e-6 * math.Sin(2*math.Pi*10*float64(i)/250+float64(c))
		}
		data[c] = row
	}
	rec, err := eeg.New([]string{"Fp1", "Cz", "O2"}, data, 250)
	if err != nil {
		t.Fatal(err)
	}
	rec.Events = []eeg.Event{
		{Onset: 0.5, Code: 5, Description: "Event_5"},
		{Onset: 1.25, Code: -1, Description: "trial start"},
	}
	rec.Annotations = []eeg.Annotation{
		{Onset: 1.0, Duration: 0.4, Label: eeg.LabelMovement},
	}

	electrodes, err := montage.PROX64().Apply(rec.ChannelNames)
	if err != nil {
		t.Fatal(err)
	}
	return &Entry{
		Subject: "P01", Session: "01", Task: "NaturalWalk",
		Recording: rec, Electrodes: electrodes, LineFreq: 50,
	}
}

func TestWriteEntryCreatesTree(t *testing.T) {
	root := t.TempDir()
	if err := WriteEntry(root, testEntry(t)); err != nil {
		t.Fatalf("WriteEntry failed: %v", err)
	}

	eegDir := EEGDir(root, "P01", "01")
	for _, name := range []string{
		"sub-P01_ses-01_task-NaturalWalk_eeg.vhdr",
		"sub-P01_ses-01_task-NaturalWalk_eeg.vmrk",
		"sub-P01_ses-01_task-NaturalWalk_eeg.eeg",
		"sub-P01_ses-01_task-NaturalWalk_eeg.json",
		"sub-P01_ses-01_task-NaturalWalk_channels.tsv",
		"sub-P01_ses-01_task-NaturalWalk_events.tsv",
		"sub-P01_ses-01_task-NaturalWalk_electrodes.tsv",
		"sub-P01_ses-01_task-NaturalWalk_coordsystem.json",
	} {
		if _, err := os.Stat(filepath.Join(eegDir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	for _, name := range []string{"dataset_description.json", "participants.tsv"} {
		if _, err := os.Stat(filepath.Join(root, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "sub-P01", "ses-01", "sub-P01_ses-01_scans.tsv")); err != nil {
		t.Errorf("missing scans table: %v", err)
	}

	// No staging leftovers.
	rootEntries, _ := os.ReadDir(root)
	for _, d := range rootEntries {
		if strings.HasPrefix(d.Name(), ".staging-") {
			t.Errorf("staging dir %s left behind", d.Name())
		}
	}
}

func TestWriteEntryRefusesOverwrite(t *testing.T) {
	root := t.TempDir()
	e := testEntry(t)
	if err := WriteEntry(root, e); err != nil {
		t.Fatal(err)
	}
	if err := WriteEntry(root, e); !errors.Is(err, ErrEntryExists) {
		t.Fatalf("expected ErrEntryExists, got %v", err)
	}
	e.Overwrite = true
	if err := WriteEntry(root, e); err != nil {
		t.Fatalf("overwrite should succeed: %v", err)
	}
}

func TestLoadEntryRoundTrip(t *testing.T) {
	root := t.TempDir()
	e := testEntry(t)
	if err := WriteEntry(root, e); err != nil {
		t.Fatal(err)
	}

	rec, err := LoadEntry(root, "P01", "01", "NaturalWalk")
	if err != nil {
		t.Fatalf("LoadEntry failed: %v", err)
	}
	if rec.NChannels() != 3 || rec.ChannelNames[1] != "Cz" {
		t.Errorf("channels = %v", rec.ChannelNames)
	}
	if rec.SampleRate != 250 {
		t.Errorf("sample rate = %g", rec.SampleRate)
	}
	// Values come back in volts, within float32 precision of µV storage.
	orig := e.Recording.Data[0][10]
	if got := rec.Data[0][10]; math.Abs(got-orig) > 1e-10 {
		t.Errorf("sample = %g, want %g", got, orig)
	}
	if len(rec.Events) != 2 {
		t.Fatalf("events = %+v", rec.Events)
	}
	if rec.Events[0].Code != 5 || rec.Events[0].Description != "Event_5" {
		t.Errorf("event[0] = %+v", rec.Events[0])
	}
	if len(rec.Annotations) != 1 || rec.Annotations[0].Label != eeg.LabelMovement {
		t.Errorf("annotations = %+v", rec.Annotations)
	}
}

func TestLoadEntryMissing(t *testing.T) {
	_, err := LoadEntry(t.TempDir(), "P01", "01", "Nothing")
	if !errors.Is(err, ErrEntryMissing) {
		t.Fatalf("expected ErrEntryMissing, got %v", err)
	}
}

func TestMotionRoundTrip(t *testing.T) {
	root := t.TempDir()
	e := testEntry(t)
	motion, err := eeg.New(
		[]string{"AccX", "GyroZ"},
		[][]float64{{0.1, 0.2, 0.3}, {1, 2, 3}},
		250,
	)
	if err != nil {
		t.Fatal(err)
	}
	e.Motion = motion
	if err := WriteEntry(root, e); err != nil {
		t.Fatal(err)
	}

	got, err := LoadMotion(root, "P01", "01", "NaturalWalk")
	if err != nil {
		t.Fatalf("LoadMotion failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a motion recording")
	}
	if got.NChannels() != 2 || got.ChannelNames[1] != "GyroZ" {
		t.Errorf("channels = %v", got.ChannelNames)
	}
	if got.Data[1][2] != 3 {
		t.Errorf("data = %v", got.Data)
	}
}

func TestLoadMotionAbsent(t *testing.T) {
	root := t.TempDir()
	if err := WriteEntry(root, testEntry(t)); err != nil {
		t.Fatal(err)
	}
	got, err := LoadMotion(root, "P01", "01", "NaturalWalk")
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", got, err)
	}
}

func TestAnonymizeStripsAcqTime(t *testing.T) {
	root := t.TempDir()
	e := testEntry(t)
	e.Anonymize = true
	if err := WriteEntry(root, e); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(root, "sub-P01", "ses-01", "sub-P01_ses-01_scans.tsv"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "acq_time") {
		t.Errorf("scans table still carries acq_time:\n%s", data)
	}
}
