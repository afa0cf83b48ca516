package quality

import (
	"testing"

	"github.com/JVHannila/MoBI-project/internal/eeg"
)

func TestDetectMovementFindsBurst(t *testing.T) {
	n := 2500 // 10 s at 250 Hz
	x := sine(n, eeg.DefaultSampleRate, 10, 20e-6)
	// One half-second burst at t=4 s, well above the rest.
	for i := 1000; i < 1125; i++ {
		x[i] = 500e-6
	}
	rec := mustRecording(t, []string{"Cz"}, [][]float64{x})

	anns := DetectMovement(rec)
	if len(anns) == 0 {
		t.Fatal("expected at least one movement annotation")
	}
	found := false
	for _, a := range anns {
		if a.Label != eeg.LabelMovement {
			t.Errorf("label = %q, want %q", a.Label, eeg.LabelMovement)
		}
		if a.Source != "detector" {
			t.Errorf("source = %q, want detector", a.Source)
		}
		// The burst span, padded by 0.1 s on each side.
		if a.Onset <= 4.0 && a.End() >= 4.5 {
			found = true
			if a.Onset < 4.0-MovementPadding-0.05 {
				t.Errorf("padded onset %g reaches too far left", a.Onset)
			}
		}
	}
	if !found {
		t.Errorf("no annotation covers the burst: %+v", anns)
	}
}

func TestDetectMovementEmptyRecording(t *testing.T) {
	rec := &eeg.Recording{SampleRate: 250}
	if anns := DetectMovement(rec); anns != nil {
		t.Errorf("expected nil for empty recording, got %v", anns)
	}
}

func TestDetectMovementFromGyro(t *testing.T) {
	n := 2500
	quiet := make([]float64, n)
	for i := range quiet {
		quiet[i] = 0.01
	}
	burst := make([]float64, n)
	copy(burst, quiet)
	for i := 500; i < 625; i++ {
		burst[i] = 5.0
	}

	motion := mustRecording(t,
		[]string{"GyroX", "GyroY", "GyroZ", "AccX"},
		[][]float64{burst, quiet, quiet, quiet})

	anns := DetectMovementFromGyro(motion)
	if len(anns) == 0 {
		t.Fatal("expected a movement annotation from the gyro burst")
	}
	covering := false
	for _, a := range anns {
		if a.Onset <= 2.0 && a.End() >= 2.5 {
			covering = true
		}
	}
	if !covering {
		t.Errorf("no annotation covers the gyro burst: %+v", anns)
	}
}

func TestDetectMovementFromGyroWithoutGyro(t *testing.T) {
	motion := mustRecording(t, []string{"AccX"}, [][]float64{make([]float64, 100)})
	if anns := DetectMovementFromGyro(motion); anns != nil {
		t.Errorf("expected nil without gyro channels, got %v", anns)
	}
}
