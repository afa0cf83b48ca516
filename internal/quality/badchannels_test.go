package quality

import (
	"math"
	"testing"

	"github.com/JVHannila/MoBI-project/internal/eeg"
)

// sine fills n samples of a sine at freq with the given amplitude in volts.
func sine(n int, rate, freq, amplitude float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/rate)
	}
	return x
}

func mustRecording(t *testing.T, names []string, data [][]float64) *eeg.Recording {
	t.Helper()
	rec, err := eeg.New(names, data, eeg.DefaultSampleRate)
	if err != nil {
		t.Fatal(err)
	}
	return rec
}

func hasRule(c BadChannel, rule string) bool {
	for _, r := range c.Rules {
		if r == rule {
			return true
		}
	}
	return false
}

func TestFlatChannelBoundary(t *testing.T) {
	n := 500
	tests := []struct {
		name string
		std  float64
		flat bool
	}{
		{"well below", FlatStdThreshold / 10, true},
		{"just below", FlatStdThreshold * 0.999, true},
		{"exactly at threshold", FlatStdThreshold, false}, // comparison is strict
		{"above", FlatStdThreshold * 10, false},
	}
	for _, tt := range tests {
		// A ±s square wave has standard deviation exactly s.
		x := make([]float64, n)
		for i := range x {
			if i%2 == 0 {
				x[i] = tt.std
			} else {
				x[i] = -tt.std
			}
		}
		rec := mustRecording(t, []string{"Cz"}, [][]float64{x})
		got := DetectBadChannels(rec)
		flagged := len(got) == 1 && hasRule(got[0], RuleFlat)
		if flagged != tt.flat {
			t.Errorf("%s (std=%g): flat=%v, want %v", tt.name, tt.std, flagged, tt.flat)
		}
	}
}

func TestExtremeAmplitudeBoundary(t *testing.T) {
	n := 500
	base := sine(n, eeg.DefaultSampleRate, 10, 20e-6)

	over := make([]float64, n)
	copy(over, base)
	over[100] = AmplitudeThreshold * 1.001

	at := make([]float64, n)
	copy(at, base)
	at[100] = AmplitudeThreshold

	rec := mustRecording(t, []string{"ok", "over", "at"}, [][]float64{base, over, at})
	got := DetectBadChannels(rec)
	if len(got) != 1 || got[0].Name != "over" || !hasRule(got[0], RuleExtremeAmplitude) {
		t.Errorf("candidates = %+v, want only 'over' via %s", got, RuleExtremeAmplitude)
	}
}

func TestHighVarianceOutlier(t *testing.T) {
	n := 1000
	data := make([][]float64, 0, 20)
	names := make([]string, 0, 20)
	for i := 0; i < 19; i++ {
		names = append(names, channelName(i))
		data = append(data, sine(n, eeg.DefaultSampleRate, 10, 10e-6))
	}
	names = append(names, "noisy")
	data = append(data, sine(n, eeg.DefaultSampleRate, 10, 100e-6))

	rec := mustRecording(t, names, data)
	got := DetectBadChannels(rec)
	if len(got) != 1 || got[0].Name != "noisy" || !hasRule(got[0], RuleHighVariance) {
		t.Errorf("candidates = %+v, want only 'noisy' via %s", got, RuleHighVariance)
	}
}

// End-to-end scenario from the study's acceptance checklist: one flat
// channel and one over-amplitude channel in a 250 Hz recording must come
// back as exactly those two labels.
func TestSyntheticRecordingScenario(t *testing.T) {
	n := 2500 // 10 s at 250 Hz
	flat := make([]float64, n)
	loud := sine(n, eeg.DefaultSampleRate, 10, 300e-6)
	good1 := sine(n, eeg.DefaultSampleRate, 10, 30e-6)
	good2 := sine(n, eeg.DefaultSampleRate, 8, 25e-6)
	good3 := sine(n, eeg.DefaultSampleRate, 12, 35e-6)

	rec := mustRecording(t,
		[]string{"F3", "FlatCh", "C4", "LoudCh", "O1"},
		[][]float64{good1, flat, good2, loud, good3})

	got := Names(DetectBadChannels(rec))
	if len(got) != 2 || got[0] != "FlatCh" || got[1] != "LoudCh" {
		t.Fatalf("bad channels = %v, want [FlatCh LoudCh]", got)
	}
}

func channelName(i int) string {
	return "Ch" + string(rune('A'+i))
}
