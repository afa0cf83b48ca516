package sonify

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"

	"github.com/JVHannila/MoBI-project/internal/eeg"
)

func testRecording(t *testing.T) *eeg.Recording {
	t.Helper()
	n := 2500
	x := make([]float64, n)
	for i := range x {
		x[i] = 30e-6 * math.Sin(2*math.Pi*10*float64(i)/250)
	}
	rec, err := eeg.New([]string{"Cz"}, [][]float64{x}, 250)
	if err != nil {
		t.Fatal(err)
	}
	return rec
}

func TestChannelWritesValidWAV(t *testing.T) {
	rec := testRecording(t)
	out := filepath.Join(t.TempDir(), "cz.wav")

	if err := Channel(rec, "Cz", out, 0); err != nil {
		t.Fatalf("Channel failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("output is not a valid WAV file")
	}
	if dec.SampleRate != DefaultPlaybackRate {
		t.Errorf("sample rate = %d, want %d", dec.SampleRate, DefaultPlaybackRate)
	}
	if dec.BitDepth != 16 {
		t.Errorf("bit depth = %d, want 16", dec.BitDepth)
	}
	if dec.NumChans != 1 {
		t.Errorf("channels = %d, want 1", dec.NumChans)
	}
}

func TestChannelNormalizes(t *testing.T) {
	rec := testRecording(t)
	out := filepath.Join(t.TempDir(), "cz.wav")
	if err := Channel(rec, "Cz", out, 8000); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	peak := 0
	for _, v := range buf.Data {
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	scale := 0.9
	want := int(scale * float64(math.MaxInt16))
	if peak < want-2 || peak > want+2 {
		t.Errorf("peak = %d, want about %d (90%% full scale)", peak, want)
	}
}

func TestChannelUnknown(t *testing.T) {
	rec := testRecording(t)
	if err := Channel(rec, "Nope", filepath.Join(t.TempDir(), "x.wav"), 0); err == nil {
		t.Error("expected error for unknown channel")
	}
}
