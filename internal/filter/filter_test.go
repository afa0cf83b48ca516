package filter

import (
	"math"
	"testing"
)

func sine(n int, rate, freq, amplitude float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/rate)
	}
	return x
}

func rms(x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

const testRate = 250.0

func TestNotchAttenuatesLineFrequency(t *testing.T) {
	notch, err := Notch(LineFreq, NotchQ, testRate)
	if err != nil {
		t.Fatal(err)
	}

	hum := sine(5000, testRate, LineFreq, 1)
	before := rms(hum)
	notch.Apply(hum)
	after := rms(hum)

	if after > before/10 {
		t.Errorf("notch left %.1f%% of the 50 Hz tone", after/before*100)
	}

	// A 10 Hz signal passes nearly untouched.
	alpha := sine(5000, testRate, 10, 1)
	before = rms(alpha)
	notch.Apply(alpha)
	after = rms(alpha)
	if after < before*0.9 {
		t.Errorf("notch attenuated a 10 Hz tone to %.1f%%", after/before*100)
	}
}

func TestHighPassRemovesDrift(t *testing.T) {
	hp, err := HighPass(HighPassFreq, testRate)
	if err != nil {
		t.Fatal(err)
	}
	// Constant offset plus a passband tone.
	n := 5000
	x := sine(n, testRate, 10, 1)
	for i := range x {
		x[i] += 5
	}
	hp.Apply(x)

	// Mean of the steady-state middle should be near zero.
	mid := x[n/4 : 3*n/4]
	sum := 0.0
	for _, v := range mid {
		sum += v
	}
	if mean := sum / float64(len(mid)); math.Abs(mean) > 0.05 {
		t.Errorf("residual offset %g after high-pass", mean)
	}
}

func TestLowPassRemovesHighBand(t *testing.T) {
	lp, err := LowPass(LowPassFreq, testRate)
	if err != nil {
		t.Fatal(err)
	}
	hiss := sine(5000, testRate, 100, 1)
	before := rms(hiss)
	lp.Apply(hiss)
	if after := rms(hiss); after > before/5 {
		t.Errorf("low-pass left %.1f%% of a 100 Hz tone", after/before*100)
	}
}

func TestDesignRejectsBadFrequencies(t *testing.T) {
	if _, err := LowPass(130, testRate); err == nil {
		t.Error("expected error above Nyquist")
	}
	if _, err := HighPass(0, testRate); err == nil {
		t.Error("expected error for zero cutoff")
	}
	if _, err := Notch(50, 30, 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

// The cascade is order-sensitive: notch→HP→LP must differ numerically from
// other orderings on a signal that excites all three bands.
func TestCascadeOrderSensitivity(t *testing.T) {
	mixed := func() []float64 {
		n := 5000
		x := make([]float64, n)
		for i := range x {
			ti := float64(i) / testRate
			x[i] = math.Sin(2*math.Pi*0.3*ti) + // drift band
				math.Sin(2*math.Pi*10*ti) + // passband
				math.Sin(2*math.Pi*50*ti) + // line band
				math.Sin(2*math.Pi*90*ti) // high band
		}
		return x
	}

	cascade, err := StudyCascade(testRate)
	if err != nil {
		t.Fatal(err)
	}

	canonical := mixed()
	cascade.ApplyChannel(canonical)

	orders := [][3]int{{0, 2, 1}, {1, 0, 2}, {2, 1, 0}, {1, 2, 0}, {2, 0, 1}}
	for _, order := range orders {
		x := mixed()
		for _, idx := range order {
			cascade.Steps[idx].Biquad.Apply(x)
		}
		maxDiff := 0.0
		for i := range x {
			if d := math.Abs(x[i] - canonical[i]); d > maxDiff {
				maxDiff = d
			}
		}
		if maxDiff < 1e-12 {
			t.Errorf("ordering %v is numerically identical to the canonical cascade", order)
		}
	}
}

func TestStudyCascadeOrder(t *testing.T) {
	cascade, err := StudyCascade(testRate)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"notch", "highpass", "lowpass"}
	if len(cascade.Steps) != 3 {
		t.Fatalf("got %d steps", len(cascade.Steps))
	}
	for i, step := range cascade.Steps {
		if step.Name != want[i] {
			t.Errorf("step %d = %s, want %s", i, step.Name, want[i])
		}
	}
}
