// Package filter implements the study's fixed frequency-domain cleaning
// cascade: a power-line notch, a high-pass, and a low-pass, applied in that
// order. The filters are RBJ cookbook biquad sections run forward and
// backward over each channel for zero phase shift.
package filter

import (
	"fmt"
	"math"
)

// Biquad is one second-order IIR section in normalized direct form:
// y[n] = b0 x[n] + b1 x[n-1] + b2 x[n-2] - a1 y[n-1] - a2 y[n-2].
type Biquad struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// butterworthQ gives a maximally flat passband for a single section.
const butterworthQ = math.Sqrt2 / 2

// Notch designs a band-reject section centered on freq with the given Q.
func Notch(freq, q, sampleRate float64) (*Biquad, error) {
	if err := checkFreq(freq, sampleRate); err != nil {
		return nil, err
	}
	w0 := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cw := math.Cos(w0)

	a0 := 1 + alpha
	return &Biquad{
		B0: 1 / a0,
		B1: -2 * cw / a0,
		B2: 1 / a0,
		A1: -2 * cw / a0,
		A2: (1 - alpha) / a0,
	}, nil
}

// HighPass designs a Butterworth high-pass section with cutoff freq.
func HighPass(freq, sampleRate float64) (*Biquad, error) {
	if err := checkFreq(freq, sampleRate); err != nil {
		return nil, err
	}
	w0 := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(w0) / (2 * butterworthQ)
	cw := math.Cos(w0)

	a0 := 1 + alpha
	return &Biquad{
		B0: (1 + cw) / 2 / a0,
		B1: -(1 + cw) / a0,
		B2: (1 + cw) / 2 / a0,
		A1: -2 * cw / a0,
		A2: (1 - alpha) / a0,
	}, nil
}

// LowPass designs a Butterworth low-pass section with cutoff freq.
func LowPass(freq, sampleRate float64) (*Biquad, error) {
	if err := checkFreq(freq, sampleRate); err != nil {
		return nil, err
	}
	w0 := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(w0) / (2 * butterworthQ)
	cw := math.Cos(w0)

	a0 := 1 + alpha
	return &Biquad{
		B0: (1 - cw) / 2 / a0,
		B1: (1 - cw) / a0,
		B2: (1 - cw) / 2 / a0,
		A1: -2 * cw / a0,
		A2: (1 - alpha) / a0,
	}, nil
}

func checkFreq(freq, sampleRate float64) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %g", sampleRate)
	}
	if freq <= 0 || freq >= sampleRate/2 {
		return fmt.Errorf("filter frequency %g Hz outside (0, %g)", freq, sampleRate/2)
	}
	return nil
}

// Apply runs the section over x in place, forward then backward, so the
// cascade introduces no phase shift. The effective attenuation is the
// section's squared magnitude response.
func (f *Biquad) Apply(x []float64) {
	f.forward(x)
	reverse(x)
	f.forward(x)
	reverse(x)
}

func (f *Biquad) forward(x []float64) {
	var x1, x2, y1, y2 float64
	for i, v := range x {
		y := f.B0*v + f.B1*x1 + f.B2*x2 - f.A1*y1 - f.A2*y2
		x2, x1 = x1, v
		y2, y1 = y1, y
		x[i] = y
	}
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
