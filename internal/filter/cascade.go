package filter

import (
	"fmt"

	"github.com/JVHannila/MoBI-project/internal/eeg"
)

// Study-wide filter constants. All recordings share them; there is no
// adaptive parameter selection.
const (
	LineFreq     = 50.0
	NotchQ       = 30.0
	HighPassFreq = 1.0
	LowPassFreq  = 40.0
)

// Step is one stage of a cascade, in application order.
type Step struct {
	Name    string
	Biquad  *Biquad
	Summary string
}

// Cascade is an ordered filter chain. Order is part of the contract:
// the stages do not commute numerically.
type Cascade struct {
	Steps []Step
}

// StudyCascade builds the fixed notch → high-pass → low-pass chain used for
// every recording of the study.
func StudyCascade(sampleRate float64) (*Cascade, error) {
	notch, err := Notch(LineFreq, NotchQ, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("designing notch: %w", err)
	}
	hp, err := HighPass(HighPassFreq, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("designing high-pass: %w", err)
	}
	lp, err := LowPass(LowPassFreq, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("designing low-pass: %w", err)
	}
	return &Cascade{Steps: []Step{
		{Name: "notch", Biquad: notch, Summary: fmt.Sprintf("notch %g Hz (Q %g)", LineFreq, NotchQ)},
		{Name: "highpass", Biquad: hp, Summary: fmt.Sprintf("high-pass %g Hz", HighPassFreq)},
		{Name: "lowpass", Biquad: lp, Summary: fmt.Sprintf("low-pass %g Hz", LowPassFreq)},
	}}, nil
}

// Summaries lists the stage descriptions in application order.
func (c *Cascade) Summaries() []string {
	out := make([]string, len(c.Steps))
	for i, s := range c.Steps {
		out[i] = s.Summary
	}
	return out
}

// ApplyChannel runs the cascade over one channel in place.
func (c *Cascade) ApplyChannel(x []float64) {
	for _, s := range c.Steps {
		s.Biquad.Apply(x)
	}
}

// Apply runs the cascade over the given channels of a recording in place,
// skipping the rest. An empty skip set filters every channel.
func (c *Cascade) Apply(rec *eeg.Recording, skip map[string]bool) {
	for i, name := range rec.ChannelNames {
		if skip[name] {
			continue
		}
		c.ApplyChannel(rec.Data[i])
	}
}
