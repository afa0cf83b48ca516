package report

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/spectral"
	"github.com/mjibson/go-dsp/window"

	"github.com/JVHannila/MoBI-project/internal/eeg"
)

// EEG band edges in Hz.
var bands = map[string][2]float64{
	"delta": {1, 4},
	"theta": {4, 8},
	"alpha": {8, 13},
	"beta":  {13, 30},
}

const welchSegment = 1024

// LineNoiseDB measures the mean spectral magnitude at the given frequency
// across channels, in dB. Run before and after filtering, the difference is
// the cascade's realized notch attenuation.
func LineNoiseDB(rec *eeg.Recording, freq float64, skip map[string]bool) float64 {
	sum, n := 0.0, 0
	for i, name := range rec.ChannelNames {
		if skip[name] {
			continue
		}
		mag := magnitudeAt(rec.Data[i], rec.SampleRate, freq)
		if mag > 0 {
			sum += 20 * math.Log10(mag)
			n++
		}
	}
	if n == 0 {
		return math.Inf(-1)
	}
	return sum / float64(n)
}

func magnitudeAt(x []float64, sampleRate, freq float64) float64 {
	spectrum := fft.FFTReal(x)
	bin := int(math.Round(freq * float64(len(x)) / sampleRate))
	if bin < 0 || bin >= len(spectrum)/2 {
		return 0
	}
	return cmplx.Abs(spectrum[bin]) / float64(len(x))
}

// BandPowers computes the mean relative power per canonical EEG band across
// channels via Welch's method.
func BandPowers(rec *eeg.Recording, skip map[string]bool) map[string]float64 {
	opts := &spectral.PwelchOptions{
		NFFT:      welchSegment,
		Window:    window.Hann,
		Noverlap:  welchSegment / 2,
		Scale_off: false,
	}

	sums := map[string]float64{}
	n := 0
	for i, name := range rec.ChannelNames {
		if skip[name] || len(rec.Data[i]) < welchSegment {
			continue
		}
		pxx, freqs := spectral.Pwelch(rec.Data[i], rec.SampleRate, opts)

		total := 0.0
		perBand := map[string]float64{}
		for j, f := range freqs {
			p := pxx[j]
			total += p
			for band, edges := range bands {
				if f >= edges[0] && f < edges[1] {
					perBand[band] += p
				}
			}
		}
		if total <= 0 {
			continue
		}
		for band, p := range perBand {
			sums[band] += p / total
		}
		n++
	}

	if n == 0 {
		return nil
	}
	out := make(map[string]float64, len(sums))
	for band, s := range sums {
		out[band] = s / float64(n)
	}
	return out
}
