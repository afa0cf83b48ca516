package quality

import (
	"math"

	"github.com/JVHannila/MoBI-project/internal/eeg"
)

// Movement detection parameters.
const (
	// MovementPercentile sets the envelope threshold: samples above the
	// 99th percentile of the per-sample peak amplitude count as movement.
	MovementPercentile = 99.0

	// MovementPadding extends each detected run on both sides, in seconds,
	// to cover filter ringing at the artifact edges.
	MovementPadding = 0.1
)

// DetectMovement finds movement-artifact spans from the EEG alone, for
// recordings without an independent motion sensor: the per-sample maximum
// absolute amplitude across channels forms an envelope, and contiguous runs
// above its 99th percentile become BAD_movement annotations.
func DetectMovement(rec *eeg.Recording) []eeg.Annotation {
	n := rec.NSamples()
	if n == 0 || rec.NChannels() == 0 {
		return nil
	}
	envelope := make([]float64, n)
	for _, row := range rec.Data {
		for i, v := range row {
			if a := math.Abs(v); a > envelope[i] {
				envelope[i] = a
			}
		}
	}
	return annotateRuns(envelope, rec.SampleRate, rec.Duration())
}

// DetectMovementFromGyro finds movement spans from an IMU recording: the
// gyroscope magnitude's deviation from its median forms the envelope, with
// the same percentile rule as the EEG-only detector. Returns nil when the
// recording carries no gyro channels.
func DetectMovementFromGyro(motion *eeg.Recording) []eeg.Annotation {
	var gyro [][]float64
	for i, name := range motion.ChannelNames {
		switch name {
		case "GyroX", "GyroY", "GyroZ":
			gyro = append(gyro, motion.Data[i])
		}
	}
	if len(gyro) == 0 {
		return nil
	}

	n := len(gyro[0])
	magnitude := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for _, row := range gyro {
			sum += row[i] * row[i]
		}
		magnitude[i] = math.Sqrt(sum)
	}

	median := eeg.Percentile(magnitude, 50)
	envelope := make([]float64, n)
	for i, v := range magnitude {
		envelope[i] = math.Abs(v - median)
	}
	return annotateRuns(envelope, motion.SampleRate, motion.Duration())
}

// annotateRuns turns contiguous supra-threshold runs of the envelope into
// padded BAD_movement annotations.
func annotateRuns(envelope []float64, sampleRate, duration float64) []eeg.Annotation {
	threshold := eeg.Percentile(envelope, MovementPercentile)

	var anns []eeg.Annotation
	runStart := -1
	flush := func(start, end int) {
		onset := float64(start)/sampleRate - MovementPadding
		stop := float64(end)/sampleRate + MovementPadding
		if onset < 0 {
			onset = 0
		}
		if stop > duration {
			stop = duration
		}
		anns = append(anns, eeg.Annotation{
			Onset:    onset,
			Duration: stop - onset,
			Label:    eeg.LabelMovement,
			Source:   "detector",
		})
	}
	for i, v := range envelope {
		if v > threshold {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 {
			flush(runStart, i)
			runStart = -1
		}
	}
	if runStart >= 0 {
		flush(runStart, len(envelope))
	}
	return anns
}
