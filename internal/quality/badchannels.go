// Package quality implements the study's quality-control heuristics:
// bad-channel candidate detection and movement-artifact detection. All
// findings are advisory. Nothing here removes a channel or a data span;
// exclusion happens only after explicit operator confirmation.
package quality

import (
	"sort"

	"github.com/JVHannila/MoBI-project/internal/eeg"
)

// Thresholds shared by all recordings of the study.
const (
	// FlatStdThreshold flags channels whose variation is below noise floor:
	// 0.1 µV standard deviation, in volts. The comparison is strict; a
	// channel sitting exactly at the threshold is not flat.
	FlatStdThreshold = 1e-7

	// AmplitudeThreshold flags channels with any sample beyond 200 µV, in
	// volts. Strict comparison, same as the flat rule.
	AmplitudeThreshold = 200e-6

	// VarianceOutlierFactor and VarianceOutlierPercentile define the
	// high-variance rule: variance above factor × the percentile of all
	// channel variances.
	VarianceOutlierFactor     = 3.0
	VarianceOutlierPercentile = 95.0
)

// Rule names reported with each candidate.
const (
	RuleFlat             = "flat"
	RuleExtremeAmplitude = "extreme_amplitude"
	RuleHighVariance     = "high_variance"
)

// BadChannel is one flagged candidate with the rules that fired for it.
type BadChannel struct {
	Name  string   `json:"name"`
	Rules []string `json:"rules"`
}

// DetectBadChannels runs the three independent heuristics over every
// channel and unions their results. Candidates come back in recording
// channel order with the rules that flagged each one.
func DetectBadChannels(rec *eeg.Recording) []BadChannel {
	variances := make([]float64, rec.NChannels())
	for i, row := range rec.Data {
		variances[i] = eeg.Variance(row)
	}
	varianceCutoff := VarianceOutlierFactor * eeg.Percentile(variances, VarianceOutlierPercentile)

	var out []BadChannel
	for i, name := range rec.ChannelNames {
		var rules []string
		if eeg.Std(rec.Data[i]) < FlatStdThreshold {
			rules = append(rules, RuleFlat)
		}
		if eeg.MaxAbs(rec.Data[i]) > AmplitudeThreshold {
			rules = append(rules, RuleExtremeAmplitude)
		}
		if variances[i] > varianceCutoff {
			rules = append(rules, RuleHighVariance)
		}
		if len(rules) > 0 {
			out = append(out, BadChannel{Name: name, Rules: rules})
		}
	}
	return out
}

// Names extracts just the channel labels from a candidate list, sorted.
func Names(candidates []BadChannel) []string {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}
	sort.Strings(names)
	return names
}
